package remote

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnsupportedProtocol is returned when no executor is registered for
	// a target's protocol.
	ErrUnsupportedProtocol = errors.New("unsupported protocol")

	// ErrUploadUnsupported is returned by executors that cannot transfer files.
	ErrUploadUnsupported = errors.New("file upload not supported by protocol")
)

// Result is the outcome of a command that ran to completion on a node.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Success reports whether the command exited with status 0.
func (r Result) Success() bool {
	return r.ExitCode == 0
}

// Output returns stdout and stderr joined, trimmed of surrounding whitespace.
func (r Result) Output() string {
	return strings.TrimSpace(strings.TrimSpace(r.Stdout) + "\n" + strings.TrimSpace(r.Stderr))
}

// Executor runs operations against nodes.
//
// Run returns an error only when the command could not be run or its
// status could not be collected; a command that ran and exited non-zero
// is reported through Result.ExitCode.
type Executor interface {
	Run(ctx context.Context, target Target, command string) (Result, error)
	Upload(ctx context.Context, target Target, localPath, remotePath string) error
	Ping(ctx context.Context, target Target) error
}

// CommandError describes a command that exited non-zero.
type CommandError struct {
	Target  string
	Command string
	Result  Result
}

func (e *CommandError) Error() string {
	out := e.Result.Output()
	if out == "" {
		return fmt.Sprintf("command on %s exited %d: %s", e.Target, e.Result.ExitCode, e.Command)
	}
	return fmt.Sprintf("command on %s exited %d: %s\nOutput: %s", e.Target, e.Result.ExitCode, e.Command, out)
}

// Check runs command and converts a non-zero exit into a *CommandError.
// It returns trimmed stdout on success.
func Check(ctx context.Context, exec Executor, target Target, command string) (string, error) {
	res, err := exec.Run(ctx, target, command)
	if err != nil {
		return "", fmt.Errorf("failed to run command on %s: %w", target.Name, err)
	}
	if !res.Success() {
		return "", &CommandError{Target: target.Name, Command: command, Result: res}
	}
	return strings.TrimSpace(res.Stdout), nil
}

// Router dispatches to the executor registered for each target protocol.
type Router struct {
	executors map[Protocol]Executor
}

// NewRouter creates an empty router.
func NewRouter() *Router {
	return &Router{executors: make(map[Protocol]Executor)}
}

// Register installs exec for protocol p, replacing any previous executor.
func (r *Router) Register(p Protocol, exec Executor) *Router {
	r.executors[p] = exec
	return r
}

func (r *Router) executor(t Target) (Executor, error) {
	exec, ok := r.executors[t.Protocol]
	if !ok {
		return nil, fmt.Errorf("%w %q for %s", ErrUnsupportedProtocol, t.Protocol, t.Name)
	}
	return exec, nil
}

// Run implements Executor.
func (r *Router) Run(ctx context.Context, t Target, command string) (Result, error) {
	exec, err := r.executor(t)
	if err != nil {
		return Result{}, err
	}
	return exec.Run(ctx, t, command)
}

// Upload implements Executor.
func (r *Router) Upload(ctx context.Context, t Target, localPath, remotePath string) error {
	exec, err := r.executor(t)
	if err != nil {
		return err
	}
	return exec.Upload(ctx, t, localPath, remotePath)
}

// Ping implements Executor.
func (r *Router) Ping(ctx context.Context, t Target) error {
	exec, err := r.executor(t)
	if err != nil {
		return err
	}
	return exec.Ping(ctx, t)
}

// Runner runs commands on one fixed node. It is what the installer wrapper
// needs: the same sequence of commands works against a remote node or the
// local machine.
type Runner interface {
	Run(ctx context.Context, command string) (Result, error)
}

// NodeRunner binds an Executor to a Target.
type NodeRunner struct {
	Exec   Executor
	Target Target
}

// Run implements Runner.
func (n NodeRunner) Run(ctx context.Context, command string) (Result, error) {
	return n.Exec.Run(ctx, n.Target, command)
}
