package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
)

// LocalExecutor runs commands on the current machine through /bin/sh.
type LocalExecutor struct {
	// Shell defaults to /bin/sh.
	Shell string
}

// Run implements Executor.
func (l *LocalExecutor) Run(ctx context.Context, _ Target, command string) (Result, error) {
	shell := l.Shell
	if shell == "" {
		shell = "/bin/sh"
	}

	cmd := exec.CommandContext(ctx, shell, "-c", command) // #nosec G204
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() >= 0 {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		return res, fmt.Errorf("failed to run local command: %w", err)
	}
	return res, nil
}

// Upload implements Executor by copying the file.
func (l *LocalExecutor) Upload(_ context.Context, _ Target, localPath, remotePath string) error {
	if filepath.Clean(localPath) == filepath.Clean(remotePath) {
		return nil
	}

	src, err := os.Open(localPath) // #nosec G304
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", localPath, err)
	}
	defer func() { _ = src.Close() }()

	if err := os.MkdirAll(filepath.Dir(remotePath), 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(remotePath), err)
	}

	tmp := remotePath + ".part"
	dst, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644) // #nosec G304
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", tmp, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return fmt.Errorf("failed to copy %s: %w", localPath, err)
	}
	if err := dst.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmp, err)
	}
	return os.Rename(tmp, remotePath)
}

// Ping implements Executor. The local machine is always reachable.
func (l *LocalExecutor) Ping(_ context.Context, _ Target) error {
	return nil
}
