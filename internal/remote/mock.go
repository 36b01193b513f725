package remote

import (
	"context"
	"sync"
)

// Call records one operation issued against a MockExecutor.
type Call struct {
	Op      string // "run", "upload" or "ping"
	Target  string
	Command string // command for run, remote path for upload
}

// MockExecutor is a mock implementation of Executor. Unset funcs succeed with
// an empty result. Calls are recorded in issue order and are safe to inspect
// after concurrent use.
type MockExecutor struct {
	RunFunc    func(ctx context.Context, target Target, command string) (Result, error)
	UploadFunc func(ctx context.Context, target Target, localPath, remotePath string) error
	PingFunc   func(ctx context.Context, target Target) error

	mu    sync.Mutex
	calls []Call
}

func (m *MockExecutor) record(c Call) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, c)
}

// Calls returns a copy of the recorded calls.
func (m *MockExecutor) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// Commands returns the commands run on target, in order.
func (m *MockExecutor) Commands(target string) []string {
	var out []string
	for _, c := range m.Calls() {
		if c.Op == "run" && c.Target == target {
			out = append(out, c.Command)
		}
	}
	return out
}

func (m *MockExecutor) Run(ctx context.Context, target Target, command string) (Result, error) {
	m.record(Call{Op: "run", Target: target.Name, Command: command})
	if m.RunFunc != nil {
		return m.RunFunc(ctx, target, command)
	}
	return Result{}, nil
}

func (m *MockExecutor) Upload(ctx context.Context, target Target, localPath, remotePath string) error {
	m.record(Call{Op: "upload", Target: target.Name, Command: remotePath})
	if m.UploadFunc != nil {
		return m.UploadFunc(ctx, target, localPath, remotePath)
	}
	return nil
}

func (m *MockExecutor) Ping(ctx context.Context, target Target) error {
	m.record(Call{Op: "ping", Target: target.Name})
	if m.PingFunc != nil {
		return m.PingFunc(ctx, target)
	}
	return nil
}
