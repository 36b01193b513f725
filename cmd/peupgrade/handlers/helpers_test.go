package handlers

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/imamik/peupgrade/internal/artifact"
	"github.com/imamik/peupgrade/internal/config"
	"github.com/imamik/peupgrade/internal/remote"
)

const standaloneConfig = `
primary_host: pe-primary.example.com
version: 2023.8.0
`

// captureStdout redirects handler output to a buffer for the test.
func captureStdout(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	orig := stdout
	stdout = &buf
	t.Cleanup(func() { stdout = orig })
	return &buf
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), config.DefaultConfigFilename)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

// useExecutor replaces the transport factories for the test.
func useExecutor(t *testing.T, exec remote.Executor) {
	t.Helper()
	origExec, origMirror := newExecutor, newMirror
	newExecutor = func(context.Context, *config.Config, *config.Timeouts) (remote.Executor, error) {
		return exec, nil
	}
	newMirror = func(context.Context, *config.Config) (artifact.Mirror, error) {
		return nil, nil
	}
	t.Cleanup(func() {
		newExecutor, newMirror = origExec, origMirror
	})
}

// unreachable is an executor where every command fails.
func unreachable() *remote.MockExecutor {
	return &remote.MockExecutor{
		RunFunc: func(context.Context, remote.Target, string) (remote.Result, error) {
			return remote.Result{}, errors.New("connection refused")
		},
	}
}
