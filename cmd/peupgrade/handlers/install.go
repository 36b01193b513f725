package handlers

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/imamik/peupgrade/internal/installer"
	"github.com/imamik/peupgrade/internal/remote"
	"github.com/imamik/peupgrade/internal/util/prerequisites"
)

// checkTools verifies the local commands the wrapper needs. Replaced in tests.
var checkTools = prerequisites.CheckForInstall

// localRunner runs installer commands on this machine. Replaced in tests.
var localRunner = func() remote.Runner {
	return remote.NodeRunner{
		Exec:   &remote.LocalExecutor{},
		Target: remote.MustParseTarget("local://localhost"),
	}
}

// InstallOptions contains options for the install command.
type InstallOptions struct {
	Tarball    string
	Clustered  bool
	AgentState installer.AgentState
	PEConf     string
	LogFormat  string
}

// Install runs the installer wrapper on this machine and returns its final
// exit code.
func Install(ctx context.Context, opts InstallOptions) (int, error) {
	observer, err := newObserver(opts.LogFormat)
	if err != nil {
		return 1, err
	}

	if err := checkTools().Error(); err != nil {
		return 1, err
	}

	tarball, err := filepath.Abs(opts.Tarball)
	if err != nil {
		return 1, fmt.Errorf("failed to resolve tarball path: %w", err)
	}
	peConf := opts.PEConf
	if peConf != "" {
		if peConf, err = filepath.Abs(peConf); err != nil {
			return 1, fmt.Errorf("failed to resolve pe.conf path: %w", err)
		}
	}

	agentState := opts.AgentState
	if agentState == "" {
		agentState = installer.AgentRunning
	}

	w := &installer.Wrapper{Logf: observer.Printf}
	return w.Install(ctx, localRunner(), installer.Options{
		Tarball:    tarball,
		Clustered:  opts.Clustered,
		AgentState: agentState,
		PEConf:     peConf,
	})
}
