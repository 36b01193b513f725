package wizard

import (
	"context"
	"fmt"
)

// WizardResult holds all the answers from the interactive wizard.
type WizardResult struct {
	// Hosts
	PrimaryHost   string
	ReplicaHost   string
	CompilerHosts []string

	// Databases (extra-large only)
	PrimaryDatabaseHost string
	ReplicaDatabaseHost string

	Version string

	// Staging
	DownloadMode string
	PEConf       string

	// SSH
	SSHUser        string
	PrivateKeyPath string

	// PCP, asked only when a host uses pcp://
	OrchestratorURL string
	PCPTokenFile    string
}

// RunWizard runs the interactive configuration wizard.
// The context is used for cancellation support (e.g., Ctrl+C).
func RunWizard(ctx context.Context) (*WizardResult, error) {
	result := &WizardResult{}

	if err := runHostsGroup(ctx, result); err != nil {
		return nil, fmt.Errorf("hosts: %w", err)
	}

	if err := runDatabaseGroup(ctx, result); err != nil {
		return nil, fmt.Errorf("databases: %w", err)
	}

	if err := runVersionGroup(ctx, result); err != nil {
		return nil, fmt.Errorf("version: %w", err)
	}

	if err := runStagingGroup(ctx, result); err != nil {
		return nil, fmt.Errorf("staging: %w", err)
	}

	if err := runSSHGroup(ctx, result); err != nil {
		return nil, fmt.Errorf("ssh: %w", err)
	}

	if result.usesPCP() {
		if err := runPCPGroup(ctx, result); err != nil {
			return nil, fmt.Errorf("pcp: %w", err)
		}
	}

	return result, nil
}
