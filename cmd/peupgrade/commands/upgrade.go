package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/peupgrade/cmd/peupgrade/handlers"
)

// Upgrade returns the command for upgrading Puppet Enterprise.
//
// Required flags:
//
//	--config, -c: Path to configuration YAML file
//
// Optional flags:
//
//	--version: Override the target version from config
//	--dry-run: Validate and show the plan without changing any node
func Upgrade() *cobra.Command {
	var configPath string
	var version string
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "upgrade",
		Short: "Upgrade Puppet Enterprise on every node",
		Long: `Upgrade a running Puppet Enterprise installation.

The upgrade process:
1. Validate: read trusted facts, classify the architecture, build the plan
2. Prepare: stage the installer and stop puppet agents
3. Upgrade the primary's availability group (database, primary, compilers)
4. Upgrade the replica's availability group (database, replica, compilers)
5. Finalize: start puppet agents

Any failure aborts the run. Re-running from the start is safe.

Running two upgrades against the same installation at once is not
supported.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := handlers.UpgradeOptions{
				ConfigPath: configPath,
				Version:    version,
				DryRun:     dryRun,
				LogFormat:  logFormat(cmd),
			}
			return handlers.Upgrade(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to configuration file")
	cmd.Flags().StringVar(&version, "version", "", "Override the target version from config")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be upgraded without executing")

	// MarkFlagRequired cannot fail for flags defined on the same command
	_ = cmd.MarkFlagRequired("config")

	return cmd
}
