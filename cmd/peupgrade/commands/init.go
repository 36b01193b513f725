package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/peupgrade/cmd/peupgrade/handlers"
	"github.com/imamik/peupgrade/internal/config"
)

// Init returns the command for interactively creating a configuration.
//
// Flags:
//
//	--output, -o: Path to output file (default "peupgrade.yaml")
func Init() *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Interactively create a configuration",
		Long: `Interactively create a peupgrade configuration file.

It will ask about:

  - Primary, replica and compiler hosts
  - External PostgreSQL hosts (extra-large architectures)
  - Target PE version
  - How the installer reaches the nodes
  - SSH access and, for pcp:// hosts, the orchestrator`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Init(cmd.Context(), outputPath)
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", config.DefaultConfigFilename, "Output file path")

	return cmd
}
