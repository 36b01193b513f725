package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/peupgrade/cmd/peupgrade/handlers"
)

// Plan returns the command that validates a configuration against the live
// nodes and prints the upgrade plan.
func Plan() *cobra.Command {
	var configPath string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show the upgrade plan without changing anything",
		Long: `Read trusted facts from every configured node, classify the
architecture and print each step an upgrade would take.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Plan(cmd.Context(), handlers.PlanOptions{
				ConfigPath: configPath,
				JSON:       jsonOutput,
				LogFormat:  logFormat(cmd),
			})
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to configuration file")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the plan as JSON")
	_ = cmd.MarkFlagRequired("config")

	return cmd
}
