// Package commands defines the CLI command structure and flag bindings.
//
// This package contains cobra command definitions that handle argument parsing,
// flag binding, and validation. Command execution is delegated to handler
// functions in the handlers package.
package commands

import "github.com/spf13/cobra"

const logFormatFlag = "log-format"

// Root returns the root command for the peupgrade CLI.
func Root() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "peupgrade",
		Short:         "Rolling upgrades for Puppet Enterprise",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().String(logFormatFlag, "text", "Log format: text or json")

	// Core commands
	cmd.AddCommand(Init())
	cmd.AddCommand(Plan())
	cmd.AddCommand(Upgrade())
	cmd.AddCommand(Install())

	// Utility commands
	cmd.AddCommand(Version())
	cmd.AddCommand(Completion())

	return cmd
}

// logFormat reads the inherited --log-format flag.
func logFormat(cmd *cobra.Command) string {
	if f := cmd.Flag(logFormatFlag); f != nil {
		return f.Value.String()
	}
	return "text"
}
