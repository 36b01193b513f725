package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/imamik/peupgrade/cmd/peupgrade/handlers"
	"github.com/imamik/peupgrade/internal/installer"
)

// Install returns the command that runs the PE installer on this machine.
//
// The process exit code is the installer's, after reinterpretation for
// clustered installs.
func Install() *cobra.Command {
	var opts handlers.InstallOptions
	var agentState string

	cmd := &cobra.Command{
		Use:   "install",
		Short: "Run the PE installer on this node",
		Long: `Extract a PE tarball and run puppet-enterprise-installer on this node.

With --clustered, pe-puppetdb is kept from blocking the installer while
its database is not yet upgraded, and an installer exit code of 1 counts
as success when pe-puppetserver, pe-orchestration-services and
pe-console-services are all active.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			switch installer.AgentState(agentState) {
			case installer.AgentRunning, installer.AgentStopped:
				opts.AgentState = installer.AgentState(agentState)
			default:
				return fmt.Errorf("invalid --agent-state %q: must be running or stopped", agentState)
			}
			opts.LogFormat = logFormat(cmd)
			_, err := handlers.Install(cmd.Context(), opts)
			return err
		},
	}

	cmd.Flags().StringVar(&opts.Tarball, "tarball", "", "Path to the PE tarball")
	cmd.Flags().BoolVar(&opts.Clustered, "clustered", false, "The node's PuppetDB database is hosted elsewhere")
	cmd.Flags().StringVar(&agentState, "agent-state", string(installer.AgentRunning), "Puppet agent state after install: running or stopped")
	cmd.Flags().StringVar(&opts.PEConf, "pe-conf", "", "Path to a pe.conf answer file")
	_ = cmd.MarkFlagRequired("tarball")

	return cmd
}
