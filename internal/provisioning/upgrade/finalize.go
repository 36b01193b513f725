package upgrade

import (
	"fmt"

	"github.com/imamik/peupgrade/internal/pe"
	"github.com/imamik/peupgrade/internal/provisioning"
	"github.com/imamik/peupgrade/internal/topology"
)

type finalizePhase struct {
	deps Dependencies
}

func (f *finalizePhase) Name() string { return string(StateFinalize) }

// Provision restarts every agent.
func (f *finalizePhase) Provision(ctx *provisioning.Context) error {
	plan := ctx.Plan
	nodes := plan.Topology.Nodes()

	provisioning.LogNodeAction(ctx.Observer, f.Name(), "starting puppet agent", topology.Names(nodes)...)
	if err := pe.ForEach(ctx, topology.Targets(nodes), f.deps.Ops.StartAgent); err != nil {
		return fmt.Errorf("failed to start puppet agents: %w", err)
	}
	ctx.Acted(topology.Names(nodes)...)

	ctx.Result = SuccessMessage(plan.Architecture())
	ctx.Observer.Printf("[%s] %s", f.Name(), ctx.Result)
	return nil
}
