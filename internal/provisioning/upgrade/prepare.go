package upgrade

import (
	"fmt"

	"github.com/imamik/peupgrade/internal/pe"
	"github.com/imamik/peupgrade/internal/provisioning"
	"github.com/imamik/peupgrade/internal/topology"
)

type preparePhase struct {
	deps Dependencies
}

func (p *preparePhase) Name() string { return string(StatePrepare) }

// Provision stages the installer and stops every agent.
func (p *preparePhase) Provision(ctx *provisioning.Context) error {
	name := p.Name()
	plan := ctx.Plan
	installTargets := topology.Targets(plan.Topology.InstallTargets())

	provisioning.LogNodeAction(ctx.Observer, name, "staging "+plan.Artifact.Filename, topology.Names(plan.Topology.InstallTargets())...)
	if _, err := p.deps.Stager.Ensure(ctx, installTargets, plan.Artifact); err != nil {
		return fmt.Errorf("failed to stage %s: %w", plan.Artifact.Filename, err)
	}
	if plan.PEConf != "" {
		if err := p.deps.Stager.Place(ctx, installTargets, plan.PEConf, plan.RemotePEConf); err != nil {
			return fmt.Errorf("failed to stage answer file: %w", err)
		}
	}
	ctx.Acted(topology.Names(plan.Topology.InstallTargets())...)

	nodes := plan.Topology.Nodes()
	provisioning.LogNodeAction(ctx.Observer, name, "stopping puppet agent", topology.Names(nodes)...)
	if err := pe.ForEach(ctx, topology.Targets(nodes), p.deps.Ops.StopAgent); err != nil {
		return fmt.Errorf("failed to stop puppet agents: %w", err)
	}
	ctx.Acted(topology.Names(nodes)...)
	return nil
}
