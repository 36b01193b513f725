package upgrade

import (
	"context"
	"fmt"

	"github.com/imamik/peupgrade/internal/classifier"
	"github.com/imamik/peupgrade/internal/identity"
	"github.com/imamik/peupgrade/internal/installer"
	"github.com/imamik/peupgrade/internal/pe"
	"github.com/imamik/peupgrade/internal/provisioning"
	"github.com/imamik/peupgrade/internal/readiness"
	"github.com/imamik/peupgrade/internal/remote"
	"github.com/imamik/peupgrade/internal/topology"
)

// reachabilityRounds is how often the orchestrator and node connections
// are awaited after the primary install. The installer can restart the
// orchestrator a second time after it first reports running.
const reachabilityRounds = 2

type primarySidePhase struct {
	deps Dependencies
}

func (p *primarySidePhase) Name() string { return string(StateUpgradePrimarySide) }

// Provision upgrades the primary's availability group: its database, the
// primary and then its compilers.
func (p *primarySidePhase) Provision(ctx *provisioning.Context) error {
	name := p.Name()
	plan := ctx.Plan
	topo := plan.Topology
	primary := topo.Primary

	if err := stopPuppetDB(ctx, p.deps, name, topo.PrimaryGroup); err != nil {
		return err
	}

	if topo.PrimaryDatabase != nil {
		if err := install(ctx, p.deps, name, *topo.PrimaryDatabase, false); err != nil {
			return err
		}
	}

	if err := install(ctx, p.deps, name, primary, topo.Clustered()); err != nil {
		return err
	}

	if topo.UsesProtocol(remote.ProtocolPCP) {
		if err := awaitOrchestrator(ctx, p.deps, name, topo); err != nil {
			return err
		}
	}

	// The installer resets authorization rules; a run on the primary and
	// its database restores them.
	converge := []topology.Node{primary}
	if topo.PrimaryDatabase != nil {
		converge = append(converge, *topo.PrimaryDatabase)
	}
	provisioning.LogNodeAction(ctx.Observer, name, "running puppet", topology.Names(converge)...)
	if err := pe.ForEach(ctx, topology.Targets(converge), p.deps.Ops.RunOnce); err != nil {
		return fmt.Errorf("failed to run puppet after primary upgrade: %w", err)
	}
	ctx.Acted(topology.Names(converge)...)

	for _, c := range topo.CompilersMissingRoleKey() {
		provisioning.LogNodeAction(ctx.Observer, name, "adding pp_auth_role to certificate", c.Name())
		exts := map[identity.Key]string{identity.PPAuthRole: topology.CompilerRoleValue}
		if err := p.deps.Certs.AddExtensions(ctx, c.Target, c.Certname(), exts); err != nil {
			return fmt.Errorf("failed to add pp_auth_role to %s: %w", c.Name(), err)
		}
		ctx.Acted(c.Name())
	}

	groups := classifier.Render(classifier.Settings{
		Topology:                     topo,
		CompilerPoolAddress:          ctx.Config.CompilerPoolAddress,
		InternalCompilerAPoolAddress: ctx.Config.InternalCompilerAPoolAddress,
		InternalCompilerBPoolAddress: ctx.Config.InternalCompilerBPoolAddress,
	})
	ctx.Observer.Printf("[%s] Applying %d node groups", name, len(groups))
	if err := p.deps.Classifier.Apply(ctx, groups); err != nil {
		return fmt.Errorf("failed to update classification: %w", err)
	}

	return infraUpgrade(ctx, p.deps, name, primary.Target, pe.UpgradeCompiler, topo.PrimaryGroup)
}

// awaitOrchestrator waits for the orchestrator on the primary and then for
// every node to answer.
func awaitOrchestrator(ctx *provisioning.Context, deps Dependencies, name string, topo *topology.Topology) error {
	nodes := topology.Targets(topo.Nodes())
	for round := 1; round <= reachabilityRounds; round++ {
		ctx.Observer.Printf("[%s] Waiting for %s on %s (%d/%d)", name, readiness.ServiceOrchestrator, topo.Primary.Name(), round, reachabilityRounds)
		if err := deps.Waiter.WaitReady(ctx, readiness.ServiceOrchestrator, topo.Primary.Target, ctx.Timeouts.ServiceReady); err != nil {
			return err
		}
		ctx.Observer.Printf("[%s] Waiting for %d nodes to reconnect (%d/%d)", name, len(nodes), round, reachabilityRounds)
		if err := deps.Waiter.WaitReachable(ctx, nodes, ctx.Timeouts.Reachable); err != nil {
			return err
		}
	}
	return nil
}

// stopPuppetDB stops PuppetDB on compilers so they do not hold database
// connections while their database upgrades.
func stopPuppetDB(ctx *provisioning.Context, deps Dependencies, name string, compilers []topology.Node) error {
	if len(compilers) == 0 {
		return nil
	}
	provisioning.LogNodeAction(ctx.Observer, name, "stopping "+pe.PuppetDBService, topology.Names(compilers)...)
	err := pe.ForEach(ctx, topology.Targets(compilers), func(c context.Context, t remote.Target) error {
		return deps.Ops.StopService(c, t, pe.PuppetDBService)
	})
	if err != nil {
		return fmt.Errorf("failed to stop %s on compilers: %w", pe.PuppetDBService, err)
	}
	ctx.Acted(topology.Names(compilers)...)
	return nil
}

// install runs the installer wrapper on a node and leaves its agent stopped.
func install(ctx *provisioning.Context, deps Dependencies, name string, n topology.Node, clustered bool) error {
	plan := ctx.Plan
	provisioning.LogNodeAction(ctx.Observer, name, "installing "+plan.Version, n.Name())

	runner := remote.NodeRunner{Exec: deps.Exec, Target: n.Target}
	_, err := deps.Installer.Install(ctx, runner, installer.Options{
		Tarball:    plan.Tarball,
		Clustered:  clustered,
		AgentState: installer.AgentStopped,
		PEConf:     plan.RemotePEConf,
	})
	if err != nil {
		return fmt.Errorf("failed to upgrade %s: %w", n.Name(), err)
	}
	ctx.Acted(n.Name())
	return nil
}

// infraUpgrade upgrades nodes through the primary in one directive.
func infraUpgrade(ctx *provisioning.Context, deps Dependencies, name string, primary remote.Target, kind string, nodes []topology.Node) error {
	if len(nodes) == 0 {
		return nil
	}
	provisioning.LogNodeAction(ctx.Observer, name, "puppet infrastructure upgrade "+kind, topology.Names(nodes)...)
	if err := deps.Ops.InfraUpgrade(ctx, primary, kind, topology.Certnames(nodes)); err != nil {
		return err
	}
	ctx.Acted(topology.Names(nodes)...)
	return nil
}
