package upgrade

import (
	"fmt"

	"github.com/imamik/peupgrade/internal/pe"
	"github.com/imamik/peupgrade/internal/provisioning"
	"github.com/imamik/peupgrade/internal/topology"
)

type replicaSidePhase struct {
	deps Dependencies
}

func (r *replicaSidePhase) Name() string { return string(StateUpgradeReplicaSide) }

// Provision upgrades the replica's availability group. The replica
// database is installed and converged before the replica itself, whose
// services need the restored authorization rules.
func (r *replicaSidePhase) Provision(ctx *provisioning.Context) error {
	name := r.Name()
	topo := ctx.Plan.Topology

	if topo.Replica == nil {
		ctx.Observer.Printf("[%s] No replica declared, skipping", name)
		return nil
	}

	if err := stopPuppetDB(ctx, r.deps, name, topo.ReplicaGroup); err != nil {
		return err
	}

	if db := topo.ReplicaDatabase; db != nil {
		if err := install(ctx, r.deps, name, *db, false); err != nil {
			return err
		}
		provisioning.LogNodeAction(ctx.Observer, name, "running puppet", db.Name())
		if err := r.deps.Ops.RunOnce(ctx, db.Target); err != nil {
			return fmt.Errorf("failed to run puppet on %s: %w", db.Name(), err)
		}
	}

	primary := topo.Primary.Target
	if err := infraUpgrade(ctx, r.deps, name, primary, pe.UpgradeReplica, []topology.Node{*topo.Replica}); err != nil {
		return err
	}

	return infraUpgrade(ctx, r.deps, name, primary, pe.UpgradeCompiler, topo.ReplicaGroup)
}
