package upgrade

import (
	"github.com/imamik/peupgrade/internal/pe"
	"github.com/imamik/peupgrade/internal/provisioning"
	"github.com/imamik/peupgrade/internal/remote"
	"github.com/imamik/peupgrade/internal/topology"
)

// Step is one action a run would take.
type Step struct {
	Phase  State    `json:"phase"`
	Action string   `json:"action"`
	Nodes  []string `json:"nodes"`
}

// Steps lists the actions a run of plan takes, in order.
func Steps(plan *provisioning.Plan) []Step {
	topo := plan.Topology
	var steps []Step
	add := func(phase State, action string, nodes ...topology.Node) {
		if len(nodes) == 0 {
			return
		}
		steps = append(steps, Step{Phase: phase, Action: action, Nodes: topology.Names(nodes)})
	}

	add(StatePrepare, "stage "+plan.Artifact.Filename, topo.InstallTargets()...)
	if plan.PEConf != "" {
		add(StatePrepare, "stage answer file", topo.InstallTargets()...)
	}
	add(StatePrepare, "stop puppet agent", topo.Nodes()...)

	add(StateUpgradePrimarySide, "stop "+pe.PuppetDBService, topo.PrimaryGroup...)
	if topo.PrimaryDatabase != nil {
		add(StateUpgradePrimarySide, "install "+plan.Version, *topo.PrimaryDatabase)
	}
	if topo.Clustered() {
		add(StateUpgradePrimarySide, "install "+plan.Version+" (clustered)", topo.Primary)
	} else {
		add(StateUpgradePrimarySide, "install "+plan.Version, topo.Primary)
	}
	if topo.UsesProtocol(remote.ProtocolPCP) {
		add(StateUpgradePrimarySide, "wait for orchestrator and node connections", topo.Nodes()...)
	}
	converge := []topology.Node{topo.Primary}
	if topo.PrimaryDatabase != nil {
		converge = append(converge, *topo.PrimaryDatabase)
	}
	add(StateUpgradePrimarySide, "run puppet", converge...)
	add(StateUpgradePrimarySide, "add pp_auth_role to certificate", topo.CompilersMissingRoleKey()...)
	add(StateUpgradePrimarySide, "update node groups", topo.Primary)
	add(StateUpgradePrimarySide, "upgrade compilers", topo.PrimaryGroup...)

	if topo.Replica != nil {
		add(StateUpgradeReplicaSide, "stop "+pe.PuppetDBService, topo.ReplicaGroup...)
		if db := topo.ReplicaDatabase; db != nil {
			add(StateUpgradeReplicaSide, "install "+plan.Version, *db)
			add(StateUpgradeReplicaSide, "run puppet", *db)
		}
		add(StateUpgradeReplicaSide, "upgrade replica", *topo.Replica)
		add(StateUpgradeReplicaSide, "upgrade compilers", topo.ReplicaGroup...)
	}

	add(StateFinalize, "start puppet agent", topo.Nodes()...)
	return steps
}
