package topology

import (
	"fmt"
	"slices"

	"github.com/imamik/peupgrade/internal/identity"
	"github.com/imamik/peupgrade/internal/remote"
)

// Build validates the declared slots against the resolved trusted facts and
// returns the topology. facts is keyed by target name. Build has no side
// effects.
func Build(d Declared, facts map[string]identity.Facts) (*Topology, error) {
	arch, err := Classify(d.Replica != nil, d.PrimaryDatabase != nil, d.ReplicaDatabase != nil, len(d.Compilers))
	if err != nil {
		return nil, err
	}

	if err := checkDistinct(d.Targets()); err != nil {
		return nil, err
	}

	if d.Primary.Protocol == remote.ProtocolPCP {
		return nil, fmt.Errorf("%w: primary %s cannot use %s://, the orchestrator restarts during the upgrade",
			ErrUnsupportedProtocol, d.Primary.Name, remote.ProtocolPCP)
	}

	topo := &Topology{Architecture: arch}

	if topo.Primary, err = classify(d.Primary, RolePrimary, serverRoleValues, facts); err != nil {
		return nil, err
	}
	if topo.Replica, err = classifyOptional(d.Replica, RoleReplica, serverRoleValues, facts); err != nil {
		return nil, err
	}
	if topo.PrimaryDatabase, err = classifyOptional(d.PrimaryDatabase, RoleDatabase, databaseRoleValues, facts); err != nil {
		return nil, err
	}
	if topo.ReplicaDatabase, err = classifyOptional(d.ReplicaDatabase, RoleDatabaseReplica, databaseRoleValues, facts); err != nil {
		return nil, err
	}
	for _, t := range d.Compilers {
		n, err := classify(t, RoleCompiler, compilerRoleValues, facts)
		if err != nil {
			return nil, err
		}
		topo.Compilers = append(topo.Compilers, n)
	}

	if topo.Replica != nil {
		pg, rg := topo.Primary.Group, topo.Replica.Group
		if pg == "" || rg == "" {
			return nil, fmt.Errorf("%w: primary and replica must both carry an availability group", ErrUnsupportedTopology)
		}
		if pg == rg {
			return nil, fmt.Errorf("%w: primary and replica share availability group %q", ErrUnsupportedTopology, pg)
		}
	}

	topo.PrimaryGroup, topo.ReplicaGroup, topo.Excluded = Group(topo.Primary, topo.Replica, topo.Compilers)
	return topo, nil
}

// Group partitions compilers by equality of their group tag with each
// anchor's tag. Compilers matching neither anchor are excluded.
func Group(primary Node, replica *Node, compilers []Node) (primaryGroup, replicaGroup, excluded []Node) {
	for _, c := range compilers {
		switch {
		case c.Group == primary.Group:
			primaryGroup = append(primaryGroup, c)
		case replica != nil && c.Group == replica.Group:
			replicaGroup = append(replicaGroup, c)
		default:
			excluded = append(excluded, c)
		}
	}
	return primaryGroup, replicaGroup, excluded
}

func classify(t remote.Target, role Role, accepted []string, facts map[string]identity.Facts) (Node, error) {
	f, ok := facts[t.Name]
	if !ok {
		return Node{}, fmt.Errorf("%w: no trusted facts for %s %s", identity.ErrMissingTrustedFacts, role, t.Name)
	}
	value, err := f.Role()
	if err != nil {
		return Node{}, err
	}
	if !slices.Contains(accepted, value) {
		return Node{}, fmt.Errorf("%w: %s is declared as %s but its role is %q (want one of %v)",
			ErrUnsupportedTopology, t.Name, role, value, accepted)
	}
	return Node{
		Target:    t,
		Role:      role,
		RoleValue: value,
		Group:     f.Group(),
		Facts:     f,
	}, nil
}

func classifyOptional(t *remote.Target, role Role, accepted []string, facts map[string]identity.Facts) (*Node, error) {
	if t == nil {
		return nil, nil
	}
	n, err := classify(*t, role, accepted, facts)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func checkDistinct(targets []remote.Target) error {
	seen := make(map[string]bool, len(targets))
	for _, t := range targets {
		if seen[t.Host] {
			return fmt.Errorf("%w: host %s is declared more than once", ErrUnsupportedTopology, t.Host)
		}
		seen[t.Host] = true
	}
	return nil
}
