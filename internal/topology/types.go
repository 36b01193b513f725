package topology

import (
	"errors"

	"github.com/imamik/peupgrade/internal/identity"
	"github.com/imamik/peupgrade/internal/remote"
)

var (
	// ErrUnsupportedTopology is returned when the declared and resolved
	// nodes match no supported architecture.
	ErrUnsupportedTopology = errors.New("unsupported topology")

	// ErrUnsupportedProtocol is returned when a node's transport cannot
	// perform what its role requires.
	ErrUnsupportedProtocol = errors.New("unsupported protocol")
)

// Role is a node's infrastructure role for the duration of a run.
type Role string

const (
	RolePrimary         Role = "primary"
	RoleReplica         Role = "primary-replica"
	RoleCompiler        Role = "compiler"
	RoleDatabase        Role = "database"
	RoleDatabaseReplica Role = "database-replica"
)

// Trusted fact role values accepted per slot. Current values are written by
// pp_auth_role, legacy ones by peadm_role.
var (
	serverRoleValues   = []string{"puppet/server", "puppet/master"}
	compilerRoleValues = []string{"pe_compiler", "puppet/compiler"}
	databaseRoleValues = []string{"puppet/puppetdb-database"}
)

// CompilerRoleValue is the pp_auth_role value PE expects on compilers.
const CompilerRoleValue = "pe_compiler"

// Node is a classified node.
type Node struct {
	Target remote.Target
	Role   Role
	// RoleValue is the raw trusted fact value the role was derived from.
	RoleValue string
	Group     string
	Facts     identity.Facts
}

// Name returns the target name.
func (n Node) Name() string { return n.Target.Name }

// Certname returns the node's certname.
func (n Node) Certname() string {
	if n.Facts.Certname != "" {
		return n.Facts.Certname
	}
	return n.Target.Name
}

// Declared holds the host slots from configuration. Optional slots are nil.
type Declared struct {
	Primary         remote.Target
	Replica         *remote.Target
	PrimaryDatabase *remote.Target
	ReplicaDatabase *remote.Target
	Compilers       []remote.Target
}

// Targets returns every declared target in slot order.
func (d Declared) Targets() []remote.Target {
	out := []remote.Target{d.Primary}
	for _, t := range []*remote.Target{d.Replica, d.PrimaryDatabase, d.ReplicaDatabase} {
		if t != nil {
			out = append(out, *t)
		}
	}
	return append(out, d.Compilers...)
}

// Topology is the validated set of nodes. Optional roles are nil.
type Topology struct {
	Architecture Architecture

	Primary         Node
	Replica         *Node
	PrimaryDatabase *Node
	ReplicaDatabase *Node
	Compilers       []Node

	// PrimaryGroup and ReplicaGroup are the compilers that fail over with
	// the primary and the replica. Excluded compilers matched neither.
	PrimaryGroup []Node
	ReplicaGroup []Node
	Excluded     []Node
}
