package classifier

import (
	"github.com/imamik/peupgrade/internal/identity"
	"github.com/imamik/peupgrade/internal/topology"
)

// Node group names.
const (
	GroupInfrastructureAgent = "PE Infrastructure Agent"
	GroupCompiler            = "PE Compiler"
	GroupCompilerA           = "PE Compiler Group A"
	GroupCompilerB           = "PE Compiler Group B"
	GroupMaster              = "PE Master"
)

// NodeGroup is the subset of a classifier node group that is managed.
type NodeGroup struct {
	ID          string                    `json:"id,omitempty"`
	Name        string                    `json:"name"`
	Parent      string                    `json:"parent,omitempty"`
	Environment string                    `json:"environment,omitempty"`
	Rule        []any                     `json:"rule,omitempty"`
	Classes     map[string]map[string]any `json:"classes"`
	ConfigData  map[string]map[string]any `json:"config_data,omitempty"`

	// ParentName is resolved to Parent when the group is created.
	ParentName string `json:"-"`
}

// Settings are the inputs to rendering.
type Settings struct {
	Topology *topology.Topology

	CompilerPoolAddress          string
	InternalCompilerAPoolAddress string
	InternalCompilerBPoolAddress string
}

// Render returns the desired node groups. Group B is only rendered when a
// replica exists.
func Render(s Settings) []NodeGroup {
	topo := s.Topology
	primary := topo.Primary.Certname()

	var groups []NodeGroup

	if s.CompilerPoolAddress != "" {
		groups = append(groups, NodeGroup{
			Name: GroupInfrastructureAgent,
			Classes: map[string]map[string]any{
				"puppet_enterprise::profile::agent": {
					"server_list":     []string{s.CompilerPoolAddress},
					"pcp_broker_list": []string{primary + ":8142"},
					"master_uris":     []string{"https://" + s.CompilerPoolAddress + ":8140"},
				},
			},
		})
	}

	groups = append(groups, compilerGroup(GroupCompilerA, topo.Primary.Group,
		databaseHost(topo.PrimaryDatabase, primary),
		nonEmpty(s.InternalCompilerBPoolAddress, primary)))

	if topo.Replica != nil {
		replica := topo.Replica.Certname()
		groups = append(groups, compilerGroup(GroupCompilerB, topo.Replica.Group,
			databaseHost(topo.ReplicaDatabase, replica),
			nonEmpty(s.InternalCompilerAPoolAddress, replica)))
	}

	return groups
}

func compilerGroup(name, tag, dbHost string, puppetdbHosts []string) NodeGroup {
	ports := make([]int, len(puppetdbHosts))
	for i := range ports {
		ports[i] = 8081
	}
	return NodeGroup{
		Name:        name,
		ParentName:  GroupCompiler,
		Environment: "production",
		Rule: []any{"and",
			[]any{"=", extension(identity.PPAuthRole), topology.CompilerRoleValue},
			groupCondition(tag),
		},
		Classes: map[string]map[string]any{
			"puppet_enterprise::profile::puppetdb": {"database_host": dbHost},
			"puppet_enterprise::profile::master": {
				"puppetdb_host": puppetdbHosts,
				"puppetdb_port": ports,
			},
		},
	}
}

// registeredKeys are addressed by short name in trusted.extensions; any
// other extension by its dotted OID.
var registeredKeys = map[identity.Key]bool{
	identity.PPAuthRole: true,
	identity.PPCluster:  true,
}

func extension(k identity.Key) []any {
	if registeredKeys[k] {
		return []any{"trusted", "extensions", k.Name}
	}
	return []any{"trusted", "extensions", k.OID}
}

// groupCondition matches tag under any of the group keys, so every
// compiler the upgrade groups by tag is also classified into that group.
func groupCondition(tag string) []any {
	cond := []any{"or"}
	for _, k := range identity.GroupKeys {
		cond = append(cond, []any{"=", extension(k), tag})
	}
	return cond
}

func databaseHost(db *topology.Node, fallback string) string {
	if db != nil {
		return db.Certname()
	}
	return fallback
}

func nonEmpty(values ...string) []string {
	var out []string
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
