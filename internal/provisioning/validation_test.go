package provisioning

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/peupgrade/internal/identity"
	"github.com/imamik/peupgrade/internal/remote"
	"github.com/imamik/peupgrade/internal/topology"
)

func node(uri string, role topology.Role, group string, withRoleKey bool) topology.Node {
	t := remote.MustParseTarget(uri)
	ext := map[string]string{identity.PeadmRole.OID: "x"}
	if withRoleKey {
		ext[identity.PPAuthRole.OID] = "x"
	}
	return topology.Node{
		Target: t,
		Role:   role,
		Group:  group,
		Facts:  identity.Facts{Certname: t.Name, Extensions: ext},
	}
}

func testPlan(current, target string) *Plan {
	primary := node("pe-primary", topology.RolePrimary, "A", true)
	return &Plan{
		Version:        target,
		CurrentVersion: current,
		Topology: &topology.Topology{
			Architecture: topology.Architecture{Class: topology.ClassStandalone},
			Primary:      primary,
		},
	}
}

func fieldsBySeverity(errs []ValidationError, severity string) []string {
	var out []string
	for _, e := range errs {
		if e.Severity == severity {
			out = append(out, e.Field)
		}
	}
	return out
}

func TestValidatePlan_Versions(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		current  string
		target   string
		errors   []string
		warnings []string
	}{
		{name: "upgrade", current: "2019.8.12", target: "2021.7.1"},
		{name: "unknown current", current: "", target: "2021.7.1"},
		{name: "downgrade", current: "2021.7.1", target: "2019.8.12", errors: []string{"Version"}},
		{name: "same version", current: "2021.7.1", target: "2021.7.1", warnings: []string{"Version"}},
		{name: "unparseable current", current: "garbage", target: "2021.7.1", warnings: []string{"CurrentVersion"}},
		{name: "invalid target", current: "2021.7.1", target: "next", errors: []string{"Version"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			errs := ValidatePlan(testPlan(tt.current, tt.target))
			assert.Equal(t, tt.errors, fieldsBySeverity(errs, "error"))
			assert.Equal(t, tt.warnings, fieldsBySeverity(errs, "warning"))
		})
	}
}

func TestValidatePlan_Topology(t *testing.T) {
	t.Parallel()
	plan := testPlan("2019.8.12", "2021.7.1")
	replica := node("pe-replica", topology.RoleReplica, "B", true)
	stray := node("c3", topology.RoleCompiler, "C", true)
	legacy := node("pcp://c1", topology.RoleCompiler, "A", false)
	plan.Topology.Replica = &replica
	plan.Topology.Compilers = []topology.Node{legacy, stray}
	plan.Topology.PrimaryGroup = []topology.Node{legacy}
	plan.Topology.Excluded = []topology.Node{stray}

	errs := ValidatePlan(plan)

	assert.Equal(t, []string{"Compilers"}, fieldsBySeverity(errs, "error"))
	assert.ElementsMatch(t, []string{"Compilers", "ReplicaGroup", "Nodes"}, fieldsBySeverity(errs, "warning"))
}

func TestCheckPlan(t *testing.T) {
	t.Parallel()
	observer := NewMockObserver()

	plan := testPlan("2021.7.1", "2021.7.1")
	require.NoError(t, CheckPlan(observer, plan))
	assert.Len(t, plan.Warnings, 1)
	require.Len(t, observer.events, 1)
	assert.Equal(t, EventValidationWarning, observer.events[0].Type)

	err := CheckPlan(observer, testPlan("2023.1.0", "2021.7.1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "downgrade from 2023.1.0 to 2021.7.1")
}
