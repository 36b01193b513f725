package topology

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/peupgrade/internal/identity"
	"github.com/imamik/peupgrade/internal/remote"
)

func facts(certname, role, group string) identity.Facts {
	exts := map[string]string{identity.PPAuthRole.OID: role}
	if group != "" {
		exts[identity.PeadmAvailabilityGroup.OID] = group
	}
	return identity.Facts{Certname: certname, Extensions: exts}
}

func ptr(t remote.Target) *remote.Target { return &t }

func TestClassify_AllCombinations(t *testing.T) {
	valid := map[[3]bool]Class{
		{false, false, false}: ClassStandalone,
		{true, false, false}:  ClassStandalone,
		{false, true, false}:  ClassExtraLarge,
		{true, true, true}:    ClassExtraLarge,
	}

	for _, replica := range []bool{false, true} {
		for _, pdb := range []bool{false, true} {
			for _, rdb := range []bool{false, true} {
				for compilers := 0; compilers <= 4; compilers++ {
					name := fmt.Sprintf("replica=%t/pdb=%t/rdb=%t/compilers=%d", replica, pdb, rdb, compilers)
					t.Run(name, func(t *testing.T) {
						arch, err := Classify(replica, pdb, rdb, compilers)
						class, ok := valid[[3]bool{replica, pdb, rdb}]
						if !ok {
							require.ErrorIs(t, err, ErrUnsupportedTopology)
							assert.Equal(t, Architecture{}, arch)
							return
						}
						require.NoError(t, err)
						if class == ClassStandalone && compilers > 0 {
							class = ClassLarge
						}
						assert.Equal(t, class, arch.Class)
						assert.Equal(t, replica, arch.HA)
					})
				}
			}
		}
	}
}

func TestArchitecture_String(t *testing.T) {
	tests := []struct {
		arch Architecture
		want string
	}{
		{Architecture{Class: ClassStandalone}, "standalone"},
		{Architecture{Class: ClassStandalone, HA: true}, "ha"},
		{Architecture{Class: ClassLarge}, "large"},
		{Architecture{Class: ClassLarge, HA: true}, "large-ha"},
		{Architecture{Class: ClassExtraLarge}, "extra-large"},
		{Architecture{Class: ClassExtraLarge, HA: true}, "extra-large-ha"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.arch.String())
	}
}

func TestBuild_Standalone(t *testing.T) {
	d := Declared{Primary: remote.MustParseTarget("primary")}
	topo, err := Build(d, map[string]identity.Facts{
		"primary": facts("primary", "puppet/server", ""),
	})
	require.NoError(t, err)

	assert.Equal(t, "standalone", topo.Architecture.String())
	assert.Equal(t, RolePrimary, topo.Primary.Role)
	assert.Nil(t, topo.Replica)
	assert.Equal(t, []string{"primary"}, Names(topo.InstallTargets()))
	assert.False(t, topo.Clustered())
}

func largeHA(t *testing.T) (Declared, map[string]identity.Facts) {
	t.Helper()
	d := Declared{
		Primary: remote.MustParseTarget("primary"),
		Replica: ptr(remote.MustParseTarget("replica")),
		Compilers: []remote.Target{
			remote.MustParseTarget("c1"), remote.MustParseTarget("pcp://c2"),
			remote.MustParseTarget("c3"), remote.MustParseTarget("c4"),
		},
	}
	f := map[string]identity.Facts{
		"primary": facts("primary", "puppet/server", "A"),
		"replica": facts("replica", "puppet/server", "B"),
		"c1":      facts("c1", "pe_compiler", "A"),
		"c2":      facts("c2", "pe_compiler", "B"),
		"c3":      facts("c3", "pe_compiler", "A"),
		"c4":      facts("c4", "pe_compiler", "B"),
	}
	return d, f
}

func TestBuild_LargeHA(t *testing.T) {
	d, f := largeHA(t)
	topo, err := Build(d, f)
	require.NoError(t, err)

	assert.Equal(t, "large-ha", topo.Architecture.String())
	assert.Equal(t, []string{"c1", "c3"}, Names(topo.PrimaryGroup))
	assert.Equal(t, []string{"c2", "c4"}, Names(topo.ReplicaGroup))
	assert.Empty(t, topo.Excluded)
	assert.False(t, topo.Clustered(), "the primary hosts its own database")
	assert.True(t, topo.UsesProtocol(remote.ProtocolPCP))
	assert.Equal(t, []string{"primary"}, Names(topo.InstallTargets()))
	assert.Len(t, topo.Nodes(), 6)
	assert.Equal(t, map[Role]int{RolePrimary: 1, RoleReplica: 1, RoleCompiler: 4}, topo.CountByRole())
}

func TestBuild_ExtraLargeHA(t *testing.T) {
	d := Declared{
		Primary:         remote.MustParseTarget("primary"),
		Replica:         ptr(remote.MustParseTarget("replica")),
		PrimaryDatabase: ptr(remote.MustParseTarget("db-a")),
		ReplicaDatabase: ptr(remote.MustParseTarget("db-b")),
	}
	f := map[string]identity.Facts{
		"primary": facts("primary", "puppet/server", "A"),
		"replica": facts("replica", "puppet/server", "B"),
		"db-a":    facts("db-a", "puppet/puppetdb-database", "A"),
		"db-b":    facts("db-b", "puppet/puppetdb-database", "B"),
	}

	topo, err := Build(d, f)
	require.NoError(t, err)
	assert.Equal(t, "extra-large-ha", topo.Architecture.String())
	assert.Equal(t, RoleDatabaseReplica, topo.ReplicaDatabase.Role)
	assert.Equal(t, []string{"primary", "db-a", "db-b"}, Names(topo.InstallTargets()))
	assert.True(t, topo.Clustered())
}

func TestBuild_LegacyKeys(t *testing.T) {
	d := Declared{
		Primary:   remote.MustParseTarget("primary"),
		Compilers: []remote.Target{remote.MustParseTarget("c1")},
	}
	f := map[string]identity.Facts{
		"primary": {Certname: "primary", Extensions: map[string]string{
			identity.PeadmRole.OID: "puppet/master", identity.PPCluster.OID: "A",
		}},
		"c1": {Certname: "c1", Extensions: map[string]string{
			identity.PeadmRole.OID: "puppet/compiler", identity.PPCluster.OID: "A",
		}},
	}

	topo, err := Build(d, f)
	require.NoError(t, err)
	assert.Equal(t, "large", topo.Architecture.String())
	assert.Equal(t, []string{"c1"}, Names(topo.PrimaryGroup))
	assert.Equal(t, []string{"c1"}, Names(topo.CompilersMissingRoleKey()))
}

func TestBuild_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(d *Declared, f map[string]identity.Facts)
		wantErr error
	}{
		{
			name: "replica database without primary database",
			mutate: func(d *Declared, f map[string]identity.Facts) {
				d.ReplicaDatabase = ptr(remote.MustParseTarget("db-b"))
				f["db-b"] = facts("db-b", "puppet/puppetdb-database", "B")
			},
			wantErr: ErrUnsupportedTopology,
		},
		{
			name: "role mismatch",
			mutate: func(_ *Declared, f map[string]identity.Facts) {
				f["c1"] = facts("c1", "puppet/server", "A")
			},
			wantErr: ErrUnsupportedTopology,
		},
		{
			name: "replica without group",
			mutate: func(_ *Declared, f map[string]identity.Facts) {
				f["replica"] = facts("replica", "puppet/server", "")
			},
			wantErr: ErrUnsupportedTopology,
		},
		{
			name: "primary and replica share a group",
			mutate: func(_ *Declared, f map[string]identity.Facts) {
				f["replica"] = facts("replica", "puppet/server", "A")
			},
			wantErr: ErrUnsupportedTopology,
		},
		{
			name: "duplicate host",
			mutate: func(d *Declared, _ map[string]identity.Facts) {
				d.Compilers = append(d.Compilers, remote.MustParseTarget("pcp://c1"))
			},
			wantErr: ErrUnsupportedTopology,
		},
		{
			name: "pcp primary",
			mutate: func(d *Declared, _ map[string]identity.Facts) {
				d.Primary = remote.MustParseTarget("pcp://primary")
			},
			wantErr: ErrUnsupportedProtocol,
		},
		{
			name: "missing facts",
			mutate: func(_ *Declared, f map[string]identity.Facts) {
				delete(f, "c4")
			},
			wantErr: identity.ErrMissingTrustedFacts,
		},
		{
			name: "no role key",
			mutate: func(_ *Declared, f map[string]identity.Facts) {
				f["c4"] = identity.Facts{Certname: "c4", Extensions: map[string]string{}}
			},
			wantErr: identity.ErrMissingTrustedFacts,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, f := largeHA(t)
			tt.mutate(&d, f)
			topo, err := Build(d, f)
			assert.Nil(t, topo)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestGroup_MatchingAndExcluded(t *testing.T) {
	primary := Node{Target: remote.MustParseTarget("p"), Group: "A"}
	replica := &Node{Target: remote.MustParseTarget("r"), Group: "B"}

	groups := []string{"A", "B", "C", "", "A", "B", "b"}
	var compilers []Node
	for i, g := range groups {
		compilers = append(compilers, Node{Target: remote.MustParseTarget(fmt.Sprintf("c%d", i)), Group: g})
	}

	pg, rg, ex := Group(primary, replica, compilers)
	for _, n := range pg {
		assert.Equal(t, primary.Group, n.Group)
	}
	for _, n := range rg {
		assert.Equal(t, replica.Group, n.Group)
	}
	for _, n := range ex {
		assert.NotEqual(t, primary.Group, n.Group)
		assert.NotEqual(t, replica.Group, n.Group)
	}
	assert.Equal(t, len(compilers), len(pg)+len(rg)+len(ex))
	assert.Equal(t, []string{"c0", "c4"}, Names(pg))
	assert.Equal(t, []string{"c1", "c5"}, Names(rg))
	assert.Equal(t, []string{"c2", "c3", "c6"}, Names(ex))
}

func TestGroup_NoReplica(t *testing.T) {
	primary := Node{Target: remote.MustParseTarget("p"), Group: "A"}
	compilers := []Node{
		{Target: remote.MustParseTarget("c1"), Group: "A"},
		{Target: remote.MustParseTarget("c2"), Group: "B"},
	}

	pg, rg, ex := Group(primary, nil, compilers)
	assert.Equal(t, []string{"c1"}, Names(pg))
	assert.Empty(t, rg)
	assert.Equal(t, []string{"c2"}, Names(ex))
}

func TestCheckTransfer(t *testing.T) {
	d := Declared{
		Primary:         remote.MustParseTarget("primary"),
		PrimaryDatabase: ptr(remote.MustParseTarget("pcp://db-a")),
	}
	topo, err := Build(d, map[string]identity.Facts{
		"primary": facts("primary", "puppet/server", "A"),
		"db-a":    facts("db-a", "puppet/puppetdb-database", "A"),
	})
	require.NoError(t, err)

	assert.ErrorIs(t, topo.CheckTransfer(true), ErrUnsupportedProtocol)
	assert.NoError(t, topo.CheckTransfer(false))
}
