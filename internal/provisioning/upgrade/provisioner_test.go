package upgrade

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/peupgrade/internal/config"
	"github.com/imamik/peupgrade/internal/identity"
	"github.com/imamik/peupgrade/internal/installer"
	"github.com/imamik/peupgrade/internal/provisioning"
	"github.com/imamik/peupgrade/internal/readiness"
	"github.com/imamik/peupgrade/internal/topology"
)

const tarball = "puppet-enterprise-2021.7.1-el-8-x86_64.tar.gz"

func serverFacts(name, group string) identity.Facts {
	return identity.Facts{Certname: name, Extensions: map[string]string{
		identity.PPAuthRole.OID:             "puppet/server",
		identity.PeadmAvailabilityGroup.OID: group,
	}}
}

func databaseFacts(name, group string) identity.Facts {
	return identity.Facts{Certname: name, Extensions: map[string]string{
		identity.PPAuthRole.OID:             "puppet/puppetdb-database",
		identity.PeadmAvailabilityGroup.OID: group,
	}}
}

func compilerFacts(name, group string) identity.Facts {
	return identity.Facts{Certname: name, Extensions: map[string]string{
		identity.PPAuthRole.OID:             "pe_compiler",
		identity.PeadmAvailabilityGroup.OID: group,
	}}
}

// legacyCompilerFacts carries only the peadm-era keys.
func legacyCompilerFacts(name, group string) identity.Facts {
	return identity.Facts{Certname: name, Extensions: map[string]string{
		identity.PeadmRole.OID: "puppet/compiler",
		identity.PPCluster.OID: group,
	}}
}

type harness struct {
	j          *journal
	deps       Dependencies
	resolver   *fakeResolver
	ops        *fakeOps
	waiter     *fakeWaiter
	installer  *fakeInstaller
	classifier *fakeClassifier
	metrics    *fakeMetrics
}

func newHarness(facts ...identity.Facts) *harness {
	j := &journal{}
	h := &harness{
		j:          j,
		resolver:   &fakeResolver{facts: make(map[string]identity.Facts)},
		ops:        &fakeOps{j: j, version: "2019.8.12"},
		waiter:     &fakeWaiter{j: j},
		installer:  &fakeInstaller{j: j, fail: make(map[string]error)},
		classifier: &fakeClassifier{j: j},
		metrics:    &fakeMetrics{},
	}
	for _, f := range facts {
		h.resolver.facts[f.Certname] = f
	}
	h.deps = Dependencies{
		Exec:       platformExec(),
		Resolver:   h.resolver,
		Stager:     &fakeStager{j: j},
		Ops:        h.ops,
		Waiter:     h.waiter,
		Installer:  h.installer,
		Certs:      &fakeCerts{j: j},
		Classifier: h.classifier,
	}
	return h
}

func (h *harness) run(cfg *config.Config, dryRun bool) (*Provisioner, *provisioning.Context, string, error) {
	ctx := provisioning.NewContext(context.Background(), cfg, quietObserver{})
	p := NewProvisioner(h.deps, ProvisionerOptions{DryRun: dryRun, Metrics: h.metrics})
	msg, err := p.Run(ctx)
	return p, ctx, msg, err
}

func baseConfig() *config.Config {
	return &config.Config{
		PrimaryHost:  "pe-primary",
		Version:      "2021.7.1",
		ReleaseURL:   config.DefaultReleaseURL,
		UploadDir:    "/tmp",
		DownloadMode: config.DownloadUpload,
	}
}

// largeHA is primary + replica + two compilers per group, with the
// database on the primary.
func largeHA() (*config.Config, *harness) {
	cfg := baseConfig()
	cfg.ReplicaHost = "pe-replica"
	cfg.CompilerHosts = []string{"c1", "c2", "c3", "c4"}
	h := newHarness(
		serverFacts("pe-primary", "A"),
		serverFacts("pe-replica", "B"),
		compilerFacts("c1", "A"),
		compilerFacts("c2", "A"),
		compilerFacts("c3", "B"),
		legacyCompilerFacts("c4", "B"),
	)
	return cfg, h
}

func TestUpgrade_ScenarioStandalone(t *testing.T) {
	t.Parallel()
	h := newHarness(serverFacts("pe-primary", ""))

	p, ctx, msg, err := h.run(baseConfig(), false)

	require.NoError(t, err)
	assert.Equal(t, "Upgrade of Puppet Enterprise standalone completed.", msg)
	assert.Equal(t, StateDone, p.State())
	assert.Equal(t, "standalone", ctx.Plan.Architecture())

	assert.Equal(t, []string{"stage " + tarball + " pe-primary"}, h.j.withPrefix("stage "))
	assert.Equal(t, []string{"install pe-primary clustered=false agent=stopped"}, h.j.withPrefix("install "))
	assert.Empty(t, h.j.withPrefix("infra-upgrade "))
	assert.Empty(t, h.j.withPrefix("wait-"))
	assert.Equal(t, []string{"start-agent pe-primary"}, h.j.withPrefix("start-agent "))

	results := p.Results()
	require.Len(t, results, 5)
	assert.Equal(t, string(StateUpgradeReplicaSide), results[3].Phase)
	assert.Empty(t, results[3].Targets, "replica side is a no-op")
	assert.Equal(t, []string{"pe-primary"}, results[4].Targets)

	assert.True(t, h.metrics.finished)
	assert.Equal(t, "standalone", h.metrics.arch)
	assert.Equal(t, map[string]int{"primary": 1}, h.metrics.counts)
}

func TestUpgrade_ScenarioLargeHA(t *testing.T) {
	t.Parallel()
	cfg, h := largeHA()

	_, ctx, msg, err := h.run(cfg, false)

	require.NoError(t, err)
	assert.Equal(t, "Upgrade of Puppet Enterprise large-ha completed.", msg)
	assert.Equal(t, "large-ha", ctx.Plan.Architecture())

	// One artifact per distinct install target.
	assert.Equal(t, []string{"stage " + tarball + " pe-primary"}, h.j.withPrefix("stage "))
	assert.Len(t, h.j.withPrefix("stop-agent "), 6)

	primaryInstall := h.j.index("install pe-primary clustered=false agent=stopped")
	require.NotEqual(t, -1, primaryInstall)
	assert.Less(t, h.j.index("stop pe-puppetdb c1"), primaryInstall)
	assert.Less(t, h.j.index("stop pe-puppetdb c2"), primaryInstall)

	// The replica side starts only after the whole primary side returned,
	// including both compiler upgrades.
	groupADone := h.j.index("infra-upgrade compiler c1,c2 via pe-primary")
	require.NotEqual(t, -1, groupADone)
	for _, step := range []string{
		"stop pe-puppetdb c3",
		"stop pe-puppetdb c4",
		"infra-upgrade replica pe-replica via pe-primary",
		"infra-upgrade compiler c3,c4 via pe-primary",
	} {
		idx := h.j.index(step)
		require.NotEqual(t, -1, idx, step)
		assert.Greater(t, idx, groupADone, step)
	}
	assert.Less(t, h.j.index("infra-upgrade replica pe-replica via pe-primary"),
		h.j.index("infra-upgrade compiler c3,c4 via pe-primary"))

	// Convergence and certificate repair happen between the primary
	// install and the group A compiler upgrade.
	assert.Greater(t, h.j.index("runonce pe-primary"), primaryInstall)
	assert.Greater(t, h.j.index("cert c4 pp_auth_role=pe_compiler"), h.j.index("runonce pe-primary"))
	require.NotEqual(t, -1, h.j.index("classify 2"))
	assert.Less(t, h.j.index("classify 2"), groupADone)
	assert.Len(t, h.j.withPrefix("cert "), 1)

	assert.Len(t, h.j.withPrefix("install "), 1, "replica and compilers upgrade through the primary")
	assert.Len(t, h.j.withPrefix("start-agent "), 6)
	assert.Greater(t, h.j.index("start-agent c1"), h.j.index("infra-upgrade compiler c3,c4 via pe-primary"))
}

func TestUpgrade_ExtraLargeHAOrdering(t *testing.T) {
	t.Parallel()
	cfg := baseConfig()
	cfg.ReplicaHost = "pe-replica"
	cfg.PrimaryPostgreSQLHost = "pe-pdb"
	cfg.ReplicaPostgreSQLHost = "pe-rdb"
	cfg.CompilerHosts = []string{"c1", "c2"}
	h := newHarness(
		serverFacts("pe-primary", "A"),
		serverFacts("pe-replica", "B"),
		databaseFacts("pe-pdb", "A"),
		databaseFacts("pe-rdb", "B"),
		compilerFacts("c1", "A"),
		compilerFacts("c2", "B"),
	)

	p, _, msg, err := h.run(cfg, false)

	require.NoError(t, err)
	assert.Equal(t, "Upgrade of Puppet Enterprise extra-large-ha completed.", msg)
	assert.Equal(t, []string{"stage " + tarball + " pe-primary,pe-pdb,pe-rdb"}, h.j.withPrefix("stage "))

	groupA := []string{
		"stop pe-puppetdb c1",
		"install pe-pdb clustered=false agent=stopped",
		"install pe-primary clustered=true agent=stopped",
		"infra-upgrade compiler c1 via pe-primary",
	}
	groupB := []string{
		"stop pe-puppetdb c2",
		"install pe-rdb clustered=false agent=stopped",
		"runonce pe-rdb",
		"infra-upgrade replica pe-replica via pe-primary",
		"infra-upgrade compiler c2 via pe-primary",
	}
	assertInOrder(t, h.j, groupA)
	assertInOrder(t, h.j, groupB)
	assert.Greater(t, h.j.index(groupB[0]), h.j.index(groupA[len(groupA)-1]))
	assert.ElementsMatch(t, []string{"runonce pe-primary", "runonce pe-pdb", "runonce pe-rdb"}, h.j.withPrefix("runonce "))

	results := p.Results()
	require.Len(t, results, 5)
	assert.ElementsMatch(t, []string{"c2", "pe-rdb", "pe-replica"}, results[3].Targets)
}

func assertInOrder(t *testing.T, j *journal, steps []string) {
	t.Helper()
	prev := -1
	for _, s := range steps {
		idx := j.index(s)
		require.NotEqual(t, -1, idx, s)
		assert.Greater(t, idx, prev, s)
		prev = idx
	}
}

func TestUpgrade_WaitsTwiceForPCPNodes(t *testing.T) {
	t.Parallel()
	cfg, h := largeHA()
	cfg.CompilerHosts = []string{"pcp://c1", "c2", "c3", "c4"}

	_, _, _, err := h.run(cfg, false)

	require.NoError(t, err)
	assert.Equal(t, []string{
		"wait-ready orchestrator-service pe-primary",
		"wait-reachable 6",
		"wait-ready orchestrator-service pe-primary",
		"wait-reachable 6",
	}, h.j.withPrefix("wait-"))
	assert.Greater(t, h.j.index("wait-ready orchestrator-service pe-primary"), h.j.index("install pe-primary clustered=false agent=stopped"))
	assert.Less(t, h.j.index("wait-reachable 6"), h.j.index("runonce pe-primary"))
}

func TestUpgrade_ReadinessTimeoutAbortsBeforeReplicaSide(t *testing.T) {
	t.Parallel()
	cfg, h := largeHA()
	cfg.CompilerHosts = []string{"pcp://c1", "c2", "c3", "c4"}
	h.waiter.err = &readiness.TimeoutError{What: "orchestrator-service on pe-primary", Timeout: 10 * time.Minute}

	p, _, msg, err := h.run(cfg, false)

	require.Error(t, err)
	assert.Empty(t, msg)
	assert.ErrorIs(t, err, readiness.ErrTimeout)
	assert.Contains(t, err.Error(), "UpgradePrimarySide phase failed")
	assert.Equal(t, StateFailed, p.State())

	results := p.Results()
	require.Len(t, results, 3)
	assert.False(t, results[2].Success)

	assert.Empty(t, h.j.withPrefix("runonce "))
	assert.Empty(t, h.j.withPrefix("infra-upgrade "))
	assert.Equal(t, -1, h.j.index("stop pe-puppetdb c3"))
	assert.Empty(t, h.j.withPrefix("start-agent "))
	assert.NotContains(t, h.metrics.phases, "UpgradeReplicaSide=ok")
	assert.Contains(t, h.metrics.phases, "UpgradePrimarySide=failed")
	assert.False(t, h.metrics.finished)
}

func TestUpgrade_InstallerFailureAborts(t *testing.T) {
	t.Parallel()
	cfg, h := largeHA()
	h.installer.fail["pe-primary"] = &installer.ExitError{Code: 1, Raw: 1}

	_, _, _, err := h.run(cfg, false)

	var exitErr *installer.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 1, exitErr.Code)
	assert.Contains(t, err.Error(), "failed to upgrade pe-primary")
	assert.Empty(t, h.j.withPrefix("infra-upgrade "))
	assert.Empty(t, h.j.withPrefix("classify "))
}

func TestUpgrade_PreconditionsFailBeforeAnyChange(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		mutate func(*config.Config, *harness)
		is     error
		msg    string
	}{
		{
			name: "missing trusted facts",
			mutate: func(_ *config.Config, h *harness) {
				h.resolver.err = identity.ErrMissingTrustedFacts
			},
			is: identity.ErrMissingTrustedFacts,
		},
		{
			name: "replica database without replica",
			mutate: func(c *config.Config, h *harness) {
				c.ReplicaHost = ""
				c.ReplicaPostgreSQLHost = "pe-rdb"
				h.resolver.facts["pe-rdb"] = databaseFacts("pe-rdb", "B")
			},
			is: topology.ErrUnsupportedTopology,
		},
		{
			name: "primary over pcp",
			mutate: func(c *config.Config, _ *harness) {
				c.PrimaryHost = "pcp://pe-primary"
			},
			is: topology.ErrUnsupportedProtocol,
		},
		{
			name: "upload to pcp database",
			mutate: func(c *config.Config, h *harness) {
				c.PrimaryPostgreSQLHost = "pcp://pe-pdb"
				c.ReplicaPostgreSQLHost = "pe-rdb"
				h.resolver.facts["pe-pdb"] = databaseFacts("pe-pdb", "A")
				h.resolver.facts["pe-rdb"] = databaseFacts("pe-rdb", "B")
			},
			is: topology.ErrUnsupportedProtocol,
		},
		{
			name: "downgrade",
			mutate: func(_ *config.Config, h *harness) {
				h.ops.version = "2023.2.0"
			},
			msg: "downgrade from 2023.2.0 to 2021.7.1",
		},
		{
			name: "legacy compiler over pcp",
			mutate: func(c *config.Config, _ *harness) {
				c.CompilerHosts = []string{"c1", "c2", "c3", "pcp://c4"}
			},
			msg: "needs a reissued certificate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg, h := largeHA()
			tt.mutate(cfg, h)

			p, _, _, err := h.run(cfg, false)

			require.Error(t, err)
			if tt.is != nil {
				assert.ErrorIs(t, err, tt.is)
			}
			if tt.msg != "" {
				assert.Contains(t, err.Error(), tt.msg)
			}
			assert.Empty(t, h.j.all(), "no node may be changed")
			assert.Len(t, p.Results(), 1)
			assert.Equal(t, StateFailed, p.State())
		})
	}
}

func TestUpgrade_DryRun(t *testing.T) {
	t.Parallel()
	cfg, h := largeHA()

	p, ctx, msg, err := h.run(cfg, true)

	require.NoError(t, err)
	assert.Empty(t, msg)
	assert.Empty(t, h.j.all())
	require.NotNil(t, ctx.Plan)
	assert.Equal(t, "/tmp/"+tarball, ctx.Plan.Tarball)
	assert.Equal(t, "2019.8.12", ctx.Plan.CurrentVersion)
	assert.Len(t, p.Results(), 1)
	assert.False(t, h.metrics.finished)
	assert.Equal(t, StateDone, p.State())
}

func TestUpgrade_DryRunRunsOnce(t *testing.T) {
	t.Parallel()
	cfg, h := largeHA()

	p, ctx, _, err := h.run(cfg, true)
	require.NoError(t, err)

	err = p.Provision(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already ran (state Done)")
	assert.Len(t, p.Results(), 1)
}

func TestUpgrade_AnswerFileStagedNextToTarball(t *testing.T) {
	t.Parallel()
	cfg := baseConfig()
	cfg.PEConf = "/etc/peupgrade/pe.conf"
	h := newHarness(serverFacts("pe-primary", ""))

	_, ctx, _, err := h.run(cfg, false)

	require.NoError(t, err)
	assert.Equal(t, "/tmp/peupgrade-pe.conf", ctx.Plan.RemotePEConf)
	assert.Equal(t, []string{"place /tmp/peupgrade-pe.conf pe-primary"}, h.j.withPrefix("place "))
	assert.Less(t, h.j.index("place /tmp/peupgrade-pe.conf pe-primary"), h.j.index("install pe-primary clustered=false agent=stopped"))
}

func TestUpgrade_ProvisionRunsOnce(t *testing.T) {
	t.Parallel()
	h := newHarness(serverFacts("pe-primary", ""))
	ctx := provisioning.NewContext(context.Background(), baseConfig(), quietObserver{})
	p := NewProvisioner(h.deps, ProvisionerOptions{})

	require.NoError(t, p.Provision(ctx))
	err := p.Provision(ctx)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "already ran")
	assert.Equal(t, "Upgrade", p.Name())
}

func TestDeclare(t *testing.T) {
	t.Parallel()
	cfg, _ := largeHA()
	cfg.PrimaryPostgreSQLHost = "ssh://admin@pe-pdb:2222"

	d, err := Declare(cfg)

	require.NoError(t, err)
	assert.Equal(t, "pe-primary", d.Primary.Name)
	require.NotNil(t, d.Replica)
	require.NotNil(t, d.PrimaryDatabase)
	assert.Equal(t, "admin", d.PrimaryDatabase.User)
	assert.Equal(t, 2222, d.PrimaryDatabase.Port)
	assert.Nil(t, d.ReplicaDatabase)
	assert.Len(t, d.Compilers, 4)

	cfg.CompilerHosts = []string{"ftp://"}
	_, err = Declare(cfg)
	assert.ErrorContains(t, err, "compiler_hosts[0]")
}

func TestNeedsUpload(t *testing.T) {
	t.Parallel()
	cfg := baseConfig()
	assert.True(t, NeedsUpload(cfg))

	cfg.DownloadMode = config.DownloadDirect
	assert.False(t, NeedsUpload(cfg))

	cfg.PEConf = "pe.conf"
	assert.True(t, NeedsUpload(cfg))
}

func TestErrorsKeepOrigin(t *testing.T) {
	t.Parallel()
	origin := errors.New("ssh: handshake failed")
	h := newHarness(serverFacts("pe-primary", ""))
	h.resolver.err = origin

	_, _, _, err := h.run(baseConfig(), false)

	assert.ErrorIs(t, err, origin)
}
