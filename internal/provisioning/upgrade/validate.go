package upgrade

import (
	"fmt"
	"path"

	"github.com/imamik/peupgrade/internal/artifact"
	"github.com/imamik/peupgrade/internal/config"
	"github.com/imamik/peupgrade/internal/provisioning"
	"github.com/imamik/peupgrade/internal/remote"
	"github.com/imamik/peupgrade/internal/topology"
)

// remotePEConfName is the answer file name next to the tarball.
const remotePEConfName = "peupgrade-pe.conf"

type validatePhase struct {
	deps    Dependencies
	metrics Metrics
}

func (v *validatePhase) Name() string { return string(StateValidate) }

// Provision resolves identities, builds the topology and the plan. Nothing
// on the nodes is changed.
func (v *validatePhase) Provision(ctx *provisioning.Context) error {
	name := v.Name()
	cfg := ctx.Config

	declared, err := Declare(cfg)
	if err != nil {
		return err
	}

	ctx.Observer.Printf("[%s] Reading trusted facts from %d nodes...", name, len(declared.Targets()))
	facts, err := v.deps.Resolver.Resolve(ctx, declared.Targets())
	if err != nil {
		return fmt.Errorf("failed to resolve node identities: %w", err)
	}

	topo, err := topology.Build(declared, facts)
	if err != nil {
		return err
	}
	if err := topo.CheckTransfer(NeedsUpload(cfg)); err != nil {
		return err
	}
	ctx.Observer.Printf("[%s] Architecture: %s", name, topo.Architecture)

	platform, err := artifact.DetectPlatform(ctx, v.deps.Exec, topo.Primary.Target)
	if err != nil {
		return err
	}

	current, err := v.deps.Ops.CurrentVersion(ctx, topo.Primary.Target)
	if err != nil {
		return err
	}

	art := artifact.New(cfg.ReleaseURL, cfg.Version, platform)
	plan := &provisioning.Plan{
		Version:        cfg.Version,
		CurrentVersion: current,
		Topology:       topo,
		Artifact:       art,
		Tarball:        art.RemotePath(cfg.UploadDir),
		DownloadMode:   cfg.DownloadMode,
	}
	if cfg.PEConf != "" {
		plan.PEConf = cfg.PEConf
		plan.RemotePEConf = path.Join(cfg.UploadDir, remotePEConfName)
	}

	if err := provisioning.CheckPlan(ctx.Observer, plan); err != nil {
		return err
	}

	ctx.Observer.Printf("[%s] Upgrading %s from %s to %s with %s", name, plan.Architecture(), current, cfg.Version, art.Filename)
	if v.metrics != nil {
		counts := make(map[string]int)
		for role, n := range topo.CountByRole() {
			counts[string(role)] = n
		}
		v.metrics.SetTopology(cfg.Version, plan.Architecture(), counts)
	}

	ctx.Plan = plan
	return nil
}

// Declare parses the configured host slots.
func Declare(cfg *config.Config) (topology.Declared, error) {
	var d topology.Declared
	var err error

	if d.Primary, err = remote.ParseTarget(cfg.PrimaryHost); err != nil {
		return d, fmt.Errorf("primary_host: %w", err)
	}
	if d.Replica, err = optionalTarget(cfg.ReplicaHost); err != nil {
		return d, fmt.Errorf("replica_host: %w", err)
	}
	if d.PrimaryDatabase, err = optionalTarget(cfg.PrimaryPostgreSQLHost); err != nil {
		return d, fmt.Errorf("primary_postgresql_host: %w", err)
	}
	if d.ReplicaDatabase, err = optionalTarget(cfg.ReplicaPostgreSQLHost); err != nil {
		return d, fmt.Errorf("replica_postgresql_host: %w", err)
	}
	for i, h := range cfg.CompilerHosts {
		t, err := remote.ParseTarget(h)
		if err != nil {
			return d, fmt.Errorf("compiler_hosts[%d]: %w", i, err)
		}
		d.Compilers = append(d.Compilers, t)
	}
	return d, nil
}

func optionalTarget(spec string) (*remote.Target, error) {
	if spec == "" {
		return nil, nil
	}
	t, err := remote.ParseTarget(spec)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// NeedsUpload reports whether files must be pushed to install targets.
func NeedsUpload(cfg *config.Config) bool {
	return cfg.DownloadMode != config.DownloadDirect || cfg.PEConf != ""
}
