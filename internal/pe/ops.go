package pe

import (
	"context"
	"fmt"
	"strings"

	"github.com/imamik/peupgrade/internal/remote"
	"github.com/imamik/peupgrade/internal/util/async"
)

const (
	puppetBin   = "/opt/puppetlabs/bin/puppet"
	versionFile = "/opt/puppetlabs/server/pe_version"

	// AgentService is the puppet agent systemd unit.
	AgentService = "puppet"
	// PuppetDBService is the PuppetDB systemd unit.
	PuppetDBService = "pe-puppetdb"
)

// systemctl exits 5 when the unit is not loaded.
const exitUnitNotLoaded = 5

// Infrastructure upgrade kinds.
const (
	UpgradeCompiler = "compiler"
	UpgradeReplica  = "replica"
)

// Ops issues PE commands through an executor.
type Ops struct {
	Exec remote.Executor
	// TokenFile is the RBAC token path on the primary.
	TokenFile string
}

// StopService stops a systemd unit. Stopping a stopped or absent unit is
// not an error.
func (o *Ops) StopService(ctx context.Context, t remote.Target, unit string) error {
	cmd := "systemctl stop " + remote.Quote(unit)
	res, err := o.Exec.Run(ctx, t, cmd)
	if err != nil {
		return fmt.Errorf("failed to stop %s on %s: %w", unit, t.Name, err)
	}
	if res.ExitCode != 0 && res.ExitCode != exitUnitNotLoaded {
		return &remote.CommandError{Target: t.Name, Command: cmd, Result: res}
	}
	return nil
}

// StartService starts a systemd unit.
func (o *Ops) StartService(ctx context.Context, t remote.Target, unit string) error {
	if _, err := remote.Check(ctx, o.Exec, t, "systemctl start "+remote.Quote(unit)); err != nil {
		return fmt.Errorf("failed to start %s on %s: %w", unit, t.Name, err)
	}
	return nil
}

// StopAgent stops the puppet agent service.
func (o *Ops) StopAgent(ctx context.Context, t remote.Target) error {
	return o.StopService(ctx, t, AgentService)
}

// StartAgent starts the puppet agent service.
func (o *Ops) StartAgent(ctx context.Context, t remote.Target) error {
	return o.StartService(ctx, t, AgentService)
}

// RunOnce triggers a single foreground agent run. Exit 2 (changes applied)
// counts as success.
func (o *Ops) RunOnce(ctx context.Context, t remote.Target) error {
	cmd := puppetBin + " agent --onetime --no-daemonize --no-usecacheonfailure --no-splay --no-use_cached_catalog --detailed-exitcodes"
	res, err := o.Exec.Run(ctx, t, cmd)
	if err != nil {
		return fmt.Errorf("failed to run puppet on %s: %w", t.Name, err)
	}
	if res.ExitCode != 0 && res.ExitCode != 2 {
		return &remote.CommandError{Target: t.Name, Command: cmd, Result: res}
	}
	return nil
}

// InfraUpgrade upgrades compilers or a replica from the primary.
func (o *Ops) InfraUpgrade(ctx context.Context, primary remote.Target, kind string, certnames []string) error {
	if len(certnames) == 0 {
		return nil
	}
	cmd := fmt.Sprintf("%s infrastructure upgrade %s %s --token-file=%s",
		puppetBin, kind, remote.Quote(strings.Join(certnames, ",")), remote.Quote(o.TokenFile))
	if _, err := remote.Check(ctx, o.Exec, primary, cmd); err != nil {
		return fmt.Errorf("failed to upgrade %s %s: %w", kind, strings.Join(certnames, ", "), err)
	}
	return nil
}

// CurrentVersion returns the PE version installed on the primary.
func (o *Ops) CurrentVersion(ctx context.Context, primary remote.Target) (string, error) {
	out, err := remote.Check(ctx, o.Exec, primary, "cat "+versionFile)
	if err != nil {
		return "", fmt.Errorf("failed to read PE version on %s: %w", primary.Name, err)
	}
	return strings.TrimSpace(out), nil
}

// ForEach runs fn on every target in parallel and waits for all of them.
func ForEach(ctx context.Context, targets []remote.Target, fn func(context.Context, remote.Target) error) error {
	tasks := make([]async.Task, 0, len(targets))
	for _, t := range targets {
		tasks = append(tasks, async.Task{
			Name: t.Name,
			Func: func(ctx context.Context) error { return fn(ctx, t) },
		})
	}
	return async.RunParallel(ctx, tasks)
}
