package handlers

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/imamik/peupgrade/internal/config"
	"github.com/imamik/peupgrade/internal/metrics"
	"github.com/imamik/peupgrade/internal/provisioning"
	"github.com/imamik/peupgrade/internal/provisioning/upgrade"
)

// stdout receives rendered output. Replaced in tests.
var stdout io.Writer = os.Stdout

// UpgradeOptions contains options for the upgrade command.
type UpgradeOptions struct {
	ConfigPath string
	Version    string
	DryRun     bool
	LogFormat  string
}

// Upgrade handles the upgrade command.
//
// It loads the configuration, connects the transports and runs the upgrade
// phases. With DryRun it stops after validation and prints the plan.
func Upgrade(ctx context.Context, opts UpgradeOptions) error {
	run, err := runUpgrade(ctx, opts.ConfigPath, opts.Version, opts.DryRun, opts.LogFormat)
	if err != nil {
		return fmt.Errorf("upgrade failed: %w", err)
	}

	if opts.DryRun {
		fmt.Fprint(stdout, renderPlan(run.plan, upgrade.Steps(run.plan), useStyles()))
		return nil
	}

	printResults(run.results)
	fmt.Fprintln(stdout, run.message)
	return nil
}

// printResults prints one line per phase that ran.
func printResults(results []provisioning.PhaseResult) {
	fmt.Fprintln(stdout)
	for _, r := range results {
		mark := "✓"
		if !r.Success {
			mark = "✗"
		}
		fmt.Fprintf(stdout, "  %s %-22s %s\n", mark, r.Phase, r.Duration.Round(time.Millisecond))
	}
	fmt.Fprintln(stdout)
}

// upgradeRun is what a run left behind.
type upgradeRun struct {
	plan    *provisioning.Plan
	message string
	results []provisioning.PhaseResult
}

// runUpgrade wires the dependencies and runs the provisioner. The metrics
// textfile is written whether or not the run succeeded.
func runUpgrade(ctx context.Context, configPath, version string, dryRun bool, logFormat string) (*upgradeRun, error) {
	cfg, err := loadConfig(configPath, version)
	if err != nil {
		return nil, err
	}

	observer, err := newObserver(logFormat)
	if err != nil {
		return nil, err
	}
	timeouts := config.LoadTimeouts()

	exec, err := newExecutor(ctx, cfg, timeouts)
	if err != nil {
		return nil, err
	}
	mirror, err := newMirror(ctx, cfg)
	if err != nil {
		return nil, err
	}

	deps := upgrade.NewDependencies(exec, upgrade.DependencyOptions{
		Config:   cfg,
		Timeouts: timeouts,
		Mirror:   mirror,
		Logf:     observer.Printf,
	})

	recorder := metrics.NewRecorder()
	pCtx := provisioning.NewContext(ctx, cfg, observer)
	pCtx.Timeouts = timeouts

	upgrader := upgrade.NewProvisioner(deps, upgrade.ProvisionerOptions{
		DryRun:  dryRun,
		Metrics: recorder,
	})

	message, runErr := upgrader.Run(pCtx)

	if cfg.Metrics.TextfilePath != "" && !dryRun {
		if err := recorder.WriteTextfile(cfg.Metrics.TextfilePath); err != nil {
			observer.Printf("Warning: %v", err)
		}
	}
	if runErr != nil {
		return nil, runErr
	}

	return &upgradeRun{plan: pCtx.Plan, message: message, results: upgrader.Results()}, nil
}

// loadConfig loads and validates a config file, applying a version override.
func loadConfig(path, version string) (*config.Config, error) {
	cfg, err := config.LoadWithoutValidation(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if version != "" {
		cfg.Version = version
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
