package installer

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/imamik/peupgrade/internal/remote"
)

// AgentState is the desired state of the puppet agent service after install.
type AgentState string

const (
	AgentRunning AgentState = "running"
	AgentStopped AgentState = "stopped"
)

const (
	dropInDir  = "/etc/systemd/system/pe-puppetdb.service.d"
	dropInFile = dropInDir + "/10-shortcircuit.conf"
	dropIn     = "[Service]\nTimeoutStartSec=1\nTimeoutStopSec=1\nRestart=no\n"
)

// HealthServices must all be active for a clustered exit 1 to count as
// success.
var HealthServices = []string{"pe-puppetserver", "pe-orchestration-services", "pe-console-services"}

// Options are the wrapper's invocation parameters.
type Options struct {
	Tarball    string
	Clustered  bool
	AgentState AgentState
	// PEConf is an answer file path on the node.
	PEConf string
}

// ExitError reports a non-zero final exit code.
type ExitError struct {
	Code int
	// Raw is the installer's own exit code before reinterpretation.
	Raw    int
	Output string
}

func (e *ExitError) Error() string {
	if e.Output == "" {
		return fmt.Sprintf("installer exited %d", e.Code)
	}
	return fmt.Sprintf("installer exited %d: %s", e.Code, lastLines(e.Output, 20))
}

// Reinterpret computes the final exit code. Only a clustered install
// exiting 1 with every health service active is turned into success.
func Reinterpret(raw int, clustered bool, health map[string]bool) int {
	if !clustered || raw != 1 {
		return raw
	}
	for _, svc := range HealthServices {
		if !health[svc] {
			return raw
		}
	}
	return 0
}

// Wrapper runs the installer.
type Wrapper struct {
	// Logf receives progress lines. Optional.
	Logf func(format string, args ...any)
}

func (w *Wrapper) logf(format string, args ...any) {
	if w.Logf != nil {
		w.Logf(format, args...)
	}
}

// Install runs the installer and returns the final exit code. A nil error
// with a non-zero code never happens: non-zero codes come back as
// *ExitError alongside the code.
func (w *Wrapper) Install(ctx context.Context, r remote.Runner, opts Options) (int, error) {
	if opts.Tarball == "" {
		return -1, fmt.Errorf("tarball path is required")
	}

	if opts.Clustered {
		w.logf("Installing pe-puppetdb start/stop short-circuit")
		if err := check(ctx, r, shortCircuitCommand()); err != nil {
			return -1, fmt.Errorf("failed to install pe-puppetdb override: %w", err)
		}
	}

	raw, output, runErr := w.runInstaller(ctx, r, opts)

	if opts.Clustered {
		w.logf("Removing pe-puppetdb short-circuit")
		if err := check(ctx, r, teardownCommand()); err != nil && runErr == nil {
			runErr = fmt.Errorf("failed to remove pe-puppetdb override: %w", err)
		}
	}
	if runErr != nil {
		return -1, runErr
	}

	if opts.AgentState == AgentStopped {
		if err := check(ctx, r, "systemctl stop puppet"); err != nil {
			return -1, fmt.Errorf("failed to stop puppet agent: %w", err)
		}
	}

	code := raw
	if opts.Clustered && raw == 1 {
		health, err := ServiceHealth(ctx, r, HealthServices)
		if err != nil {
			return -1, err
		}
		code = Reinterpret(raw, true, health)
		if code == 0 {
			w.logf("Installer exited 1 but %s are active; treating as success", strings.Join(HealthServices, ", "))
		}
	}

	if code != 0 {
		return code, &ExitError{Code: code, Raw: raw, Output: output}
	}
	return 0, nil
}

func (w *Wrapper) runInstaller(ctx context.Context, r remote.Runner, opts Options) (int, string, error) {
	dir := path.Dir(opts.Tarball)
	extract := fmt.Sprintf("tar -C %s -xzf %s", remote.Quote(dir), remote.Quote(opts.Tarball))
	if err := check(ctx, r, extract); err != nil {
		return -1, "", fmt.Errorf("failed to extract %s: %w", opts.Tarball, err)
	}

	installer := path.Join(dir, ExtractedDir(opts.Tarball), "puppet-enterprise-installer")
	cmd := remote.Quote(installer) + " -y"
	if opts.PEConf != "" {
		cmd += " -c " + remote.Quote(opts.PEConf)
	}

	w.logf("Running %s", cmd)
	res, err := r.Run(ctx, cmd)
	if err != nil {
		return -1, "", fmt.Errorf("failed to run installer: %w", err)
	}
	return res.ExitCode, res.Output(), nil
}

// ExtractedDir returns the directory a PE tarball unpacks into.
func ExtractedDir(tarball string) string {
	return strings.TrimSuffix(path.Base(tarball), ".tar.gz")
}

// ServiceHealth reports systemctl is-active for each service.
func ServiceHealth(ctx context.Context, r remote.Runner, services []string) (map[string]bool, error) {
	health := make(map[string]bool, len(services))
	for _, svc := range services {
		res, err := r.Run(ctx, "systemctl is-active --quiet "+remote.Quote(svc))
		if err != nil {
			return nil, fmt.Errorf("failed to check %s: %w", svc, err)
		}
		health[svc] = res.Success()
	}
	return health, nil
}

func shortCircuitCommand() string {
	return fmt.Sprintf("mkdir -p %s && printf %%s %s > %s && systemctl daemon-reload",
		dropInDir, remote.Quote(dropIn), dropInFile)
}

// teardownCommand stops pe-puppetdb before the drop-in goes away; without
// the short timeouts a pending start would otherwise keep waiting.
func teardownCommand() string {
	return fmt.Sprintf("systemctl stop pe-puppetdb; rm -f %s && systemctl daemon-reload", dropInFile)
}

func check(ctx context.Context, r remote.Runner, cmd string) error {
	res, err := r.Run(ctx, cmd)
	if err != nil {
		return err
	}
	if !res.Success() {
		return fmt.Errorf("%s exited %d: %s", cmd, res.ExitCode, res.Output())
	}
	return nil
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
