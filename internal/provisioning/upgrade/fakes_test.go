package upgrade

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/imamik/peupgrade/internal/artifact"
	"github.com/imamik/peupgrade/internal/classifier"
	"github.com/imamik/peupgrade/internal/identity"
	"github.com/imamik/peupgrade/internal/installer"
	"github.com/imamik/peupgrade/internal/provisioning"
	"github.com/imamik/peupgrade/internal/remote"
)

// journal records actions from all fakes in issue order.
type journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *journal) add(format string, args ...any) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, fmt.Sprintf(format, args...))
}

func (j *journal) all() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.entries...)
}

// index returns the position of the first entry equal to s, or -1.
func (j *journal) index(s string) int {
	for i, e := range j.all() {
		if e == s {
			return i
		}
	}
	return -1
}

// withPrefix returns entries starting with prefix.
func (j *journal) withPrefix(prefix string) []string {
	var out []string
	for _, e := range j.all() {
		if strings.HasPrefix(e, prefix) {
			out = append(out, e)
		}
	}
	return out
}

type fakeResolver struct {
	facts map[string]identity.Facts
	err   error
}

func (f *fakeResolver) Resolve(_ context.Context, targets []remote.Target) (map[string]identity.Facts, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]identity.Facts, len(targets))
	for _, t := range targets {
		if facts, ok := f.facts[t.Name]; ok {
			out[t.Name] = facts
		}
	}
	return out, nil
}

type fakeStager struct {
	j *journal
}

func (f *fakeStager) Ensure(_ context.Context, targets []remote.Target, a artifact.Artifact) (string, error) {
	f.j.add("stage %s %s", a.Filename, strings.Join(remote.Names(targets), ","))
	return a.RemotePath("/tmp"), nil
}

func (f *fakeStager) Place(_ context.Context, targets []remote.Target, _, remotePath string) error {
	f.j.add("place %s %s", remotePath, strings.Join(remote.Names(targets), ","))
	return nil
}

type fakeOps struct {
	j       *journal
	version string
}

func (f *fakeOps) StopService(_ context.Context, t remote.Target, unit string) error {
	f.j.add("stop %s %s", unit, t.Name)
	return nil
}

func (f *fakeOps) StopAgent(_ context.Context, t remote.Target) error {
	f.j.add("stop-agent %s", t.Name)
	return nil
}

func (f *fakeOps) StartAgent(_ context.Context, t remote.Target) error {
	f.j.add("start-agent %s", t.Name)
	return nil
}

func (f *fakeOps) RunOnce(_ context.Context, t remote.Target) error {
	f.j.add("runonce %s", t.Name)
	return nil
}

func (f *fakeOps) InfraUpgrade(_ context.Context, primary remote.Target, kind string, certnames []string) error {
	f.j.add("infra-upgrade %s %s via %s", kind, strings.Join(certnames, ","), primary.Name)
	return nil
}

func (f *fakeOps) CurrentVersion(_ context.Context, _ remote.Target) (string, error) {
	return f.version, nil
}

type fakeWaiter struct {
	j   *journal
	err error
}

func (f *fakeWaiter) WaitReady(_ context.Context, service string, host remote.Target, _ time.Duration) error {
	f.j.add("wait-ready %s %s", service, host.Name)
	return f.err
}

func (f *fakeWaiter) WaitReachable(_ context.Context, targets []remote.Target, _ time.Duration) error {
	f.j.add("wait-reachable %d", len(targets))
	return nil
}

type fakeInstaller struct {
	j    *journal
	fail map[string]error
}

func (f *fakeInstaller) Install(ctx context.Context, r remote.Runner, opts installer.Options) (int, error) {
	nr := r.(remote.NodeRunner)
	f.j.add("install %s clustered=%t agent=%s", nr.Target.Name, opts.Clustered, opts.AgentState)
	if err := f.fail[nr.Target.Name]; err != nil {
		return 1, err
	}
	return 0, nil
}

type fakeCerts struct {
	j *journal
}

func (f *fakeCerts) AddExtensions(_ context.Context, node remote.Target, certname string, exts map[identity.Key]string) error {
	f.j.add("cert %s %s=%s", certname, identity.PPAuthRole.Name, exts[identity.PPAuthRole])
	return nil
}

type fakeClassifier struct {
	j      *journal
	groups []classifier.NodeGroup
}

func (f *fakeClassifier) Apply(_ context.Context, groups []classifier.NodeGroup) error {
	f.groups = groups
	f.j.add("classify %d", len(groups))
	return nil
}

type fakeMetrics struct {
	mu       sync.Mutex
	phases   []string
	arch     string
	counts   map[string]int
	finished bool
}

func (f *fakeMetrics) ObservePhase(phase string, _ time.Duration, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := "ok"
	if err != nil {
		result = "failed"
	}
	f.phases = append(f.phases, phase+"="+result)
}

func (f *fakeMetrics) SetTopology(_, architecture string, counts map[string]int) {
	f.arch = architecture
	f.counts = counts
}

func (f *fakeMetrics) MarkSuccess(time.Time) { f.finished = true }

type quietObserver struct{}

func (quietObserver) Printf(string, ...interface{})                        {}
func (quietObserver) Event(provisioning.Event)                             {}
func (quietObserver) Progress(string, int, int)                            {}
func (o quietObserver) WithFields(map[string]string) provisioning.Observer { return o }

const osRelease = "NAME=\"Red Hat Enterprise Linux\"\nID=\"rhel\"\nVERSION_ID=\"8.6\"\n---\nx86_64\n"

// platformExec answers the platform probe.
func platformExec() *remote.MockExecutor {
	return &remote.MockExecutor{
		RunFunc: func(_ context.Context, _ remote.Target, command string) (remote.Result, error) {
			if strings.Contains(command, "os-release") {
				return remote.Result{Stdout: osRelease}, nil
			}
			return remote.Result{}, nil
		},
	}
}
