package upgrade

import (
	"context"
	"net/http"
	"time"

	"github.com/imamik/peupgrade/internal/artifact"
	"github.com/imamik/peupgrade/internal/certs"
	"github.com/imamik/peupgrade/internal/classifier"
	"github.com/imamik/peupgrade/internal/config"
	"github.com/imamik/peupgrade/internal/identity"
	"github.com/imamik/peupgrade/internal/installer"
	"github.com/imamik/peupgrade/internal/pe"
	"github.com/imamik/peupgrade/internal/readiness"
	"github.com/imamik/peupgrade/internal/remote"
)

// IdentityResolver reads trusted facts from nodes.
// Implemented by internal/identity.Resolver.
type IdentityResolver interface {
	Resolve(ctx context.Context, targets []remote.Target) (map[string]identity.Facts, error)
}

// ArtifactStager places files on install targets.
// Implemented by internal/artifact.Stager.
type ArtifactStager interface {
	Ensure(ctx context.Context, targets []remote.Target, a artifact.Artifact) (string, error)
	Place(ctx context.Context, targets []remote.Target, localPath, remotePath string) error
}

// NodeOps issues PE service and agent commands.
// Implemented by internal/pe.Ops.
type NodeOps interface {
	StopService(ctx context.Context, t remote.Target, unit string) error
	StopAgent(ctx context.Context, t remote.Target) error
	StartAgent(ctx context.Context, t remote.Target) error
	RunOnce(ctx context.Context, t remote.Target) error
	InfraUpgrade(ctx context.Context, primary remote.Target, kind string, certnames []string) error
	CurrentVersion(ctx context.Context, primary remote.Target) (string, error)
}

// ReadinessWaiter blocks until services or nodes respond.
// Implemented by internal/readiness.Waiter.
type ReadinessWaiter interface {
	WaitReady(ctx context.Context, service string, host remote.Target, timeout time.Duration) error
	WaitReachable(ctx context.Context, targets []remote.Target, timeout time.Duration) error
}

// Installer runs the PE installer through a runner bound to one node.
// Implemented by internal/installer.Wrapper.
type Installer interface {
	Install(ctx context.Context, r remote.Runner, opts installer.Options) (int, error)
}

// CertModifier reissues node certificates with extra extensions.
// Implemented by internal/certs.Modifier.
type CertModifier interface {
	AddExtensions(ctx context.Context, node remote.Target, certname string, exts map[identity.Key]string) error
}

// ClassificationRenderer applies node groups.
// Implemented by internal/classifier.Renderer.
type ClassificationRenderer interface {
	Apply(ctx context.Context, groups []classifier.NodeGroup) error
}

// Metrics receives phase outcomes and run details.
// Implemented by internal/metrics.Recorder.
type Metrics interface {
	ObservePhase(phase string, duration time.Duration, err error)
	SetTopology(version, architecture string, counts map[string]int)
	MarkSuccess(at time.Time)
}

// Dependencies are the collaborators the phases call.
type Dependencies struct {
	// Exec reaches nodes directly for platform detection and installer runs.
	Exec remote.Executor

	Resolver   IdentityResolver
	Stager     ArtifactStager
	Ops        NodeOps
	Waiter     ReadinessWaiter
	Installer  Installer
	Certs      CertModifier
	Classifier ClassificationRenderer
}

// DependencyOptions carry what the concrete collaborators need beyond the
// executor.
type DependencyOptions struct {
	Config   *config.Config
	Timeouts *config.Timeouts
	Mirror   artifact.Mirror
	Logf     func(format string, args ...any)
}

// NewDependencies builds the production collaborators on exec.
func NewDependencies(exec remote.Executor, opts DependencyOptions) Dependencies {
	cfg := opts.Config
	primary := remote.MustParseTarget(cfg.PrimaryHost)

	return Dependencies{
		Exec:     exec,
		Resolver: identity.NewResolver(exec),
		Stager: &artifact.Stager{
			Exec:         exec,
			Mode:         cfg.DownloadMode,
			StagingDir:   cfg.StagingDir,
			UploadDir:    cfg.UploadDir,
			HTTPClient:   &http.Client{Timeout: opts.Timeouts.Download},
			Mirror:       opts.Mirror,
			MirrorBucket: cfg.Mirror.Bucket,
		},
		Ops:        &pe.Ops{Exec: exec, TokenFile: cfg.TokenFile},
		Waiter:     &readiness.Waiter{Exec: exec, Interval: opts.Timeouts.PollInterval},
		Installer:  &installer.Wrapper{Logf: opts.Logf},
		Certs:      &certs.Modifier{Exec: exec, Primary: primary},
		Classifier: &classifier.Renderer{Exec: exec, Primary: primary},
	}
}
