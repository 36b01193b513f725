package upgrade

import (
	"fmt"
	"time"

	"github.com/imamik/peupgrade/internal/provisioning"
)

const phase = "Upgrade"

// State is a step of the upgrade state machine.
type State string

const (
	StateValidate           State = "Validate"
	StatePrepare            State = "Prepare"
	StateUpgradePrimarySide State = "UpgradePrimarySide"
	StateUpgradeReplicaSide State = "UpgradeReplicaSide"
	StateFinalize           State = "Finalize"
	StateDone               State = "Done"
	StateFailed             State = "Failed"
)

// ProvisionerOptions contains options for the upgrade provisioner.
type ProvisionerOptions struct {
	// DryRun stops after validation. The plan is left on the context.
	DryRun bool

	Metrics Metrics
}

// Provisioner drives one upgrade run.
type Provisioner struct {
	deps Dependencies
	opts ProvisionerOptions

	state   State
	results []provisioning.PhaseResult
}

// NewProvisioner creates a new upgrade provisioner.
func NewProvisioner(deps Dependencies, opts ProvisionerOptions) *Provisioner {
	return &Provisioner{
		deps:  deps,
		opts:  opts,
		state: StateValidate,
	}
}

// Name returns the phase name.
func (p *Provisioner) Name() string {
	return phase
}

// State returns the state the run reached. A successful dry run also ends
// in StateDone; its Results hold only the Validate phase.
func (p *Provisioner) State() State {
	return p.state
}

// Results returns one entry per phase that ran.
func (p *Provisioner) Results() []provisioning.PhaseResult {
	return p.results
}

// Phases returns the phases in execution order.
func (p *Provisioner) Phases() []provisioning.Phase {
	if p.opts.DryRun {
		return []provisioning.Phase{&validatePhase{deps: p.deps, metrics: p.opts.Metrics}}
	}
	return []provisioning.Phase{
		&validatePhase{deps: p.deps, metrics: p.opts.Metrics},
		&preparePhase{deps: p.deps},
		&primarySidePhase{deps: p.deps},
		&replicaSidePhase{deps: p.deps},
		&finalizePhase{deps: p.deps},
	}
}

// Provision performs the upgrade. On success ctx.Result holds the message
// naming the architecture.
func (p *Provisioner) Provision(ctx *provisioning.Context) error {
	if p.state != StateValidate {
		return fmt.Errorf("upgrade already ran (state %s)", p.state)
	}

	pipeline := provisioning.NewPipeline(p.Phases()...)
	if p.opts.Metrics != nil {
		pipeline.Recorder = p.opts.Metrics
	}

	err := pipeline.Run(ctx)
	p.results = pipeline.Results
	if err != nil {
		p.state = StateFailed
		return err
	}

	p.state = StateDone
	if p.opts.DryRun {
		ctx.Observer.Printf("[%s] Dry run: stopping after validation", phase)
		return nil
	}

	if p.opts.Metrics != nil {
		p.opts.Metrics.MarkSuccess(time.Now())
	}
	return nil
}

// Run performs the upgrade and returns the success message.
func (p *Provisioner) Run(ctx *provisioning.Context) (string, error) {
	if err := p.Provision(ctx); err != nil {
		return "", err
	}
	return ctx.Result, nil
}

// SuccessMessage is the terminal result of a completed run.
func SuccessMessage(architecture string) string {
	return fmt.Sprintf("Upgrade of Puppet Enterprise %s completed.", architecture)
}
