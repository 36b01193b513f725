package provisioning

import "time"

// Phase defines the interface for an upgrade phase.
type Phase interface {
	// Name returns the human-readable name of this phase.
	Name() string

	// Provision executes the logic for this phase.
	Provision(ctx *Context) error
}

// PhaseRecorder receives the outcome of every phase.
// Implemented by internal/metrics.Recorder.
type PhaseRecorder interface {
	ObservePhase(phase string, duration time.Duration, err error)
}
