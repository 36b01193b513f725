package provisioning

import (
	"fmt"
	"time"
)

// Pipeline runs phases in order and stops at the first failure.
// Phases are never re-entered.
type Pipeline struct {
	Phases   []Phase
	Recorder PhaseRecorder

	// Results holds one entry per phase that ran, including a failed one.
	Results []PhaseResult
}

// NewPipeline creates a pipeline from phases.
func NewPipeline(phases ...Phase) *Pipeline {
	return &Pipeline{Phases: phases}
}

// Run executes all phases sequentially.
func (p *Pipeline) Run(ctx *Context) error {
	start := time.Now()
	p.Results = nil
	ctx.Observer.Printf("Starting upgrade with %d phases...", len(p.Phases))

	for _, phase := range p.Phases {
		name := phase.Name()
		phaseStart := time.Now()
		LogPhaseStart(ctx.Observer, name)

		ctx.takeActed()
		err := phase.Provision(ctx)
		duration := time.Since(phaseStart)

		result := PhaseResult{
			Phase:    name,
			Targets:  ctx.takeActed(),
			Success:  err == nil,
			Duration: duration,
		}
		if err != nil {
			result.Detail = err.Error()
		}
		p.Results = append(p.Results, result)
		if p.Recorder != nil {
			p.Recorder.ObservePhase(name, duration, err)
		}

		if err != nil {
			LogPhaseFailed(ctx.Observer, name, err)
			return fmt.Errorf("%s phase failed: %w", name, err)
		}
		LogPhaseComplete(ctx.Observer, name, duration)
	}

	ctx.Observer.Printf("Upgrade completed in %v", time.Since(start).Round(time.Millisecond))
	return nil
}
