// Package metrics records upgrade phase outcomes with Prometheus collectors
// and exports them for the node_exporter textfile collector.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "peupgrade"

// Phase results.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Recorder owns a registry with the upgrade collectors.
type Recorder struct {
	registry *prometheus.Registry

	phaseDuration *prometheus.HistogramVec
	phaseTotal    *prometheus.CounterVec
	nodes         *prometheus.GaugeVec
	info          *prometheus.GaugeVec
	lastSuccess   prometheus.Gauge
}

// NewRecorder creates a recorder with a private registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		phaseDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "phase_duration_seconds",
				Help:      "Duration of upgrade phases in seconds",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 13), // 1s to ~68min
			},
			[]string{"phase"},
		),
		phaseTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "phase_total",
				Help:      "Total number of upgrade phases by result",
			},
			[]string{"phase", "result"},
		),
		nodes: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "nodes",
				Help:      "Number of nodes in the upgraded topology by role",
			},
			[]string{"role"},
		),
		info: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "info",
				Help:      "Target version and architecture of the last run",
			},
			[]string{"version", "architecture"},
		),
		lastSuccess: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_success_timestamp_seconds",
				Help:      "Unix time of the last completed upgrade",
			},
		),
	}

	r.registry.MustRegister(r.phaseDuration, r.phaseTotal, r.nodes, r.info, r.lastSuccess)
	return r
}

// Registry returns the recorder's registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObservePhase records a phase outcome.
func (r *Recorder) ObservePhase(phase string, duration time.Duration, err error) {
	result := ResultSuccess
	if err != nil {
		result = ResultFailure
	}
	r.phaseTotal.WithLabelValues(phase, result).Inc()
	r.phaseDuration.WithLabelValues(phase).Observe(duration.Seconds())
}

// SetTopology records node counts and the run's identity.
func (r *Recorder) SetTopology(version, architecture string, counts map[string]int) {
	r.info.Reset()
	r.info.WithLabelValues(version, architecture).Set(1)
	r.nodes.Reset()
	for role, n := range counts {
		r.nodes.WithLabelValues(role).Set(float64(n))
	}
}

// MarkSuccess records the completion time.
func (r *Recorder) MarkSuccess(at time.Time) {
	r.lastSuccess.Set(float64(at.Unix()))
}

// WriteTextfile writes all metrics in text exposition format. The file is
// replaced atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
