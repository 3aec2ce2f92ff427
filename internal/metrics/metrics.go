// Package metrics counts what the generation loop does: completions, parse
// retries, build repairs, verifications, materialized entries and cycle outcomes.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "specforge"

// Recorder receives loop events. Implementations must be cheap; they are
// called inline on the generation path.
type Recorder interface {
	ObserveCompletion(provider string, duration time.Duration, err error)
	ParseRetry()
	BuildRepair()
	ObserveVerification(success bool, duration time.Duration)
	Materialized(action string)
	CycleFinished(outcome string)
}

// NoOp discards every event.
type NoOp struct{}

func (NoOp) ObserveCompletion(string, time.Duration, error) {}
func (NoOp) ParseRetry() {}
func (NoOp) BuildRepair() {}
func (NoOp) ObserveVerification(bool, time.Duration) {}
func (NoOp) Materialized(string) {}
func (NoOp) CycleFinished(string) {}

// =============================================================================
// Prometheus Metrics
// =============================================================================

// Prometheus records events into its own registry, so several instances can
// coexist (tests, watch mode restarts) without colliding on the global one.
type Prometheus struct {
	registry *prometheus.Registry

	// CompletionsTotal counts completion calls.
	// Labels: provider, status (success, error)
	CompletionsTotal *prometheus.CounterVec

	// CompletionDurationSeconds measures completion latency.
	// Labels: provider
	CompletionDurationSeconds *prometheus.HistogramVec

	// ParseRetriesTotal counts re-prompts caused by malformed documents.
	ParseRetriesTotal prometheus.Counter

	// BuildRepairsTotal counts re-prompts caused by failed builds.
	BuildRepairsTotal prometheus.Counter

	// VerificationsTotal counts build command runs.
	// Labels: status (success, failure)
	VerificationsTotal *prometheus.CounterVec

	// VerificationDurationSeconds measures build command duration.
	VerificationDurationSeconds prometheus.Histogram

	// MaterializedTotal counts written entries.
	// Labels: action (create, update)
	MaterializedTotal *prometheus.CounterVec

	// CyclesTotal counts finished cycles.
	// Labels: outcome (done, parse_exhausted, build_exhausted, error)
	CyclesTotal *prometheus.CounterVec
}

// NewPrometheus creates a recorder backed by a fresh registry.
func NewPrometheus() *Prometheus {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Prometheus{
		registry: reg,
		CompletionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "completion",
			Name:      "requests_total",
			Help:      "Completion requests by provider and status",
		}, []string{"provider", "status"}),
		CompletionDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "completion",
			Name:      "duration_seconds",
			Help:      "Completion request latency in seconds",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
		}, []string{"provider"}),
		ParseRetriesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "generation",
			Name:      "parse_retries_total",
			Help:      "Re-prompts caused by malformed documents",
		}),
		BuildRepairsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "generation",
			Name:      "build_repairs_total",
			Help:      "Re-prompts caused by failed builds",
		}),
		VerificationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "build",
			Name:      "verifications_total",
			Help:      "Build command runs by status",
		}, []string{"status"}),
		VerificationDurationSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "build",
			Name:      "duration_seconds",
			Help:      "Build command duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		MaterializedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "files",
			Name:      "materialized_total",
			Help:      "Entries written to disk by action",
		}, []string{"action"}),
		CyclesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "generation",
			Name:      "cycles_total",
			Help:      "Finished generation cycles by outcome",
		}, []string{"outcome"}),
	}
}

// Registry exposes the underlying registry (for HTTP handlers or gathering).
func (p *Prometheus) Registry() *prometheus.Registry {
	return p.registry
}

// ObserveCompletion records one completion call.
func (p *Prometheus) ObserveCompletion(provider string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	p.CompletionsTotal.WithLabelValues(provider, status).Inc()
	p.CompletionDurationSeconds.WithLabelValues(provider).Observe(duration.Seconds())
}

// ParseRetry records a parse re-prompt.
func (p *Prometheus) ParseRetry() {
	p.ParseRetriesTotal.Inc()
}

// BuildRepair records a build repair re-prompt.
func (p *Prometheus) BuildRepair() {
	p.BuildRepairsTotal.Inc()
}

// ObserveVerification records one build command run.
func (p *Prometheus) ObserveVerification(success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "failure"
	}
	p.VerificationsTotal.WithLabelValues(status).Inc()
	p.VerificationDurationSeconds.Observe(duration.Seconds())
}

// Materialized records one written entry.
func (p *Prometheus) Materialized(action string) {
	p.MaterializedTotal.WithLabelValues(action).Inc()
}

// CycleFinished records a cycle outcome.
func (p *Prometheus) CycleFinished(outcome string) {
	p.CyclesTotal.WithLabelValues(outcome).Inc()
}

// WriteTextfile writes the registry in the Prometheus text format, suitable
// for the node_exporter textfile collector.
func (p *Prometheus) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, p.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
