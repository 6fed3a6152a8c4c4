// Package observability exposes Prometheus metrics for turn processing.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects counters and histograms for every stage of a turn.
//
// The metrics track:
//   - generation calls by provider and outcome, with latency
//   - corrective retries of structured output
//   - guideline propositions and tool staging outcomes
//   - emitted events by kind and emission failures
//   - end-to-end turn latency
//
// All methods are safe to call on a nil *Metrics, which turns them into
// no-ops so components can treat metrics as optional.
//
// Usage:
//
//	metrics := observability.NewMetrics(prometheus.NewRegistry())
//	metrics.GenerationObserved("openai", "success", time.Since(start))
type Metrics struct {
	// GenerationCounter counts generation attempts.
	// Labels: provider, outcome (success|error)
	GenerationCounter *prometheus.CounterVec

	// GenerationDuration measures a single generation attempt in seconds.
	// Labels: provider
	// Buckets: 0.1s, 0.5s, 1s, 2s, 5s, 10s, 30s, 60s
	GenerationDuration *prometheus.HistogramVec

	// CorrectiveRetries counts follow-up prompts issued after malformed output.
	// Labels: schema
	CorrectiveRetries *prometheus.CounterVec

	// PropositionCounter counts guidelines proposed for a turn.
	PropositionCounter prometheus.Counter

	// GuidelineBatchCounter counts evaluated guideline batches.
	// Labels: status (success|error)
	GuidelineBatchCounter *prometheus.CounterVec

	// ToolEvaluationCounter counts tool-call evaluations by outcome.
	// Labels: tool_name, outcome (staged|skipped|duplicate_suppressed|failed)
	ToolEvaluationCounter *prometheus.CounterVec

	// EventCounter counts emitted events.
	// Labels: kind (status|message|tool)
	EventCounter *prometheus.CounterVec

	// EventFailureCounter counts events the transport rejected.
	// Labels: kind
	EventFailureCounter *prometheus.CounterVec

	// TurnDuration measures end-to-end turn processing in seconds.
	// Labels: status (success|error)
	TurnDuration *prometheus.HistogramVec
}

// NewMetrics creates the metrics and registers them with reg. A nil reg
// registers with the Prometheus default registerer. It should be called
// once per registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		GenerationCounter: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "turnmesh_generations_total",
				Help: "Total number of generation attempts by provider and outcome",
			},
			[]string{"provider", "outcome"},
		),

		GenerationDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "turnmesh_generation_duration_seconds",
				Help:    "Duration of single generation attempts in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"provider"},
		),

		CorrectiveRetries: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "turnmesh_structured_corrective_retries_total",
				Help: "Total number of corrective prompts issued after malformed output",
			},
			[]string{"schema"},
		),

		PropositionCounter: f.NewCounter(
			prometheus.CounterOpts{
				Name: "turnmesh_guideline_propositions_total",
				Help: "Total number of guidelines proposed as applicable",
			},
		),

		GuidelineBatchCounter: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "turnmesh_guideline_batches_total",
				Help: "Total number of evaluated guideline batches by status",
			},
			[]string{"status"},
		),

		ToolEvaluationCounter: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "turnmesh_tool_evaluations_total",
				Help: "Total number of tool-call evaluations by tool and outcome",
			},
			[]string{"tool_name", "outcome"},
		),

		EventCounter: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "turnmesh_events_emitted_total",
				Help: "Total number of events delivered to the transport by kind",
			},
			[]string{"kind"},
		),

		EventFailureCounter: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "turnmesh_event_failures_total",
				Help: "Total number of events the transport failed to deliver by kind",
			},
			[]string{"kind"},
		),

		TurnDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "turnmesh_turn_duration_seconds",
				Help:    "Duration of turn processing in seconds",
				Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"status"},
		),
	}
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// GenerationObserved records one generation attempt.
func (m *Metrics) GenerationObserved(provider string, err error, d time.Duration) {
	if m == nil {
		return
	}
	m.GenerationCounter.WithLabelValues(provider, status(err)).Inc()
	m.GenerationDuration.WithLabelValues(provider).Observe(d.Seconds())
}

// CorrectiveRetry records a corrective follow-up prompt for schema.
func (m *Metrics) CorrectiveRetry(schema string) {
	if m == nil {
		return
	}
	m.CorrectiveRetries.WithLabelValues(schema).Inc()
}

// GuidelineBatch records the result of one guideline batch and the number of
// propositions it produced.
func (m *Metrics) GuidelineBatch(proposed int, err error) {
	if m == nil {
		return
	}
	m.GuidelineBatchCounter.WithLabelValues(status(err)).Inc()
	if proposed > 0 {
		m.PropositionCounter.Add(float64(proposed))
	}
}

// ToolEvaluated records a staging outcome.
func (m *Metrics) ToolEvaluated(tool, outcome string) {
	if m == nil {
		return
	}
	m.ToolEvaluationCounter.WithLabelValues(tool, outcome).Inc()
}

// EventEmitted records a delivery attempt of an event of the given kind.
func (m *Metrics) EventEmitted(kind string, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.EventFailureCounter.WithLabelValues(kind).Inc()
		return
	}
	m.EventCounter.WithLabelValues(kind).Inc()
}

// TurnObserved records the duration of a processed turn.
func (m *Metrics) TurnObserved(err error, d time.Duration) {
	if m == nil {
		return
	}
	m.TurnDuration.WithLabelValues(status(err)).Observe(d.Seconds())
}
