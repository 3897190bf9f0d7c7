// Package metrics counts what the orchestration loop does. All methods are
// safe on a nil *Metrics, so callers that do not export metrics pass nil.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Session outcomes.
const (
	OutcomeAnswered = "answered"
	OutcomeForced   = "forced"
	OutcomeFailed   = "failed"
)

type Metrics struct {
	Registry *prometheus.Registry

	Directives     *prometheus.CounterVec
	ParseFailures  prometheus.Counter
	Fallbacks      *prometheus.CounterVec
	Outcomes       *prometheus.CounterVec
	StepsPerAnswer prometheus.Histogram
	ActiveSessions prometheus.Gauge
	CallLatency    *prometheus.HistogramVec
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		Directives: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hybrid_directives_total",
				Help: "Parsed controller directives by action",
			},
			[]string{"action"},
		),
		ParseFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "hybrid_directive_parse_failures_total",
				Help: "Controller outputs that could not be parsed",
			},
		),
		Fallbacks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hybrid_retrieval_fallbacks_total",
				Help: "Capability actions replaced by retrieval, by reason",
			},
			[]string{"reason"},
		),
		Outcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hybrid_sessions_total",
				Help: "Finished sessions by outcome",
			},
			[]string{"outcome"},
		),
		StepsPerAnswer: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "hybrid_session_steps",
				Help:    "Loop iterations used per session",
				Buckets: prometheus.LinearBuckets(0, 1, 11),
			},
		),
		ActiveSessions: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "hybrid_active_sessions",
				Help: "Sessions currently running",
			},
		),
		CallLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "hybrid_collaborator_call_seconds",
				Help: "Latency of completion, retrieval and capability calls",
			},
			[]string{"collaborator"},
		),
	}
}

func (m *Metrics) Directive(action string) {
	if m == nil {
		return
	}
	m.Directives.WithLabelValues(action).Inc()
}

func (m *Metrics) ParseFailure() {
	if m == nil {
		return
	}
	m.ParseFailures.Inc()
}

func (m *Metrics) Fallback(reason string) {
	if m == nil {
		return
	}
	m.Fallbacks.WithLabelValues(reason).Inc()
}

// SessionStarted returns a func that records the outcome when the session ends.
func (m *Metrics) SessionStarted() func(outcome string, steps int) {
	if m == nil {
		return func(string, int) {}
	}
	m.ActiveSessions.Inc()
	return func(outcome string, steps int) {
		m.ActiveSessions.Dec()
		m.Outcomes.WithLabelValues(outcome).Inc()
		m.StepsPerAnswer.Observe(float64(steps))
	}
}

// ObserveCall records how long a collaborator call took.
func (m *Metrics) ObserveCall(collaborator string, start time.Time) {
	if m == nil {
		return
	}
	m.CallLatency.WithLabelValues(collaborator).Observe(time.Since(start).Seconds())
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
