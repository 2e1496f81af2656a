// Package metrics exposes engine events as Prometheus metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/danielolaszy/marvin/internal/engine"
)

const namespace = "marvin"

// Recorder implements engine.Recorder on a private registry.
type Recorder struct {
	registry  *prometheus.Registry
	skipped   *prometheus.CounterVec
	updated   *prometheus.CounterVec
	actions   *prometheus.CounterVec
	durations *prometheus.HistogramVec
}

var _ engine.Recorder = (*Recorder)(nil)

// NewRecorder registers the marvin metrics on a fresh registry.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		skipped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tickets_skipped_total",
			Help:      "Candidate tickets left alone, labeled by action and skip reason",
		}, []string{"action", "reason"}),
		updated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tickets_updated_total",
			Help:      "Tickets commented on, labeled by action and outcome",
		}, []string{"action", "outcome"}),
		actions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_total",
			Help:      "Action executions, labeled by result",
		}, []string{"action", "result"}),
		durations: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "action_duration_seconds",
			Help:      "Duration of action executions",
			Buckets:   prometheus.DefBuckets,
		}, []string{"action"}),
	}
}

// TicketSkipped counts a skipped candidate.
func (r *Recorder) TicketSkipped(action string, reason engine.SkipReason) {
	if r == nil {
		return
	}
	r.skipped.WithLabelValues(action, string(reason)).Inc()
}

// TicketUpdated counts an applied update.
func (r *Recorder) TicketUpdated(action string, kind engine.OutcomeKind) {
	if r == nil {
		return
	}
	r.updated.WithLabelValues(action, kind.String()).Inc()
}

// ActionFinished counts an action execution and observes its duration.
func (r *Recorder) ActionFinished(action string, elapsed time.Duration, err error) {
	if r == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	r.actions.WithLabelValues(action, result).Inc()
	r.durations.WithLabelValues(action).Observe(elapsed.Seconds())
}

// Registry returns the registry the metrics live on.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
