package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics records store activity on a private registry. Nothing is pushed;
// the registry is only exposed through Handler on the loopback listener.
type Metrics struct {
	registry *prometheus.Registry

	saved          *prometheus.CounterVec
	deletions      *prometheus.CounterVec
	persistErrors  *prometheus.CounterVec
	historySize    prometheus.Gauge
	streakDays     prometheus.Gauge
	refreshedTotal prometheus.Counter
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		saved: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "think_evaluations_saved_total",
				Help: "Total number of evaluations saved, by verdict band",
			},
			[]string{"band"},
		),
		deletions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "think_evaluation_deletions_total",
				Help: "Total number of delete requests, by outcome",
			},
			[]string{"outcome"},
		),
		persistErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "think_persist_errors_total",
				Help: "Total number of failed writes to local storage",
			},
			[]string{"key"},
		),
		historySize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "think_history_size",
			Help: "Number of evaluations currently held",
		}),
		streakDays: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "think_streak_days",
			Help: "Current consecutive-day streak",
		}),
		refreshedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "think_retention_refreshes_total",
			Help: "Total number of retention refresh passes",
		}),
	}
	m.registry.MustRegister(
		m.saved, m.deletions, m.persistErrors,
		m.historySize, m.streakDays, m.refreshedTotal,
	)
	return m
}

// EvaluationSaved counts a saved evaluation under its band message.
func (m *Metrics) EvaluationSaved(band string) { m.saved.WithLabelValues(band).Inc() }

// DeleteRequested counts a delete attempt by outcome (deleted, protected, not_found).
func (m *Metrics) DeleteRequested(outcome string) { m.deletions.WithLabelValues(outcome).Inc() }

// PersistFailed counts a failed write of the named state blob.
func (m *Metrics) PersistFailed(key string) { m.persistErrors.WithLabelValues(key).Inc() }

// HistorySize records how many evaluations are currently held.
func (m *Metrics) HistorySize(n int) { m.historySize.Set(float64(n)) }

// Streak records the current run of consecutive active days.
func (m *Metrics) Streak(days int) { m.streakDays.Set(float64(days)) }

// RetentionRefreshed counts a pass of the periodic retention refresh.
func (m *Metrics) RetentionRefreshed() { m.refreshedTotal.Inc() }

// Registry exposes the underlying registry (used by tests).
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
