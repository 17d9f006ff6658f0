package saga

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics observes saga outcomes.
type Metrics interface {
	ObserveRun(saga, result string, seconds float64)
	IncCompensation(saga, result string)
}

// NoopMetrics discards everything.
type NoopMetrics struct{}

func (NoopMetrics) ObserveRun(string, string, float64) {}
func (NoopMetrics) IncCompensation(string, string)     {}

// PromMetrics implements Metrics with Prometheus collectors.
type PromMetrics struct {
	runs          *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	compensations *prometheus.CounterVec
}

// NewPromMetrics creates the collectors and registers them with reg.
func NewPromMetrics(reg prometheus.Registerer) *PromMetrics {
	m := &PromMetrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "archivia",
			Name:      "saga_runs_total",
			Help:      "Saga runs by saga and result",
		}, []string{"saga", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "archivia",
			Name:      "saga_duration_seconds",
			Help:      "Saga run duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"saga"}),
		compensations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "archivia",
			Name:      "saga_compensations_total",
			Help:      "Compensating actions by saga and result",
		}, []string{"saga", "result"}),
	}
	reg.MustRegister(m.runs, m.duration, m.compensations)
	return m
}

func (m *PromMetrics) ObserveRun(saga, result string, seconds float64) {
	m.runs.WithLabelValues(saga, result).Inc()
	m.duration.WithLabelValues(saga).Observe(seconds)
}

func (m *PromMetrics) IncCompensation(saga, result string) {
	m.compensations.WithLabelValues(saga, result).Inc()
}
