package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the outbox relay collectors.
type Metrics struct {
	Published    *prometheus.CounterVec
	Retried      *prometheus.CounterVec
	DeadLettered *prometheus.CounterVec
	Backlog      prometheus.Gauge
	BreakerState prometheus.Gauge
}

func New() *Metrics {
	return &Metrics{
		Published: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "progression_outbox_published_total",
			Help: "Outbound events delivered to the sink",
		}, []string{"type"}),
		Retried: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "progression_outbox_retried_total",
			Help: "Failed publish attempts that were rescheduled",
		}, []string{"type"}),
		DeadLettered: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "progression_outbox_dead_lettered_total",
			Help: "Outbound events that exhausted their attempts",
		}, []string{"type"}),
		Backlog: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "progression_outbox_backlog",
			Help: "Entries waiting to be published at the last sweep",
		}),
		BreakerState: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "progression_outbox_circuit_breaker_state",
			Help: "Sink circuit breaker state (0=closed, 1=open)",
		}),
	}
}

func (m *Metrics) IncPublished(eventType string) {
	if m == nil {
		return
	}
	m.Published.WithLabelValues(eventType).Inc()
}

func (m *Metrics) IncRetried(eventType string) {
	if m == nil {
		return
	}
	m.Retried.WithLabelValues(eventType).Inc()
}

func (m *Metrics) IncDeadLettered(eventType string) {
	if m == nil {
		return
	}
	m.DeadLettered.WithLabelValues(eventType).Inc()
}

func (m *Metrics) SetBacklog(n int) {
	if m == nil {
		return
	}
	m.Backlog.Set(float64(n))
}

func (m *Metrics) SetBreakerOpen(open bool) {
	if m == nil {
		return
	}
	if open {
		m.BreakerState.Set(1)
		return
	}
	m.BreakerState.Set(0)
}
