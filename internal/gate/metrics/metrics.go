package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts gate verdicts.
type Metrics struct {
	Outcomes *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		Outcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "progression_gate_outcomes_total",
			Help: "Inbound envelopes by gate outcome and event type",
		}, []string{"outcome", "type"}), // outcome: accept, duplicate, unroutable, malformed
	}
}

// IncOutcome records one verdict.
func (m *Metrics) IncOutcome(outcome, eventType string) {
	if m != nil {
		m.Outcomes.WithLabelValues(outcome, eventType).Inc()
	}
}
