package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the reconciliation engine collectors.
type Metrics struct {
	Processed       *prometheus.CounterVec
	ProcessDuration *prometheus.HistogramVec
	OrderingRetries prometheus.Counter
	Replayed        *prometheus.CounterVec
	QueueDepth      prometheus.Gauge
	QueueRejected   prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		Processed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "progression_engine_events_total",
			Help: "Inbound events by disposition and type",
		}, []string{"disposition", "type"}),
		ProcessDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "progression_engine_process_duration_seconds",
			Help:    "Time to process one inbound event",
			Buckets: prometheus.DefBuckets,
		}, []string{"type"}),
		OrderingRetries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "progression_engine_ordering_retries_total",
			Help: "Retries of events that referenced an aggregate not yet created",
		}),
		Replayed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "progression_engine_parked_replays_total",
			Help: "Parked events replayed, by resulting disposition",
		}, []string{"disposition"}),
		QueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "progression_engine_queue_depth",
			Help: "Envelopes waiting for a worker",
		}),
		QueueRejected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "progression_engine_queue_rejected_total",
			Help: "Submissions refused because the queue was full",
		}),
	}
}

func (m *Metrics) ObserveProcessed(disposition, eventType string, took time.Duration) {
	if m == nil {
		return
	}
	m.Processed.WithLabelValues(disposition, eventType).Inc()
	m.ProcessDuration.WithLabelValues(eventType).Observe(took.Seconds())
}

func (m *Metrics) IncOrderingRetry() {
	if m == nil {
		return
	}
	m.OrderingRetries.Inc()
}

func (m *Metrics) IncReplayed(disposition string) {
	if m == nil {
		return
	}
	m.Replayed.WithLabelValues(disposition).Inc()
}

func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.QueueDepth.Set(float64(n))
}

func (m *Metrics) IncQueueRejected() {
	if m == nil {
		return
	}
	m.QueueRejected.Inc()
}
