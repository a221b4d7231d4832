package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DispatcherMetrics tracks outbox delivery.
type DispatcherMetrics struct {
	delivered    *prometheus.CounterVec
	failed       *prometheus.CounterVec
	deadLettered *prometheus.CounterVec
	batch        prometheus.Histogram
	pending      prometheus.Gauge
}

func NewDispatcherMetrics(reg prometheus.Registerer) *DispatcherMetrics {
	if reg == nil {
		return &DispatcherMetrics{}
	}
	delivered := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_delivered_total",
		Help: "Events delivered per sink.",
	}, []string{"sink", "event_type"})
	failed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_delivery_failures_total",
		Help: "Failed sink deliveries.",
	}, []string{"sink", "event_type"})
	deadLettered := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_dead_lettered_total",
		Help: "Events moved to the dead letter table.",
	}, []string{"event_type", "reason"})
	batch := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "outbox_batch_duration_seconds",
		Help:    "Time spent dispatching one batch.",
		Buckets: prometheus.DefBuckets,
	})
	pending := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "outbox_pending_events",
		Help: "Events waiting for delivery.",
	})
	reg.MustRegister(delivered, failed, deadLettered, batch, pending)
	return &DispatcherMetrics{
		delivered:    delivered,
		failed:       failed,
		deadLettered: deadLettered,
		batch:        batch,
		pending:      pending,
	}
}

func (d *DispatcherMetrics) IncDelivered(sink, eventType string) {
	if d == nil || d.delivered == nil {
		return
	}
	d.delivered.WithLabelValues(normalizeLabel(sink), normalizeLabel(eventType)).Inc()
}

func (d *DispatcherMetrics) IncFailed(sink, eventType string) {
	if d == nil || d.failed == nil {
		return
	}
	d.failed.WithLabelValues(normalizeLabel(sink), normalizeLabel(eventType)).Inc()
}

func (d *DispatcherMetrics) IncDeadLettered(eventType, reason string) {
	if d == nil || d.deadLettered == nil {
		return
	}
	d.deadLettered.WithLabelValues(normalizeLabel(eventType), normalizeLabel(reason)).Inc()
}

func (d *DispatcherMetrics) ObserveBatch(duration time.Duration) {
	if d == nil || d.batch == nil {
		return
	}
	d.batch.Observe(duration.Seconds())
}

func (d *DispatcherMetrics) SetPending(count int64) {
	if d == nil || d.pending == nil {
		return
	}
	d.pending.Set(float64(count))
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
