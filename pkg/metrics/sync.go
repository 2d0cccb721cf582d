package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Cart sync outcome labels.
const (
	SyncOutcomeApplied      = "applied"
	SyncOutcomeSkippedEmpty = "skipped_empty"
	SyncOutcomeNoSession    = "no_session"
	SyncOutcomeFailed       = "failed"
)

// CartSyncMetrics records outcomes of cart-to-session synchronization runs.
type CartSyncMetrics struct {
	outcomes *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewCartSyncMetrics registers the sync metrics on the provided registerer.
func NewCartSyncMetrics(reg prometheus.Registerer) *CartSyncMetrics {
	if reg == nil {
		return &CartSyncMetrics{}
	}
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_sync_total",
		Help: "Cart synchronization runs by outcome.",
	}, []string{"outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cart_sync_duration_seconds",
		Help:    "Duration of cart synchronization runs in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
	reg.MustRegister(outcomes, duration)
	return &CartSyncMetrics{
		outcomes: outcomes,
		duration: duration,
	}
}

// Observe records one sync run with its outcome and duration.
func (m *CartSyncMetrics) Observe(outcome string, duration time.Duration) {
	if m == nil || m.outcomes == nil {
		return
	}
	if outcome == "" {
		outcome = "unknown"
	}
	m.outcomes.WithLabelValues(outcome).Inc()
	m.duration.WithLabelValues(outcome).Observe(duration.Seconds())
}
