package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/notifyhub/tenant-dispatch/internal/domain"
	"github.com/notifyhub/tenant-dispatch/internal/processor"
)

// Metrics groups all Prometheus instruments used across the application.
// Registered once at startup via New(); passed by pointer wherever needed.
type Metrics struct {
	EntriesSent    *prometheus.CounterVec
	EntriesFailed  *prometheus.CounterVec
	EntriesSkipped *prometheus.CounterVec
	SendLatency    *prometheus.HistogramVec
	StaleResets    prometheus.Counter
	PassDuration   prometheus.Histogram
}

// New registers all instruments with the given Prometheus registerer and
// returns the populated Metrics struct.
// Using a custom registry (instead of prometheus.DefaultRegisterer) keeps
// tests isolated and avoids global state.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		EntriesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "queue_entries_sent_total",
			Help: "Total entries accepted by the provider.",
		}, []string{"channel"}),

		EntriesFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "queue_entries_failed_total",
			Help: "Total provider send failures (including retried attempts).",
		}, []string{"channel"}),

		EntriesSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "queue_entries_skipped_total",
			Help: "Total entries skipped for compliance reasons.",
		}, []string{"reason"}),

		SendLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "queue_send_seconds",
			Help:    "Provider dispatch latency per entry.",
			Buckets: prometheus.DefBuckets,
		}, []string{"channel"}),

		StaleResets: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "queue_stale_claims_reset_total",
			Help: "Entries reverted from processing to scheduled after a worker stall.",
		}),

		PassDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "queue_pass_seconds",
			Help:    "Duration of one per-tenant processing pass.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		m.EntriesSent,
		m.EntriesFailed,
		m.EntriesSkipped,
		m.SendLatency,
		m.StaleResets,
		m.PassDuration,
	)

	return m
}

// ProcessorHooks returns the callback set expected by the processor.
// Centralises the prometheus observation calls so the processor stays
// metrics-agnostic.
func (m *Metrics) ProcessorHooks() processor.Hooks {
	return processor.Hooks{
		OnSent: func(ch domain.Channel, latency time.Duration) {
			m.EntriesSent.WithLabelValues(string(ch)).Inc()
			m.SendLatency.WithLabelValues(string(ch)).Observe(latency.Seconds())
		},
		OnFailed: func(ch domain.Channel) {
			m.EntriesFailed.WithLabelValues(string(ch)).Inc()
		},
		OnSkipped: func(reason domain.SkipReason) {
			m.EntriesSkipped.WithLabelValues(string(reason)).Inc()
		},
		OnStaleReset: func(count int) {
			m.StaleResets.Add(float64(count))
		},
		OnPassDone: func(d time.Duration) {
			m.PassDuration.Observe(d.Seconds())
		},
	}
}
