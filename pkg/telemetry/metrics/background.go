package metrics

import (
	"time"

	"candela-hq/guardian/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// BackgroundMetrics tracks the runtime's worker pool.
//
// Metrics:
//   - guardian_rechecks_total: background semantic rechecks by outcome
//   - guardian_recheck_duration_seconds: recheck duration
//   - guardian_jobs_dropped_total: jobs rejected because the queue was full
//   - guardian_jobs_failed_total: jobs that returned an error or panicked
type BackgroundMetrics struct {
	rechecksTotal   *prometheus.CounterVec
	recheckDuration prometheus.Histogram
	jobsDropped     *prometheus.CounterVec
	jobsFailed      *prometheus.CounterVec
}

// NewBackgroundMetrics creates and registers worker pool metrics.
func NewBackgroundMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *BackgroundMetrics {
	bm := &BackgroundMetrics{
		rechecksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "rechecks_total",
				Help:      "Total number of background semantic rechecks",
			},
			[]string{"outcome"},
		),

		recheckDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "recheck_duration_seconds",
				Help:      "Duration of background semantic rechecks in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
			},
		),

		jobsDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "jobs_dropped_total",
				Help:      "Total number of background jobs dropped because the queue was full",
			},
			[]string{"kind"},
		),

		jobsFailed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "jobs_failed_total",
				Help:      "Total number of background jobs that failed",
			},
			[]string{"kind", "reason"},
		),
	}

	registry.MustRegister(bm.rechecksTotal, bm.recheckDuration, bm.jobsDropped, bm.jobsFailed)
	return bm
}

// RecordRecheck records a finished recheck.
func (bm *BackgroundMetrics) RecordRecheck(outcome string, duration time.Duration) {
	bm.rechecksTotal.WithLabelValues(outcome).Inc()
	bm.recheckDuration.Observe(duration.Seconds())
}

// RecordDropped counts a job rejected by a full queue.
func (bm *BackgroundMetrics) RecordDropped(kind string) {
	bm.jobsDropped.WithLabelValues(kind).Inc()
}

// RecordFailed counts a failed job.
func (bm *BackgroundMetrics) RecordFailed(kind, reason string) {
	bm.jobsFailed.WithLabelValues(kind, reason).Inc()
}
