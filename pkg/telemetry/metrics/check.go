package metrics

import (
	"strconv"
	"time"

	"candela-hq/guardian/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// CheckMetrics tracks verdicts produced by the runtime.
//
// Metrics:
//   - guardian_checks_total: checks by mode, cache outcome and result
//   - guardian_check_duration_seconds: caller-visible check latency
//   - guardian_check_path_duration_seconds: fast and semantic path latency
//   - guardian_latency_budget_exceeded_total: checks over the latency budget
type CheckMetrics struct {
	checksTotal    *prometheus.CounterVec
	checkDuration  *prometheus.HistogramVec
	pathDuration   *prometheus.HistogramVec
	budgetExceeded *prometheus.CounterVec
}

// NewCheckMetrics creates and registers check metrics with the provided registry.
func NewCheckMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *CheckMetrics {
	cm := &CheckMetrics{
		checksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "checks_total",
				Help:      "Total number of output checks",
			},
			[]string{"mode", "cached", "result"},
		),

		checkDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "check_duration_seconds",
				Help:      "Caller-visible duration of output checks in seconds",
				Buckets:   cfg.CheckDurationBuckets,
			},
			[]string{"mode", "cached"},
		),

		pathDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "check_path_duration_seconds",
				Help:      "Duration of the fast and semantic evaluation paths in seconds",
				Buckets:   cfg.CheckDurationBuckets,
			},
			[]string{"mode", "path"},
		),

		budgetExceeded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "latency_budget_exceeded_total",
				Help:      "Total number of checks that exceeded the latency budget",
			},
			[]string{"mode"},
		),
	}

	registry.MustRegister(cm.checksTotal, cm.checkDuration, cm.pathDuration, cm.budgetExceeded)
	return cm
}

// RecordCheck records one completed check.
func (cm *CheckMetrics) RecordCheck(mode string, cached, passed bool, duration time.Duration) {
	result := "fail"
	if passed {
		result = "pass"
	}
	c := strconv.FormatBool(cached)
	cm.checksTotal.WithLabelValues(mode, c, result).Inc()
	cm.checkDuration.WithLabelValues(mode, c).Observe(duration.Seconds())
}

// RecordPath records the duration of one evaluation path. Cache hits are
// not path evaluations and are ignored.
func (cm *CheckMetrics) RecordPath(mode, path string, seconds float64, cacheHit bool) {
	if cacheHit {
		return
	}
	cm.pathDuration.WithLabelValues(mode, path).Observe(seconds)
}

// RecordBudgetExceeded counts a check that ran over its budget.
func (cm *CheckMetrics) RecordBudgetExceeded(mode string) {
	cm.budgetExceeded.WithLabelValues(mode).Inc()
}
