package metrics

import (
	"time"

	"candela-hq/guardian/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// AnchorMetrics tracks anchoring passes.
//
// Metrics:
//   - guardian_anchor_passes_total: passes by status
//   - guardian_anchored_lines_total: audit lines covered by anchored roots
//   - guardian_anchor_last_success_timestamp_seconds: time of the last anchored pass
type AnchorMetrics struct {
	passesTotal   *prometheus.CounterVec
	linesTotal    prometheus.Counter
	lastAnchoring prometheus.Gauge
	now           func() time.Time
}

// NewAnchorMetrics creates and registers anchoring metrics.
func NewAnchorMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *AnchorMetrics {
	am := &AnchorMetrics{
		passesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "anchor_passes_total",
				Help:      "Total number of anchoring passes by status",
			},
			[]string{"status"},
		),

		linesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "anchored_lines_total",
				Help:      "Total number of audit lines covered by anchored Merkle roots",
			},
		),

		lastAnchoring: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "anchor_last_success_timestamp_seconds",
				Help:      "Unix time of the last successful anchoring pass",
			},
		),
		now: time.Now,
	}

	registry.MustRegister(am.passesTotal, am.linesTotal, am.lastAnchoring)
	return am
}

// RecordPass records an anchoring pass. Only "anchored" passes add lines.
func (am *AnchorMetrics) RecordPass(status string, lines int) {
	am.passesTotal.WithLabelValues(status).Inc()
	if status == "anchored" {
		am.linesTotal.Add(float64(lines))
		am.lastAnchoring.Set(float64(am.now().Unix()))
	}
}
