package metrics

import (
	"sync"
	"time"

	"candela-hq/guardian/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Collector owns the Prometheus registry and every Guardian metric. It
// satisfies the observer interfaces of the runtime, the anchorer and the
// latency recorder, so one value can be handed to each of them.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	checks     *CheckMetrics
	background *BackgroundMetrics
	anchors    *AnchorMetrics
	http       *HTTPMetrics

	// routes bounds the label values used for HTTP routes
	routes *CardinalityLimiter
}

// NewCollector creates a collector with the specified configuration and
// registry. A nil registry gets a fresh one with the Go runtime and process
// collectors registered.
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	runtime, _ := guard.New(&gcfg, provider, log, guard.WithMetrics(collector))
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNamespace
	}
	if len(cfg.CheckDurationBuckets) == 0 {
		cfg.CheckDurationBuckets = append([]float64(nil), config.DefaultCheckDurationBuckets...)
	}

	return &Collector{
		config:     cfg,
		registry:   registry,
		checks:     NewCheckMetrics(cfg, registry),
		background: NewBackgroundMetrics(cfg, registry),
		anchors:    NewAnchorMetrics(cfg, registry),
		http:       NewHTTPMetrics(cfg, registry),
		routes:     NewCardinalityLimiter(64),
	}
}

// ObserveCheck records a completed check.
func (c *Collector) ObserveCheck(mode string, cached, passed bool, duration time.Duration) {
	if !c.config.Enabled {
		return
	}
	c.checks.RecordCheck(mode, cached, passed, duration)
}

// ObserveBudgetExceeded counts a check that exceeded the latency budget.
func (c *Collector) ObserveBudgetExceeded(mode string) {
	if !c.config.Enabled {
		return
	}
	c.checks.RecordBudgetExceeded(mode)
}

// ObserveLatency records one fast or semantic path duration.
func (c *Collector) ObserveLatency(mode, path string, seconds float64, cacheHit bool) {
	if !c.config.Enabled {
		return
	}
	c.checks.RecordPath(mode, path, seconds, cacheHit)
}

// ObserveRecheck records a finished background recheck.
func (c *Collector) ObserveRecheck(outcome string, duration time.Duration) {
	if !c.config.Enabled {
		return
	}
	c.background.RecordRecheck(outcome, duration)
}

// ObserveJobDropped counts a job rejected by a full queue.
func (c *Collector) ObserveJobDropped(kind string) {
	if !c.config.Enabled {
		return
	}
	c.background.RecordDropped(kind)
}

// ObserveJobFailed counts a job that returned an error or panicked.
func (c *Collector) ObserveJobFailed(kind, reason string) {
	if !c.config.Enabled {
		return
	}
	c.background.RecordFailed(kind, reason)
}

// ObserveAnchorPass records an anchoring pass.
func (c *Collector) ObserveAnchorPass(status string, lines int) {
	if !c.config.Enabled {
		return
	}
	c.anchors.RecordPass(status, lines)
}

// ObserveHTTPRequest records a served request. Routes beyond the
// cardinality limit are reported as "other".
func (c *Collector) ObserveHTTPRequest(route, method string, code int, duration time.Duration) {
	if !c.config.Enabled {
		return
	}
	if !c.routes.Allow(route) {
		route = "other"
	}
	c.http.RecordRequest(route, method, code, duration)
}

// TrackInFlight increments the in-flight gauge and returns the matching
// decrement.
func (c *Collector) TrackInFlight() func() {
	if !c.config.Enabled {
		return func() {}
	}
	c.http.inFlight.Inc()
	return c.http.inFlight.Dec
}

// RegisterGaugeFunc exposes a value sampled at scrape time, such as the
// verdict cache size or the background queue depth.
func (c *Collector) RegisterGaugeFunc(name, help string, fn func() float64) error {
	return c.registry.Register(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: c.config.Namespace,
			Subsystem: c.config.Subsystem,
			Name:      name,
			Help:      help,
		},
		fn,
	))
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// CardinalityLimiter prevents metric cardinality explosion by limiting
// the number of distinct label values.
type CardinalityLimiter struct {
	maxCardinality int
	current        map[string]struct{}
	mu             sync.RWMutex
}

// NewCardinalityLimiter creates a limiter for at most maxCardinality values.
func NewCardinalityLimiter(maxCardinality int) *CardinalityLimiter {
	return &CardinalityLimiter{
		maxCardinality: maxCardinality,
		current:        make(map[string]struct{}),
	}
}

// Allow reports whether value is already tracked or still fits under the limit.
func (cl *CardinalityLimiter) Allow(value string) bool {
	cl.mu.RLock()
	if _, exists := cl.current[value]; exists {
		cl.mu.RUnlock()
		return true
	}
	cl.mu.RUnlock()

	cl.mu.Lock()
	defer cl.mu.Unlock()

	if _, exists := cl.current[value]; exists {
		return true
	}
	if len(cl.current) >= cl.maxCardinality {
		return false
	}
	cl.current[value] = struct{}{}
	return true
}

// Count returns the current cardinality.
func (cl *CardinalityLimiter) Count() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.current)
}
