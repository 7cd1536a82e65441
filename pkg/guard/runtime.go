package guard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"candela-hq/guardian/pkg/audit"
	"candela-hq/guardian/pkg/latency"
	"candela-hq/guardian/pkg/rules"
	"candela-hq/guardian/pkg/ruleset"
)

var (
	// ErrNoMatcher is returned by New when semantic evaluation is enabled
	// for a semantic mode but no matcher was supplied.
	ErrNoMatcher = errors.New("guard: semantic evaluation enabled without a matcher")

	// ErrNoRuleset is returned when the provider has no ruleset loaded.
	ErrNoRuleset = errors.New("guard: no ruleset loaded")
)

// AuditLog is where verdicts are recorded. *audit.Log implements it.
type AuditLog interface {
	Append(ctx context.Context, entry *audit.Entry) (int, error)
}

// LatencyRecorder receives one record per check. *latency.Recorder
// implements it.
type LatencyRecorder interface {
	Record(rec latency.Record) error
}

// Warmer is implemented by matchers that benefit from initialization ahead
// of the first semantic check.
type Warmer interface {
	Warm(ctx context.Context) error
}

// CheckInfo describes how a verdict was produced.
type CheckInfo struct {
	// Cached is true when the verdict came from the cache. No audit entry
	// was written in that case.
	Cached bool

	// Line is the 1-based audit log line of the new entry.
	Line int

	// EntryID is the id of the new audit entry.
	EntryID string
}

// Option customizes a Runtime.
type Option func(*Runtime)

// WithMatcher sets the semantic matcher.
func WithMatcher(m rules.SemanticMatcher) Option {
	return func(r *Runtime) { r.matcher = m }
}

// WithLatencyRecorder sets where per-check timings go.
func WithLatencyRecorder(rec LatencyRecorder) Option {
	return func(r *Runtime) { r.latency = rec }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option {
	return func(r *Runtime) { r.metrics = m }
}

// WithTracer sets the tracer. The global otel tracer is used by default.
func WithTracer(t trace.Tracer) Option {
	return func(r *Runtime) { r.tracer = t }
}

// WithClock replaces time.Now for the runtime and its cache.
func WithClock(now func() time.Time) Option {
	return func(r *Runtime) { r.now = now }
}

// Runtime checks texts against the current ruleset. It is safe for
// concurrent use.
type Runtime struct {
	cfg     Config
	rules   ruleset.Provider
	log     AuditLog
	matcher rules.SemanticMatcher
	latency LatencyRecorder
	metrics Metrics
	tracer  trace.Tracer
	now     func() time.Time
	logger  *slog.Logger

	cache *Cache
	pool  *pool
}

// New builds a runtime. A nil cfg uses DefaultConfig. If the matcher
// implements Warmer, one warmup job is queued before New returns.
func New(cfg *Config, provider ruleset.Provider, log AuditLog, opts ...Option) (*Runtime, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid runtime config: %w", err)
	}
	if provider == nil || log == nil {
		return nil, fmt.Errorf("guard: ruleset provider and audit log are required")
	}

	r := &Runtime{
		cfg:     *cfg,
		rules:   provider,
		log:     log,
		metrics: noopMetrics{},
		tracer:  otel.Tracer("candela-hq/guardian/pkg/guard"),
		now:     time.Now,
		logger:  slog.Default().With("component", "guard.runtime"),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.cfg.SemanticEnabled && r.cfg.Mode.semantic() && r.matcher == nil {
		return nil, ErrNoMatcher
	}

	r.cache = NewCache(r.cfg.CacheTTL)
	r.cache.now = r.now
	r.pool = newPool(r.cfg.Workers, r.cfg.QueueSize, r.metrics)

	if w, ok := r.matcher.(Warmer); ok && r.cfg.SemanticEnabled && r.cfg.Mode.semantic() {
		r.pool.trySubmit(job{kind: "warmup", run: w.Warm})
	}

	r.logger.Info("runtime started",
		"mode", r.cfg.Mode,
		"semantic_enabled", r.cfg.SemanticEnabled,
		"cache_ttl", r.cfg.CacheTTL,
		"workers", r.cfg.Workers,
	)
	return r, nil
}

// Mode returns the configured mode.
func (r *Runtime) Mode() Mode {
	return r.cfg.Mode
}

// Ruleset returns the ruleset currently in force.
func (r *Runtime) Ruleset() *ruleset.Ruleset {
	return r.rules.Current()
}

// CacheLen returns the number of cached verdicts.
func (r *Runtime) CacheLen() int {
	return r.cache.Len()
}

// PendingJobs returns the number of queued background jobs.
func (r *Runtime) PendingJobs() int {
	return r.pool.pending()
}

// Check returns the verdict for text.
func (r *Runtime) Check(ctx context.Context, text string) (*Verdict, error) {
	v, _, err := r.CheckWithInfo(ctx, text)
	return v, err
}

// CheckWithInfo returns the verdict for text and how it was produced.
// A cache hit returns the identical *Verdict returned for the original
// check. An audit append failure is returned as an error and nothing is
// cached.
func (r *Runtime) CheckWithInfo(ctx context.Context, text string) (*Verdict, CheckInfo, error) {
	ctx, span := r.tracer.Start(ctx, "guard.Check",
		trace.WithAttributes(attribute.String("guard.mode", string(r.cfg.Mode))),
	)
	defer span.End()

	rs := r.rules.Current()
	if rs == nil {
		span.SetStatus(codes.Error, ErrNoRuleset.Error())
		return nil, CheckInfo{}, ErrNoRuleset
	}
	mode := string(r.cfg.Mode)
	key := CacheKey(text, rs.Hash, r.cfg.Mode, r.cfg.SemanticEnabled, r.cfg.SemanticThreshold)

	if v, ok := r.cache.Get(key); ok {
		span.SetAttributes(attribute.Bool("guard.cached", true), attribute.Bool("guard.passed", v.Passed))
		r.metrics.ObserveCheck(mode, true, v.Passed, 0)
		r.recordLatency(latency.Record{Mode: mode, CacheHit: true})
		return v, CheckInfo{Cached: true}, nil
	}

	start := r.now()
	findings := rules.Evaluate(ctx, text, rs, false, nil)
	fast := r.now().Sub(start)

	var (
		notes   []string
		semMS   *float64
		pending *recheck
	)
	if r.semanticActive(rs) && !rules.HasViolation(findings) {
		switch r.cfg.Mode {
		case ModeStrict:
			semStart := r.now()
			findings = rules.Merge(findings, rules.EvaluateSemantic(ctx, text, rs, r.matcher))
			ms := millis(r.now().Sub(semStart))
			semMS = &ms

		case ModeSyncLight:
			p := newRecheck(key, text, rs)
			queued := r.pool.trySubmit(job{kind: "recheck", run: func(ctx context.Context) error {
				return r.recheck(ctx, p)
			}})
			if queued {
				pending = p
				// Cancels the job if the check panics before recording.
				defer p.release(nil, nil)
				notes = append(notes, NoteRecheckPending)
			} else {
				notes = append(notes, NoteRecheckDropped)
			}
		}
	}

	if fast > r.cfg.LatencyBudget {
		notes = append(notes, fmt.Sprintf("%s%dms", notePrefixBudget, fast.Milliseconds()))
		r.metrics.ObserveBudgetExceeded(mode)
		r.logger.Warn("fast path exceeded latency budget",
			"mode", mode,
			"elapsed_ms", fast.Milliseconds(),
			"budget_ms", r.cfg.LatencyBudget.Milliseconds(),
		)
	}

	v := newVerdict(findings, rs, r.cfg.Mode, notes, millis(r.now().Sub(start)))

	entry, err := audit.NewEntry(mode, rs.Hash, text, v, r.cfg.Text)
	if err == nil {
		var line int
		line, err = r.log.Append(ctx, entry)
		if err == nil {
			r.cache.Set(key, v)
			pending.release(v, entry)

			span.SetAttributes(attribute.Bool("guard.cached", false), attribute.Bool("guard.passed", v.Passed))
			r.metrics.ObserveCheck(mode, false, v.Passed, r.now().Sub(start))
			r.recordLatency(latency.Record{Mode: mode, DtFastMS: millis(fast), DtSemMS: semMS})
			return v, CheckInfo{Line: line, EntryID: entry.ID}, nil
		}
	}

	pending.release(nil, nil)
	span.RecordError(err)
	span.SetStatus(codes.Error, "audit append failed")
	r.logger.Error("failed to record verdict", "mode", mode, "error", err)
	return nil, CheckInfo{}, fmt.Errorf("record verdict: %w", err)
}

// Close stops accepting background work and waits for queued jobs.
func (r *Runtime) Close() error {
	r.pool.close()
	r.logger.Info("runtime stopped")
	return nil
}

func (r *Runtime) semanticActive(rs *ruleset.Ruleset) bool {
	return r.cfg.SemanticEnabled && r.cfg.Mode.semantic() && r.matcher != nil && rs.HasSemanticChecks()
}

func (r *Runtime) recordLatency(rec latency.Record) {
	if r.latency == nil {
		return
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = r.now().UTC()
	}
	if err := r.latency.Record(rec); err != nil {
		r.logger.Warn("failed to record latency", "error", err)
	}
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
