package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"candela-hq/guardian/pkg/anchor"
	"candela-hq/guardian/pkg/audit"
	"candela-hq/guardian/pkg/audit/index"
	"candela-hq/guardian/pkg/cli"
	"candela-hq/guardian/pkg/config"
	"candela-hq/guardian/pkg/guard"
	"candela-hq/guardian/pkg/latency"
	"candela-hq/guardian/pkg/ruleset"
	"candela-hq/guardian/pkg/secrets"
	"candela-hq/guardian/pkg/semantic"
	"candela-hq/guardian/pkg/telemetry/logging"
	"candela-hq/guardian/pkg/telemetry/metrics"
	"candela-hq/guardian/rulesets"
)

// app holds the components a command opened. close releases them in
// reverse order.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *metrics.Collector

	provider ruleset.Provider
	source   *ruleset.Source // nil for built-in rulesets

	auditLog *audit.Log
	index    *index.Index
	latency  *latency.Recorder
	store    anchor.Store
	anchorer *anchor.Anchorer

	closers []func() error
}

// loadConfig reads the configuration and installs the default logger.
// Logs go to stderr so that command output on stdout stays parseable.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return nil, cli.NewConfigError("config", err.Error())
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}
	if _, err := logging.Setup(logging.FromConfig(&cfg.Telemetry.Logging, os.Stderr)); err != nil {
		return nil, cli.NewConfigError("telemetry.logging", err.Error())
	}

	sm, err := secrets.FromConfig(cfg.Secrets)
	if err != nil {
		return nil, cli.NewConfigError("secrets.dir", err.Error())
	}
	if err := sm.ResolveConfig(context.Background(), cfg); err != nil {
		return nil, cli.NewConfigError("secrets", err.Error())
	}
	if err := config.Validate(cfg); err != nil {
		return nil, cli.NewConfigError("config", err.Error())
	}
	return cfg, nil
}

func newApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, logger: slog.Default().With("component", "cli")}, nil
}

func (a *app) onClose(fn func() error) {
	a.closers = append(a.closers, fn)
}

func (a *app) close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// loadRuleset resolves ref, or the configured ruleset when ref is empty.
// A file is loaded through a Source so that serve can watch it; a
// built-in name yields a static provider.
func (a *app) loadRuleset(ref string) error {
	if ref == "" {
		ref = a.cfg.Ruleset.Path
	}
	if _, err := os.Stat(ref); err == nil {
		src, err := ruleset.NewSource(ref)
		if err != nil {
			return err
		}
		a.provider, a.source = src, src
		return nil
	}
	rs, err := rulesets.Load(ref)
	if err != nil {
		return err
	}
	a.provider = ruleset.Static(rs)
	return nil
}

// openAudit opens the audit log, the query index when enabled, and the
// latency recorder.
func (a *app) openAudit() error {
	opts := &audit.Options{Sync: a.cfg.Audit.Sync}
	if a.cfg.Audit.Index.Enabled {
		if err := a.openIndex(); err != nil {
			return err
		}
		opts.Indexer = a.index
	}

	log, err := audit.Open(a.cfg.Audit.LogPath, opts)
	if err != nil {
		return err
	}
	a.auditLog = log
	a.onClose(log.Close)

	var observer latency.Observer
	if a.metrics != nil {
		observer = a.metrics
	}
	rec, err := latency.NewRecorder(a.cfg.Audit.LatencyLogPath, observer)
	if err != nil {
		return err
	}
	a.latency = rec
	a.onClose(rec.Close)
	return nil
}

func (a *app) openIndex() error {
	if a.index != nil {
		return nil
	}
	ic := a.cfg.Audit.Index
	ix, err := index.Open(&index.Config{
		Path:         ic.Path,
		MaxOpenConns: ic.MaxOpenConns,
		WALMode:      ic.WALMode,
		BusyTimeout:  ic.BusyTimeout,
	})
	if err != nil {
		return err
	}
	a.index = ix
	a.onClose(ix.Close)
	return nil
}

// openAnchorer opens the configured anchor store and, when a sink URL is
// set, the HTTP sink.
func (a *app) openAnchorer() error {
	ac := a.cfg.Anchor

	var store anchor.Store
	switch ac.Backend {
	case "sqlite":
		s, err := anchor.NewSQLiteStore(ac.SQLitePath, ac.BusyTimeout)
		if err != nil {
			return err
		}
		store = s
	default:
		store = anchor.NewFileStore(ac.StatePath, ac.LedgerPath)
	}
	a.store = store
	a.onClose(store.Close)

	var sink anchor.Sink
	if ac.Sink.URL != "" {
		s, err := anchor.NewHTTPSink(ac.Sink.URL, ac.Sink.Timeout, ac.Sink.Headers)
		if err != nil {
			return cli.NewConfigError("anchor.sink.url", err.Error())
		}
		sink = s
	}

	a.anchorer = anchor.New(anchor.Config{
		LogPath:        a.cfg.Audit.LogPath,
		ConfirmTimeout: ac.ConfirmTimeout,
	}, store, sink)
	if a.metrics != nil {
		a.anchorer.SetMetrics(a.metrics)
	}
	return nil
}

// newMatcher builds the semantic matcher for the configured embedder.
func (a *app) newMatcher() *semantic.Matcher {
	sc := a.cfg.Semantic
	var embedder semantic.Embedder
	switch sc.Embedder {
	case "ollama":
		embedder = semantic.NewOllamaEmbedder(sc.Ollama.URL, sc.Ollama.Model, sc.Ollama.Timeout)
	default:
		embedder = &semantic.HashingEmbedder{Dimensions: sc.HashingDimensions}
	}
	return semantic.NewMatcher(embedder, sc.Threshold)
}

// newRuntime builds a runtime in mode over the opened ruleset and audit
// log. The caller closes it.
func (a *app) newRuntime(mode guard.Mode, extra ...guard.Option) (*guard.Runtime, error) {
	rc := a.cfg.Runtime
	gc := &guard.Config{
		Mode:              mode,
		LatencyBudget:     rc.LatencyBudget,
		CacheTTL:          rc.CacheTTL,
		SemanticEnabled:   a.cfg.Semantic.Enabled,
		SemanticThreshold: a.cfg.Semantic.Threshold,
		Workers:           rc.Workers,
		QueueSize:         rc.QueueSize,
		Text: audit.TextPolicy{
			StoreText:     a.cfg.Audit.StoreText,
			PreviewLength: a.cfg.Audit.PreviewLength,
		},
	}

	opts := []guard.Option{guard.WithLatencyRecorder(a.latency)}
	if gc.SemanticEnabled && mode != guard.ModeRegexOnly {
		opts = append(opts, guard.WithMatcher(a.newMatcher()))
	}
	if a.metrics != nil {
		opts = append(opts, guard.WithMetrics(a.metrics))
	}
	return guard.New(gc, a.provider, a.auditLog, append(opts, extra...)...)
}

// configuredMode parses the mode flag, falling back to the configured one.
func (a *app) configuredMode(flag string) (guard.Mode, error) {
	if flag == "" {
		flag = a.cfg.Runtime.Mode
	}
	mode, err := guard.ParseMode(flag)
	if err != nil {
		return "", cli.NewConfigError("mode", err.Error())
	}
	return mode, nil
}

// ledger returns the anchor ledger, opening the store if needed.
func (a *app) ledger(ctx context.Context) ([]anchor.LedgerRecord, error) {
	if a.anchorer == nil {
		if err := a.openAnchorer(); err != nil {
			return nil, err
		}
	}
	records, err := a.anchorer.Ledger(ctx)
	if err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	return records, nil
}
