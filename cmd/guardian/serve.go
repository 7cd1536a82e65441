package main

import (
	"context"
	"path/filepath"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"candela-hq/guardian/pkg/anchor"
	"candela-hq/guardian/pkg/cli"
	"candela-hq/guardian/pkg/guard"
	"candela-hq/guardian/pkg/ruleset"
	"candela-hq/guardian/pkg/server"
	"candela-hq/guardian/pkg/telemetry/health"
	"candela-hq/guardian/pkg/telemetry/metrics"
	"candela-hq/guardian/pkg/telemetry/tracing"
)

var serveFlags struct {
	listen  string
	mode    string
	ruleset string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP check service",
	Long: `Serve the check API over HTTP together with metrics and health probes.

While serving, a ruleset file is reloaded when it changes (ruleset.watch)
and the audit log is anchored on the configured cron schedule
(anchor.schedule). SIGINT or SIGTERM drains in-flight requests and waits
for queued rechecks before exiting.

Examples:
  guardian serve --config guardian.yaml
  guardian serve --listen 127.0.0.1:9000 --mode strict`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&serveFlags.listen, "listen", "l", "", "listen address (default: from config)")
	serveCmd.Flags().StringVarP(&serveFlags.mode, "mode", "m", "", "strict, sync_light or regex_only (default: from config)")
	serveCmd.Flags().StringVarP(&serveFlags.ruleset, "ruleset", "r", "", "ruleset file or built-in name (default: from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	cfg := a.cfg
	if serveFlags.listen != "" {
		cfg.Server.ListenAddress = serveFlags.listen
	}
	mode, err := a.configuredMode(serveFlags.mode)
	if err != nil {
		return err
	}

	a.metrics = metrics.NewCollector(&cfg.Telemetry.Metrics, nil)

	tracer, err := tracing.New(&cfg.Telemetry.Tracing, tracing.WithVersion(Version))
	if err != nil {
		return cli.NewConfigError("telemetry.tracing", err.Error())
	}
	a.onClose(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return tracer.Shutdown(ctx)
	})

	if err := a.loadRuleset(serveFlags.ruleset); err != nil {
		return cli.NewCommandError("serve", err)
	}
	if err := a.openAudit(); err != nil {
		return cli.NewCommandError("serve", err)
	}
	if err := a.openAnchorer(); err != nil {
		return cli.NewCommandError("serve", err)
	}

	rt, err := a.newRuntime(mode, guard.WithTracer(tracer.Trace()))
	if err != nil {
		return cli.NewCommandError("serve", err)
	}
	// Registered last so it closes first and flushes rechecks into the
	// audit log before the log is closed.
	a.onClose(rt.Close)

	if a.source != nil {
		a.source.OnReload(func(rs *ruleset.Ruleset) {
			a.logger.Info("ruleset reloaded",
				"path", a.source.Path(),
				"hash", rs.Hash,
				"directives", len(rs.Directives),
			)
		})
	}

	if err := a.metrics.RegisterGaugeFunc("cache_entries", "Verdicts held in the result cache.", func() float64 {
		return float64(rt.CacheLen())
	}); err != nil {
		return cli.NewCommandError("serve", err)
	}
	if err := a.metrics.RegisterGaugeFunc("recheck_queue_depth", "Background rechecks waiting for a worker.", func() float64 {
		return float64(rt.PendingJobs())
	}); err != nil {
		return cli.NewCommandError("serve", err)
	}

	checker := health.New(cfg.Telemetry.Health.CheckTimeout)
	checker.RegisterCheck("audit_dir", health.DirWritable(filepath.Dir(cfg.Audit.LogPath)))
	checker.RegisterCheck("ruleset", func(context.Context) error {
		if rt.Ruleset() == nil {
			return guard.ErrNoRuleset
		}
		return nil
	})
	if a.index != nil {
		checker.RegisterCheck("audit_index", health.Pinger(a.index))
	}

	srv, err := server.New(cfg, server.Deps{
		Checker:   rt,
		Ledger:    a.anchorer,
		AuditPath: cfg.Audit.LogPath,
		Metrics:   a.metrics,
		Health:    checker,
		Tracer:    tracer.Trace(),
		Version:   versionInfo(),
	})
	if err != nil {
		return cli.NewCommandError("serve", err)
	}

	a.logger.Info("guardian starting",
		"version", Version,
		"mode", mode,
		"ruleset", rt.Ruleset().Hash,
		"audit_log", cfg.Audit.LogPath,
	)

	g, ctx := errgroup.WithContext(cmd.Context())

	scheduler := anchor.NewScheduler(a.anchorer, cfg.Anchor.Schedule)
	if err := scheduler.Start(ctx); err != nil {
		return cli.NewConfigError("anchor.schedule", err.Error())
	}
	defer scheduler.Stop()

	if a.source != nil && cfg.Ruleset.Watch {
		watcher, err := ruleset.NewWatcher(a.source, cfg.Ruleset.DebounceInterval)
		if err != nil {
			return cli.NewCommandError("serve", err)
		}
		g.Go(func() error {
			return watcher.Watch(ctx)
		})
	}

	g.Go(func() error {
		return srv.Start(ctx)
	})

	if err := g.Wait(); err != nil {
		return cli.NewCommandError("serve", err)
	}
	a.logger.Info("guardian stopped")
	return nil
}
