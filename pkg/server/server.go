package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"candela-hq/guardian/pkg/config"
	"candela-hq/guardian/pkg/formats"
	"candela-hq/guardian/pkg/guard"
	"candela-hq/guardian/pkg/integrity"
	"candela-hq/guardian/pkg/ruleset"
	"candela-hq/guardian/pkg/telemetry/health"
	"candela-hq/guardian/pkg/telemetry/metrics"
	"candela-hq/guardian/pkg/telemetry/tracing"
)

// Checker produces verdicts. *guard.Runtime implements it.
type Checker interface {
	CheckWithInfo(ctx context.Context, text string) (*guard.Verdict, guard.CheckInfo, error)
	Ruleset() *ruleset.Ruleset
}

// Deps are the components the server exposes over HTTP.
type Deps struct {
	// Checker answers POST /v1/check. Required.
	Checker Checker

	// Ledger backs /v1/integrity and /v1/proof. Required.
	Ledger integrity.Ledger

	// AuditPath is the audit log read by /v1/proof. Required.
	AuditPath string

	// Metrics is optional. When nil no metrics endpoint is mounted.
	Metrics *metrics.Collector

	// Health is optional. When nil a checker without readiness checks is
	// used.
	Health *health.Checker

	// Tracer is optional and defaults to the global provider.
	Tracer trace.Tracer

	Version health.VersionInfo
}

// Server serves the guardian HTTP API.
type Server struct {
	config     config.ServerConfig
	telemetry  config.TelemetryConfig
	deps       Deps
	lint       formats.Options
	logger     *slog.Logger
	httpServer *http.Server

	auth      *apiKeyAuth
	limiter   *rateLimiter
	reloader  *certReloader
	tlsConfig *tls.Config

	mu           sync.Mutex
	running      bool
	shutdownOnce sync.Once
}

// New creates a server. cfg supplies the server and telemetry sections.
func New(cfg *config.Config, deps Deps) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("server: config is required")
	}
	if deps.Checker == nil || deps.Ledger == nil || deps.AuditPath == "" {
		return nil, errors.New("server: checker, ledger and audit path are required")
	}
	if deps.Health == nil {
		deps.Health = health.New(cfg.Telemetry.Health.CheckTimeout)
	}
	if deps.Tracer == nil {
		deps.Tracer = otel.Tracer("candela-hq/guardian/pkg/server")
	}

	s := &Server{
		config:    cfg.Server,
		telemetry: cfg.Telemetry,
		deps:      deps,
		logger:    slog.Default().With("component", "server"),
	}
	s.lint = formats.Options{
		RequireConfidence: cfg.Lint.RequireConfidence,
		RequireUncertain:  cfg.Lint.RequireUncertain,
		Microformats:      cfg.Lint.Microformats,
	}
	if s.config.Auth.Enabled {
		s.auth = newAPIKeyAuth(s.config.Auth, s.logger)
	}
	if s.config.RateLimit.Enabled {
		s.limiter = newRateLimiter(s.config.RateLimit)
	}
	if s.config.TLS.Enabled {
		reloader, err := newCertReloader(s.config.TLS.CertFile, s.config.TLS.KeyFile, s.config.TLS.ReloadInterval, s.logger)
		if err != nil {
			return nil, fmt.Errorf("server: %w", err)
		}
		tc, err := newTLSConfig(s.config.TLS, reloader)
		if err != nil {
			return nil, fmt.Errorf("server: %w", err)
		}
		s.reloader = reloader
		s.tlsConfig = tc
	}
	s.httpServer = &http.Server{
		Addr:           s.config.ListenAddress,
		Handler:        s.routes(),
		ReadTimeout:    s.config.ReadTimeout,
		WriteTimeout:   s.config.WriteTimeout,
		IdleTimeout:    s.config.IdleTimeout,
		MaxHeaderBytes: s.config.MaxHeaderBytes,
	}
	return s, nil
}

// Handler returns the routed handler with the full middleware chain.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start listens on the configured address and serves until ctx is
// cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.ListenAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.config.ListenAddress, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		ln.Close()
		return errors.New("server is already running")
	}
	s.running = true
	s.mu.Unlock()

	if s.tlsConfig != nil {
		ln = tls.NewListener(ln, s.tlsConfig)
		reloadCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go s.reloader.run(reloadCtx)
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting http server", "address", ln.Addr().String(), "tls", s.tlsConfig != nil)
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server error: %w", err)
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	}
}

// Shutdown stops accepting connections and waits up to the configured
// shutdown timeout for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		running := s.running
		s.mu.Unlock()
		if !running {
			return
		}

		s.logger.Info("shutting down http server", "timeout", s.config.ShutdownTimeout.String())
		shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
		defer cancel()

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			shutdownErr = fmt.Errorf("server shutdown: %w", err)
		}

		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		s.logger.Info("http server stopped")
	})
	return shutdownErr
}

// IsRunning reports whether the server is serving.
func (s *Server) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	s.handle(mux, http.MethodPost, "/v1/check", s.handleCheck)
	s.handle(mux, http.MethodPost, "/v1/lint", s.handleLint)
	s.handle(mux, http.MethodGet, "/v1/ruleset", s.handleRuleset)
	s.handle(mux, http.MethodGet, "/v1/integrity", s.handleIntegrity)
	s.handle(mux, http.MethodGet, "/v1/proof", s.handleProof)

	if s.deps.Metrics != nil && s.telemetry.Metrics.Enabled {
		mux.Handle(s.telemetry.Metrics.Path, s.deps.Metrics.Handler())
	}
	if s.telemetry.Health.Enabled {
		s.deps.Health.Register(mux, health.Paths{
			Liveness:  s.telemetry.Health.LivenessPath,
			Readiness: s.telemetry.Health.ReadinessPath,
			Version:   s.telemetry.Health.VersionPath,
		}, s.deps.Version)
	}

	var handler http.Handler = mux
	handler = requestLogging(s.logger)(handler)
	handler = requestID(handler)
	handler = recovery(s.logger)(handler)
	return handler
}

// handle mounts an API route wrapped in its per-route tracing and metrics.
// API keys are checked on every route, the rate limit applies to checks only.
func (s *Server) handle(mux *http.ServeMux, method, route string, fn http.HandlerFunc) {
	var h http.Handler = fn
	if s.limiter != nil && route == "/v1/check" {
		h = s.limiter.middleware(h)
	}
	if s.auth != nil {
		h = s.auth.middleware(h)
	}
	h = instrument(s.deps.Metrics, route)(h)
	h = tracing.HTTPMiddleware(s.deps.Tracer, route)(h)
	mux.Handle(method+" "+route, h)
}
