// Package server exposes the guardian runtime over HTTP.
//
// # Routes
//
//	POST /v1/check      {"text": "..."} -> guard.Verdict
//	POST /v1/lint       {"text": "...", "strict": false} -> format findings
//	GET  /v1/ruleset    directive inventory of the ruleset in force
//	GET  /v1/integrity  live ruleset hash compared with the anchor ledger
//	GET  /v1/proof?line=N  Merkle inclusion proof for an audit line
//
// Metrics and the health probes are mounted on the paths configured in the
// telemetry section.
//
// A check response carries X-Guardian-Cache (hit or miss). Fresh verdicts
// also carry X-Guardian-Audit-Line and X-Guardian-Entry-ID, which identify
// the audit entry written for them.
//
// # Middleware
//
// Every request passes through panic recovery, request id assignment
// (X-Request-ID, reused when the client sends one) and access logging.
// API routes are additionally traced and counted per route.
//
// Request text is never logged.
//
// # Hardening
//
// Each is off unless enabled in the server section:
//
//   - API keys: every /v1 route requires a configured key in the auth
//     header, optionally prefixed by the scheme ("Bearer"). Failures get a
//     401 authentication_error. Health and metrics paths stay open.
//   - Rate limiting: POST /v1/check is limited per client with a token
//     bucket. The client is the API key name, else the remote host. Denied
//     requests get a 429 rate_limit_error with Retry-After.
//   - TLS: the listener is wrapped in TLS 1.3 (or 1.2). The certificate is
//     re-read when its files change, and a client CA file turns on mutual
//     TLS.
//
// # Usage
//
//	srv, err := server.New(cfg, server.Deps{
//	    Checker:   runtime,
//	    Ledger:    anchorer,
//	    AuditPath: cfg.Audit.LogPath,
//	    Metrics:   collector,
//	    Health:    checker,
//	})
//	if err != nil {
//	    return err
//	}
//	return srv.Start(ctx)
package server
