// Package logging configures structured logging for Guardian.
//
// It builds a log/slog logger whose handler adds the request ID and the
// active trace and span IDs from the context, and redacts secrets and PII
// (private keys, tokens, e-mail addresses, card and social security numbers)
// before records are encoded. Attributes that carry hashes, such as
// ruleset_hash or root, are never pattern-redacted.
//
//	logger, err := logging.Setup(logging.FromConfig(&cfg.Telemetry.Logging, os.Stderr))
//	logger.InfoContext(ctx, "verdict recorded", "line", 42, "ruleset_hash", hash)
//
// Setup installs the logger as the slog default, so library packages that
// log through slog.Default().With("component", ...) share its handler.
package logging
