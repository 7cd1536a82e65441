// Package guard is the execution runtime that turns a ruleset into verdicts.
//
// A Runtime owns a verdict cache, a bounded background worker pool and the
// audit log it writes to. Every non-cached check runs the rule engine fast
// path on the calling goroutine. What happens to semantic checks depends on
// the configured Mode:
//
//   - regex_only: semantic checks are never evaluated.
//   - strict: semantic checks run synchronously and their findings are merged
//     into the returned verdict.
//   - sync_light: the fast verdict is returned immediately and a semantic
//     recheck is queued. A recheck that finds a violation overwrites the
//     cached verdict and appends a correction entry to the audit log. The
//     caller is not notified.
//
// Cached verdicts are shared between callers and must be treated as
// read-only. Checks are not coalesced: two concurrent misses for the same
// key both evaluate, and both are written to the audit log.
package guard
