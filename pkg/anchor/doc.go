// Package anchor commits Merkle roots of the audit log to an external sink.
//
// An anchoring pass reads the audit log lines that have not been anchored
// yet, computes their Merkle root, submits it through a Sink and, only after
// the sink confirms, appends a LedgerRecord and advances the anchored_lines
// counter. Nothing is recorded when the sink fails, so a failed pass can be
// retried and will cover the same lines.
//
// Ruleset hashes are anchored the same way (ledger kind "ruleset") without
// touching the line counter; package integrity compares live rulesets
// against those records.
//
// Two state stores are provided: FileStore (JSON state file plus JSONL
// ledger) and SQLiteStore (one database, one transaction per commit). A
// Scheduler runs passes on a cron schedule.
package anchor
