// Guardian checks model output against a directive ruleset and keeps a
// tamper-evident record of every verdict.
//
// It provides:
//   - Rule evaluation in strict, sync_light and regex_only modes
//   - An append-only JSONL audit log with a SQLite query index
//   - Merkle anchoring of audit batches and ruleset hashes
//   - Inclusion proofs and ruleset integrity checks
//   - An HTTP API with Prometheus metrics and health probes
//
// Usage:
//
//	# Check a text with the default ruleset and mode
//	guardian validate --text "My SSN is 123-45-6789."
//
//	# Compare all three modes on a file
//	guardian validate --input answer.md --all-modes
//
//	# Anchor the pending audit lines
//	guardian anchor
//
//	# Prove that an audit line is part of an anchored batch
//	guardian verify --line 42
//
//	# Serve the HTTP API
//	guardian serve --config guardian.yaml
package main

func main() {
	Execute()
}
