// Package latency records per-check timings to a JSONL file and summarizes
// them into per-mode percentiles.
//
// Each non-cached check produces one Record with the rule-engine time and,
// in strict mode, the synchronous semantic time. Cache hits are recorded
// with a zero fast-path time and are counted separately by Summarize.
package latency
