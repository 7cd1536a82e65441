// Package index maintains a SQLite query index over the audit log.
//
// The JSONL log stays the source of truth and the anchored artifact; the
// index is a disposable projection that can be rebuilt at any time with
// Reindex. It answers questions such as "which entries violated directive 3
// last week" without scanning the log.
//
// An *Index implements audit.Indexer and can be passed to audit.Open so new
// entries are indexed as they are appended.
package index
