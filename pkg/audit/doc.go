// Package audit implements the append-only JSONL audit log.
//
// Every non-cached runtime invocation appends exactly one Entry. Entries are
// never rewritten or removed; a verdict corrected by a background recheck is
// recorded as a new Entry whose CorrectionOf names the original entry. Each
// raw line of the log is a Merkle leaf for anchoring, so the bytes written by
// Append are the bytes that get anchored.
//
// # Usage
//
//	log, err := audit.Open("logs/output_log.jsonl", nil)
//	if err != nil {
//	    return err
//	}
//	defer log.Close()
//
//	entry, err := audit.NewEntry("sync_light", rs.Hash, text, verdict, audit.DefaultTextPolicy())
//	line, err := log.Append(ctx, entry)
//
// An optional Indexer (see package audit/index) is notified after every
// successful append. Index failures are logged and never fail the append.
package audit
