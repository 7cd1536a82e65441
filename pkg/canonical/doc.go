// Package canonical provides the single canonical JSON serializer and the
// SHA-256 helpers used for every identity hash in Guardian.
//
// Canonical form sorts object keys recursively, keeps non-ASCII characters as
// UTF-8, and uses the ", " and ": " separators. Integral floats keep a
// trailing ".0". Ruleset hashes recorded by external tooling that writes the
// same form compare equal to hashes computed here.
//
// # Usage
//
//	doc := map[string]any{"name": "baseline", "version": "1.0"}
//	hash, err := canonical.Hash(doc)
//	if err != nil {
//		return err
//	}
//	fmt.Println(hash) // 64 lowercase hex characters
package canonical
