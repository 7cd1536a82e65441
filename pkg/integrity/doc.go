// Package integrity compares the ruleset in force against the hashes
// anchored in the ledger. The live hash is always recomputed from the file;
// no hash literal in code or configuration is trusted.
package integrity
