package integrity

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"candela-hq/guardian/pkg/anchor"
	"candela-hq/guardian/pkg/ruleset"
)

// Status is the outcome of an integrity check.
type Status string

const (
	// StatusMatch means the live hash equals the latest anchored hash.
	StatusMatch Status = "match"
	// StatusMismatch means the latest anchored hash differs.
	StatusMismatch Status = "mismatch"
	// StatusUnrecorded means no ruleset record exists for the name.
	StatusUnrecorded Status = "unrecorded"
)

// Ledger supplies anchored records. anchor.Store and *anchor.Anchorer
// implement it.
type Ledger interface {
	Ledger(ctx context.Context) ([]anchor.LedgerRecord, error)
}

// Result describes how the live ruleset relates to the ledger.
type Result struct {
	Status       Status     `json:"status"`
	RulesetName  string     `json:"ruleset_name"`
	Path         string     `json:"path,omitempty"`
	LiveHash     string     `json:"live_hash"`
	RecordedHash string     `json:"recorded_hash,omitempty"`
	RecordedAt   *time.Time `json:"recorded_at,omitempty"`
	Receipt      string     `json:"receipt,omitempty"`

	// HistoricalMatch is set on a mismatch when an older record for the
	// same name carries the live hash, i.e. the file was rolled back.
	HistoricalMatch bool `json:"historical_match"`
}

// OK reports whether the live ruleset is the anchored one.
func (r *Result) OK() bool {
	return r.Status == StatusMatch
}

// Check loads the ruleset at path, recomputes its hash and compares it with
// the ledger. A mismatch is a result, not an error; only failures to read
// the ruleset or the ledger are returned as errors.
func Check(ctx context.Context, path string, ledger Ledger) (*Result, error) {
	rs, err := ruleset.LoadFile(path)
	if err != nil {
		return nil, err
	}
	records, err := ledger.Ledger(ctx)
	if err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	res := Compare(rs, records)
	res.Path = path
	return res, nil
}

// Compare checks rs against records without any I/O.
func Compare(rs *ruleset.Ruleset, records []anchor.LedgerRecord) *Result {
	name := Name(rs)
	res := &Result{
		Status:      StatusUnrecorded,
		RulesetName: name,
		LiveHash:    rs.Hash,
	}

	latest := anchor.LatestRuleset(records, name)
	if latest == nil {
		return res
	}

	res.RecordedHash = latest.Root
	res.Receipt = latest.Receipt
	if !latest.AnchoredAt.IsZero() {
		at := latest.AnchoredAt
		res.RecordedAt = &at
	}

	if sameHash(latest.Root, rs.Hash) {
		res.Status = StatusMatch
		return res
	}

	res.Status = StatusMismatch
	for _, rec := range records {
		if rec.Kind == anchor.KindRuleset && rec.RulesetName == name && sameHash(rec.Root, rs.Hash) {
			res.HistoricalMatch = true
			break
		}
	}
	return res
}

// Name is the ledger name of rs: its declared name, or the file name
// without extension when the document has none.
func Name(rs *ruleset.Ruleset) string {
	if rs.Name != "" {
		return rs.Name
	}
	origin := strings.TrimPrefix(rs.Origin, "builtin:")
	base := filepath.Base(origin)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func sameHash(a, b string) bool {
	return strings.EqualFold(strings.TrimPrefix(a, "0x"), strings.TrimPrefix(b, "0x"))
}
