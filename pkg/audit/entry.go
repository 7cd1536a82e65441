package audit

import (
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"candela-hq/guardian/pkg/canonical"
)

// Entry is one line of the audit log.
type Entry struct {
	ID           string          `json:"id"`
	Timestamp    time.Time       `json:"ts"`
	Mode         string          `json:"mode"`
	RulesetHash  string          `json:"ruleset_hash"`
	TextHash     string          `json:"text_hash"`
	Text         string          `json:"text,omitempty"`
	Preview      string          `json:"preview,omitempty"`
	Verdict      json.RawMessage `json:"verdict"`
	CorrectionOf string          `json:"correction_of,omitempty"`
}

// TextPolicy controls how much of the checked text is written to the log.
type TextPolicy struct {
	// StoreText writes the full text. When false only a preview is kept.
	// Default: true
	StoreText bool

	// PreviewLength is the preview size in characters when StoreText is
	// false. Zero stores no text at all, only its hash.
	// Default: 200
	PreviewLength int
}

// DefaultTextPolicy returns the default text policy.
func DefaultTextPolicy() TextPolicy {
	return TextPolicy{StoreText: true, PreviewLength: 200}
}

// NewEntry builds an entry for text with a fresh id and timestamp. verdict
// is marshalled as-is into the entry.
func NewEntry(mode, rulesetHash, text string, verdict any, policy TextPolicy) (*Entry, error) {
	raw, err := json.Marshal(verdict)
	if err != nil {
		return nil, fmt.Errorf("marshal verdict: %w", err)
	}

	e := &Entry{
		ID:          uuid.New().String(),
		Timestamp:   time.Now().UTC(),
		Mode:        mode,
		RulesetHash: rulesetHash,
		TextHash:    canonical.HashString(text),
		Verdict:     raw,
	}
	if policy.StoreText {
		e.Text = text
	} else if policy.PreviewLength > 0 {
		e.Preview = Truncate(text, policy.PreviewLength)
	}
	return e, nil
}

// Correction returns a new entry that supersedes e with verdict. The text
// fields and hashes are carried over.
func (e *Entry) Correction(verdict any) (*Entry, error) {
	raw, err := json.Marshal(verdict)
	if err != nil {
		return nil, fmt.Errorf("marshal verdict: %w", err)
	}
	c := *e
	c.ID = uuid.New().String()
	c.Timestamp = time.Now().UTC()
	c.Verdict = raw
	c.CorrectionOf = e.ID
	return &c, nil
}

// VerdictSummary is the part of a logged verdict the audit tooling reads.
type VerdictSummary struct {
	Passed     bool    `json:"passed"`
	Score      float64 `json:"score"`
	Violations []int   `json:"violations"`
}

// Summary decodes the verdict fields needed for indexing and reports.
func (e *Entry) Summary() (VerdictSummary, error) {
	var s VerdictSummary
	if len(e.Verdict) == 0 {
		return s, fmt.Errorf("entry %s has no verdict", e.ID)
	}
	if err := json.Unmarshal(e.Verdict, &s); err != nil {
		return s, fmt.Errorf("decode verdict of entry %s: %w", e.ID, err)
	}
	return s, nil
}

// Truncate shortens s to at most n characters, appending "..." when it cuts.
// It never splits a UTF-8 sequence.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	if n <= 3 {
		return string([]rune(s)[:n])
	}
	return string([]rune(s)[:n-3]) + "..."
}
