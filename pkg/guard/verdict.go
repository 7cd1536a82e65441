package guard

import (
	"math"

	"candela-hq/guardian/pkg/rules"
	"candela-hq/guardian/pkg/ruleset"
)

const (
	// NoteRecheckPending marks a sync_light verdict whose semantic checks
	// are still queued.
	NoteRecheckPending = "semantic_recheck_pending"

	// NoteRecheckDropped marks a sync_light verdict whose recheck could not
	// be queued.
	NoteRecheckDropped = "semantic_recheck_dropped"

	// NoteCorrected marks a verdict produced by a background recheck.
	NoteCorrected = "semantic_correction"

	notePrefixBudget = "latency_budget_exceeded:"
)

// Verdict is the outcome of checking one text.
type Verdict struct {
	Passed      bool            `json:"passed"`
	Score       float64         `json:"score"`
	Violations  []int           `json:"violations"`
	Findings    []rules.Finding `json:"findings"`
	Notes       []string        `json:"notes"`
	Mode        Mode            `json:"mode"`
	WallTimeMS  float64         `json:"wall_time_ms"`
	RulesetHash string          `json:"ruleset_hash"`
}

// HasNote reports whether the verdict carries note.
func (v *Verdict) HasNote(note string) bool {
	for _, n := range v.Notes {
		if n == note {
			return true
		}
	}
	return false
}

func newVerdict(findings []rules.Finding, rs *ruleset.Ruleset, mode Mode, notes []string, wallMS float64) *Verdict {
	violations := rules.ViolatedDirectives(findings)
	if violations == nil {
		violations = []int{}
	}
	if findings == nil {
		findings = []rules.Finding{}
	}
	if notes == nil {
		notes = []string{}
	}
	return &Verdict{
		Passed:      len(violations) == 0,
		Score:       Score(rs, violations),
		Violations:  violations,
		Findings:    findings,
		Notes:       notes,
		Mode:        mode,
		WallTimeMS:  round(wallMS, 3),
		RulesetHash: rs.Hash,
	}
}

// Score is the percentage of BLOCK directives in rs without a violation,
// rounded to two decimals. A ruleset with no BLOCK directives scores 100.
func Score(rs *ruleset.Ruleset, violations []int) float64 {
	violated := make(map[int]bool, len(violations))
	for _, id := range violations {
		violated[id] = true
	}
	total, clean := 0, 0
	for _, d := range rs.Directives {
		if d.Tier != ruleset.TierBlock {
			continue
		}
		total++
		if !violated[d.ID] {
			clean++
		}
	}
	if total == 0 {
		return 100
	}
	return round(100*float64(clean)/float64(total), 2)
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
