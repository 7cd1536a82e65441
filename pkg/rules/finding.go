package rules

import (
	"sort"

	"candela-hq/guardian/pkg/ruleset"
)

// Level is the severity of a finding.
type Level string

const (
	// LevelViolation fails the verdict.
	LevelViolation Level = "violation"
	// LevelAdvisory is reported but does not fail the verdict.
	LevelAdvisory Level = "advisory"
)

// Finding is one reason a text did not cleanly pass a directive.
type Finding struct {
	DirectiveID int               `json:"directive_id"`
	Title       string            `json:"title,omitempty"`
	Level       Level             `json:"level"`
	Check       ruleset.CheckKind `json:"check,omitempty"`
	Message     string            `json:"message"`

	// declaration position, used to merge partial evaluations
	directiveIndex int
	checkIndex     int
}

// HasViolation reports whether any finding is a violation.
func HasViolation(findings []Finding) bool {
	for _, f := range findings {
		if f.Level == LevelViolation {
			return true
		}
	}
	return false
}

// ViolatedDirectives returns the ids of directives with at least one
// violation, in order of first appearance.
func ViolatedDirectives(findings []Finding) []int {
	var ids []int
	seen := make(map[int]bool)
	for _, f := range findings {
		if f.Level != LevelViolation || seen[f.DirectiveID] {
			continue
		}
		seen[f.DirectiveID] = true
		ids = append(ids, f.DirectiveID)
	}
	return ids
}

// Merge combines findings from two evaluations of the same ruleset and
// restores directive/check declaration order.
func Merge(a, b []Finding) []Finding {
	out := make([]Finding, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].directiveIndex != out[j].directiveIndex {
			return out[i].directiveIndex < out[j].directiveIndex
		}
		return out[i].checkIndex < out[j].checkIndex
	})
	return out
}
