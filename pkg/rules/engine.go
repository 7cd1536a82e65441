package rules

import (
	"context"
	"fmt"
	"strings"

	"candela-hq/guardian/pkg/ruleset"
)

// SemanticMatcher decides whether text is semantically close to any of the
// given phrases. reason names the closest phrase and its similarity score.
// A zero threshold means the matcher's own default.
type SemanticMatcher interface {
	Match(ctx context.Context, text string, phrases []string, threshold float64) (blocked bool, reason string, err error)
}

// Evaluate runs every check of rs against text in declaration order.
// SemanticForbid checks are skipped unless includeSemantic is true, in which
// case matcher must not be nil.
func Evaluate(ctx context.Context, text string, rs *ruleset.Ruleset, includeSemantic bool, matcher SemanticMatcher) []Finding {
	if includeSemantic && matcher == nil {
		panic("rules: semantic evaluation requested without a matcher")
	}
	return evaluate(ctx, text, rs, func(c ruleset.Check) bool {
		return includeSemantic || c.Kind() != ruleset.KindSemanticForbid
	}, matcher, true)
}

// EvaluateSemantic runs only the SemanticForbid checks of rs. Its result can
// be combined with a fast-path evaluation using Merge.
func EvaluateSemantic(ctx context.Context, text string, rs *ruleset.Ruleset, matcher SemanticMatcher) []Finding {
	if matcher == nil {
		panic("rules: semantic evaluation requested without a matcher")
	}
	return evaluate(ctx, text, rs, func(c ruleset.Check) bool {
		return c.Kind() == ruleset.KindSemanticForbid
	}, matcher, false)
}

func evaluate(ctx context.Context, text string, rs *ruleset.Ruleset, include func(ruleset.Check) bool, matcher SemanticMatcher, reportEmpty bool) []Finding {
	var findings []Finding
	words := -1

	for di, d := range rs.Directives {
		if len(d.Checks) == 0 {
			if reportEmpty {
				findings = append(findings, Finding{
					DirectiveID:    d.ID,
					Title:          d.Title,
					Level:          LevelAdvisory,
					Message:        "no machine-checkable checks",
					directiveIndex: di,
					checkIndex:     -1,
				})
			}
			continue
		}

		level := LevelAdvisory
		if d.Tier == ruleset.TierBlock {
			level = LevelViolation
		}

		for ci, c := range d.Checks {
			if !include(c) {
				continue
			}
			emit := func(l Level, msg string) {
				findings = append(findings, Finding{
					DirectiveID:    d.ID,
					Title:          d.Title,
					Level:          l,
					Check:          c.Kind(),
					Message:        msg,
					directiveIndex: di,
					checkIndex:     ci,
				})
			}

			switch check := c.(type) {
			case ruleset.RegexForbid:
				for _, p := range check.Patterns {
					if p.Regexp.MatchString(text) {
						emit(level, fmt.Sprintf("forbidden pattern %q matched", p.Name))
					}
				}

			case ruleset.RegexRequire:
				if !check.Regexp.MatchString(text) {
					emit(level, fmt.Sprintf("required pattern %q not found", check.Name))
				}

			case ruleset.LuhnCardForbid:
				if number, ok := FindCardNumber(text); ok {
					emit(level, fmt.Sprintf("payment card number detected (ending %s)", number[len(number)-4:]))
				}

			case ruleset.SemanticForbid:
				blocked, reason, err := matcher.Match(ctx, text, check.Phrases, check.Threshold)
				switch {
				case err != nil:
					emit(LevelAdvisory, fmt.Sprintf("semantic check unavailable: %v", err))
				case blocked:
					emit(level, "semantic match: "+reason)
				}

			case ruleset.MaxWords:
				if words < 0 {
					words = len(strings.Fields(text))
				}
				if words > check.Max {
					emit(level, fmt.Sprintf("word count %d exceeds limit %d", words, check.Max))
				}

			case ruleset.Unknown:
				emit(LevelAdvisory, fmt.Sprintf("unrecognized check type %q was not evaluated", check.Type))

			default:
				emit(LevelAdvisory, fmt.Sprintf("unsupported check %T was not evaluated", c))
			}
		}
	}
	return findings
}
