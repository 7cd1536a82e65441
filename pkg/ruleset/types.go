package ruleset

import (
	"regexp"
	"strings"
)

// Tier is the enforcement tier of a directive.
type Tier string

const (
	// TierBlock findings are violations and fail the verdict.
	TierBlock Tier = "BLOCK"
	// TierWarn findings are advisory only.
	TierWarn Tier = "WARN"
)

// ParseTier parses a tier name case-insensitively.
func ParseTier(s string) (Tier, bool) {
	switch Tier(strings.ToUpper(strings.TrimSpace(s))) {
	case TierBlock:
		return TierBlock, true
	case TierWarn:
		return TierWarn, true
	default:
		return "", false
	}
}

// CheckKind names a check variant. The values are the document "type" tags.
type CheckKind string

const (
	KindRegexForbid    CheckKind = "regex_forbid"
	KindRegexRequire   CheckKind = "regex_require"
	KindLuhnCardForbid CheckKind = "luhn_card_forbid"
	KindSemanticForbid CheckKind = "semantic_forbid"
	KindMaxWords       CheckKind = "max_words"
	KindUnknown        CheckKind = "unknown"
)

// Ruleset is a loaded, immutable set of directives.
type Ruleset struct {
	// Name identifies the ruleset family (for example "baseline").
	Name string

	// Version is a free-form version label from the document.
	Version string

	// Directives in document order.
	Directives []Directive

	// Hash is the canonical SHA-256 of the parsed document.
	Hash string

	// Origin is where the ruleset was loaded from (a path or "builtin:<name>").
	Origin string
}

// Directive is a single governance rule.
type Directive struct {
	ID     int
	Title  string
	Tier   Tier
	Checks []Check
}

// Directive returns the directive with the given id.
func (rs *Ruleset) Directive(id int) (Directive, bool) {
	for _, d := range rs.Directives {
		if d.ID == id {
			return d, true
		}
	}
	return Directive{}, false
}

// HasSemanticChecks reports whether any directive needs a semantic matcher.
func (rs *Ruleset) HasSemanticChecks() bool {
	for _, d := range rs.Directives {
		for _, c := range d.Checks {
			if c.Kind() == KindSemanticForbid {
				return true
			}
		}
	}
	return false
}

// Check is one machine-checkable condition of a directive.
// The set of implementations is closed to this package.
type Check interface {
	Kind() CheckKind
	isCheck()
}

// NamedPattern is a compiled regular expression with a stable name.
type NamedPattern struct {
	Name   string
	Regexp *regexp.Regexp
}

// RegexForbid fails when any of its patterns matches.
type RegexForbid struct {
	Patterns []NamedPattern
	Flags    []string
}

// RegexRequire fails when its pattern does not match.
type RegexRequire struct {
	Name   string
	Regexp *regexp.Regexp
	Flags  []string
}

// LuhnCardForbid fails when the text contains a Luhn-valid card number.
type LuhnCardForbid struct{}

// SemanticForbid fails when the text is semantically close to any phrase.
// A zero Threshold defers to the matcher's configured default.
type SemanticForbid struct {
	Phrases   []string
	Threshold float64
}

// MaxWords fails when the whitespace-delimited word count exceeds Max.
type MaxWords struct {
	Max int
}

// Unknown is a check whose type this version does not understand.
type Unknown struct {
	Type string
}

func (RegexForbid) Kind() CheckKind    { return KindRegexForbid }
func (RegexRequire) Kind() CheckKind   { return KindRegexRequire }
func (LuhnCardForbid) Kind() CheckKind { return KindLuhnCardForbid }
func (SemanticForbid) Kind() CheckKind { return KindSemanticForbid }
func (MaxWords) Kind() CheckKind       { return KindMaxWords }
func (Unknown) Kind() CheckKind        { return KindUnknown }

func (RegexForbid) isCheck()    {}
func (RegexRequire) isCheck()   {}
func (LuhnCardForbid) isCheck() {}
func (SemanticForbid) isCheck() {}
func (MaxWords) isCheck()       {}
func (Unknown) isCheck()        {}
