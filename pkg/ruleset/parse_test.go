package ruleset

import (
	"errors"
	"strings"
	"testing"
)

const sampleJSON = `{
  "name": "sample",
  "version": "1.0",
  "directives": [
    {"id": 1, "title": "No secrets", "tier": "BLOCK", "checks": [
      {"type": "regex_forbid", "patterns": {"zeta": "zeta", "alpha": "alpha", "mid": "mid"}, "flags": ["IGNORECASE"]}
    ]},
    {"id": 2, "title": "Cards", "tier": "block", "checks": [{"type": "luhn_card_forbid"}]},
    {"id": 3, "title": "Tag", "tier": "WARN", "checks": [{"type": "regex_require", "pattern": "Confidence:"}]},
    {"id": 4, "title": "Topics", "tier": "BLOCK", "checks": [{"type": "semantic_forbid", "phrases": [" ransomware ", ""], "threshold": 0.8}]},
    {"id": 5, "title": "Short", "tier": "WARN", "checks": [{"type": "max_words", "max": 10}]},
    {"id": 6, "title": "Future", "tier": "WARN", "checks": [{"type": "sentiment_forbid"}]},
    {"id": 7, "title": "Documented only", "tier": "WARN"}
  ]
}`

const sampleYAML = `
version: "1.0"
name: sample
directives:
  - id: 1
    title: No secrets
    tier: BLOCK
    checks:
      - type: regex_forbid
        flags: [IGNORECASE]
        patterns:
          zeta: zeta
          alpha: alpha
          mid: mid
  - {id: 2, title: Cards, tier: block, checks: [{type: luhn_card_forbid}]}
  - {id: 3, title: Tag, tier: WARN, checks: [{type: regex_require, pattern: "Confidence:"}]}
  - id: 4
    title: Topics
    tier: BLOCK
    checks:
      - type: semantic_forbid
        phrases: [" ransomware ", ""]
        threshold: 0.8
  - {id: 5, title: Short, tier: WARN, checks: [{type: max_words, max: 10}]}
  - {id: 6, title: Future, tier: WARN, checks: [{type: sentiment_forbid}]}
  - {id: 7, title: Documented only, tier: WARN}
`

func TestParse_JSON(t *testing.T) {
	rs, err := Parse([]byte(sampleJSON), FormatJSON, "sample.json")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if rs.Name != "sample" || rs.Version != "1.0" {
		t.Errorf("unexpected name/version %q/%q", rs.Name, rs.Version)
	}
	if len(rs.Directives) != 7 {
		t.Fatalf("expected 7 directives, got %d", len(rs.Directives))
	}
	if len(rs.Hash) != 64 {
		t.Errorf("expected 64 character hash, got %q", rs.Hash)
	}
	if rs.Origin != "sample.json" {
		t.Errorf("Origin = %q, want %q", rs.Origin, "sample.json")
	}

	forbid, ok := rs.Directives[0].Checks[0].(RegexForbid)
	if !ok {
		t.Fatalf("expected RegexForbid, got %T", rs.Directives[0].Checks[0])
	}
	var names []string
	for _, p := range forbid.Patterns {
		names = append(names, p.Name)
	}
	if got := strings.Join(names, ","); got != "zeta,alpha,mid" {
		t.Errorf("pattern order = %s, want document order zeta,alpha,mid", got)
	}
	if !forbid.Patterns[0].Regexp.MatchString("ZETA") {
		t.Error("IGNORECASE flag not applied")
	}

	if rs.Directives[1].Tier != TierBlock {
		t.Errorf("tier should parse case-insensitively, got %q", rs.Directives[1].Tier)
	}

	sem, ok := rs.Directives[3].Checks[0].(SemanticForbid)
	if !ok {
		t.Fatalf("expected SemanticForbid, got %T", rs.Directives[3].Checks[0])
	}
	if len(sem.Phrases) != 1 || sem.Phrases[0] != "ransomware" {
		t.Errorf("phrases not normalized: %q", sem.Phrases)
	}

	unknown, ok := rs.Directives[5].Checks[0].(Unknown)
	if !ok || unknown.Type != "sentiment_forbid" {
		t.Errorf("expected Unknown{sentiment_forbid}, got %#v", rs.Directives[5].Checks[0])
	}

	if len(rs.Directives[6].Checks) != 0 {
		t.Errorf("expected directive without checks, got %d checks", len(rs.Directives[6].Checks))
	}

	if !rs.HasSemanticChecks() {
		t.Error("HasSemanticChecks() = false, want true")
	}
}

func TestParse_YAMLMatchesJSON(t *testing.T) {
	fromJSON, err := Parse([]byte(sampleJSON), FormatJSON, "sample.json")
	if err != nil {
		t.Fatalf("Parse(json) error = %v", err)
	}
	fromYAML, err := Parse([]byte(sampleYAML), FormatYAML, "sample.yaml")
	if err != nil {
		t.Fatalf("Parse(yaml) error = %v", err)
	}

	if fromJSON.Hash != fromYAML.Hash {
		t.Errorf("identical documents hash differently: json=%s yaml=%s", fromJSON.Hash, fromYAML.Hash)
	}

	forbid := fromYAML.Directives[0].Checks[0].(RegexForbid)
	if forbid.Patterns[0].Name != "zeta" {
		t.Errorf("YAML pattern order not preserved, first = %q", forbid.Patterns[0].Name)
	}
}

func TestParse_HashIgnoresKeyOrder(t *testing.T) {
	a := `{"name":"x","directives":[{"id":1,"tier":"WARN","title":"t"}]}`
	b := `{"directives":[{"title":"t","tier":"WARN","id":1}],"name":"x"}`

	ra, err := Parse([]byte(a), FormatJSON, "a")
	if err != nil {
		t.Fatalf("Parse(a) error = %v", err)
	}
	rb, err := Parse([]byte(b), FormatJSON, "b")
	if err != nil {
		t.Fatalf("Parse(b) error = %v", err)
	}
	if ra.Hash != rb.Hash {
		t.Errorf("hash depends on key order: %s vs %s", ra.Hash, rb.Hash)
	}
}

func TestParse_LegacyArray(t *testing.T) {
	doc := `[{"id": 1, "title": "Legacy", "tier": "WARN", "checks": [{"type": "max_words", "max": 5}]}]`

	rs, err := Parse([]byte(doc), FormatJSON, "legacy.json")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(rs.Directives) != 1 || rs.Directives[0].Title != "Legacy" {
		t.Errorf("unexpected directives %+v", rs.Directives)
	}
}

func TestParse_PatternList(t *testing.T) {
	doc := `{"directives": [{"id": 1, "tier": "BLOCK", "checks": [
		{"type": "regex_forbid", "patterns": [{"name": "b", "pattern": "b+"}, {"name": "a", "pattern": "a+"}]}
	]}]}`

	rs, err := Parse([]byte(doc), FormatJSON, "list.json")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	forbid := rs.Directives[0].Checks[0].(RegexForbid)
	if len(forbid.Patterns) != 2 || forbid.Patterns[0].Name != "b" {
		t.Errorf("unexpected patterns %+v", forbid.Patterns)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name      string
		doc       string
		wantField string
	}{
		{
			name:      "malformed json",
			doc:       `{"directives": [`,
			wantField: "",
		},
		{
			name:      "duplicate ids",
			doc:       `{"directives": [{"id": 1, "tier": "WARN"}, {"id": 1, "tier": "WARN"}]}`,
			wantField: "directives[1].id",
		},
		{
			name:      "unknown tier",
			doc:       `{"directives": [{"id": 1, "tier": "MAYBE"}]}`,
			wantField: "directives[0].tier",
		},
		{
			name:      "invalid regex",
			doc:       `{"directives": [{"id": 1, "tier": "BLOCK", "checks": [{"type": "regex_forbid", "patterns": {"bad": "(unclosed"}}]}]}`,
			wantField: "directives[0].checks[0].patterns.bad",
		},
		{
			name:      "unsupported flag",
			doc:       `{"directives": [{"id": 1, "tier": "BLOCK", "checks": [{"type": "regex_forbid", "patterns": {"a": "a"}, "flags": ["VERBOSE"]}]}]}`,
			wantField: "directives[0].checks[0].flags",
		},
		{
			name:      "semantic without phrases",
			doc:       `{"directives": [{"id": 1, "tier": "BLOCK", "checks": [{"type": "semantic_forbid", "phrases": ["  "]}]}]}`,
			wantField: "directives[0].checks[0].phrases",
		},
		{
			name:      "max words not positive",
			doc:       `{"directives": [{"id": 1, "tier": "WARN", "checks": [{"type": "max_words"}]}]}`,
			wantField: "directives[0].checks[0].max",
		},
		{
			name:      "require without pattern",
			doc:       `{"directives": [{"id": 1, "tier": "WARN", "checks": [{"type": "regex_require"}]}]}`,
			wantField: "directives[0].checks[0].pattern",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc), FormatJSON, "bad.json")
			if err == nil {
				t.Fatal("expected error, got nil")
			}

			var loadErr *LoadError
			if !errors.As(err, &loadErr) {
				t.Fatalf("expected *LoadError, got %T", err)
			}
			if tt.wantField == "" {
				return
			}

			var valErr *ValidationError
			if !errors.As(err, &valErr) {
				t.Fatalf("expected *ValidationError, got %T: %v", errors.Unwrap(err), err)
			}
			found := false
			for _, fe := range valErr.Errors {
				if fe.Field == tt.wantField {
					found = true
				}
			}
			if !found {
				t.Errorf("expected error for field %q, got %v", tt.wantField, valErr.Errors)
			}
		})
	}
}

func TestFlagPrefix(t *testing.T) {
	tests := []struct {
		flags []string
		want  string
	}{
		{nil, ""},
		{[]string{"IGNORECASE"}, "(?i)"},
		{[]string{"re.MULTILINE", "s", "I"}, "(?msi)"},
		{[]string{"i", "IGNORECASE"}, "(?i)"},
	}

	for _, tt := range tests {
		got, err := flagPrefix(tt.flags)
		if err != nil {
			t.Errorf("flagPrefix(%v) error = %v", tt.flags, err)
			continue
		}
		if got != tt.want {
			t.Errorf("flagPrefix(%v) = %q, want %q", tt.flags, got, tt.want)
		}
	}
}
