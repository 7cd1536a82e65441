package ruleset

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"candela-hq/guardian/pkg/canonical"
)

// Format is the encoding of a ruleset document.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatForPath infers the document format from a file extension.
// Anything that is not .yaml or .yml is treated as JSON.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

type document struct {
	Name       string         `json:"name" yaml:"name"`
	Version    string         `json:"version" yaml:"version"`
	Directives []rawDirective `json:"directives" yaml:"directives"`
}

type rawDirective struct {
	ID     int        `json:"id" yaml:"id"`
	Title  string     `json:"title" yaml:"title"`
	Tier   string     `json:"tier" yaml:"tier"`
	Checks []rawCheck `json:"checks" yaml:"checks"`
}

type rawCheck struct {
	Type      string      `json:"type" yaml:"type"`
	Name      string      `json:"name" yaml:"name"`
	Pattern   string      `json:"pattern" yaml:"pattern"`
	Patterns  patternList `json:"patterns" yaml:"patterns"`
	Flags     []string    `json:"flags" yaml:"flags"`
	Phrases   []string    `json:"phrases" yaml:"phrases"`
	Threshold float64     `json:"threshold" yaml:"threshold"`
	Max       int         `json:"max" yaml:"max"`
}

type rawPattern struct {
	Name    string `json:"name" yaml:"name"`
	Pattern string `json:"pattern" yaml:"pattern"`
}

// patternList accepts either an object of name -> pattern (document order
// is kept) or a list of {name, pattern} objects.
type patternList []rawPattern

func (p *patternList) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var items []rawPattern
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return err
		}
		*p = items
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("patterns must be an object or a list")
	}

	var out patternList
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := keyTok.(string)
		var value string
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("pattern %q: %w", key, err)
		}
		out = append(out, rawPattern{Name: key, Pattern: value})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*p = out
	return nil
}

func (p *patternList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		var items []rawPattern
		if err := node.Decode(&items); err != nil {
			return err
		}
		*p = items
	case yaml.MappingNode:
		out := make(patternList, 0, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			var value string
			if err := node.Content[i+1].Decode(&value); err != nil {
				return fmt.Errorf("pattern %q: %w", node.Content[i].Value, err)
			}
			out = append(out, rawPattern{Name: node.Content[i].Value, Pattern: value})
		}
		*p = out
	default:
		return fmt.Errorf("line %d: patterns must be a mapping or a sequence", node.Line)
	}
	return nil
}

// Parse decodes and validates a ruleset document. origin is recorded on the
// result and used in error messages. All failures are returned as *LoadError.
func Parse(data []byte, format Format, origin string) (*Ruleset, error) {
	generic, err := decodeGeneric(data, format)
	if err != nil {
		return nil, &LoadError{Origin: origin, Cause: err}
	}

	hash, err := canonical.Hash(generic)
	if err != nil {
		return nil, &LoadError{Origin: origin, Cause: err}
	}

	doc, err := decodeDocument(data, format, generic)
	if err != nil {
		return nil, &LoadError{Origin: origin, Cause: err}
	}

	rs, err := build(doc)
	if err != nil {
		return nil, &LoadError{Origin: origin, Cause: err}
	}
	rs.Hash = hash
	rs.Origin = origin
	return rs, nil
}

func decodeGeneric(data []byte, format Format) (any, error) {
	var v any
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&v); err != nil {
			return nil, fmt.Errorf("parse json: %w", err)
		}
		if dec.More() {
			return nil, fmt.Errorf("parse json: trailing data after document")
		}
	}
	if v == nil {
		return nil, fmt.Errorf("empty ruleset document")
	}
	return v, nil
}

func decodeDocument(data []byte, format Format, generic any) (*document, error) {
	_, legacy := generic.([]any)

	var doc document
	var err error
	switch {
	case format == FormatYAML && legacy:
		err = yaml.Unmarshal(data, &doc.Directives)
	case format == FormatYAML:
		err = yaml.Unmarshal(data, &doc)
	case legacy:
		err = json.Unmarshal(data, &doc.Directives)
	default:
		err = json.Unmarshal(data, &doc)
	}
	if err != nil {
		return nil, fmt.Errorf("decode ruleset: %w", err)
	}
	return &doc, nil
}

func build(doc *document) (*Ruleset, error) {
	var errs []FieldError
	rs := &Ruleset{
		Name:       doc.Name,
		Version:    doc.Version,
		Directives: make([]Directive, 0, len(doc.Directives)),
	}

	seen := make(map[int]bool, len(doc.Directives))
	for i, rd := range doc.Directives {
		field := fmt.Sprintf("directives[%d]", i)

		if rd.ID <= 0 {
			errs = append(errs, FieldError{Field: field + ".id", Message: "must be a positive integer"})
		} else if seen[rd.ID] {
			errs = append(errs, FieldError{Field: field + ".id", Message: fmt.Sprintf("duplicate directive id %d", rd.ID)})
		}
		seen[rd.ID] = true

		tier, ok := ParseTier(rd.Tier)
		if !ok {
			errs = append(errs, FieldError{Field: field + ".tier", Message: fmt.Sprintf("unknown tier %q (valid: BLOCK, WARN)", rd.Tier)})
		}

		d := Directive{ID: rd.ID, Title: rd.Title, Tier: tier}
		for j, rc := range rd.Checks {
			check, cerrs := buildCheck(fmt.Sprintf("%s.checks[%d]", field, j), rc)
			errs = append(errs, cerrs...)
			if check != nil {
				d.Checks = append(d.Checks, check)
			}
		}
		rs.Directives = append(rs.Directives, d)
	}

	if len(errs) > 0 {
		return nil, &ValidationError{Errors: errs}
	}
	return rs, nil
}

func buildCheck(field string, rc rawCheck) (Check, []FieldError) {
	switch CheckKind(strings.ToLower(strings.TrimSpace(rc.Type))) {
	case KindRegexForbid:
		prefix, err := flagPrefix(rc.Flags)
		if err != nil {
			return nil, []FieldError{{Field: field + ".flags", Message: err.Error()}}
		}
		patterns := rc.Patterns
		if len(patterns) == 0 && rc.Pattern != "" {
			name := rc.Name
			if name == "" {
				name = "pattern"
			}
			patterns = patternList{{Name: name, Pattern: rc.Pattern}}
		}
		if len(patterns) == 0 {
			return nil, []FieldError{{Field: field + ".patterns", Message: "at least one pattern is required"}}
		}

		var errs []FieldError
		check := RegexForbid{Flags: rc.Flags}
		for _, p := range patterns {
			re, err := regexp.Compile(prefix + p.Pattern)
			if err != nil {
				errs = append(errs, FieldError{Field: field + ".patterns." + p.Name, Message: err.Error()})
				continue
			}
			check.Patterns = append(check.Patterns, NamedPattern{Name: p.Name, Regexp: re})
		}
		if len(errs) > 0 {
			return nil, errs
		}
		return check, nil

	case KindRegexRequire:
		prefix, err := flagPrefix(rc.Flags)
		if err != nil {
			return nil, []FieldError{{Field: field + ".flags", Message: err.Error()}}
		}
		if rc.Pattern == "" {
			return nil, []FieldError{{Field: field + ".pattern", Message: "required"}}
		}
		re, err := regexp.Compile(prefix + rc.Pattern)
		if err != nil {
			return nil, []FieldError{{Field: field + ".pattern", Message: err.Error()}}
		}
		name := rc.Name
		if name == "" {
			name = "required_pattern"
		}
		return RegexRequire{Name: name, Regexp: re, Flags: rc.Flags}, nil

	case KindLuhnCardForbid:
		return LuhnCardForbid{}, nil

	case KindSemanticForbid:
		var phrases []string
		for _, p := range rc.Phrases {
			if p = strings.TrimSpace(p); p != "" {
				phrases = append(phrases, p)
			}
		}
		if len(phrases) == 0 {
			return nil, []FieldError{{Field: field + ".phrases", Message: "at least one non-empty phrase is required"}}
		}
		if rc.Threshold < 0 || rc.Threshold > 1 {
			return nil, []FieldError{{Field: field + ".threshold", Message: "must be between 0 and 1"}}
		}
		return SemanticForbid{Phrases: phrases, Threshold: rc.Threshold}, nil

	case KindMaxWords:
		if rc.Max <= 0 {
			return nil, []FieldError{{Field: field + ".max", Message: "must be a positive integer"}}
		}
		return MaxWords{Max: rc.Max}, nil

	default:
		return Unknown{Type: rc.Type}, nil
	}
}

// flagPrefix turns flag names into an RE2 inline flag group.
func flagPrefix(flags []string) (string, error) {
	var set []byte
	for _, f := range flags {
		name := strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(f)), "RE.")
		var c byte
		switch name {
		case "IGNORECASE", "I":
			c = 'i'
		case "MULTILINE", "M":
			c = 'm'
		case "DOTALL", "S":
			c = 's'
		default:
			return "", fmt.Errorf("unsupported regex flag %q (valid: IGNORECASE, MULTILINE, DOTALL)", f)
		}
		if bytes.IndexByte(set, c) < 0 {
			set = append(set, c)
		}
	}
	if len(set) == 0 {
		return "", nil
	}
	return "(?" + string(set) + ")", nil
}
