package formats

import (
	"regexp"
	"strings"

	"candela-hq/guardian/pkg/rules"
)

// Finding is one format problem. Key names the rule, for example "6c" for
// the inference line of the Premise/Inference format.
type Finding struct {
	Key     string      `json:"key"`
	Level   rules.Level `json:"level"`
	Message string      `json:"message"`
}

// Options selects which rules are enforced.
type Options struct {
	// RequireConfidence turns a missing confidence tag from an advisory
	// into a violation.
	RequireConfidence bool

	// RequireUncertain requires an [uncertain] tag.
	RequireUncertain bool

	// Microformats enables the marker-triggered formats.
	Microformats bool
}

// DefaultOptions enables micro-formats and leaves both tags optional.
func DefaultOptions() Options {
	return Options{Microformats: true}
}

var (
	confidencePattern = regexp.MustCompile(`(?i)Confidence:\s*(High|Medium|Low)\b`)
	bulletPattern     = regexp.MustCompile(`^[-*]\s+`)
)

// Validate returns the format findings for text in rule order.
func Validate(text string, opts Options) []Finding {
	var out []Finding
	add := func(key string, level rules.Level, msg string) {
		out = append(out, Finding{Key: key, Level: level, Message: msg})
	}

	lines := strings.Split(text, "\n")
	for i, ln := range lines {
		lines[i] = strings.TrimRight(ln, " \t\r\v\f")
	}
	lower := strings.ToLower(strings.Join(lines, "\n"))

	switch {
	case strings.Contains(lower, "confidence:"):
		if !confidencePattern.MatchString(text) {
			add("71", rules.LevelViolation, "Confidence tag present but not in format 'Confidence: High|Medium|Low'.")
		}
	case opts.RequireConfidence:
		add("3/71", rules.LevelViolation, "Missing required confidence tag (e.g. 'Confidence: High').")
	default:
		add("3/71", rules.LevelAdvisory, "No confidence tag found.")
	}

	if opts.RequireUncertain && !strings.Contains(lower, "[uncertain]") {
		add("10", rules.LevelViolation, "Missing required [uncertain] tag.")
	}

	if opts.Microformats {
		out = append(out, logicalExtension(lines)...)
		out = append(out, associative(lines)...)
		out = append(out, firstPrinciples(lines)...)
	}
	return out
}

func hasLabel(line, label string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimLeft(line, " \t")), label)
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}

func nonEmpty(lines []string) []string {
	var out []string
	for _, ln := range lines {
		if t := strings.TrimSpace(ln); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// logicalExtension checks the Premise:/Inference: format.
func logicalExtension(lines []string) []Finding {
	var premises, inferences []string
	for _, ln := range lines {
		switch {
		case hasLabel(ln, "premise:"):
			premises = append(premises, ln)
		case hasLabel(ln, "inference:"):
			inferences = append(inferences, ln)
		}
	}
	if len(premises) == 0 && len(inferences) == 0 {
		return nil
	}

	var out []Finding
	if len(premises) == 0 {
		out = append(out, Finding{"6a", rules.LevelViolation, "Missing line starting with 'Premise:'."})
	}
	if len(inferences) == 0 {
		return append(out, Finding{"6b", rules.LevelViolation, "Missing line starting with 'Inference:'."})
	}

	_, content, _ := strings.Cut(inferences[0], ":")
	content = strings.TrimSpace(content)
	if wordCount(content) > 20 {
		out = append(out, Finding{"6c", rules.LevelViolation, "Inference content exceeds 20 words."})
	}
	if content != "" && !strings.HasSuffix(content, ".") {
		out = append(out, Finding{"6c", rules.LevelViolation, "Inference content must end with a period."})
	}
	return out
}

// associative checks the Related: format. The two non-empty lines after
// the marker are the explanation and the practical implication.
func associative(lines []string) []Finding {
	start := -1
	for i, ln := range lines {
		if hasLabel(ln, "related:") {
			start = i
			break
		}
	}
	if start < 0 {
		return nil
	}

	var out []Finding
	tail := nonEmpty(lines[start+1:])
	if len(tail) == 0 {
		out = append(out, Finding{"14b", rules.LevelViolation, "Missing explanation line after 'Related:'."})
	} else if wordCount(tail[0]) > 25 {
		out = append(out, Finding{"14b", rules.LevelViolation, "Explanation exceeds 25 words."})
	}
	if len(tail) < 2 {
		out = append(out, Finding{"14c", rules.LevelViolation, "Missing practical implication line after explanation."})
	} else if wordCount(tail[1]) > 30 {
		out = append(out, Finding{"14c", rules.LevelViolation, "Practical implication exceeds 30 words."})
	}
	return out
}

// firstPrinciples checks the section after a "First-principles" marker.
func firstPrinciples(lines []string) []Finding {
	start := -1
	for i, ln := range lines {
		if hasLabel(ln, "first-principles") {
			start = i
			break
		}
	}
	if start < 0 {
		return nil
	}

	var out []Finding
	section := lines[start+1:]
	body := nonEmpty(section)
	if len(body) > 0 && wordCount(body[0]) > 15 {
		out = append(out, Finding{"24a", rules.LevelViolation, "Restatement exceeds 15 words."})
	}

	bullets := 0
	for _, ln := range body {
		if bulletPattern.MatchString(ln) {
			bullets++
		}
	}
	if bullets != 2 {
		out = append(out, Finding{"24b", rules.LevelViolation, "Expected exactly two bullet points."})
	}
	if wordCount(strings.Join(body, " ")) > 100 {
		out = append(out, Finding{"24c", rules.LevelViolation, "First-principles output exceeds 100 words."})
	}
	return out
}

// Passed reports whether findings hold no violation. With strict set,
// advisories fail too.
func Passed(findings []Finding, strict bool) bool {
	for _, f := range findings {
		if f.Level == rules.LevelViolation || strict {
			return false
		}
	}
	return true
}
