package ruleset

import (
	"fmt"
	"strings"
)

// LoadError is returned when a ruleset cannot be read or parsed.
// Constructing an engine from a ruleset that fails to load is fatal.
type LoadError struct {
	Origin string
	Cause  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load ruleset %q: %v", e.Origin, e.Cause)
}

func (e *LoadError) Unwrap() error {
	return e.Cause
}

// FieldError describes one invalid element of a ruleset document.
type FieldError struct {
	// Field is a dotted path such as "directives[2].checks[0].patterns.us_ssn".
	Field   string
	Message string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError collects every problem found in a ruleset document.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return "invalid ruleset: " + e.Errors[0].Error()
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "invalid ruleset with %d errors:", len(e.Errors))
	for _, fe := range e.Errors {
		sb.WriteString("\n  - ")
		sb.WriteString(fe.Error())
	}
	return sb.String()
}
