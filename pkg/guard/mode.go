package guard

import (
	"fmt"
	"strings"
)

// Mode selects how semantic checks are scheduled.
type Mode string

const (
	ModeRegexOnly Mode = "regex_only"
	ModeStrict    Mode = "strict"
	ModeSyncLight Mode = "sync_light"
)

// Modes lists every mode in a stable order.
var Modes = []Mode{ModeStrict, ModeSyncLight, ModeRegexOnly}

// ParseMode parses a mode name case-insensitively. "sync-light" is accepted
// as an alias.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
	switch m {
	case ModeRegexOnly, ModeStrict, ModeSyncLight:
		return m, nil
	default:
		return "", fmt.Errorf("unknown mode %q (valid: strict, sync_light, regex_only)", s)
	}
}

func (m Mode) String() string {
	return string(m)
}

// semantic reports whether the mode ever evaluates semantic checks.
func (m Mode) semantic() bool {
	return m == ModeStrict || m == ModeSyncLight
}
