package ruleset

import (
	"os"
)

// LoadFile reads and parses the ruleset at path.
func LoadFile(path string) (*Ruleset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Origin: path, Cause: err}
	}
	return Parse(data, FormatForPath(path), path)
}

// HashFile recomputes the canonical identity of the ruleset file at path.
// The document must parse as a valid ruleset.
func HashFile(path string) (string, error) {
	rs, err := LoadFile(path)
	if err != nil {
		return "", err
	}
	return rs.Hash, nil
}
