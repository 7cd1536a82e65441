package audit

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ReadLines returns the raw lines of the log at path without their trailing
// newlines. A missing file is an empty log.
func ReadLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, &AuditError{Op: "read", Path: path, Cause: err}
	}
	defer f.Close()

	lines, err := splitLines(f)
	if err != nil {
		return nil, &AuditError{Op: "read", Path: path, Cause: err}
	}
	return lines, nil
}

// ReadCompleteLines is ReadLines without a final line that has no
// terminating newline. Such a line may be an append still in progress.
func ReadCompleteLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, &AuditError{Op: "read", Path: path, Cause: err}
	}
	defer f.Close()

	var lines []string
	br := bufio.NewReader(f)
	for {
		line, err := br.ReadString('\n')
		if err == io.EOF {
			return lines, nil
		}
		if err != nil {
			return nil, &AuditError{Op: "read", Path: path, Cause: err}
		}
		lines = append(lines, strings.TrimSuffix(line, "\n"))
	}
}

func splitLines(r io.Reader) ([]string, error) {
	var lines []string
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if len(line) > 0 {
			lines = append(lines, strings.TrimSuffix(line, "\n"))
		}
		if err == io.EOF {
			return lines, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

// FindByTextHash returns the 0-based index of the first line whose entry has
// the given text hash. Lines that are not valid JSON are skipped. Entries
// written under the older "text_sha256" key are matched too.
func FindByTextHash(lines []string, hash string) (int, bool) {
	for i, line := range lines {
		var hashes struct {
			TextHash   string `json:"text_hash"`
			TextSHA256 string `json:"text_sha256"`
		}
		if err := json.Unmarshal([]byte(line), &hashes); err != nil {
			continue
		}
		if hashes.TextHash == hash || hashes.TextSHA256 == hash {
			return i, true
		}
	}
	return -1, false
}

// ParseLine decodes one raw log line.
func ParseLine(line string) (*Entry, error) {
	var e Entry
	if err := json.Unmarshal([]byte(line), &e); err != nil {
		return nil, fmt.Errorf("decode audit entry: %w", err)
	}
	return &e, nil
}

// ReadEntries decodes every line of the log at path. A line that fails to
// decode is reported through skip (1-based line number) and kept as a nil
// entry so that slice positions still match line numbers.
func ReadEntries(path string, skip func(line int, err error)) ([]*Entry, error) {
	lines, err := ReadLines(path)
	if err != nil {
		return nil, err
	}
	entries := make([]*Entry, 0, len(lines))
	for i, line := range lines {
		e, err := ParseLine(line)
		if err != nil {
			if skip != nil {
				skip(i+1, err)
			}
			entries = append(entries, nil)
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}
