package audit

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// Exporter writes audit entries to w in some format.
type Exporter interface {
	Export(ctx context.Context, entries []*Entry, w io.Writer) error
}

// ExportError is returned when an export fails part way.
type ExportError struct {
	Format     string
	EntryCount int
	Cause      error
}

// Error implements the error interface.
func (e *ExportError) Error() string {
	return fmt.Sprintf("export error [format=%s, entry_count=%d]: %v", e.Format, e.EntryCount, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *ExportError) Unwrap() error {
	return e.Cause
}

// NewExporter returns the exporter for format ("json" or "csv").
func NewExporter(format string) (Exporter, error) {
	switch strings.ToLower(format) {
	case "json":
		return &JSONExporter{Pretty: true}, nil
	case "csv":
		return &CSVExporter{IncludeHeader: true}, nil
	default:
		return nil, fmt.Errorf("unsupported export format %q (valid: json, csv)", format)
	}
}

// JSONExporter writes entries as a JSON array.
type JSONExporter struct {
	Pretty bool
}

// Export implements Exporter. Nil entries are skipped.
func (e *JSONExporter) Export(ctx context.Context, entries []*Entry, w io.Writer) error {
	out := make([]*Entry, 0, len(entries))
	for _, entry := range entries {
		if entry != nil {
			out = append(out, entry)
		}
	}

	var (
		data []byte
		err  error
	)
	if e.Pretty {
		data, err = json.MarshalIndent(out, "", "  ")
	} else {
		data, err = json.Marshal(out)
	}
	if err != nil {
		return &ExportError{Format: "json", EntryCount: len(out), Cause: err}
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return &ExportError{Format: "json", EntryCount: len(out), Cause: err}
	}
	return nil
}

// CSVExporter writes one row per entry with the verdict flattened.
type CSVExporter struct {
	IncludeHeader bool
}

var csvHeader = []string{
	"line", "id", "ts", "mode", "ruleset_hash", "text_hash",
	"passed", "score", "violations", "correction_of",
}

// Export implements Exporter. The line column is the entry's 1-based
// position in entries; nil entries are skipped but still counted.
func (e *CSVExporter) Export(ctx context.Context, entries []*Entry, w io.Writer) error {
	writer := csv.NewWriter(w)

	if e.IncludeHeader {
		if err := writer.Write(csvHeader); err != nil {
			return &ExportError{Format: "csv", EntryCount: len(entries), Cause: err}
		}
	}

	for i, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if entry == nil {
			continue
		}
		summary, err := entry.Summary()
		if err != nil {
			return &ExportError{Format: "csv", EntryCount: len(entries), Cause: err}
		}

		violations := make([]string, len(summary.Violations))
		for j, id := range summary.Violations {
			violations[j] = strconv.Itoa(id)
		}

		row := []string{
			strconv.Itoa(i + 1),
			entry.ID,
			entry.Timestamp.Format(time.RFC3339Nano),
			entry.Mode,
			entry.RulesetHash,
			entry.TextHash,
			strconv.FormatBool(summary.Passed),
			strconv.FormatFloat(summary.Score, 'f', 2, 64),
			strings.Join(violations, ";"),
			entry.CorrectionOf,
		}
		if err := writer.Write(row); err != nil {
			return &ExportError{Format: "csv", EntryCount: len(entries), Cause: err}
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return &ExportError{Format: "csv", EntryCount: len(entries), Cause: err}
	}
	return nil
}
