package audit

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"testing"
)

func TestCSVExporter(t *testing.T) {
	entries := []*Entry{
		newEntry(t, "one", true),
		nil,
		newEntry(t, "three", false),
	}

	var buf bytes.Buffer
	if err := (&CSVExporter{IncludeHeader: true}).Export(context.Background(), entries, &buf); err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("output is not valid CSV: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(rows))
	}
	if rows[0][0] != "line" {
		t.Errorf("unexpected header %v", rows[0])
	}
	last := rows[2]
	if last[0] != "3" || last[6] != "false" || last[7] != "50.00" || last[8] != "3" {
		t.Errorf("unexpected row %v", last)
	}
}

func TestJSONExporter(t *testing.T) {
	entries := []*Entry{newEntry(t, "one", true), nil}

	var buf bytes.Buffer
	if err := (&JSONExporter{}).Export(context.Background(), entries, &buf); err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	var decoded []Entry
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not a JSON array: %v", err)
	}
	if len(decoded) != 1 || decoded[0].ID != entries[0].ID {
		t.Errorf("unexpected export %+v", decoded)
	}
}

func TestNewExporter(t *testing.T) {
	for _, format := range []string{"json", "CSV"} {
		if _, err := NewExporter(format); err != nil {
			t.Errorf("NewExporter(%q) error = %v", format, err)
		}
	}
	if _, err := NewExporter("xml"); err == nil {
		t.Error("NewExporter(xml) should fail")
	}
}
