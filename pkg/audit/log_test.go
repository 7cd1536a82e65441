package audit

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

type testVerdict struct {
	Passed     bool    `json:"passed"`
	Score      float64 `json:"score"`
	Violations []int   `json:"violations"`
}

type recordingIndexer struct {
	mu    sync.Mutex
	lines []int
	err   error
}

func (r *recordingIndexer) Index(_ context.Context, line int, _ *Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, line)
	return r.err
}

func newEntry(t *testing.T, text string, passed bool) *Entry {
	t.Helper()
	v := testVerdict{Passed: passed, Score: 100}
	if !passed {
		v.Score = 50
		v.Violations = []int{3}
	}
	e, err := NewEntry("strict", "rshash", text, v, DefaultTextPolicy())
	if err != nil {
		t.Fatalf("NewEntry() error = %v", err)
	}
	return e
}

func TestLog_AppendReturnsLineNumbers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "output_log.jsonl")
	idx := &recordingIndexer{}
	log, err := Open(path, &Options{Indexer: idx, Sync: true})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer log.Close()

	for want := 1; want <= 3; want++ {
		line, err := log.Append(context.Background(), newEntry(t, "text", true))
		if err != nil {
			t.Fatalf("Append() error = %v", err)
		}
		if line != want {
			t.Errorf("Append() line = %d, want %d", line, want)
		}
	}

	lines, err := ReadLines(path)
	if err != nil {
		t.Fatalf("ReadLines() error = %v", err)
	}
	if len(lines) != 3 {
		t.Errorf("ReadLines() returned %d lines, want 3", len(lines))
	}
	if len(idx.lines) != 3 || idx.lines[2] != 3 {
		t.Errorf("indexer saw lines %v", idx.lines)
	}
}

func TestLog_ReopenContinuesNumbering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.jsonl")
	log, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	log.Append(context.Background(), newEntry(t, "a", true))
	log.Append(context.Background(), newEntry(t, "b", true))
	log.Close()

	log, err = Open(path, nil)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer log.Close()
	if log.Lines() != 2 {
		t.Errorf("Lines() = %d, want 2", log.Lines())
	}
	line, _ := log.Append(context.Background(), newEntry(t, "c", true))
	if line != 3 {
		t.Errorf("line after reopen = %d, want 3", line)
	}
}

func TestLog_RepairsMissingTrailingNewline(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.jsonl")
	if err := os.WriteFile(path, []byte(`{"id":"partial"}`), 0o644); err != nil {
		t.Fatal(err)
	}

	log, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer log.Close()

	line, err := log.Append(context.Background(), newEntry(t, "x", true))
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if line != 2 {
		t.Errorf("line = %d, want 2", line)
	}

	lines, _ := ReadLines(path)
	if len(lines) != 2 || lines[0] != `{"id":"partial"}` {
		t.Errorf("unexpected lines %q", lines)
	}
}

func TestLog_AppendAfterClose(t *testing.T) {
	log, err := Open(filepath.Join(t.TempDir(), "log.jsonl"), nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	log.Close()

	_, err = log.Append(context.Background(), newEntry(t, "x", true))
	if !errors.Is(err, ErrClosed) {
		t.Errorf("Append() after Close error = %v, want ErrClosed", err)
	}
	var auditErr *AuditError
	if !errors.As(err, &auditErr) || auditErr.Op != "append" {
		t.Errorf("expected *AuditError with op append, got %#v", err)
	}
}

func TestLog_IndexerFailureDoesNotFailAppend(t *testing.T) {
	idx := &recordingIndexer{err: errors.New("disk full")}
	log, err := Open(filepath.Join(t.TempDir(), "log.jsonl"), &Options{Indexer: idx})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer log.Close()

	if _, err := log.Append(context.Background(), newEntry(t, "x", true)); err != nil {
		t.Errorf("Append() error = %v, indexer errors must not propagate", err)
	}
}

func TestLog_ConcurrentAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.jsonl")
	log, err := Open(path, &Options{})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer log.Close()

	const n = 50
	var wg sync.WaitGroup
	seen := make([]bool, n+1)
	var mu sync.Mutex
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			line, err := log.Append(context.Background(), newEntry(t, "concurrent", true))
			if err != nil {
				t.Errorf("Append() error = %v", err)
				return
			}
			mu.Lock()
			seen[line] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	for i := 1; i <= n; i++ {
		if !seen[i] {
			t.Errorf("line %d never returned", i)
		}
	}
	lines, _ := ReadLines(path)
	for i, l := range lines {
		if _, err := ParseLine(l); err != nil {
			t.Errorf("line %d is not a valid entry: %v", i+1, err)
		}
	}
}

func TestNewEntry_TextPolicy(t *testing.T) {
	text := strings.Repeat("é", 50)

	full, _ := NewEntry("strict", "h", text, testVerdict{Passed: true}, TextPolicy{StoreText: true})
	if full.Text != text || full.Preview != "" {
		t.Errorf("StoreText should keep the full text")
	}

	preview, _ := NewEntry("strict", "h", text, testVerdict{Passed: true}, TextPolicy{PreviewLength: 10})
	if preview.Text != "" || preview.Preview != strings.Repeat("é", 7)+"..." {
		t.Errorf("unexpected preview %q", preview.Preview)
	}

	hashOnly, _ := NewEntry("strict", "h", text, testVerdict{Passed: true}, TextPolicy{})
	if hashOnly.Text != "" || hashOnly.Preview != "" {
		t.Errorf("zero policy should store no text")
	}
	if hashOnly.TextHash != full.TextHash || len(full.TextHash) != 64 {
		t.Errorf("text hash should not depend on the text policy")
	}
}

func TestEntry_Correction(t *testing.T) {
	orig := newEntry(t, "text", true)
	corr, err := orig.Correction(testVerdict{Passed: false, Violations: []int{5}})
	if err != nil {
		t.Fatalf("Correction() error = %v", err)
	}
	if corr.CorrectionOf != orig.ID || corr.ID == orig.ID {
		t.Errorf("correction ids wrong: %+v", corr)
	}
	if corr.TextHash != orig.TextHash {
		t.Errorf("correction should keep the text hash")
	}
	s, err := corr.Summary()
	if err != nil || s.Passed || len(s.Violations) != 1 {
		t.Errorf("Summary() = %+v, %v", s, err)
	}
	if s, _ := orig.Summary(); !s.Passed {
		t.Error("original entry must not change")
	}
}

// shortFile writes at most n bytes of each Write and then fails, the way a
// full disk or a file size limit cuts an append short.
type shortFile struct {
	logFile
	n           int
	truncateErr error
}

func (f *shortFile) Write(p []byte) (int, error) {
	n := min(f.n, len(p))
	written, err := f.logFile.Write(p[:n])
	if err != nil {
		return written, err
	}
	return written, errors.New("file too large")
}

func (f *shortFile) Truncate(size int64) error {
	if f.truncateErr != nil {
		return f.truncateErr
	}
	return f.logFile.Truncate(size)
}

func TestLog_FailedAppendLeavesNoFragment(t *testing.T) {
	tests := []struct {
		name        string
		truncateErr error
	}{
		{name: "truncated back"},
		{name: "truncate fails", truncateErr: errors.New("read-only file system")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "output_log.jsonl")
			log, err := Open(path, nil)
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			defer log.Close()

			if _, err := log.Append(context.Background(), newEntry(t, "first", true)); err != nil {
				t.Fatalf("Append() error = %v", err)
			}

			file := log.file
			log.file = &shortFile{logFile: file, n: 10, truncateErr: tt.truncateErr}
			if _, err := log.Append(context.Background(), newEntry(t, "second", true)); err == nil {
				t.Fatal("Append() with a short write succeeded")
			}
			log.file = file

			line, err := log.Append(context.Background(), newEntry(t, "third", true))
			if err != nil {
				t.Fatalf("Append() error = %v", err)
			}

			lines, err := ReadLines(path)
			if err != nil {
				t.Fatalf("ReadLines() error = %v", err)
			}
			if line != len(lines) {
				t.Errorf("Append() line = %d, file has %d lines", line, len(lines))
			}
			if got := log.Lines(); got != len(lines) {
				t.Errorf("Lines() = %d, file has %d lines", got, len(lines))
			}
			last, err := ParseLine(lines[line-1])
			if err != nil {
				t.Fatalf("ParseLine(line %d) error = %v", line, err)
			}
			if last.Text != "third" {
				t.Errorf("line %d text = %q, want third", line, last.Text)
			}
			if tt.truncateErr == nil {
				if line != 2 {
					t.Errorf("Append() line = %d, want 2", line)
				}
				for i, l := range lines {
					if _, err := ParseLine(l); err != nil {
						t.Errorf("ParseLine(line %d) error = %v", i+1, err)
					}
				}
			}
		})
	}
}
