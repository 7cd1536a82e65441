package cli

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestBarProgress(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgressReporter(&buf, "reindex", "lines")

	clock := time.Unix(0, 0)
	p.now = func() time.Time { return clock }

	p.Start(4)
	clock = clock.Add(time.Second)
	p.Add(2)

	out := buf.String()
	if !strings.Contains(out, " 50.0% 2/4 lines (2/s)") {
		t.Errorf("unexpected progress line %q", out)
	}

	p.Add(10)
	p.Finish()
	out = buf.String()
	if !strings.Contains(out, "100.0% 4/4 lines") {
		t.Errorf("progress should clamp to total, got %q", out)
	}
	if !strings.HasSuffix(out, "\n") {
		t.Error("Finish() should end the line")
	}
}

func TestBarProgress_ZeroTotal(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgressReporter(&buf, "export", "entries")
	p.Start(0)
	p.Add(1)
	p.Finish()
	if buf.String() != "\n" {
		t.Errorf("zero total should draw nothing, got %q", buf.String())
	}
}

func TestNopProgress(t *testing.T) {
	var p ProgressReporter = NopProgress{}
	p.Start(10)
	p.Add(1)
	p.Finish()
}
