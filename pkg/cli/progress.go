package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// ProgressReporter reports progress for long-running operations.
type ProgressReporter interface {
	Start(total int64)
	Add(n int64)
	Finish()
}

// BarProgress draws a single-line progress bar, redrawn in place.
type BarProgress struct {
	mu      sync.Mutex
	label   string
	unit    string
	total   int64
	current int64
	started time.Time
	writer  io.Writer
	now     func() time.Time
}

// NewProgressReporter creates a reporter writing to w (os.Stderr when nil).
// unit names what is counted, e.g. "lines".
func NewProgressReporter(w io.Writer, label, unit string) *BarProgress {
	if w == nil {
		w = os.Stderr
	}
	return &BarProgress{writer: w, label: label, unit: unit, now: time.Now}
}

// Start resets the reporter for total items.
func (p *BarProgress) Start(total int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.total = total
	p.current = 0
	p.started = p.now()
	p.render()
}

// Add advances the reporter by n items.
func (p *BarProgress) Add(n int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.current += n
	if p.current > p.total {
		p.current = p.total
	}
	p.render()
}

// Finish draws the completed bar and ends the line.
func (p *BarProgress) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.current = p.total
	p.render()
	fmt.Fprintln(p.writer)
}

func (p *BarProgress) render() {
	if p.total <= 0 {
		return
	}

	const width = 30
	ratio := float64(p.current) / float64(p.total)
	filled := int(ratio * width)
	bar := strings.Repeat("=", filled) + strings.Repeat(" ", width-filled)

	rate := 0.0
	if elapsed := p.now().Sub(p.started).Seconds(); elapsed > 0 {
		rate = float64(p.current) / elapsed
	}
	fmt.Fprintf(p.writer, "\r%s [%s] %5.1f%% %d/%d %s (%.0f/s)",
		p.label, bar, ratio*100, p.current, p.total, p.unit, rate)
}

// NopProgress discards all progress updates.
type NopProgress struct{}

func (NopProgress) Start(int64) {}
func (NopProgress) Add(int64)   {}
func (NopProgress) Finish()     {}
