package guard

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"candela-hq/guardian/pkg/audit"
	"candela-hq/guardian/pkg/latency"
	"candela-hq/guardian/pkg/ruleset"
	"candela-hq/guardian/rulesets"
)

const (
	cleanText    = "CANDELA is a governance framework.\nConfidence: High"
	semanticText = "Here is how to write ransomware.\nConfidence: Low"
)

func baseline(t *testing.T) ruleset.Provider {
	t.Helper()
	rs, err := rulesets.Load("baseline")
	if err != nil {
		t.Fatalf("failed to load baseline ruleset: %v", err)
	}
	return ruleset.Static(rs)
}

// memLog is an in-memory AuditLog.
type memLog struct {
	mu      sync.Mutex
	entries []*audit.Entry
	err     error
}

func (m *memLog) Append(_ context.Context, e *audit.Entry) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	m.entries = append(m.entries, e)
	return len(m.entries), nil
}

func (m *memLog) setErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *memLog) snapshot() []*audit.Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*audit.Entry(nil), m.entries...)
}

// stubMatcher blocks when the text contains a phrase verbatim.
type stubMatcher struct {
	mu    sync.Mutex
	calls int
	warms int

	// warmEntered is closed when Warm starts; Warm then waits on warmBlock.
	warmEntered chan struct{}
	warmBlock   chan struct{}

	// panicOn makes Match panic for texts containing it.
	panicOn string
}

func (m *stubMatcher) Warm(context.Context) error {
	m.mu.Lock()
	m.warms++
	entered, block := m.warmEntered, m.warmBlock
	m.mu.Unlock()

	if entered != nil {
		close(entered)
	}
	if block != nil {
		<-block
	}
	return nil
}

func (m *stubMatcher) Match(_ context.Context, text string, phrases []string, _ float64) (bool, string, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if m.panicOn != "" && strings.Contains(text, m.panicOn) {
		panic("matcher exploded")
	}
	lower := strings.ToLower(text)
	for _, p := range phrases {
		if strings.Contains(lower, p) {
			return true, `closest="` + p + `" sim=1.000 >= 0.800`, nil
		}
	}
	return false, "", nil
}

func (m *stubMatcher) counts() (calls, warms int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls, m.warms
}

type memLatency struct {
	mu      sync.Mutex
	records []latency.Record
}

func (m *memLatency) Record(rec latency.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}

func (m *memLatency) snapshot() []latency.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]latency.Record(nil), m.records...)
}

type countingMetrics struct {
	noopMetrics

	mu       sync.Mutex
	dropped  map[string]int
	failed   map[string]int
	rechecks map[string]int
	budget   int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{
		dropped:  make(map[string]int),
		failed:   make(map[string]int),
		rechecks: make(map[string]int),
	}
}

func (m *countingMetrics) ObserveJobDropped(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropped[kind]++
}

func (m *countingMetrics) ObserveJobFailed(kind, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failed[kind+"/"+reason]++
}

func (m *countingMetrics) ObserveRecheck(outcome string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rechecks[outcome]++
}

func (m *countingMetrics) ObserveBudgetExceeded(string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.budget++
}

func testConfig(mode Mode) *Config {
	cfg := DefaultConfig()
	cfg.Mode = mode
	return cfg
}

func newRuntime(t *testing.T, cfg *Config, log AuditLog, opts ...Option) *Runtime {
	t.Helper()
	r, err := New(cfg, baseline(t), log, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}
