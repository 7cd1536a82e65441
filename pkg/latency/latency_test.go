package latency

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestPercentile(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		p      float64
		want   float64
	}{
		{"single", []float64{7}, 0.95, 7},
		{"median odd", []float64{1, 2, 3}, 0.5, 2},
		{"median even", []float64{1, 2, 3, 4}, 0.5, 2.5},
		{"p95 interpolated", []float64{10, 20, 30, 40, 50}, 0.95, 48},
		{"p0", []float64{3, 9}, 0, 3},
		{"p100", []float64{3, 9}, 1, 9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Percentile(tt.values, tt.p)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Percentile(%v, %v) = %v, want %v", tt.values, tt.p, got, tt.want)
			}
		})
	}

	if !math.IsNaN(Percentile(nil, 0.5)) {
		t.Error("Percentile of empty input should be NaN")
	}
}

func ms(v float64) *float64 { return &v }

func TestSummarize(t *testing.T) {
	records := []Record{
		{Mode: "strict", DtFastMS: 1, DtSemMS: ms(10)},
		{Mode: "strict", DtFastMS: 3, DtSemMS: ms(30)},
		{Mode: "strict", CacheHit: true},
		{Mode: "regex_only", DtFastMS: 2},
	}

	got := Summarize(records)
	if len(got) != 2 {
		t.Fatalf("Summarize() returned %d modes, want 2", len(got))
	}
	if got[0].Mode != "regex_only" || got[1].Mode != "strict" {
		t.Fatalf("modes not sorted: %q, %q", got[0].Mode, got[1].Mode)
	}
	if got[0].Semantic != nil {
		t.Error("regex_only should have no semantic series")
	}

	strict := got[1]
	if strict.Checks != 3 || strict.CacheHits != 1 {
		t.Errorf("checks/hits = %d/%d, want 3/1", strict.Checks, strict.CacheHits)
	}
	if strict.Fast.Count != 2 || strict.Fast.P50 != 2 {
		t.Errorf("fast = %+v, cache hits must not count", strict.Fast)
	}
	if strict.Semantic == nil || strict.Semantic.P50 != 20 || strict.Semantic.Max != 30 {
		t.Errorf("semantic = %+v", strict.Semantic)
	}
	if rate := strict.HitRate(); math.Abs(rate-1.0/3) > 1e-9 {
		t.Errorf("HitRate() = %v", rate)
	}
}

type recordingObserver struct {
	paths []string
}

func (o *recordingObserver) ObserveLatency(mode, path string, seconds float64, cacheHit bool) {
	o.paths = append(o.paths, mode+"/"+path)
}

func TestRecorder_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "latency.jsonl")
	obs := &recordingObserver{}

	r, err := NewRecorder(path, obs)
	if err != nil {
		t.Fatalf("NewRecorder() error = %v", err)
	}
	if err := r.Record(Record{Mode: "strict", DtFastMS: 1.5, DtSemMS: ms(12)}); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if err := r.Record(Record{Mode: "strict", CacheHit: true}); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	f.WriteString("not json\n")
	f.Close()

	records, skipped, err := ReadRecords(path)
	if err != nil {
		t.Fatalf("ReadRecords() error = %v", err)
	}
	if len(records) != 2 || skipped != 1 {
		t.Fatalf("got %d records, %d skipped; want 2, 1", len(records), skipped)
	}
	if records[0].DtSemMS == nil || *records[0].DtSemMS != 12 {
		t.Errorf("dt_sem_ms not preserved: %+v", records[0])
	}
	if records[1].DtSemMS != nil || !records[1].CacheHit {
		t.Errorf("cache hit record = %+v", records[1])
	}
	if records[0].Timestamp.IsZero() {
		t.Error("timestamp should be stamped")
	}

	want := []string{"strict/fast", "strict/semantic", "strict/fast"}
	if len(obs.paths) != len(want) {
		t.Fatalf("observer saw %v, want %v", obs.paths, want)
	}
	for i := range want {
		if obs.paths[i] != want[i] {
			t.Errorf("observer[%d] = %q, want %q", i, obs.paths[i], want[i])
		}
	}
}

func TestReadRecords_Missing(t *testing.T) {
	records, skipped, err := ReadRecords(filepath.Join(t.TempDir(), "none.jsonl"))
	if err != nil || records != nil || skipped != 0 {
		t.Errorf("ReadRecords(missing) = %v, %d, %v", records, skipped, err)
	}
}

func TestRecorder_NoPath(t *testing.T) {
	r, err := NewRecorder("", nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Record(Record{Mode: "regex_only"}); err != nil {
		t.Errorf("Record() without file error = %v", err)
	}
	if err := r.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
