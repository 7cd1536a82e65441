package latency

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Record is one line of the latency log.
type Record struct {
	Timestamp time.Time `json:"ts"`
	Mode      string    `json:"mode"`
	CacheHit  bool      `json:"cache_hit"`
	DtFastMS  float64   `json:"dt_fast_ms"`
	DtSemMS   *float64  `json:"dt_sem_ms,omitempty"`
}

// Observer receives every recorded timing. path is "fast" or "semantic".
type Observer interface {
	ObserveLatency(mode, path string, seconds float64, cacheHit bool)
}

// Recorder appends records to a JSONL file. A Recorder with no path only
// notifies its observer.
type Recorder struct {
	path     string
	observer Observer
	logger   *slog.Logger

	mu   sync.Mutex
	file *os.File
}

// NewRecorder opens path for appending. observer may be nil.
func NewRecorder(path string, observer Observer) (*Recorder, error) {
	r := &Recorder{
		path:     path,
		observer: observer,
		logger:   slog.Default().With("component", "latency.recorder"),
	}
	if path == "" {
		return r, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create latency log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open latency log: %w", err)
	}
	r.file = f
	return r, nil
}

// Path returns the log path, empty when the recorder does not write a file.
func (r *Recorder) Path() string {
	return r.path
}

// Record writes rec, stamping it with the current time when unset.
func (r *Recorder) Record(rec Record) error {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}

	if r.observer != nil {
		r.observer.ObserveLatency(rec.Mode, "fast", rec.DtFastMS/1000, rec.CacheHit)
		if rec.DtSemMS != nil {
			r.observer.ObserveLatency(rec.Mode, "semantic", *rec.DtSemMS/1000, false)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return nil
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal latency record: %w", err)
	}
	if _, err := r.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write latency record: %w", err)
	}
	return nil
}

// Close closes the underlying file.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}

// ReadRecords loads every parseable record from path. Malformed lines are
// skipped and counted. A missing file yields no records.
func ReadRecords(path string) ([]Record, int, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("open latency log: %w", err)
	}
	defer f.Close()

	var records []Record
	skipped := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil || rec.Mode == "" {
			skipped++
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return records, skipped, fmt.Errorf("read latency log: %w", err)
	}
	return records, skipped, nil
}
