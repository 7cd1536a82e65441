package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestCheckReadiness(t *testing.T) {
	tests := []struct {
		name   string
		checks map[string]CheckFunc
		want   string
	}{
		{"no checks", nil, StatusReady},
		{"all healthy", map[string]CheckFunc{
			"ruleset":   func(context.Context) error { return nil },
			"audit_log": func(context.Context) error { return nil },
		}, StatusReady},
		{"one failing", map[string]CheckFunc{
			"ruleset":      func(context.Context) error { return nil },
			"anchor_store": func(context.Context) error { return errors.New("locked") },
		}, StatusDegraded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(time.Second)
			for name, fn := range tt.checks {
				c.RegisterCheck(name, fn)
			}
			got := c.CheckReadiness(context.Background())
			if got.Status != tt.want {
				t.Errorf("status = %q, want %q", got.Status, tt.want)
			}
			if len(got.Checks) != len(tt.checks) {
				t.Errorf("got %d results, want %d", len(got.Checks), len(tt.checks))
			}
		})
	}
}

func TestCheckReadiness_Timeout(t *testing.T) {
	c := New(20 * time.Millisecond)
	c.RegisterCheck("embedder", func(ctx context.Context) error {
		<-ctx.Done()
		time.Sleep(50 * time.Millisecond)
		return nil
	})

	got := c.CheckReadiness(context.Background())
	r := got.Checks["embedder"]
	if r.Status != StatusUnhealthy || r.Message != ErrCheckTimeout.Error() {
		t.Errorf("result = %+v, want timeout", r)
	}
}

func TestListChecks_Sorted(t *testing.T) {
	c := New(0)
	for _, n := range []string{"ruleset", "anchor_store", "audit_log"} {
		c.RegisterCheck(n, func(context.Context) error { return nil })
	}
	if got := c.ListChecks(); !reflect.DeepEqual(got, []string{"anchor_store", "audit_log", "ruleset"}) {
		t.Errorf("ListChecks() = %v", got)
	}
}

func TestHandlers(t *testing.T) {
	c := New(time.Second)
	c.RegisterCheck("ruleset", func(context.Context) error { return errors.New("not loaded") })

	mux := http.NewServeMux()
	c.Register(mux, Paths{Liveness: "/health", Readiness: "/ready", Version: "/version"},
		VersionInfo{Version: "1.0.0", Commit: "abc123"})

	tests := []struct {
		method string
		path   string
		code   int
	}{
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodHead, "/health", http.StatusOK},
		{http.MethodGet, "/ready", http.StatusServiceUnavailable},
		{http.MethodGet, "/version", http.StatusOK},
		{http.MethodPost, "/health", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			if rec.Code != tt.code {
				t.Errorf("code = %d, want %d", rec.Code, tt.code)
			}
			if tt.method == http.MethodHead && rec.Body.Len() != 0 {
				t.Error("HEAD response has a body")
			}
		})
	}

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	var status HealthStatus
	if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
		t.Fatalf("decode readiness: %v", err)
	}
	if status.Checks["ruleset"].Message != "not loaded" {
		t.Errorf("readiness body = %+v", status)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/version", nil))
	var info VersionInfo
	if err := json.NewDecoder(rec.Body).Decode(&info); err != nil {
		t.Fatalf("decode version: %v", err)
	}
	if info.Version != "1.0.0" || info.GoVersion == "" {
		t.Errorf("version body = %+v", info)
	}
}

func TestDirWritable(t *testing.T) {
	dir := t.TempDir()
	if err := DirWritable(filepath.Join(dir, "output_log.jsonl"))(context.Background()); err != nil {
		t.Errorf("writable dir reported %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("probe file left behind: %v", entries)
	}

	if err := DirWritable(filepath.Join(dir, "missing", "log.jsonl"))(context.Background()); err == nil {
		t.Error("missing directory should fail")
	}
}
