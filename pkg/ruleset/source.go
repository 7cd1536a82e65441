package ruleset

import (
	"log/slog"
	"os"
	"sync"
	"time"
)

// Provider hands out the ruleset currently in force.
type Provider interface {
	Current() *Ruleset
}

// Static returns a Provider that always yields rs.
func Static(rs *Ruleset) Provider {
	return staticProvider{rs: rs}
}

type staticProvider struct {
	rs *Ruleset
}

func (p staticProvider) Current() *Ruleset {
	return p.rs
}

// Source serves a ruleset backed by a file and reloads it wholesale when the
// file's modification time or size changes. A failed reload keeps the
// previous ruleset in force.
type Source struct {
	path   string
	logger *slog.Logger

	mu      sync.RWMutex
	current *Ruleset
	modTime time.Time
	size    int64

	onReload func(*Ruleset)
}

// NewSource loads the ruleset at path. A load failure is returned as-is so
// that callers can refuse to start without a valid ruleset.
func NewSource(path string) (*Source, error) {
	s := &Source{
		path:   path,
		logger: slog.Default().With("component", "ruleset.source"),
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the backing file path.
func (s *Source) Path() string {
	return s.path
}

// OnReload registers a callback invoked after every successful reload that
// changed the ruleset identity.
func (s *Source) OnReload(fn func(*Ruleset)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onReload = fn
}

// Current returns the ruleset in force, reloading first if the file changed.
func (s *Source) Current() *Ruleset {
	info, err := os.Stat(s.path)

	s.mu.RLock()
	current := s.current
	stale := err == nil && (!info.ModTime().Equal(s.modTime) || info.Size() != s.size)
	s.mu.RUnlock()

	if err != nil {
		s.logger.Warn("ruleset file not accessible, keeping loaded ruleset",
			"path", s.path,
			"error", err,
		)
		return current
	}
	if !stale {
		return current
	}

	if err := s.Reload(); err != nil {
		s.logger.Error("ruleset reload failed, keeping previous ruleset",
			"path", s.path,
			"error", err,
		)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Reload re-reads the backing file unconditionally.
func (s *Source) Reload() error {
	info, err := os.Stat(s.path)
	if err != nil {
		return &LoadError{Origin: s.path, Cause: err}
	}
	rs, err := LoadFile(s.path)
	if err != nil {
		// Remember the broken revision so it is not re-parsed on every call.
		s.mu.Lock()
		if s.current != nil {
			s.modTime = info.ModTime()
			s.size = info.Size()
		}
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	previous := s.current
	s.current = rs
	s.modTime = info.ModTime()
	s.size = info.Size()
	callback := s.onReload
	s.mu.Unlock()

	if previous == nil || previous.Hash != rs.Hash {
		s.logger.Info("ruleset loaded",
			"path", s.path,
			"name", rs.Name,
			"version", rs.Version,
			"directives", len(rs.Directives),
			"hash", rs.Hash,
		)
		if callback != nil && previous != nil {
			callback(rs)
		}
	}
	return nil
}
