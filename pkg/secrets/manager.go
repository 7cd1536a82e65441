package secrets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sync"

	"candela-hq/guardian/pkg/config"
)

var refPattern = regexp.MustCompile(`\$\{secret:([^}]+)\}`)

// Manager resolves secrets through its providers in order. Resolved values
// are cached for the life of the manager.
type Manager struct {
	providers []Provider

	mu    sync.Mutex
	cache map[string]string
}

// NewManager returns a manager trying providers in the order given.
func NewManager(providers ...Provider) *Manager {
	return &Manager{providers: providers, cache: make(map[string]string)}
}

// FromConfig builds the environment provider and, when a directory is
// configured, the file provider behind it.
func FromConfig(cfg config.SecretsConfig) (*Manager, error) {
	providers := []Provider{NewEnvProvider(cfg.EnvPrefix)}
	if cfg.Dir != "" {
		fp, err := NewFileProvider(cfg.Dir)
		if err != nil {
			return nil, err
		}
		providers = append(providers, fp)
	}
	return NewManager(providers...), nil
}

// Get returns the first value any provider has for name. A provider error
// other than ErrNotFound stops the search.
func (m *Manager) Get(ctx context.Context, name string) (string, error) {
	m.mu.Lock()
	value, ok := m.cache[name]
	m.mu.Unlock()
	if ok {
		return value, nil
	}

	for _, p := range m.providers {
		value, err := p.Get(ctx, name)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("secret %s from %s: %w", redact(name), p.Name(), err)
		}
		slog.Debug("secret resolved", "name", redact(name), "provider", p.Name())
		m.mu.Lock()
		m.cache[name] = value
		m.mu.Unlock()
		return value, nil
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, redact(name))
}

// Resolve replaces every ${secret:name} in s. Unresolvable references are
// left in place and reported together.
func (m *Manager) Resolve(ctx context.Context, s string) (string, error) {
	var errs []error
	out := refPattern.ReplaceAllStringFunc(s, func(ref string) string {
		name := refPattern.FindStringSubmatch(ref)[1]
		value, err := m.Get(ctx, name)
		if err != nil {
			errs = append(errs, err)
			return ref
		}
		return value
	})
	return out, errors.Join(errs...)
}

// ResolveConfig resolves references in the fields that carry credentials:
// the server API keys and the sink request headers.
func (m *Manager) ResolveConfig(ctx context.Context, cfg *config.Config) error {
	var errs []error
	resolve := func(field string, v *string) {
		if !refPattern.MatchString(*v) {
			return
		}
		out, err := m.Resolve(ctx, *v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", field, err))
			return
		}
		*v = out
	}

	for i := range cfg.Server.Auth.Keys {
		resolve(fmt.Sprintf("server.auth.keys[%d].key", i), &cfg.Server.Auth.Keys[i].Key)
	}
	for k, v := range cfg.Anchor.Sink.Headers {
		resolve("anchor.sink.headers."+k, &v)
		cfg.Anchor.Sink.Headers[k] = v
	}
	return errors.Join(errs...)
}

// redact keeps the first and last two characters of a secret name.
func redact(name string) string {
	if len(name) <= 4 {
		return "***"
	}
	return name[:2] + "..." + name[len(name)-2:]
}
