package guard

import (
	"fmt"
	"time"

	"candela-hq/guardian/pkg/audit"
	"candela-hq/guardian/pkg/semantic"
)

// Config holds runtime settings.
type Config struct {
	// Mode selects semantic scheduling.
	// Default: sync_light
	Mode Mode

	// LatencyBudget is the fast-path time above which a verdict is annotated.
	// Default: 120ms
	LatencyBudget time.Duration

	// CacheTTL is how long a verdict is reused for identical input.
	// Default: 24h
	CacheTTL time.Duration

	// SemanticEnabled turns semantic evaluation on for strict and sync_light.
	// Default: true
	SemanticEnabled bool

	// SemanticThreshold is the matcher's default similarity threshold. It is
	// part of the cache key.
	// Default: 0.80
	SemanticThreshold float64

	// Workers is the number of background workers.
	// Default: 1
	Workers int

	// QueueSize bounds the background job queue.
	// Default: 256
	QueueSize int

	// Text controls how much of each checked text reaches the audit log.
	Text audit.TextPolicy
}

// DefaultConfig returns the default runtime configuration.
func DefaultConfig() *Config {
	return &Config{
		Mode:              ModeSyncLight,
		LatencyBudget:     120 * time.Millisecond,
		CacheTTL:          24 * time.Hour,
		SemanticEnabled:   true,
		SemanticThreshold: semantic.DefaultThreshold,
		Workers:           1,
		QueueSize:         256,
		Text:              audit.DefaultTextPolicy(),
	}
}

// Validate checks the configuration for values the runtime cannot work with.
func (c *Config) Validate() error {
	if _, err := ParseMode(string(c.Mode)); err != nil {
		return err
	}
	if c.LatencyBudget <= 0 {
		return fmt.Errorf("latency budget must be positive, got %s", c.LatencyBudget)
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("cache ttl must not be negative, got %s", c.CacheTTL)
	}
	if c.SemanticThreshold <= 0 || c.SemanticThreshold > 1 {
		return fmt.Errorf("semantic threshold must be in (0, 1], got %v", c.SemanticThreshold)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.QueueSize < 1 {
		return fmt.Errorf("queue size must be at least 1, got %d", c.QueueSize)
	}
	return nil
}
