package anchor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler runs anchoring passes on a cron schedule.
type Scheduler struct {
	anchorer *Anchorer
	schedule string
	cron     *cron.Cron
	mu       sync.Mutex
	logger   *slog.Logger
	running  bool
}

// NewScheduler creates a scheduler for anchorer using a standard five field
// cron expression, e.g. "*/15 * * * *" for every quarter hour.
func NewScheduler(anchorer *Anchorer, schedule string) *Scheduler {
	return &Scheduler{
		anchorer: anchorer,
		schedule: schedule,
		cron:     cron.New(),
		logger:   slog.Default().With("component", "anchor.scheduler"),
	}
}

// Start validates the schedule and begins running passes until ctx is
// cancelled. An empty schedule disables the scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.schedule == "" {
		s.logger.Info("anchor schedule not configured, skipping scheduler")
		return nil
	}
	if _, err := cron.ParseStandard(s.schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", s.schedule, err)
	}
	if _, err := s.cron.AddFunc(s.schedule, func() { s.runPass(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule anchoring: %w", err)
	}

	s.cron.Start()
	s.running = true
	s.logger.Info("anchor scheduler started", "schedule", s.schedule)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

func (s *Scheduler) runPass(ctx context.Context) {
	result, err := s.anchorer.Run(ctx, RunOptions{})
	switch {
	case errors.Is(err, ErrPassInProgress):
		s.logger.Debug("skipping scheduled anchoring, pass already running")
	case err != nil:
		s.logger.Error("scheduled anchoring failed", "error", err)
	case result.Lines == 0:
		s.logger.Debug("scheduled anchoring found nothing to anchor")
	default:
		s.logger.Info("scheduled anchoring completed",
			"lines", result.Lines,
			"root", result.Root,
		)
	}
}

// Stop stops the scheduler and waits for a running pass to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		<-s.cron.Stop().Done()
		s.running = false
		s.logger.Info("anchor scheduler stopped")
	}
}

// IsRunning reports whether the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextRun returns the next scheduled pass, or nil when none is scheduled.
func (s *Scheduler) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.cron.Entries()
	if len(entries) == 0 {
		return nil
	}
	next := entries[0].Next
	return &next
}
