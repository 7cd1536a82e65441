package guard

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
)

// job is a unit of background work. kind labels logs and metrics.
type job struct {
	kind string
	run  func(ctx context.Context) error
}

// pool runs jobs on a fixed number of workers fed by a bounded queue.
type pool struct {
	jobs    chan job
	metrics Metrics
	logger  *slog.Logger
	wg      sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

func newPool(workers, queueSize int, metrics Metrics) *pool {
	p := &pool{
		jobs:    make(chan job, queueSize),
		metrics: metrics,
		logger:  slog.Default().With("component", "guard.pool"),
	}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

// trySubmit queues j without blocking. It reports false when the queue is
// full or the pool is closed.
func (p *pool) trySubmit(j job) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}
	select {
	case p.jobs <- j:
		return true
	default:
		p.logger.Warn("background queue full, dropping job",
			"kind", j.kind,
			"capacity", cap(p.jobs),
		)
		p.metrics.ObserveJobDropped(j.kind)
		return false
	}
}

// pending returns the number of queued jobs.
func (p *pool) pending() int {
	return len(p.jobs)
}

// close stops accepting jobs and waits for queued ones to finish.
func (p *pool) close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()

	p.logger.Info("draining background queue", "pending_count", len(p.jobs))
	p.wg.Wait()
}

func (p *pool) worker() {
	defer p.wg.Done()
	for j := range p.jobs {
		p.execute(j)
	}
}

func (p *pool) execute(j job) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("background job panicked",
				"kind", j.kind,
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()),
			)
			p.metrics.ObserveJobFailed(j.kind, "panic")
		}
	}()

	if err := j.run(context.Background()); err != nil {
		p.logger.Error("background job failed", "kind", j.kind, "error", err)
		p.metrics.ObserveJobFailed(j.kind, "error")
	}
}
