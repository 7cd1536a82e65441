package anchor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"candela-hq/guardian/pkg/audit"
	"candela-hq/guardian/pkg/merkle"
)

// DefaultConfirmTimeout bounds how long a pass waits for the sink.
const DefaultConfirmTimeout = 120 * time.Second

// Metrics receives anchoring outcomes. status is "anchored", "empty",
// "dry_run" or "failed".
type Metrics interface {
	ObserveAnchorPass(status string, lines int)
}

// Config configures an Anchorer.
type Config struct {
	// LogPath is the audit log to anchor.
	LogPath string

	// ConfirmTimeout bounds each sink submission.
	// Default: 120 seconds
	ConfirmTimeout time.Duration
}

// Anchorer runs anchoring passes. At most one pass runs at a time per
// Anchorer, and per store when the store implements PassLocker.
type Anchorer struct {
	config  Config
	store   Store
	sink    Sink
	metrics Metrics
	logger  *slog.Logger
	now     func() time.Time

	mu sync.Mutex
}

// New creates an Anchorer. sink may be nil for dry runs only.
func New(config Config, store Store, sink Sink) *Anchorer {
	if config.ConfirmTimeout <= 0 {
		config.ConfirmTimeout = DefaultConfirmTimeout
	}
	return &Anchorer{
		config: config,
		store:  store,
		sink:   sink,
		logger: slog.Default().With("component", "anchor.anchorer"),
		now:    time.Now,
	}
}

// SetMetrics attaches a metrics observer.
func (a *Anchorer) SetMetrics(m Metrics) {
	a.metrics = m
}

// RunOptions controls a pass.
type RunOptions struct {
	// DryRun computes the root without submitting or recording anything.
	DryRun bool
}

// Result describes a pass. Lines is zero when there was nothing to anchor.
type Result struct {
	StartLine int           `json:"start_line,omitempty"`
	EndLine   int           `json:"end_line,omitempty"`
	Lines     int           `json:"lines"`
	Root      string        `json:"root,omitempty"`
	DryRun    bool          `json:"dry_run,omitempty"`
	Record    *LedgerRecord `json:"record,omitempty"`
}

func (a *Anchorer) observe(status string, lines int) {
	if a.metrics != nil {
		a.metrics.ObserveAnchorPass(status, lines)
	}
}

// lockPass takes the in-process pass lock and, unless dryRun, the store's
// pass lock.
func (a *Anchorer) lockPass(dryRun bool) (func(), error) {
	if !a.mu.TryLock() {
		return nil, ErrPassInProgress
	}
	pl, ok := a.store.(PassLocker)
	if !ok || dryRun {
		return a.mu.Unlock, nil
	}
	unlock, err := pl.TryLockPass()
	if err != nil {
		a.mu.Unlock()
		return nil, err
	}
	return func() {
		unlock()
		a.mu.Unlock()
	}, nil
}

// Run anchors every complete audit line after State.AnchoredLines. A final
// line without its newline is left for the next pass. Run returns
// ErrPassInProgress when another pass is running, a *SubmitError when the
// sink fails and ErrStateMoved when another pass recorded lines first; in
// each case nothing is recorded.
func (a *Anchorer) Run(ctx context.Context, opts RunOptions) (*Result, error) {
	unlock, err := a.lockPass(opts.DryRun)
	if err != nil {
		return nil, err
	}
	defer unlock()

	state, err := a.store.Load(ctx)
	if err != nil {
		a.observe("failed", 0)
		return nil, err
	}

	lines, err := audit.ReadCompleteLines(a.config.LogPath)
	if err != nil {
		a.observe("failed", 0)
		return nil, err
	}
	if state.AnchoredLines > len(lines) {
		a.observe("failed", 0)
		return nil, fmt.Errorf("%w: state has %d, log has %d", ErrLogTruncated, state.AnchoredLines, len(lines))
	}

	pending := lines[state.AnchoredLines:]
	if len(pending) == 0 {
		a.logger.Info("no new audit entries to anchor", "anchored_lines", state.AnchoredLines)
		a.observe("empty", 0)
		return &Result{DryRun: opts.DryRun}, nil
	}

	root, _ := merkle.Root(merkle.Leaves(pending))
	result := &Result{
		StartLine: state.AnchoredLines + 1,
		EndLine:   state.AnchoredLines + len(pending),
		Lines:     len(pending),
		Root:      root.String(),
		DryRun:    opts.DryRun,
	}

	a.logger.Info("computed audit batch root",
		"start_line", result.StartLine,
		"end_line", result.EndLine,
		"root", result.Root,
	)

	if opts.DryRun {
		a.logger.Info("dry run, root not submitted", "root", result.Root)
		a.observe("dry_run", result.Lines)
		return result, nil
	}

	receipt, err := a.submit(ctx, root)
	if err != nil {
		a.observe("failed", 0)
		return nil, err
	}

	rec := LedgerRecord{
		Kind:       KindOutputBatch,
		StartLine:  result.StartLine,
		EndLine:    result.EndLine,
		Root:       result.Root,
		Receipt:    receipt.ID,
		Sink:       a.sink.Name(),
		AnchoredAt: a.now().UTC(),
	}
	if err := a.store.Commit(ctx, rec, &State{AnchoredLines: result.EndLine}); err != nil {
		a.logger.Error("root confirmed by sink but not recorded",
			"root", result.Root,
			"receipt", receipt.ID,
			"error", err,
		)
		a.observe("failed", 0)
		return nil, err
	}

	result.Record = &rec
	a.logger.Info("audit batch anchored",
		"lines", result.Lines,
		"receipt", receipt.ID,
		"sink", rec.Sink,
	)
	a.observe("anchored", result.Lines)
	return result, nil
}

func (a *Anchorer) submit(ctx context.Context, root merkle.Hash) (Receipt, error) {
	if a.sink == nil {
		return Receipt{}, ErrNoSink
	}
	ctx, cancel := context.WithTimeout(ctx, a.config.ConfirmTimeout)
	defer cancel()

	receipt, err := a.sink.Submit(ctx, root)
	if err != nil {
		return Receipt{}, &SubmitError{Sink: a.sink.Name(), Root: root.String(), Cause: err}
	}
	return receipt, nil
}

// AnchorRuleset anchors a ruleset hash under name. The line counter is not
// touched. A dry run returns the record that would have been written
// without a receipt.
func (a *Anchorer) AnchorRuleset(ctx context.Context, name, hash string, dryRun bool) (*LedgerRecord, error) {
	root, err := merkle.ParseHash(hash)
	if err != nil {
		return nil, err
	}

	rec := &LedgerRecord{
		Kind:        KindRuleset,
		Root:        root.String(),
		RulesetName: name,
	}
	if dryRun {
		a.logger.Info("dry run, ruleset hash not submitted", "ruleset", name, "hash", rec.Root)
		return rec, nil
	}

	unlock, err := a.lockPass(false)
	if err != nil {
		return nil, err
	}
	defer unlock()

	receipt, err := a.submit(ctx, root)
	if err != nil {
		return nil, err
	}
	rec.Receipt = receipt.ID
	rec.Sink = a.sink.Name()
	rec.AnchoredAt = a.now().UTC()

	if err := a.store.Commit(ctx, *rec, nil); err != nil {
		return nil, err
	}
	a.logger.Info("ruleset hash anchored", "ruleset", name, "hash", rec.Root, "receipt", receipt.ID)
	return rec, nil
}

// Ledger returns the store's ledger.
func (a *Anchorer) Ledger(ctx context.Context) ([]LedgerRecord, error) {
	return a.store.Ledger(ctx)
}

// State returns the store's current state.
func (a *Anchorer) State(ctx context.Context) (State, error) {
	return a.store.Load(ctx)
}
