package anchor

import (
	"context"
	"fmt"
	"time"

	"candela-hq/guardian/pkg/merkle"
)

// Kind distinguishes ledger records.
type Kind string

const (
	KindOutputBatch Kind = "output_batch"
	KindRuleset     Kind = "ruleset"
)

// State is the persisted anchoring progress. AnchoredLines never decreases.
type State struct {
	AnchoredLines int `json:"anchored_lines"`
}

// LedgerRecord is one confirmed anchor. For output batches StartLine and
// EndLine are the 1-based inclusive line range that was anchored.
type LedgerRecord struct {
	Kind        Kind      `json:"kind"`
	StartLine   int       `json:"start_line,omitempty"`
	EndLine     int       `json:"end_line,omitempty"`
	Root        string    `json:"root"`
	Receipt     string    `json:"receipt"`
	Sink        string    `json:"sink"`
	AnchoredAt  time.Time `json:"anchored_at"`
	RulesetName string    `json:"ruleset_name,omitempty"`
}

// Contains reports whether the 1-based line falls in an output batch record.
func (r *LedgerRecord) Contains(line int) bool {
	return r.Kind == KindOutputBatch && line >= r.StartLine && line <= r.EndLine
}

// Receipt is the sink's confirmation of a submitted root.
type Receipt struct {
	// ID identifies the anchor at the sink, e.g. a transaction hash.
	ID string `json:"id"`
}

// Sink publishes a root somewhere outside the operator's control. Submit
// must not return until the root is confirmed or ctx is done.
type Sink interface {
	Name() string
	Submit(ctx context.Context, root merkle.Hash) (Receipt, error)
}

// Store persists State and the ledger.
type Store interface {
	// Load returns the current state.
	Load(ctx context.Context) (State, error)

	// Commit appends rec to the ledger and, when next is not nil, replaces
	// the state. Either both changes persist or neither does. An output
	// batch is only committed while the stored progress, taken from both the
	// state and the ledger, still ends at rec.StartLine-1; otherwise Commit
	// returns an error wrapping ErrStateMoved.
	Commit(ctx context.Context, rec LedgerRecord, next *State) error

	// Ledger returns every record in append order.
	Ledger(ctx context.Context) ([]LedgerRecord, error)

	Close() error
}

// PassLocker is implemented by stores that can keep passes in other
// processes from running at the same time. TryLockPass returns
// ErrPassInProgress when the lock is held elsewhere.
type PassLocker interface {
	TryLockPass() (unlock func(), err error)
}

// checkBatchStart returns ErrStateMoved unless rec continues from anchored.
func checkBatchStart(rec LedgerRecord, anchored int) error {
	if rec.Kind != KindOutputBatch || rec.StartLine == anchored+1 {
		return nil
	}
	return fmt.Errorf("%w: batch starts at line %d, store has %d lines anchored", ErrStateMoved, rec.StartLine, anchored)
}

// LatestRuleset returns the most recent ruleset record for name, or nil.
func LatestRuleset(records []LedgerRecord, name string) *LedgerRecord {
	for i := len(records) - 1; i >= 0; i-- {
		if records[i].Kind == KindRuleset && records[i].RulesetName == name {
			return &records[i]
		}
	}
	return nil
}

// BatchFor returns the output batch record that anchored line, or nil.
func BatchFor(records []LedgerRecord, line int) *LedgerRecord {
	for i := range records {
		if records[i].Contains(line) {
			return &records[i]
		}
	}
	return nil
}

// lastEndLine returns the highest end_line among output batch records.
func lastEndLine(records []LedgerRecord) int {
	end := 0
	for _, r := range records {
		if r.Kind == KindOutputBatch && r.EndLine > end {
			end = r.EndLine
		}
	}
	return end
}
