package anchor

import (
	"errors"
	"fmt"
)

var (
	// ErrPassInProgress is returned when another anchoring pass holds the lock.
	ErrPassInProgress = errors.New("anchoring pass already in progress")

	// ErrLogTruncated is returned when the state claims more anchored lines
	// than the audit log contains.
	ErrLogTruncated = errors.New("audit log is shorter than the anchored line count")

	// ErrStateMoved is returned by Commit when another pass recorded lines
	// after this one loaded its state. Nothing is written.
	ErrStateMoved = errors.New("anchor state moved during pass")

	// ErrNoSink is returned by a non dry-run pass without a configured sink.
	ErrNoSink = errors.New("no anchoring sink configured")
)

// SubmitError is returned when the sink rejects or fails to confirm a root.
// State and ledger are unchanged when it is returned.
type SubmitError struct {
	Sink  string
	Root  string
	Cause error
}

// Error implements the error interface.
func (e *SubmitError) Error() string {
	return fmt.Sprintf("anchor submit failed [sink=%s, root=%s]: %v", e.Sink, e.Root, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *SubmitError) Unwrap() error {
	return e.Cause
}

// StoreError is returned when anchoring state cannot be read or written.
type StoreError struct {
	Backend   string
	Operation string
	Cause     error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	return fmt.Sprintf("anchor store error [backend=%s, operation=%s]: %v", e.Backend, e.Operation, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *StoreError) Unwrap() error {
	return e.Cause
}
