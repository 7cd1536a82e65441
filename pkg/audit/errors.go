package audit

import (
	"errors"
	"fmt"
)

// ErrClosed is returned by Append after Close.
var ErrClosed = errors.New("audit log is closed")

// AuditError is returned when the log file cannot be opened, written or read.
type AuditError struct {
	Op    string // "open", "append", "read"
	Path  string
	Cause error
}

// Error implements the error interface.
func (e *AuditError) Error() string {
	return fmt.Sprintf("audit %s [path=%s]: %v", e.Op, e.Path, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *AuditError) Unwrap() error {
	return e.Cause
}
