package audit

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// Indexer is notified of each appended entry. line is 1-based.
type Indexer interface {
	Index(ctx context.Context, line int, entry *Entry) error
}

// Options configures a Log.
type Options struct {
	// Indexer, when set, receives every appended entry.
	Indexer Indexer

	// Sync fsyncs the file after each append.
	// Default: true
	Sync bool
}

// DefaultOptions returns the default log options.
func DefaultOptions() *Options {
	return &Options{Sync: true}
}

// logFile is the part of *os.File a Log writes through.
type logFile interface {
	io.ReadWriteSeeker
	Sync() error
	Truncate(size int64) error
	Close() error
}

// Log is an append-only JSONL file. Appends are serialized; one Log per
// file per process.
type Log struct {
	path   string
	opts   *Options
	logger *slog.Logger

	mu           sync.Mutex
	file         logFile
	size         int64
	lines        int
	needsNewline bool
	closed       bool
}

// Open opens or creates the log at path, creating parent directories.
func Open(path string, opts *Options) (*Log, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, &AuditError{Op: "open", Path: path, Cause: err}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o644)
	if err != nil {
		return nil, &AuditError{Op: "open", Path: path, Cause: err}
	}

	lines, trailing, err := countLines(f)
	if err != nil {
		f.Close()
		return nil, &AuditError{Op: "open", Path: path, Cause: err}
	}
	size, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		f.Close()
		return nil, &AuditError{Op: "open", Path: path, Cause: err}
	}

	l := &Log{
		path:         path,
		opts:         opts,
		logger:       slog.Default().With("component", "audit.log"),
		file:         f,
		size:         size,
		lines:        lines,
		needsNewline: lines > 0 && !trailing,
	}
	if l.needsNewline {
		l.logger.Warn("audit log does not end with a newline, next entry starts a new line", "path", path)
	}
	l.logger.Debug("audit log opened", "path", path, "lines", lines)
	return l, nil
}

// countLines counts lines the way ReadLines splits them and reports whether
// the file ends with a newline.
func countLines(f io.ReadSeeker) (int, bool, error) {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return 0, false, err
	}
	r := bufio.NewReader(f)
	var (
		lines int
		last  byte = '\n'
		buf        = make([]byte, 64*1024)
	)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			lines += bytes.Count(buf[:n], []byte{'\n'})
			last = buf[n-1]
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, false, err
		}
	}
	if last != '\n' {
		lines++
	}
	return lines, last == '\n', nil
}

// Path returns the log file path.
func (l *Log) Path() string {
	return l.path
}

// Lines returns the number of lines written so far.
func (l *Log) Lines() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lines
}

// Append writes entry as one line and returns its 1-based line number. The
// entry is durable when Append returns without error.
func (l *Log) Append(ctx context.Context, entry *Entry) (int, error) {
	data, err := json.Marshal(entry)
	if err != nil {
		return 0, &AuditError{Op: "append", Path: l.path, Cause: err}
	}
	if bytes.IndexByte(data, '\n') >= 0 {
		return 0, &AuditError{Op: "append", Path: l.path, Cause: fmt.Errorf("encoded entry contains a newline")}
	}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return 0, &AuditError{Op: "append", Path: l.path, Cause: ErrClosed}
	}

	buf := make([]byte, 0, len(data)+2)
	if l.needsNewline {
		buf = append(buf, '\n')
	}
	buf = append(buf, data...)
	buf = append(buf, '\n')

	if _, err := l.file.Write(buf); err != nil {
		l.rollback(err)
		l.mu.Unlock()
		return 0, &AuditError{Op: "append", Path: l.path, Cause: err}
	}
	if l.opts.Sync {
		if err := l.file.Sync(); err != nil {
			l.rollback(err)
			l.mu.Unlock()
			return 0, &AuditError{Op: "append", Path: l.path, Cause: err}
		}
	}
	l.needsNewline = false
	l.size += int64(len(buf))
	l.lines++
	line := l.lines
	l.mu.Unlock()

	if l.opts.Indexer != nil {
		if err := l.opts.Indexer.Index(ctx, line, entry); err != nil {
			l.logger.Error("failed to index audit entry", "line", line, "entry_id", entry.ID, "error", err)
		}
	}
	return line, nil
}

// rollback removes whatever a failed append left behind so that the next
// entry starts on a clean line. If the file cannot be truncated the line
// count is taken from the file itself. Called with l.mu held.
func (l *Log) rollback(cause error) {
	err := l.file.Truncate(l.size)
	if err == nil {
		return
	}
	l.logger.Error("failed to roll back partial audit append", "path", l.path, "append_error", cause, "error", err)

	lines, trailing, cerr := countLines(l.file)
	if cerr != nil {
		l.needsNewline = true
		return
	}
	end, serr := l.file.Seek(0, io.SeekEnd)
	if serr == nil {
		l.size = end
	}
	l.lines = lines
	l.needsNewline = lines > 0 && !trailing
}

// Close closes the underlying file. Later appends fail with ErrClosed.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	return l.file.Close()
}
