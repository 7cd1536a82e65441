package anchor

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sys/unix"
)

// FileStore keeps State in a small JSON file and the ledger in a JSONL file.
//
// Commit appends the ledger record first and then replaces the state file
// atomically. If the process dies between the two writes, Load finds a
// ledger record past the stored counter and moves the counter forward, so
// lines are never anchored twice.
//
// Writers in different processes are serialized with advisory locks on
// files next to the ledger: <ledger>.lock around every write and
// <ledger>.pass.lock for the length of an anchoring pass.
type FileStore struct {
	statePath    string
	ledgerPath   string
	lockPath     string
	passLockPath string
	logger       *slog.Logger

	mu sync.Mutex
}

// NewFileStore creates a store. Parent directories are created on first
// write.
func NewFileStore(statePath, ledgerPath string) *FileStore {
	return &FileStore{
		statePath:    statePath,
		ledgerPath:   ledgerPath,
		lockPath:     ledgerPath + ".lock",
		passLockPath: ledgerPath + ".pass.lock",
		logger:       slog.Default().With("component", "anchor.filestore"),
	}
}

func (s *FileStore) storeErr(op string, err error) error {
	return &StoreError{Backend: "file", Operation: op, Cause: err}
}

// flock takes an exclusive advisory lock on path and returns the function
// that releases it. Without wait it fails with unix.EWOULDBLOCK while the
// lock is held elsewhere.
func flock(path string, wait bool) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	how := unix.LOCK_EX
	if !wait {
		how |= unix.LOCK_NB
	}
	for {
		err = unix.Flock(int(f.Fd()), how)
		if !errors.Is(err, unix.EINTR) {
			break
		}
	}
	if err != nil {
		f.Close()
		return nil, err
	}
	return func() {
		unix.Flock(int(f.Fd()), unix.LOCK_UN)
		f.Close()
	}, nil
}

// lock serializes writers in this process and in others.
func (s *FileStore) lock() (func(), error) {
	s.mu.Lock()
	unlock, err := flock(s.lockPath, true)
	if err != nil {
		s.mu.Unlock()
		return nil, s.storeErr("lock", err)
	}
	return func() {
		unlock()
		s.mu.Unlock()
	}, nil
}

// TryLockPass implements PassLocker.
func (s *FileStore) TryLockPass() (func(), error) {
	unlock, err := flock(s.passLockPath, false)
	if errors.Is(err, unix.EWOULDBLOCK) {
		return nil, ErrPassInProgress
	}
	if err != nil {
		return nil, s.storeErr("lock_pass", err)
	}
	return unlock, nil
}

// Load implements Store.
func (s *FileStore) Load(ctx context.Context) (State, error) {
	unlock, err := s.lock()
	if err != nil {
		return State{}, err
	}
	defer unlock()

	state, end, err := s.progress()
	if err != nil {
		return State{}, err
	}
	if end > state.AnchoredLines {
		s.logger.Warn("anchor state behind ledger, reconciling",
			"state_anchored_lines", state.AnchoredLines,
			"ledger_end_line", end,
		)
		state.AnchoredLines = end
		if err := s.writeState(state); err != nil {
			return State{}, err
		}
	}
	return state, nil
}

// progress returns the stored state and the ledger's last batch end line.
func (s *FileStore) progress() (State, int, error) {
	state, err := s.readState()
	if err != nil {
		return State{}, 0, err
	}
	records, err := s.readLedger()
	if err != nil {
		return State{}, 0, err
	}
	return state, lastEndLine(records), nil
}

func (s *FileStore) readState() (State, error) {
	var state State
	data, err := os.ReadFile(s.statePath)
	if errors.Is(err, os.ErrNotExist) {
		return state, nil
	}
	if err != nil {
		return state, s.storeErr("read_state", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return state, nil
	}
	if err := json.Unmarshal(data, &state); err != nil {
		return state, s.storeErr("decode_state", err)
	}
	if state.AnchoredLines < 0 {
		return state, s.storeErr("decode_state", fmt.Errorf("negative anchored_lines %d", state.AnchoredLines))
	}
	return state, nil
}

func (s *FileStore) writeState(state State) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return s.storeErr("encode_state", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.statePath), 0o755); err != nil {
		return s.storeErr("write_state", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.statePath), ".anchor-state-*")
	if err != nil {
		return s.storeErr("write_state", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return s.storeErr("write_state", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return s.storeErr("write_state", err)
	}
	if err := tmp.Close(); err != nil {
		return s.storeErr("write_state", err)
	}
	if err := os.Rename(tmp.Name(), s.statePath); err != nil {
		return s.storeErr("write_state", err)
	}
	return nil
}

func (s *FileStore) readLedger() ([]LedgerRecord, error) {
	f, err := os.Open(s.ledgerPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, s.storeErr("read_ledger", err)
	}
	defer f.Close()

	var records []LedgerRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var rec LedgerRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return nil, s.storeErr("decode_ledger", fmt.Errorf("line %d: %w", lineNo, err))
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, s.storeErr("read_ledger", err)
	}
	return records, nil
}

// Commit implements Store. When the state write fails the ledger is
// truncated back to its previous length.
func (s *FileStore) Commit(ctx context.Context, rec LedgerRecord, next *State) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return s.storeErr("encode_ledger", err)
	}

	unlock, err := s.lock()
	if err != nil {
		return err
	}
	defer unlock()

	if rec.Kind == KindOutputBatch {
		state, end, err := s.progress()
		if err != nil {
			return err
		}
		if err := checkBatchStart(rec, max(state.AnchoredLines, end)); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(s.ledgerPath), 0o755); err != nil {
		return s.storeErr("append_ledger", err)
	}
	f, err := os.OpenFile(s.ledgerPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return s.storeErr("append_ledger", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return s.storeErr("append_ledger", err)
	}
	prevSize := info.Size()

	rollback := func() {
		if terr := f.Truncate(prevSize); terr != nil {
			s.logger.Error("failed to roll back ledger append", "path", s.ledgerPath, "error", terr)
		}
	}

	if _, err := f.Write(append(data, '\n')); err != nil {
		rollback()
		return s.storeErr("append_ledger", err)
	}
	if err := f.Sync(); err != nil {
		rollback()
		return s.storeErr("append_ledger", err)
	}

	if next != nil {
		if err := s.writeState(*next); err != nil {
			rollback()
			return err
		}
	}
	return nil
}

// Ledger implements Store.
func (s *FileStore) Ledger(ctx context.Context) ([]LedgerRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readLedger()
}

// Close implements Store.
func (s *FileStore) Close() error {
	return nil
}
