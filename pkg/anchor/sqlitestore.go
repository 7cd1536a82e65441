package anchor

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS anchor_state (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	anchored_lines INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS anchor_ledger (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	kind TEXT NOT NULL,
	start_line INTEGER NOT NULL DEFAULT 0,
	end_line INTEGER NOT NULL DEFAULT 0,
	root TEXT NOT NULL,
	receipt TEXT NOT NULL,
	sink TEXT NOT NULL,
	anchored_at INTEGER NOT NULL,
	ruleset_name TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_anchor_ledger_kind ON anchor_ledger(kind, ruleset_name);
`

// SQLiteStore keeps State and the ledger in one SQLite database. Commit runs
// in a single immediate transaction, so concurrent writers in other
// processes queue on the database lock instead of interleaving.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// NewSQLiteStore opens or creates the database at path.
func NewSQLiteStore(path string, busyTimeout time.Duration) (*SQLiteStore, error) {
	if path == "" {
		return nil, &StoreError{Backend: "sqlite", Operation: "open", Cause: fmt.Errorf("db path cannot be empty")}
	}
	if busyTimeout <= 0 {
		busyTimeout = 5 * time.Second
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, &StoreError{Backend: "sqlite", Operation: "open", Cause: err}
	}

	dsn := fmt.Sprintf("%s?_txlock=immediate&_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=synchronous(FULL)",
		path, busyTimeout.Milliseconds())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, &StoreError{Backend: "sqlite", Operation: "open", Cause: err}
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, &StoreError{Backend: "sqlite", Operation: "create_schema", Cause: err}
	}

	s := &SQLiteStore{
		db:     db,
		path:   path,
		logger: slog.Default().With("component", "anchor.sqlitestore"),
	}
	s.logger.Debug("anchor sqlite store opened", "path", path)
	return s, nil
}

// Load implements Store.
func (s *SQLiteStore) Load(ctx context.Context) (State, error) {
	var state State
	err := s.db.QueryRowContext(ctx, `SELECT anchored_lines FROM anchor_state WHERE id = 1`).Scan(&state.AnchoredLines)
	if err == sql.ErrNoRows {
		return State{}, nil
	}
	if err != nil {
		return State{}, &StoreError{Backend: "sqlite", Operation: "load", Cause: err}
	}
	return state, nil
}

// Commit implements Store.
func (s *SQLiteStore) Commit(ctx context.Context, rec LedgerRecord, next *State) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &StoreError{Backend: "sqlite", Operation: "begin", Cause: err}
	}
	defer tx.Rollback()

	if rec.Kind == KindOutputBatch {
		var anchored, end int
		err := tx.QueryRowContext(ctx, `
			SELECT
				COALESCE((SELECT anchored_lines FROM anchor_state WHERE id = 1), 0),
				COALESCE((SELECT MAX(end_line) FROM anchor_ledger WHERE kind = ?), 0)`,
			string(KindOutputBatch),
		).Scan(&anchored, &end)
		if err != nil {
			return &StoreError{Backend: "sqlite", Operation: "load", Cause: err}
		}
		if err := checkBatchStart(rec, max(anchored, end)); err != nil {
			return err
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO anchor_ledger (kind, start_line, end_line, root, receipt, sink, anchored_at, ruleset_name)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		string(rec.Kind), rec.StartLine, rec.EndLine, rec.Root, rec.Receipt, rec.Sink,
		rec.AnchoredAt.UnixNano(), rec.RulesetName,
	)
	if err != nil {
		return &StoreError{Backend: "sqlite", Operation: "append_ledger", Cause: err}
	}

	if next != nil {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO anchor_state (id, anchored_lines, updated_at) VALUES (1, ?, ?)
			ON CONFLICT(id) DO UPDATE SET anchored_lines = excluded.anchored_lines, updated_at = excluded.updated_at`,
			next.AnchoredLines, time.Now().UnixNano(),
		)
		if err != nil {
			return &StoreError{Backend: "sqlite", Operation: "write_state", Cause: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return &StoreError{Backend: "sqlite", Operation: "commit", Cause: err}
	}
	return nil
}

// Ledger implements Store.
func (s *SQLiteStore) Ledger(ctx context.Context) ([]LedgerRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, start_line, end_line, root, receipt, sink, anchored_at, ruleset_name
		FROM anchor_ledger ORDER BY seq`)
	if err != nil {
		return nil, &StoreError{Backend: "sqlite", Operation: "ledger", Cause: err}
	}
	defer rows.Close()

	var records []LedgerRecord
	for rows.Next() {
		var (
			rec  LedgerRecord
			kind string
			at   int64
		)
		if err := rows.Scan(&kind, &rec.StartLine, &rec.EndLine, &rec.Root, &rec.Receipt, &rec.Sink, &at, &rec.RulesetName); err != nil {
			return nil, &StoreError{Backend: "sqlite", Operation: "scan", Cause: err}
		}
		rec.Kind = Kind(kind)
		rec.AnchoredAt = time.Unix(0, at).UTC()
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, &StoreError{Backend: "sqlite", Operation: "ledger", Cause: err}
	}
	return records, nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
