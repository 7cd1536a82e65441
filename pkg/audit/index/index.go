package index

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"candela-hq/guardian/pkg/audit"
)

// Config contains configuration for the SQLite index.
type Config struct {
	// Path is the database file path.
	Path string

	// MaxOpenConns is the maximum number of open connections.
	// Default: 4
	MaxOpenConns int

	// WALMode enables write-ahead logging.
	// Default: true
	WALMode bool

	// BusyTimeout is how long to wait on a locked database.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultConfig returns the default index configuration.
func DefaultConfig() *Config {
	return &Config{
		Path:         "logs/audit_index.db",
		MaxOpenConns: 4,
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
	}
}

// StorageError is returned when a database operation fails.
type StorageError struct {
	Operation string
	Cause     error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return fmt.Sprintf("audit index error [operation=%s]: %v", e.Operation, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *StorageError) Unwrap() error {
	return e.Cause
}

// Index is a SQLite projection of the audit log. It is safe for concurrent
// use.
type Index struct {
	db     *sql.DB
	config *Config
	logger *slog.Logger
}

// Open opens or creates the index database and applies the schema.
func Open(config *Config) (*Index, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.MaxOpenConns <= 0 {
		config.MaxOpenConns = 4
	}
	if config.BusyTimeout <= 0 {
		config.BusyTimeout = 5 * time.Second
	}

	db, err := sql.Open("sqlite3", config.Path+"?_foreign_keys=on")
	if err != nil {
		return nil, &StorageError{Operation: "open", Cause: err}
	}
	db.SetMaxOpenConns(config.MaxOpenConns)

	ix := &Index{
		db:     db,
		config: config,
		logger: slog.Default().With("component", "audit.index"),
	}
	if err := ix.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	ix.logger.Info("audit index opened", "path", config.Path, "wal_mode", config.WALMode)
	return ix, nil
}

func (ix *Index) initialize() error {
	if ix.config.WALMode {
		if _, err := ix.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return &StorageError{Operation: "enable_wal", Cause: err}
		}
	}
	if _, err := ix.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", ix.config.BusyTimeout.Milliseconds())); err != nil {
		return &StorageError{Operation: "set_busy_timeout", Cause: err}
	}
	if _, err := ix.db.Exec(Schema); err != nil {
		return &StorageError{Operation: "create_schema", Cause: err}
	}
	if _, err := ix.db.Exec(insertSchemaVersion, SchemaVersion); err != nil {
		return &StorageError{Operation: "insert_schema_version", Cause: err}
	}

	var version int
	if err := ix.db.QueryRow(getSchemaVersion).Scan(&version); err != nil {
		return &StorageError{Operation: "get_schema_version", Cause: err}
	}
	if version != SchemaVersion {
		return &StorageError{Operation: "schema_version_mismatch",
			Cause: fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version)}
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Index implements audit.Indexer. Re-indexing a line replaces it.
func (ix *Index) Index(ctx context.Context, line int, entry *audit.Entry) error {
	tx, err := ix.db.BeginTx(ctx, nil)
	if err != nil {
		return &StorageError{Operation: "begin", Cause: err}
	}
	defer tx.Rollback()

	if err := insert(ctx, tx, line, entry); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return &StorageError{Operation: "commit", Cause: err}
	}
	return nil
}

func insert(ctx context.Context, db execer, line int, entry *audit.Entry) error {
	summary, err := entry.Summary()
	if err != nil {
		return &StorageError{Operation: "decode_verdict", Cause: err}
	}

	var correctionOf any
	if entry.CorrectionOf != "" {
		correctionOf = entry.CorrectionOf
	}

	if _, err := db.ExecContext(ctx, `DELETE FROM violations WHERE line = ?`, line); err != nil {
		return &StorageError{Operation: "store", Cause: err}
	}
	_, err = db.ExecContext(ctx, `
		INSERT OR REPLACE INTO entries (
			line, id, ts, mode, ruleset_hash, text_hash, passed, score, correction_of
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		line, entry.ID, entry.Timestamp.UTC(), entry.Mode, entry.RulesetHash, entry.TextHash,
		summary.Passed, summary.Score, correctionOf,
	)
	if err != nil {
		return &StorageError{Operation: "store", Cause: err}
	}

	for _, id := range summary.Violations {
		if _, err := db.ExecContext(ctx,
			`INSERT OR IGNORE INTO violations (line, directive_id) VALUES (?, ?)`, line, id); err != nil {
			return &StorageError{Operation: "store_violation", Cause: err}
		}
	}
	return nil
}

// Progress receives reindexing progress, one Add per log line.
type Progress interface {
	Start(total int64)
	Add(n int64)
	Finish()
}

// Reindex rebuilds the index from the log at logPath in one transaction and
// returns the number of entries indexed. Lines that do not decode are
// logged and skipped. progress may be nil.
func (ix *Index) Reindex(ctx context.Context, logPath string, progress Progress) (int, error) {
	entries, err := audit.ReadEntries(logPath, func(line int, err error) {
		ix.logger.Warn("skipping undecodable audit line", "line", line, "error", err)
	})
	if err != nil {
		return 0, err
	}

	tx, err := ix.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, &StorageError{Operation: "begin", Cause: err}
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM violations`); err != nil {
		return 0, &StorageError{Operation: "truncate", Cause: err}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM entries`); err != nil {
		return 0, &StorageError{Operation: "truncate", Cause: err}
	}

	if progress != nil {
		progress.Start(int64(len(entries)))
		defer progress.Finish()
	}

	count := 0
	for i, entry := range entries {
		if progress != nil {
			progress.Add(1)
		}
		if entry == nil {
			continue
		}
		if err := insert(ctx, tx, i+1, entry); err != nil {
			ix.logger.Warn("skipping audit entry", "line", i+1, "error", err)
			continue
		}
		count++
	}

	if err := tx.Commit(); err != nil {
		return 0, &StorageError{Operation: "commit", Cause: err}
	}
	ix.logger.Info("audit index rebuilt", "entries", count, "log", logPath)
	return count, nil
}

// Query filters indexed entries. Zero values are ignored.
type Query struct {
	Passed      *bool
	Mode        string
	RulesetHash string
	TextHash    string
	DirectiveID int
	Since       *time.Time
	Until       *time.Time

	// CorrectionsOnly keeps only entries written by a background recheck.
	CorrectionsOnly bool

	// Limit caps the number of rows.
	// Default: 100
	Limit  int
	Offset int
}

// Row is one indexed entry.
type Row struct {
	Line         int       `json:"line"`
	ID           string    `json:"id"`
	Timestamp    time.Time `json:"ts"`
	Mode         string    `json:"mode"`
	RulesetHash  string    `json:"ruleset_hash"`
	TextHash     string    `json:"text_hash"`
	Passed       bool      `json:"passed"`
	Score        float64   `json:"score"`
	Violations   []int     `json:"violations"`
	CorrectionOf string    `json:"correction_of,omitempty"`
}

func buildWhere(q *Query) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if q.Passed != nil {
		conds = append(conds, "e.passed = ?")
		args = append(args, *q.Passed)
	}
	if q.Mode != "" {
		conds = append(conds, "e.mode = ?")
		args = append(args, q.Mode)
	}
	if q.RulesetHash != "" {
		conds = append(conds, "e.ruleset_hash = ?")
		args = append(args, q.RulesetHash)
	}
	if q.TextHash != "" {
		conds = append(conds, "e.text_hash = ?")
		args = append(args, q.TextHash)
	}
	if q.DirectiveID > 0 {
		conds = append(conds, "EXISTS (SELECT 1 FROM violations v WHERE v.line = e.line AND v.directive_id = ?)")
		args = append(args, q.DirectiveID)
	}
	if q.Since != nil {
		conds = append(conds, "e.ts >= ?")
		args = append(args, q.Since.UTC())
	}
	if q.Until != nil {
		conds = append(conds, "e.ts <= ?")
		args = append(args, q.Until.UTC())
	}
	if q.CorrectionsOnly {
		conds = append(conds, "e.correction_of IS NOT NULL")
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// Query returns matching entries ordered by line.
func (ix *Index) Query(ctx context.Context, q *Query) ([]*Row, error) {
	if q == nil {
		q = &Query{}
	}
	where, args := buildWhere(q)

	limit := 100
	if q.Limit > 0 {
		limit = q.Limit
	}
	stmt := `SELECT e.line, e.id, e.ts, e.mode, e.ruleset_hash, e.text_hash, e.passed, e.score,
		COALESCE(e.correction_of, '') FROM entries e` + where +
		fmt.Sprintf(" ORDER BY e.line LIMIT %d", limit)
	if q.Offset > 0 {
		stmt += fmt.Sprintf(" OFFSET %d", q.Offset)
	}

	rows, err := ix.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, &StorageError{Operation: "query", Cause: err}
	}
	defer rows.Close()

	out := []*Row{}
	byLine := map[int]*Row{}
	for rows.Next() {
		r := &Row{}
		if err := rows.Scan(&r.Line, &r.ID, &r.Timestamp, &r.Mode, &r.RulesetHash, &r.TextHash,
			&r.Passed, &r.Score, &r.CorrectionOf); err != nil {
			return nil, &StorageError{Operation: "scan", Cause: err}
		}
		out = append(out, r)
		byLine[r.Line] = r
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Operation: "query", Cause: err}
	}
	rows.Close()

	if len(out) == 0 {
		return out, nil
	}
	if err := ix.loadViolations(ctx, out, byLine); err != nil {
		return nil, err
	}
	return out, nil
}

func (ix *Index) loadViolations(ctx context.Context, out []*Row, byLine map[int]*Row) error {
	placeholders := make([]string, len(out))
	args := make([]any, len(out))
	for i, r := range out {
		placeholders[i] = "?"
		args[i] = r.Line
	}
	rows, err := ix.db.QueryContext(ctx,
		`SELECT line, directive_id FROM violations WHERE line IN (`+strings.Join(placeholders, ",")+`) ORDER BY line, rowid`,
		args...)
	if err != nil {
		return &StorageError{Operation: "query_violations", Cause: err}
	}
	defer rows.Close()

	for rows.Next() {
		var line, id int
		if err := rows.Scan(&line, &id); err != nil {
			return &StorageError{Operation: "scan", Cause: err}
		}
		if r := byLine[line]; r != nil {
			r.Violations = append(r.Violations, id)
		}
	}
	return rows.Err()
}

// Count returns the number of entries matching q.
func (ix *Index) Count(ctx context.Context, q *Query) (int64, error) {
	if q == nil {
		q = &Query{}
	}
	where, args := buildWhere(q)

	var n int64
	if err := ix.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM entries e"+where, args...).Scan(&n); err != nil {
		return 0, &StorageError{Operation: "count", Cause: err}
	}
	return n, nil
}

// Close closes the database.
func (ix *Index) Close() error {
	return ix.db.Close()
}

// PingContext checks that the database is reachable.
func (ix *Index) PingContext(ctx context.Context) error {
	return ix.db.PingContext(ctx)
}
