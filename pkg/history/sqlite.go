package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// SQLiteConfig contains configuration for the SQLite history backend.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// MaxOpenConns is the maximum number of open connections (default: 10).
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections (default: 5).
	MaxIdleConns int

	// WALMode enables Write-Ahead Logging for better concurrency
	// (default: true).
	WALMode bool

	// BusyTimeout is how long to wait when the database is locked
	// (default: 5 seconds).
	BusyTimeout time.Duration
}

// DefaultSQLiteConfig returns the default SQLite configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:         "data/history.db",
		MaxOpenConns: 10,
		MaxIdleConns: 5,
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
	}
}

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db     *sql.DB
	config *SQLiteConfig
	logger *slog.Logger
}

// NewSQLiteStorage opens (creating if needed) the history database and
// initializes its schema.
func NewSQLiteStorage(config *SQLiteConfig, logger *slog.Logger) (*SQLiteStorage, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "history.sqlite")

	db, err := sql.Open(sqliteDriver, config.Path)
	if err != nil {
		return nil, NewStorageError("sqlite", "open", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)

	s := &SQLiteStorage{db: db, config: config, logger: logger}

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("history storage initialized",
		"path", config.Path,
		"wal_mode", config.WALMode,
	)

	return s, nil
}

// initialize sets pragmas and creates the schema.
func (s *SQLiteStorage) initialize() error {
	if s.config.WALMode {
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return NewStorageError("sqlite", "enable_wal", err)
		}
	}

	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", s.config.BusyTimeout.Milliseconds())); err != nil {
		return NewStorageError("sqlite", "set_busy_timeout", err)
	}

	if _, err := s.db.Exec("PRAGMA foreign_keys=ON;"); err != nil {
		return NewStorageError("sqlite", "enable_foreign_keys", err)
	}

	if _, err := s.db.Exec(Schema); err != nil {
		return NewStorageError("sqlite", "create_schema", err)
	}

	if _, err := s.db.Exec(insertSchemaVersion, SchemaVersion); err != nil {
		return NewStorageError("sqlite", "insert_schema_version", err)
	}

	var version int
	if err := s.db.QueryRow(getSchemaVersion).Scan(&version); err != nil && err != sql.ErrNoRows {
		return NewStorageError("sqlite", "get_schema_version", err)
	}
	if version != SchemaVersion {
		return NewStorageError("sqlite", "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version))
	}

	return nil
}

// SaveRun implements Storage.
func (s *SQLiteStorage) SaveRun(ctx context.Context, run *Run) error {
	var completedAt any
	if !run.CompletedAt.IsZero() {
		completedAt = run.CompletedAt
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, rule_root, started_at, completed_at, record_count, violation_count)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			completed_at = excluded.completed_at,
			record_count = excluded.record_count,
			violation_count = excluded.violation_count
	`, run.ID, run.RuleRoot, run.StartedAt, completedAt, run.RecordCount, run.ViolationCount)

	if err != nil {
		return NewStorageError("sqlite", "save_run", err)
	}
	return nil
}

// SaveViolations implements Storage. Violations are written in one
// transaction.
func (s *SQLiteStorage) SaveViolations(ctx context.Context, violations []*StoredViolation) error {
	if len(violations) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return NewStorageError("sqlite", "begin_tx", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO violations (run_id, record_id, category, instrument, field, rule, message, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return NewStorageError("sqlite", "prepare", err)
	}
	defer stmt.Close()

	for _, v := range violations {
		if _, err := stmt.ExecContext(ctx,
			v.RunID, v.RecordID, v.Category, v.Instrument,
			v.Field, v.Rule, v.Message, v.RecordedAt,
		); err != nil {
			return NewStorageError("sqlite", "save_violation", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return NewStorageError("sqlite", "commit", err)
	}
	return nil
}

// GetRun implements Storage.
func (s *SQLiteStorage) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, rule_root, started_at, completed_at, record_count, violation_count
		FROM runs WHERE id = ?
	`, id)

	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, NewStorageError("sqlite", "get_run", err)
	}
	return run, nil
}

// ListRuns implements Storage.
func (s *SQLiteStorage) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, rule_root, started_at, completed_at, record_count, violation_count
		FROM runs ORDER BY started_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, NewStorageError("sqlite", "list_runs", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, NewStorageError("sqlite", "scan_run", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, NewStorageError("sqlite", "list_runs", err)
	}
	return runs, nil
}

// ListViolations implements Storage.
func (s *SQLiteStorage) ListViolations(ctx context.Context, runID string) ([]*StoredViolation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, record_id, category, instrument, field, rule, message, recorded_at
		FROM violations WHERE run_id = ? ORDER BY id
	`, runID)
	if err != nil {
		return nil, NewStorageError("sqlite", "list_violations", err)
	}
	defer rows.Close()

	var violations []*StoredViolation
	for rows.Next() {
		var v StoredViolation
		if err := rows.Scan(&v.RunID, &v.RecordID, &v.Category, &v.Instrument,
			&v.Field, &v.Rule, &v.Message, &v.RecordedAt); err != nil {
			return nil, NewStorageError("sqlite", "scan_violation", err)
		}
		violations = append(violations, &v)
	}
	if err := rows.Err(); err != nil {
		return nil, NewStorageError("sqlite", "list_violations", err)
	}
	return violations, nil
}

// DeleteRunsBefore implements Storage. Violations are deleted explicitly;
// PRAGMA foreign_keys is per-connection and the pool does not guarantee the
// cascade is armed.
func (s *SQLiteStorage) DeleteRunsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, NewStorageError("sqlite", "begin_tx", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM violations WHERE run_id IN (SELECT id FROM runs WHERE started_at < ?)`, cutoff,
	); err != nil {
		return 0, NewStorageError("sqlite", "delete_violations", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE started_at < ?`, cutoff)
	if err != nil {
		return 0, NewStorageError("sqlite", "delete_runs", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, NewStorageError("sqlite", "rows_affected", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, NewStorageError("sqlite", "commit", err)
	}
	return deleted, nil
}

// Close implements Storage.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// rowScanner abstracts sql.Row and sql.Rows for scanRun.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var run Run
	var completedAt sql.NullTime
	if err := row.Scan(&run.ID, &run.RuleRoot, &run.StartedAt, &completedAt,
		&run.RecordCount, &run.ViolationCount); err != nil {
		return nil, err
	}
	if completedAt.Valid {
		run.CompletedAt = completedAt.Time
	}
	return &run, nil
}
