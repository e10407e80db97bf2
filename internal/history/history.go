// Package history persists a log of executed queries in a local SQLite
// database. Recording is advisory: the engine logs and ignores failures, so
// a broken history file never blocks query execution.
package history

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // database/sql driver "sqlite"

	"github.com/querylens-io/querylens/internal/engine"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Entry is one recorded query execution.
type Entry struct {
	ID         string    `json:"id"`
	Query      string    `json:"query"`
	Mode       string    `json:"mode"`
	Evaluator  string    `json:"evaluator"`
	Status     string    `json:"status"` // "ok" or "error"
	ErrorKind  string    `json:"error_kind,omitempty"`
	DurationMS int64     `json:"duration_ms"`
	RowCount   int       `json:"row_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// Store is the SQLite-backed history log. It implements engine.Recorder.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ engine.Recorder = (*Store)(nil)

// Open opens (or creates) the history database at path and applies pending
// migrations. Use ":memory:" for an ephemeral log.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	// The history file is small and single-writer; one connection avoids
	// in-memory databases vanishing and file locking contention alike.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping history database: %w", err)
	}

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	logger.Debug("history database ready", "path", path)
	return &Store{db: db, logger: logger}, nil
}

func migrate(db *sql.DB) error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect("sqlite"); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Record implements engine.Recorder.
func (s *Store) Record(ctx context.Context, entry engine.RecordedQuery) error {
	status := "ok"
	if !entry.Succeeded {
		status = "error"
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO query_history (id, query, mode, evaluator, status, error_kind, duration_ms, row_count, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.New().String(),
		entry.Query,
		entry.Mode,
		entry.Evaluator,
		status,
		entry.ErrorKind,
		entry.Duration.Milliseconds(),
		entry.RowCount,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to record query: %w", err)
	}
	return nil
}

// List returns the most recent entries, newest first. A non-positive limit
// defaults to 50.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, query, mode, evaluator, status, error_kind, duration_ms, row_count, created_at
		 FROM query_history ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var created string
		if err := rows.Scan(&e.ID, &e.Query, &e.Mode, &e.Evaluator, &e.Status, &e.ErrorKind,
			&e.DurationMS, &e.RowCount, &created); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		if t, perr := time.Parse(time.RFC3339Nano, created); perr == nil {
			e.CreatedAt = t
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Clear removes every entry.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM query_history`); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	return nil
}

// Len returns the number of stored entries.
func (s *Store) Len(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM query_history`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count history: %w", err)
	}
	return n, nil
}
