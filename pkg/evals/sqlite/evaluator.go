// Package sqlite provides the default embedded evaluator, backed by the
// pure-Go SQLite driver. No cgo, so it works everywhere the binary runs.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/go-viper/mapstructure/v2"
	_ "modernc.org/sqlite" // sqlite driver

	"github.com/querylens-io/querylens/pkg/eval"
)

// Params holds SQLite-specific configuration.
// Parsed from eval.Config.Params using mapstructure.
type Params struct {
	// Pragmas applied at session open (e.g. case_sensitive_like).
	Pragmas map[string]string `mapstructure:"pragmas"`
}

// Evaluator implements eval.Evaluator for SQLite.
type Evaluator struct {
	logger *slog.Logger
}

// New creates a new SQLite evaluator instance.
func New(logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Evaluator{logger: logger}
}

// Name returns the registered evaluator name.
func (e *Evaluator) Name() string { return "sqlite" }

// Open creates a fresh session. The empty path opens an in-memory database
// private to the session.
func (e *Evaluator) Open(ctx context.Context, cfg eval.Config) (eval.Session, error) {
	var params Params
	if cfg.Params != nil {
		if err := mapstructure.Decode(cfg.Params, &params); err != nil {
			return nil, fmt.Errorf("invalid sqlite params: %w", err)
		}
	}

	path := cfg.Path
	if path == "" {
		path = ":memory:"
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping sqlite: %w", err)
	}
	// In-memory databases vanish if the pool opens a second connection.
	db.SetMaxOpenConns(1)

	s := &session{BaseSQLSession: eval.BaseSQLSession{DB: db, Logger: e.logger}}
	for name, value := range params.Pragmas {
		if err := s.Exec(ctx, fmt.Sprintf("PRAGMA %s = %s", name, value)); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("failed to apply pragma %s: %w", name, err)
		}
	}
	return s, nil
}

type session struct {
	eval.BaseSQLSession
}

var _ eval.Evaluator = (*Evaluator)(nil)
var _ eval.Session = (*session)(nil)
