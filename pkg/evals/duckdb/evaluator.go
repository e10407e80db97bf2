// Package duckdb provides a DuckDB-backed evaluator. DuckDB's SQL surface is
// closer to the analytical flavor teaching material tends to use, at the cost
// of a cgo dependency.
package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/go-viper/mapstructure/v2"
	_ "github.com/marcboeker/go-duckdb" // duckdb driver

	"github.com/querylens-io/querylens/pkg/eval"
)

// Params holds DuckDB-specific configuration.
// Parsed from eval.Config.Params using mapstructure.
type Params struct {
	// Extensions to install and load (e.g. "json", "icu").
	Extensions []string `mapstructure:"extensions"`

	// Settings applied at session level (e.g. memory_limit, threads).
	Settings map[string]string `mapstructure:"settings"`
}

// Evaluator implements eval.Evaluator for DuckDB.
type Evaluator struct {
	logger *slog.Logger
}

// New creates a new DuckDB evaluator instance.
func New(logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Evaluator{logger: logger}
}

// Name returns the registered evaluator name.
func (e *Evaluator) Name() string { return "duckdb" }

// Open creates a fresh session. The empty path opens an in-memory database.
func (e *Evaluator) Open(ctx context.Context, cfg eval.Config) (eval.Session, error) {
	var params Params
	if cfg.Params != nil {
		if err := mapstructure.Decode(cfg.Params, &params); err != nil {
			return nil, fmt.Errorf("invalid duckdb params: %w", err)
		}
	}

	db, err := sql.Open("duckdb", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping duckdb: %w", err)
	}

	s := &session{BaseSQLSession: eval.BaseSQLSession{DB: db, Logger: e.logger}}

	for _, ext := range params.Extensions {
		if err := s.Exec(ctx, fmt.Sprintf("INSTALL %s; LOAD %s", ext, ext)); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("failed to load extension %s: %w", ext, err)
		}
	}
	for name, value := range params.Settings {
		if err := s.Exec(ctx, fmt.Sprintf("SET %s = '%s'", name, value)); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("failed to apply setting %s: %w", name, err)
		}
	}
	return s, nil
}

type session struct {
	eval.BaseSQLSession
}

var _ eval.Evaluator = (*Evaluator)(nil)
var _ eval.Session = (*session)(nil)
