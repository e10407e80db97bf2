// Package eval defines the embedded relational evaluator contract.
//
// An Evaluator opens Sessions; a Session is one isolated in-memory database
// that tables are loaded into and SQL is run against. The step executor opens
// one session per query execution and closes it when the run ends, so no
// state leaks between runs. Concrete evaluator implementations live in
// pkg/evals/ subdirectories and register themselves via the registry.
package eval

import (
	"context"

	"github.com/querylens-io/querylens/pkg/relation"
)

// Config selects and parameterizes an evaluator.
type Config struct {
	// Engine is the registered evaluator name, e.g. "sqlite" or "duckdb".
	Engine string `koanf:"engine" json:"engine"`

	// Path is the database location. Empty means in-memory, which is what
	// query execution always uses.
	Path string `koanf:"path" json:"path,omitempty"`

	// Params holds engine-specific settings, decoded by the evaluator.
	Params map[string]any `koanf:"params" json:"params,omitempty"`
}

// Evaluator opens evaluation sessions.
type Evaluator interface {
	// Name returns the registered evaluator name.
	Name() string

	// Open creates a fresh session. Every call returns an isolated database.
	Open(ctx context.Context, cfg Config) (Session, error)
}

// Session is one isolated database instance.
type Session interface {
	// Load materializes the relation as a table, replacing any table of the
	// same name. Column types are inferred from the row values.
	Load(ctx context.Context, name string, rel relation.Relation) error

	// Exec runs a statement that returns no rows.
	Exec(ctx context.Context, sql string) error

	// Query runs a SELECT and returns the result as a relation. Duplicate
	// result column names arrive deduplicated with numeric suffixes.
	Query(ctx context.Context, sql string) (relation.Relation, error)

	// Close releases the session and its database.
	Close() error
}
