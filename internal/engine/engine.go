// Package engine drives query execution: it compiles submissions into step
// pipelines, runs them incrementally for visualization, and runs the whole
// statement once as the authoritative final answer.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/querylens-io/querylens/internal/store"
	"github.com/querylens-io/querylens/pkg/eval"
	"github.com/querylens-io/querylens/pkg/steps"
)

// Recorder receives a record of each executed query. Implementations must
// tolerate concurrent calls; recording failures are non-fatal.
type Recorder interface {
	Record(ctx context.Context, entry RecordedQuery) error
}

// RecordedQuery describes one finished execution for the history log.
type RecordedQuery struct {
	Query     string
	Mode      string
	Evaluator string
	Succeeded bool
	ErrorKind string
	RowCount  int
	Duration  time.Duration
}

// ErrorKind classifies an execution error for history records and API
// responses: "parse", "table_not_found", "evaluation", or "internal".
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	var perr *steps.ParseError
	var nf *store.TableNotFoundError
	var eerr *EvaluationError
	var mm *ColumnCountMismatchError
	switch {
	case errors.As(err, &perr), errors.As(err, &mm):
		return "parse"
	case errors.As(err, &nf):
		return "table_not_found"
	case errors.As(err, &eerr):
		return "evaluation"
	default:
		return "internal"
	}
}

// Config holds engine configuration.
type Config struct {
	// Store is the table store queries run against.
	Store *store.Store
	// Evaluator selects and parameterizes the embedded evaluator.
	Evaluator eval.Config
	// History receives execution records (optional).
	History Recorder
	// CacheTTL bounds how long compiled pipelines are memoized.
	// Zero uses a default of five minutes.
	CacheTTL time.Duration
	// PreviewRows caps the rows embedded in step visualization records.
	// Zero uses the default of 50.
	PreviewRows int
	// Logger is the structured logger (optional, uses discard if nil).
	Logger *slog.Logger
}

// Engine executes queries against the table store.
type Engine struct {
	store     *store.Store
	evaluator eval.Evaluator
	evalCfg   eval.Config
	history   Recorder
	cache     *pipelineCache
	preview   int
	logger    *slog.Logger
}

// New creates an engine. The configured evaluator engine must be registered.
func New(cfg Config) (*Engine, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("engine requires a table store")
	}

	evaluator, err := eval.New(cfg.Evaluator, logger)
	if err != nil {
		return nil, err
	}

	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	preview := cfg.PreviewRows
	if preview <= 0 {
		preview = 50
	}

	logger.Debug("initializing engine", "evaluator", evaluator.Name(), "cache_ttl", ttl)

	return &Engine{
		store:     cfg.Store,
		evaluator: evaluator,
		evalCfg:   cfg.Evaluator,
		history:   cfg.History,
		cache:     newPipelineCache(ttl),
		preview:   preview,
		logger:    logger,
	}, nil
}

// Store returns the table store the engine reads.
func (e *Engine) Store() *store.Store { return e.store }

// EvaluatorName returns the name of the configured evaluator.
func (e *Engine) EvaluatorName() string { return e.evaluator.Name() }

// Compile compiles the submission into a step pipeline, memoizing by
// normalized query text. Compilation errors are not cached.
func (e *Engine) Compile(query string) (*steps.Pipeline, error) {
	norm := steps.Normalize(query)
	if p, ok := e.cache.get(norm); ok {
		return p, nil
	}
	p, err := steps.Compile(norm)
	if err != nil {
		return nil, err
	}
	e.cache.put(norm, p)
	return p, nil
}

// openSession opens a fresh evaluator session with every stored table
// loaded, so subqueries and UNION arms can reference any table by name.
// The caller owns the session and must close it.
func (e *Engine) openSession(ctx context.Context) (eval.Session, error) {
	sess, err := e.evaluator.Open(ctx, e.evalCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open evaluation session: %w", err)
	}
	for name, rel := range e.store.Snapshot() {
		if err := sess.Load(ctx, name, rel); err != nil {
			_ = sess.Close()
			return nil, fmt.Errorf("failed to stage table %q: %w", name, err)
		}
	}
	return sess, nil
}

func (e *Engine) record(ctx context.Context, entry RecordedQuery) {
	if e.history == nil {
		return
	}
	if err := e.history.Record(ctx, entry); err != nil {
		e.logger.Warn("failed to record query history", "error", err)
	}
}
