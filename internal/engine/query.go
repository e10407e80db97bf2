package engine

import (
	"context"
	"time"

	"github.com/querylens-io/querylens/pkg/eval"
	"github.com/querylens-io/querylens/pkg/relation"
	"github.com/querylens-io/querylens/pkg/steps"
)

// QueryResult is the final-mode response shape.
type QueryResult struct {
	Columns  []string       `json:"columns"`
	Rows     []relation.Row `json:"rows"`
	RowCount int            `json:"row_count"`
}

// ExecuteQuery runs the whole statement once against all loaded tables and
// returns the authoritative result. Only the last semicolon-delimited
// statement of a multi-statement input is executed. Any evaluation failure
// is fatal here; there is no per-step recovery in final mode.
func (e *Engine) ExecuteQuery(ctx context.Context, query string) (*QueryResult, error) {
	start := time.Now()
	result, err := e.executeQuery(ctx, query)

	entry := RecordedQuery{
		Query:     query,
		Mode:      "final",
		Evaluator: e.evaluator.Name(),
		Succeeded: err == nil,
		ErrorKind: ErrorKind(err),
		Duration:  time.Since(start),
	}
	if result != nil {
		entry.RowCount = result.RowCount
	}
	e.record(ctx, entry)
	return result, err
}

func (e *Engine) executeQuery(ctx context.Context, query string) (*QueryResult, error) {
	sess, err := e.openSession(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = sess.Close() }()

	return execFinal(ctx, sess, steps.Normalize(query))
}

// execFinal runs one normalized statement on an already-staged session.
func execFinal(ctx context.Context, sess eval.Session, stmt string) (*QueryResult, error) {
	rel, err := sess.Query(ctx, steps.RenderQuery(stmt))
	if err != nil {
		return nil, &EvaluationError{Err: err}
	}
	rel = rel.Sanitized()
	return &QueryResult{Columns: rel.Columns, Rows: rel.Rows, RowCount: rel.RowCount()}, nil
}
