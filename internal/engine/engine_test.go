package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/querylens-io/querylens/internal/store"
	"github.com/querylens-io/querylens/pkg/eval"
	"github.com/querylens-io/querylens/pkg/relation"
	"github.com/querylens-io/querylens/pkg/steps"
)

func TestNewRequiresStore(t *testing.T) {
	_, err := New(Config{Evaluator: eval.Config{Engine: "sqlite"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "table store")
}

func TestNewUnknownEvaluator(t *testing.T) {
	_, err := New(Config{Store: store.New(), Evaluator: eval.Config{Engine: "no_such"}})
	var uerr *eval.UnknownEvaluatorError
	require.ErrorAs(t, err, &uerr)
}

func TestCompileMemoized(t *testing.T) {
	e := newTestEngine(t, nil)

	a, err := e.Compile("SELECT * FROM customer")
	require.NoError(t, err)
	b, err := e.Compile("SELECT * FROM customer;")
	require.NoError(t, err)
	assert.Same(t, a, b, "normalized text should hit the cache")
}

func TestCompileErrorNotCached(t *testing.T) {
	e := newTestEngine(t, nil)
	_, err := e.Compile("not sql")
	var perr *steps.ParseError
	require.ErrorAs(t, err, &perr)

	_, err = e.Compile("not sql")
	require.ErrorAs(t, err, &perr)
}

func TestExecuteStepsParseError(t *testing.T) {
	e := newTestEngine(t, nil)
	_, err := e.ExecuteSteps(context.Background(), "SELECT a FROM t UNION ALL SELECT a FROM u")
	var perr *steps.ParseError
	require.ErrorAs(t, err, &perr)
}

func TestExecuteStepsTableNotFound(t *testing.T) {
	e := newTestEngine(t, map[string]relation.Relation{
		"budget": rel([]string{"bcode"}, relation.Row{"bcode": int64(1)}),
	})

	res, err := e.ExecuteSteps(context.Background(), "SELECT * FROM customer")
	var nf *store.TableNotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, []string{"budget"}, nf.Available)
	// The failing step's record is still produced.
	require.NotNil(t, res)
	require.NotEmpty(t, res.Steps)
	assert.Contains(t, res.Steps[0].Explanation, "not found")
}

func TestUnionColumnCountMismatch(t *testing.T) {
	e := newTestEngine(t, map[string]relation.Relation{
		"a": rel([]string{"x", "y"}, relation.Row{"x": int64(1), "y": int64(2)}),
		"b": rel([]string{"x"}, relation.Row{"x": int64(1)}),
	})

	_, err := e.ExecuteSteps(context.Background(), "SELECT x, y FROM a UNION SELECT x FROM b")
	var mm *ColumnCountMismatchError
	require.ErrorAs(t, err, &mm)
	assert.Equal(t, 2, mm.Left)
	assert.Equal(t, 1, mm.Right)
}

func TestJoinNaturalFallback(t *testing.T) {
	e := newTestEngine(t, map[string]relation.Relation{
		"orders": rel([]string{"ono", "cno"},
			relation.Row{"ono": int64(1), "cno": int64(7)},
		),
		"customer": rel([]string{"cno", "cname"},
			relation.Row{"cno": int64(7), "cname": "Alma"},
		),
	})

	// The ON condition is not a single qualified equality, so the executor
	// falls back to the common column.
	res, err := e.ExecuteSteps(context.Background(),
		"SELECT * FROM orders o JOIN customer c ON o.cno = c.cno AND 1 = 1")
	require.NoError(t, err)

	join := recordOfKind(t, res, steps.StepJoin)
	assert.Contains(t, join.Explanation, "common column cno")
	require.NotNil(t, join.OutputTable)
	assert.Equal(t, 1, join.OutputTable.RowCount)
}

func TestJoinNoCommonColumns(t *testing.T) {
	e := newTestEngine(t, map[string]relation.Relation{
		"a": rel([]string{"x"}, relation.Row{"x": int64(1)}),
		"b": rel([]string{"y"}, relation.Row{"y": int64(2)}),
	})

	res, err := e.ExecuteSteps(context.Background(), "SELECT * FROM a JOIN b ON garbage")
	require.NoError(t, err, "join resolution failure is a per-step error in steps mode")

	join := recordOfKind(t, res, steps.StepJoin)
	assert.Nil(t, join.OutputTable)
	assert.Contains(t, join.Explanation, "cannot resolve join")

	// Downstream steps report no data instead of aborting.
	sel := recordOfKind(t, res, steps.StepSelect)
	assert.Equal(t, "No data to select from", sel.Explanation)
}

func TestOrderByUnsortedFallback(t *testing.T) {
	e := newTestEngine(t, map[string]relation.Relation{
		"t": rel([]string{"a"},
			relation.Row{"a": int64(2)},
			relation.Row{"a": int64(1)},
		),
	})

	res, err := e.ExecuteSteps(context.Background(), "SELECT a FROM t ORDER BY missing_col")
	require.NoError(t, err)

	ob := recordOfKind(t, res, steps.StepOrderBy)
	require.NotNil(t, ob.OutputTable, "fallback returns the unsorted input")
	assert.Equal(t, 2, ob.OutputTable.RowCount)
	assert.Contains(t, ob.Explanation, "unsorted")
}

func TestOrderByDirections(t *testing.T) {
	e := newTestEngine(t, map[string]relation.Relation{
		"t": rel([]string{"a"},
			relation.Row{"a": int64(2)},
			relation.Row{"a": int64(1)},
			relation.Row{"a": int64(3)},
		),
	})

	res, err := e.ExecuteSteps(context.Background(), "SELECT a FROM t ORDER BY a DESC")
	require.NoError(t, err)

	ob := recordOfKind(t, res, steps.StepOrderBy)
	require.NotNil(t, ob.OutputTable)
	require.Len(t, ob.OutputTable.Data, 3)
	assert.Equal(t, int64(3), ob.OutputTable.Data[0]["a"])
	assert.Equal(t, int64(1), ob.OutputTable.Data[2]["a"])
}

func TestSelectDropsUnresolved(t *testing.T) {
	e := newTestEngine(t, map[string]relation.Relation{
		"t": rel([]string{"a", "b"}, relation.Row{"a": int64(1), "b": int64(2)}),
	})

	res, err := e.ExecuteSteps(context.Background(), "SELECT a, nonexistent FROM t")
	require.NoError(t, err)

	sel := recordOfKind(t, res, steps.StepSelect)
	require.NotNil(t, sel.OutputTable)
	assert.Equal(t, []string{"a"}, sel.OutputTable.Columns)
	assert.Contains(t, sel.Explanation, "nonexistent")
}

func TestEvaluationErrorStillYieldsRecord(t *testing.T) {
	e := newTestEngine(t, map[string]relation.Relation{
		"t": rel([]string{"a"}, relation.Row{"a": int64(1)}),
	})

	res, err := e.ExecuteSteps(context.Background(), "SELECT a FROM t WHERE nosuchfunc(a) > 1")
	require.NoError(t, err, "evaluator rejection is recorded per step, not fatal")

	where := recordOfKind(t, res, steps.StepWhere)
	assert.Contains(t, where.Explanation, "evaluation failed")
	require.NotNil(t, where.OutputTable, "failed filter still shows an empty relation")
	assert.Equal(t, 0, where.OutputTable.RowCount)
	assert.Equal(t, []string{"a"}, where.OutputTable.Columns)
}

func TestExecuteQueryFinalMode(t *testing.T) {
	e := newTestEngine(t, map[string]relation.Relation{
		"t": rel([]string{"a", "b"},
			relation.Row{"a": int64(1), "b": "x"},
			relation.Row{"a": int64(2), "b": "y"},
		),
	})

	res, err := e.ExecuteQuery(context.Background(), "SELECT a FROM t WHERE a > 1;")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, res.Columns)
	assert.Equal(t, 1, res.RowCount)
	assert.Equal(t, int64(2), res.Rows[0]["a"])
}

func TestExecuteQueryLastStatementOnly(t *testing.T) {
	e := newTestEngine(t, map[string]relation.Relation{
		"t": rel([]string{"a"}, relation.Row{"a": int64(1)}),
		"u": rel([]string{"b"}, relation.Row{"b": int64(9)}),
	})

	res, err := e.ExecuteQuery(context.Background(), "SELECT a FROM t; SELECT b FROM u;")
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, res.Columns)
}

func TestExecuteQueryEvaluationError(t *testing.T) {
	e := newTestEngine(t, map[string]relation.Relation{
		"t": rel([]string{"a"}, relation.Row{"a": int64(1)}),
	})

	_, err := e.ExecuteQuery(context.Background(), "SELECT nosuch FROM t")
	var eerr *EvaluationError
	require.ErrorAs(t, err, &eerr)
	assert.True(t, errors.Is(err, eerr.Err))
}

func TestConcurrentExecutions(t *testing.T) {
	e := newTestEngine(t, map[string]relation.Relation{
		"t": rel([]string{"a"},
			relation.Row{"a": int64(1)},
			relation.Row{"a": int64(2)},
		),
	})

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := e.ExecuteSteps(context.Background(), "SELECT a FROM t WHERE a > 1")
			assert.NoError(t, err)
			if res != nil && res.FinalResult != nil {
				assert.Equal(t, 1, res.FinalResult.RowCount)
			}
		}()
	}
	wg.Wait()
}

type memRecorder struct {
	mu      sync.Mutex
	entries []RecordedQuery
}

func (m *memRecorder) Record(_ context.Context, entry RecordedQuery) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

func TestHistoryRecording(t *testing.T) {
	rec := &memRecorder{}
	s := store.New()
	s.Put("t", rel([]string{"a"}, relation.Row{"a": int64(1)}))
	e, err := New(Config{Store: s, Evaluator: eval.Config{Engine: "sqlite"}, History: rec})
	require.NoError(t, err)

	_, err = e.ExecuteQuery(context.Background(), "SELECT a FROM t")
	require.NoError(t, err)
	_, _ = e.ExecuteSteps(context.Background(), "SELECT a FROM t")

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.entries, 2)
	assert.Equal(t, "final", rec.entries[0].Mode)
	assert.Equal(t, "sqlite", rec.entries[0].Evaluator)
	assert.True(t, rec.entries[0].Succeeded)
	assert.Empty(t, rec.entries[0].ErrorKind)
	assert.Equal(t, 1, rec.entries[0].RowCount)
	assert.Equal(t, "steps", rec.entries[1].Mode)
	assert.Greater(t, rec.entries[1].Duration, time.Duration(0))
}

func TestErrorKindClassification(t *testing.T) {
	assert.Empty(t, ErrorKind(nil))
	assert.Equal(t, "parse", ErrorKind(&steps.ParseError{Message: "x"}))
	assert.Equal(t, "parse", ErrorKind(&ColumnCountMismatchError{Left: 2, Right: 1}))
	assert.Equal(t, "table_not_found", ErrorKind(&store.TableNotFoundError{Table: "t"}))
	assert.Equal(t, "evaluation", ErrorKind(&EvaluationError{Err: errors.New("boom")}))
	assert.Equal(t, "internal", ErrorKind(errors.New("anything else")))
}

func TestFinalConsistencyAcrossModes(t *testing.T) {
	e := newTestEngine(t, map[string]relation.Relation{
		"workson": rel([]string{"essn", "pno", "hours"},
			relation.Row{"essn": int64(1), "pno": int64(1), "hours": 32.5},
			relation.Row{"essn": int64(2), "pno": int64(1), "hours": 7.5},
			relation.Row{"essn": int64(3), "pno": int64(2), "hours": 40.0},
		),
	})

	query := "SELECT essn, pno FROM workson WHERE hours > 10"
	stepsRes, err := e.ExecuteSteps(context.Background(), query)
	require.NoError(t, err)
	finalRes, err := e.ExecuteQuery(context.Background(), query)
	require.NoError(t, err)

	require.NotNil(t, stepsRes.FinalResult)
	assert.ElementsMatch(t, finalRes.Rows, stepsRes.FinalResult.Rows)

	last := lastRecord(t, stepsRes)
	require.NotNil(t, last.OutputTable)
	assert.ElementsMatch(t, finalRes.Rows, last.OutputTable.Data)
	assert.ElementsMatch(t, finalRes.Columns, last.OutputTable.Columns)
}

func TestDedupRows(t *testing.T) {
	out := dedupRows(rel([]string{"a", "b"},
		relation.Row{"a": int64(1), "b": "x"},
		relation.Row{"a": int64(1), "b": "x"},
		relation.Row{"a": int64(1), "b": "y"},
		relation.Row{"a": nil, "b": "x"},
		relation.Row{"a": nil, "b": "x"},
	))
	assert.Len(t, out.Rows, 3)
}

func TestSplitSortItem(t *testing.T) {
	tests := []struct {
		in   string
		ref  string
		dir  string
	}{
		{"a", "a", ""},
		{"a ASC", "a", "ASC"},
		{"c.cname DESC", "c.cname", "DESC"},
		{"a desc", "a", "DESC"},
	}
	for _, tt := range tests {
		ref, dir := splitSortItem(tt.in)
		assert.Equal(t, tt.ref, ref, tt.in)
		assert.Equal(t, tt.dir, dir, tt.in)
	}
}
