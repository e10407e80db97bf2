package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/querylens-io/querylens/pkg/eval"
	"github.com/querylens-io/querylens/pkg/relation"
	"github.com/querylens-io/querylens/pkg/steps"
)

// Reserved session table names for staging intermediate relations. Quoted on
// every use, so they cannot collide with SQL keywords; the leading underscore
// keeps them clear of user table names.
const (
	stageInput     = "_step_input"
	stageJoinLeft  = "_join_left"
	stageJoinRight = "_join_right"
)

// TableData is one relation prepared for visualization: full column list and
// row count, but rows capped at the preview limit and sanitized for JSON.
type TableData struct {
	Name     string         `json:"name"`
	Columns  []string       `json:"columns"`
	Data     []relation.Row `json:"data"`
	RowCount int            `json:"row_count"`
}

// StepRecord is the visualization record one executed step yields. A record
// is always produced, even when the step fails; failures carry the error
// text as the explanation and no output table.
type StepRecord struct {
	StepNumber      int            `json:"step_number"`
	StepType        steps.StepKind `json:"step_type"`
	Side            steps.Side     `json:"side,omitempty"`
	InputTables     []TableData    `json:"input_tables"`
	OutputTable     *TableData     `json:"output_table"`
	HighlightedCols []string       `json:"highlighted_cols"`
	Explanation     string         `json:"explanation"`
	RowsBefore      int            `json:"rows_before"`
	RowsAfter       int            `json:"rows_after"`
}

// StepsResult is the full step-mode response: every step's record plus the
// authoritative whole-query result. FinalResult is nil when the whole-query
// execution fails; the per-step records still describe how far the pipeline
// got.
type StepsResult struct {
	Steps       []StepRecord `json:"steps"`
	FinalResult *QueryResult `json:"final_result"`
}

// ExecuteSteps compiles the query and runs it step by step, producing one
// visualization record per step. Per-step evaluation and join-resolution
// failures are recorded and the pipeline continues; parse errors, missing
// tables, and UNION column-count mismatches abort the run.
func (e *Engine) ExecuteSteps(ctx context.Context, query string) (*StepsResult, error) {
	start := time.Now()
	result, err := e.executeSteps(ctx, query)

	entry := RecordedQuery{
		Query:     query,
		Mode:      "steps",
		Evaluator: e.evaluator.Name(),
		Succeeded: err == nil,
		ErrorKind: ErrorKind(err),
		Duration:  time.Since(start),
	}
	if result != nil && result.FinalResult != nil {
		entry.RowCount = result.FinalResult.RowCount
	}
	e.record(ctx, entry)
	return result, err
}

func (e *Engine) executeSteps(ctx context.Context, query string) (*StepsResult, error) {
	pipeline, err := e.Compile(query)
	if err != nil {
		return nil, err
	}

	sess, err := e.openSession(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = sess.Close() }()

	r := &runner{
		eng:       e,
		sess:      sess,
		leftNames: make(map[string]bool),
		arms:      make(map[steps.Side]relation.Relation),
	}

	records := make([]StepRecord, 0, len(pipeline.Steps))
	for _, st := range pipeline.Steps {
		rec, err := r.run(ctx, st)
		records = append(records, rec)
		if err != nil {
			return &StepsResult{Steps: records}, err
		}
	}

	result := &StepsResult{Steps: records}
	if final, err := execFinal(ctx, sess, pipeline.Query); err != nil {
		e.logger.Debug("whole-query execution failed", "error", err)
	} else {
		result.FinalResult = final
	}
	return result, nil
}

// runner threads the mutable current relation through the steps of one
// execution. current == nil means no relation is live, either before the
// first From or after a failed step.
type runner struct {
	eng  *Engine
	sess eval.Session

	current     *relation.Relation
	currentName string

	// leftNames holds lower-cased table names and aliases accumulated on
	// the left side of the join chain.
	leftNames map[string]bool

	// arms holds each UNION arm's full result, produced by its UnionInput
	// step and consumed by the final Union step.
	arms map[steps.Side]relation.Relation
}

func (r *runner) run(ctx context.Context, st steps.Step) (StepRecord, error) {
	rec := StepRecord{
		StepNumber:      st.Number,
		StepType:        st.Kind,
		Side:            st.Side,
		InputTables:     []TableData{},
		HighlightedCols: []string{},
		Explanation:     st.Explanation,
	}

	var err error
	switch st.Kind {
	case steps.StepFrom:
		err = r.runFrom(ctx, st, &rec)
	case steps.StepJoin:
		err = r.runJoin(ctx, st, &rec)
	case steps.StepWhere:
		r.runWhere(ctx, st, &rec)
	case steps.StepGroupBy:
		r.runGroupBy(ctx, st, &rec)
	case steps.StepHaving:
		r.runHaving(ctx, st, &rec)
	case steps.StepSelect:
		r.runSelect(st, &rec)
	case steps.StepOrderBy:
		r.runOrderBy(ctx, st, &rec)
	case steps.StepUnionInput:
		r.runUnionInput(ctx, st, &rec)
	case steps.StepUnion:
		err = r.runUnion(ctx, st, &rec)
	default:
		rec.Explanation = fmt.Sprintf("unsupported step type %s", st.Kind)
	}

	if len(rec.InputTables) > 0 {
		rec.RowsBefore = rec.InputTables[0].RowCount
	}
	if rec.OutputTable != nil {
		rec.RowsAfter = rec.OutputTable.RowCount
	}
	return rec, err
}

func (r *runner) tableData(name string, rel relation.Relation) TableData {
	head := rel.Head(r.eng.preview).Sanitized()
	return TableData{Name: name, Columns: rel.Columns, Data: head.Rows, RowCount: rel.RowCount()}
}

// setOutput publishes rel as the step's output and the new current relation.
func (r *runner) setOutput(rec *StepRecord, name string, rel relation.Relation) {
	out := r.tableData(name, rel)
	rec.OutputTable = &out
	r.current = &rel
	r.currentName = name
}

// fail records a step failure. The pipeline continues, but the current
// relation is cleared so later steps report "no data".
func (r *runner) fail(rec *StepRecord, msg string) {
	rec.Explanation = msg
	r.current = nil
}

func (r *runner) runFrom(ctx context.Context, st steps.Step, rec *StepRecord) error {
	var first *relation.Relation
	firstName := ""
	for _, ref := range st.Tables {
		rel, err := r.eng.store.Get(ref.Name)
		if err != nil {
			rec.Explanation = err.Error()
			r.current = nil
			return err
		}
		display, _ := r.eng.store.Name(ref.Name)
		rec.InputTables = append(rec.InputTables, r.tableData(display, rel))

		r.leftNames[strings.ToLower(ref.Name)] = true
		if ref.Alias != "" {
			r.leftNames[strings.ToLower(ref.Alias)] = true
		}
		if first == nil {
			f := rel
			first = &f
			firstName = display
		}
	}
	if first == nil {
		rec.Explanation = "FROM clause names no table"
		return nil
	}

	r.setOutput(rec, firstName, *first)
	rec.Explanation = fmt.Sprintf("Load table %s (%d rows)", firstName, first.RowCount())
	return nil
}

func (r *runner) runJoin(ctx context.Context, st steps.Step, rec *StepRecord) error {
	if r.current == nil {
		rec.Explanation = "No data to join"
		return nil
	}
	left := *r.current

	right, err := r.eng.store.Get(st.RightTable)
	if err != nil {
		rec.Explanation = err.Error()
		r.current = nil
		return err
	}
	rightName, _ := r.eng.store.Name(st.RightTable)
	rec.InputTables = append(rec.InputTables,
		r.tableData(r.currentName, left),
		r.tableData(rightName, right),
	)

	leftCol, rightCol, fallback, rerr := r.resolveJoinKeys(st, left, right)
	if rerr != nil {
		r.fail(rec, rerr.Error())
		return nil
	}

	if err := r.sess.Load(ctx, stageJoinLeft, left); err != nil {
		r.fail(rec, err.Error())
		return nil
	}
	if err := r.sess.Load(ctx, stageJoinRight, right); err != nil {
		r.fail(rec, err.Error())
		return nil
	}

	sql := fmt.Sprintf(`SELECT * FROM %s AS l %s JOIN %s AS r ON l.%s = r.%s`,
		eval.QuoteIdent(stageJoinLeft), joinKindSQL(st.JoinKind), eval.QuoteIdent(stageJoinRight),
		eval.QuoteIdent(leftCol), eval.QuoteIdent(rightCol))

	joined, err := r.sess.Query(ctx, sql)
	if err != nil {
		r.fail(rec, (&EvaluationError{Step: st.Number, SQL: sql, Err: err}).Error())
		return nil
	}

	// The right side joins the left pool for later ON-condition resolution.
	r.leftNames[strings.ToLower(st.RightTable)] = true
	if st.RightAlias != "" {
		r.leftNames[strings.ToLower(st.RightAlias)] = true
	}

	rec.HighlightedCols = highlightCols(leftCol, rightCol)
	r.setOutput(rec, "joined result", joined)
	if fallback {
		rec.Explanation = fmt.Sprintf("Could not resolve join condition %q; joined with %s on common column %s (%d rows)",
			st.Condition, rightName, leftCol, joined.RowCount())
	} else {
		rec.Explanation = fmt.Sprintf("%s JOIN with %s on %s = %s (%d rows)",
			st.JoinKind, rightName, leftCol, rightCol, joined.RowCount())
	}
	return nil
}

// resolveJoinKeys resolves the ON condition into physical key columns on
// both sides, falling back to a natural join on the first common column when
// the condition cannot be used. fallback reports which path was taken.
func (r *runner) resolveJoinKeys(st steps.Step, left, right relation.Relation) (leftCol, rightCol string, fallback bool, err error) {
	if st.Condition != "" {
		keys, rerr := steps.ResolveJoinCondition(st.Condition, r.leftNames, st.RightTable, st.RightAlias)
		if rerr == nil {
			lcol, lok := steps.ResolveColumn(left.Columns, keys.LeftQualifier+"."+keys.LeftColumn)
			rcol, rok := steps.ResolveColumn(right.Columns, keys.RightColumn)
			if lok && rok {
				return lcol, rcol, false, nil
			}
		}
	}

	common := steps.CommonColumns(left.Columns, right.Columns)
	if len(common) == 0 {
		return "", "", false, &steps.JoinResolutionError{
			Condition: st.Condition,
			Reason:    fmt.Sprintf("no common columns between current result and %s", st.RightTable),
		}
	}
	lcol := common[0]
	rcol, ok := steps.ResolveColumn(right.Columns, relation.BaseName(lcol))
	if !ok {
		rcol = lcol
	}
	return lcol, rcol, true, nil
}

func (r *runner) runWhere(ctx context.Context, st steps.Step, rec *StepRecord) {
	if r.current == nil {
		rec.Explanation = "No data to filter"
		return
	}
	left := *r.current
	rec.InputTables = append(rec.InputTables, r.tableData("Before filter", left))

	cond := steps.RenderConditionWith(st.Condition, func(ref string) (string, bool) {
		return steps.ResolveColumn(left.Columns, ref)
	})
	r.filter(ctx, st, rec, left, cond, "Filter rows where")
}

func (r *runner) runHaving(ctx context.Context, st steps.Step, rec *StepRecord) {
	if r.current == nil {
		rec.Explanation = "No data to filter"
		return
	}
	left := *r.current
	rec.InputTables = append(rec.InputTables, r.tableData("Before filter", left))

	// The incoming relation already carries the aggregate alias columns
	// computed during grouping, so the condition filters on those.
	cond := steps.RewriteAggregates(st.Condition, st.Aggregates)
	cond = steps.RenderConditionWith(cond, func(ref string) (string, bool) {
		return steps.ResolveColumn(left.Columns, ref)
	})
	r.filter(ctx, st, rec, left, cond, "Filter groups where")
}

// filter applies cond to the current relation through the evaluator and
// records before/after counts.
func (r *runner) filter(ctx context.Context, st steps.Step, rec *StepRecord, left relation.Relation, cond, verb string) {
	if err := r.sess.Load(ctx, stageInput, left); err != nil {
		r.fail(rec, err.Error())
		return
	}
	sql := fmt.Sprintf("SELECT * FROM %s WHERE %s", eval.QuoteIdent(stageInput), cond)
	filtered, err := r.sess.Query(ctx, sql)
	if err != nil {
		r.fail(rec, (&EvaluationError{Step: st.Number, SQL: sql, Err: err}).Error())
		empty := r.tableData(r.currentName, relation.Relation{Columns: left.Columns, Rows: []relation.Row{}})
		rec.OutputTable = &empty
		return
	}

	resolved, _ := steps.ResolveColumns(left.Columns, st.Columns)
	rec.HighlightedCols = resolved
	r.setOutput(rec, r.currentName, filtered)
	rec.Explanation = fmt.Sprintf("%s %s: kept %d of %d rows", verb, cond, filtered.RowCount(), left.RowCount())
}

func (r *runner) runGroupBy(ctx context.Context, st steps.Step, rec *StepRecord) {
	if r.current == nil {
		rec.Explanation = "No data to group"
		return
	}
	left := *r.current
	rec.InputTables = append(rec.InputTables, r.tableData("Before grouping", left))

	groupCols, dropped := steps.ResolveColumns(left.Columns, st.Columns)
	if len(groupCols) == 0 {
		r.fail(rec, fmt.Sprintf("Cannot group: none of %v resolve against columns %v", st.Columns, left.Columns))
		return
	}

	quoted := make([]string, len(groupCols))
	for i, c := range groupCols {
		quoted[i] = eval.QuoteIdent(c)
	}

	var sql string
	if len(st.Aggregates) > 0 {
		exprs := make([]string, 0, len(st.Aggregates))
		for _, agg := range st.Aggregates {
			src, ok := steps.ResolveColumn(left.Columns, agg.Column)
			if !ok {
				src = agg.Column
			}
			fn := strings.ToUpper(string(agg.Func))
			if agg.Distinct {
				exprs = append(exprs, fmt.Sprintf("%s(DISTINCT %s) AS %s", fn, eval.QuoteIdent(src), eval.QuoteIdent(agg.Alias)))
			} else {
				exprs = append(exprs, fmt.Sprintf("%s(%s) AS %s", fn, eval.QuoteIdent(src), eval.QuoteIdent(agg.Alias)))
			}
		}
		sql = fmt.Sprintf("SELECT %s, %s FROM %s GROUP BY %s",
			strings.Join(quoted, ", "), strings.Join(exprs, ", "), eval.QuoteIdent(stageInput), strings.Join(quoted, ", "))
	} else {
		sql = fmt.Sprintf("SELECT DISTINCT %s FROM %s", strings.Join(quoted, ", "), eval.QuoteIdent(stageInput))
	}

	if err := r.sess.Load(ctx, stageInput, left); err != nil {
		r.fail(rec, err.Error())
		return
	}
	grouped, err := r.sess.Query(ctx, sql)
	if err != nil {
		r.fail(rec, (&EvaluationError{Step: st.Number, SQL: sql, Err: err}).Error())
		return
	}

	rec.HighlightedCols = grouped.Columns
	r.setOutput(rec, "grouped result", grouped)
	rec.Explanation = fmt.Sprintf("Group by %s (%d groups)", strings.Join(st.Columns, ", "), grouped.RowCount())
	if len(dropped) > 0 {
		rec.Explanation += fmt.Sprintf("; unresolved group columns ignored: %s", strings.Join(dropped, ", "))
	}
}

func (r *runner) runSelect(st steps.Step, rec *StepRecord) {
	if r.current == nil {
		rec.Explanation = "No data to select from"
		return
	}
	left := *r.current
	rec.InputTables = append(rec.InputTables, r.tableData("Before projection", left))

	out := left
	var resolved, dropped []string
	if st.Star {
		resolved = left.Columns
	} else {
		resolved, dropped = steps.ResolveColumns(left.Columns, st.Columns)
		if len(resolved) > 0 {
			out = left.Project(resolved)
		}
	}
	if st.Distinct {
		out = dedupRows(out)
	}

	rec.HighlightedCols = resolved
	r.setOutput(rec, "projected result", out)
	switch {
	case st.Star:
		rec.Explanation = fmt.Sprintf("Select all columns (%d rows)", out.RowCount())
	case len(resolved) == 0:
		rec.Explanation = fmt.Sprintf("Warning: could not resolve selected columns %v; showing all columns", st.Columns)
	default:
		rec.Explanation = fmt.Sprintf("Selected %d columns (%d rows)", len(resolved), out.RowCount())
		if len(dropped) > 0 {
			rec.Explanation += fmt.Sprintf("; unresolved columns dropped: %s", strings.Join(dropped, ", "))
		}
	}
}

func (r *runner) runOrderBy(ctx context.Context, st steps.Step, rec *StepRecord) {
	if r.current == nil {
		rec.Explanation = "No data to sort"
		return
	}
	left := *r.current
	rec.InputTables = append(rec.InputTables, r.tableData("Before sorting", left))

	terms := make([]string, 0, len(st.Columns))
	highlights := make([]string, 0, len(st.Columns))
	for _, item := range st.Columns {
		ref, dir := splitSortItem(item)
		col, ok := steps.ResolveColumn(left.Columns, ref)
		if !ok {
			continue
		}
		highlights = append(highlights, col)
		if dir != "" {
			terms = append(terms, eval.QuoteIdent(col)+" "+dir)
		} else {
			terms = append(terms, eval.QuoteIdent(col))
		}
	}

	// Unsorted passthrough is the deliberate fallback for an unusable sort.
	if len(terms) == 0 {
		r.setOutput(rec, r.currentName, left)
		rec.Explanation = fmt.Sprintf("Could not sort by %s; returning rows unsorted", strings.Join(st.Columns, ", "))
		return
	}

	if err := r.sess.Load(ctx, stageInput, left); err != nil {
		r.fail(rec, err.Error())
		return
	}
	sql := fmt.Sprintf("SELECT * FROM %s ORDER BY %s", eval.QuoteIdent(stageInput), strings.Join(terms, ", "))
	sorted, err := r.sess.Query(ctx, sql)
	if err != nil {
		r.setOutput(rec, r.currentName, left)
		rec.Explanation = fmt.Sprintf("Sort failed (%v); returning rows unsorted", err)
		return
	}

	rec.HighlightedCols = highlights
	r.setOutput(rec, "sorted result", sorted)
	rec.Explanation = fmt.Sprintf("Sort by %s", strings.Join(st.Columns, ", "))
}

func (r *runner) runUnionInput(ctx context.Context, st steps.Step, rec *StepRecord) {
	// Fresh arm: the arm's own From starts a new chain.
	r.current = nil
	r.currentName = ""
	r.leftNames = make(map[string]bool)

	rel, err := r.sess.Query(ctx, steps.RenderQuery(st.Subquery))
	if err != nil {
		rec.Explanation = (&EvaluationError{Step: st.Number, Err: err}).Error()
		return
	}
	r.arms[st.Side] = rel

	out := r.tableData(fmt.Sprintf("%s arm result", st.Side), rel)
	rec.OutputTable = &out
	rec.Explanation = fmt.Sprintf("Evaluate %s arm of UNION (%d rows)", st.Side, rel.RowCount())
}

func (r *runner) runUnion(ctx context.Context, st steps.Step, rec *StepRecord) error {
	left, lok := r.arms[steps.SideLeft]
	right, rok := r.arms[steps.SideRight]
	if !lok {
		var err error
		if left, err = r.sess.Query(ctx, steps.RenderQuery(st.LeftQuery)); err != nil {
			r.fail(rec, (&EvaluationError{Step: st.Number, Err: err}).Error())
			return nil
		}
	}
	if !rok {
		var err error
		if right, err = r.sess.Query(ctx, steps.RenderQuery(st.RightQuery)); err != nil {
			r.fail(rec, (&EvaluationError{Step: st.Number, Err: err}).Error())
			return nil
		}
	}

	rec.InputTables = append(rec.InputTables,
		r.tableData("Query 1 result", left),
		r.tableData("Query 2 result", right),
	)

	if len(left.Columns) != len(right.Columns) {
		err := &ColumnCountMismatchError{Left: len(left.Columns), Right: len(right.Columns)}
		rec.Explanation = err.Error()
		r.current = nil
		return err
	}

	// Right-arm rows adopt the left arm's column names positionally.
	combined := relation.Relation{Columns: left.Columns, Rows: make([]relation.Row, 0, len(left.Rows)+len(right.Rows))}
	combined.Rows = append(combined.Rows, left.Rows...)
	for _, row := range right.Rows {
		mapped := make(relation.Row, len(left.Columns))
		for i, col := range left.Columns {
			mapped[col] = row[right.Columns[i]]
		}
		combined.Rows = append(combined.Rows, mapped)
	}
	combined = dedupRows(combined)

	r.setOutput(rec, "union result", combined)
	rec.Explanation = fmt.Sprintf("Unioned %d rows with %d rows, result: %d rows",
		left.RowCount(), right.RowCount(), combined.RowCount())
	return nil
}

// dedupRows removes exact-duplicate rows, keeping first occurrences in order.
func dedupRows(rel relation.Relation) relation.Relation {
	seen := make(map[uint64]bool, len(rel.Rows))
	out := relation.Relation{Columns: rel.Columns, Rows: make([]relation.Row, 0, len(rel.Rows))}
	for _, row := range rel.Rows {
		fp := rowFingerprint(row, rel.Columns)
		if seen[fp] {
			continue
		}
		seen[fp] = true
		out.Rows = append(out.Rows, row)
	}
	return out
}

// rowFingerprint hashes a row's values in column order.
func rowFingerprint(row relation.Row, columns []string) uint64 {
	d := xxhash.New()
	for _, col := range columns {
		fmt.Fprintf(d, "%v\x1f", row[col])
	}
	return d.Sum64()
}

func highlightCols(cols ...string) []string {
	seen := make(map[string]bool, len(cols))
	out := make([]string, 0, len(cols))
	for _, c := range cols {
		if c != "" && !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	sort.Strings(out)
	return out
}

func joinKindSQL(kind steps.JoinKind) string {
	switch kind {
	case steps.JoinLeft:
		return "LEFT"
	case steps.JoinRight:
		return "RIGHT"
	case steps.JoinFull:
		return "FULL OUTER"
	default:
		return "INNER"
	}
}

func splitSortItem(item string) (ref, dir string) {
	fields := strings.Fields(item)
	if len(fields) == 0 {
		return "", ""
	}
	ref = fields[0]
	if len(fields) > 1 {
		switch strings.ToUpper(fields[len(fields)-1]) {
		case "ASC":
			dir = "ASC"
		case "DESC":
			dir = "DESC"
		}
	}
	return ref, dir
}
