package steps

import (
	"fmt"
	"strings"
)

// Compile parses query text into the ordered step pipeline. Compilation is
// pure: the same normalized text always yields a structurally identical
// pipeline, so callers may memoize the result by query text.
func Compile(query string) (*Pipeline, error) {
	text := Normalize(query)
	if text == "" {
		return nil, parseErrorf("empty query")
	}

	toks := Tokenize(text)
	if err := checkBalanced(toks); err != nil {
		return nil, err
	}

	left, right, isUnion, err := splitUnion(text, toks)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{Query: text, Union: isUnion}
	if isUnion {
		leftSteps, err := compileStatement(left, SideLeft)
		if err != nil {
			return nil, err
		}
		rightSteps, err := compileStatement(right, SideRight)
		if err != nil {
			return nil, err
		}
		p.Steps = append(p.Steps, Step{
			Kind:        StepUnionInput,
			Side:        SideLeft,
			Subquery:    left,
			Explanation: "Evaluate first arm of UNION",
		})
		p.Steps = append(p.Steps, leftSteps...)
		p.Steps = append(p.Steps, Step{
			Kind:        StepUnionInput,
			Side:        SideRight,
			Subquery:    right,
			Explanation: "Evaluate second arm of UNION",
		})
		p.Steps = append(p.Steps, rightSteps...)
		p.Steps = append(p.Steps, Step{
			Kind:        StepUnion,
			LeftQuery:   left,
			RightQuery:  right,
			Explanation: "Combine both arms, removing duplicate rows",
		})
	} else {
		p.Steps, err = compileStatement(text, SideNone)
		if err != nil {
			return nil, err
		}
	}

	for i := range p.Steps {
		p.Steps[i].Number = i + 1
	}
	return p, nil
}

// compileStatement compiles one plain SELECT statement into steps in
// canonical order: From, Join*, Where?, GroupBy?, Having?, Select?, OrderBy?.
// Absent clauses produce no step at all, never a placeholder.
func compileStatement(text string, side Side) ([]Step, error) {
	c, err := extractClauses(text)
	if err != nil {
		return nil, err
	}

	aliases := newAliasTable()
	var out []Step

	// FROM
	tables := parseTableRefs(c, c.from)
	if len(tables) == 0 {
		return nil, parseErrorf("FROM clause names no table")
	}
	names := make([]string, len(tables))
	for i, t := range tables {
		names[i] = t.Name
	}
	out = append(out, Step{
		Kind:        StepFrom,
		Side:        side,
		Tables:      tables,
		Explanation: fmt.Sprintf("Load table %s", strings.Join(names, ", ")),
	})

	// JOINs in source order.
	for _, jc := range c.joins {
		js, err := compileJoin(c, jc, side)
		if err != nil {
			return nil, err
		}
		out = append(out, js)
	}

	// WHERE
	if c.where.ok {
		cond := c.text(c.where)
		out = append(out, Step{
			Kind:        StepWhere,
			Side:        side,
			Condition:   cond,
			Columns:     extractColumns(c.tokens(c.where)),
			Explanation: fmt.Sprintf("Filter rows: %s", cond),
		})
	}

	// Aggregates referenced by the SELECT list and HAVING are computed during
	// grouping; assign their aliases now, SELECT list first, so both clauses
	// agree on names.
	var groupAggs []Aggregate
	if c.groupBy.ok {
		if c.selectList.ok {
			groupAggs = append(groupAggs, extractAggregates(c.tokens(c.selectList), aliases)...)
		}
		if c.having.ok {
			for _, agg := range extractAggregates(c.tokens(c.having), aliases) {
				if !containsAggregate(groupAggs, agg) {
					groupAggs = append(groupAggs, agg)
				}
			}
		}
		cols := itemTexts(c, c.groupBy)
		out = append(out, Step{
			Kind:        StepGroupBy,
			Side:        side,
			Columns:     cols,
			Aggregates:  groupAggs,
			Explanation: fmt.Sprintf("Group by: %s", strings.Join(cols, ", ")),
		})
	}

	// HAVING
	if c.having.ok {
		if !c.groupBy.ok {
			return nil, parseErrorf("HAVING without GROUP BY")
		}
		cond := c.text(c.having)
		out = append(out, Step{
			Kind:        StepHaving,
			Side:        side,
			Condition:   cond,
			Columns:     extractColumns(c.tokens(c.having)),
			Aggregates:  extractAggregates(c.tokens(c.having), aliases),
			Explanation: fmt.Sprintf("Filter groups: %s", cond),
		})
	}

	// SELECT projection.
	if c.selectList.ok {
		sel := compileSelect(c, aliases, side)
		out = append(out, sel)
	}

	// ORDER BY
	if c.orderBy.ok {
		cols := itemTexts(c, c.orderBy)
		out = append(out, Step{
			Kind:        StepOrderBy,
			Side:        side,
			Columns:     cols,
			Explanation: fmt.Sprintf("Sort by: %s", strings.Join(cols, ", ")),
		})
	}

	return out, nil
}

// compileJoin parses one join clause body: table [alias] [ON condition].
func compileJoin(c *clauseSet, jc joinClause, side Side) (Step, error) {
	toks := c.tokens(jc.body)
	if len(toks) == 0 || toks[0].Type != TOKEN_IDENT {
		return Step{}, parseErrorf("JOIN clause names no table")
	}
	table := toks[0].Literal

	alias := ""
	i := 1
	if i < len(toks) && toks[i].Type == TOKEN_AS {
		i++
	}
	if i < len(toks) && toks[i].Type == TOKEN_IDENT {
		alias = toks[i].Literal
		i++
	}

	cond := ""
	var condToks []Token
	if i < len(toks) && toks[i].Type == TOKEN_ON {
		condSpan := span{start: jc.body.start + i + 1, end: jc.body.end, ok: true}
		cond = c.text(condSpan)
		condToks = c.tokens(condSpan)
	}

	return Step{
		Kind:        StepJoin,
		Side:        side,
		JoinKind:    jc.kind,
		RightTable:  table,
		RightAlias:  alias,
		Condition:   cond,
		Columns:     extractColumns(condToks),
		Explanation: fmt.Sprintf("%s JOIN with %s", jc.kind, table),
	}, nil
}

// compileSelect parses the projection list. A bare `*` is an unconstrained
// projection; aggregate items are rewritten to their pre-assigned aliases so
// the executor projects the columns grouping already produced.
func compileSelect(c *clauseSet, aliases *aliasTable, side Side) Step {
	items := splitSpans(c, c.selectList)

	step := Step{Kind: StepSelect, Side: side}
	for idx, item := range items {
		toks := c.tokens(item)
		if idx == 0 && len(toks) > 0 && toks[0].Type == TOKEN_DISTINCT {
			step.Distinct = true
			item.start++
			toks = toks[1:]
		}
		if len(toks) == 1 && toks[0].Type == TOKEN_STAR {
			step.Star = true
			continue
		}
		if agg, ok := matchAggregate(toks); ok {
			step.Columns = append(step.Columns, aliases.assign(agg.Func, agg.Column, agg.Distinct))
			continue
		}
		step.Columns = append(step.Columns, c.text(item))
	}

	if step.Star && len(step.Columns) == 0 {
		step.Explanation = "Select all columns"
	} else {
		step.Explanation = fmt.Sprintf("Select columns: %s", strings.Join(step.Columns, ", "))
	}
	return step
}

// parseTableRefs parses a comma-separated `table [AS] [alias]` list.
func parseTableRefs(c *clauseSet, s span) []TableRef {
	var refs []TableRef
	for _, item := range splitSpans(c, s) {
		toks := c.tokens(item)
		if len(toks) == 0 || toks[0].Type != TOKEN_IDENT {
			continue
		}
		ref := TableRef{Name: toks[0].Literal}
		i := 1
		if i < len(toks) && toks[i].Type == TOKEN_AS {
			i++
		}
		if i < len(toks) && toks[i].Type == TOKEN_IDENT {
			ref.Alias = toks[i].Literal
		}
		refs = append(refs, ref)
	}
	return refs
}

// itemTexts returns the trimmed raw text of each comma-separated item.
func itemTexts(c *clauseSet, s span) []string {
	var out []string
	for _, item := range splitSpans(c, s) {
		if t := c.text(item); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// splitSpans splits a clause span on commas at parenthesis depth zero.
func splitSpans(c *clauseSet, s span) []span {
	if !s.ok {
		return nil
	}
	var out []span
	depth := 0
	start := s.start
	for i := s.start; i < s.end; i++ {
		switch c.toks[i].Type {
		case TOKEN_LPAREN:
			depth++
		case TOKEN_RPAREN:
			depth--
		case TOKEN_COMMA:
			if depth == 0 {
				out = append(out, span{start: start, end: i, ok: true})
				start = i + 1
			}
		}
	}
	if start < s.end {
		out = append(out, span{start: start, end: s.end, ok: true})
	}
	return out
}

// extractColumns pulls column references from clause tokens: qualified
// `alias.column` pairs and bare identifiers used as operands. Function names,
// keywords, literals, and double-quoted strings are excluded; order is
// preserved and duplicates dropped.
func extractColumns(toks []Token) []string {
	var cols []string
	seen := make(map[string]bool)
	add := func(ref string) {
		if !seen[ref] {
			seen[ref] = true
			cols = append(cols, ref)
		}
	}

	for i := 0; i < len(toks); i++ {
		t := toks[i]
		if t.Type != TOKEN_IDENT || t.Quoted {
			continue
		}
		// Function call: skip the name, keep scanning its arguments.
		if i+1 < len(toks) && toks[i+1].Type == TOKEN_LPAREN {
			continue
		}
		if i+2 < len(toks) && toks[i+1].Type == TOKEN_DOT && toks[i+2].Type == TOKEN_IDENT {
			add(t.Literal + "." + toks[i+2].Literal)
			i += 2
			continue
		}
		add(t.Literal)
	}
	return cols
}

// extractAggregates finds aggregate invocations FUNC(col) / FUNC(DISTINCT col)
// in clause tokens and assigns each an output alias from the statement's
// alias table.
func extractAggregates(toks []Token, aliases *aliasTable) []Aggregate {
	var out []Aggregate
	for i := 0; i < len(toks); i++ {
		agg, ok := matchAggregate(toks[i:])
		if !ok {
			continue
		}
		agg.Alias = aliases.assign(agg.Func, agg.Column, agg.Distinct)
		if !containsAggregate(out, agg) {
			out = append(out, agg)
		}
	}
	return out
}

// matchAggregate reports whether toks begins with a full aggregate
// invocation: IDENT(func) LPAREN [DISTINCT] IDENT RPAREN.
func matchAggregate(toks []Token) (Aggregate, bool) {
	if len(toks) < 4 || toks[0].Type != TOKEN_IDENT || toks[0].Quoted {
		return Aggregate{}, false
	}
	fn, ok := aggFuncs[strings.ToLower(toks[0].Literal)]
	if !ok || toks[1].Type != TOKEN_LPAREN {
		return Aggregate{}, false
	}
	i := 2
	distinct := false
	if toks[i].Type == TOKEN_DISTINCT {
		distinct = true
		i++
	}
	if i+1 >= len(toks) || toks[i].Type != TOKEN_IDENT || toks[i+1].Type != TOKEN_RPAREN {
		return Aggregate{}, false
	}
	return Aggregate{Func: fn, Column: toks[i].Literal, Distinct: distinct}, true
}

func containsAggregate(aggs []Aggregate, a Aggregate) bool {
	for _, x := range aggs {
		if x.Func == a.Func && strings.EqualFold(x.Column, a.Column) && x.Distinct == a.Distinct {
			return true
		}
	}
	return false
}
