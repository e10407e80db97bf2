package steps

import "strings"

// clauseSet holds the located clause boundaries of one SELECT statement.
// Spans are token index ranges over toks; raw text is recovered by slicing
// the original input at token offsets, so the user's spelling is preserved.
type clauseSet struct {
	input string
	toks  []Token

	selectList span
	from       span
	joins      []joinClause
	where      span
	groupBy    span
	having     span
	orderBy    span
}

// span is a half-open token index range [start, end).
type span struct {
	start, end int
	ok         bool
}

// joinClause is one JOIN occurrence: the recorded kind plus the span of
// everything after the JOIN keyword up to the next clause boundary.
type joinClause struct {
	kind JoinKind
	body span
}

// text returns the raw input text covered by the span, trimmed.
func (c *clauseSet) text(s span) string {
	if !s.ok || s.start >= s.end {
		return ""
	}
	from := c.toks[s.start].Pos.Offset
	to := len(c.input)
	if s.end < len(c.toks) {
		to = c.toks[s.end].Pos.Offset
	}
	return strings.TrimSuffix(strings.TrimSpace(c.input[from:to]), ";")
}

// tokens returns the token slice covered by the span.
func (c *clauseSet) tokens(s span) []Token {
	if !s.ok {
		return nil
	}
	return c.toks[s.start:s.end]
}

// checkBalanced verifies parenthesis nesting over the whole token stream.
// Reported at extraction time so malformed text never reaches execution.
func checkBalanced(toks []Token) error {
	depth := 0
	for _, t := range toks {
		switch t.Type {
		case TOKEN_LPAREN:
			depth++
		case TOKEN_RPAREN:
			depth--
			if depth < 0 {
				return &ParseError{Message: "unbalanced parentheses: unexpected ')'", Pos: t.Pos}
			}
		}
	}
	if depth != 0 {
		return parseErrorf("unbalanced parentheses: %d unclosed '('", depth)
	}
	return nil
}

// stripViewPrefix removes a leading `CREATE [OR REPLACE] VIEW name AS` so the
// inner SELECT is compiled. Returns the statement text unchanged when no such
// prefix is present.
func stripViewPrefix(input string) string {
	toks := Tokenize(input)
	if len(toks) == 0 || toks[0].Type != TOKEN_CREATE {
		return input
	}
	i := 1
	if i+1 < len(toks) && toks[i].Type == TOKEN_OR && toks[i+1].Type == TOKEN_REPLACE {
		i += 2
	}
	if i >= len(toks) || toks[i].Type != TOKEN_VIEW {
		return input
	}
	// Skip the view name (possibly schema-qualified) up to AS.
	for i < len(toks) && toks[i].Type != TOKEN_AS && toks[i].Type != TOKEN_EOF {
		i++
	}
	if i+1 >= len(toks) || toks[i].Type != TOKEN_AS {
		return input
	}
	return strings.TrimSpace(input[toks[i+1].Pos.Offset:])
}

// Normalize returns the executable statement of a submission: the last
// semicolon-delimited statement, with any leading CREATE VIEW prefix
// stripped down to the inner SELECT.
func Normalize(query string) string {
	return stripViewPrefix(lastStatement(strings.TrimSpace(query)))
}

// lastStatement returns the final non-empty semicolon-delimited statement.
func lastStatement(input string) string {
	toks := Tokenize(input)
	start := 0
	last := ""
	for _, t := range toks {
		if t.Type == TOKEN_SEMICOLON || t.Type == TOKEN_EOF {
			end := t.Pos.Offset
			if stmt := strings.TrimSpace(input[start:end]); stmt != "" {
				last = stmt
			}
			start = t.Pos.Offset + 1
		}
	}
	if last == "" {
		return strings.TrimSpace(input)
	}
	return last
}

// splitUnion detects a single top-level UNION and returns the two arm texts.
// UNION ALL and more than one top-level UNION are rejected outright.
func splitUnion(input string, toks []Token) (left, right string, found bool, err error) {
	depth := 0
	splitAt := -1
	for i, t := range toks {
		switch t.Type {
		case TOKEN_LPAREN:
			depth++
		case TOKEN_RPAREN:
			depth--
		case TOKEN_UNION:
			if depth != 0 {
				continue
			}
			if i+1 < len(toks) && toks[i+1].Type == TOKEN_ALL {
				return "", "", false, &ParseError{Message: "UNION ALL is not supported", Pos: t.Pos}
			}
			if splitAt >= 0 {
				return "", "", false, &ParseError{Message: "UNION queries with more than two arms are not supported", Pos: t.Pos}
			}
			splitAt = i
		}
	}
	if splitAt < 0 {
		return "", "", false, nil
	}

	left = strings.TrimSpace(input[:toks[splitAt].Pos.Offset])
	rightStart := len(input)
	if splitAt+1 < len(toks) {
		rightStart = toks[splitAt+1].Pos.Offset
	}
	right = strings.TrimSuffix(strings.TrimSpace(input[rightStart:]), ";")

	rightToks := Tokenize(right)
	if len(rightToks) == 0 || rightToks[0].Type != TOKEN_SELECT {
		return "", "", false, parseErrorf("right arm of UNION is not a SELECT statement: %q", right)
	}
	return left, right, true, nil
}

// extractClauses locates the clause boundaries of a single SELECT statement.
// Keywords are matched over tokens at parenthesis depth zero, so clause words
// inside string literals, quoted identifiers, or subqueries never register.
func extractClauses(input string) (*clauseSet, error) {
	toks := Tokenize(input)
	if err := checkBalanced(toks); err != nil {
		return nil, err
	}
	if len(toks) == 0 || toks[0].Type != TOKEN_SELECT {
		return nil, parseErrorf("statement does not start with SELECT")
	}

	c := &clauseSet{input: input, toks: toks}

	// Current open clause, closed whenever the next boundary is found.
	type open struct {
		kind  StepKind
		jkind JoinKind
		start int
	}
	cur := &open{kind: StepSelect, start: 1}

	closeAt := func(end int) {
		s := span{start: cur.start, end: end, ok: true}
		switch cur.kind {
		case StepSelect:
			c.selectList = s
		case StepFrom:
			c.from = s
		case StepJoin:
			c.joins = append(c.joins, joinClause{kind: cur.jkind, body: s})
		case StepWhere:
			c.where = s
		case StepGroupBy:
			c.groupBy = s
		case StepHaving:
			c.having = s
		case StepOrderBy:
			c.orderBy = s
		}
	}

	depth := 0
	i := 1
	for i < len(toks) {
		t := toks[i]
		if t.Type == TOKEN_LPAREN {
			depth++
			i++
			continue
		}
		if t.Type == TOKEN_RPAREN {
			depth--
			i++
			continue
		}
		if depth != 0 {
			i++
			continue
		}

		switch t.Type {
		case TOKEN_FROM:
			closeAt(i)
			cur = &open{kind: StepFrom, start: i + 1}
			i++
		case TOKEN_LEFT, TOKEN_RIGHT, TOKEN_FULL, TOKEN_INNER, TOKEN_CROSS, TOKEN_OUTER, TOKEN_JOIN:
			kind, consumed, isJoin := matchJoin(toks, i)
			if !isJoin {
				i++
				continue
			}
			closeAt(i)
			cur = &open{kind: StepJoin, jkind: kind, start: i + consumed}
			i += consumed
		case TOKEN_WHERE:
			closeAt(i)
			cur = &open{kind: StepWhere, start: i + 1}
			i++
		case TOKEN_GROUP:
			if i+1 < len(toks) && toks[i+1].Type == TOKEN_BY {
				closeAt(i)
				cur = &open{kind: StepGroupBy, start: i + 2}
				i += 2
			} else {
				i++
			}
		case TOKEN_HAVING:
			closeAt(i)
			cur = &open{kind: StepHaving, start: i + 1}
			i++
		case TOKEN_ORDER:
			if i+1 < len(toks) && toks[i+1].Type == TOKEN_BY {
				closeAt(i)
				cur = &open{kind: StepOrderBy, start: i + 2}
				i += 2
			} else {
				i++
			}
		case TOKEN_SEMICOLON, TOKEN_EOF:
			closeAt(i)
			cur = nil
			i = len(toks)
		default:
			i++
		}
		if cur == nil {
			break
		}
	}
	if cur != nil {
		closeAt(len(toks))
	}

	if !c.from.ok {
		return nil, parseErrorf("statement has no FROM clause")
	}
	return c, nil
}

// matchJoin recognizes a join keyword sequence starting at i and returns the
// join kind plus the number of tokens the sequence occupies. LEFT/RIGHT/FULL
// may be followed by OUTER; a bare JOIN (or INNER/CROSS JOIN) is inner.
func matchJoin(toks []Token, i int) (JoinKind, int, bool) {
	kind := JoinInner
	n := 0
	switch toks[i].Type {
	case TOKEN_LEFT:
		kind, n = JoinLeft, 1
	case TOKEN_RIGHT:
		kind, n = JoinRight, 1
	case TOKEN_FULL:
		kind, n = JoinFull, 1
	case TOKEN_INNER, TOKEN_CROSS:
		kind, n = JoinInner, 1
	case TOKEN_JOIN:
		return JoinInner, 1, true
	default:
		return kind, 0, false
	}
	j := i + n
	if j < len(toks) && toks[j].Type == TOKEN_OUTER {
		n++
		j++
	}
	if j < len(toks) && toks[j].Type == TOKEN_JOIN {
		return kind, n + 1, true
	}
	// LEFT/RIGHT/etc. used as a plain identifier (e.g. a column name).
	return kind, 0, false
}
