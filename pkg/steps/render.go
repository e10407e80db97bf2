package steps

import "strings"

// RenderCondition re-renders a raw clause fragment as SQL the evaluator
// accepts. The one real rewrite is literal treatment: the teaching material
// is MySQL-flavored and double-quotes string literals (`LIKE "%bank%"`),
// which standard engines read as identifiers; double-quoted tokens are
// emitted as single-quoted strings instead. Everything else keeps the user's
// spelling.
func RenderCondition(raw string) string {
	return renderTokens(Tokenize(raw))
}

// RenderQuery applies the same literal rewrite to a whole statement.
func RenderQuery(raw string) string {
	return renderTokens(Tokenize(raw))
}

// RenderConditionWith re-renders a condition while mapping every column
// reference through resolve. Qualified references (`c.city`) are offered to
// resolve whole; when it reports a match the reference is replaced by the
// resolved physical column. Unresolved references keep the user's spelling so
// execution fails explicitly instead of silently guessing. Function names,
// keywords, and literals pass through untouched.
func RenderConditionWith(raw string, resolve func(ref string) (string, bool)) string {
	toks := Tokenize(raw)
	var out []Token
	for i := 0; i < len(toks); i++ {
		t := toks[i]
		if t.Type != TOKEN_IDENT || t.Quoted {
			out = append(out, t)
			continue
		}
		if i+1 < len(toks) && toks[i+1].Type == TOKEN_LPAREN {
			out = append(out, t)
			continue
		}
		ref := t.Literal
		skip := 0
		if i+2 < len(toks) && toks[i+1].Type == TOKEN_DOT && toks[i+2].Type == TOKEN_IDENT {
			ref = t.Literal + "." + toks[i+2].Literal
			skip = 2
		}
		if col, ok := resolve(ref); ok {
			out = append(out, Token{Type: TOKEN_IDENT, Literal: col, Pos: t.Pos})
			i += skip
			continue
		}
		out = append(out, t)
	}
	return renderTokens(out)
}

// RewriteAggregates replaces every aggregate invocation in the condition with
// its pre-assigned alias, so a HAVING condition can filter on the columns
// grouping already computed. Matching is token-based over the (function,
// column, distinct) triple, so MIN(x) and MIN(DISTINCT x) rewrite to their
// own aliases even in the same condition.
func RewriteAggregates(raw string, aggs []Aggregate) string {
	toks := Tokenize(raw)
	var out []Token
	for i := 0; i < len(toks); i++ {
		agg, ok := matchAggregate(toks[i:])
		if ok {
			alias := ""
			for _, a := range aggs {
				if a.Func == agg.Func && strings.EqualFold(a.Column, agg.Column) && a.Distinct == agg.Distinct {
					alias = a.Alias
					break
				}
			}
			if alias != "" {
				out = append(out, Token{Type: TOKEN_IDENT, Literal: alias, Pos: toks[i].Pos})
				// FUNC ( [DISTINCT] col )
				i += 3
				if agg.Distinct {
					i++
				}
				continue
			}
		}
		if toks[i].Type == TOKEN_EOF {
			break
		}
		out = append(out, toks[i])
	}
	return renderTokens(out)
}

func renderTokens(toks []Token) string {
	var b strings.Builder
	prev := Token{Type: TOKEN_EOF}
	for _, t := range toks {
		if t.Type == TOKEN_EOF {
			break
		}
		if b.Len() > 0 && needsSpace(prev, t) {
			b.WriteByte(' ')
		}
		b.WriteString(renderToken(t))
		prev = t
	}
	return b.String()
}

func renderToken(t Token) string {
	switch {
	case t.Type == TOKEN_STRING, t.Quoted:
		return "'" + strings.ReplaceAll(t.Literal, "'", "''") + "'"
	default:
		return t.Literal
	}
}

// needsSpace suppresses spacing around tight punctuation so rendered text
// reads like hand-written SQL (a.b, min(x), f(a, b)).
func needsSpace(prev, cur Token) bool {
	switch cur.Type {
	case TOKEN_DOT, TOKEN_COMMA, TOKEN_RPAREN, TOKEN_SEMICOLON:
		return false
	case TOKEN_LPAREN:
		// Tight after a function-style identifier, spaced after keywords (IN (...)).
		return prev.Type != TOKEN_IDENT
	}
	switch prev.Type {
	case TOKEN_DOT, TOKEN_LPAREN:
		return false
	}
	return true
}
