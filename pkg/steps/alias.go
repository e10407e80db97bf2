package steps

import (
	"strings"

	"github.com/querylens-io/querylens/pkg/relation"
)

// SplitQualified splits `alias.column` into its qualifier and column name.
// A bare column returns an empty qualifier.
func SplitQualified(ref string) (qualifier, column string) {
	if i := strings.LastIndex(ref, "."); i >= 0 {
		return ref[:i], ref[i+1:]
	}
	return "", ref
}

// ResolveColumn maps a referenced column onto the columns a relation actually
// carries. Resolution has three tiers, tried in order for both the qualified
// reference and its bare column name:
//
//  1. exact match
//  2. base-name match, so `city` still resolves after a join renamed the
//     physical column to `city_2`
//  3. case-insensitive match
//
// Returns the physical column name and whether resolution succeeded.
func ResolveColumn(columns []string, ref string) (string, bool) {
	_, bare := SplitQualified(ref)
	candidates := []string{ref}
	if bare != ref {
		candidates = append(candidates, bare)
	}

	for _, want := range candidates {
		for _, col := range columns {
			if col == want {
				return col, true
			}
		}
	}
	for _, want := range candidates {
		for _, col := range columns {
			if col != want && relation.BaseName(col) == want {
				return col, true
			}
		}
	}
	for _, want := range candidates {
		for _, col := range columns {
			if strings.EqualFold(col, want) {
				return col, true
			}
		}
	}
	return "", false
}

// ResolveColumns resolves each reference, dropping the ones that do not map
// onto any physical column. The second return lists the dropped references.
func ResolveColumns(columns []string, refs []string) (resolved, dropped []string) {
	for _, ref := range refs {
		if col, ok := ResolveColumn(columns, ref); ok {
			resolved = append(resolved, col)
		} else {
			dropped = append(dropped, ref)
		}
	}
	return resolved, dropped
}

// JoinKeys is a resolved equi-join condition: the column each side is keyed
// on, with the qualifier the condition used for it.
type JoinKeys struct {
	LeftQualifier  string
	LeftColumn     string
	RightQualifier string
	RightColumn    string
}

// ResolveJoinCondition resolves an ON condition of the shape
// `a.col = b.col` against the tables joined so far. leftNames holds the
// lower-cased table names and aliases accumulated on the left side;
// rightTable and rightAlias identify the table being joined in. Either
// side of the equality may reference the right table; the resolver
// orients the keys accordingly.
//
// Conditions that are not a single qualified equality return a
// JoinResolutionError; callers fall back to a natural join on a common
// column before giving up.
func ResolveJoinCondition(cond string, leftNames map[string]bool, rightTable, rightAlias string) (JoinKeys, error) {
	toks := Tokenize(cond)

	// IDENT DOT IDENT EQ IDENT DOT IDENT, and nothing else.
	want := []TokenType{TOKEN_IDENT, TOKEN_DOT, TOKEN_IDENT, TOKEN_EQ, TOKEN_IDENT, TOKEN_DOT, TOKEN_IDENT, TOKEN_EOF}
	if len(toks) != len(want) {
		return JoinKeys{}, &JoinResolutionError{Condition: cond, Reason: "condition is not a single qualified equality"}
	}
	for i, tt := range want {
		if toks[i].Type != tt {
			return JoinKeys{}, &JoinResolutionError{Condition: cond, Reason: "condition is not a single qualified equality"}
		}
	}

	aQual, aCol := toks[0].Literal, toks[2].Literal
	bQual, bCol := toks[4].Literal, toks[6].Literal

	isRight := func(q string) bool {
		return strings.EqualFold(q, rightTable) || (rightAlias != "" && strings.EqualFold(q, rightAlias))
	}
	isLeft := func(q string) bool {
		return leftNames[strings.ToLower(q)]
	}

	switch {
	case isLeft(aQual) && isRight(bQual):
		return JoinKeys{LeftQualifier: aQual, LeftColumn: aCol, RightQualifier: bQual, RightColumn: bCol}, nil
	case isRight(aQual) && isLeft(bQual):
		return JoinKeys{LeftQualifier: bQual, LeftColumn: bCol, RightQualifier: aQual, RightColumn: aCol}, nil
	}
	return JoinKeys{}, &JoinResolutionError{
		Condition: cond,
		Reason:    "neither side of the equality names the joined table",
	}
}

// CommonColumns returns the column names the two relations share, compared
// by base name, in left-relation order. Used for the natural-join fallback.
func CommonColumns(left, right []string) []string {
	rightSet := make(map[string]bool, len(right))
	for _, col := range right {
		rightSet[strings.ToLower(relation.BaseName(col))] = true
	}
	var out []string
	for _, col := range left {
		if rightSet[strings.ToLower(relation.BaseName(col))] {
			out = append(out, col)
		}
	}
	return out
}
