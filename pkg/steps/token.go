// Package steps compiles a SQL SELECT statement into the ordered list of
// relational-algebra steps an engine would execute: load, join, filter,
// group, filter groups, project, sort, and set union. Clause boundaries are
// located over a token stream, never by substring search, so keywords inside
// string literals or quoted identifiers cannot be mistaken for clauses.
package steps

import "fmt"

// TokenType represents the type of a lexical token.
type TokenType int32

//nolint:revive // TOKEN_* names are intentionally ALL_CAPS for SQL token conventions
const (
	// Special tokens
	TOKEN_EOF TokenType = iota
	TOKEN_ILLEGAL

	// Literals
	TOKEN_IDENT  // identifier
	TOKEN_NUMBER // 123, 45.67, 1e10
	TOKEN_STRING // 'hello'

	// Operators
	TOKEN_PLUS      // +
	TOKEN_MINUS     // -
	TOKEN_STAR      // *
	TOKEN_SLASH     // /
	TOKEN_PERCENT   // %
	TOKEN_DPIPE     // ||
	TOKEN_EQ        // =
	TOKEN_NE        // != or <>
	TOKEN_LT        // <
	TOKEN_GT        // >
	TOKEN_LE        // <=
	TOKEN_GE        // >=
	TOKEN_DOT       // .
	TOKEN_COMMA     // ,
	TOKEN_LPAREN    // (
	TOKEN_RPAREN    // )
	TOKEN_SEMICOLON // ;

	// Keywords (alphabetical)
	TOKEN_ALL
	TOKEN_AND
	TOKEN_AS
	TOKEN_ASC
	TOKEN_BETWEEN
	TOKEN_BY
	TOKEN_CREATE
	TOKEN_CROSS
	TOKEN_DESC
	TOKEN_DISTINCT
	TOKEN_FALSE
	TOKEN_FROM
	TOKEN_FULL
	TOKEN_GROUP
	TOKEN_HAVING
	TOKEN_IN
	TOKEN_INNER
	TOKEN_IS
	TOKEN_JOIN
	TOKEN_LEFT
	TOKEN_LIKE
	TOKEN_LIMIT
	TOKEN_NOT
	TOKEN_NULL
	TOKEN_ON
	TOKEN_OR
	TOKEN_ORDER
	TOKEN_OUTER
	TOKEN_REPLACE
	TOKEN_RIGHT
	TOKEN_SELECT
	TOKEN_TRUE
	TOKEN_UNION
	TOKEN_VIEW
	TOKEN_WHERE
)

// String returns a human-readable representation of the token type.
func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TOKEN(%d)", t)
}

// tokenNames maps token types to their string representations.
var tokenNames = map[TokenType]string{
	TOKEN_EOF:     "EOF",
	TOKEN_ILLEGAL: "ILLEGAL",

	TOKEN_IDENT:  "IDENT",
	TOKEN_NUMBER: "NUMBER",
	TOKEN_STRING: "STRING",

	TOKEN_PLUS:      "+",
	TOKEN_MINUS:     "-",
	TOKEN_STAR:      "*",
	TOKEN_SLASH:     "/",
	TOKEN_PERCENT:   "%",
	TOKEN_DPIPE:     "||",
	TOKEN_EQ:        "=",
	TOKEN_NE:        "!=",
	TOKEN_LT:        "<",
	TOKEN_GT:        ">",
	TOKEN_LE:        "<=",
	TOKEN_GE:        ">=",
	TOKEN_DOT:       ".",
	TOKEN_COMMA:     ",",
	TOKEN_LPAREN:    "(",
	TOKEN_RPAREN:    ")",
	TOKEN_SEMICOLON: ";",

	TOKEN_ALL:      "ALL",
	TOKEN_AND:      "AND",
	TOKEN_AS:       "AS",
	TOKEN_ASC:      "ASC",
	TOKEN_BETWEEN:  "BETWEEN",
	TOKEN_BY:       "BY",
	TOKEN_CREATE:   "CREATE",
	TOKEN_CROSS:    "CROSS",
	TOKEN_DESC:     "DESC",
	TOKEN_DISTINCT: "DISTINCT",
	TOKEN_FALSE:    "FALSE",
	TOKEN_FROM:     "FROM",
	TOKEN_FULL:     "FULL",
	TOKEN_GROUP:    "GROUP",
	TOKEN_HAVING:   "HAVING",
	TOKEN_IN:       "IN",
	TOKEN_INNER:    "INNER",
	TOKEN_IS:       "IS",
	TOKEN_JOIN:     "JOIN",
	TOKEN_LEFT:     "LEFT",
	TOKEN_LIKE:     "LIKE",
	TOKEN_LIMIT:    "LIMIT",
	TOKEN_NOT:      "NOT",
	TOKEN_NULL:     "NULL",
	TOKEN_ON:       "ON",
	TOKEN_OR:       "OR",
	TOKEN_ORDER:    "ORDER",
	TOKEN_OUTER:    "OUTER",
	TOKEN_REPLACE:  "REPLACE",
	TOKEN_RIGHT:    "RIGHT",
	TOKEN_SELECT:   "SELECT",
	TOKEN_TRUE:     "TRUE",
	TOKEN_UNION:    "UNION",
	TOKEN_VIEW:     "VIEW",
	TOKEN_WHERE:    "WHERE",
}

// keywords maps lowercase keyword strings to their token types.
var keywords = map[string]TokenType{
	"all":      TOKEN_ALL,
	"and":      TOKEN_AND,
	"as":       TOKEN_AS,
	"asc":      TOKEN_ASC,
	"between":  TOKEN_BETWEEN,
	"by":       TOKEN_BY,
	"create":   TOKEN_CREATE,
	"cross":    TOKEN_CROSS,
	"desc":     TOKEN_DESC,
	"distinct": TOKEN_DISTINCT,
	"false":    TOKEN_FALSE,
	"from":     TOKEN_FROM,
	"full":     TOKEN_FULL,
	"group":    TOKEN_GROUP,
	"having":   TOKEN_HAVING,
	"in":       TOKEN_IN,
	"inner":    TOKEN_INNER,
	"is":       TOKEN_IS,
	"join":     TOKEN_JOIN,
	"left":     TOKEN_LEFT,
	"like":     TOKEN_LIKE,
	"limit":    TOKEN_LIMIT,
	"not":      TOKEN_NOT,
	"null":     TOKEN_NULL,
	"on":       TOKEN_ON,
	"or":       TOKEN_OR,
	"order":    TOKEN_ORDER,
	"outer":    TOKEN_OUTER,
	"replace":  TOKEN_REPLACE,
	"right":    TOKEN_RIGHT,
	"select":   TOKEN_SELECT,
	"true":     TOKEN_TRUE,
	"union":    TOKEN_UNION,
	"view":     TOKEN_VIEW,
	"where":    TOKEN_WHERE,
}

// LookupIdent returns the token type for the given lowercase identifier.
// If the identifier is a keyword, the keyword token type is returned.
// Otherwise, TOKEN_IDENT is returned. Quoted identifiers are never keywords.
func LookupIdent(ident string) TokenType {
	if tok, ok := keywords[ident]; ok {
		return tok
	}
	return TOKEN_IDENT
}

// IsKeyword returns true if the token type is a keyword.
func IsKeyword(t TokenType) bool {
	return t >= TOKEN_ALL && t <= TOKEN_WHERE
}

// Position represents a location in the query text.
type Position struct {
	Line   int // 1-based line number
	Column int // 1-based column number
	Offset int // 0-based byte offset
}

// Token represents a lexical token with position information.
// Quoted marks double-quoted tokens: the surrounding input dialect
// (MySQL-style teaching material) uses them as string literals, so the
// condition renderer emits them as such.
type Token struct {
	Type    TokenType
	Literal string
	Quoted  bool
	Pos     Position
}
