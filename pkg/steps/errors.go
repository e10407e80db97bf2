package steps

import "fmt"

// ParseError reports a malformed or unsupported query shape: empty or
// non-SELECT text, a UNION with more than two arms, unbalanced parentheses.
// No partial compilation is returned alongside one.
type ParseError struct {
	Message string
	Pos     Position
}

func (e *ParseError) Error() string {
	if e.Pos.Line > 0 {
		return fmt.Sprintf("parse error at line %d, column %d: %s", e.Pos.Line, e.Pos.Column, e.Message)
	}
	return fmt.Sprintf("parse error: %s", e.Message)
}

// parseErrorf builds a ParseError without position information.
func parseErrorf(format string, args ...any) *ParseError {
	return &ParseError{Message: fmt.Sprintf(format, args...)}
}

// JoinResolutionError reports a join whose condition could not be resolved to
// a left/right key pair against the relations actually being joined. The
// executor may still fall back to a natural join before surfacing this.
type JoinResolutionError struct {
	Condition string
	Reason    string
}

func (e *JoinResolutionError) Error() string {
	if e.Condition == "" {
		return fmt.Sprintf("cannot resolve join: %s", e.Reason)
	}
	return fmt.Sprintf("cannot resolve join condition %q: %s", e.Condition, e.Reason)
}
