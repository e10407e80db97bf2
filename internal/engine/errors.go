package engine

import "fmt"

// EvaluationError reports that the embedded evaluator rejected a rewritten
// clause at one step. In step mode it is recorded per step and the pipeline
// continues; in final mode it is fatal.
type EvaluationError struct {
	Step int
	SQL  string
	Err  error
}

func (e *EvaluationError) Error() string {
	if e.Step > 0 {
		return fmt.Sprintf("evaluation failed at step %d: %v", e.Step, e.Err)
	}
	return fmt.Sprintf("evaluation failed: %v", e.Err)
}

func (e *EvaluationError) Unwrap() error { return e.Err }

// ColumnCountMismatchError reports UNION arms that disagree in column count.
// No automatic column dropping or padding is attempted.
type ColumnCountMismatchError struct {
	Left  int
	Right int
}

func (e *ColumnCountMismatchError) Error() string {
	return fmt.Sprintf("UNION column count mismatch (%d vs %d)", e.Left, e.Right)
}
