// This file registers the DuckDB evaluator with the evaluator registry.
// Import this package with a blank identifier to register it:
//
//	import _ "github.com/querylens-io/querylens/pkg/evals/duckdb"
package duckdb

import (
	"log/slog"

	"github.com/querylens-io/querylens/pkg/eval"
)

func init() {
	eval.Register("duckdb", func(logger *slog.Logger) eval.Evaluator { return New(logger) })
}
