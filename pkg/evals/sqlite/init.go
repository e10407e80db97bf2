// This file registers the SQLite evaluator with the evaluator registry.
// Import this package with a blank identifier to register it:
//
//	import _ "github.com/querylens-io/querylens/pkg/evals/sqlite"
package sqlite

import (
	"log/slog"

	"github.com/querylens-io/querylens/pkg/eval"
)

func init() {
	eval.Register("sqlite", func(logger *slog.Logger) eval.Evaluator { return New(logger) })
}
