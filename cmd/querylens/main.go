// Command querylens is the QueryLens CLI.
package main

import (
	"os"

	"github.com/querylens-io/querylens/internal/cli"
	_ "github.com/querylens-io/querylens/pkg/evals/duckdb" // register duckdb evaluator
	_ "github.com/querylens-io/querylens/pkg/evals/sqlite" // register sqlite evaluator
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
