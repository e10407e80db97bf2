package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

func newQueryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query <sql>",
		Short: "Run a query and print the final result",
		Long: `Execute a SQL query against the loaded datasets and print the
authoritative final result. Use "steps" instead to see the query run
stage by stage.`,
		Example: `  querylens query --data-dir data "SELECT name, total FROM orders JOIN customers ON orders.cid = customers.id"

  # Machine-readable output
  querylens query --data-dir data -o json "SELECT * FROM budget"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, strings.Join(args, " "))
		},
	}
	return cmd
}

func runQuery(cmd *cobra.Command, query string) error {
	cc, cleanup, err := newCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	res, err := cc.Engine.ExecuteQuery(cmd.Context(), query)
	if err != nil {
		return err
	}
	return renderRelation(cc.Renderer, res.Columns, res.Rows)
}
