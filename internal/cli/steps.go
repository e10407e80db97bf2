package cli

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/querylens-io/querylens/internal/cli/stepview"
)

type stepsOptions struct {
	Interactive bool
}

func newStepsCommand() *cobra.Command {
	opts := &stepsOptions{}

	cmd := &cobra.Command{
		Use:   "steps <sql>",
		Short: "Run a query step by step",
		Long: `Execute a SQL query one logical stage at a time and show the
intermediate result of every stage: FROM, JOIN, WHERE, GROUP BY, HAVING,
SELECT, ORDER BY, and the two arms of a UNION.

With --interactive the steps open in a browsable terminal viewer.`,
		Example: `  querylens steps --data-dir data "SELECT dept, COUNT(*) FROM emps GROUP BY dept"

  # Browse the steps interactively
  querylens steps --data-dir data -i "SELECT * FROM orders WHERE total > 100"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSteps(cmd, opts, strings.Join(args, " "))
		},
	}

	cmd.Flags().BoolVarP(&opts.Interactive, "interactive", "i", false, "Browse steps in an interactive viewer")

	return cmd
}

func runSteps(cmd *cobra.Command, opts *stepsOptions, query string) error {
	cc, cleanup, err := newCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	res, execErr := cc.Engine.ExecuteSteps(cmd.Context(), query)
	if res == nil {
		return execErr
	}

	if opts.Interactive {
		m := stepview.New(query, res.Steps)
		if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
			return fmt.Errorf("step viewer failed: %w", err)
		}
		return execErr
	}

	r := cc.Renderer
	for _, step := range res.Steps {
		header := fmt.Sprintf("Step %d: %s", step.StepNumber, step.StepType)
		if step.Side != "" {
			header += fmt.Sprintf(" (%s)", step.Side)
		}
		r.Println(r.Styles().Header.Render(header))
		r.Println("  " + step.Explanation)
		if step.OutputTable != nil {
			if err := renderRelation(r, step.OutputTable.Columns, step.OutputTable.Data); err != nil {
				return err
			}
		}
		r.Println()
	}

	if res.FinalResult != nil {
		r.Println(r.Styles().Header.Render("Final result"))
		if err := renderRelation(r, res.FinalResult.Columns, res.FinalResult.Rows); err != nil {
			return err
		}
	}
	if execErr != nil {
		r.Errorf("Error: %v\n", execErr)
	}
	return execErr
}
