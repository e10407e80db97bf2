package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
)

func newREPLCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Interactive query shell",
		Long: `Start an interactive shell against the loaded datasets.

SQL statements end with a semicolon and may span multiple lines.
Meta commands:
  .tables         list loaded tables
  .steps on|off   toggle step-by-step execution
  .help           show help
  .quit / .exit   leave the shell`,
		RunE: runREPL,
	}
}

func runREPL(cmd *cobra.Command, _ []string) error {
	cc, cleanup, err := newCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "querylens> ",
		HistoryFile:     ".querylens_repl_history",
		AutoComplete:    newCompleter(cc),
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize REPL: %w", err)
	}
	defer func() { _ = rl.Close() }()

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "QueryLens (%s evaluator, %d tables)\n",
		cc.Engine.EvaluatorName(), cc.Store.Len())
	_, _ = fmt.Fprintln(out, "Type .help for commands, .quit to exit")
	_, _ = fmt.Fprintln(out)

	stepsMode := false
	var buf strings.Builder
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			buf.Reset()
			rl.SetPrompt("querylens> ")
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if buf.Len() == 0 && strings.HasPrefix(line, ".") {
			quit := handleMetaCommand(cmd, cc, line, &stepsMode)
			if quit {
				break
			}
			continue
		}

		buf.WriteString(line)
		if !strings.HasSuffix(line, ";") {
			buf.WriteString(" ")
			rl.SetPrompt("      ...> ")
			continue
		}
		rl.SetPrompt("querylens> ")

		query := buf.String()
		buf.Reset()

		if err := runREPLQuery(cmd, cc, query, stepsMode); err != nil {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		}
		_, _ = fmt.Fprintln(out)
	}

	return nil
}

func runREPLQuery(cmd *cobra.Command, cc *commandContext, query string, stepsMode bool) error {
	if stepsMode {
		res, err := cc.Engine.ExecuteSteps(cmd.Context(), query)
		if res != nil {
			for _, step := range res.Steps {
				cc.Renderer.Printf("Step %d: %s - %s\n", step.StepNumber, step.StepType, step.Explanation)
				if step.OutputTable != nil {
					if rerr := renderRelation(cc.Renderer, step.OutputTable.Columns, step.OutputTable.Data); rerr != nil {
						return rerr
					}
				}
			}
			if res.FinalResult != nil {
				cc.Renderer.Println("Final result:")
				return renderRelation(cc.Renderer, res.FinalResult.Columns, res.FinalResult.Rows)
			}
		}
		return err
	}

	res, err := cc.Engine.ExecuteQuery(cmd.Context(), query)
	if err != nil {
		return err
	}
	return renderRelation(cc.Renderer, res.Columns, res.Rows)
}

// handleMetaCommand executes a dot-command, returning true when the REPL
// should exit.
func handleMetaCommand(cmd *cobra.Command, cc *commandContext, line string, stepsMode *bool) bool {
	out := cmd.OutOrStdout()
	parts := strings.Fields(line)

	switch strings.ToLower(parts[0]) {
	case ".quit", ".exit":
		return true

	case ".help":
		_, _ = fmt.Fprint(out, `
Commands:
  .tables         List loaded tables
  .steps on|off   Toggle step-by-step execution
  .help           Show this help message
  .quit / .exit   Exit the shell

Tips:
  - SQL statements must end with a semicolon (;)
  - Use arrow keys to navigate history
  - Tab completion works for table names and keywords
`)

	case ".tables":
		for _, name := range cc.Store.Names() {
			rel, err := cc.Store.Get(name)
			if err != nil {
				continue
			}
			_, _ = fmt.Fprintf(out, "  %-24s %5d rows\n", name, rel.RowCount())
		}

	case ".steps":
		if len(parts) < 2 || (parts[1] != "on" && parts[1] != "off") {
			_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "Usage: .steps on|off")
			return false
		}
		*stepsMode = parts[1] == "on"
		_, _ = fmt.Fprintf(out, "Step mode %s\n", parts[1])

	default:
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Unknown command: %s (type .help for commands)\n", parts[0])
	}
	return false
}

// sqlKeywords seeds tab completion alongside table names.
var sqlKeywords = []string{
	"SELECT", "FROM", "WHERE", "JOIN", "LEFT", "RIGHT", "INNER", "OUTER",
	"ON", "GROUP", "BY", "HAVING", "ORDER", "UNION", "DISTINCT", "AND",
	"OR", "NOT", "IN", "LIKE", "COUNT", "SUM", "AVG", "MIN", "MAX",
}

func newCompleter(cc *commandContext) *readline.PrefixCompleter {
	var items []readline.PrefixCompleterInterface
	for _, name := range cc.Store.Names() {
		items = append(items, readline.PcItem(name))
	}
	for _, kw := range sqlKeywords {
		items = append(items, readline.PcItem(kw))
	}
	items = append(items,
		readline.PcItem(".tables"),
		readline.PcItem(".steps",
			readline.PcItem("on"),
			readline.PcItem("off"),
		),
		readline.PcItem(".help"),
		readline.PcItem(".quit"),
		readline.PcItem(".exit"),
	)
	return readline.NewPrefixCompleter(items...)
}
