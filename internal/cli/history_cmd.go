package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/querylens-io/querylens/internal/cli/output"
)

type historyOptions struct {
	Limit int
	Clear bool
}

func newHistoryCommand() *cobra.Command {
	opts := &historyOptions{}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent queries",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHistory(cmd, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "Number of entries to show")
	cmd.Flags().BoolVar(&opts.Clear, "clear", false, "Delete all recorded history")

	return cmd
}

func runHistory(cmd *cobra.Command, opts *historyOptions) error {
	cc, cleanup, err := newCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	if cc.History == nil {
		return fmt.Errorf("history is disabled")
	}

	if opts.Clear {
		if err := cc.History.Clear(cmd.Context()); err != nil {
			return err
		}
		cc.Renderer.Println("History cleared")
		return nil
	}

	entries, err := cc.History.List(cmd.Context(), opts.Limit)
	if err != nil {
		return err
	}

	r := cc.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		enc := json.NewEncoder(r.Writer())
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	if len(entries) == 0 {
		r.Println("No queries recorded yet.")
		return nil
	}
	for _, e := range entries {
		status := r.Styles().Success.Render("ok")
		if e.Status != "ok" {
			status = r.Styles().Error.Render(e.ErrorKind)
		}
		r.Printf("%s  %-6s %-8s %4dms %6d rows  %s\n",
			e.CreatedAt.Format("2006-01-02 15:04:05"), e.Mode, status, e.DurationMS, e.RowCount, e.Query)
	}
	return nil
}
