package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/querylens-io/querylens/internal/cli/output"
	"github.com/querylens-io/querylens/internal/graph"
)

type graphOptions struct {
	MinConfidence float64
	Criticality   bool
}

func newGraphCommand() *cobra.Command {
	opts := &graphOptions{}

	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Show table relationships",
		Long: `Print the relationship graph of the loaded tables: declared foreign
keys and inferred relationships, as a tree per table.`,
		Example: `  querylens graph --data-dir data

  # Hide weak inferred edges
  querylens graph --data-dir data --min-confidence 0.7

  # Rank tables by how risky they are to delete from
  querylens graph --data-dir data --criticality`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runGraph(cmd, opts)
		},
	}

	cmd.Flags().Float64Var(&opts.MinConfidence, "min-confidence", 0, "Hide inferred edges below this confidence")
	cmd.Flags().BoolVar(&opts.Criticality, "criticality", false, "Rank tables by deletion risk")

	return cmd
}

func runGraph(cmd *cobra.Command, opts *graphOptions) error {
	cc, cleanup, err := newCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	r := cc.Renderer

	if opts.Criticality {
		entries := cc.Graph.Criticality()
		if r.EffectiveMode() == output.ModeJSON {
			enc := json.NewEncoder(r.Writer())
			enc.SetIndent("", "  ")
			return enc.Encode(entries)
		}
		r.Println("Deletion risk:")
		for _, e := range entries {
			r.Printf("  %-24s score %3d  [%s]  %d dependents, %d blocking FKs\n",
				e.Table, e.Score, e.Level, e.Dependents, e.Restrict)
		}
		return nil
	}

	snap := cc.Graph.Snapshot(opts.MinConfidence)
	if r.EffectiveMode() == output.ModeJSON {
		enc := json.NewEncoder(r.Writer())
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	}

	if len(snap.Nodes) == 0 {
		r.Println("No tables loaded. Use --data-dir or 'querylens load'.")
		return nil
	}

	// outgoing edges grouped by source table, tree style
	bySource := make(map[string][]graph.Edge)
	for _, e := range snap.Links {
		bySource[e.From] = append(bySource[e.From], e)
	}

	r.Printf("Tables (%d), relationships (%d):\n\n", len(snap.Nodes), len(snap.Links))
	for _, n := range snap.Nodes {
		r.Println(r.Styles().Bold.Render(fmt.Sprintf("%s (%d rows)", n.Name, n.RowCount)))
		edges := bySource[n.Name]
		for i, e := range edges {
			branch := "├──"
			if i == len(edges)-1 {
				branch = "└──"
			}
			r.Printf("  %s %s\n", branch, describeEdge(e))
		}
	}
	return nil
}

func describeEdge(e graph.Edge) string {
	cols := fmt.Sprintf("%s -> %s.%s",
		strings.Join(e.FromColumns, ","), e.To, strings.Join(e.ToColumns, ","))
	if e.Kind == graph.EdgeInferred {
		return fmt.Sprintf("%s  (inferred, %.0f%% confidence)", cols, e.Confidence*100)
	}
	s := cols + "  (FK"
	if e.OnDelete != "" {
		s += fmt.Sprintf(", ON DELETE %s", e.OnDelete)
	}
	return s + ")"
}
