package cli

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"

	"github.com/querylens-io/querylens/internal/cli/output"
)

func newTablesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "List loaded tables",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, cleanup, err := newCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			r := cc.Renderer

			type tableInfo struct {
				Name     string   `json:"name"`
				Columns  []string `json:"columns"`
				RowCount int      `json:"row_count"`
			}
			var tables []tableInfo
			for _, name := range cc.Store.Names() {
				rel, err := cc.Store.Get(name)
				if err != nil {
					continue
				}
				tables = append(tables, tableInfo{Name: name, Columns: rel.Columns, RowCount: rel.RowCount()})
			}

			if r.EffectiveMode() == output.ModeJSON {
				enc := json.NewEncoder(r.Writer())
				enc.SetIndent("", "  ")
				return enc.Encode(tables)
			}

			if len(tables) == 0 {
				r.Println("No tables loaded. Use --data-dir or 'querylens load'.")
				return nil
			}
			r.Printf("Tables (%d):\n\n", len(tables))
			for _, t := range tables {
				r.Printf("  %-24s %5d rows  (%s)\n", t.Name, t.RowCount, strings.Join(t.Columns, ", "))
			}
			return nil
		},
	}
}
