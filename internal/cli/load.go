package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/querylens-io/querylens/internal/graph"
)

type loadOptions struct {
	Postgres string
	Tables   []string
}

func newLoadCommand() *cobra.Command {
	opts := &loadOptions{}

	cmd := &cobra.Command{
		Use:   "load <path>...",
		Short: "Load datasets and show what they contain",
		Long: `Load SQL scripts, CSV files, JSON files, or whole directories, and
print the resulting tables and relationship edges.

Loading is in-memory: this command is a dry run that validates datasets
and previews the schema QueryLens would see. Use --data-dir (or the config
file) to have serve, query and the REPL load the same data.`,
		Example: `  # Validate a schema script and two data files
  querylens load schema.sql orders.csv customers.json

  # Load everything in a directory
  querylens load ./data

  # Import tables from a PostgreSQL database
  querylens load --postgres "postgres://localhost/app" --tables users,orders`,
		Args: func(cmd *cobra.Command, args []string) error {
			if opts.Postgres == "" && len(args) == 0 {
				return fmt.Errorf("requires at least one path, or --postgres")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(cmd, opts, args)
		},
	}

	cmd.Flags().StringVar(&opts.Postgres, "postgres", "", "PostgreSQL DSN to import tables from")
	cmd.Flags().StringSliceVar(&opts.Tables, "tables", nil, "Tables to import with --postgres (default: all public tables)")

	return cmd
}

func runLoad(cmd *cobra.Command, opts *loadOptions, args []string) error {
	cc, cleanup, err := newCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	var loaded []string
	for _, path := range args {
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("cannot load %s: %w", path, err)
		}
		var names []string
		if info.IsDir() {
			names, err = cc.Loader.LoadDir(cmd.Context(), path)
		} else {
			names, err = cc.Loader.LoadFile(path)
		}
		if err != nil {
			return err
		}
		loaded = append(loaded, names...)
	}

	if opts.Postgres != "" {
		names, err := cc.Loader.LoadPostgres(cmd.Context(), opts.Postgres, opts.Tables)
		if err != nil {
			return fmt.Errorf("postgres import failed: %w", err)
		}
		loaded = append(loaded, names...)
	}

	r := cc.Renderer
	r.Printf("Loaded %d tables\n\n", len(loaded))
	for _, name := range cc.Store.Names() {
		rel, err := cc.Store.Get(name)
		if err != nil {
			continue
		}
		r.Printf("  %-24s %5d rows  (%s)\n", name, rel.RowCount(), strings.Join(rel.Columns, ", "))
	}

	snap := cc.Graph.Snapshot(0)
	if len(snap.Links) > 0 {
		r.Println()
		r.Printf("Relationships (%d):\n", len(snap.Links))
		for _, e := range snap.Links {
			label := "FK"
			if e.Kind == graph.EdgeInferred {
				label = fmt.Sprintf("inferred %.0f%%", e.Confidence*100)
			}
			r.Printf("  %s.%s -> %s.%s  [%s]\n",
				e.From, strings.Join(e.FromColumns, ","),
				e.To, strings.Join(e.ToColumns, ","), label)
		}
	}
	return nil
}
