package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/querylens-io/querylens/internal/config"
)

// starterConfig mirrors the config schema for the generated file.
type starterConfig struct {
	DataDir     string `yaml:"data_dir"`
	Watch       bool   `yaml:"watch"`
	PreviewRows int    `yaml:"preview_rows"`
	Evaluator   struct {
		Engine string `yaml:"engine"`
		Path   string `yaml:"path,omitempty"`
	} `yaml:"evaluator"`
	Server struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"server"`
	History struct {
		Path     string `yaml:"path"`
		Disabled bool   `yaml:"disabled"`
	} `yaml:"history"`
}

const exampleSchema = `-- Example dataset for QueryLens.
CREATE TABLE customers (
    id INTEGER PRIMARY KEY,
    name TEXT,
    city TEXT
);

CREATE TABLE orders (
    id INTEGER PRIMARY KEY,
    customer_id INTEGER REFERENCES customers (id) ON DELETE CASCADE,
    total REAL
);

INSERT INTO customers (id, name, city) VALUES
    (1, 'Alice', 'Lisbon'),
    (2, 'Bob', 'Porto'),
    (3, 'Carol', 'Faro');

INSERT INTO orders (id, customer_id, total) VALUES
    (10, 1, 120.50),
    (11, 1, 75.00),
    (12, 2, 19.99);
`

func newInitCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a QueryLens project",
		Long: `Create a starter querylens.yaml and a data/ directory with an example
dataset in the given directory (default: the current one).`,
		Example: `  # Initialize in the current directory
  querylens init

  # Initialize a new directory
  querylens init my-project

  # Overwrite an existing config
  querylens init --force`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			return runInit(cmd, dir, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing configuration")

	return cmd
}

func runInit(cmd *cobra.Command, dir string, force bool) error {
	if dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	configPath := filepath.Join(dir, config.ConfigFileName)
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("%s already exists. Use --force to overwrite", config.ConfigFileName)
	}

	def := config.Default()
	var sc starterConfig
	sc.DataDir = "data"
	sc.PreviewRows = def.PreviewRows
	sc.Evaluator.Engine = def.Evaluator.Engine
	sc.Server.Host = def.Server.Host
	sc.Server.Port = def.Server.Port
	sc.History.Path = def.History.Path

	data, err := yaml.Marshal(&sc)
	if err != nil {
		return fmt.Errorf("failed to render config: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", configPath, err)
	}

	dataDir := filepath.Join(dir, "data")
	if err := os.MkdirAll(dataDir, 0750); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	schemaPath := filepath.Join(dataDir, "example.sql")
	if _, err := os.Stat(schemaPath); os.IsNotExist(err) || force {
		if err := os.WriteFile(schemaPath, []byte(exampleSchema), 0600); err != nil {
			return fmt.Errorf("failed to write example dataset: %w", err)
		}
	}

	r := newRenderer(cmd)
	r.Printf("Created %s\n", configPath)
	r.Printf("Created %s\n", schemaPath)
	r.Println()
	r.Println("Next steps:")
	r.Println("  1. Put your SQL/CSV/JSON datasets in data/")
	r.Println("  2. Run 'querylens steps \"SELECT * FROM customers\"' to see a query run")
	r.Println("  3. Run 'querylens serve' for the web UI API")

	return nil
}
