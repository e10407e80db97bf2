package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/querylens-io/querylens/pkg/evals/sqlite"
)

const testDataset = `
CREATE TABLE customers (
    id INTEGER PRIMARY KEY,
    name TEXT
);
CREATE TABLE orders (
    id INTEGER PRIMARY KEY,
    customer_id INTEGER REFERENCES customers (id) ON DELETE CASCADE,
    total REAL
);
INSERT INTO customers (id, name) VALUES (1, 'Alice'), (2, 'Bob');
INSERT INTO orders (id, customer_id, total) VALUES (10, 1, 25.0), (11, 2, 40.0);
`

// runCommand executes the root command with args in a temp working
// directory and returns stdout.
func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	out := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeDataDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "shop.sql"), []byte(testDataset), 0600))
	return dir
}

func TestVersionCommand(t *testing.T) {
	out, err := runCommand(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "QueryLens v")
}

func TestInitCommand(t *testing.T) {
	t.Chdir(t.TempDir())

	out, err := runCommand(t, "init", "proj")
	require.NoError(t, err)
	assert.Contains(t, out, "querylens.yaml")

	cfg, err := os.ReadFile(filepath.Join("proj", "querylens.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(cfg), "engine: sqlite")
	assert.Contains(t, string(cfg), "data_dir: data")

	_, err = os.Stat(filepath.Join("proj", "data", "example.sql"))
	require.NoError(t, err)

	// the generated dataset must itself load
	out, err = runCommand(t, "tables", "--data-dir", filepath.Join("proj", "data"), "--no-history")
	require.NoError(t, err)
	assert.Contains(t, out, "customers")
	assert.Contains(t, out, "orders")
}

func TestInitRefusesOverwrite(t *testing.T) {
	t.Chdir(t.TempDir())
	require.NoError(t, os.WriteFile("querylens.yaml", []byte("verbose: false\n"), 0600))

	_, err := runCommand(t, "init")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	_, err = runCommand(t, "init", "--force")
	require.NoError(t, err)
}

func TestTablesCommand(t *testing.T) {
	t.Chdir(t.TempDir())
	dir := writeDataDir(t)

	out, err := runCommand(t, "tables", "--data-dir", dir, "--no-history")
	require.NoError(t, err)
	assert.Contains(t, out, "customers")
	assert.Contains(t, out, "2 rows")
}

func TestTablesCommandJSON(t *testing.T) {
	t.Chdir(t.TempDir())
	dir := writeDataDir(t)

	out, err := runCommand(t, "tables", "--data-dir", dir, "--no-history", "-o", "json")
	require.NoError(t, err)

	var tables []struct {
		Name     string   `json:"name"`
		Columns  []string `json:"columns"`
		RowCount int      `json:"row_count"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &tables))
	require.Len(t, tables, 2)
	assert.Equal(t, "customers", tables[0].Name)
	assert.Equal(t, []string{"id", "name"}, tables[0].Columns)
}

func TestQueryCommand(t *testing.T) {
	t.Chdir(t.TempDir())
	dir := writeDataDir(t)

	out, err := runCommand(t, "query", "--data-dir", dir, "--no-history", "-o", "json",
		"SELECT name FROM customers ORDER BY name")
	require.NoError(t, err)

	var res struct {
		Columns []string         `json:"columns"`
		Rows    []map[string]any `json:"rows"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, []string{"name"}, res.Columns)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, "Alice", res.Rows[0]["name"])
}

func TestQueryCommandError(t *testing.T) {
	t.Chdir(t.TempDir())
	dir := writeDataDir(t)

	_, err := runCommand(t, "query", "--data-dir", dir, "--no-history",
		"SELECT * FROM nope")
	require.Error(t, err)
}

func TestStepsCommand(t *testing.T) {
	t.Chdir(t.TempDir())
	dir := writeDataDir(t)

	out, err := runCommand(t, "steps", "--data-dir", dir, "--no-history",
		"SELECT name FROM customers WHERE id = 1")
	require.NoError(t, err)
	assert.Contains(t, out, "Step 1: FROM")
	assert.Contains(t, out, "Load table customers")
	assert.Contains(t, out, "Step 2: WHERE")
	assert.Contains(t, out, "Final result")
}

func TestLoadCommand(t *testing.T) {
	t.Chdir(t.TempDir())
	dir := writeDataDir(t)

	out, err := runCommand(t, "load", "--no-history", filepath.Join(dir, "shop.sql"))
	require.NoError(t, err)
	assert.Contains(t, out, "Loaded 2 tables")
	assert.Contains(t, out, "orders.customer_id -> customers.id")
}

func TestLoadCommandRequiresArgs(t *testing.T) {
	_, err := runCommand(t, "load", "--no-history")
	require.Error(t, err)
}

func TestGraphCommand(t *testing.T) {
	t.Chdir(t.TempDir())
	dir := writeDataDir(t)

	out, err := runCommand(t, "graph", "--data-dir", dir, "--no-history")
	require.NoError(t, err)
	assert.Contains(t, out, "customers")
	assert.Contains(t, out, "ON DELETE CASCADE")
}

func TestGraphCommandJSON(t *testing.T) {
	t.Chdir(t.TempDir())
	dir := writeDataDir(t)

	out, err := runCommand(t, "graph", "--data-dir", dir, "--no-history", "-o", "json")
	require.NoError(t, err)

	var snap struct {
		Nodes []struct {
			Name string `json:"id"`
		} `json:"nodes"`
		Links []struct {
			From string `json:"source"`
			To   string `json:"target"`
		} `json:"links"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &snap))
	assert.Len(t, snap.Nodes, 2)
	require.Len(t, snap.Links, 1)
	assert.Equal(t, "orders", snap.Links[0].From)
}

func TestGraphCriticality(t *testing.T) {
	t.Chdir(t.TempDir())
	dir := writeDataDir(t)

	out, err := runCommand(t, "graph", "--data-dir", dir, "--no-history", "--criticality")
	require.NoError(t, err)
	assert.Contains(t, out, "customers")
	assert.Contains(t, out, "score")
}

func TestHistoryCommand(t *testing.T) {
	t.Chdir(t.TempDir())
	dir := writeDataDir(t)

	// record one query, then list it
	_, err := runCommand(t, "query", "--data-dir", dir, "-o", "json",
		"SELECT * FROM customers")
	require.NoError(t, err)

	out, err := runCommand(t, "history")
	require.NoError(t, err)
	assert.Contains(t, out, "SELECT * FROM customers")

	out, err = runCommand(t, "history", "--clear")
	require.NoError(t, err)
	assert.Contains(t, out, "History cleared")
}

func TestHistoryDisabled(t *testing.T) {
	t.Chdir(t.TempDir())

	_, err := runCommand(t, "history", "--no-history")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "history is disabled")
}

func TestConfigFileDrivesCommands(t *testing.T) {
	t.Chdir(t.TempDir())
	dir := writeDataDir(t)

	cfg := "data_dir: " + dir + "\nhistory:\n  disabled: true\n"
	require.NoError(t, os.WriteFile("querylens.yaml", []byte(cfg), 0600))

	out, err := runCommand(t, "tables")
	require.NoError(t, err)
	assert.Contains(t, out, "customers")
}

func TestUnknownEngineFails(t *testing.T) {
	t.Chdir(t.TempDir())
	dir := writeDataDir(t)

	_, err := runCommand(t, "query", "--data-dir", dir, "--no-history",
		"--engine", "oracle", "SELECT 1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "oracle")
}

func TestRenderRelationMarkdownEmpty(t *testing.T) {
	var buf bytes.Buffer
	err := renderRowsMarkdown(&buf, []string{"a"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "(0 rows)\n", buf.String())
}

func TestEscapeCSV(t *testing.T) {
	assert.Equal(t, "plain", escapeCSV("plain"))
	assert.Equal(t, `"a,b"`, escapeCSV("a,b"))
	assert.Equal(t, `"say ""hi"""`, escapeCSV(`say "hi"`))
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "NULL", formatValue(nil))
	assert.Equal(t, "7", formatValue(int64(7)))
	assert.True(t, strings.HasPrefix(formatValue(1.5), "1.5"))
}
