package loader

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/querylens-io/querylens/internal/graph"
)

func TestLoadCSV_TypeInference(t *testing.T) {
	l, st, _ := newTestLoader()

	input := strings.Join([]string{
		"id,price,active,city,notes",
		"1,9.50,true,Vienna,",
		"2,12,false,Graz,NULL",
		"3,NULL,true,Linz,fine",
	}, "\n")
	require.NoError(t, l.LoadCSV("shops", strings.NewReader(input)))

	rel, err := st.Get("shops")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "price", "active", "city", "notes"}, rel.Columns)
	require.Len(t, rel.Rows, 3)

	assert.Equal(t, int64(1), rel.Rows[0]["id"])
	assert.Equal(t, 9.5, rel.Rows[0]["price"], "a single decimal makes the column float")
	assert.Equal(t, 12.0, rel.Rows[1]["price"])
	assert.Equal(t, true, rel.Rows[0]["active"])
	assert.Equal(t, "Vienna", rel.Rows[0]["city"])
	assert.Nil(t, rel.Rows[0]["notes"])
	assert.Nil(t, rel.Rows[1]["notes"])
	assert.Nil(t, rel.Rows[2]["price"])
}

func TestLoadCSV_MixedColumnFallsBackToString(t *testing.T) {
	l, st, _ := newTestLoader()

	input := "code\ntrue\n7\nabc\n"
	require.NoError(t, l.LoadCSV("codes", strings.NewReader(input)))

	rel, err := st.Get("codes")
	require.NoError(t, err)
	assert.Equal(t, "true", rel.Rows[0]["code"])
	assert.Equal(t, "7", rel.Rows[1]["code"])
}

func TestLoadCSV_EmptyFile(t *testing.T) {
	l, _, _ := newTestLoader()
	err := l.LoadCSV("empty", strings.NewReader(""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty file")
}

func TestLoadCSV_InfersRelationships(t *testing.T) {
	l, _, g := newTestLoader()

	_, err := l.LoadSQL(`
CREATE TABLE users (id INT, name VARCHAR(50));
INSERT INTO users VALUES (1, 'Alma'), (2, 'Berta'), (3, 'Carol'), (4, 'Dora');`)
	require.NoError(t, err)

	input := strings.Join([]string{
		"order_no,user_id",
		"10,1",
		"11,1",
		"12,2",
		"13,3",
	}, "\n")
	require.NoError(t, l.LoadCSV("orders", strings.NewReader(input)))

	edges := g.EdgesBetween("orders", "users")
	require.NotEmpty(t, edges, "user_id should be inferred as referencing users.id")
	assert.Equal(t, graph.EdgeInferred, edges[0].Kind)
	assert.Equal(t, []string{"user_id"}, edges[0].FromColumns)
	assert.Equal(t, []string{"id"}, edges[0].ToColumns)
	assert.Greater(t, edges[0].Confidence, 0.5)
}

func TestLoadJSON_ColumnsAndValues(t *testing.T) {
	l, st, _ := newTestLoader()

	data := []byte(`[
		{"id": 1, "name": "Alma", "score": 9.5},
		{"id": 2, "name": "Berta", "active": true, "tags": ["a", "b"]},
		{"id": 3, "name": null}
	]`)
	require.NoError(t, l.LoadJSON("players", data))

	rel, err := st.Get("players")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name", "score", "active", "tags"}, rel.Columns)
	require.Len(t, rel.Rows, 3)

	assert.Equal(t, int64(1), rel.Rows[0]["id"], "whole numbers come out as int64")
	assert.Equal(t, 9.5, rel.Rows[0]["score"])
	assert.Equal(t, true, rel.Rows[1]["active"])
	assert.Equal(t, `["a", "b"]`, rel.Rows[1]["tags"], "nested values keep raw JSON")
	assert.Nil(t, rel.Rows[2]["name"])
	assert.Nil(t, rel.Rows[0]["active"], "missing keys are backfilled with nil")
}

func TestLoadJSON_Errors(t *testing.T) {
	l, _, _ := newTestLoader()

	err := l.LoadJSON("bad", []byte(`{"not": "an array"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "array")

	err = l.LoadJSON("bad", []byte(`[1, 2, 3]`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not an object")

	err = l.LoadJSON("bad", []byte(`{"broken`))
	require.Error(t, err)
}

func TestLoadFile_UnsupportedExtension(t *testing.T) {
	l, _, _ := newTestLoader()
	path := filepath.Join(t.TempDir(), "data.xml")
	require.NoError(t, os.WriteFile(path, []byte("<x/>"), 0o644))

	_, err := l.LoadFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported file type")
}

func TestLoadDir_SQLBeforeData(t *testing.T) {
	l, st, g := newTestLoader()
	dir := t.TempDir()

	schema := `
CREATE TABLE users (id INT, name VARCHAR(50));
INSERT INTO users VALUES (1, 'Alma'), (2, 'Berta'), (3, 'Carol'), (4, 'Dora');`
	csvData := "order_no,user_id\n10,1\n11,1\n12,2\n13,3\n"
	jsonData := `[{"sku": "a-1", "stock": 5}]`

	require.NoError(t, os.WriteFile(filepath.Join(dir, "schema.sql"), []byte(schema), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "orders.csv"), []byte(csvData), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "extra"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "extra", "inventory.json"), []byte(jsonData), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	loaded, err := l.LoadDir(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"inventory", "orders", "users"}, loaded)
	assert.Equal(t, 3, st.Len())

	// The schema loaded first, so the CSV could infer its FK.
	assert.NotEmpty(t, g.EdgesBetween("orders", "users"))
}

func TestLoadDir_PropagatesParseErrors(t *testing.T) {
	l, _, _ := newTestLoader()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.sql"), []byte("CREATE TABLE broken x INT);"), 0o644))

	_, err := l.LoadDir(context.Background(), dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.sql")
}

func TestWatch_ReloadsOnChange(t *testing.T) {
	l, st, _ := newTestLoader()
	dir := t.TempDir()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan struct{}, 4)
	done := make(chan error, 1)
	go func() {
		done <- l.Watch(ctx, dir, func() { reloaded <- struct{}{} })
	}()

	// Give the watcher a moment to register before writing.
	time.Sleep(100 * time.Millisecond)
	csvData := "id,name\n1,Alma\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "people.csv"), []byte(csvData), 0o644))

	select {
	case <-reloaded:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
	assert.True(t, st.Has("people"))

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop on cancel")
	}
}
