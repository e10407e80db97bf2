// Package loader ingests datasets into the table store and relationship
// graph: SQL DDL text with foreign keys and seed rows, CSV and JSON files
// with per-column type inference, live Postgres schemas, and whole data
// directories with change watching.
package loader

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/querylens-io/querylens/internal/graph"
	"github.com/querylens-io/querylens/internal/store"
	"github.com/querylens-io/querylens/pkg/relation"
)

// Loader writes parsed datasets into a store and, when one is attached, a
// relationship graph.
type Loader struct {
	store  *store.Store
	graph  *graph.Graph
	logger *slog.Logger

	// parallelism bounds concurrent file parsing during directory loads.
	parallelism int
}

// Option configures a Loader.
type Option func(*Loader)

// WithLogger sets the logger. Defaults to a discarding logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) { l.logger = logger }
}

// WithGraph attaches a relationship graph to receive table nodes, FK edges,
// and inferred edges.
func WithGraph(g *graph.Graph) Option {
	return func(l *Loader) { l.graph = g }
}

// WithParallelism bounds concurrent parsing during directory loads.
func WithParallelism(n int) Option {
	return func(l *Loader) {
		if n > 0 {
			l.parallelism = n
		}
	}
}

func New(st *store.Store, opts ...Option) *Loader {
	l := &Loader{store: st, parallelism: 4}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = slog.New(slog.DiscardHandler)
	}
	return l
}

// LoadFile dispatches on the file extension: .sql, .csv, or .json. The table
// name for CSV and JSON files is the file's base name without extension.
func (l *Loader) LoadFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	table := tableNameFromPath(path)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".sql":
		return l.LoadSQL(string(data))
	case ".csv":
		if err := l.LoadCSV(table, strings.NewReader(string(data))); err != nil {
			return nil, err
		}
		return []string{table}, nil
	case ".json":
		if err := l.LoadJSON(table, data); err != nil {
			return nil, err
		}
		return []string{table}, nil
	default:
		return nil, fmt.Errorf("unsupported file type: %s", path)
	}
}

// LoadDir loads every .sql, .csv, and .json file under dir. SQL files are
// applied before the others so declared schemas and FK edges exist when CSV
// and JSON tables run relationship inference. Parsing runs concurrently with
// a bounded group; the store and graph serialize writes internally.
func (l *Loader) LoadDir(ctx context.Context, dir string) ([]string, error) {
	var sqlFiles, dataFiles []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".sql":
			sqlFiles = append(sqlFiles, path)
		case ".csv", ".json":
			dataFiles = append(dataFiles, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", dir, err)
	}
	sort.Strings(sqlFiles)
	sort.Strings(dataFiles)

	var mu sync.Mutex
	var loaded []string

	for _, batch := range [][]string{sqlFiles, dataFiles} {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(l.parallelism)
		for _, path := range batch {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				tables, err := l.LoadFile(path)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				l.logger.Info("loaded file", "path", path, "tables", len(tables))
				mu.Lock()
				loaded = append(loaded, tables...)
				mu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return loaded, err
		}
	}
	sort.Strings(loaded)
	return loaded, nil
}

// put places a relation in the store and mirrors it as a graph node.
func (l *Loader) put(name, source string, rel relation.Relation) {
	l.store.Put(name, rel)
	if l.graph != nil {
		l.graph.AddTable(name, source, rel.Columns, rel.RowCount())
	}
}

// inferEdges runs relationship inference for a freshly loaded table against
// everything else in the store and records the results.
func (l *Loader) inferEdges(name string, rel relation.Relation) {
	if l.graph == nil {
		return
	}
	others := l.store.Snapshot()
	delete(others, name)

	for _, inf := range graph.Infer(name, rel, others) {
		l.logger.Debug("inferred relationship",
			"from", inf.From+"."+inf.FromColumn, "to", inf.To+"."+inf.ToColumn, "confidence", inf.Confidence)
		l.graph.AddInferred(inf.From, inf.To, inf.FromColumn, inf.ToColumn, inf.Confidence, inf.Stats)
	}
}

func tableNameFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
