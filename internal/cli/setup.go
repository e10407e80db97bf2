package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/querylens-io/querylens/internal/cli/output"
	"github.com/querylens-io/querylens/internal/config"
	"github.com/querylens-io/querylens/internal/engine"
	"github.com/querylens-io/querylens/internal/graph"
	"github.com/querylens-io/querylens/internal/history"
	"github.com/querylens-io/querylens/internal/loader"
	"github.com/querylens-io/querylens/internal/store"
	"github.com/querylens-io/querylens/pkg/eval"
)

// commandContext holds the wired-up collaborators every data command needs.
type commandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Store    *store.Store
	Graph    *graph.Graph
	Loader   *loader.Loader
	Engine   *engine.Engine
	History  *history.Store
	Renderer *output.Renderer
}

// newCommandContext builds the store, graph, loader, engine and history
// store from configuration, and loads the configured data directory.
// The returned cleanup function must be called, typically via defer.
func newCommandContext(cmd *cobra.Command) (*commandContext, func(), error) {
	cfg := getConfig(cmd.Context())
	logger := getLogger(cmd.Context())

	st := store.New()
	g := graph.New()
	ld := loader.New(st, loader.WithGraph(g), loader.WithLogger(logger))

	var hist *history.Store
	if !cfg.History.Disabled && cfg.History.Path != "" {
		if dir := filepath.Dir(cfg.History.Path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return nil, nil, fmt.Errorf("failed to create history directory: %w", err)
			}
		}
		var err error
		hist, err = history.Open(cfg.History.Path, logger)
		if err != nil {
			return nil, nil, err
		}
	}

	engCfg := engine.Config{
		Store: st,
		Evaluator: eval.Config{
			Engine: cfg.Evaluator.Engine,
			Path:   cfg.Evaluator.Path,
			Params: cfg.Evaluator.Params,
		},
		PreviewRows: cfg.PreviewRows,
		Logger:      logger,
	}
	if hist != nil {
		engCfg.History = hist
	}

	eng, err := engine.New(engCfg)
	if err != nil {
		if hist != nil {
			_ = hist.Close()
		}
		return nil, nil, err
	}

	if cfg.DataDir != "" {
		names, err := ld.LoadDir(cmd.Context(), cfg.DataDir)
		if err != nil {
			if hist != nil {
				_ = hist.Close()
			}
			return nil, nil, fmt.Errorf("failed to load data directory: %w", err)
		}
		logger.Debug("loaded data directory", "dir", cfg.DataDir, "tables", len(names))
	}

	cleanup := func() {
		if hist != nil {
			_ = hist.Close()
		}
	}

	return &commandContext{
		Cfg:      cfg,
		Logger:   logger,
		Store:    st,
		Graph:    g,
		Loader:   ld,
		Engine:   eng,
		History:  hist,
		Renderer: newRenderer(cmd),
	}, cleanup, nil
}
