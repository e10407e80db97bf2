// Package server exposes the QueryLens HTTP API: query execution in final
// and step modes, dataset uploads, table and relationship-graph inspection,
// constraint simulation, and query history.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/handlers"
	"golang.org/x/sync/errgroup"

	"github.com/querylens-io/querylens/internal/engine"
	"github.com/querylens-io/querylens/internal/graph"
	"github.com/querylens-io/querylens/internal/history"
	"github.com/querylens-io/querylens/internal/loader"
)

// History is the slice of the history store the API consumes. Nil disables
// the history endpoints.
type History interface {
	List(ctx context.Context, limit int) ([]history.Entry, error)
	Clear(ctx context.Context) error
}

// Config holds the server's collaborators and listen settings.
type Config struct {
	Engine  *engine.Engine
	Graph   *graph.Graph
	Loader  *loader.Loader
	History History

	Host      string
	Port      int
	StaticDir string

	// Watch reloads DataDir on file changes while serving.
	Watch   bool
	DataDir string

	Logger *slog.Logger
}

// Server is the QueryLens HTTP server.
type Server struct {
	cfg    Config
	logger *slog.Logger
}

func New(cfg Config) (*Server, error) {
	if cfg.Engine == nil {
		return nil, fmt.Errorf("server requires an engine")
	}
	if cfg.Graph == nil {
		cfg.Graph = graph.New()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Loader == nil {
		cfg.Loader = loader.New(cfg.Engine.Store(),
			loader.WithGraph(cfg.Graph), loader.WithLogger(logger))
	}
	return &Server{cfg: cfg, logger: logger}, nil
}

// Handler builds the full route tree, including middleware and CORS.
func (s *Server) Handler() http.Handler {
	r := chi.NewMux()
	r.Use(
		middleware.Logger,
		middleware.Recoverer,
		middleware.Compress(5),
	)

	r.Route("/api", func(r chi.Router) {
		r.Post("/query", s.handleQuery)

		r.Get("/tables", s.handleTables)
		r.Get("/table/{name}", s.handleTable)

		r.Post("/upload/sql", s.handleUploadSQL)
		r.Post("/upload/csv", s.handleUploadCSV)
		r.Post("/upload/json", s.handleUploadJSON)

		r.Get("/graph", s.handleGraph)
		r.Delete("/graph", s.handleGraphReset)
		r.Get("/graph/edge/{from}/{to}", s.handleGraphEdge)
		r.Get("/graph/subgraph", s.handleGraphSubgraph)
		r.Get("/graph/criticality", s.handleGraphCriticality)

		r.Post("/simulate/delete", s.handleSimulateDelete)
		r.Post("/simulate/update", s.handleSimulateUpdate)

		r.Get("/history", s.handleHistory)
		r.Delete("/history", s.handleHistoryClear)
	})

	if s.cfg.StaticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(s.cfg.StaticDir)))
	}

	// Educational deployments run the SPA and API on different origins.
	return handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
	)(r)
}

// Serve runs the HTTP server, and the dataset watcher when enabled, until
// ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.Host, fmt.Sprintf("%d", s.cfg.Port))
	s.logger.Info("starting server", "addr", fmt.Sprintf("http://%s", addr))

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	if s.cfg.Watch && s.cfg.DataDir != "" && s.cfg.Loader != nil {
		eg.Go(func() error {
			err := s.cfg.Loader.Watch(egctx, s.cfg.DataDir, nil)
			if err != nil && err != context.Canceled {
				return err
			}
			return nil
		})
	}

	eg.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down server")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}
