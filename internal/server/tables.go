package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/querylens-io/querylens/internal/store"
	"github.com/querylens-io/querylens/pkg/relation"
)

type tableSummary struct {
	Name     string   `json:"name"`
	Columns  []string `json:"columns"`
	RowCount int      `json:"row_count"`
	Source   string   `json:"source,omitempty"`
}

// handleTables lists every loaded table with its columns and row count.
func (s *Server) handleTables(w http.ResponseWriter, r *http.Request) {
	st := s.cfg.Engine.Store()
	out := make([]tableSummary, 0, st.Len())
	for _, name := range st.Names() {
		rel, err := st.Get(name)
		if err != nil {
			continue
		}
		summary := tableSummary{Name: name, Columns: rel.Columns, RowCount: rel.RowCount()}
		if details, ok := s.cfg.Graph.Table(name); ok {
			summary.Source = details.Node.Source
		}
		out = append(out, summary)
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"tables": out})
}

type tableResponse struct {
	Name     string         `json:"name"`
	Columns  []string       `json:"columns"`
	Rows     []relation.Row `json:"rows"`
	RowCount int            `json:"row_count"`
}

// handleTable returns a table preview. The limit query parameter caps the
// returned rows (default 50); row_count always reports the full size.
func (s *Server) handleTable(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	rel, err := s.cfg.Engine.Store().Get(name)
	if err != nil {
		var nf *store.TableNotFoundError
		if errors.As(err, &nf) {
			s.notFound(w, err.Error())
			return
		}
		s.writeError(w, err)
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.badRequest(w, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	preview := rel.Head(limit).Sanitized()
	s.writeJSON(w, http.StatusOK, tableResponse{
		Name:     name,
		Columns:  rel.Columns,
		Rows:     preview.Rows,
		RowCount: rel.RowCount(),
	})
}
