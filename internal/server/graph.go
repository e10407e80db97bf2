package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
)

// handleGraph returns the full relationship graph as nodes and links.
// min_confidence filters out inferred edges below the threshold.
func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	minConf := 0.0
	if v := r.URL.Query().Get("min_confidence"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 || f > 1 {
			s.badRequest(w, "min_confidence must be a number between 0 and 1")
			return
		}
		minConf = f
	}
	s.writeJSON(w, http.StatusOK, s.cfg.Graph.Snapshot(minConf))
}

// handleGraphReset clears all loaded tables and relationship edges.
func (s *Server) handleGraphReset(w http.ResponseWriter, r *http.Request) {
	s.cfg.Engine.Store().Clear()
	s.cfg.Graph.Clear()
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// handleGraphEdge returns every edge between two tables.
func (s *Server) handleGraphEdge(w http.ResponseWriter, r *http.Request) {
	from := chi.URLParam(r, "from")
	to := chi.URLParam(r, "to")

	edges := s.cfg.Graph.EdgesBetween(from, to)
	if len(edges) == 0 {
		s.notFound(w, "no edges between \""+from+"\" and \""+to+"\"")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"edges": edges})
}

// handleGraphSubgraph returns the neighborhood of one or more root tables.
// tables is a comma-separated list; depth bounds the traversal (default 1).
func (s *Server) handleGraphSubgraph(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("tables")
	if raw == "" {
		s.badRequest(w, "tables query parameter is required")
		return
	}
	var roots []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			roots = append(roots, t)
		}
	}

	depth := 1
	if v := r.URL.Query().Get("depth"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.badRequest(w, "depth must be a non-negative integer")
			return
		}
		depth = n
	}

	s.writeJSON(w, http.StatusOK, s.cfg.Graph.Subgraph(roots, depth))
}

// handleGraphCriticality ranks tables by how much damage deleting them
// could do, based on dependent reachability and blocking constraints.
func (s *Server) handleGraphCriticality(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{"tables": s.cfg.Graph.Criticality()})
}
