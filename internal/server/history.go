package server

import (
	"net/http"
	"strconv"

	"github.com/querylens-io/querylens/internal/history"
)

// handleHistory returns recent query executions, newest first. The limit
// query parameter caps the page size.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.cfg.History == nil {
		s.writeJSON(w, http.StatusOK, map[string]any{"entries": []history.Entry{}})
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.badRequest(w, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	entries, err := s.cfg.History.List(r.Context(), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// handleHistoryClear deletes all recorded history.
func (s *Server) handleHistoryClear(w http.ResponseWriter, r *http.Request) {
	if s.cfg.History == nil {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
		return
	}
	if err := s.cfg.History.Clear(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}
