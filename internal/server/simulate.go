package server

import (
	"net/http"
)

type simulateRequest struct {
	Table  string `json:"table"`
	Column string `json:"column,omitempty"`
}

// handleSimulateDelete predicts what a DELETE on the table would do:
// which constraints block it, which rows cascade, and which inferred
// relationships are at risk.
func (s *Server) handleSimulateDelete(w http.ResponseWriter, r *http.Request) {
	var req simulateRequest
	if err := decodeJSON(r, &req); err != nil {
		s.badRequest(w, "invalid request body: "+err.Error())
		return
	}
	if req.Table == "" {
		s.badRequest(w, "table is required")
		return
	}

	res, err := s.cfg.Graph.SimulateDelete(req.Table)
	if err != nil {
		s.notFound(w, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

// handleSimulateUpdate predicts what updating a key column would do.
// An empty column simulates updating any referenced key.
func (s *Server) handleSimulateUpdate(w http.ResponseWriter, r *http.Request) {
	var req simulateRequest
	if err := decodeJSON(r, &req); err != nil {
		s.badRequest(w, "invalid request body: "+err.Error())
		return
	}
	if req.Table == "" {
		s.badRequest(w, "table is required")
		return
	}

	res, err := s.cfg.Graph.SimulateUpdate(req.Table, req.Column)
	if err != nil {
		s.notFound(w, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}
