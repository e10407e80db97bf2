package server

import (
	"encoding/json"
	"net/http"

	"github.com/querylens-io/querylens/internal/engine"
)

// apiError is the uniform error body for every API failure.
type apiError struct {
	ErrorKind string `json:"error_kind"`
	Message   string `json:"message"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("failed to encode response", "error", err)
	}
}

// writeError classifies err and writes the matching status and body.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	kind := engine.ErrorKind(err)
	s.writeJSON(w, statusFor(kind), apiError{ErrorKind: kind, Message: err.Error()})
}

func (s *Server) badRequest(w http.ResponseWriter, msg string) {
	s.writeJSON(w, http.StatusBadRequest, apiError{ErrorKind: "parse", Message: msg})
}

func (s *Server) notFound(w http.ResponseWriter, msg string) {
	s.writeJSON(w, http.StatusNotFound, apiError{ErrorKind: "table_not_found", Message: msg})
}

func statusFor(kind string) int {
	switch kind {
	case "parse":
		return http.StatusBadRequest
	case "table_not_found":
		return http.StatusNotFound
	case "evaluation":
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
