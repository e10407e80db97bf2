package server

import (
	"net/http"

	"github.com/querylens-io/querylens/internal/engine"
)

type queryRequest struct {
	Query string `json:"query"`
	Mode  string `json:"mode"`
}

// handleQuery executes a submission in final or steps mode. The default
// mode is "final"; "steps" returns the per-step visualization records.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := decodeJSON(r, &req); err != nil {
		s.badRequest(w, "invalid request body: "+err.Error())
		return
	}
	if req.Query == "" {
		s.badRequest(w, "query is required")
		return
	}

	switch req.Mode {
	case "", "final":
		res, err := s.cfg.Engine.ExecuteQuery(r.Context(), req.Query)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, res)
	case "steps":
		res, err := s.cfg.Engine.ExecuteSteps(r.Context(), req.Query)
		if err != nil {
			// Partial step records are still useful to render alongside
			// the error, so they ride along in the error body.
			kind := engine.ErrorKind(err)
			s.writeJSON(w, statusFor(kind), stepsErrorResponse{
				Error: apiError{ErrorKind: kind, Message: err.Error()},
				Steps: res,
			})
			return
		}
		s.writeJSON(w, http.StatusOK, res)
	default:
		s.badRequest(w, "mode must be \"final\" or \"steps\"")
	}
}

type stepsErrorResponse struct {
	Error apiError            `json:"error"`
	Steps *engine.StepsResult `json:"steps,omitempty"`
}
