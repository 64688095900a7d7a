package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-fan/internal/automation"
)

// ErrCodeExecutionFailed marks a firing whose action chain failed.
const ErrCodeExecutionFailed = "execution_failed"

// fireRequest is the optional body of POST /automations/{id}/fire.
// Payload and Raw are exposed to action templates as .Payload and .Raw.
type fireRequest struct {
	Payload map[string]any `json:"payload"`
	Raw     string         `json:"raw"`
}

// handleListAutomations returns every registered automation.
func (s *Server) handleListAutomations(w http.ResponseWriter, _ *http.Request) {
	automations := []automation.Automation{}
	if s.automations != nil {
		automations = s.automations.List()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"automations": automations,
		"count":       len(automations),
	})
}

// handleGetAutomation returns a single automation.
func (s *Server) handleGetAutomation(w http.ResponseWriter, r *http.Request) {
	if s.automations == nil {
		writeNotFound(w, "automation not found")
		return
	}

	a, err := s.automations.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.writeAutomationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// handleFireAutomation runs an automation immediately and returns the
// execution. A failed chain still returns the execution with a 422.
func (s *Server) handleFireAutomation(w http.ResponseWriter, r *http.Request) {
	if s.engine == nil {
		writeNotFound(w, "automation not found")
		return
	}
	id := chi.URLParam(r, "id")

	var req fireRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeBadRequest(w, "invalid JSON body")
			return
		}
	}

	exec, err := s.engine.Fire(r.Context(), id, automation.Event{
		Source:  automation.SourceAPI,
		Payload: req.Payload,
		Raw:     req.Raw,
	})
	if err != nil {
		if exec == nil {
			s.writeAutomationError(w, err)
			return
		}
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"status":    http.StatusUnprocessableEntity,
			"code":      ErrCodeExecutionFailed,
			"message":   exec.Error,
			"execution": exec,
		})
		return
	}

	writeJSON(w, http.StatusOK, exec)
}

// handleListExecutions returns recent executions of an automation,
// newest first. ?limit= caps the count (default 10, max 100).
func (s *Server) handleListExecutions(w http.ResponseWriter, r *http.Request) {
	if s.engine == nil {
		writeNotFound(w, "automation not found")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}

	executions, err := s.engine.ListExecutions(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		s.writeAutomationError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"executions": executions,
		"count":      len(executions),
	})
}

// writeAutomationError maps automation errors to HTTP responses.
func (s *Server) writeAutomationError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, automation.ErrAutomationNotFound):
		writeNotFound(w, "automation not found")
	case errors.Is(err, automation.ErrAutomationDisabled):
		writeError(w, http.StatusConflict, ErrCodeConflict, "automation is disabled")
	default:
		s.writeControlError(w, err)
	}
}
