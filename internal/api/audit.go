package api

import (
	"net/http"
	"strconv"

	"github.com/nerrad567/gray-logic-fan/internal/audit"
)

// handleListAudit returns paginated fan command records, newest first.
//
// Query parameters:
//   - fan_id: filter by fan
//   - source: filter by command source (api, mqtt)
//   - limit: max results (default 50, max 200)
//   - offset: pagination offset
func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		writeNotFound(w, "audit logging not configured")
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		FanID:  q.Get("fan_id"),
		Source: q.Get("source"),
	}

	switch filter.Source {
	case "", audit.SourceAPI, audit.SourceMQTT:
	default:
		writeBadRequest(w, "source must be api or mqtt")
		return
	}

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeBadRequest(w, "offset must be a non-negative integer")
			return
		}
		filter.Offset = n
	}

	result, err := s.audit.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list audit logs", "error", err)
		writeInternalError(w, "failed to list audit logs")
		return
	}

	writeJSON(w, http.StatusOK, result)
}
