package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-fan/internal/audit"
	"github.com/nerrad567/gray-logic-fan/internal/control"
	"github.com/nerrad567/gray-logic-fan/internal/fan"
)

// FanResponse describes one fan and its current state.
type FanResponse struct {
	ID     string       `json:"id"`
	Name   string       `json:"name"`
	Traits fan.Traits   `json:"traits"`
	State  fan.Snapshot `json:"state"`
}

// FanStateEvent is the payload of fan.state_changed WebSocket events.
type FanStateEvent struct {
	FanID string `json:"fan_id"`
	fan.Snapshot
}

// fanResponse builds the response for id from its config and snap.
func (s *Server) fanResponse(id string, snap fan.Snapshot) FanResponse {
	cfg, _ := s.fans.Config(id)
	name := cfg.Name
	if name == "" {
		name = id
	}
	return FanResponse{
		ID:     id,
		Name:   name,
		Traits: fan.NewTraits(cfg.Oscillation, cfg.SpeedControl),
		State:  snap,
	}
}

// handleListFans returns every configured fan in configuration order.
func (s *Server) handleListFans(w http.ResponseWriter, r *http.Request) {
	snaps, err := s.fans.Snapshots(r.Context())
	if err != nil {
		s.writeControlError(w, err)
		return
	}

	ids := s.fans.IDs()
	fans := make([]FanResponse, 0, len(ids))
	for _, id := range ids {
		fans = append(fans, s.fanResponse(id, snaps[id]))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"fans":  fans,
		"count": len(fans),
	})
}

// handleGetFan returns a single fan.
func (s *Server) handleGetFan(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	snap, err := s.fans.Snapshot(r.Context(), id)
	if err != nil {
		s.writeControlError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, s.fanResponse(id, snap))
}

// handleGetFanState returns only the state of a fan.
func (s *Server) handleGetFanState(w http.ResponseWriter, r *http.Request) {
	snap, err := s.fans.Snapshot(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeControlError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, snap)
}

// handleSetFanState applies a partial command such as
// {"state":"ON","speed":"low"} and returns the resulting state.
func (s *Server) handleSetFanState(w http.ResponseWriter, r *http.Request) {
	var cmd control.Command
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	s.applyCommand(w, r, cmd)
}

// handleToggleFan flips the power of a fan.
func (s *Server) handleToggleFan(w http.ResponseWriter, r *http.Request) {
	toggle := control.PowerToggle
	s.applyCommand(w, r, control.Command{State: &toggle})
}

func (s *Server) applyCommand(w http.ResponseWriter, r *http.Request, cmd control.Command) {
	id := chi.URLParam(r, "id")

	snap, err := s.fans.Apply(r.Context(), id, cmd)
	s.recordCommand(r, id, cmd, snap, err)
	if err != nil {
		s.writeControlError(w, err)
		return
	}

	s.logger.Info("fan command applied",
		"fan", id,
		"on", snap.On,
		"oscillating", snap.Oscillating,
		"speed", snap.Speed.String(),
		"request_id", r.Context().Value(ctxKeyRequestID),
	)
	writeJSON(w, http.StatusOK, snap)
}

// recordCommand writes the command to the audit log, if one is configured.
// Commands rejected before reaching the control loop are not recorded.
func (s *Server) recordCommand(r *http.Request, id string, cmd control.Command, snap fan.Snapshot, applyErr error) {
	if s.audit == nil {
		return
	}
	entry := audit.NewEntry(id, audit.SourceAPI, cmd, snap, applyErr)
	if err := s.audit.Create(context.WithoutCancel(r.Context()), entry); err != nil {
		s.logger.Warn("recording fan command failed", "fan", id, "error", err)
	}
}

// writeControlError maps control errors to HTTP responses.
func (s *Server) writeControlError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, control.ErrFanNotFound):
		writeNotFound(w, "fan not found")
	case errors.Is(err, control.ErrInvalidCommand):
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
	case errors.Is(err, control.ErrLoopStopped):
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "fan control is shutting down")
	default:
		s.logger.Error("fan operation failed", "error", err)
		writeInternalError(w, "fan operation failed")
	}
}
