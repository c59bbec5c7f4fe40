package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/ent0n29/callassist/internal/calls"
	"github.com/ent0n29/callassist/internal/callstate"
	"github.com/ent0n29/callassist/internal/schedule"
)

func (s *Server) handleCallEvent(w http.ResponseWriter, r *http.Request) {
	var ev callstate.CallEvent
	if err := decodeJSON(r, &ev); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if err := ev.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_call_event", err.Error())
		return
	}
	s.deps.Coordinator.HandleEvent(ev)
	respondJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *Server) handleListCalls(w http.ResponseWriter, _ *http.Request) {
	if s.deps.Tracker == nil {
		respondJSON(w, http.StatusOK, map[string]any{"calls": []any{}})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"calls": s.deps.Tracker.List()})
}

type pendingRequest struct {
	Number     string `json:"number"`
	Reason     string `json:"reason"`
	VoiceStyle string `json:"voice_style"`
}

func (s *Server) handleSetPending(w http.ResponseWriter, r *http.Request) {
	var req pendingRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	registry := s.deps.Coordinator.Registry()
	if err := registry.SetPending(strings.TrimSpace(req.Number), strings.TrimSpace(req.Reason), req.VoiceStyle); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_pending_call", err.Error())
		return
	}
	p, _ := registry.Peek()
	respondJSON(w, http.StatusCreated, p)
}

func (s *Server) handleGetPending(w http.ResponseWriter, _ *http.Request) {
	p, ok := s.deps.Coordinator.Registry().Peek()
	if !ok {
		respondError(w, http.StatusNotFound, "no_pending_call", "no pending call")
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (s *Server) handleClearPending(w http.ResponseWriter, _ *http.Request) {
	s.deps.Coordinator.Registry().Clear()
	w.WriteHeader(http.StatusNoContent)
}

type outgoingRequest struct {
	Number     string `json:"number"`
	Purpose    string `json:"purpose"`
	VoiceStyle string `json:"voice_style"`
}

func (s *Server) handlePlaceAICall(w http.ResponseWriter, r *http.Request) {
	var req outgoingRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	intro, err := s.deps.Coordinator.PlaceAICall(r.Context(), req.Number, req.Purpose, req.VoiceStyle)
	switch {
	case err == nil:
		respondJSON(w, http.StatusAccepted, map[string]string{"intro": intro})
	case errors.Is(err, callstate.ErrEmptyNumber):
		respondError(w, http.StatusBadRequest, "invalid_number", err.Error())
	case errors.Is(err, calls.ErrNoDialer), errors.Is(err, ErrNoShim):
		respondError(w, http.StatusServiceUnavailable, "dialer_unavailable", err.Error())
	default:
		respondError(w, http.StatusBadGateway, "dial_failed", err.Error())
	}
}

type quickReplyRequest struct {
	// Index is nil for the regular greeting.
	Index      *int   `json:"index"`
	VoiceStyle string `json:"voice_style"`
}

func (s *Server) handleQuickReply(w http.ResponseWriter, r *http.Request) {
	var req quickReplyRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	index := -1
	if req.Index != nil {
		index = *req.Index
	}
	msg, err := s.deps.Coordinator.QuickReply(index, req.VoiceStyle)
	if err != nil {
		respondError(w, http.StatusBadRequest, "unknown_quick_reply", err.Error())
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{"message": msg})
}

type scheduleRequest struct {
	Number            string    `json:"number"`
	Reason            string    `json:"reason"`
	FireAt            time.Time `json:"fire_at"`
	FireAtEpochMillis int64     `json:"fire_at_epoch_millis"`
}

type scheduleResponse struct {
	schedule.Request
	FireAtEpochMillis int64 `json:"fire_at_epoch_millis"`
}

func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	if s.deps.Scheduler == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "scheduler not configured")
		return
	}
	var req scheduleRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	fireAt := req.FireAt
	if req.FireAtEpochMillis > 0 {
		fireAt = time.UnixMilli(req.FireAtEpochMillis)
	}
	if fireAt.IsZero() {
		respondError(w, http.StatusBadRequest, "invalid_fire_at", "fire_at or fire_at_epoch_millis is required")
		return
	}
	created, err := s.deps.Scheduler.Schedule(r.Context(), req.Number, req.Reason, fireAt)
	if err != nil {
		if errors.Is(err, callstate.ErrEmptyNumber) {
			respondError(w, http.StatusBadRequest, "invalid_number", err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, "schedule_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, scheduleResponse{Request: created, FireAtEpochMillis: created.FireAtEpochMillis()})
}

func (s *Server) handleGetSchedule(w http.ResponseWriter, r *http.Request) {
	if s.deps.Scheduler == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "scheduler not configured")
		return
	}
	req, err := s.deps.Scheduler.Get(r.Context())
	if err != nil {
		s.respondScheduleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, scheduleResponse{Request: req, FireAtEpochMillis: req.FireAtEpochMillis()})
}

func (s *Server) handleCancelSchedule(w http.ResponseWriter, r *http.Request) {
	if s.deps.Scheduler == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "scheduler not configured")
		return
	}
	if err := s.deps.Scheduler.Cancel(r.Context()); err != nil {
		s.respondScheduleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) respondScheduleError(w http.ResponseWriter, err error) {
	if errors.Is(err, schedule.ErrNoSchedule) {
		respondError(w, http.StatusNotFound, "no_schedule", err.Error())
		return
	}
	respondError(w, http.StatusInternalServerError, "schedule_store_error", err.Error())
}
