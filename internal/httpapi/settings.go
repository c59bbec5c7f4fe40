package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/ent0n29/callassist/internal/agent"
	"github.com/ent0n29/callassist/internal/callstate"
	"github.com/ent0n29/callassist/internal/connectivity"
	"github.com/ent0n29/callassist/internal/settings"
)

const settingsProbeTimeout = 10 * time.Second

func (s *Server) handleGetMode(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.deps.Coordinator.Mode().Get())
}

type modePatch struct {
	AutoReplyEnabled *bool   `json:"auto_reply_enabled"`
	OfflinePreferred *bool   `json:"offline_preferred"`
	VoiceStyle       *string `json:"voice_style"`
}

func (s *Server) handlePutMode(w http.ResponseWriter, r *http.Request) {
	var patch modePatch
	if err := decodeJSON(r, &patch); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	mode := s.deps.Coordinator.Mode().Update(func(m *callstate.AssistantMode) {
		if patch.AutoReplyEnabled != nil {
			m.AutoReplyEnabled = *patch.AutoReplyEnabled
		}
		if patch.OfflinePreferred != nil {
			m.OfflinePreferred = *patch.OfflinePreferred
		}
		if patch.VoiceStyle != nil {
			m.VoiceStyle = strings.TrimSpace(*patch.VoiceStyle)
		}
	})
	respondJSON(w, http.StatusOK, mode)
}

func (s *Server) handleGetSettings(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.deps.Settings.Snapshot())
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var v settings.Values
	if err := decodeJSON(r, &v); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, s.deps.Settings.Replace(v))
}

type probeResult struct {
	Configured bool   `json:"configured"`
	Reachable  bool   `json:"reachable"`
	StatusCode int    `json:"status_code,omitempty"`
	Error      string `json:"error,omitempty"`
}

type settingsTestResponse struct {
	Transcription  probeResult `json:"transcription"`
	Agent          probeResult `json:"agent"`
	Models         []string    `json:"models"`
	SuggestedModel string      `json:"suggested_model"`
}

func (s *Server) handleTestSettings(w http.ResponseWriter, r *http.Request) {
	if s.deps.Prober == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "prober not configured")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), settingsProbeTimeout)
	defer cancel()

	values := s.deps.Settings.Snapshot()
	out := settingsTestResponse{
		Transcription: s.probe(ctx, values.WhisperServerURL),
		Models:        []string{},
	}
	if values.OllamaServerURL != "" {
		out.Agent = s.probe(ctx, agent.GenerateURL(values.OllamaServerURL))
		if models, err := s.deps.Prober.ListModels(ctx, values.OllamaServerURL); err == nil {
			out.Models = models
		}
	}
	out.SuggestedModel = agent.FirstModel(out.Models)
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) probe(ctx context.Context, url string) probeResult {
	if strings.TrimSpace(url) == "" {
		return probeResult{}
	}
	code, err := s.deps.Prober.Ping(ctx, url)
	res := probeResult{Configured: true, StatusCode: code, Reachable: err == nil}
	if err != nil {
		res.Error = err.Error()
	}
	return res
}

type connectivityRequest struct {
	Online bool `json:"online"`
}

func (s *Server) handlePutConnectivity(w http.ResponseWriter, r *http.Request) {
	setter, ok := s.deps.Gate.(connectivity.Setter)
	if !ok {
		respondError(w, http.StatusConflict, "link_state_unsupported", "connectivity is detected from interfaces")
		return
	}
	var req connectivityRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	setter.SetOnline(req.Online)
	respondJSON(w, http.StatusOK, map[string]bool{"online": s.deps.Gate.IsOnline()})
}
