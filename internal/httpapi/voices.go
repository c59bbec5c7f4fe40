package httpapi

import (
	"net/http"
	"strings"

	"github.com/ent0n29/callassist/internal/voice"
)

type speakRequest struct {
	Text       string `json:"text"`
	VoiceStyle string `json:"voice_style"`
}

func (s *Server) handleSpeak(w http.ResponseWriter, r *http.Request) {
	var req speakRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		respondError(w, http.StatusBadRequest, "invalid_text", "text is required")
		return
	}
	if s.deps.Renderer == nil || !s.deps.Renderer.Ready() {
		respondError(w, http.StatusServiceUnavailable, "speech_unavailable", voice.ErrEngineUnavailable.Error())
		return
	}
	style := req.VoiceStyle
	if strings.TrimSpace(style) == "" {
		style = s.deps.Coordinator.Mode().Get().VoiceStyle
	}
	s.deps.Renderer.Speak(text, style)
	respondJSON(w, http.StatusAccepted, map[string]any{
		"style":  voice.ParseStyle(style),
		"params": voice.ParamsFor(style),
	})
}

func (s *Server) handleStopSpeaking(w http.ResponseWriter, _ *http.Request) {
	if s.deps.Renderer != nil {
		s.deps.Renderer.Stop()
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListStyles(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"styles": voice.Styles()})
}
