package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ent0n29/callassist/internal/agent"
	"github.com/ent0n29/callassist/internal/assistant"
	"github.com/ent0n29/callassist/internal/calls"
	"github.com/ent0n29/callassist/internal/config"
	"github.com/ent0n29/callassist/internal/connectivity"
	"github.com/ent0n29/callassist/internal/observability"
	"github.com/ent0n29/callassist/internal/schedule"
	"github.com/ent0n29/callassist/internal/session"
	"github.com/ent0n29/callassist/internal/settings"
	"github.com/ent0n29/callassist/internal/voice"
)

// CaptureStopper ends a running capture from the stream's stop action.
type CaptureStopper interface {
	StopActive() bool
}

type Deps struct {
	Config      config.Config
	Coordinator *calls.Coordinator
	Tracker     *session.Manager
	Scheduler   *schedule.Scheduler
	Settings    *settings.Store
	Gate        connectivity.Gate
	Assistant   *assistant.Service
	Capture     CaptureStopper
	Renderer    *voice.Renderer
	Prober      *agent.Prober
	Hub         *ShimHub
	Metrics     *observability.Metrics
	Logger      *zap.Logger
}

type Server struct {
	deps     Deps
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

func New(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Hub == nil {
		deps.Hub = NewShimHub(logger, deps.Metrics)
	}
	allowAny := deps.Config.AllowAnyOrigin
	return &Server{
		deps:   deps,
		logger: logger.Named("httpapi"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				if allowAny {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients (the phone shim) omit Origin.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		s.deps.Metrics.Handler().ServeHTTP(w, r)
	})
	r.Get("/v1/perf/latency", s.handlePerfLatency)
	r.Get("/v1/onboarding/status", s.handleOnboardingStatus)

	r.Route("/v1/calls", func(r chi.Router) {
		r.Get("/", s.handleListCalls)
		r.Post("/events", s.handleCallEvent)
		r.Get("/events/ws", s.handleShimWS)
		r.Post("/pending", s.handleSetPending)
		r.Get("/pending", s.handleGetPending)
		r.Delete("/pending", s.handleClearPending)
		r.Post("/outgoing", s.handlePlaceAICall)
		r.Post("/quick-reply", s.handleQuickReply)
		r.Post("/schedule", s.handleSchedule)
		r.Get("/schedule", s.handleGetSchedule)
		r.Delete("/schedule", s.handleCancelSchedule)
	})

	r.Get("/v1/mode", s.handleGetMode)
	r.Put("/v1/mode", s.handlePutMode)
	r.Get("/v1/settings", s.handleGetSettings)
	r.Put("/v1/settings", s.handlePutSettings)
	r.Post("/v1/settings/test", s.handleTestSettings)
	r.Put("/v1/connectivity", s.handlePutConnectivity)

	r.Post("/v1/assistant/reply", s.handleReplyNow)
	r.Get("/v1/assistant/ws", s.handleAssistantWS)

	r.Post("/v1/voice/speak", s.handleSpeak)
	r.Post("/v1/voice/stop", s.handleStopSpeaking)
	r.Get("/v1/voice/styles", s.handleListStyles)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	online := s.deps.Gate != nil && s.deps.Gate.IsOnline()
	respondJSON(w, http.StatusOK, map[string]any{
		"status":              "ready",
		"speech_engine_ready": s.deps.Renderer != nil && s.deps.Renderer.Ready(),
		"online":              online,
		"shims_connected":     s.deps.Hub.Connected(),
	})
}

func (s *Server) handlePerfLatency(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.deps.Metrics.SnapshotStages())
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
