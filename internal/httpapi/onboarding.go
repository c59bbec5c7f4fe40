package httpapi

import (
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

type onboardingCheck struct {
	ID     string `json:"id"`
	Status string `json:"status"` // ok|warn|error
	Label  string `json:"label"`
	Detail string `json:"detail,omitempty"`
	Fix    string `json:"fix,omitempty"`
}

type onboardingStatusResponse struct {
	Online        bool              `json:"online"`
	ScheduleStore string            `json:"schedule_store"`
	Checks        []onboardingCheck `json:"checks"`
}

// handleOnboardingStatus reports which local tools and online services the
// assistant can use right now.
func (s *Server) handleOnboardingStatus(w http.ResponseWriter, _ *http.Request) {
	cfg := s.deps.Config
	checks := make([]onboardingCheck, 0, 8)

	if strings.EqualFold(cfg.AudioSource, "mock") {
		checks = append(checks, onboardingCheck{ID: "capture_cmd", Status: "warn", Label: "Microphone capture", Detail: "mock source"})
	} else {
		checks = append(checks, commandCheck("capture_cmd", "Microphone capture", cfg.AudioCaptureCmd, "Install alsa-utils or set AUDIO_CAPTURE_CMD."))
	}
	checks = append(checks, commandCheck("tts_cmd", "Speech output", cfg.TTSCmd, "Install espeak-ng or set TTS_CMD."))
	checks = append(checks, commandCheck("whisper_cli", "Offline recognition", cfg.OfflineWhisperCLI, "Build whisper.cpp and set OFFLINE_WHISPER_CLI."))
	checks = append(checks, modelCheck(cfg.OfflineModelPath))

	if s.deps.Renderer != nil && s.deps.Renderer.Ready() {
		checks = append(checks, onboardingCheck{ID: "speech_engine", Status: "ok", Label: "Speech engine", Detail: "initialized"})
	} else {
		checks = append(checks, onboardingCheck{ID: "speech_engine", Status: "error", Label: "Speech engine", Detail: "not initialized", Fix: "Check TTS_ENGINE and TTS_CMD, then restart."})
	}

	values := s.deps.Settings.Snapshot()
	checks = append(checks, endpointCheck("whisper_server", "Online transcription", values.WhisperServerURL))
	checks = append(checks, endpointCheck("ollama_server", "Online replies", values.OllamaServerURL))

	store := "in-memory"
	switch {
	case cfg.DatabaseURL != "":
		store = "postgres"
	case cfg.ScheduleDBPath != "":
		store = "sqlite"
	}
	if store == "in-memory" {
		checks = append(checks, onboardingCheck{
			ID:     "schedule_store",
			Status: "warn",
			Label:  "Scheduled calls",
			Detail: "in-memory only",
			Fix:    "Set SCHEDULE_DB_PATH or DATABASE_URL to keep scheduled calls across restarts.",
		})
	}

	respondJSON(w, http.StatusOK, onboardingStatusResponse{
		Online:        s.deps.Gate != nil && s.deps.Gate.IsOnline(),
		ScheduleStore: store,
		Checks:        checks,
	})
}

func commandCheck(id, label, cmd, fix string) onboardingCheck {
	cmd = strings.TrimSpace(cmd)
	if cmd == "" {
		return onboardingCheck{ID: id, Status: "error", Label: label, Detail: "not configured", Fix: fix}
	}
	if _, err := exec.LookPath(cmd); err != nil {
		return onboardingCheck{ID: id, Status: "error", Label: label, Detail: cmd + " not found", Fix: fix}
	}
	return onboardingCheck{ID: id, Status: "ok", Label: label, Detail: cmd + " found"}
}

func modelCheck(path string) onboardingCheck {
	const fix = "Download a multilingual ggml model and set OFFLINE_MODEL_PATH."
	path = strings.TrimSpace(path)
	if path == "" {
		return onboardingCheck{ID: "whisper_model", Status: "error", Label: "Offline model", Detail: "OFFLINE_MODEL_PATH is empty", Fix: fix}
	}
	if !filepath.IsAbs(path) {
		if wd, err := os.Getwd(); err == nil {
			path = filepath.Join(wd, path)
		}
	}
	if _, err := os.Stat(path); err != nil {
		return onboardingCheck{ID: "whisper_model", Status: "error", Label: "Offline model", Detail: "model file missing", Fix: fix}
	}
	return onboardingCheck{ID: "whisper_model", Status: "ok", Label: "Offline model", Detail: "present"}
}

func endpointCheck(id, label, url string) onboardingCheck {
	if strings.TrimSpace(url) == "" {
		return onboardingCheck{ID: id, Status: "warn", Label: label, Detail: "not configured; offline path only"}
	}
	return onboardingCheck{ID: id, Status: "ok", Label: label, Detail: url}
}
