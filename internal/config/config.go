package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the call assistant service.
type Config struct {
	BindAddr              string
	ShutdownTimeout       time.Duration
	CallInactivityTimeout time.Duration
	MetricsNamespace      string
	LogLevel              string
	LogFormat             string

	AllowAnyOrigin bool

	// Online services. Empty means the feature is disabled.
	WhisperServerURL string
	OllamaServerURL  string
	OllamaModel      string
	HTTPTimeout      time.Duration

	AutoReplyDefault  bool
	DefaultVoiceStyle string

	CaptureDuration time.Duration
	AudioSampleRate int
	AudioSource     string
	AudioCaptureCmd string

	OfflineWhisperCLI string
	OfflineModelPath  string
	OfflineLanguage   string

	TTSEngine   string
	TTSCmd      string
	TTSLanguage string

	ConnectivityMode string

	DatabaseURL           string
	ScheduleDBPath        string
	SchedulerPollInterval time.Duration

	WorkerLimit int
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:          envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace:  envOrDefault("APP_METRICS_NAMESPACE", "callassist"),
		LogLevel:          envOrDefault("APP_LOG_LEVEL", "info"),
		LogFormat:         envOrDefault("APP_LOG_FORMAT", "json"),
		WhisperServerURL:  trimmedEnv("WHISPER_SERVER_URL"),
		OllamaServerURL:   trimmedEnv("OLLAMA_SERVER_URL"),
		OllamaModel:       envOrDefault("OLLAMA_MODEL", "llama3"),
		DefaultVoiceStyle: envOrDefault("DEFAULT_VOICE_STYLE", "شاب"),
		AudioSource:       envOrDefault("AUDIO_SOURCE", "auto"),
		AudioCaptureCmd:   envOrDefault("AUDIO_CAPTURE_CMD", "arecord"),
		OfflineWhisperCLI: envOrDefault("OFFLINE_WHISPER_CLI", "whisper-cli"),
		// Multilingual base model; the english-only variants cannot decode Arabic.
		OfflineModelPath:      envOrDefault("OFFLINE_MODEL_PATH", ".models/whisper/ggml-base.bin"),
		OfflineLanguage:       envOrDefault("OFFLINE_LANGUAGE", "ar"),
		TTSEngine:             envOrDefault("TTS_ENGINE", "auto"),
		TTSCmd:                envOrDefault("TTS_CMD", "espeak-ng"),
		TTSLanguage:           envOrDefault("TTS_LANGUAGE", "ar"),
		ConnectivityMode:      envOrDefault("CONNECTIVITY_MODE", "interfaces"),
		DatabaseURL:           trimmedEnv("DATABASE_URL"),
		ScheduleDBPath:        trimmedEnv("SCHEDULE_DB_PATH"),
		ShutdownTimeout:       15 * time.Second,
		CallInactivityTimeout: 10 * time.Minute,
		HTTPTimeout:           30 * time.Second,
		CaptureDuration:       5 * time.Second,
		AudioSampleRate:       16000,
		SchedulerPollInterval: time.Second,
		WorkerLimit:           4,
	}

	var err error
	if cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout); err != nil {
		return Config{}, err
	}
	if cfg.CallInactivityTimeout, err = durationFromEnv("APP_CALL_INACTIVITY_TIMEOUT", cfg.CallInactivityTimeout); err != nil {
		return Config{}, err
	}
	if cfg.HTTPTimeout, err = durationFromEnv("HTTP_TIMEOUT", cfg.HTTPTimeout); err != nil {
		return Config{}, err
	}
	if cfg.CaptureDuration, err = durationFromEnv("CAPTURE_DURATION", cfg.CaptureDuration); err != nil {
		return Config{}, err
	}
	if cfg.SchedulerPollInterval, err = durationFromEnv("SCHEDULER_POLL_INTERVAL", cfg.SchedulerPollInterval); err != nil {
		return Config{}, err
	}
	if cfg.AudioSampleRate, err = intFromEnv("AUDIO_SAMPLE_RATE", cfg.AudioSampleRate); err != nil {
		return Config{}, err
	}
	if cfg.WorkerLimit, err = intFromEnv("WORKER_LIMIT", cfg.WorkerLimit); err != nil {
		return Config{}, err
	}
	if cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin); err != nil {
		return Config{}, err
	}
	if cfg.AutoReplyDefault, err = boolFromEnv("AUTO_REPLY_DEFAULT", cfg.AutoReplyDefault); err != nil {
		return Config{}, err
	}

	if cfg.HTTPTimeout <= 0 {
		return Config{}, fmt.Errorf("HTTP_TIMEOUT must be positive")
	}
	if cfg.CaptureDuration <= 0 {
		return Config{}, fmt.Errorf("CAPTURE_DURATION must be positive")
	}
	if cfg.AudioSampleRate <= 0 {
		return Config{}, fmt.Errorf("AUDIO_SAMPLE_RATE must be positive")
	}
	if cfg.WorkerLimit < 1 {
		return Config{}, fmt.Errorf("WORKER_LIMIT must be at least 1")
	}
	if cfg.SchedulerPollInterval < 100*time.Millisecond {
		return Config{}, fmt.Errorf("SCHEDULER_POLL_INTERVAL must be at least 100ms")
	}
	if cfg.CallInactivityTimeout < 5*time.Second {
		return Config{}, fmt.Errorf("APP_CALL_INACTIVITY_TIMEOUT must be at least 5s")
	}
	switch strings.ToLower(cfg.ConnectivityMode) {
	case "interfaces", "static":
	default:
		return Config{}, fmt.Errorf("invalid CONNECTIVITY_MODE: %q (expected interfaces|static)", cfg.ConnectivityMode)
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func trimmedEnv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := trimmedEnv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := trimmedEnv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(trimmedEnv(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
