package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ent0n29/callassist/internal/config"
)

func mockConfig() config.Config {
	return config.Config{
		MetricsNamespace:      "test_app",
		OllamaModel:           "llama3",
		DefaultVoiceStyle:     "شاب",
		AudioSource:           "mock",
		AudioSampleRate:       16000,
		TTSEngine:             "mock",
		OfflineModelPath:      "does/not/exist.bin",
		ConnectivityMode:      "static",
		HTTPTimeout:           time.Second,
		CaptureDuration:       50 * time.Millisecond,
		CallInactivityTimeout: time.Minute,
		SchedulerPollInterval: time.Second,
		WorkerLimit:           2,
	}
}

func TestBuildWithMockProviders(t *testing.T) {
	res, err := Build(context.Background(), mockConfig(), nil)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	defer func() {
		if err := res.Cleanup(); err != nil {
			t.Fatalf("Cleanup() error = %v", err)
		}
	}()

	if !res.Renderer.Ready() {
		t.Fatalf("renderer not ready with mock engine")
	}
	if !strings.Contains(res.VoiceDetail, "tts=mock") || !strings.Contains(res.VoiceDetail, "stt=scripted") {
		t.Fatalf("VoiceDetail = %q", res.VoiceDetail)
	}

	ts := httptest.NewServer(res.API.Router())
	defer ts.Close()
	resp, err := http.Get(ts.URL + "/readyz")
	if err != nil {
		t.Fatalf("GET /readyz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("readyz status = %d", resp.StatusCode)
	}
}

func TestBuildRejectsUnknownProviders(t *testing.T) {
	cfg := mockConfig()
	cfg.TTSEngine = "festival"
	if _, err := Build(context.Background(), cfg, nil); err == nil {
		t.Fatalf("Build() with TTS_ENGINE=festival expected error")
	}

	cfg = mockConfig()
	cfg.AudioSource = "bluetooth"
	if _, err := Build(context.Background(), cfg, nil); err == nil {
		t.Fatalf("Build() with AUDIO_SOURCE=bluetooth expected error")
	}
}
