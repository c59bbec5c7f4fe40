package app

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/ent0n29/callassist/internal/audio"
	"github.com/ent0n29/callassist/internal/config"
	"github.com/ent0n29/callassist/internal/transcribe"
	"github.com/ent0n29/callassist/internal/voice"
)

const mockFrameInterval = 100 * time.Millisecond

type voiceSetup struct {
	engine     voice.Engine
	openSource audio.Opener
	recognizer transcribe.OfflineRecognizer
	detail     string
}

func resolveVoiceProviders(cfg config.Config) (voiceSetup, error) {
	engine, engineDetail, err := resolveEngine(cfg)
	if err != nil {
		return voiceSetup{}, err
	}
	opener, sourceDetail, err := resolveSource(cfg)
	if err != nil {
		return voiceSetup{}, err
	}
	recognizer := resolveRecognizer(cfg, sourceDetail == "mock")
	return voiceSetup{
		engine:     engine,
		openSource: opener,
		recognizer: recognizer,
		detail:     fmt.Sprintf("tts=%s capture=%s stt=%s", engineDetail, sourceDetail, recognizer.Name()),
	}, nil
}

func resolveEngine(cfg config.Config) (voice.Engine, string, error) {
	switch mode := normalizedMode(cfg.TTSEngine); mode {
	case "exec":
		return voice.NewExecEngine(voice.ExecEngineConfig{Command: cfg.TTSCmd, Language: cfg.TTSLanguage}), "exec", nil
	case "mock":
		return voice.NewRecordingEngine(), "mock", nil
	case "auto":
		if onPath(cfg.TTSCmd) {
			return voice.NewExecEngine(voice.ExecEngineConfig{Command: cfg.TTSCmd, Language: cfg.TTSLanguage}), "exec", nil
		}
		return voice.NewRecordingEngine(), "mock", nil
	default:
		return nil, "", fmt.Errorf("invalid TTS_ENGINE: %q (expected auto|exec|mock)", mode)
	}
}

func resolveSource(cfg config.Config) (audio.Opener, string, error) {
	rate := cfg.AudioSampleRate
	execOpener := func() (audio.Source, error) {
		src, err := audio.NewExecSource(cfg.AudioCaptureCmd, rate)
		if err != nil {
			return nil, err
		}
		return src, nil
	}
	mockOpener := func() (audio.Source, error) { return audio.NewMockSource(rate, mockFrameInterval), nil }

	switch mode := normalizedMode(cfg.AudioSource); mode {
	case "exec":
		return execOpener, "exec", nil
	case "mock":
		return mockOpener, "mock", nil
	case "auto":
		if onPath(cfg.AudioCaptureCmd) {
			return execOpener, "exec", nil
		}
		return mockOpener, "mock", nil
	default:
		return nil, "", fmt.Errorf("invalid AUDIO_SOURCE: %q (expected auto|exec|mock)", mode)
	}
}

// resolveRecognizer prefers whisper.cpp. With mocked audio and no model on
// disk a scripted recognizer stands in so the offline path still completes.
func resolveRecognizer(cfg config.Config, mockAudio bool) transcribe.OfflineRecognizer {
	if mockAudio && !fileExists(cfg.OfflineModelPath) {
		return &transcribe.ScriptedRecognizer{}
	}
	return transcribe.NewWhisperCPP(transcribe.WhisperCPPConfig{
		CLI:       cfg.OfflineWhisperCLI,
		ModelPath: cfg.OfflineModelPath,
		Language:  cfg.OfflineLanguage,
	})
}

func normalizedMode(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" {
		return "auto"
	}
	return v
}

func onPath(cmd string) bool {
	cmd = strings.TrimSpace(cmd)
	if cmd == "" {
		return false
	}
	_, err := exec.LookPath(cmd)
	return err == nil
}

func fileExists(path string) bool {
	path = strings.TrimSpace(path)
	if path == "" {
		return false
	}
	if !filepath.IsAbs(path) {
		if wd, err := os.Getwd(); err == nil {
			path = filepath.Join(wd, path)
		}
	}
	_, err := os.Stat(path)
	return err == nil
}
