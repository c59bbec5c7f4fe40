package transcribe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"github.com/ent0n29/callassist/internal/audio"
)

// OfflineRecognizer opens one streaming recognition per capture.
type OfflineRecognizer interface {
	Open(ctx context.Context, sampleRate int) (RecognizerStream, error)
	Name() string
}

// RecognizerStream consumes PCM frames in capture order.
type RecognizerStream interface {
	// Accept returns interim text when the frame closed a phrase.
	Accept(ctx context.Context, pcm []byte) (string, bool, error)
	Finish(ctx context.Context) (string, error)
	Close() error
}

type WhisperCPPConfig struct {
	CLI       string
	ModelPath string
	Language  string
	Threads   int
}

// WhisperCPP runs the whisper.cpp CLI over the audio buffered so far, once
// per pause and once at the end.
type WhisperCPP struct {
	cfg WhisperCPPConfig
}

func NewWhisperCPP(cfg WhisperCPPConfig) *WhisperCPP {
	if strings.TrimSpace(cfg.CLI) == "" {
		cfg.CLI = "whisper-cli"
	}
	if strings.TrimSpace(cfg.Language) == "" {
		cfg.Language = "ar"
	}
	if cfg.Threads <= 0 {
		cfg.Threads = runtime.NumCPU()
		if cfg.Threads > 8 {
			cfg.Threads = 8
		}
		if cfg.Threads < 2 {
			cfg.Threads = 2
		}
	}
	return &WhisperCPP{cfg: cfg}
}

func (w *WhisperCPP) Name() string { return "whisper.cpp" }

func (w *WhisperCPP) Open(_ context.Context, sampleRate int) (RecognizerStream, error) {
	modelPath := strings.TrimSpace(w.cfg.ModelPath)
	if modelPath == "" {
		return nil, fmt.Errorf("%w: no model path", ErrModelUnavailable)
	}
	if !filepath.IsAbs(modelPath) {
		if wd, err := os.Getwd(); err == nil {
			modelPath = filepath.Join(wd, modelPath)
		}
	}
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrModelUnavailable, modelPath, err)
	}
	cliPath, err := exec.LookPath(w.cfg.CLI)
	if err != nil {
		return nil, fmt.Errorf("%w: %s not found: %v", ErrModelUnavailable, w.cfg.CLI, err)
	}
	if sampleRate <= 0 {
		sampleRate = audio.DefaultSampleRate
	}
	return &whisperStream{
		cliPath:    cliPath,
		modelPath:  modelPath,
		cfg:        w.cfg,
		sampleRate: sampleRate,
		pauses:     audio.NewPauseDetector(),
	}, nil
}

type whisperStream struct {
	cliPath    string
	modelPath  string
	cfg        WhisperCPPConfig
	sampleRate int
	pauses     *audio.PauseDetector

	mu  sync.Mutex
	pcm []byte
}

func (s *whisperStream) Accept(ctx context.Context, pcm []byte) (string, bool, error) {
	s.mu.Lock()
	s.pcm = append(s.pcm, pcm...)
	boundary := s.pauses.Push(pcm)
	snapshot := s.pcm
	s.mu.Unlock()
	if !boundary {
		return "", false, nil
	}
	text, err := s.run(ctx, snapshot)
	if err != nil {
		return "", false, err
	}
	return text, text != "", nil
}

func (s *whisperStream) Finish(ctx context.Context) (string, error) {
	s.mu.Lock()
	snapshot := s.pcm
	s.mu.Unlock()
	return s.run(ctx, snapshot)
}

func (s *whisperStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pcm = nil
	return nil
}

func (s *whisperStream) run(ctx context.Context, pcm []byte) (string, error) {
	if len(pcm) == 0 {
		return "", nil
	}
	tmpDir, err := os.MkdirTemp("", "callassist-whisper-*")
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(tmpDir)

	wavPath := filepath.Join(tmpDir, "audio.wav")
	if err := audio.WriteWAVPCM16LEFile(wavPath, pcm, s.sampleRate); err != nil {
		return "", err
	}
	outPrefix := filepath.Join(tmpDir, "out")
	args := []string{
		"-m", s.modelPath,
		"-f", wavPath,
		"-l", s.cfg.Language,
		"-otxt",
		"-of", outPrefix,
		"-nt",
		"-t", strconv.Itoa(s.cfg.Threads),
	}

	cmd := exec.CommandContext(ctx, s.cliPath, args...)
	cmd.Stdout = io.Discard
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		detail := strings.TrimSpace(stderr.String())
		// whisper.cpp is chatty; keep the tail.
		if len(detail) > 4<<10 {
			detail = strings.TrimSpace(detail[len(detail)-(4<<10):])
		}
		if detail == "" {
			detail = err.Error()
		}
		return "", fmt.Errorf("whisper.cpp failed: %s", detail)
	}

	b, err := os.ReadFile(outPrefix + ".txt")
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}
