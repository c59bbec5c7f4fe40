package voice

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
)

// espeak-ng neutral values; Params scale these.
const (
	espeakBasePitch = 50
	espeakBaseRate  = 175
)

// ExecEngineConfig selects the synthesizer binary and voice.
type ExecEngineConfig struct {
	Command  string
	Language string
}

// ExecEngine speaks through an espeak-compatible CLI. Each utterance is one
// process; cancelling its context kills playback.
type ExecEngine struct {
	cfg  ExecEngineConfig
	path string
}

func NewExecEngine(cfg ExecEngineConfig) *ExecEngine {
	if strings.TrimSpace(cfg.Command) == "" {
		cfg.Command = "espeak-ng"
	}
	if strings.TrimSpace(cfg.Language) == "" {
		cfg.Language = "ar"
	}
	return &ExecEngine{cfg: cfg}
}

func (e *ExecEngine) Name() string { return "exec" }

func (e *ExecEngine) Init(context.Context) error {
	path, err := exec.LookPath(e.cfg.Command)
	if err != nil {
		return fmt.Errorf("%w: %s not found: %v", ErrEngineUnavailable, e.cfg.Command, err)
	}
	e.path = path
	return nil
}

func (e *ExecEngine) Speak(ctx context.Context, text string, p Params) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if e.path == "" {
		return ErrEngineUnavailable
	}
	cmd := exec.CommandContext(ctx, e.path, e.args(p, text)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if detail := strings.TrimSpace(stderr.String()); detail != "" {
			return fmt.Errorf("synthesizer failed: %s", detail)
		}
		return fmt.Errorf("synthesizer failed: %w", err)
	}
	return nil
}

func (e *ExecEngine) args(p Params, text string) []string {
	return []string{
		"-v", e.cfg.Language,
		"-p", strconv.Itoa(scaleClamp(espeakBasePitch, p.Pitch, 0, 99)),
		"-s", strconv.Itoa(scaleClamp(espeakBaseRate, p.Rate, 80, 450)),
		"--", text,
	}
}

func (e *ExecEngine) Close() error { return nil }

func scaleClamp(base int, mult float64, lo, hi int) int {
	if mult <= 0 || math.IsNaN(mult) {
		mult = 1
	}
	v := int(math.Round(float64(base) * mult))
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// IsEngineUnavailable reports whether err came from a missing synthesizer.
func IsEngineUnavailable(err error) bool {
	return errors.Is(err, ErrEngineUnavailable)
}
