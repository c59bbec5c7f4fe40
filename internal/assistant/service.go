package assistant

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ent0n29/callassist/internal/agent"
	"github.com/ent0n29/callassist/internal/callstate"
	"github.com/ent0n29/callassist/internal/connectivity"
	"github.com/ent0n29/callassist/internal/observability"
	"github.com/ent0n29/callassist/internal/transcribe"
	"github.com/ent0n29/callassist/internal/voice"
)

const (
	// EmptyTranscriptReply is spoken when nothing was heard.
	EmptyTranscriptReply = "مرحبًا! إزيّك؟"
	// FallbackReply is spoken when no online reply is available.
	FallbackReply = "أهلاً! أنا سامعك. عايزني أعمل إيه؟"
)

var errNoFinal = errors.New("capture ended without a final result")

// ReplyAgent is the online reply generator.
type ReplyAgent interface {
	agent.Generator
	Configured() bool
}

// Speaker renders a message without blocking.
type Speaker interface {
	Speak(message, style string)
}

// Capturer starts one transcription session.
type Capturer interface {
	Capture(ctx context.Context, maxDuration time.Duration, preferOffline bool) (*transcribe.Session, error)
}

type Config struct {
	Capturer        Capturer
	Agent           ReplyAgent
	Gate            connectivity.Gate
	Mode            *callstate.ModeStore
	Speaker         Speaker
	CaptureDuration time.Duration
	ReplyTimeout    time.Duration
	Logger          *zap.Logger
	Metrics         *observability.Metrics
}

// Turn is the outcome of one reply-now action.
type Turn struct {
	Transcript string            `json:"transcript"`
	Source     transcribe.Source `json:"source"`
	Reply      string            `json:"reply"`
	ReplyPath  string            `json:"reply_path"`
	Dialect    string            `json:"dialect,omitempty"`
	DurationMS int64             `json:"duration_ms"`
}

// Service listens to the user, answers and speaks the answer.
type Service struct {
	cfg    Config
	logger *zap.Logger
}

func NewService(cfg Config) *Service {
	if cfg.Mode == nil {
		cfg.Mode = callstate.NewModeStore(callstate.AssistantMode{})
	}
	if cfg.Gate == nil {
		cfg.Gate = connectivity.NewStaticGate(false)
	}
	if cfg.ReplyTimeout <= 0 {
		cfg.ReplyTimeout = 30 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{cfg: cfg, logger: logger}
}

// ReplyNow captures speech, answers it and speaks the answer. Partial
// transcripts go to onPartial as they arrive. Recognizer failures are
// returned; reply failures fall back to a canned line.
func (s *Service) ReplyNow(ctx context.Context, onPartial func(transcribe.Result)) (Turn, error) {
	started := time.Now()
	mode := s.cfg.Mode.Get()

	sess, err := s.cfg.Capturer.Capture(ctx, s.cfg.CaptureDuration, mode.OfflinePreferred)
	if err != nil {
		return Turn{}, err
	}
	final, err := awaitFinal(ctx, sess, onPartial)
	if err != nil {
		return Turn{}, err
	}

	turn := Turn{
		Transcript: final.Text,
		Source:     final.Source,
		Dialect:    agent.DetectDialect(final.Text),
	}
	turn.Reply, turn.ReplyPath = s.reply(ctx, final.Text, mode)
	s.cfg.Speaker.Speak(turn.Reply, mode.VoiceStyle)
	turn.DurationMS = time.Since(started).Milliseconds()
	s.cfg.Metrics.ObserveStage("reply_turn", time.Since(started))
	if turn.ReplyPath != "online" {
		s.cfg.Metrics.ObserveIndicator("reply_" + turn.ReplyPath)
	}

	s.logger.Info("reply turn finished",
		zap.String("source", string(turn.Source)),
		zap.String("reply_path", turn.ReplyPath),
		zap.String("dialect", turn.Dialect),
		zap.Int64("duration_ms", turn.DurationMS))
	return turn, nil
}

func awaitFinal(ctx context.Context, sess *transcribe.Session, onPartial func(transcribe.Result)) (transcribe.Result, error) {
	for {
		select {
		case <-ctx.Done():
			sess.Stop()
			return transcribe.Result{}, ctx.Err()
		case ev, ok := <-sess.Events():
			if !ok {
				return transcribe.Result{}, errNoFinal
			}
			switch ev.Type {
			case transcribe.EventPartial:
				if onPartial != nil {
					onPartial(ev.Result)
				}
			case transcribe.EventError:
				return transcribe.Result{}, ev.Err
			case transcribe.EventFinal:
				return ev.Result, nil
			}
		}
	}
}

func (s *Service) reply(ctx context.Context, text string, mode callstate.AssistantMode) (string, string) {
	if strings.TrimSpace(text) == "" {
		return EmptyTranscriptReply, "empty"
	}
	if mode.OfflinePreferred || !s.cfg.Gate.IsOnline() || s.cfg.Agent == nil || !s.cfg.Agent.Configured() {
		return FallbackReply, "offline"
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ReplyTimeout)
	defer cancel()
	reply, err := s.cfg.Agent.Generate(ctx, text)
	reply = voice.SpeechText(reply)
	if err != nil || reply == "" {
		return FallbackReply, "fallback"
	}
	return reply, "online"
}
