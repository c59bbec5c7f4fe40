package transcribe

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ent0n29/callassist/internal/audio"
	"github.com/ent0n29/callassist/internal/connectivity"
	"github.com/ent0n29/callassist/internal/observability"
)

// OnlineTranscriber sends one WAV buffer to a remote recognizer.
type OnlineTranscriber interface {
	Transcribe(ctx context.Context, endpoint string, wav []byte) (string, error)
}

type Config struct {
	OpenSource      audio.Opener
	Online          OnlineTranscriber
	OnlineEndpoint  func() string
	Offline         OfflineRecognizer
	Gate            connectivity.Gate
	DefaultDuration time.Duration
	OnlineTimeout   time.Duration
	Logger          *zap.Logger
	Metrics         *observability.Metrics
}

// Pipeline runs at most one capture at a time.
type Pipeline struct {
	cfg    Config
	logger *zap.Logger

	mu     sync.Mutex
	active *Session
}

func NewPipeline(cfg Config) *Pipeline {
	if cfg.DefaultDuration <= 0 {
		cfg.DefaultDuration = 5 * time.Second
	}
	if cfg.OnlineTimeout <= 0 {
		cfg.OnlineTimeout = 30 * time.Second
	}
	if cfg.OnlineEndpoint == nil {
		cfg.OnlineEndpoint = func() string { return "" }
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{cfg: cfg, logger: logger}
}

// Session is one capture. Events ends with exactly one final event, or with
// one error event when the recognizer could not start.
type Session struct {
	ID string

	events   chan Event
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

func (s *Session) Events() <-chan Event { return s.events }

// Stop asks the capture loop to finish after its current read.
func (s *Session) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// Done is closed once the session has delivered its last event.
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) stopRequested() bool {
	select {
	case <-s.stop:
		return true
	default:
		return false
	}
}

// Active reports whether a capture is running.
func (p *Pipeline) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active != nil
}

// StopActive stops the running capture, if any.
func (p *Pipeline) StopActive() bool {
	p.mu.Lock()
	s := p.active
	p.mu.Unlock()
	if s == nil {
		return false
	}
	s.Stop()
	return true
}

// Capture starts recording for up to maxDuration. The online recognizer is
// tried first unless preferOffline is set, the link is down or no endpoint
// is configured.
func (p *Pipeline) Capture(ctx context.Context, maxDuration time.Duration, preferOffline bool) (*Session, error) {
	if maxDuration <= 0 {
		maxDuration = p.cfg.DefaultDuration
	}
	p.mu.Lock()
	if p.active != nil {
		p.mu.Unlock()
		return nil, ErrCaptureActive
	}
	s := &Session{
		ID:     uuid.NewString(),
		events: make(chan Event, 32),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	p.active = s
	p.mu.Unlock()

	p.cfg.Metrics.AddActiveCaptures(1)
	go p.run(ctx, s, maxDuration, preferOffline)
	return s, nil
}

type captureState int

const (
	stateTryingOnline captureState = iota
	stateTryingOffline
	stateDone
)

func (p *Pipeline) run(ctx context.Context, s *Session, maxDuration time.Duration, preferOffline bool) {
	started := time.Now()
	logger := p.logger.With(zap.String("capture_id", s.ID))
	defer func() {
		p.mu.Lock()
		if p.active == s {
			p.active = nil
		}
		p.mu.Unlock()
		p.cfg.Metrics.AddActiveCaptures(-1)
		p.cfg.Metrics.ObserveStage("capture_total", time.Since(started))
		close(s.events)
		close(s.done)
	}()

	state := stateTryingOffline
	if p.onlineEnabled(preferOffline) {
		state = stateTryingOnline
	}
	for state != stateDone {
		switch state {
		case stateTryingOnline:
			text, err := p.runOnline(ctx, s, maxDuration)
			if err == nil && text != "" {
				p.cfg.Metrics.ObserveTranscription(string(SourceOnline), "ok")
				p.emit(ctx, s, Event{Type: EventFinal, Result: Result{Text: text, Source: SourceOnline}})
				state = stateDone
				continue
			}
			outcome := "empty"
			if err != nil {
				outcome = "error"
				logger.Info("online transcription failed, falling back to offline", zap.Error(err))
			} else {
				logger.Info("online transcription empty, falling back to offline")
			}
			p.cfg.Metrics.ObserveTranscription(string(SourceOnline), outcome)
			p.cfg.Metrics.ObserveIndicator("online_fallback")
			state = stateTryingOffline
		case stateTryingOffline:
			p.runOffline(ctx, s, maxDuration, logger)
			state = stateDone
		}
	}
}

func (p *Pipeline) onlineEnabled(preferOffline bool) bool {
	if preferOffline || p.cfg.Online == nil {
		return false
	}
	if p.cfg.Gate == nil || !p.cfg.Gate.IsOnline() {
		return false
	}
	return p.cfg.OnlineEndpoint() != ""
}

func (p *Pipeline) runOnline(ctx context.Context, s *Session, maxDuration time.Duration) (string, error) {
	src, err := p.openSource()
	if err != nil {
		return "", err
	}
	if err := src.Start(ctx); err != nil {
		return "", err
	}
	var pcm []byte
	recordErr := p.record(ctx, s, src, maxDuration, func(f audio.Frame) error {
		pcm = append(pcm, f.PCM...)
		return nil
	})
	_ = src.Stop()
	if recordErr != nil {
		return "", recordErr
	}

	wav, err := audio.EncodeWAVPCM16LE(pcm, src.SampleRate())
	if err != nil {
		return "", err
	}
	reqCtx, cancel := context.WithTimeout(ctx, p.cfg.OnlineTimeout)
	defer cancel()
	began := time.Now()
	text, err := p.cfg.Online.Transcribe(reqCtx, p.cfg.OnlineEndpoint(), wav)
	p.cfg.Metrics.ObserveStage("online_transcribe", time.Since(began))
	return text, err
}

func (p *Pipeline) runOffline(ctx context.Context, s *Session, maxDuration time.Duration, logger *zap.Logger) {
	fail := func(err error) {
		p.cfg.Metrics.ObserveTranscription(string(SourceOffline), "error")
		logger.Warn("offline transcription unavailable", zap.Error(err))
		p.emit(ctx, s, Event{Type: EventError, Err: err})
	}
	if p.cfg.Offline == nil {
		fail(fmt.Errorf("%w: no offline recognizer", ErrModelUnavailable))
		return
	}
	src, err := p.openSource()
	if err != nil {
		fail(err)
		return
	}
	// The recognizer must load before the microphone is switched on.
	stream, err := p.cfg.Offline.Open(ctx, src.SampleRate())
	if err != nil {
		fail(err)
		return
	}
	defer stream.Close()
	if err := src.Start(ctx); err != nil {
		fail(err)
		return
	}
	defer src.Stop()

	err = p.record(ctx, s, src, maxDuration, func(f audio.Frame) error {
		text, ok, err := stream.Accept(ctx, f.PCM)
		if err != nil {
			return err
		}
		if ok {
			p.emit(ctx, s, Event{Type: EventPartial, Result: Result{Text: text, Source: SourceOffline, Partial: true}})
		}
		return nil
	})
	if err != nil {
		logger.Warn("offline capture interrupted", zap.Error(err))
	}

	finishCtx := context.WithoutCancel(ctx)
	text, err := stream.Finish(finishCtx)
	if err != nil {
		logger.Warn("offline recognizer finish failed", zap.Error(err))
		text = ""
	}
	outcome := "ok"
	if text == "" {
		outcome = "empty"
	}
	p.cfg.Metrics.ObserveTranscription(string(SourceOffline), outcome)
	p.emit(ctx, s, Event{Type: EventFinal, Result: Result{Text: text, Source: SourceOffline}})
}

// openSource builds a source without starting capture.
func (p *Pipeline) openSource() (audio.Source, error) {
	if p.cfg.OpenSource == nil {
		return nil, errors.New("no audio source configured")
	}
	return p.cfg.OpenSource()
}

// record reads frames until maxDuration elapses, Stop is requested or ctx
// ends. The deadline and ctx cut a blocked read; Stop never does.
func (p *Pipeline) record(ctx context.Context, s *Session, src audio.Source, maxDuration time.Duration, onFrame func(audio.Frame) error) error {
	readCtx, cancel := context.WithTimeout(ctx, maxDuration)
	defer cancel()
	for {
		if s.stopRequested() {
			return nil
		}
		frame, err := src.Read(readCtx)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				return nil
			}
			if errors.Is(err, audio.ErrSourceStopped) {
				return nil
			}
			return err
		}
		if err := onFrame(frame); err != nil {
			return err
		}
		if readCtx.Err() != nil {
			return nil
		}
	}
}

func (p *Pipeline) emit(ctx context.Context, s *Session, ev Event) {
	select {
	case s.events <- ev:
	case <-ctx.Done():
		// Drop; the caller has gone away.
	}
}
