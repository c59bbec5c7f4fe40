package voice

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/ent0n29/callassist/internal/observability"
)

// Renderer owns the single synthesis engine. Messages are not queued: a new
// Speak flushes whatever is still playing.
type Renderer struct {
	engine  Engine
	logger  *zap.Logger
	metrics *observability.Metrics

	mu          sync.Mutex
	initialized bool
	cancel      context.CancelFunc
	seq         uint64
	wg          sync.WaitGroup
}

func NewRenderer(engine Engine, logger *zap.Logger, metrics *observability.Metrics) *Renderer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Renderer{engine: engine, logger: logger, metrics: metrics}
}

// Initialize brings the engine up once. Later calls are no-ops.
func (r *Renderer) Initialize(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.initialized {
		return nil
	}
	if r.engine == nil {
		return ErrEngineUnavailable
	}
	if err := r.engine.Init(ctx); err != nil {
		return err
	}
	r.initialized = true
	r.logger.Info("speech engine ready", zap.String("engine", r.engine.Name()))
	return nil
}

// Ready reports whether Initialize succeeded.
func (r *Renderer) Ready() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.initialized
}

// Speak starts rendering message in the given style and returns without
// waiting for playback. The text is spoken as given. With no initialized
// engine the message is dropped.
func (r *Renderer) Speak(message, style string) {
	if strings.TrimSpace(message) == "" {
		return
	}
	r.mu.Lock()
	if !r.initialized {
		r.mu.Unlock()
		r.metrics.ObserveSpeech("dropped")
		r.logger.Debug("speech dropped, engine not initialized")
		return
	}
	if r.cancel != nil {
		r.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.seq++
	seq := r.seq
	params := ParamsFor(style)
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		defer r.release(seq)
		err := r.engine.Speak(ctx, message, params)
		switch {
		case err == nil:
			r.metrics.ObserveSpeech("ok")
		case errors.Is(err, context.Canceled):
			r.metrics.ObserveSpeech("flushed")
		default:
			r.metrics.ObserveSpeech("error")
			r.logger.Warn("speech failed", zap.Error(err))
		}
	}()
}

// Stop flushes the current utterance, if any.
func (r *Renderer) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
}

// Close flushes playback, waits for it to unwind and releases the engine.
func (r *Renderer) Close() error {
	r.Stop()
	r.wg.Wait()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.initialized = false
	if r.engine == nil {
		return nil
	}
	return r.engine.Close()
}

// Wait blocks until every started utterance has returned.
func (r *Renderer) Wait() { r.wg.Wait() }

func (r *Renderer) release(seq uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.seq == seq && r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
}
