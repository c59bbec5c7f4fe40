package voice

import (
	"context"
	"strings"
	"sync"
)

// Utterance is one message handed to a RecordingEngine.
type Utterance struct {
	Text   string
	Params Params
}

// RecordingEngine is a silent engine that remembers what it was asked to
// say. Used when no synthesizer is installed and in tests.
type RecordingEngine struct {
	mu      sync.Mutex
	spoken  []Utterance
	inits   int
	initErr error
	hold    bool
	flushed int
}

func NewRecordingEngine() *RecordingEngine { return &RecordingEngine{} }

// FailInit makes Init return err.
func (e *RecordingEngine) FailInit(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.initErr = err
}

// HoldSpeech makes Speak block until its context is cancelled, like a long
// utterance still playing.
func (e *RecordingEngine) HoldSpeech(hold bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.hold = hold
}

func (e *RecordingEngine) Name() string { return "mock" }

func (e *RecordingEngine) Init(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.inits++
	return e.initErr
}

func (e *RecordingEngine) Speak(ctx context.Context, text string, p Params) error {
	e.mu.Lock()
	e.spoken = append(e.spoken, Utterance{Text: strings.TrimSpace(text), Params: p})
	hold := e.hold
	e.mu.Unlock()
	if !hold {
		return nil
	}
	<-ctx.Done()
	e.mu.Lock()
	e.flushed++
	e.mu.Unlock()
	return ctx.Err()
}

func (e *RecordingEngine) Close() error { return nil }

// Spoken returns a copy of every utterance so far.
func (e *RecordingEngine) Spoken() []Utterance {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Utterance, len(e.spoken))
	copy(out, e.spoken)
	return out
}

// Last returns the most recent utterance.
func (e *RecordingEngine) Last() (Utterance, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.spoken) == 0 {
		return Utterance{}, false
	}
	return e.spoken[len(e.spoken)-1], true
}

// Inits reports how many times Init ran.
func (e *RecordingEngine) Inits() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.inits
}

// Flushed reports how many held utterances were cut short.
func (e *RecordingEngine) Flushed() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.flushed
}
