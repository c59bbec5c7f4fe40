package voice

import (
	"context"
	"errors"
)

// ErrEngineUnavailable means no synthesis engine could be brought up.
var ErrEngineUnavailable = errors.New("speech synthesis engine unavailable")

// Engine renders audible speech. Speak blocks until the utterance finishes
// or ctx is cancelled; cancelling must cut the audio promptly.
type Engine interface {
	Init(ctx context.Context) error
	Speak(ctx context.Context, text string, p Params) error
	Name() string
	Close() error
}
