package audio

import (
	"context"
	"errors"
	"time"
)

// ErrSourceStopped is returned by Read after Stop.
var ErrSourceStopped = errors.New("audio source stopped")

// Frame is one block of PCM16LE mono samples.
type Frame struct {
	PCM        []byte
	SampleRate int
}

// Source is a push-style microphone or line capture. Read blocks until the
// next frame is ready. Stop is cooperative: a Read already in progress is
// allowed to finish.
type Source interface {
	Start(ctx context.Context) error
	Read(ctx context.Context) (Frame, error)
	Stop() error
	SampleRate() int
	Name() string
}

// Opener creates a fresh Source for each capture session.
type Opener func() (Source, error)

// BytesForDuration returns the PCM16 mono byte count for d at sampleRate.
func BytesForDuration(sampleRate int, d time.Duration) int {
	if sampleRate <= 0 || d <= 0 {
		return 0
	}
	n := int(int64(sampleRate) * int64(d) / int64(time.Second))
	return n * (BitsPerSample / 8)
}
