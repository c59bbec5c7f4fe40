package audio

import (
	"context"
	"sync"
	"time"
)

// MockSource replays scripted frames, then silence, paced like a real
// device. It is used in tests and when no capture tool is installed.
type MockSource struct {
	sampleRate int
	interval   time.Duration

	mu      sync.Mutex
	frames  [][]byte
	next    int
	stopped bool
}

// NewMockSource returns a source emitting frames every interval. A zero
// interval delivers frames as fast as they are read.
func NewMockSource(sampleRate int, interval time.Duration, frames ...[]byte) *MockSource {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	return &MockSource{sampleRate: sampleRate, interval: interval, frames: frames}
}

func (m *MockSource) Name() string    { return "mock" }
func (m *MockSource) SampleRate() int { return m.sampleRate }

func (m *MockSource) Start(context.Context) error { return nil }

func (m *MockSource) Read(ctx context.Context) (Frame, error) {
	if m.interval > 0 {
		timer := time.NewTimer(m.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return Frame{}, ctx.Err()
		case <-timer.C:
		}
	} else if err := ctx.Err(); err != nil {
		return Frame{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return Frame{}, ErrSourceStopped
	}
	if m.next < len(m.frames) {
		pcm := m.frames[m.next]
		m.next++
		return Frame{PCM: pcm, SampleRate: m.sampleRate}, nil
	}
	silence := make([]byte, BytesForDuration(m.sampleRate, frameDuration))
	return Frame{PCM: silence, SampleRate: m.sampleRate}, nil
}

func (m *MockSource) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
	return nil
}
