package transcribe

import (
	"context"
	"sync"
)

// ScriptedRecognizer replays fixed transcripts. The service uses it when no
// local model is installed and audio is mocked; tests use it everywhere.
type ScriptedRecognizer struct {
	Partials []string
	Final    string
	OpenErr  error

	mu    sync.Mutex
	opens int
}

func (r *ScriptedRecognizer) Name() string { return "scripted" }

func (r *ScriptedRecognizer) Open(context.Context, int) (RecognizerStream, error) {
	r.mu.Lock()
	r.opens++
	r.mu.Unlock()
	if r.OpenErr != nil {
		return nil, r.OpenErr
	}
	partials := make([]string, len(r.Partials))
	copy(partials, r.Partials)
	return &scriptedStream{partials: partials, final: r.Final}, nil
}

// Opens reports how many streams were opened.
func (r *ScriptedRecognizer) Opens() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.opens
}

type scriptedStream struct {
	partials []string
	final    string
}

func (s *scriptedStream) Accept(context.Context, []byte) (string, bool, error) {
	if len(s.partials) == 0 {
		return "", false, nil
	}
	next := s.partials[0]
	s.partials = s.partials[1:]
	return next, true, nil
}

func (s *scriptedStream) Finish(context.Context) (string, error) { return s.final, nil }

func (s *scriptedStream) Close() error { return nil }
