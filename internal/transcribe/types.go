package transcribe

import "errors"

var (
	// ErrCaptureActive is returned when a capture starts while another runs.
	ErrCaptureActive = errors.New("capture session already active")
	// ErrModelUnavailable means the offline recognizer cannot be loaded.
	ErrModelUnavailable = errors.New("offline recognizer model unavailable")
)

type Source string

const (
	SourceOnline  Source = "online"
	SourceOffline Source = "offline"
)

// Result is one transcript. Partial results precede exactly one final one.
type Result struct {
	Text    string `json:"text"`
	Source  Source `json:"source"`
	Partial bool   `json:"partial"`
}

type EventType string

const (
	EventPartial EventType = "partial"
	EventFinal   EventType = "final"
	EventError   EventType = "error"
)

// Event is delivered on Session.Events. An error event is terminal and is
// never followed by a final result.
type Event struct {
	Type   EventType
	Result Result
	Err    error
}
