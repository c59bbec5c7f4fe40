package agent

import (
	"errors"
	"fmt"
)

// ErrNotConfigured means no reply endpoint is set; the feature is off.
var ErrNotConfigured = errors.New("reply agent endpoint not configured")

type Kind string

const (
	KindNetwork  Kind = "network"
	KindTimeout  Kind = "timeout"
	KindProtocol Kind = "protocol"
)

// Error is returned by Generate for every failure past configuration.
type Error struct {
	Kind       Kind
	StatusCode int
	Retryable  bool
	Err        error
}

// Sentinels for errors.Is.
var (
	ErrNetwork  = &Error{Kind: KindNetwork}
	ErrTimeout  = &Error{Kind: KindTimeout}
	ErrProtocol = &Error{Kind: KindProtocol}
)

func (e *Error) Error() string {
	msg := "reply agent " + string(e.Kind) + " error"
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Kind only, so errors.Is(err, ErrTimeout) works for any
// timeout regardless of detail.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the failure kind, or "" for non-agent errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
