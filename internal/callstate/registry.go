package callstate

import (
	"errors"
	"strings"
	"sync"
)

// ErrEmptyNumber rejects arming a call without a target.
var ErrEmptyNumber = errors.New("pending call requires a target number")

// PendingCall is an AI-assisted outgoing call waiting for its dial event.
type PendingCall struct {
	TargetNumber string `json:"target_number"`
	Reason       string `json:"reason"`
	// VoiceStyle is empty when the caller did not pick one.
	VoiceStyle string `json:"voice_style,omitempty"`
}

// Registry holds at most one PendingCall. Every method runs under one lock
// and does no I/O.
type Registry struct {
	mu      sync.Mutex
	pending *PendingCall
}

func NewRegistry() *Registry { return &Registry{} }

// SetPending overwrites any existing pending call.
func (r *Registry) SetPending(number, reason, voiceStyle string) error {
	if number == "" {
		return ErrEmptyNumber
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = &PendingCall{
		TargetNumber: number,
		Reason:       reason,
		VoiceStyle:   strings.TrimSpace(voiceStyle),
	}
	return nil
}

// HasPendingFor matches the stored number exactly. An empty number never
// matches.
func (r *Registry) HasPendingFor(number string) bool {
	if number == "" {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pending != nil && r.pending.TargetNumber == number
}

// ConsumeAndClear returns the pending call and clears it in one step.
func (r *Registry) ConsumeAndClear() (PendingCall, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pending == nil {
		return PendingCall{}, false
	}
	p := *r.pending
	r.pending = nil
	return p, true
}

func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = nil
}

// Peek returns the pending call without consuming it.
func (r *Registry) Peek() (PendingCall, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pending == nil {
		return PendingCall{}, false
	}
	return *r.pending, true
}

// ClearFor clears the pending call only if it still targets number, so a
// call armed in the meantime survives.
func (r *Registry) ClearFor(number string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pending != nil && r.pending.TargetNumber == number {
		r.pending = nil
	}
}
