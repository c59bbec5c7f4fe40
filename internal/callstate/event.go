package callstate

import (
	"fmt"
	"strings"
)

type Direction string

const (
	DirectionIncoming Direction = "incoming"
	DirectionOutgoing Direction = "outgoing"
)

type State string

const (
	StateRinging    State = "ringing"
	StateDialing    State = "dialing"
	StateConnecting State = "connecting"
	StateActive     State = "active"
	StateEnded      State = "ended"
)

// CallEvent is one telephony state transition. RemoteNumber is empty when
// the platform did not report it.
type CallEvent struct {
	Direction    Direction `json:"direction"`
	State        State     `json:"state"`
	RemoteNumber string    `json:"remote_number,omitempty"`
}

// Validate normalizes case and rejects unknown enum values.
func (e *CallEvent) Validate() error {
	e.Direction = Direction(strings.ToLower(strings.TrimSpace(string(e.Direction))))
	e.State = State(strings.ToLower(strings.TrimSpace(string(e.State))))
	switch e.Direction {
	case DirectionIncoming, DirectionOutgoing:
	default:
		return fmt.Errorf("invalid direction %q", e.Direction)
	}
	switch e.State {
	case StateRinging, StateDialing, StateConnecting, StateActive, StateEnded:
	default:
		return fmt.Errorf("invalid state %q", e.State)
	}
	return nil
}
