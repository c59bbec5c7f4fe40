package session

import (
	"time"

	"github.com/ent0n29/callassist/internal/callstate"
)

type Status string

const (
	StatusActive Status = "active"
	StatusEnded  Status = "ended"
)

// Call is one tracked telephony call.
type Call struct {
	ID             string              `json:"call_id"`
	Direction      callstate.Direction `json:"direction"`
	State          callstate.State     `json:"state"`
	RemoteNumber   string              `json:"remote_number,omitempty"`
	Status         Status              `json:"status"`
	AutoGreeted    bool                `json:"auto_greeted"`
	StartedAt      time.Time           `json:"started_at"`
	LastActivityAt time.Time           `json:"last_activity_at"`
	EndedAt        *time.Time          `json:"ended_at,omitempty"`
}
