package schedule

import (
	"context"
	"errors"
	"time"
)

// ErrNoSchedule is returned when no call is scheduled.
var ErrNoSchedule = errors.New("no scheduled call")

// Request is a call to place at FireAt. Only one is active at a time.
type Request struct {
	ID        string    `json:"id"`
	Number    string    `json:"number"`
	Reason    string    `json:"reason"`
	FireAt    time.Time `json:"fire_at"`
	CreatedAt time.Time `json:"created_at"`
}

// FireAtEpochMillis is the wall-clock trigger time in unix millis.
func (r Request) FireAtEpochMillis() int64 { return r.FireAt.UnixMilli() }

// Store persists the single active request across restarts.
type Store interface {
	// Save replaces whatever was scheduled before.
	Save(ctx context.Context, req Request) error
	Load(ctx context.Context) (Request, error)
	// DeleteIf removes the active request only while its ID is still id and
	// reports whether it did.
	DeleteIf(ctx context.Context, id string) (bool, error)
	Close() error
}

// activeSlot keys the single row in SQL stores.
const activeSlot = "active"
