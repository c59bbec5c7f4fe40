package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ent0n29/callassist/internal/callstate"
)

func TestManagerFollowsCallToEnded(t *testing.T) {
	m := NewManager(time.Minute)
	ring := m.Observe(callstate.CallEvent{Direction: callstate.DirectionIncoming, State: callstate.StateRinging, RemoteNumber: "0100"})
	if ring.ID == "" || ring.Status != StatusActive || ring.State != callstate.StateRinging {
		t.Fatalf("ringing call = %+v", ring)
	}

	active := m.Observe(callstate.CallEvent{Direction: callstate.DirectionIncoming, State: callstate.StateActive, RemoteNumber: "0100"})
	if active.ID != ring.ID {
		t.Fatalf("active event opened a new call %q, want %q", active.ID, ring.ID)
	}
	if m.ActiveCount() != 1 {
		t.Fatalf("ActiveCount() = %d, want 1", m.ActiveCount())
	}

	ended := m.Observe(callstate.CallEvent{Direction: callstate.DirectionIncoming, State: callstate.StateEnded, RemoteNumber: "0100"})
	if ended.Status != StatusEnded || ended.EndedAt == nil {
		t.Fatalf("ended call = %+v", ended)
	}
	if m.ActiveCount() != 0 {
		t.Fatalf("ActiveCount() = %d after end, want 0", m.ActiveCount())
	}

	next := m.Observe(callstate.CallEvent{Direction: callstate.DirectionIncoming, State: callstate.StateRinging, RemoteNumber: "0100"})
	if next.ID == ring.ID {
		t.Fatalf("new ringing reused ended call")
	}
	if len(m.List()) != 2 {
		t.Fatalf("List() len = %d, want 2", len(m.List()))
	}
}

func TestManagerMarkGreeted(t *testing.T) {
	m := NewManager(time.Minute)
	c := m.Observe(callstate.CallEvent{Direction: callstate.DirectionOutgoing, State: callstate.StateDialing, RemoteNumber: "1"})
	if err := m.MarkGreeted(c.ID); err != nil {
		t.Fatalf("MarkGreeted() error = %v", err)
	}
	got, _ := m.Get(c.ID)
	if !got.AutoGreeted {
		t.Fatalf("AutoGreeted = false")
	}
	if err := m.MarkGreeted("missing"); err != ErrNotFound {
		t.Fatalf("MarkGreeted(missing) error = %v, want ErrNotFound", err)
	}
}

func TestManagerJanitorExpiresInactive(t *testing.T) {
	m := NewManager(30 * time.Millisecond)
	var mu sync.Mutex
	var expired []string
	m.SetExpireHook(func(c *Call) {
		mu.Lock()
		defer mu.Unlock()
		expired = append(expired, c.ID)
	})
	c := m.Observe(callstate.CallEvent{Direction: callstate.DirectionIncoming, State: callstate.StateRinging})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.StartJanitor(ctx, 10*time.Millisecond)

	time.Sleep(90 * time.Millisecond)
	got, err := m.Get(c.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != StatusEnded {
		t.Fatalf("Status = %q, want %q", got.Status, StatusEnded)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(expired) != 1 || expired[0] != c.ID {
		t.Fatalf("expired = %v, want [%s]", expired, c.ID)
	}
}

func TestManagerDropsEndedCallsAfterRetention(t *testing.T) {
	m := NewManager(time.Minute)
	now := time.Now().UTC()
	m.now = func() time.Time { return now }
	c := m.Observe(callstate.CallEvent{Direction: callstate.DirectionIncoming, State: callstate.StateEnded})

	now = now.Add(2 * time.Hour)
	m.expireInactive()
	if _, err := m.Get(c.ID); err != ErrNotFound {
		t.Fatalf("Get() error = %v, want ErrNotFound after retention", err)
	}
}
