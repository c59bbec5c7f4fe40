package session

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ent0n29/callassist/internal/callstate"
)

var ErrNotFound = errors.New("call not found")

// Manager tracks calls from their first event to ended. Calls that stop
// reporting events are expired by the janitor.
type Manager struct {
	mu                sync.RWMutex
	calls             map[string]*Call
	open              map[string]string
	inactivityTimeout time.Duration
	retention         time.Duration
	onExpire          func(*Call)
	now               func() time.Time
}

func NewManager(inactivityTimeout time.Duration) *Manager {
	if inactivityTimeout <= 0 {
		inactivityTimeout = 10 * time.Minute
	}
	return &Manager{
		calls:             make(map[string]*Call),
		open:              make(map[string]string),
		inactivityTimeout: inactivityTimeout,
		retention:         time.Hour,
		now:               func() time.Time { return time.Now().UTC() },
	}
}

func (m *Manager) SetExpireHook(hook func(*Call)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onExpire = hook
}

func openKey(d callstate.Direction, number string) string {
	return string(d) + "|" + number
}

// Observe applies an event to the matching open call, opening one if
// needed, and returns a copy.
func (m *Manager) Observe(ev callstate.CallEvent) *Call {
	now := m.now()
	key := openKey(ev.Direction, ev.RemoteNumber)

	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.calls[m.open[key]]
	if !ok || c.Status != StatusActive {
		c = &Call{
			ID:           uuid.NewString(),
			Direction:    ev.Direction,
			RemoteNumber: ev.RemoteNumber,
			Status:       StatusActive,
			StartedAt:    now,
		}
		m.calls[c.ID] = c
		m.open[key] = c.ID
	}
	c.State = ev.State
	c.LastActivityAt = now
	if ev.State == callstate.StateEnded {
		m.endLocked(c, key, now)
	}
	return clone(c)
}

// MarkGreeted records that the assistant spoke on this call.
func (m *Manager) MarkGreeted(callID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.calls[callID]
	if !ok {
		return ErrNotFound
	}
	c.AutoGreeted = true
	return nil
}

func (m *Manager) Get(callID string) (*Call, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.calls[callID]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(c), nil
}

// List returns tracked calls, newest first.
func (m *Manager) List() []Call {
	m.mu.RLock()
	out := make([]Call, 0, len(m.calls))
	for _, c := range m.calls {
		out = append(out, *clone(c))
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out
}

func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, c := range m.calls {
		if c.Status == StatusActive {
			count++
		}
	}
	return count
}

func (m *Manager) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.expireInactive()
			}
		}
	}()
}

func (m *Manager) expireInactive() {
	now := m.now()
	var expired []*Call

	m.mu.Lock()
	for id, c := range m.calls {
		if c.Status != StatusActive {
			if c.EndedAt != nil && now.Sub(*c.EndedAt) >= m.retention {
				delete(m.calls, id)
			}
			continue
		}
		if now.Sub(c.LastActivityAt) < m.inactivityTimeout {
			continue
		}
		m.endLocked(c, openKey(c.Direction, c.RemoteNumber), now)
		expired = append(expired, clone(c))
	}
	hook := m.onExpire
	m.mu.Unlock()

	if hook != nil {
		for _, c := range expired {
			hook(c)
		}
	}
}

func (m *Manager) endLocked(c *Call, key string, now time.Time) {
	c.Status = StatusEnded
	c.State = callstate.StateEnded
	c.LastActivityAt = now
	ended := now
	c.EndedAt = &ended
	if m.open[key] == c.ID {
		delete(m.open, key)
	}
}

func clone(c *Call) *Call {
	out := *c
	if c.EndedAt != nil {
		t := *c.EndedAt
		out.EndedAt = &t
	}
	return &out
}
