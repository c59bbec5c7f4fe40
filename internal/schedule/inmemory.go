package schedule

import (
	"context"
	"sync"
)

// InMemoryStore does not survive restarts.
type InMemoryStore struct {
	mu  sync.RWMutex
	req *Request
}

func NewInMemoryStore() *InMemoryStore { return &InMemoryStore{} }

func (s *InMemoryStore) Save(_ context.Context, req Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.req = &req
	return nil
}

func (s *InMemoryStore) Load(context.Context) (Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.req == nil {
		return Request{}, ErrNoSchedule
	}
	return *s.req, nil
}

func (s *InMemoryStore) DeleteIf(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.req == nil || s.req.ID != id {
		return false, nil
	}
	s.req = nil
	return true, nil
}

func (s *InMemoryStore) Close() error { return nil }
