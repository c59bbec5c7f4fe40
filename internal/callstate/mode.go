package callstate

import "sync"

// AssistantMode is the user's live assistant preferences.
type AssistantMode struct {
	AutoReplyEnabled bool   `json:"auto_reply_enabled"`
	OfflinePreferred bool   `json:"offline_preferred"`
	VoiceStyle       string `json:"voice_style"`
}

// ModeStore is last-write-wins with atomic read-modify-write.
type ModeStore struct {
	mu   sync.RWMutex
	mode AssistantMode
}

func NewModeStore(initial AssistantMode) *ModeStore {
	return &ModeStore{mode: initial}
}

func (s *ModeStore) Get() AssistantMode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

// Update applies fn under the write lock and returns the new mode. fn must
// not block.
func (s *ModeStore) Update(fn func(*AssistantMode)) AssistantMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.mode)
	return s.mode
}
