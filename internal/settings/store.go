// Package settings holds the runtime-editable service endpoints. Values are
// seeded from config and may be replaced through the settings API; an empty
// endpoint disables the matching online feature.
package settings

import (
	"strings"
	"sync"
)

const DefaultAgentModel = "llama3"

// Values is a snapshot of every setting.
type Values struct {
	WhisperServerURL string `json:"whisper_server_url"`
	OllamaServerURL  string `json:"ollama_server_url"`
	OllamaModel      string `json:"ollama_model"`
	AutoReplyDefault bool   `json:"auto_reply_default"`
}

// Store is safe for concurrent use.
type Store struct {
	mu     sync.RWMutex
	values Values
}

func NewStore(initial Values) *Store {
	return &Store{values: normalize(initial)}
}

// OnlineASREndpoint returns the whisper-compatible transcription URL.
func (s *Store) OnlineASREndpoint() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values.WhisperServerURL
}

// OnlineAgentEndpoint returns the reply service base URL.
func (s *Store) OnlineAgentEndpoint() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values.OllamaServerURL
}

func (s *Store) AgentModelName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values.OllamaModel
}

func (s *Store) AutoReplyDefault() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values.AutoReplyDefault
}

func (s *Store) Snapshot() Values {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values
}

// Replace overwrites every setting and returns the normalized result.
func (s *Store) Replace(v Values) Values {
	v = normalize(v)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = v
	return v
}

func normalize(v Values) Values {
	v.WhisperServerURL = strings.TrimSpace(v.WhisperServerURL)
	v.OllamaServerURL = strings.TrimSpace(v.OllamaServerURL)
	v.OllamaModel = strings.TrimSpace(v.OllamaModel)
	if v.OllamaModel == "" {
		v.OllamaModel = DefaultAgentModel
	}
	return v
}
