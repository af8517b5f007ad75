package config

import (
	"fmt"
	"strings"
	"sync"
)

// KeyVectorStoreType is the runtime-switchable setting naming the
// requested vector store backend.
const KeyVectorStoreType = "VECTOR_STORE_TYPE"

// Settings is a mutex-guarded runtime key/value provider layered over
// the loaded configuration. It backs the admin operations that switch
// the vector store backend without restarting the process; the loaded
// Config supplies the initial values.
type Settings struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewSettings creates a Settings provider seeded from cfg.
func NewSettings(cfg *Config) *Settings {
	s := &Settings{values: make(map[string]string)}
	if cfg != nil && cfg.VectorStore.Type != "" {
		s.values[KeyVectorStoreType] = cfg.VectorStore.Type
	}
	return s
}

// Get returns the value for key, or def when the key is unset.
func (s *Settings) Get(key, def string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.values[key]; ok && v != "" {
		return v
	}
	return def
}

// Set stores a value for key. The vector store type key is validated;
// other keys are stored as-is.
func (s *Settings) Set(key, value string) error {
	if key == KeyVectorStoreType {
		value = strings.ToLower(strings.TrimSpace(value))
		if value != BackendLocal && value != BackendQdrant {
			return fmt.Errorf("invalid vector store type %q: must be %q or %q",
				value, BackendLocal, BackendQdrant)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

// VectorStoreType returns the currently requested backend name.
func (s *Settings) VectorStoreType() string {
	return s.Get(KeyVectorStoreType, BackendLocal)
}
