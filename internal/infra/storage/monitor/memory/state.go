package memory

import (
	"context"
	"sync"

	"github.com/ahrav/jobwatch/internal/domain/background"
)

var _ background.StateStore = (*StateStore)(nil)

// StateStore keeps the monitor's persisted item list in process memory. It is
// used for development and tests, and as the default when no durable backend
// is configured.
type StateStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewStateStore creates an empty in-memory state store.
func NewStateStore() *StateStore {
	return &StateStore{values: make(map[string]string)}
}

// Load returns the value stored under key, or background.ErrStateNotFound.
func (s *StateStore) Load(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.values[key]
	if !ok {
		return "", background.ErrStateNotFound
	}
	return v, nil
}

// Save replaces the value stored under key.
func (s *StateStore) Save(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[key] = value
	return nil
}
