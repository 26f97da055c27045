package client

import "sync"

// LocalStore is the device-scoped key-value persistence the guest widget
// keeps its session identity in — the browser's localStorage in the real
// widget. No server-side token or cookie backs a chat session.
type LocalStore interface {
	Get(key string) (string, bool)
	Set(key, value string)
	Delete(key string)
}

// MemoryLocalStore is a LocalStore for tests and the demo server.
type MemoryLocalStore struct {
	mu     sync.Mutex
	values map[string]string
}

// NewMemoryLocalStore returns an empty local store.
func NewMemoryLocalStore() *MemoryLocalStore {
	return &MemoryLocalStore{values: make(map[string]string)}
}

func (s *MemoryLocalStore) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok
}

func (s *MemoryLocalStore) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}

func (s *MemoryLocalStore) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
}
