package memory

import (
	"context"
	"sync"
)

// KV is an in-memory storage.KV. It is the default driver for local runs and
// the one injected in tests.
type KV struct {
	mu   sync.RWMutex
	data map[string]string
}

// New creates an empty in-memory KV.
func New() *KV {
	return &KV{data: make(map[string]string)}
}

// Get returns the value stored at key.
func (m *KV) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.data[key]
	return v, ok, nil
}

// Set stores value at key, replacing any previous value.
func (m *KV) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data[key] = value
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (m *KV) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.data, key)
	return nil
}

// Ping always succeeds.
func (m *KV) Ping(context.Context) error { return nil }

// Len returns the number of stored keys.
func (m *KV) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.data)
}
