package tokenstore

import (
	"context"
	"sync"
)

// MemoryBackend keeps slots in process memory. It does not survive restarts
// and is meant for tests and ephemeral sessions.
type MemoryBackend struct {
	mu    sync.Mutex
	slots map[string][]byte
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{slots: make(map[string][]byte)}
}

func (m *MemoryBackend) Load(_ context.Context) (map[string][]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string][]byte, len(m.slots))
	for k, v := range m.slots {
		out[k] = append([]byte(nil), v...)
	}
	return out, nil
}

func (m *MemoryBackend) Save(_ context.Context, values map[string][]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for k, v := range values {
		m.slots[k] = append([]byte(nil), v...)
	}
	return nil
}

func (m *MemoryBackend) Remove(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.slots = make(map[string][]byte)
	return nil
}

func (m *MemoryBackend) Close() error { return nil }
