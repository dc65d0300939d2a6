package database

import (
	"context"
	"sync"
)

// MemoryBackend implements Backend in process memory. Data does not survive
// a restart; it backs tests and the "memory" storage driver.
type MemoryBackend struct {
	mu     sync.RWMutex
	data   map[string][]byte
	closed bool
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{data: make(map[string][]byte)}
}

// Migrate is a no-op for the memory backend.
func (m *MemoryBackend) Migrate() error { return nil }

// Close marks the backend closed.
func (m *MemoryBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Get returns copies of the stored values.
func (m *MemoryBackend) Get(ctx context.Context, keys ...string) (map[string][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}

	out := make(map[string][]byte, len(keys))
	for _, k := range keys {
		if v, ok := m.data[k]; ok {
			out[k] = append([]byte(nil), v...)
		}
	}
	return out, nil
}

// Commit applies the batch under a single lock.
func (m *MemoryBackend) Commit(ctx context.Context, b Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}

	for k, v := range b {
		if v == nil {
			delete(m.data, k)
			continue
		}
		m.data[k] = append([]byte(nil), v...)
	}
	return nil
}
