package storage

import (
	"context"
	"errors"
	"sync"
)

var errWriteFailed = errors.New("write failed")

// MemoryKV is an in-process KV for tests and ephemeral runs. Safe for
// concurrent use.
type MemoryKV struct {
	mu   sync.RWMutex
	data map[string]string

	// FailWrites makes Set return an error, for exercising the engine's
	// best-effort persistence path.
	FailWrites bool
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string]string)}
}

func (m *MemoryKV) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *MemoryKV) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites {
		return errWriteFailed
	}
	m.data[key] = value
	return nil
}

func (m *MemoryKV) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *MemoryKV) Close() error { return nil }
