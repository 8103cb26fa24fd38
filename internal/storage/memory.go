package storage

import (
	"context"
	"sync"

	logx "slotwatch/pkg/logx"
)

var noplog = logx.Nop()

type memoryBackend struct {
	mu sync.Mutex
	m  map[string][]byte
}

func newMemory() *memoryBackend { return &memoryBackend{m: map[string][]byte{}} }

// NewMemory returns a process-local store, mainly for tests and dry runs.
func NewMemory() Store { return newStore(newMemory(), noplog) }

// NewMemoryFrom seeds a memory store with raw values per logical key.
func NewMemoryFrom(raw map[string]string) Store {
	b := newMemory()
	for k, v := range raw {
		b.m[k] = []byte(v)
	}
	return newStore(b, noplog)
}

func (m *memoryBackend) name() string { return "memory" }

func (m *memoryBackend) get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.m[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (m *memoryBackend) put(_ context.Context, key string, val []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.m[key] = append([]byte(nil), val...)
	return nil
}

func (m *memoryBackend) close() error { return nil }
