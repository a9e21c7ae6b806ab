// Package persist is the extractor's key-value store: a small port with a
// gorm implementation and an in-memory one, plus the snapshot codec that
// maps the archive onto its three keys.
package persist

import (
	"context"
	"errors"
	"sync"
)

// ErrNotFound is returned by Get when the key has never been written.
var ErrNotFound = errors.New("persist: key not found")

// KV is a last-writer-wins key-value store.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, keys ...string) error
}

// MemoryKV is a KV held in process memory.
type MemoryKV struct {
	mu   sync.Mutex
	data map[string][]byte

	// Err, when set, fails every call.
	Err error
}

// NewMemoryKV returns an empty in-memory store.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string][]byte)}
}

func (m *MemoryKV) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	v, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *MemoryKV) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *MemoryKV) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}
