// Package store persists conversation state behind an opaque key/value
// boundary. The pipeline never depends on which backend is in use.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"redraft/internal/config"
	"redraft/internal/logging"
)

// ErrClosed is returned by every operation on a closed store.
var ErrClosed = errors.New("store: closed")

// Store is the persistence boundary. Get reports ok=false for a missing key.
type Store interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte) error
	Clear(ctx context.Context, key string) error
	Close() error
}

// Open builds the store selected by cfg.
func Open(cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "", "memory":
		logging.StoreDebug("Using in-memory store")
		return NewMemoryStore(), nil
	case "sqlite":
		return NewSQLiteStore(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// =============================================================================
// MEMORY STORE
// =============================================================================

// MemoryStore keeps values for the life of the process.
type MemoryStore struct {
	mu     sync.RWMutex
	data   map[string][]byte
	closed bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (m *MemoryStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, false, ErrClosed
	}
	v, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (m *MemoryStore) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *MemoryStore) Clear(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	delete(m.data, key)
	return nil
}

func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.data = nil
	return nil
}

// Len returns the number of stored keys.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}
