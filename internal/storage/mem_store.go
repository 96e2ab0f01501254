package storage

import (
	"context"
	"fmt"
	"sync"
)

// MemStore is an in-memory ObjectStore used in dev mode and tests,
// generalizing the original system's filesystem-backed
// DebugStorageService stub (apps/api/services/storage.py) into a
// purely in-process variant so tests never touch disk.
type MemStore struct {
	mu   sync.RWMutex
	blob map[string][]byte
}

func NewMemStore() *MemStore {
	return &MemStore{blob: make(map[string][]byte)}
}

func (m *MemStore) GetObject(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.blob[key]
	if !ok {
		return nil, fmt.Errorf("object not found: %s", key)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (m *MemStore) PutObject(ctx context.Context, key string, data []byte, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := make([]byte, len(data))
	copy(stored, data)
	m.blob[key] = stored
	return nil
}

func (m *MemStore) DeleteObject(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blob, key)
	return nil
}

func (m *MemStore) MoveObject(ctx context.Context, srcKey, dstKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.blob[srcKey]
	if !ok {
		return fmt.Errorf("object not found: %s", srcKey)
	}
	m.blob[dstKey] = data
	delete(m.blob, srcKey)
	return nil
}

func (m *MemStore) PresignGet(ctx context.Context, key string) (string, error) {
	return fmt.Sprintf("mem://%s", key), nil
}
