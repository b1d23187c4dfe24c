package media

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemStore keeps uploads in memory. Intended for tests.
type MemStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{objects: make(map[string][]byte)}
}

// Upload decodes the payload and stores it under a random key.
func (m *MemStore) Upload(ctx context.Context, data string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	raw, ext, err := decodePayload(data)
	if err != nil {
		return "", err
	}

	name := uuid.NewString() + ext
	m.mu.Lock()
	m.objects[name] = raw
	m.mu.Unlock()

	return "mem://" + name, nil
}

// Len reports how many objects have been stored.
func (m *MemStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

var _ Store = (*MemStore)(nil)
