package persistence

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/cas-inventory/backend/internal/domain/shared"
)

// MemoryStore keeps collections in process memory
type MemoryStore struct {
	mu   sync.RWMutex
	data map[shared.Collection][]json.RawMessage
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[shared.Collection][]json.RawMessage)}
}

// Load implements shared.CollectionStore
func (s *MemoryStore) Load(_ context.Context, collection shared.Collection) ([]json.RawMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneRecords(s.data[collection]), nil
}

// Save implements shared.CollectionStore
func (s *MemoryStore) Save(ctx context.Context, collection shared.Collection, records []json.RawMessage) error {
	return s.SaveBatch(ctx, shared.Batch{collection: records})
}

// SaveBatch implements shared.CollectionStore
func (s *MemoryStore) SaveBatch(_ context.Context, batch shared.Batch) error {
	if err := validateBatch(batch); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for c, records := range batch {
		s.data[c] = cloneRecords(records)
	}
	return nil
}

// Ping always succeeds
func (s *MemoryStore) Ping(context.Context) error {
	return nil
}
