package memory

import (
	"context"
	"sort"
	"sync"

	"mev-sentinel/internal/storage"
)

// PoolMetricsStore is an in-memory implementation of storage.PoolMetricsStore.
type PoolMetricsStore struct {
	mu   sync.RWMutex
	data map[string]*storage.PoolMetricsRecord
}

// NewPoolMetricsStore creates a new in-memory pool metrics store.
func NewPoolMetricsStore() *PoolMetricsStore {
	return &PoolMetricsStore{
		data: make(map[string]*storage.PoolMetricsRecord),
	}
}

// Compile-time interface check.
var _ storage.PoolMetricsStore = (*PoolMetricsStore)(nil)

// Get retrieves the record for a pool. Returns ErrNotFound if never written.
func (s *PoolMetricsStore) Get(_ context.Context, poolID string) (*storage.PoolMetricsRecord, error) {
	if poolID == "" {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.data[poolID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	copy := *rec
	return &copy, nil
}

// Put upserts a record, enforcing the version chain.
func (s *PoolMetricsStore) Put(_ context.Context, rec *storage.PoolMetricsRecord) error {
	if rec == nil || rec.PoolID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, exists := s.data[rec.PoolID]
	if !exists {
		if rec.Version != 1 {
			return storage.ErrVersionConflict
		}
	} else if rec.Version != prev.Version+1 {
		return storage.ErrVersionConflict
	}

	copy := *rec
	s.data[rec.PoolID] = &copy
	return nil
}

// ListPoolIDs returns all stored pool identifiers, sorted for determinism.
func (s *PoolMetricsStore) ListPoolIDs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.data))
	for id := range s.data {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
