package memory

import (
	"context"
	"sync"

	"mev-sentinel/internal/domain"
	"mev-sentinel/internal/storage"
)

// EngineEventStore is an in-memory implementation of storage.EngineEventStore.
// Events are kept in insertion order.
type EngineEventStore struct {
	mu     sync.RWMutex
	events []*domain.EngineEvent
}

// NewEngineEventStore creates a new in-memory event store.
func NewEngineEventStore() *EngineEventStore {
	return &EngineEventStore{}
}

// Compile-time interface check.
var _ storage.EngineEventStore = (*EngineEventStore)(nil)

// Insert appends one event.
func (s *EngineEventStore) Insert(_ context.Context, e *domain.EngineEvent) error {
	if e == nil || e.PoolID == "" || e.Type == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	copy := *e
	s.events = append(s.events, &copy)
	return nil
}

// GetByPool retrieves the most recent events for a pool, newest first.
func (s *EngineEventStore) GetByPool(_ context.Context, poolID string, limit int) ([]*domain.EngineEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.EngineEvent
	for i := len(s.events) - 1; i >= 0; i-- {
		if s.events[i].PoolID != poolID {
			continue
		}
		copy := *s.events[i]
		result = append(result, &copy)
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

// GetByTimeRange retrieves events for a pool within [start, end] inclusive,
// ordered by time ASC.
func (s *EngineEventStore) GetByTimeRange(_ context.Context, poolID string, start, end int64) ([]*domain.EngineEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.EngineEvent
	for _, e := range s.events {
		if e.PoolID == poolID && e.At >= start && e.At <= end {
			copy := *e
			result = append(result, &copy)
		}
	}
	return result, nil
}
