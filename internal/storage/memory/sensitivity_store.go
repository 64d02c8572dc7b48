package memory

import (
	"context"
	"sync"

	"mev-sentinel/internal/domain"
	"mev-sentinel/internal/storage"
)

// SensitivityStore is an in-memory implementation of storage.SensitivityStore.
type SensitivityStore struct {
	mu   sync.RWMutex
	data map[string]domain.SensitivityConfig
}

// NewSensitivityStore creates a new in-memory sensitivity store.
func NewSensitivityStore() *SensitivityStore {
	return &SensitivityStore{
		data: make(map[string]domain.SensitivityConfig),
	}
}

// Compile-time interface check.
var _ storage.SensitivityStore = (*SensitivityStore)(nil)

// Get retrieves the calibration for a pool. Returns ErrNotFound if never
// calibrated.
func (s *SensitivityStore) Get(_ context.Context, poolID string) (*domain.SensitivityConfig, error) {
	if poolID == "" {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	cfg, ok := s.data[poolID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &cfg, nil
}

// Put overwrites the calibration for a pool.
func (s *SensitivityStore) Put(_ context.Context, poolID string, cfg *domain.SensitivityConfig) error {
	if poolID == "" || cfg == nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[poolID] = *cfg
	return nil
}
