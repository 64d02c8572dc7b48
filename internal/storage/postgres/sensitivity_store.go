package postgres

import (
	"context"
	"fmt"

	"mev-sentinel/internal/domain"
	"mev-sentinel/internal/storage"
)

// SensitivityStore implements storage.SensitivityStore using PostgreSQL.
type SensitivityStore struct {
	pool *Pool
}

// NewSensitivityStore creates a new SensitivityStore.
func NewSensitivityStore(pool *Pool) *SensitivityStore {
	return &SensitivityStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SensitivityStore = (*SensitivityStore)(nil)

// Get retrieves the calibration for a pool. Returns ErrNotFound if never
// calibrated.
func (s *SensitivityStore) Get(ctx context.Context, poolID string) (*domain.SensitivityConfig, error) {
	if poolID == "" {
		return nil, storage.ErrInvalidInput
	}

	row := s.pool.QueryRow(ctx, `
		SELECT level, updated_at
		FROM sensitivity_config
		WHERE pool_id = $1
	`, poolID)

	var cfg domain.SensitivityConfig
	err := row.Scan(&cfg.Level, &cfg.UpdatedAt)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get sensitivity: %w", err)
	}
	return &cfg, nil
}

// Put overwrites the calibration for a pool.
func (s *SensitivityStore) Put(ctx context.Context, poolID string, cfg *domain.SensitivityConfig) error {
	if poolID == "" || cfg == nil {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO sensitivity_config (pool_id, level, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (pool_id) DO UPDATE
		SET level = EXCLUDED.level,
		    updated_at = EXCLUDED.updated_at
	`, poolID, cfg.Level, cfg.UpdatedAt)
	if err != nil {
		return fmt.Errorf("put sensitivity: %w", err)
	}
	return nil
}
