package redis

import (
	"context"
	"fmt"
	"strconv"

	"mev-sentinel/internal/domain"
	"mev-sentinel/internal/storage"
)

const sensitivityKeyPrefix = "mev-sentinel:sensitivity:"

// SensitivityStore implements storage.SensitivityStore using Redis hashes.
type SensitivityStore struct {
	client *Client
}

// NewSensitivityStore creates a new Redis-backed sensitivity store.
func NewSensitivityStore(client *Client) *SensitivityStore {
	return &SensitivityStore{client: client}
}

// Compile-time interface check.
var _ storage.SensitivityStore = (*SensitivityStore)(nil)

func sensitivityKey(poolID string) string {
	return sensitivityKeyPrefix + poolID
}

// Get retrieves the calibration for a pool. Returns ErrNotFound if never
// calibrated.
func (s *SensitivityStore) Get(ctx context.Context, poolID string) (*domain.SensitivityConfig, error) {
	if poolID == "" {
		return nil, storage.ErrInvalidInput
	}

	fields, err := s.client.HGetAll(ctx, sensitivityKey(poolID)).Result()
	if err != nil {
		return nil, fmt.Errorf("get sensitivity: %w", err)
	}
	if len(fields) == 0 {
		return nil, storage.ErrNotFound
	}

	level, err := strconv.ParseUint(fields["level"], 10, 8)
	if err != nil {
		return nil, fmt.Errorf("parse level: %w", err)
	}
	updatedAt, err := strconv.ParseInt(fields["updated_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}

	return &domain.SensitivityConfig{Level: uint8(level), UpdatedAt: updatedAt}, nil
}

// Put overwrites the calibration for a pool.
func (s *SensitivityStore) Put(ctx context.Context, poolID string, cfg *domain.SensitivityConfig) error {
	if poolID == "" || cfg == nil {
		return storage.ErrInvalidInput
	}

	err := s.client.HSet(ctx, sensitivityKey(poolID),
		"level", strconv.FormatUint(uint64(cfg.Level), 10),
		"updated_at", strconv.FormatInt(cfg.UpdatedAt, 10),
	).Err()
	if err != nil {
		return fmt.Errorf("put sensitivity: %w", err)
	}
	return nil
}
