package storage

import (
	"context"

	"mev-sentinel/internal/domain"
)

// PoolMetricsRecord is the stored, versioned form of a pool's encrypted
// statistics. The engine serializes writers per pool; Version is the guard
// that turns a violated assumption into an error instead of a lost update.
type PoolMetricsRecord struct {
	PoolID    string             // engine pool identifier (hashed pool key)
	Metrics   domain.PoolMetrics // ciphertext handles only
	Version   int64              // starts at 1, incremented by every fold
	UpdatedAt int64              // Unix timestamp in milliseconds
}

// PoolMetricsStore provides access to per-pool encrypted running statistics.
type PoolMetricsStore interface {
	// Get retrieves the record for a pool. Returns ErrNotFound if the pool
	// has never been written.
	Get(ctx context.Context, poolID string) (*PoolMetricsRecord, error)

	// Put upserts a record. rec.Version must be exactly one above the stored
	// version (or 1 for a new pool); otherwise ErrVersionConflict.
	Put(ctx context.Context, rec *PoolMetricsRecord) error

	// ListPoolIDs returns the identifiers of all pools with stored metrics.
	ListPoolIDs(ctx context.Context) ([]string, error)
}

// SensitivityStore provides access to per-pool calibration.
type SensitivityStore interface {
	// Get retrieves the calibration for a pool. Returns ErrNotFound if the
	// pool was never calibrated; callers fall back to the domain default.
	Get(ctx context.Context, poolID string) (*domain.SensitivityConfig, error)

	// Put overwrites the calibration for a pool.
	Put(ctx context.Context, poolID string, cfg *domain.SensitivityConfig) error
}

// EngineEventStore is the append-only audit log of plaintext notifications.
type EngineEventStore interface {
	// Insert appends one event.
	Insert(ctx context.Context, e *domain.EngineEvent) error

	// GetByPool retrieves the most recent events for a pool, newest first,
	// capped at limit (0 means no cap).
	GetByPool(ctx context.Context, poolID string, limit int) ([]*domain.EngineEvent, error)

	// GetByTimeRange retrieves events for a pool within [start, end]
	// (inclusive, milliseconds), ordered by time ASC.
	GetByTimeRange(ctx context.Context, poolID string, start, end int64) ([]*domain.EngineEvent, error)
}
