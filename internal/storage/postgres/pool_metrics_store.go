package postgres

import (
	"context"
	"fmt"

	"mev-sentinel/internal/domain"
	"mev-sentinel/internal/fhe"
	"mev-sentinel/internal/storage"
)

// PoolMetricsStore implements storage.PoolMetricsStore using PostgreSQL.
// Only ciphertext handles are persisted; widths are fixed by the data model
// and reattached on read.
type PoolMetricsStore struct {
	pool *Pool
}

// NewPoolMetricsStore creates a new PoolMetricsStore.
func NewPoolMetricsStore(pool *Pool) *PoolMetricsStore {
	return &PoolMetricsStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PoolMetricsStore = (*PoolMetricsStore)(nil)

// Get retrieves the record for a pool. Returns ErrNotFound if never written.
func (s *PoolMetricsStore) Get(ctx context.Context, poolID string) (*storage.PoolMetricsRecord, error) {
	if poolID == "" {
		return nil, storage.ErrInvalidInput
	}

	row := s.pool.QueryRow(ctx, `
		SELECT pool_id, avg_swap_size, avg_gas_price, last_large_swap_ts, volatility_score, total_volume_24h, version, updated_at
		FROM pool_metrics
		WHERE pool_id = $1
	`, poolID)

	var rec storage.PoolMetricsRecord
	var avgSize, avgGas, lastLarge, volatility, volume string
	err := row.Scan(&rec.PoolID, &avgSize, &avgGas, &lastLarge, &volatility, &volume, &rec.Version, &rec.UpdatedAt)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get pool metrics: %w", err)
	}

	rec.Metrics = domain.PoolMetrics{
		AverageSwapSize:        fhe.Ciphertext{Handle: fhe.Handle(avgSize), Width: fhe.U128},
		AverageGasPrice:        fhe.Ciphertext{Handle: fhe.Handle(avgGas), Width: fhe.U64},
		LastLargeSwapTimestamp: fhe.Ciphertext{Handle: fhe.Handle(lastLarge), Width: fhe.U32},
		VolatilityScore:        fhe.Ciphertext{Handle: fhe.Handle(volatility), Width: fhe.U64},
		TotalVolume24h:         fhe.Ciphertext{Handle: fhe.Handle(volume), Width: fhe.U128},
	}
	return &rec, nil
}

// Put upserts a record, enforcing the version chain. A version that does not
// extend the stored chain updates zero rows and maps to ErrVersionConflict.
func (s *PoolMetricsStore) Put(ctx context.Context, rec *storage.PoolMetricsRecord) error {
	if rec == nil || rec.PoolID == "" || rec.Version < 1 {
		return storage.ErrInvalidInput
	}
	if err := rec.Metrics.Validate(); err != nil {
		return storage.ErrInvalidInput
	}

	if rec.Version == 1 {
		_, err := s.pool.Exec(ctx, `
			INSERT INTO pool_metrics (
				pool_id, avg_swap_size, avg_gas_price, last_large_swap_ts, volatility_score, total_volume_24h, version, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`,
			rec.PoolID,
			string(rec.Metrics.AverageSwapSize.Handle),
			string(rec.Metrics.AverageGasPrice.Handle),
			string(rec.Metrics.LastLargeSwapTimestamp.Handle),
			string(rec.Metrics.VolatilityScore.Handle),
			string(rec.Metrics.TotalVolume24h.Handle),
			rec.Version,
			rec.UpdatedAt,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				// The pool already has a version chain.
				return storage.ErrVersionConflict
			}
			return fmt.Errorf("insert pool metrics: %w", err)
		}
		return nil
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE pool_metrics
		SET avg_swap_size = $2,
		    avg_gas_price = $3,
		    last_large_swap_ts = $4,
		    volatility_score = $5,
		    total_volume_24h = $6,
		    version = $7,
		    updated_at = $8
		WHERE pool_id = $1 AND version = $7 - 1
	`,
		rec.PoolID,
		string(rec.Metrics.AverageSwapSize.Handle),
		string(rec.Metrics.AverageGasPrice.Handle),
		string(rec.Metrics.LastLargeSwapTimestamp.Handle),
		string(rec.Metrics.VolatilityScore.Handle),
		string(rec.Metrics.TotalVolume24h.Handle),
		rec.Version,
		rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update pool metrics: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrVersionConflict
	}
	return nil
}

// ListPoolIDs returns the identifiers of all pools with stored metrics.
func (s *PoolMetricsStore) ListPoolIDs(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT pool_id FROM pool_metrics ORDER BY pool_id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list pool ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan pool id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pool ids: %w", err)
	}
	return ids, nil
}
