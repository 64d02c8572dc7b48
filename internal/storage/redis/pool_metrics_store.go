package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/redis/go-redis/v9"

	"mev-sentinel/internal/domain"
	"mev-sentinel/internal/fhe"
	"mev-sentinel/internal/storage"
)

const (
	metricsKeyPrefix = "mev-sentinel:pool_metrics:"
	metricsIndexKey  = "mev-sentinel:pool_metrics:ids"
)

// PoolMetricsStore implements storage.PoolMetricsStore using Redis hashes.
// The version chain is enforced with an optimistic WATCH transaction.
type PoolMetricsStore struct {
	client *Client
}

// NewPoolMetricsStore creates a new Redis-backed pool metrics store.
func NewPoolMetricsStore(client *Client) *PoolMetricsStore {
	return &PoolMetricsStore{client: client}
}

// Compile-time interface check.
var _ storage.PoolMetricsStore = (*PoolMetricsStore)(nil)

func metricsKey(poolID string) string {
	return metricsKeyPrefix + poolID
}

// Get retrieves the record for a pool. Returns ErrNotFound if never written.
func (s *PoolMetricsStore) Get(ctx context.Context, poolID string) (*storage.PoolMetricsRecord, error) {
	if poolID == "" {
		return nil, storage.ErrInvalidInput
	}

	fields, err := s.client.HGetAll(ctx, metricsKey(poolID)).Result()
	if err != nil {
		return nil, fmt.Errorf("get pool metrics: %w", err)
	}
	if len(fields) == 0 {
		return nil, storage.ErrNotFound
	}

	return recordFromFields(poolID, fields)
}

// Put upserts a record, enforcing the version chain.
func (s *PoolMetricsStore) Put(ctx context.Context, rec *storage.PoolMetricsRecord) error {
	if rec == nil || rec.PoolID == "" || rec.Version < 1 {
		return storage.ErrInvalidInput
	}
	if err := rec.Metrics.Validate(); err != nil {
		return storage.ErrInvalidInput
	}

	key := metricsKey(rec.PoolID)
	txn := func(tx *redis.Tx) error {
		stored, err := tx.HGet(ctx, key, "version").Result()
		switch {
		case errors.Is(err, redis.Nil):
			if rec.Version != 1 {
				return storage.ErrVersionConflict
			}
		case err != nil:
			return err
		default:
			prev, parseErr := strconv.ParseInt(stored, 10, 64)
			if parseErr != nil {
				return fmt.Errorf("parse stored version: %w", parseErr)
			}
			if rec.Version != prev+1 {
				return storage.ErrVersionConflict
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key,
				"avg_swap_size", string(rec.Metrics.AverageSwapSize.Handle),
				"avg_gas_price", string(rec.Metrics.AverageGasPrice.Handle),
				"last_large_swap_ts", string(rec.Metrics.LastLargeSwapTimestamp.Handle),
				"volatility_score", string(rec.Metrics.VolatilityScore.Handle),
				"total_volume_24h", string(rec.Metrics.TotalVolume24h.Handle),
				"version", strconv.FormatInt(rec.Version, 10),
				"updated_at", strconv.FormatInt(rec.UpdatedAt, 10),
			)
			pipe.SAdd(ctx, metricsIndexKey, rec.PoolID)
			return nil
		})
		return err
	}

	err := s.client.Watch(ctx, txn, key)
	if errors.Is(err, redis.TxFailedErr) {
		return storage.ErrVersionConflict
	}
	if err != nil {
		if errors.Is(err, storage.ErrVersionConflict) {
			return storage.ErrVersionConflict
		}
		return fmt.Errorf("put pool metrics: %w", err)
	}
	return nil
}

// ListPoolIDs returns the identifiers of all pools with stored metrics.
func (s *PoolMetricsStore) ListPoolIDs(ctx context.Context) ([]string, error) {
	ids, err := s.client.SMembers(ctx, metricsIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list pool ids: %w", err)
	}
	sort.Strings(ids)
	return ids, nil
}

func recordFromFields(poolID string, fields map[string]string) (*storage.PoolMetricsRecord, error) {
	version, err := strconv.ParseInt(fields["version"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse version: %w", err)
	}
	updatedAt, err := strconv.ParseInt(fields["updated_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}

	rec := &storage.PoolMetricsRecord{
		PoolID:    poolID,
		Version:   version,
		UpdatedAt: updatedAt,
		Metrics: domain.PoolMetrics{
			AverageSwapSize:        fhe.Ciphertext{Handle: fhe.Handle(fields["avg_swap_size"]), Width: fhe.U128},
			AverageGasPrice:        fhe.Ciphertext{Handle: fhe.Handle(fields["avg_gas_price"]), Width: fhe.U64},
			LastLargeSwapTimestamp: fhe.Ciphertext{Handle: fhe.Handle(fields["last_large_swap_ts"]), Width: fhe.U32},
			VolatilityScore:        fhe.Ciphertext{Handle: fhe.Handle(fields["volatility_score"]), Width: fhe.U64},
			TotalVolume24h:         fhe.Ciphertext{Handle: fhe.Handle(fields["total_volume_24h"]), Width: fhe.U128},
		},
	}
	if err := rec.Metrics.Validate(); err != nil {
		return nil, fmt.Errorf("stored metrics for %s: %w", poolID, err)
	}
	return rec, nil
}
