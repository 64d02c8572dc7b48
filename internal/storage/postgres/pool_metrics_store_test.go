package postgres_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mev-sentinel/internal/domain"
	"mev-sentinel/internal/fhe"
	"mev-sentinel/internal/storage"
	"mev-sentinel/internal/storage/postgres"
)

func testMetrics(suffix string) domain.PoolMetrics {
	return domain.PoolMetrics{
		AverageSwapSize:        fhe.Ciphertext{Handle: fhe.Handle("avg-" + suffix), Width: fhe.U128},
		AverageGasPrice:        fhe.Ciphertext{Handle: fhe.Handle("gas-" + suffix), Width: fhe.U64},
		LastLargeSwapTimestamp: fhe.Ciphertext{Handle: fhe.Handle("ts-" + suffix), Width: fhe.U32},
		VolatilityScore:        fhe.Ciphertext{Handle: fhe.Handle("vol-" + suffix), Width: fhe.U64},
		TotalVolume24h:         fhe.Ciphertext{Handle: fhe.Handle("volume-" + suffix), Width: fhe.U128},
	}
}

func TestPoolMetricsStore_PutAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewPoolMetricsStore(pool)
	ctx := context.Background()

	_, err := store.Get(ctx, "pool-a")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	rec := &storage.PoolMetricsRecord{
		PoolID:    "pool-a",
		Metrics:   testMetrics("v1"),
		Version:   1,
		UpdatedAt: 1700000000000,
	}
	err = store.Put(ctx, rec)
	require.NoError(t, err)

	got, err := store.Get(ctx, "pool-a")
	require.NoError(t, err)

	assert.Equal(t, "pool-a", got.PoolID)
	assert.Equal(t, int64(1), got.Version)
	assert.Equal(t, int64(1700000000000), got.UpdatedAt)
	assert.Equal(t, rec.Metrics, got.Metrics)
}

func TestPoolMetricsStore_VersionChain(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewPoolMetricsStore(pool)
	ctx := context.Background()

	// The first write for a pool must carry version 1.
	err := store.Put(ctx, &storage.PoolMetricsRecord{
		PoolID:  "pool-b",
		Metrics: testMetrics("v2"),
		Version: 2,
	})
	assert.ErrorIs(t, err, storage.ErrVersionConflict)

	err = store.Put(ctx, &storage.PoolMetricsRecord{
		PoolID:  "pool-b",
		Metrics: testMetrics("v1"),
		Version: 1,
	})
	require.NoError(t, err)

	// A second insert at version 1 hits the primary key.
	err = store.Put(ctx, &storage.PoolMetricsRecord{
		PoolID:  "pool-b",
		Metrics: testMetrics("v1-again"),
		Version: 1,
	})
	assert.ErrorIs(t, err, storage.ErrVersionConflict)

	// Skipping a version updates zero rows.
	err = store.Put(ctx, &storage.PoolMetricsRecord{
		PoolID:  "pool-b",
		Metrics: testMetrics("v3"),
		Version: 3,
	})
	assert.ErrorIs(t, err, storage.ErrVersionConflict)

	err = store.Put(ctx, &storage.PoolMetricsRecord{
		PoolID:    "pool-b",
		Metrics:   testMetrics("v2"),
		Version:   2,
		UpdatedAt: 200,
	})
	require.NoError(t, err)

	got, err := store.Get(ctx, "pool-b")
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Version)
	assert.Equal(t, fhe.Handle("avg-v2"), got.Metrics.AverageSwapSize.Handle)
}

func TestPoolMetricsStore_ListPoolIDs(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewPoolMetricsStore(pool)
	ctx := context.Background()

	ids, err := store.ListPoolIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)

	for _, id := range []string{"pool-c", "pool-a", "pool-b"} {
		err := store.Put(ctx, &storage.PoolMetricsRecord{
			PoolID:  id,
			Metrics: testMetrics(id),
			Version: 1,
		})
		require.NoError(t, err)
	}

	ids, err = store.ListPoolIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"pool-a", "pool-b", "pool-c"}, ids)
}

func TestPoolMetricsStore_RejectsInvalidInput(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewPoolMetricsStore(pool)
	ctx := context.Background()

	_, err := store.Get(ctx, "")
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	err = store.Put(ctx, nil)
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	err = store.Put(ctx, &storage.PoolMetricsRecord{PoolID: "pool-x", Metrics: testMetrics("x"), Version: 0})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	// A record whose ciphertexts carry the wrong widths never reaches SQL.
	bad := testMetrics("bad")
	bad.AverageSwapSize.Width = fhe.U32
	err = store.Put(ctx, &storage.PoolMetricsRecord{PoolID: "pool-x", Metrics: bad, Version: 1})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}
