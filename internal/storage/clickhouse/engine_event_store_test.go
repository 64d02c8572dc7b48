package clickhouse_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mev-sentinel/internal/domain"
	"mev-sentinel/internal/storage"
	"mev-sentinel/internal/storage/clickhouse"
)

func TestEngineEventStore_InsertAndGetByPool(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := clickhouse.NewEngineEventStore(conn)
	ctx := context.Background()

	events := []*domain.EngineEvent{
		{Type: domain.EventMetricsUpdated, PoolID: "pool-a", At: 100},
		{Type: domain.EventAnalysisCompleted, PoolID: "pool-a", Trader: "trader-1", At: 200},
		{Type: domain.EventMetricsUpdated, PoolID: "pool-b", At: 250},
		{Type: domain.EventCalibrationChanged, PoolID: "pool-a", Level: 80, At: 300},
	}
	for _, e := range events {
		err := store.Insert(ctx, e)
		require.NoError(t, err)
	}

	got, err := store.GetByPool(ctx, "pool-a", 0)
	require.NoError(t, err)
	require.Len(t, got, 3)

	// Newest first.
	assert.Equal(t, int64(300), got[0].At)
	assert.Equal(t, domain.EventCalibrationChanged, got[0].Type)
	assert.Equal(t, uint8(80), got[0].Level)
	assert.Equal(t, int64(200), got[1].At)
	assert.Equal(t, "trader-1", got[1].Trader)
	assert.Equal(t, int64(100), got[2].At)

	limited, err := store.GetByPool(ctx, "pool-a", 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, int64(300), limited[0].At)
	assert.Equal(t, int64(200), limited[1].At)
}

func TestEngineEventStore_GetByTimeRange(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := clickhouse.NewEngineEventStore(conn)
	ctx := context.Background()

	for _, at := range []int64{300, 100, 200, 400} {
		err := store.Insert(ctx, &domain.EngineEvent{
			Type:   domain.EventMetricsUpdated,
			PoolID: "pool-a",
			At:     at,
		})
		require.NoError(t, err)
	}

	// Bounds are inclusive and results come back in time order.
	got, err := store.GetByTimeRange(ctx, "pool-a", 100, 300)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, int64(100), got[0].At)
	assert.Equal(t, int64(200), got[1].At)
	assert.Equal(t, int64(300), got[2].At)

	empty, err := store.GetByTimeRange(ctx, "pool-a", 500, 600)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestEngineEventStore_RejectsInvalidInput(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := clickhouse.NewEngineEventStore(conn)
	ctx := context.Background()

	err := store.Insert(ctx, nil)
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	err = store.Insert(ctx, &domain.EngineEvent{Type: domain.EventMetricsUpdated})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	err = store.Insert(ctx, &domain.EngineEvent{PoolID: "pool-a"})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}
