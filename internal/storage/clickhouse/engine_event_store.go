package clickhouse

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"mev-sentinel/internal/domain"
	"mev-sentinel/internal/storage"
)

// EngineEventStore implements storage.EngineEventStore using ClickHouse.
// The table is append-only analytics data; there is no dedup.
type EngineEventStore struct {
	conn *Conn
}

// NewEngineEventStore creates a new EngineEventStore.
func NewEngineEventStore(conn *Conn) *EngineEventStore {
	return &EngineEventStore{conn: conn}
}

// Compile-time interface check.
var _ storage.EngineEventStore = (*EngineEventStore)(nil)

// Insert appends one event.
func (s *EngineEventStore) Insert(ctx context.Context, e *domain.EngineEvent) error {
	if e == nil || e.PoolID == "" || e.Type == "" {
		return storage.ErrInvalidInput
	}

	err := s.conn.Exec(ctx, `
		INSERT INTO engine_events (event_type, pool_id, trader, level, at_ms)
		VALUES (?, ?, ?, ?, ?)
	`, string(e.Type), e.PoolID, e.Trader, e.Level, e.At)
	if err != nil {
		return fmt.Errorf("insert engine event: %w", err)
	}
	return nil
}

// GetByPool retrieves the most recent events for a pool, newest first.
func (s *EngineEventStore) GetByPool(ctx context.Context, poolID string, limit int) ([]*domain.EngineEvent, error) {
	query := `
		SELECT event_type, pool_id, trader, level, at_ms
		FROM engine_events
		WHERE pool_id = ?
		ORDER BY at_ms DESC
	`
	args := []interface{}{poolID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get events by pool: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// GetByTimeRange retrieves events for a pool within [start, end] inclusive,
// ordered by time ASC.
func (s *EngineEventStore) GetByTimeRange(ctx context.Context, poolID string, start, end int64) ([]*domain.EngineEvent, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT event_type, pool_id, trader, level, at_ms
		FROM engine_events
		WHERE pool_id = ? AND at_ms >= ? AND at_ms <= ?
		ORDER BY at_ms ASC
	`, poolID, start, end)
	if err != nil {
		return nil, fmt.Errorf("get events by time range: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func scanEvents(rows driver.Rows) ([]*domain.EngineEvent, error) {
	var events []*domain.EngineEvent
	for rows.Next() {
		var e domain.EngineEvent
		var typ string
		if err := rows.Scan(&typ, &e.PoolID, &e.Trader, &e.Level, &e.At); err != nil {
			return nil, fmt.Errorf("scan engine event: %w", err)
		}
		e.Type = domain.EventType(typ)
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate engine events: %w", err)
	}
	return events, nil
}
