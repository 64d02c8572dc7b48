package notify

import (
	"context"
	"fmt"

	"mev-sentinel/internal/domain"
	"mev-sentinel/internal/storage"
)

// StoreNotifier persists events to an EngineEventStore so they can be
// queried later by pool or time range.
type StoreNotifier struct {
	store storage.EngineEventStore
}

// NewStoreNotifier creates an event-store sink.
func NewStoreNotifier(store storage.EngineEventStore) *StoreNotifier {
	return &StoreNotifier{store: store}
}

// Compile-time interface check.
var _ Notifier = (*StoreNotifier)(nil)

// Publish inserts the event.
func (n *StoreNotifier) Publish(ctx context.Context, event *domain.EngineEvent) error {
	if err := n.store.Insert(ctx, event); err != nil {
		return fmt.Errorf("store event: %w", err)
	}
	return nil
}
