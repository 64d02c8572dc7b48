// Package notify publishes plaintext engine events to downstream consumers.
// Events never carry ciphertext handles or decrypted values; the encrypted
// threat verdict stays inside the assessment returned to the caller.
package notify

import (
	"context"
	"log"
	"sync"

	"mev-sentinel/internal/domain"
)

// Notifier delivers engine events. Implementations must be safe for
// concurrent use.
type Notifier interface {
	Publish(ctx context.Context, event *domain.EngineEvent) error
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, event *domain.EngineEvent) error

// Publish implements Notifier.
func (f NotifierFunc) Publish(ctx context.Context, event *domain.EngineEvent) error {
	return f(ctx, event)
}

// LogNotifier writes events to the process log.
type LogNotifier struct{}

// NewLogNotifier creates a new LogNotifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

// Compile-time interface check.
var _ Notifier = (*LogNotifier)(nil)

// Publish logs the event.
func (n *LogNotifier) Publish(_ context.Context, event *domain.EngineEvent) error {
	log.Printf("[notify] %s pool=%s level=%d at=%d", event.Type, event.PoolID, event.Level, event.At)
	return nil
}

// MemoryNotifier collects events in memory. Used in tests.
type MemoryNotifier struct {
	mu     sync.Mutex
	events []*domain.EngineEvent
}

// NewMemoryNotifier creates a new MemoryNotifier.
func NewMemoryNotifier() *MemoryNotifier {
	return &MemoryNotifier{}
}

// Compile-time interface check.
var _ Notifier = (*MemoryNotifier)(nil)

// Publish records the event.
func (n *MemoryNotifier) Publish(_ context.Context, event *domain.EngineEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	copied := *event
	n.events = append(n.events, &copied)
	return nil
}

// Events returns a snapshot of everything published so far.
func (n *MemoryNotifier) Events() []*domain.EngineEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]*domain.EngineEvent, len(n.events))
	copy(out, n.events)
	return out
}

// Multi fans an event out to several notifiers. Delivery is best effort:
// every notifier is attempted, the first error is returned.
type Multi struct {
	notifiers []Notifier
}

// NewMulti creates a fan-out notifier.
func NewMulti(notifiers ...Notifier) *Multi {
	return &Multi{notifiers: notifiers}
}

// Compile-time interface check.
var _ Notifier = (*Multi)(nil)

// Publish delivers the event to all underlying notifiers.
func (m *Multi) Publish(ctx context.Context, event *domain.EngineEvent) error {
	var firstErr error
	for _, n := range m.notifiers {
		if err := n.Publish(ctx, event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
