// Package stub provides an in-memory venue feed for tests and simulation.
package stub

import (
	"sync"

	"mev-sentinel/internal/venue"
)

// Feed replays a fixed set of envelopes and then closes its channel.
type Feed struct {
	out       chan *venue.SwapEnvelope
	closeOnce sync.Once
}

// Compile-time interface check.
var _ venue.Feed = (*Feed)(nil)

// NewFeed creates a stub feed preloaded with the given envelopes.
func NewFeed(envelopes ...*venue.SwapEnvelope) *Feed {
	f := &Feed{
		out: make(chan *venue.SwapEnvelope, len(envelopes)),
	}
	for _, env := range envelopes {
		f.out <- env
	}
	f.closeOnce.Do(func() { close(f.out) })
	return f
}

// NewOpenFeed creates a stub feed that stays open for Push until closed.
func NewOpenFeed(buffer int) *Feed {
	return &Feed{
		out: make(chan *venue.SwapEnvelope, buffer),
	}
}

// Push delivers one envelope. Only valid on feeds created with NewOpenFeed.
func (f *Feed) Push(env *venue.SwapEnvelope) {
	f.out <- env
}

// Envelopes returns the delivery channel.
func (f *Feed) Envelopes() <-chan *venue.SwapEnvelope {
	return f.out
}

// Close closes the delivery channel.
func (f *Feed) Close() error {
	f.closeOnce.Do(func() {
		close(f.out)
	})
	return nil
}
