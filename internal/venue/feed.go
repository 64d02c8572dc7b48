package venue

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// Feed delivers encrypted swap envelopes from a venue.
type Feed interface {
	// Envelopes returns the delivery channel. The channel is closed when
	// the feed shuts down.
	Envelopes() <-chan *SwapEnvelope
	Close() error
}

// WSFeedConfig configures WebSocket feed behavior.
type WSFeedConfig struct {
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing control frames.
	WriteTimeout time.Duration
	// Buffer is the envelope channel capacity; absorbs bursts.
	Buffer int
}

// DefaultWSFeedConfig returns default feed configuration.
func DefaultWSFeedConfig() WSFeedConfig {
	return WSFeedConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
		Buffer:            10000,
	}
}

// WSFeed implements Feed over gorilla/websocket with automatic reconnect.
// Envelopes that fail validation are counted and dropped; the stream keeps
// going.
type WSFeed struct {
	endpoint string
	config   WSFeedConfig

	conn   *websocket.Conn
	connMu sync.Mutex
	closed atomic.Bool

	out     chan *SwapEnvelope
	dropped atomic.Uint64

	done chan struct{}
	wg   sync.WaitGroup

	reconnecting atomic.Bool
}

// Compile-time interface check.
var _ Feed = (*WSFeed)(nil)

// NewWSFeed connects to the venue endpoint and starts reading envelopes.
func NewWSFeed(ctx context.Context, endpoint string, config *WSFeedConfig) (*WSFeed, error) {
	cfg := DefaultWSFeedConfig()
	if config != nil {
		cfg = *config
	}

	f := &WSFeed{
		endpoint: endpoint,
		config:   cfg,
		out:      make(chan *SwapEnvelope, cfg.Buffer),
		done:     make(chan struct{}),
	}

	if err := f.connect(ctx); err != nil {
		return nil, err
	}

	f.wg.Add(1)
	go f.readLoop()

	f.wg.Add(1)
	go f.pingLoop()

	return f, nil
}

// connect establishes the WebSocket connection.
func (f *WSFeed) connect(ctx context.Context) error {
	f.connMu.Lock()
	defer f.connMu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, f.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	f.conn = conn
	return nil
}

// Envelopes returns the delivery channel.
func (f *WSFeed) Envelopes() <-chan *SwapEnvelope {
	return f.out
}

// Dropped returns the number of invalid envelopes discarded so far.
func (f *WSFeed) Dropped() uint64 {
	return f.dropped.Load()
}

// Close shuts the feed down and closes the envelope channel.
func (f *WSFeed) Close() error {
	if f.closed.Swap(true) {
		return nil // Already closed
	}

	close(f.done)

	f.connMu.Lock()
	if f.conn != nil {
		f.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		f.conn.Close()
	}
	f.connMu.Unlock()

	f.wg.Wait()
	close(f.out)
	return nil
}

// readLoop reads messages from the socket and delivers decoded envelopes.
func (f *WSFeed) readLoop() {
	defer f.wg.Done()

	reconnectDelay := f.config.ReconnectDelay

	for !f.closed.Load() {
		f.connMu.Lock()
		conn := f.conn
		f.connMu.Unlock()

		if conn == nil {
			select {
			case <-f.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		conn.SetReadDeadline(time.Now().Add(f.config.ReadTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			if f.closed.Load() {
				return
			}

			// Connection error - attempt reconnect with exponential backoff
			if !f.reconnecting.Swap(true) {
				go f.reconnect(reconnectDelay)
			}

			reconnectDelay = reconnectDelay * 2
			if reconnectDelay > f.config.MaxReconnectDelay {
				reconnectDelay = f.config.MaxReconnectDelay
			}

			select {
			case <-f.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		// Reset delay on successful read
		reconnectDelay = f.config.ReconnectDelay

		env, err := DecodeEnvelope(message)
		if err != nil {
			f.dropped.Add(1)
			log.Printf("[venue] dropped envelope: %v", err)
			continue
		}

		// Block until we can send - never drop valid envelopes
		select {
		case f.out <- env:
		case <-f.done:
			return
		}
	}
}

// reconnect attempts to re-establish the connection.
func (f *WSFeed) reconnect(delay time.Duration) {
	defer f.reconnecting.Store(false)

	if f.closed.Load() {
		return
	}

	select {
	case <-f.done:
		return
	case <-time.After(delay):
	}

	f.connMu.Lock()
	if f.conn != nil {
		f.conn.Close()
		f.conn = nil
	}
	f.connMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := f.connect(ctx); err != nil {
		// Reconnect failed, will retry on next read error
		return
	}
}

// pingLoop sends periodic ping frames to keep the connection alive.
func (f *WSFeed) pingLoop() {
	defer f.wg.Done()

	ticker := time.NewTicker(f.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-f.done:
			return
		case <-ticker.C:
			f.connMu.Lock()
			if f.conn != nil {
				f.conn.SetWriteDeadline(time.Now().Add(f.config.WriteTimeout))
				if err := f.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					// Connection might be dead, reader will handle reconnect
				}
			}
			f.connMu.Unlock()
		}
	}
}
