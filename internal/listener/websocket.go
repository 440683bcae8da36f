package listener

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/nadircryptocurrency/antalla/internal/actions"
)

// State is a position in the websocket listener's connection lifecycle.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateSubscribed
	StateStreaming
	StateReconnecting
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateSubscribed:
		return "subscribed"
	case StateStreaming:
		return "streaming"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

const maxReconnectBackoff = 30 * time.Second

// Handler is the per-venue hook set a WebsocketListener drives. Venue
// packages implement this and wrap it in a WebsocketListener rather than
// reimplementing the state machine.
type Handler interface {
	// RefreshCache refreshes any listener-local cache (e.g. the symbol
	// catalog) — run once before every (re)connect's subscribe phase.
	RefreshCache(ctx context.Context) error
	// Subscribe sends the subscription frames for every configured market
	// over conn, immediately after the handshake completes.
	Subscribe(ctx context.Context, conn *websocket.Conn) error
	// HandleMessage dispatches a single inbound frame. Unknown messages
	// return (nil, nil) — dropped, never an error.
	HandleMessage(raw []byte) ([]actions.Action, error)
}

// WebsocketListener is the reconnecting websocket state machine shared by
// every venue listener: Disconnected -> Connecting -> Subscribed ->
// Streaming -> (Reconnecting | Closed).
type WebsocketListener struct {
	cfg     Config
	sink    Sink
	handler Handler

	mu    sync.Mutex
	state State
	conn  *websocket.Conn

	closed    chan struct{}
	closeOnce sync.Once

	log *logrus.Entry
}

// NewWebsocketListener builds the shared state machine around a venue's
// Handler.
func NewWebsocketListener(cfg Config, sink Sink, handler Handler) *WebsocketListener {
	return &WebsocketListener{
		cfg:     cfg,
		sink:    sink,
		handler: handler,
		state:   StateDisconnected,
		closed:  make(chan struct{}),
		log:     logrus.WithField("exchange", cfg.Exchange.Name),
	}
}

// Name returns the venue name.
func (w *WebsocketListener) Name() string { return w.cfg.Exchange.Name }

// State returns the listener's current state machine position.
func (w *WebsocketListener) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

func (w *WebsocketListener) setState(s State) {
	w.mu.Lock()
	w.state = s
	w.mu.Unlock()
	w.log.Debugf("state -> %s", s)
}

// Close requests termination; safe to call multiple times and from a signal
// handler.
func (w *WebsocketListener) Close() {
	w.closeOnce.Do(func() {
		close(w.closed)
		w.mu.Lock()
		if w.conn != nil {
			w.conn.Close()
		}
		w.mu.Unlock()
	})
}

func (w *WebsocketListener) isClosing() bool {
	select {
	case <-w.closed:
		return true
	default:
		return false
	}
}

// Listen drives Disconnected -> Connecting -> Subscribed -> Streaming,
// reconnecting with exponential backoff and jitter (capped at 30s) on
// transport or protocol error, until Close is called. Reads carry no
// deadline, so a connection that goes silent without an error is not
// detected as a heartbeat timeout.
func (w *WebsocketListener) Listen(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = maxReconnectBackoff
	b.Multiplier = 2
	b.RandomizationFactor = 0.3

	defer w.setState(StateClosed)

	for {
		if w.isClosing() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		w.setState(StateConnecting)
		err := w.runOnce(ctx)
		if w.isClosing() {
			return nil
		}
		if err == nil {
			// runOnce only returns nil when the caller closed us.
			continue
		}

		w.log.WithError(err).Warn("listener disconnected, reconnecting")
		w.setState(StateReconnecting)

		d := b.NextBackOff()
		if d <= 0 {
			d = b.MaxInterval
		}
		timer := time.NewTimer(d)
		select {
		case <-w.closed:
			timer.Stop()
			return nil
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// runOnce performs one full connect/subscribe/stream cycle, returning the
// error that ended it (nil only if the listener was closed mid-stream).
func (w *WebsocketListener) runOnce(ctx context.Context) error {
	if err := w.handler.RefreshCache(ctx); err != nil {
		return fmt.Errorf("refresh cache: %w", err)
	}

	dialer := websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second
	conn, _, err := dialer.DialContext(ctx, w.cfg.WSURL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", w.cfg.WSURL, err)
	}
	w.mu.Lock()
	w.conn = conn
	w.mu.Unlock()
	defer func() {
		conn.Close()
		w.mu.Lock()
		w.conn = nil
		w.mu.Unlock()
	}()

	w.setState(StateSubscribed)
	if err := w.handler.Subscribe(ctx, conn); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	first := true
	for {
		if w.isClosing() {
			return nil
		}
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if w.isClosing() || errors.Is(err, websocket.ErrCloseSent) {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		if first {
			w.setState(StateStreaming)
			first = false
		}

		batch, err := w.handler.HandleMessage(raw)
		if err != nil {
			w.log.WithError(err).Warn("dropping malformed message")
			continue
		}
		if len(batch) > 0 && w.sink != nil {
			w.sink(w, batch)
		}
	}
}
