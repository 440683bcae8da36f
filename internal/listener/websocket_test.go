package listener

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadircryptocurrency/antalla/internal/actions"
	"github.com/nadircryptocurrency/antalla/internal/models"
)

// fakeHandler is a minimal Handler for driving WebsocketListener without a
// real venue parser.
type fakeHandler struct {
	refreshErr error
	subscribed int32
	handled    int32
}

func (h *fakeHandler) RefreshCache(context.Context) error { return h.refreshErr }

func (h *fakeHandler) Subscribe(_ context.Context, conn *websocket.Conn) error {
	atomic.AddInt32(&h.subscribed, 1)
	return conn.WriteMessage(websocket.TextMessage, []byte("subscribed"))
}

func (h *fakeHandler) HandleMessage(raw []byte) ([]actions.Action, error) {
	atomic.AddInt32(&h.handled, 1)
	if string(raw) == "bad" {
		return nil, errors.New("malformed")
	}
	return []actions.Action{actions.NewInsertAction(nil)}, nil
}

var upgrader = websocket.Upgrader{}

// TestWebsocketListener_ConnectsSubscribesAndStreams drives the state
// machine end to end against a real (local) websocket server: Disconnected
// -> Connecting -> Subscribed -> Streaming, then a clean Close.
func TestWebsocketListener_ConnectsSubscribesAndStreams(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		for i := 0; i < 3; i++ {
			if conn.WriteMessage(websocket.TextMessage, []byte("tick")) != nil {
				return
			}
		}
		<-r.Context().Done()
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	h := &fakeHandler{}
	w := NewWebsocketListener(Config{Exchange: models.Exchange{Name: "fake"}, WSURL: wsURL}, nil, h)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- w.Listen(ctx) }()

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&h.handled) >= 3
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, StateStreaming, w.State())
	assert.EqualValues(t, 1, atomic.LoadInt32(&h.subscribed))

	w.Close()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Listen did not return after Close")
	}
	assert.Equal(t, StateClosed, w.State())
}

// TestWebsocketListener_RefreshCacheErrorReconnectsUntilContextCancelled
// exercises the Reconnecting path without a real dial: RefreshCache fails
// every attempt, and Listen must still honor context cancellation rather
// than retry forever.
func TestWebsocketListener_RefreshCacheErrorReconnectsUntilContextCancelled(t *testing.T) {
	h := &fakeHandler{refreshErr: errors.New("symbol catalog unavailable")}
	w := NewWebsocketListener(Config{Exchange: models.Exchange{Name: "fake"}, WSURL: "ws://127.0.0.1:1"}, nil, h)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	err := w.Listen(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, StateClosed, w.State())
}

// TestWebsocketListener_CloseIsIdempotent checks Close's "safe to call
// multiple times" contract.
func TestWebsocketListener_CloseIsIdempotent(t *testing.T) {
	h := &fakeHandler{}
	w := NewWebsocketListener(Config{Exchange: models.Exchange{Name: "fake"}}, nil, h)
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() { defer wg.Done(); w.Close() }()
	}
	wg.Wait()
}
