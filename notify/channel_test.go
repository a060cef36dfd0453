package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// wsServer runs handler for each WebSocket connection and returns the
// channel pointed at it.
func wsServer(t *testing.T, handler func(conn *websocket.Conn, attempt int)) (*httptest.Server, *url.URL) {
	t.Helper()
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		handler(conn, int(attempts.Add(1)))
	}))
	t.Cleanup(srv.Close)

	u, err := url.Parse("ws" + strings.TrimPrefix(srv.URL, "http"))
	require.NoError(t, err)
	return srv, u
}

func waitEvent(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "events channel closed before event arrived")
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func sendEvent(t *testing.T, conn *websocket.Conn, name, data string) {
	t.Helper()
	frame := `{"eventName":"` + name + `","data":` + data + `}`
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(frame)))
}

func TestChannelOpenDeliversEvents(t *testing.T) {
	_, u := wsServer(t, func(conn *websocket.Conn, _ int) {
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(channelOpenAck)))
		sendEvent(t, conn, "new-msg-received",
			`{"messageId":"m1","from":{"deviceId":"d2"},"receivedDate":"2022-01-01T00:00:00Z"}`)
		// Hold the connection open until the client goes away.
		conn.ReadMessage()
	})

	c := NewChannel("d1", "secret", u)
	require.Equal(t, Closed, c.State())

	require.NoError(t, c.Open(context.Background()))
	assert.Equal(t, Open, c.State())

	ev := waitEvent(t, c.Events())
	assert.Equal(t, NewMessageReceived, ev.Name)
	data, err := ev.DecodeNewMessageReceived()
	require.NoError(t, err)
	assert.Equal(t, "m1", data.MessageID)

	require.NoError(t, c.Close())
	assert.Equal(t, Terminated, c.State())
}

func TestChannelOpenSendsSignedHeaders(t *testing.T) {
	headers := make(chan http.Header, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers <- r.Header.Clone()
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.WriteMessage(websocket.TextMessage, []byte(channelOpenAck))
		conn.ReadMessage()
	}))
	defer srv.Close()
	u, err := url.Parse("ws" + strings.TrimPrefix(srv.URL, "http"))
	require.NoError(t, err)

	c := NewChannel("d1", "k", u,
		withClock(func() time.Time { return time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC) }))
	require.NoError(t, c.Open(context.Background()))
	defer c.Close()

	h := <-headers
	auth := h.Get("Authorization")
	assert.True(t, strings.HasPrefix(auth, "CTN1-HMAC-SHA256 Credential=d1/20220101/ctn1_request,Signature="), auth)
	assert.Equal(t, "20220101T000000Z", h.Get("X-Bcot-Timestamp"))
	assert.Contains(t, h.Get("Sec-Websocket-Protocol"), Subprotocol)
}

func TestChannelOpenWaitsForDelayedAckWithPinnedClock(t *testing.T) {
	_, u := wsServer(t, func(conn *websocket.Conn, _ int) {
		// Ack arrives in a separate frame, after the upgrade completed.
		time.Sleep(50 * time.Millisecond)
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(channelOpenAck)))
		conn.ReadMessage()
	})

	// A pinned signing clock must not leak into I/O deadlines.
	c := NewChannel("d1", "k", u,
		withClock(func() time.Time { return time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC) }))
	require.NoError(t, c.Open(context.Background()))
	defer c.Close()
	assert.Equal(t, Open, c.State())
}

func TestChannelAuthRejectionTerminates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()
	u, err := url.Parse("ws" + strings.TrimPrefix(srv.URL, "http"))
	require.NoError(t, err)

	c := NewChannel("d1", "bad-secret", u)
	err = c.Open(context.Background())
	require.Error(t, err)

	var cerr *ChannelError
	require.ErrorAs(t, err, &cerr)
	assert.True(t, cerr.Terminal)
	assert.Equal(t, Terminated, c.State())
	assert.Error(t, c.Err())

	// A terminated channel stays terminated.
	assert.ErrorIs(t, c.Open(context.Background()), ErrTerminated)

	select {
	case _, ok := <-c.Events():
		assert.False(t, ok)
	default:
		t.Fatal("events channel should be closed after termination")
	}
}

func TestChannelBadGreetingTerminates(t *testing.T) {
	_, u := wsServer(t, func(conn *websocket.Conn, _ int) {
		conn.WriteMessage(websocket.TextMessage, []byte("HELLO"))
	})

	c := NewChannel("d1", "k", u)
	err := c.Open(context.Background())
	require.Error(t, err)

	var cerr *ChannelError
	require.ErrorAs(t, err, &cerr)
	assert.True(t, cerr.Terminal)
	assert.Equal(t, Terminated, c.State())
}

func TestChannelRecoverableOpenFailureLeavesClosed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "busy", http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	u, err := url.Parse("ws" + strings.TrimPrefix(srv.URL, "http"))
	require.NoError(t, err)

	c := NewChannel("d1", "k", u)
	err = c.Open(context.Background())
	require.Error(t, err)

	var cerr *ChannelError
	require.ErrorAs(t, err, &cerr)
	assert.False(t, cerr.Terminal)
	assert.Equal(t, Closed, c.State())
}

func TestChannelReconnects(t *testing.T) {
	_, u := wsServer(t, func(conn *websocket.Conn, attempt int) {
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(channelOpenAck)))
		if attempt == 1 {
			// Drop the first connection right after the handshake.
			return
		}
		sendEvent(t, conn, "sent-msg-read",
			`{"messageId":"m9","to":{"deviceId":"d2"},"readDate":"2022-01-01T00:00:00Z"}`)
		conn.ReadMessage()
	})

	c := NewChannel("d1", "k", u,
		WithReconnectWait(time.Millisecond, 10*time.Millisecond),
		withRandomization(0))
	require.NoError(t, c.Open(context.Background()))
	defer c.Close()

	ev := waitEvent(t, c.Events())
	assert.Equal(t, SentMessageRead, ev.Name)
	assert.Equal(t, Open, c.State())
}

func TestChannelMalformedFramesSkipped(t *testing.T) {
	_, u := wsServer(t, func(conn *websocket.Conn, _ int) {
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(channelOpenAck)))
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"data":{}}`)))
		sendEvent(t, conn, "asset-received",
			`{"assetId":"a1","amount":1,"issuer":{"deviceId":"d2"},"from":{"deviceId":"d3"},"receivedDate":"2022-01-01T00:00:00Z"}`)
		conn.ReadMessage()
	})

	c := NewChannel("d1", "k", u)
	require.NoError(t, c.Open(context.Background()))
	defer c.Close()

	ev := waitEvent(t, c.Events())
	assert.Equal(t, AssetReceived, ev.Name)
}

func TestChannelDropsOldestWhenQueueFull(t *testing.T) {
	u, _ := url.Parse("ws://localhost/api/0.12/notify/ws/d1/new-msg-received")
	c := NewChannel("d1", "k", u, WithQueueSize(2))

	for _, id := range []string{"m1", "m2", "m3"} {
		c.deliver(Event{Name: NewMessageReceived, Data: json.RawMessage(`{"messageId":"` + id + `"}`)})
	}

	first := <-c.Events()
	second := <-c.Events()
	assert.JSONEq(t, `{"messageId":"m2"}`, string(first.Data))
	assert.JSONEq(t, `{"messageId":"m3"}`, string(second.Data))
	select {
	case ev := <-c.Events():
		t.Fatalf("unexpected extra event: %v", ev)
	default:
	}
}

func TestChannelCloseIdempotent(t *testing.T) {
	u, _ := url.Parse("ws://localhost/api/0.12/notify/ws/d1/new-msg-received")
	c := NewChannel("d1", "k", u)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.Equal(t, Terminated, c.State())

	_, ok := <-c.Events()
	assert.False(t, ok)
	assert.ErrorIs(t, c.Open(context.Background()), ErrClosed)
}

func TestChannelCloseStopsReconnecting(t *testing.T) {
	_, u := wsServer(t, func(conn *websocket.Conn, _ int) {
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(channelOpenAck)))
	})

	c := NewChannel("d1", "k", u,
		WithReconnectWait(50*time.Millisecond, time.Second),
		withRandomization(0))
	require.NoError(t, c.Open(context.Background()))

	// The server drops every connection, so the channel cycles through
	// Reconnecting; Close must end that.
	require.NoError(t, c.Close())

	select {
	case <-c.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("Done not closed after Close")
	}
	assert.Eventually(t, func() bool {
		select {
		case _, ok := <-c.Events():
			return !ok
		default:
			return false
		}
	}, 5*time.Second, 10*time.Millisecond, "events channel should close once the run loop exits")
}

func TestReconnectBackoffMonotonicUpToCap(t *testing.T) {
	u, _ := url.Parse("ws://localhost/api/0.12/notify/ws/d1/new-msg-received")
	c := NewChannel("d1", "k", u,
		WithReconnectWait(500*time.Millisecond, 30*time.Second),
		withRandomization(0))

	bo := c.newBackOff()
	prev := time.Duration(0)
	for i := 0; i < 12; i++ {
		next := bo.NextBackOff()
		assert.GreaterOrEqual(t, next, prev)
		assert.LessOrEqual(t, next, 30*time.Second)
		prev = next
	}
	// Once at the cap, the delay holds steady.
	assert.Equal(t, 30*time.Second, prev)
	assert.Equal(t, 30*time.Second, bo.NextBackOff())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "closed", Closed.String())
	assert.Equal(t, "connecting", Connecting.String())
	assert.Equal(t, "open", Open.String())
	assert.Equal(t, "reconnecting", Reconnecting.String())
	assert.Equal(t, "terminated", Terminated.String())
}

func TestChannelErrorUnwrap(t *testing.T) {
	base := errors.New("boom")
	err := &ChannelError{Op: "dial", Err: base}
	assert.ErrorIs(t, err, base)
	assert.Contains(t, err.Error(), "dial")
}
