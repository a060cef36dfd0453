package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/catenis-labs/catenis-api-go/internal/signer"
)

const (
	// Subprotocol is the WebSocket subprotocol the notification service
	// speaks.
	Subprotocol = "notify.catenis.io"

	// channelOpenAck is the frame the server sends once the channel is live.
	channelOpenAck = "NOTIFICATION_CHANNEL_OPEN"

	defaultQueueSize        = 64
	defaultHandshakeTimeout = 10 * time.Second

	reconnectInitialWait = 500 * time.Millisecond
	reconnectMaxWait     = 30 * time.Second
)

// State is the lifecycle state of a Channel.
type State int

const (
	// Closed is the initial state of a channel that has not been opened.
	Closed State = iota
	// Connecting means the initial connection attempt is in progress.
	Connecting
	// Open means the channel is connected and delivering events.
	Open
	// Reconnecting means the connection dropped and the channel is retrying.
	Reconnecting
	// Terminated is the terminal state, reached on Close or after an
	// unrecoverable failure. A terminated channel cannot be reopened.
	Terminated
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	case Reconnecting:
		return "reconnecting"
	case Terminated:
		return "terminated"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var (
	// ErrClosed is returned when operating on a channel closed by the
	// caller.
	ErrClosed = errors.New("notify: channel closed")
	// ErrTerminated is returned when operating on a channel that stopped
	// after an unrecoverable failure; Err reports the failure.
	ErrTerminated = errors.New("notify: channel terminated")
	// ErrAlreadyOpen is returned by Open on a channel that is not Closed.
	ErrAlreadyOpen = errors.New("notify: channel already open")
)

// ChannelError describes a connection or handshake failure. Terminal errors
// (authentication rejections, protocol violations) stop the reconnect loop
// and move the channel to Terminated.
type ChannelError struct {
	Op       string
	Err      error
	Terminal bool
}

func (e *ChannelError) Error() string {
	return fmt.Sprintf("notify: %s: %v", e.Op, e.Err)
}

func (e *ChannelError) Unwrap() error { return e.Err }

// Dialer abstracts the WebSocket dial so tests can intercept the handshake.
type Dialer interface {
	DialContext(ctx context.Context, urlStr string, header http.Header) (*websocket.Conn, *http.Response, error)
}

// Option configures a Channel.
type Option func(*Channel)

// WithLogger sets the channel's logger. Default is a no-op logger.
func WithLogger(log *zap.Logger) Option {
	return func(c *Channel) { c.log = log }
}

// WithQueueSize sets the capacity of the event queue. When the queue is
// full the oldest pending event is dropped to make room for the newest.
// Default is 64.
func WithQueueSize(n int) Option {
	return func(c *Channel) {
		if n > 0 {
			c.queueSize = n
		}
	}
}

// WithDialer replaces the WebSocket dialer.
func WithDialer(d Dialer) Option {
	return func(c *Channel) { c.dialer = d }
}

// WithHandshakeTimeout sets the per-attempt connect and server-greeting
// timeout. Default is 10s.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(c *Channel) { c.handshakeTimeout = d }
}

// WithReconnectWait tunes the exponential backoff between reconnect
// attempts. Defaults are 500ms initial and 30s maximum.
func WithReconnectWait(initial, max time.Duration) Option {
	return func(c *Channel) {
		if initial > 0 {
			c.backoffInitial = initial
		}
		if max > 0 {
			c.backoffMax = max
		}
	}
}

// withRandomization sets the backoff jitter factor. Tests only.
func withRandomization(f float64) Option {
	return func(c *Channel) { c.backoffRandomization = f }
}

// withClock replaces the timestamp source used for signing. Tests only.
func withClock(now func() time.Time) Option {
	return func(c *Channel) { c.now = now }
}

// Channel is a WebSocket notification channel for one device and one
// notification event. Create it with NewChannel (or Client.NotifyChannel),
// then call Open. Events arrive on Events() until the channel is closed or
// terminated, at which point the events channel is closed and Err reports
// why.
type Channel struct {
	creds                signer.Credentials
	url                  *url.URL
	log                  *zap.Logger
	dialer               Dialer
	queueSize            int
	handshakeTimeout     time.Duration
	backoffInitial       time.Duration
	backoffMax           time.Duration
	backoffRandomization float64
	now                  func() time.Time

	mu      sync.Mutex
	state   State
	conn    *websocket.Conn
	termErr error
	started bool

	events     chan Event
	done       chan struct{}
	doneOnce   sync.Once
	eventsOnce sync.Once
}

// NewChannel creates a channel in the Closed state. The URL must be the
// full notification endpoint for the device and event, as produced by
// Client.NotifyChannel.
func NewChannel(deviceID, apiAccessSecret string, u *url.URL, opts ...Option) *Channel {
	c := &Channel{
		creds: signer.Credentials{
			DeviceID:        deviceID,
			APIAccessSecret: apiAccessSecret,
		},
		url:                  u,
		log:                  zap.NewNop(),
		queueSize:            defaultQueueSize,
		handshakeTimeout:     defaultHandshakeTimeout,
		backoffInitial:       reconnectInitialWait,
		backoffMax:           reconnectMaxWait,
		backoffRandomization: backoff.DefaultRandomizationFactor,
		now:                  time.Now,
		done:                 make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.dialer == nil {
		c.dialer = &websocket.Dialer{
			Subprotocols:     []string{Subprotocol},
			HandshakeTimeout: c.handshakeTimeout,
		}
	}
	c.events = make(chan Event, c.queueSize)
	return c
}

// State returns the channel's current state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Events returns the channel events arrive on. It is closed when the
// channel is closed or terminated.
func (c *Channel) Events() <-chan Event { return c.events }

// Done returns a channel that is closed when the notification channel
// stops, whether by Close or by termination.
func (c *Channel) Done() <-chan struct{} { return c.done }

// Err returns the error that terminated the channel, or nil if the channel
// was closed normally or is still running.
func (c *Channel) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.termErr
}

// Open connects the channel. It blocks until the server acknowledges the
// channel or the attempt fails; the context bounds only this initial
// attempt. Once open, the channel reconnects on its own after transient
// failures.
func (c *Channel) Open(ctx context.Context) error {
	c.mu.Lock()
	if c.state == Terminated {
		err := ErrClosed
		if c.termErr != nil {
			err = ErrTerminated
		}
		c.mu.Unlock()
		return err
	}
	if c.state != Closed {
		c.mu.Unlock()
		return ErrAlreadyOpen
	}
	c.state = Connecting
	c.mu.Unlock()

	conn, err := c.dial(ctx)
	if err != nil {
		var cerr *ChannelError
		if errors.As(err, &cerr) && cerr.Terminal {
			c.terminate(err)
		} else {
			c.mu.Lock()
			c.state = Closed
			c.mu.Unlock()
		}
		return err
	}

	c.mu.Lock()
	select {
	case <-c.done:
		c.mu.Unlock()
		conn.Close()
		return ErrClosed
	default:
	}
	c.state = Open
	c.conn = conn
	c.started = true
	c.mu.Unlock()

	c.log.Debug("notification channel open", zap.String("url", c.url.String()))
	go c.run(conn)
	return nil
}

// Close shuts the channel down for good, releasing the connection and
// halting any reconnect attempt. It is safe to call multiple times and from
// any goroutine.
func (c *Channel) Close() error {
	c.doneOnce.Do(func() { close(c.done) })

	c.mu.Lock()
	c.state = Terminated
	conn := c.conn
	c.conn = nil
	started := c.started
	c.mu.Unlock()

	if conn != nil {
		deadline := time.Now().Add(time.Second)
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		conn.Close()
	}
	if !started {
		c.eventsOnce.Do(func() { close(c.events) })
	}
	return nil
}

// dial performs one signed connection attempt and waits for the server's
// channel-open acknowledgement.
func (c *Channel) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	auth, ts := signer.Sign(c.creds, "GET", c.url.Host, c.url.RequestURI(), nil, c.now())
	header.Set("Authorization", auth)
	header.Set("X-BCoT-Timestamp", ts)

	conn, resp, err := c.dialer.DialContext(ctx, c.url.String(), header)
	if err != nil {
		terminal := resp != nil &&
			(resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden)
		return nil, &ChannelError{Op: "dial " + c.url.String(), Err: err, Terminal: terminal}
	}

	// The deadline is wall-clock I/O, unlike c.now which exists only to pin
	// signing timestamps.
	conn.SetReadDeadline(time.Now().Add(c.handshakeTimeout))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		conn.Close()
		return nil, &ChannelError{Op: "await channel open", Err: err}
	}
	if string(msg) != channelOpenAck {
		conn.Close()
		return nil, &ChannelError{
			Op:       "await channel open",
			Err:      fmt.Errorf("unexpected server greeting %q", msg),
			Terminal: true,
		}
	}
	conn.SetReadDeadline(time.Time{})
	return conn, nil
}

// run reads frames off the connection, delivering decoded events and
// reconnecting when the connection drops. It owns the events channel and
// closes it on exit.
func (c *Channel) run(conn *websocket.Conn) {
	defer c.eventsOnce.Do(func() { close(c.events) })

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			conn.Close()

			select {
			case <-c.done:
				return
			default:
			}

			c.mu.Lock()
			c.state = Reconnecting
			c.conn = nil
			c.mu.Unlock()
			c.log.Warn("notification connection lost, reconnecting", zap.Error(err))

			next, rerr := c.reconnect()
			if rerr != nil {
				if !errors.Is(rerr, ErrClosed) {
					c.terminate(rerr)
				}
				return
			}

			c.mu.Lock()
			select {
			case <-c.done:
				c.mu.Unlock()
				next.Close()
				return
			default:
			}
			c.state = Open
			c.conn = next
			c.mu.Unlock()
			c.log.Info("notification channel reconnected")
			conn = next
			continue
		}

		var ev Event
		if uerr := json.Unmarshal(msg, &ev); uerr != nil || ev.Name == "" {
			c.log.Warn("skipping malformed notification frame", zap.Error(uerr))
			continue
		}
		c.deliver(ev)
	}
}

// deliver enqueues an event, dropping the oldest pending event when the
// queue is full.
func (c *Channel) deliver(ev Event) {
	for {
		select {
		case c.events <- ev:
			return
		default:
		}
		select {
		case dropped := <-c.events:
			c.log.Warn("notification queue full, dropping oldest event",
				zap.String("event", string(dropped.Name)))
		default:
		}
	}
}

func (c *Channel) newBackOff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.backoffInitial
	bo.Multiplier = 2
	bo.MaxInterval = c.backoffMax
	bo.RandomizationFactor = c.backoffRandomization
	bo.MaxElapsedTime = 0
	return bo
}

// reconnect retries the connection with capped exponential backoff until it
// succeeds, hits a terminal error, or the channel is closed.
func (c *Channel) reconnect() (*websocket.Conn, error) {
	bo := c.newBackOff()

	for {
		select {
		case <-c.done:
			return nil, ErrClosed
		case <-time.After(bo.NextBackOff()):
		}

		ctx, cancel := context.WithTimeout(context.Background(), c.handshakeTimeout)
		conn, err := c.dial(ctx)
		cancel()
		if err == nil {
			return conn, nil
		}
		var cerr *ChannelError
		if errors.As(err, &cerr) && cerr.Terminal {
			return nil, err
		}
		c.log.Warn("reconnect attempt failed", zap.Error(err))
	}
}

// terminate records an unrecoverable error and stops the channel for good.
func (c *Channel) terminate(err error) {
	c.mu.Lock()
	c.state = Terminated
	c.termErr = err
	conn := c.conn
	c.conn = nil
	started := c.started
	c.mu.Unlock()

	c.log.Error("notification channel terminated", zap.Error(err))
	if conn != nil {
		conn.Close()
	}
	c.doneOnce.Do(func() { close(c.done) })
	if !started {
		c.eventsOnce.Do(func() { close(c.events) })
	}
}
