// Package channel maintains the push connection to the back-end and
// fans inbound events out to subscribers.
package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/nhle/wardboard/internal/model"
)

// EventKind names an event on the wire.
type EventKind string

const (
	// Inbound.
	EventStateUpdate  EventKind = "state_update"
	EventNotification EventKind = "notification"
	EventSyncRequired EventKind = "sync_required"

	// Outbound. Notifications travel both ways.
	EventSyncStatus EventKind = "sync_status"
)

func (k EventKind) inbound() bool {
	switch k {
	case EventStateUpdate, EventNotification, EventSyncRequired:
		return true
	}
	return false
}

// Envelope is a single text frame.
type Envelope struct {
	Event EventKind       `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Handler receives the raw data of an inbound event. Handlers run on the
// channel's read goroutine and must not block for long.
type Handler func(data json.RawMessage)

// Conn abstracts a WebSocket connection for testability.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// DialFunc opens a connection. resp may be non-nil on a failed handshake.
type DialFunc func(ctx context.Context, endpoint string, header http.Header) (conn Conn, resp *http.Response, err error)

// Session identifies the authenticated user the connection belongs to.
type Session struct {
	UserID string
	Role   model.Role
	Token  string
}

// Channel is one push connection per authenticated session.
type Channel struct {
	endpoint       string
	session        Session
	reconnectDelay time.Duration
	dial           DialFunc
	logger         zerolog.Logger

	send      chan []byte
	connected atomic.Bool

	mu      sync.RWMutex
	subs    map[EventKind]map[*Subscription]struct{}
	onError func(error)
	closed  bool
}

// Option configures a Channel.
type Option func(*Channel)

// WithDialer replaces the gorilla dialer.
func WithDialer(d DialFunc) Option {
	return func(c *Channel) { c.dial = d }
}

// New creates a channel for session. Run must be called to connect.
func New(endpoint string, session Session, cfg model.ChannelConfig, logger zerolog.Logger, opts ...Option) *Channel {
	buf := cfg.SendBuffer
	if buf <= 0 {
		buf = 64
	}
	delay := cfg.ReconnectDelay
	if delay <= 0 {
		delay = 2 * time.Second
	}
	c := &Channel{
		endpoint:       endpoint,
		session:        session,
		reconnectDelay: delay,
		dial:           gorillaDial,
		logger:         logger,
		send:           make(chan []byte, buf),
		subs:           make(map[EventKind]map[*Subscription]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func gorillaDial(ctx context.Context, endpoint string, header http.Header) (Conn, *http.Response, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, endpoint, header)
	if err != nil {
		return nil, resp, err
	}
	return conn, resp, nil
}

// OnError registers fn to receive connection failures as *ConnectError.
func (c *Channel) OnError(fn func(error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onError = fn
}

// Connected reports whether a connection is currently established.
func (c *Channel) Connected() bool {
	return c.connected.Load()
}

// Subscribe registers handler for kind. Close the returned subscription to
// stop receiving events.
func (c *Channel) Subscribe(kind EventKind, handler Handler) *Subscription {
	s := &Subscription{ch: c, kind: kind, handler: handler}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		s.once.Do(func() {})
		return s
	}
	if c.subs[kind] == nil {
		c.subs[kind] = make(map[*Subscription]struct{})
	}
	c.subs[kind][s] = struct{}{}
	return s
}

func (c *Channel) unsubscribe(s *Subscription) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if set, ok := c.subs[s.kind]; ok {
		delete(set, s)
		if len(set) == 0 {
			delete(c.subs, s.kind)
		}
	}
}

// SubscriberCount returns the number of live subscriptions for kind.
func (c *Channel) SubscriberCount(kind EventKind) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.subs[kind])
}

// Emit queues an outbound event without waiting. It returns false when
// the event was dropped because the channel is down or the send buffer
// is full.
func (c *Channel) Emit(kind EventKind, payload any) bool {
	data, err := json.Marshal(payload)
	if err != nil {
		c.logger.Error().Err(err).Str("event", string(kind)).Msg("marshaling outbound event")
		return false
	}
	frame, err := json.Marshal(Envelope{Event: kind, Data: data})
	if err != nil {
		c.logger.Error().Err(err).Str("event", string(kind)).Msg("marshaling envelope")
		return false
	}

	if !c.connected.Load() {
		c.logger.Debug().Str("event", string(kind)).Msg("channel down, dropping outbound event")
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		c.logger.Warn().Str("event", string(kind)).Msg("send buffer full, dropping outbound event")
		return false
	}
}

// Close releases every subscription. Run keeps its own lifetime through
// its context.
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	for kind, set := range c.subs {
		for s := range set {
			s.once.Do(func() {})
		}
		delete(c.subs, kind)
	}
}

// Run connects and keeps the connection up until ctx is done, waiting the
// reconnect delay between attempts. It always returns ctx.Err().
func (c *Channel) Run(ctx context.Context) error {
	endpoint, err := c.sessionURL()
	if err != nil {
		c.report(&ConnectError{Endpoint: c.endpoint, Attempt: 1, Err: err})
		<-ctx.Done()
		return ctx.Err()
	}

	header := http.Header{}
	if c.session.Token != "" {
		header.Set("Authorization", "Bearer "+c.session.Token)
	}

	attempt := 0
	for {
		attempt++
		conn, resp, err := c.dial(ctx, endpoint, header)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			cerr := &ConnectError{Endpoint: c.endpoint, Attempt: attempt, Err: err}
			if resp != nil {
				cerr.StatusCode = resp.StatusCode
			}
			c.report(cerr)
		} else {
			attempt = 0
			c.logger.Info().Str("endpoint", c.endpoint).Msg("push channel connected")
			err = c.serve(ctx, conn)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Warn().Err(err).Msg("push channel disconnected")
		}

		timer := time.NewTimer(c.reconnectDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// sessionURL appends the session identifier to the endpoint.
func (c *Channel) sessionURL() (string, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return "", fmt.Errorf("parsing channel endpoint: %w", err)
	}
	q := u.Query()
	if c.session.UserID != "" {
		q.Set("user_id", c.session.UserID)
	}
	if c.session.Role != "" {
		q.Set("role", string(c.session.Role))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *Channel) report(err *ConnectError) {
	c.logger.Error().Err(err.Err).
		Str("endpoint", err.Endpoint).
		Int("attempt", err.Attempt).
		Int("status", err.StatusCode).
		Msg("push channel connect failed")

	c.mu.RLock()
	hook := c.onError
	c.mu.RUnlock()
	if hook != nil {
		hook(err)
	}
}

// serve pumps one connection until it fails or ctx is done.
func (c *Channel) serve(ctx context.Context, conn Conn) error {
	c.connected.Store(true)
	defer c.connected.Store(false)

	readErr := make(chan error, 1)
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				readErr <- err
				return
			}
			c.dispatch(msg)
		}
	}()

	defer func() {
		conn.Close()
		<-readDone
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-readErr:
			return err
		case frame := <-c.send:
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return fmt.Errorf("writing frame: %w", err)
			}
		}
	}
}

func (c *Channel) dispatch(msg []byte) {
	var env Envelope
	if err := json.Unmarshal(msg, &env); err != nil {
		c.logger.Warn().Err(err).Msg("skipping malformed frame")
		return
	}
	if !env.Event.inbound() {
		c.logger.Debug().Str("event", string(env.Event)).Msg("skipping unknown event")
		return
	}

	c.mu.RLock()
	handlers := make([]Handler, 0, len(c.subs[env.Event]))
	for s := range c.subs[env.Event] {
		handlers = append(handlers, s.handler)
	}
	c.mu.RUnlock()

	for _, h := range handlers {
		h(env.Data)
	}
}

// Subscription is a cancellable handle returned by Subscribe.
type Subscription struct {
	ch      *Channel
	kind    EventKind
	handler Handler
	once    sync.Once
}

// Close stops delivery to this subscription. It is safe to call more than
// once.
func (s *Subscription) Close() {
	s.once.Do(func() { s.ch.unsubscribe(s) })
}
