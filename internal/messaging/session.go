// Package messaging is the Messaging Client (C8): a reconnecting WebSocket
// session carrying durable, acknowledged subscriptions and an outbound
// publisher, modeled after a durable NATS push consumer since no example
// repo in this workspace vendors a NATS client.
package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	maxReconnectAttempts = 1000
	reconnectDelay       = 1 * time.Second
	writeTimeout         = 10 * time.Second
)

// Envelope is the wire frame exchanged over the session: every inbound
// and outbound message carries a subject so a single connection can
// multiplex many logical channels.
type Envelope struct {
	Subject   string          `json:"subject"`
	Data      json.RawMessage `json:"data"`
	DeliverID uint64          `json:"deliver_id,omitempty"`
}

// DeliverPolicy controls where a new durable consumer starts reading from.
type DeliverPolicy string

const (
	DeliverAll DeliverPolicy = "all"
	DeliverNew DeliverPolicy = "new"
)

// ConsumerConfig describes a durable push consumer's subject bindings and
// redelivery behavior. FilterSubject is the subject the consumer was
// registered against at the broker: a broadcast subject like
// machine.all.client-update for self-update, or a per-machine subject like
// machine.<id>.tool-install for tool install (spec.md §4.7). It is kept
// distinct from DeliverSubject, the subject envelopes actually arrive on
// over this connection, since a broadcast filter still delivers to this
// machine's own per-machine inbox.
type ConsumerConfig struct {
	FilterSubject  string
	DeliverSubject string
	DurableName    string
	AckWait        time.Duration
	MaxDeliver     int
	DeliverPolicy  DeliverPolicy
}

// Handler processes one delivered message. Returning an error leaves the
// message unacknowledged so it is redelivered, up to MaxDeliver times.
type Handler func(ctx context.Context, data json.RawMessage) error

// Publisher sends outbound messages. Implemented by Session, and as an
// interface so install/update flows can be tested without a live socket.
type Publisher interface {
	Publish(ctx context.Context, subject string, payload any) error
}

// Session is a reconnecting WebSocket connection that multiplexes durable
// subscriptions and outbound publishes. All exported methods are safe for
// concurrent use.
type Session struct {
	url    string
	header map[string]string

	mu        sync.RWMutex
	conn      *websocket.Conn
	consumers map[string]registeredConsumer

	deliveries map[uint64]*pendingDelivery
	nextID     uint64

	closed chan struct{}
}

type registeredConsumer struct {
	cfg     ConsumerConfig
	handler Handler
}

type pendingDelivery struct {
	attempts int
	envelope Envelope
}

var _ Publisher = (*Session)(nil)

// New creates a Session that will dial url with the given headers (e.g.
// Authorization: Bearer <token>) once Run is called.
func New(url string, header map[string]string) *Session {
	return &Session{
		url:        url,
		header:     header,
		consumers:  make(map[string]registeredConsumer),
		deliveries: make(map[uint64]*pendingDelivery),
		closed:     make(chan struct{}),
	}
}

// Subscribe registers a durable handler for subject before Run is called,
// or while connected — new subscriptions take effect on the current or
// next connection.
func (s *Session) Subscribe(cfg ConsumerConfig, handler Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.consumers[cfg.DurableName] = registeredConsumer{cfg: cfg, handler: handler}
}

// Run dials the session and services it until ctx is canceled or the
// reconnect budget (1000 attempts, 1s apart) is exhausted.
func (s *Session) Run(ctx context.Context) error {
	attempts := 0
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		conn, err := s.dial(ctx)
		if err != nil {
			attempts++
			if attempts >= maxReconnectAttempts {
				return fmt.Errorf("messaging: exhausted %d reconnect attempts: %w", maxReconnectAttempts, err)
			}
			slog.Warn("messaging connection failed, retrying", "attempt", attempts, "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(reconnectDelay):
			}
			continue
		}

		attempts = 0
		s.mu.Lock()
		s.conn = conn
		s.mu.Unlock()

		slog.Info("messaging session connected", "url", s.url)
		err = s.readLoop(ctx, conn)
		conn.Close()

		s.mu.Lock()
		s.conn = nil
		s.mu.Unlock()

		if ctx.Err() != nil {
			return ctx.Err()
		}
		slog.Warn("messaging session disconnected, reconnecting", "error", err)
	}
}

func (s *Session) dial(ctx context.Context) (*websocket.Conn, error) {
	header := make(map[string][]string, len(s.header))
	for k, v := range s.header {
		header[k] = []string{v}
	}
	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	conn, _, err := dialer.DialContext(ctx, s.url, header)
	return conn, err
}

func (s *Session) readLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			slog.Error("messaging: malformed envelope", "error", err)
			continue
		}
		s.dispatch(ctx, env)
	}
}

func (s *Session) dispatch(ctx context.Context, env Envelope) {
	s.mu.RLock()
	consumer, ok := s.findConsumer(env.Subject)
	s.mu.RUnlock()
	if !ok {
		return
	}

	err := consumer.handler(ctx, env.Data)
	if err != nil {
		s.mu.Lock()
		d := s.deliveries[env.DeliverID]
		if d == nil {
			d = &pendingDelivery{envelope: env}
			s.deliveries[env.DeliverID] = d
		}
		d.attempts++
		redeliver := consumer.cfg.MaxDeliver <= 0 || d.attempts < consumer.cfg.MaxDeliver
		s.mu.Unlock()

		if redeliver {
			slog.Warn("messaging handler failed, will redeliver", "subject", env.Subject, "attempt", d.attempts, "error", err)
			go func() {
				time.Sleep(consumer.cfg.AckWait)
				s.dispatch(ctx, env)
			}()
		} else {
			slog.Error("messaging handler exhausted redelivery attempts", "subject", env.Subject, "error", err)
			s.mu.Lock()
			delete(s.deliveries, env.DeliverID)
			s.mu.Unlock()
		}
		return
	}

	s.mu.Lock()
	delete(s.deliveries, env.DeliverID)
	s.mu.Unlock()
}

// findConsumer matches subject against every registered durable consumer's
// deliver subject, exact-match only (wildcard subjects are not needed by
// this agent's fixed channel set). FilterSubject is not used for matching:
// it is the subject the consumer is bound to at the broker, which may be a
// broadcast subject distinct from where this connection receives it.
func (s *Session) findConsumer(subject string) (registeredConsumer, bool) {
	for _, c := range s.consumers {
		if c.cfg.DeliverSubject == subject {
			return c, true
		}
	}
	return registeredConsumer{}, false
}

// Publish sends payload on subject over the current connection. Returns an
// error if the session is not currently connected.
func (s *Session) Publish(ctx context.Context, subject string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("messaging: marshal payload: %w", err)
	}
	env := Envelope{Subject: subject, Data: data}
	raw, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("messaging: marshal envelope: %w", err)
	}

	s.mu.RLock()
	conn := s.conn
	s.mu.RUnlock()
	if conn == nil {
		return fmt.Errorf("messaging: not connected")
	}

	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, raw)
}

// Close tears down the underlying connection, if any.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}
