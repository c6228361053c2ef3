package natsclient

import (
	"context"
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/c360/topstack/bus"
	"github.com/c360/topstack/errors"
)

// subscription is one NATS subscription. Once Unsubscribe returns no further
// handler call starts.
type subscription struct {
	client  *Client
	pattern string
	sub     *nats.Subscription

	deliverMu sync.Mutex
	active    bool
	once      sync.Once
	err       error
}

var _ bus.Subscription = (*subscription)(nil)

// Subscribe registers handler for pattern and returns once the server has
// acknowledged the subscription. Handlers run on the connection's dispatch
// goroutine for this subscription, one message at a time.
func (m *Client) Subscribe(ctx context.Context, pattern string, handler bus.Handler) (bus.Subscription, error) {
	if handler == nil {
		return nil, &errors.SubscribeError{Subject: pattern, Err: errors.ErrInvalidRequest}
	}
	conn, err := m.connected()
	if err != nil {
		return nil, &errors.SubscribeError{Subject: pattern, Err: err}
	}

	s := &subscription{client: m, pattern: pattern, active: true}
	handlerCtx := context.WithoutCancel(ctx)

	sub, err := conn.Subscribe(pattern, func(msg *nats.Msg) {
		s.deliver(handlerCtx, handler, msg)
	})
	if err != nil {
		return nil, &errors.SubscribeError{Subject: pattern, Err: &errors.ConnectionError{Target: m.url, Err: err}}
	}
	s.sub = sub

	// Flush round-trips a PING so a permissions or syntax error surfaces here
	// instead of arriving later on the async error handler.
	ackCtx, cancel := m.ackContext(ctx)
	defer cancel()
	if err := conn.FlushWithContext(ackCtx); err != nil {
		_ = sub.Unsubscribe()
		if ackCtx.Err() != nil {
			err = &errors.TimeoutError{Operation: "nats subscribe " + pattern, Err: err}
		} else {
			err = &errors.ConnectionError{Target: m.url, Err: err}
		}
		return nil, &errors.SubscribeError{Subject: pattern, Err: err}
	}
	if !sub.IsValid() {
		return nil, &errors.SubscribeError{Subject: pattern, Err: errors.ErrSubscriptionFailed}
	}

	m.mu.Lock()
	m.subs[s] = struct{}{}
	m.mu.Unlock()

	m.logger.Debug("Subscribed", "subject", pattern)
	return s, nil
}

func (s *subscription) deliver(ctx context.Context, handler bus.Handler, msg *nats.Msg) {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()
	if !s.active {
		return
	}
	if s.client.metrics != nil {
		s.client.metrics.RecordBusMessage()
	}
	handler(ctx, bus.Message{Subject: msg.Subject, Data: msg.Data})
}

// Subject returns the pattern this subscription was made with
func (s *subscription) Subject() string {
	return s.pattern
}

// Unsubscribe removes the subscription and returns once the server has
// processed the removal. It is idempotent and waits for an in-flight handler
// call to return, so it must not be called from within that handler.
func (s *subscription) Unsubscribe(ctx context.Context) error {
	s.client.mu.Lock()
	delete(s.client.subs, s)
	conn := s.client.conn
	s.client.mu.Unlock()

	return s.detach(ctx, conn)
}

// detach stops delivery and sends the UNSUB. With a live conn it then
// round-trips a PING so the server has dropped interest before it returns.
func (s *subscription) detach(ctx context.Context, conn *nats.Conn) error {
	s.once.Do(func() {
		s.deliverMu.Lock()
		s.active = false
		s.deliverMu.Unlock()

		if err := s.sub.Unsubscribe(); err != nil {
			if !errors.Is(err, nats.ErrConnectionClosed) && !errors.Is(err, nats.ErrBadSubscription) {
				s.err = errors.Wrap(err, "subscription", "Unsubscribe", "unsubscribe "+s.pattern)
			}
			return
		}
		if conn != nil && conn.IsConnected() {
			s.err = s.client.awaitUnsubscribe(ctx, conn, s.pattern)
		}
		s.client.logger.Debug("Unsubscribed", "subject", s.pattern)
	})
	return s.err
}

func (m *Client) awaitUnsubscribe(ctx context.Context, conn *nats.Conn, pattern string) error {
	ackCtx, cancel := m.ackContext(ctx)
	defer cancel()
	err := conn.FlushWithContext(ackCtx)
	switch {
	case err == nil:
		return nil
	case ackCtx.Err() != nil:
		return &errors.TimeoutError{Operation: "nats unsubscribe " + pattern, Err: err}
	default:
		return &errors.ConnectionError{Target: m.url, Err: err}
	}
}
