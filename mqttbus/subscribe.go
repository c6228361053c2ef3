package mqttbus

import (
	"context"
	"fmt"
	"sync"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/c360/topstack/bus"
	"github.com/c360/topstack/errors"
)

// subackFailure is the SUBACK return code for a rejected filter
const subackFailure = 0x80

// route is one broker subscription. Several bus subscriptions on the same
// subject share it; the broker is unsubscribed when the last one leaves.
type route struct {
	topic string

	mu   sync.Mutex
	subs map[*subscription]struct{}
}

func (r *route) snapshot() []*subscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*subscription, 0, len(r.subs))
	for s := range r.subs {
		out = append(out, s)
	}
	return out
}

func (r *route) deactivate() {
	for _, s := range r.snapshot() {
		s.deactivate()
	}
}

type subscription struct {
	bus     *Bus
	route   *route
	subject string
	handler bus.Handler
	ctx     context.Context

	deliverMu sync.Mutex
	active    bool
	once      sync.Once
	err       error
}

var _ bus.Subscription = (*subscription)(nil)

// Subscribe registers handler for subject and returns once the broker has
// acknowledged the filter. A second subscription on the same subject reuses the
// broker subscription.
func (b *Bus) Subscribe(ctx context.Context, subject string, handler bus.Handler) (bus.Subscription, error) {
	if handler == nil {
		return nil, &errors.SubscribeError{Subject: subject, Err: fmt.Errorf("nil handler: %w", errors.ErrInvalidRequest)}
	}
	topic, err := Topic(subject)
	if err != nil {
		return nil, &errors.SubscribeError{Subject: subject, Err: err}
	}
	if err := b.ready(); err != nil {
		return nil, &errors.SubscribeError{Subject: subject, Err: err}
	}

	select {
	case b.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, &errors.SubscribeError{Subject: subject,
			Err: &errors.TimeoutError{Operation: "mqtt subscribe " + topic, Err: ctx.Err()}}
	}
	defer func() { <-b.sem }()

	s := &subscription{
		bus:     b,
		subject: subject,
		handler: handler,
		ctx:     context.WithoutCancel(ctx),
		active:  true,
	}

	b.mu.Lock()
	r, shared := b.routes[topic]
	if !shared {
		r = &route{topic: topic, subs: make(map[*subscription]struct{})}
	}
	s.route = r
	r.mu.Lock()
	r.subs[s] = struct{}{}
	r.mu.Unlock()
	b.routes[topic] = r
	b.mu.Unlock()

	if shared {
		b.logger.Debug("subscribed", "subject", subject, "topic", topic, "shared", true)
		return s, nil
	}

	token := b.client.Subscribe(topic, b.cfg.QoS, b.dispatch(r))
	err = b.wait(ctx, token, "subscribe "+topic, b.cfg.AckTimeout)
	if err == nil {
		err = rejected(token, topic)
	}
	if err != nil {
		b.mu.Lock()
		if b.routes[topic] == r {
			delete(b.routes, topic)
		}
		b.mu.Unlock()
		s.deactivate()
		return nil, &errors.SubscribeError{Subject: subject, Err: err}
	}

	b.logger.Debug("subscribed", "subject", subject, "topic", topic)
	return s, nil
}

// rejected reports a SUBACK failure code, which paho leaves out of Error.
func rejected(token pahomqtt.Token, topic string) error {
	st, ok := token.(*pahomqtt.SubscribeToken)
	if !ok {
		return nil
	}
	if code, found := st.Result()[topic]; found && code == subackFailure {
		return fmt.Errorf("broker rejected filter %q: %w", topic, errors.ErrSubscriptionFailed)
	}
	return nil
}

// dispatch fans a message out to every subscription on the route. paho calls
// it from its router goroutine, one message at a time.
func (b *Bus) dispatch(r *route) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, m pahomqtt.Message) {
		if b.metrics != nil {
			b.metrics.RecordBusMessage()
		}
		msg := bus.Message{Subject: Subject(m.Topic()), Data: m.Payload()}
		for _, s := range r.snapshot() {
			s.deliver(msg)
		}
	}
}

func (s *subscription) deliver(msg bus.Message) {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()
	if !s.active {
		return
	}
	s.handler(s.ctx, msg)
}

func (s *subscription) deactivate() {
	s.deliverMu.Lock()
	s.active = false
	s.deliverMu.Unlock()
}

// Subject returns the subject this subscription was made with
func (s *subscription) Subject() string {
	return s.subject
}

// Unsubscribe stops delivery and, for the last subscription on its topic,
// removes the broker subscription. It is idempotent and waits for an in-flight
// handler call, so it must not be called from within that handler.
func (s *subscription) Unsubscribe(ctx context.Context) error {
	s.once.Do(func() {
		s.deactivate()
		s.err = s.bus.release(ctx, s)
	})
	return s.err
}

func (b *Bus) release(ctx context.Context, s *subscription) error {
	r := s.route
	b.sem <- struct{}{}
	defer func() { <-b.sem }()

	r.mu.Lock()
	delete(r.subs, s)
	empty := len(r.subs) == 0
	r.mu.Unlock()
	if !empty {
		return nil
	}

	b.mu.Lock()
	owned := b.routes[r.topic] == r
	if owned {
		delete(b.routes, r.topic)
	}
	b.mu.Unlock()

	if !owned || b.ready() != nil {
		// Closed or disconnected: the broker forgot the filter already.
		return nil
	}
	if err := b.wait(ctx, b.client.Unsubscribe(r.topic), "unsubscribe "+r.topic, b.cfg.AckTimeout); err != nil {
		return errors.Wrap(err, "mqttbus", "Unsubscribe", "unsubscribe "+s.subject)
	}
	b.logger.Debug("unsubscribed", "subject", s.subject, "topic", r.topic)
	return nil
}

// SubscriptionCount returns the number of live bus subscriptions
func (b *Bus) SubscriptionCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, r := range b.routes {
		r.mu.Lock()
		n += len(r.subs)
		r.mu.Unlock()
	}
	return n
}

// TopicCount returns the number of broker subscriptions
func (b *Bus) TopicCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.routes)
}
