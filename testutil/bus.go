package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/c360/topstack/bus"
	"github.com/c360/topstack/errors"
	"github.com/c360/topstack/subject"
)

// MockBus is an in-memory bus with single-level wildcard routing.
// Publish delivers synchronously on the caller's goroutine, so messages
// published one after another reach a subscriber in that order.
// Thread-safe for concurrent use from multiple goroutines.
type MockBus struct {
	mu        sync.RWMutex
	subs      map[*mockSubscription]struct{}
	published []bus.Message
	subErr    error
	closed    bool
	done      chan struct{}

	subscribeCalls   int
	unsubscribeCalls int
}

var _ bus.Bus = (*MockBus)(nil)

// NewMockBus creates an empty bus.
func NewMockBus() *MockBus {
	return &MockBus{
		subs: make(map[*mockSubscription]struct{}),
		done: make(chan struct{}),
	}
}

type mockSubscription struct {
	bus     *MockBus
	pattern string
	handler bus.Handler

	// held for the duration of a delivery so Unsubscribe can wait it out
	deliverMu sync.Mutex
	active    bool
}

func (s *mockSubscription) Subject() string { return s.pattern }

// Unsubscribe waits for an in-flight delivery to this subscription to finish.
// It must not be called from inside the bus handler itself.
func (s *mockSubscription) Unsubscribe(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.bus.mu.Lock()
	if _, ok := s.bus.subs[s]; !ok {
		s.bus.mu.Unlock()
		return nil
	}
	delete(s.bus.subs, s)
	s.bus.unsubscribeCalls++
	s.bus.mu.Unlock()

	s.deliverMu.Lock()
	s.active = false
	s.deliverMu.Unlock()
	return nil
}

// Subscribe registers handler for a dot-separated pattern.
func (b *MockBus) Subscribe(ctx context.Context, pattern string, handler bus.Handler) (bus.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.subscribeCalls++
	if b.closed {
		return nil, errors.ErrConnectionClosed
	}
	if b.subErr != nil {
		err := b.subErr
		b.subErr = nil
		return nil, err
	}

	sub := &mockSubscription{bus: b, pattern: pattern, handler: handler, active: true}
	b.subs[sub] = struct{}{}
	return sub, nil
}

// Publish records the message and delivers it to every matching subscription
// before returning.
func (b *MockBus) Publish(ctx context.Context, subj string, data []byte) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return errors.ErrConnectionClosed
	}
	msg := bus.Message{Subject: subj, Data: append([]byte(nil), data...)}
	b.published = append(b.published, msg)

	// Copy matches to avoid holding the lock during callbacks
	var targets []*mockSubscription
	for sub := range b.subs {
		if subject.Match(sub.pattern, subj) {
			targets = append(targets, sub)
		}
	}
	b.mu.Unlock()

	for _, sub := range targets {
		sub.deliverMu.Lock()
		if sub.active {
			sub.handler(ctx, msg)
		}
		sub.deliverMu.Unlock()
	}
	return nil
}

// FailNextSubscribe makes the next Subscribe call return err.
func (b *MockBus) FailNextSubscribe(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subErr = err
}

// Done is closed by Close.
func (b *MockBus) Done() <-chan struct{} {
	return b.done
}

// Close drops every subscription and closes Done. Safe to call twice.
func (b *MockBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	subs := b.subs
	b.subs = make(map[*mockSubscription]struct{})
	b.mu.Unlock()

	for sub := range subs {
		sub.deliverMu.Lock()
		sub.active = false
		sub.deliverMu.Unlock()
	}
	close(b.done)
	return nil
}

// SubscriptionCount returns the number of live subscriptions.
func (b *MockBus) SubscriptionCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Published returns a copy of every message published so far.
func (b *MockBus) Published() []bus.Message {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]bus.Message, len(b.published))
	copy(out, b.published)
	return out
}

// Calls reports how many times Subscribe and Unsubscribe reached the bus.
func (b *MockBus) Calls() (subscribe, unsubscribe int) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.subscribeCalls, b.unsubscribeCalls
}

// String summarizes the bus for test failure output.
func (b *MockBus) String() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return fmt.Sprintf("MockBus{subs=%d published=%d closed=%t}", len(b.subs), len(b.published), b.closed)
}
