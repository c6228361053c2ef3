// Package bus defines the message-bus surface the subscription engine consumes.
//
// Subjects are dot-separated with "*" as the single-level wildcard, the form
// produced by package subject. Backends translate to their own topic syntax.
// natsclient and mqttbus implement Bus; testutil provides an in-memory one.
package bus

import "context"

// Message is one inbound delivery. Subject is the concrete subject the message
// was published on, never the pattern it matched.
type Message struct {
	Subject string
	Data    []byte
}

// Handler receives messages for one subscription. Backends may call it from
// their own read goroutine, so it must not block for long.
type Handler func(ctx context.Context, msg Message)

// Subscription is a live, acknowledged interest in a subject pattern.
type Subscription interface {
	// Subject returns the pattern the subscription was created with.
	Subject() string
	// Unsubscribe removes the interest and returns once the server has
	// acknowledged it. After it returns the handler is not called again.
	// Calling it more than once is a no-op.
	Unsubscribe(ctx context.Context) error
}

// Subscriber is the part of a bus connection the engine needs.
type Subscriber interface {
	// Subscribe registers handler for pattern and returns only after the
	// server has confirmed the subscription.
	Subscribe(ctx context.Context, pattern string, handler Handler) (Subscription, error)
}

// Publisher sends a payload on a concrete subject.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// Bus is a shared connection. Done is closed when the connection is closed for
// good, which ends every subscription made through it.
type Bus interface {
	Subscriber
	Publisher
	Done() <-chan struct{}
}
