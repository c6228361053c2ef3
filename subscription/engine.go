package subscription

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/c360/topstack/bus"
	"github.com/c360/topstack/errors"
	"github.com/c360/topstack/message"
	"github.com/c360/topstack/metric"
	"github.com/c360/topstack/pkg/worker"
	"github.com/c360/topstack/subject"
)

// DefaultQueueSize is the per-subscription inbound queue capacity.
const DefaultQueueSize = 256

// Handler receives decoded records for one subscription, one at a time and in
// bus order. A returned error is reported through the engine's ErrorHandler and
// does not end the subscription.
type Handler func(ctx context.Context, rec message.Record) error

// ErrorHandler receives failures that do not end a subscription: decode errors,
// handler errors, recovered handler panics, and messages dropped because the
// subscription's queue was full. It may be called from the bus read goroutine
// or from the subscription's worker, so it must not block.
type ErrorHandler func(h Handle, subject string, err error)

// Handle identifies one subscription. The zero Handle is not valid.
type Handle struct {
	ID      uuid.UUID
	Subject string
	Class   subject.Class

	e *entry
}

// State returns the subscription's current lifecycle state.
func (h Handle) State() State {
	if h.e == nil {
		return StateClosed
	}
	return h.e.load()
}

// Valid reports whether h was returned by Subscribe.
func (h Handle) Valid() bool { return h.e != nil }

// ownerKey marks the context handed to a subscription's handler, so Unsubscribe
// can tell it is being called from that handler.
type ownerKey struct{}

type entry struct {
	id      uuid.UUID
	subject string
	class   subject.Class
	handler Handler

	state  atomic.Int32
	pool   *worker.Pool[bus.Message]
	cancel context.CancelFunc

	mu  sync.Mutex
	sub bus.Subscription

	closeOnce sync.Once
	closed    chan struct{}
}

func (en *entry) load() State { return State(en.state.Load()) }

func (en *entry) handle() Handle {
	return Handle{ID: en.id, Subject: en.subject, Class: en.class, e: en}
}

// claim moves a live entry to Unsubscribing and reports the state it left.
func (en *entry) claim() (State, bool) {
	for {
		prev := en.load()
		if prev != StateRequested && prev != StateActive {
			return prev, false
		}
		if en.state.CompareAndSwap(int32(prev), int32(StateUnsubscribing)) {
			return prev, true
		}
	}
}

func (en *entry) finish(final State) {
	en.state.Store(int32(final))
	en.closeOnce.Do(func() { close(en.closed) })
}

// Engine manages subscriptions on one shared bus connection.
type Engine struct {
	bus       bus.Subscriber
	logger    *slog.Logger
	metrics   *metric.Metrics
	onError   ErrorHandler
	queueSize int
	buildOpts []subject.Option

	mu      sync.Mutex
	entries map[uuid.UUID]*entry
	closed  error

	stop     chan struct{}
	stopOnce sync.Once
}

// Option configures an Engine
type Option func(*Engine)

// WithLogger sets the logger for lifecycle and delivery-failure records.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMetrics records per-message outcomes and the active subscription count.
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(e *Engine) {
		e.metrics = registry.CoreMetrics()
	}
}

// WithErrorHandler installs the side channel for non-fatal delivery failures.
func WithErrorHandler(fn ErrorHandler) Option {
	return func(e *Engine) {
		e.onError = fn
	}
}

// WithQueueSize sets the per-subscription queue capacity.
func WithQueueSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.queueSize = n
		}
	}
}

// WithRoot sets the first subject token used when building patterns.
func WithRoot(root string) Option {
	return func(e *Engine) {
		e.buildOpts = append(e.buildOpts, subject.WithRoot(root))
	}
}

// NewEngine creates an engine on b. If b also exposes Done, every handle is
// released as Closed when the connection closes.
func NewEngine(b bus.Subscriber, opts ...Option) *Engine {
	e := &Engine{
		bus:       b,
		logger:    slog.New(slog.DiscardHandler),
		queueSize: DefaultQueueSize,
		entries:   make(map[uuid.UUID]*entry),
		stop:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}

	if d, ok := b.(interface{ Done() <-chan struct{} }); ok {
		go e.watch(d.Done())
	}
	return e
}

// Subscribe builds the subject for scope and class and registers handler on it.
// It returns once the bus has confirmed the subscription; any failure is a
// *errors.SubscribeError and leaves no state behind.
func (e *Engine) Subscribe(ctx context.Context, scope subject.Scope, class subject.Class, handler Handler) (Handle, error) {
	if handler == nil {
		return Handle{}, &errors.SubscribeError{Subject: string(class),
			Err: fmt.Errorf("nil handler: %w", errors.ErrInvalidRequest)}
	}
	pattern, err := subject.Build(scope, class, e.buildOpts...)
	if err != nil {
		return Handle{}, &errors.SubscribeError{Subject: string(class), Err: err}
	}
	subj := pattern.String()

	en := &entry{
		id:      uuid.New(),
		subject: subj,
		class:   class,
		handler: handler,
		closed:  make(chan struct{}),
	}
	en.state.Store(int32(StateRequested))

	hctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	en.cancel = cancel
	en.pool = worker.NewPool(1, e.queueSize, e.deliver(en),
		worker.WithErrorHandler(func(msg bus.Message, err error) {
			if errors.Is(err, errors.ErrHandlerPanic) {
				e.record(en, metric.OutcomePanic)
			}
			e.report(en, msg.Subject, err)
		}),
	)

	if err := e.register(en); err != nil {
		en.pool.Shutdown()
		cancel()
		en.finish(StateFailed)
		return Handle{}, &errors.SubscribeError{Subject: subj, Err: err}
	}
	// A fresh pool cannot fail to start.
	_ = en.pool.Start(context.WithValue(hctx, ownerKey{}, en))

	sub, err := e.bus.Subscribe(ctx, subj, func(_ context.Context, msg bus.Message) {
		e.enqueue(en, msg)
	})
	if err != nil {
		e.forget(en)
		en.pool.Shutdown()
		cancel()
		en.finish(StateFailed)
		e.logger.Debug("subscribe failed", "subject", subj, "error", err)
		return Handle{}, asSubscribeError(subj, err)
	}

	en.mu.Lock()
	en.sub = sub
	activated := en.state.CompareAndSwap(int32(StateRequested), int32(StateActive))
	en.mu.Unlock()

	if !activated {
		// Released by Close or a dropped connection while the subscribe was in flight.
		_ = sub.Unsubscribe(ctx)
		return Handle{}, &errors.SubscribeError{Subject: subj, Err: e.closedErr()}
	}

	if e.metrics != nil {
		e.metrics.SubscriptionsActive.Inc()
	}
	e.logger.Debug("subscribed", "subscription", en.id, "subject", subj, "class", class)
	return en.handle(), nil
}

// Unsubscribe ends the subscription. It returns after the bus has acknowledged
// removal and any in-flight handler call has returned; from then on the handler
// is never invoked again for h. Calling it from h's own handler does not wait
// for that call. A second call is a no-op.
func (e *Engine) Unsubscribe(ctx context.Context, h Handle) error {
	en := h.e
	if en == nil {
		return errors.Wrap(errors.ErrUnknownHandle, "Engine", "Unsubscribe", "lookup")
	}
	own := ctx.Value(ownerKey{}) == en

	prev, ok := en.claim()
	if !ok {
		if own || prev.Terminal() {
			return nil
		}
		// Another caller is mid-unsubscribe; wait for it to finish.
		select {
		case <-en.closed:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return e.release(ctx, en, prev == StateActive, true, !own)
}

// Close releases every handle as Closed and rejects further Subscribe calls.
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	if e.closed != nil {
		e.mu.Unlock()
		return nil
	}
	e.closed = errors.ErrEngineClosed
	e.mu.Unlock()

	e.stopOnce.Do(func() { close(e.stop) })
	return e.releaseAll(ctx, true, true)
}

// Len returns the number of subscriptions not yet released.
func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.entries)
}

func (e *Engine) register(en *entry) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed != nil {
		return e.closed
	}
	e.entries[en.id] = en
	return nil
}

func (e *Engine) forget(en *entry) {
	e.mu.Lock()
	delete(e.entries, en.id)
	e.mu.Unlock()
}

func (e *Engine) closedErr() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed != nil {
		return e.closed
	}
	return errors.ErrEngineClosed
}

// watch releases every handle when the bus connection closes.
func (e *Engine) watch(done <-chan struct{}) {
	select {
	case <-done:
	case <-e.stop:
		return
	}

	e.mu.Lock()
	if e.closed == nil {
		e.closed = errors.ErrConnectionClosed
	}
	e.mu.Unlock()

	e.logger.Debug("bus connection closed, releasing subscriptions")
	_ = e.releaseAll(context.Background(), false, false)
}

func (e *Engine) releaseAll(ctx context.Context, viaBus, wait bool) error {
	e.mu.Lock()
	entries := make([]*entry, 0, len(e.entries))
	for _, en := range e.entries {
		entries = append(entries, en)
	}
	e.mu.Unlock()

	var errs []error
	for _, en := range entries {
		prev, ok := en.claim()
		if !ok {
			continue
		}
		own := ctx.Value(ownerKey{}) == en
		if err := e.release(ctx, en, prev == StateActive, viaBus, wait && !own); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// release tears down a claimed entry. viaBus removes the bus interest first;
// wait blocks until the worker has exited.
func (e *Engine) release(ctx context.Context, en *entry, wasActive, viaBus, wait bool) error {
	var errs []error

	if viaBus {
		en.mu.Lock()
		sub := en.sub
		en.mu.Unlock()
		if sub != nil {
			if err := sub.Unsubscribe(ctx); err != nil {
				errs = append(errs, fmt.Errorf("unsubscribe %s: %w", en.subject, err))
			}
		}
	}

	en.pool.Shutdown()
	if wait {
		if err := en.pool.Wait(ctx); err != nil {
			errs = append(errs, fmt.Errorf("unsubscribe %s: %w", en.subject, err))
		}
		en.cancel()
	} else {
		go func() {
			<-en.pool.Done()
			en.cancel()
		}()
	}

	en.finish(StateClosed)
	e.forget(en)
	if wasActive && e.metrics != nil {
		e.metrics.SubscriptionsActive.Dec()
	}
	e.logger.Debug("unsubscribed", "subscription", en.id, "subject", en.subject)
	return errors.Join(errs...)
}

// enqueue runs on the bus read goroutine and never blocks.
func (e *Engine) enqueue(en *entry, msg bus.Message) {
	switch en.load() {
	case StateRequested, StateActive:
	default:
		return
	}
	if err := en.pool.Submit(msg); err != nil && errors.Is(err, worker.ErrQueueFull) {
		e.record(en, metric.OutcomeDropped)
		e.report(en, msg.Subject, err)
	}
}

func (e *Engine) deliver(en *entry) func(context.Context, bus.Message) error {
	return func(ctx context.Context, msg bus.Message) error {
		switch en.load() {
		case StateRequested, StateActive:
		default:
			return nil
		}

		rec, err := message.DecodeAs(en.class, msg.Subject, msg.Data)
		if err != nil {
			e.record(en, metric.OutcomeDecodeError)
			return err
		}
		err = en.handler(ctx, rec)
		e.record(en, metric.OutcomeDelivered)
		return err
	}
}

func (e *Engine) record(en *entry, outcome string) {
	if e.metrics != nil {
		e.metrics.RecordSubscriptionMessage(string(en.class), outcome)
	}
}

func (e *Engine) report(en *entry, subj string, err error) {
	e.logger.Warn("subscription delivery failed",
		"subscription", en.id, "subject", subj, "error", err)
	if e.onError != nil {
		e.onError(en.handle(), subj, err)
	}
}

// asSubscribeError keeps a backend's *errors.SubscribeError as is and wraps
// anything else.
func asSubscribeError(subj string, err error) error {
	var subErr *errors.SubscribeError
	if errors.As(err, &subErr) {
		return err
	}
	return &errors.SubscribeError{Subject: subj, Err: err}
}
