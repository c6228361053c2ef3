package mqttbus

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/c360/topstack/bus"
	"github.com/c360/topstack/errors"
	"github.com/c360/topstack/metric"
)

// Bus is the MQTT implementation of bus.Bus. Subjects are translated to
// topics with Topic; handlers receive subjects in dot form.
type Bus struct {
	cfg     Config
	client  pahomqtt.Client
	logger  *slog.Logger
	metrics *metric.Metrics

	// newClient is swapped in tests
	newClient func(*pahomqtt.ClientOptions) pahomqtt.Client

	// sem serializes broker subscribe and unsubscribe round trips so a
	// topic's route and its broker subscription never disagree.
	sem chan struct{}

	mu     sync.Mutex
	routes map[string]*route

	connects atomic.Int32
	closed   atomic.Bool
	done     chan struct{}
	doneOnce sync.Once
}

var _ bus.Bus = (*Bus)(nil)

// Option configures a Bus
type Option func(*Bus)

// WithLogger sets the logger; the default discards everything
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bus) {
		if logger != nil {
			b.logger = logger.With("component", "mqttbus")
		}
	}
}

// WithMetrics reports connection status, reconnects and received messages
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(b *Bus) {
		b.metrics = registry.CoreMetrics()
	}
}

// New validates cfg and prepares a Bus. It does not connect.
func New(cfg Config, opts ...Option) (*Bus, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	b := &Bus{
		cfg:       cfg.withDefaults(),
		logger:    slog.New(slog.DiscardHandler),
		newClient: pahomqtt.NewClient,
		sem:       make(chan struct{}, 1),
		routes:    make(map[string]*route),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Connect opens the broker connection and waits for the CONNACK.
func (b *Bus) Connect(ctx context.Context) error {
	if b.closed.Load() {
		return errors.ErrConnectionClosed
	}
	if b.client != nil {
		return nil
	}

	opts := b.cfg.clientOptions()
	opts.SetOnConnectHandler(func(pahomqtt.Client) { b.handleConnect() })
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) { b.handleLost(err) })

	client := b.newClient(opts)
	if err := b.wait(ctx, client.Connect(), "connect", b.cfg.ConnectTimeout); err != nil {
		return err
	}
	b.client = client
	b.logger.Info("connected", "broker", b.cfg.Broker)
	return nil
}

// Connect is New followed by Bus.Connect.
func Connect(ctx context.Context, cfg Config, opts ...Option) (*Bus, error) {
	b, err := New(cfg, opts...)
	if err != nil {
		return nil, err
	}
	if err := b.Connect(ctx); err != nil {
		return nil, err
	}
	return b, nil
}

// IsConnected reports whether the broker connection is currently up
func (b *Bus) IsConnected() bool {
	return b.client != nil && !b.closed.Load() && b.client.IsConnected()
}

// Done is closed by Close, or on connection loss when reconnects are disabled.
func (b *Bus) Done() <-chan struct{} {
	return b.done
}

// Publish sends data to the topic for subject and waits for the broker's
// acknowledgement at the configured QoS.
func (b *Bus) Publish(ctx context.Context, subject string, data []byte) error {
	topic, err := Topic(subject)
	if err != nil {
		return err
	}
	if err := b.ready(); err != nil {
		return err
	}
	return b.wait(ctx, b.client.Publish(topic, b.cfg.QoS, false, data), "publish "+topic, b.cfg.AckTimeout)
}

// Close unsubscribes everything, disconnects and closes Done. It is idempotent.
func (b *Bus) Close(ctx context.Context) error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}

	b.mu.Lock()
	routes := b.routes
	b.routes = make(map[string]*route)
	b.mu.Unlock()

	var errs []error
	for topic, r := range routes {
		r.deactivate()
		if b.client != nil && b.client.IsConnected() {
			if err := b.wait(ctx, b.client.Unsubscribe(topic), "unsubscribe "+topic, b.cfg.AckTimeout); err != nil {
				errs = append(errs, err)
			}
		}
	}

	if b.client != nil {
		b.client.Disconnect(disconnectQuiesce)
	}
	if b.metrics != nil {
		b.metrics.RecordBusStatus(false)
	}
	b.closeDone()
	b.logger.Info("closed", "broker", b.cfg.Broker)
	return errors.Join(errs...)
}

func (b *Bus) closeDone() {
	b.doneOnce.Do(func() { close(b.done) })
}

func (b *Bus) ready() error {
	if b.closed.Load() {
		return errors.ErrConnectionClosed
	}
	if b.client == nil || !b.client.IsConnected() {
		return errors.ErrNotConnected
	}
	return nil
}

func (b *Bus) handleConnect() {
	if b.metrics != nil {
		b.metrics.RecordBusStatus(true)
	}
	if b.connects.Add(1) == 1 {
		return
	}

	// Clean sessions lose their subscriptions on reconnect.
	if b.metrics != nil {
		b.metrics.RecordBusReconnect()
	}
	b.mu.Lock()
	routes := make([]*route, 0, len(b.routes))
	for _, r := range b.routes {
		routes = append(routes, r)
	}
	b.mu.Unlock()

	b.logger.Info("reconnected, restoring subscriptions", "count", len(routes))
	for _, r := range routes {
		token := b.client.Subscribe(r.topic, b.cfg.QoS, b.dispatch(r))
		go func(topic string) {
			if token.WaitTimeout(b.cfg.AckTimeout) && token.Error() != nil {
				b.logger.Warn("restore subscription failed", "topic", topic, "error", token.Error())
			}
		}(r.topic)
	}
}

func (b *Bus) handleLost(err error) {
	if b.metrics != nil {
		b.metrics.RecordBusStatus(false)
	}
	b.logger.Warn("connection lost", "broker", b.cfg.Broker, "error", err)
	if b.cfg.DisableReconnect {
		b.closed.Store(true)
		b.closeDone()
	}
}

// wait blocks until token completes, ctx ends or timeout elapses, whichever
// comes first.
func (b *Bus) wait(ctx context.Context, token pahomqtt.Token, op string, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-token.Done():
	case <-ctx.Done():
		return &errors.TimeoutError{Operation: "mqtt " + op, Err: ctx.Err()}
	case <-timer.C:
		return &errors.TimeoutError{Operation: "mqtt " + op, Err: context.DeadlineExceeded}
	}
	if err := token.Error(); err != nil {
		return &errors.ConnectionError{Target: b.cfg.Broker, Err: err}
	}
	return nil
}
