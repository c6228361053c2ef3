package natsclient

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/c360/topstack/bus"
	"github.com/c360/topstack/errors"
	"github.com/c360/topstack/metric"
)

// ConnectionStatus is the state of the broker connection
type ConnectionStatus int32

// Connection states
const (
	StatusDisconnected ConnectionStatus = iota
	StatusConnecting
	StatusConnected
	StatusReconnecting
	StatusCircuitOpen
)

var statusNames = [...]string{"disconnected", "connecting", "connected", "reconnecting", "circuit_open"}

func (s ConnectionStatus) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return "unknown"
	}
	return statusNames[s]
}

// Errors returned by the client, aliases of the shared sentinels.
var (
	ErrNotConnected      = errors.ErrNotConnected
	ErrCircuitOpen       = errors.ErrCircuitOpen
	ErrConnectionTimeout = errors.ErrConnectionTimeout
	ErrClosed            = errors.ErrConnectionClosed
)

// Status is a snapshot of the connection
type Status struct {
	Status          ConnectionStatus
	FailureCount    int32
	LastFailureTime time.Time
	Subscriptions   int
	RTT             time.Duration
}

// settings are fixed at construction
type settings struct {
	maxReconnects int
	reconnectWait time.Duration
	pingInterval  time.Duration
	timeout       time.Duration
	drainTimeout  time.Duration

	circuitThreshold int32
	maxBackoff       time.Duration

	username, password, token string
	tlsConfig                 *tls.Config
	name                      string
	compression               bool

	onDisconnect     func(error)
	onReconnect      func()
	onHealthChange   func(bool)
	onConnectionLost func(error)
}

// Client owns one NATS connection shared by every subscription made on it.
type Client struct {
	url     string
	cfg     settings
	logger  *slog.Logger
	metrics *metric.Metrics
	breaker *breaker

	status atomic.Int32

	mu   sync.RWMutex
	conn *nats.Conn
	subs map[*subscription]struct{}

	closeMu  sync.Mutex
	closed   atomic.Bool
	done     chan struct{}
	doneOnce sync.Once
}

var _ bus.Bus = (*Client)(nil)

// NewClient builds a client for url. It does not connect.
func NewClient(url string, opts ...ClientOption) (*Client, error) {
	c := &Client{
		url: url,
		cfg: settings{
			maxReconnects:    -1,
			reconnectWait:    2 * time.Second,
			pingInterval:     30 * time.Second,
			timeout:          5 * time.Second,
			drainTimeout:     30 * time.Second,
			circuitThreshold: 5,
			maxBackoff:       time.Minute,
		},
		logger: slog.New(slog.DiscardHandler),
		subs:   make(map[*subscription]struct{}),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, errors.WrapInvalid(err, "Client", "NewClient", "apply option")
		}
	}
	c.breaker = newBreaker(c.cfg.circuitThreshold, c.cfg.maxBackoff)
	return c, nil
}

// URL returns the server address
func (m *Client) URL() string { return m.url }

// Status returns the connection state
func (m *Client) Status() ConnectionStatus {
	return ConnectionStatus(m.status.Load())
}

// IsHealthy reports whether the connection is up
func (m *Client) IsHealthy() bool {
	return m.Status() == StatusConnected
}

// Failures returns the failed connects since the last success
func (m *Client) Failures() int32 {
	n, _, _ := m.breaker.snapshot()
	return n
}

// Backoff returns the pause the next circuit trip will impose
func (m *Client) Backoff() time.Duration {
	_, d, _ := m.breaker.snapshot()
	return d
}

// Done is closed when the connection is gone for good, by Close or because
// reconnects were exhausted.
func (m *Client) Done() <-chan struct{} {
	return m.done
}

func (m *Client) setStatus(s ConnectionStatus) {
	m.status.Store(int32(s))
	if m.metrics != nil {
		m.metrics.RecordBusStatus(s == StatusConnected)
	}
}

func (m *Client) recordCircuit(state int) {
	if m.metrics != nil {
		m.metrics.RecordCircuitBreakerState(state)
	}
}

// recordFailure feeds the breaker and opens the circuit when it trips.
func (m *Client) recordFailure() {
	tripped, pause := m.breaker.fail(time.Now())
	if !tripped {
		return
	}
	current := m.Status()
	if current == StatusCircuitOpen {
		m.logger.Warn("Circuit breaker still open", "next_backoff", m.Backoff())
		return
	}
	if !m.status.CompareAndSwap(int32(current), int32(StatusCircuitOpen)) {
		return
	}
	if m.metrics != nil {
		m.metrics.RecordBusStatus(false)
	}
	m.recordCircuit(circuitOpen)
	m.logger.Warn("Circuit breaker opened", "url", m.url, "pause", pause)
	time.AfterFunc(pause, m.halfOpen)
}

// halfOpen lets the next Connect through after an open circuit's pause
func (m *Client) halfOpen() {
	if m.status.CompareAndSwap(int32(StatusCircuitOpen), int32(StatusDisconnected)) {
		m.recordCircuit(circuitHalfOpen)
		m.logger.Debug("Circuit breaker half-open", "url", m.url)
	}
}

func (m *Client) resetCircuit() {
	m.breaker.reset()
	m.recordCircuit(circuitClosed)
	m.status.CompareAndSwap(int32(StatusCircuitOpen), int32(StatusDisconnected))
}

// WaitForConnection polls until the connection is up or ctx ends
func (m *Client) WaitForConnection(ctx context.Context) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		if m.IsHealthy() {
			return nil
		}
		select {
		case <-ctx.Done():
			return &errors.TimeoutError{Operation: "nats connect " + m.url, Err: ctx.Err()}
		case <-ticker.C:
		}
	}
}

// ConnectionOptions returns the options Connect passes to nats.Connect
func (m *Client) ConnectionOptions() []nats.Option {
	cfg := m.cfg
	opts := []nats.Option{
		nats.MaxReconnects(cfg.maxReconnects),
		nats.ReconnectWait(cfg.reconnectWait),
		nats.PingInterval(cfg.pingInterval),
		nats.Timeout(cfg.timeout),
		nats.DrainTimeout(cfg.drainTimeout),
		nats.DisconnectErrHandler(m.onDisconnected),
		nats.ReconnectHandler(m.onReconnected),
		nats.ClosedHandler(m.onClosed),
		nats.ErrorHandler(m.onAsyncError),
	}
	if cfg.username != "" && cfg.password != "" {
		opts = append(opts, nats.UserInfo(cfg.username, cfg.password))
	}
	if cfg.token != "" {
		opts = append(opts, nats.Token(cfg.token))
	}
	if cfg.tlsConfig != nil {
		opts = append(opts, nats.Secure(cfg.tlsConfig))
	}
	if cfg.name != "" {
		opts = append(opts, nats.Name(cfg.name))
	}
	if cfg.compression {
		opts = append(opts, nats.Compression(true))
	}
	return opts
}

// GetStatus returns a snapshot of the connection
func (m *Client) GetStatus() *Status {
	m.mu.RLock()
	conn := m.conn
	subs := len(m.subs)
	m.mu.RUnlock()

	failures, _, last := m.breaker.snapshot()
	s := &Status{
		Status:          m.Status(),
		FailureCount:    failures,
		LastFailureTime: last,
		Subscriptions:   subs,
	}
	if conn != nil && conn.IsConnected() {
		if rtt, err := conn.RTT(); err == nil {
			s.RTT = rtt
		}
	}
	return s
}

// Connect dials the server. It fails fast with ErrCircuitOpen while the
// circuit is open and with a *errors.TimeoutError when ctx ends first.
func (m *Client) Connect(ctx context.Context) error {
	if m.closed.Load() {
		return ErrClosed
	}
	if m.Status() == StatusCircuitOpen {
		return ErrCircuitOpen
	}

	m.setStatus(StatusConnecting)
	m.logger.Info("Connecting to NATS", "url", m.url)

	type dialed struct {
		conn *nats.Conn
		err  error
	}
	result := make(chan dialed, 1)
	opts := m.ConnectionOptions()
	go func() {
		conn, err := nats.Connect(m.url, opts...)
		result <- dialed{conn, err}
	}()

	var conn *nats.Conn
	select {
	case r := <-result:
		if r.err != nil {
			return m.connectFailed(&errors.ConnectionError{Target: m.url, Err: r.err})
		}
		conn = r.conn
	case <-ctx.Done():
		// A dial that completes after the caller gave up must not leak.
		go func() {
			if r := <-result; r.conn != nil {
				r.conn.Close()
			}
		}()
		return m.connectFailed(&errors.TimeoutError{Operation: "nats connect " + m.url, Err: ctx.Err()})
	}

	m.mu.Lock()
	m.conn = conn
	m.mu.Unlock()

	m.setStatus(StatusConnected)
	m.resetCircuit()
	m.logger.Info("Connected to NATS", "url", m.url)
	if fn := m.cfg.onHealthChange; fn != nil {
		fn(true)
	}
	return nil
}

func (m *Client) connectFailed(err error) error {
	m.recordFailure()
	if m.Status() == StatusCircuitOpen {
		return ErrCircuitOpen
	}
	m.setStatus(StatusDisconnected)
	return err
}

// Close unsubscribes everything, drains the connection and closes Done. The
// drain is bounded by the drain timeout and by ctx.
func (m *Client) Close(ctx context.Context) error {
	m.closeMu.Lock()
	defer m.closeMu.Unlock()
	if m.closed.Swap(true) {
		return nil
	}

	m.mu.Lock()
	subs, conn := m.subs, m.conn
	m.subs = make(map[*subscription]struct{})
	m.conn = nil
	m.mu.Unlock()

	// The drain below flushes every UNSUB, so detach does not wait per subscription.
	var errs []error
	for sub := range subs {
		if err := sub.detach(ctx, nil); err != nil {
			m.logger.Error("Unsubscribe failed", "subject", sub.pattern, "error", err)
			errs = append(errs, errors.Wrap(err, "Client", "Close", "unsubscribe "+sub.pattern))
		}
	}
	if conn != nil {
		if err := m.drain(ctx, conn); err != nil {
			m.logger.Error("Drain failed, closing", "error", err)
			errs = append(errs, err)
		}
		conn.Close()
	}

	m.cfg.username, m.cfg.password, m.cfg.token = "", "", ""
	m.setStatus(StatusDisconnected)
	m.doneOnce.Do(func() { close(m.done) })
	return errors.Join(errs...)
}

func (m *Client) drain(ctx context.Context, conn *nats.Conn) error {
	drainCtx, cancel := context.WithTimeout(ctx, m.cfg.drainTimeout)
	defer cancel()

	drained := make(chan error, 1)
	go func() { drained <- conn.Drain() }()

	select {
	case err := <-drained:
		return errors.Wrap(err, "Client", "Close", "drain connection")
	case <-drainCtx.Done():
		if ctx.Err() != nil {
			return errors.Wrap(ctx.Err(), "Client", "Close", "drain connection")
		}
		return &errors.TimeoutError{Operation: "nats drain", Err: drainCtx.Err()}
	}
}

// RTT measures the round trip to the server
func (m *Client) RTT() (time.Duration, error) {
	conn, err := m.connected()
	if err != nil {
		return 0, err
	}
	return conn.RTT()
}

func (m *Client) connected() (*nats.Conn, error) {
	if m.closed.Load() {
		return nil, ErrClosed
	}
	m.mu.RLock()
	conn := m.conn
	m.mu.RUnlock()
	if conn == nil || !conn.IsConnected() {
		return nil, ErrNotConnected
	}
	return conn, nil
}

// Publish sends data on subject
func (m *Client) Publish(_ context.Context, subject string, data []byte) error {
	conn, err := m.connected()
	if err != nil {
		return err
	}
	if err := conn.Publish(subject, data); err != nil {
		return &errors.ConnectionError{Target: m.url, Err: err}
	}
	return nil
}

func (m *Client) onDisconnected(_ *nats.Conn, err error) {
	if m.closed.Load() {
		return
	}
	m.setStatus(StatusReconnecting)
	m.logger.Warn("Disconnected from NATS", "url", m.url, "error", err)
	if fn := m.cfg.onDisconnect; fn != nil {
		go fn(err)
	}
	if fn := m.cfg.onHealthChange; fn != nil {
		go fn(false)
	}
}

func (m *Client) onReconnected(_ *nats.Conn) {
	m.setStatus(StatusConnected)
	m.resetCircuit()
	if m.metrics != nil {
		m.metrics.RecordBusReconnect()
	}
	m.logger.Info("Reconnected to NATS", "url", m.url)
	if fn := m.cfg.onReconnect; fn != nil {
		go fn()
	}
	if fn := m.cfg.onHealthChange; fn != nil {
		go fn(true)
	}
}

func (m *Client) onClosed(conn *nats.Conn) {
	m.setStatus(StatusDisconnected)
	if fn := m.cfg.onHealthChange; fn != nil {
		go fn(false)
	}
	if fn := m.cfg.onConnectionLost; fn != nil {
		err := conn.LastError()
		if err == nil {
			err = ErrClosed
		}
		go fn(err)
	}
	m.doneOnce.Do(func() { close(m.done) })
}

func (m *Client) onAsyncError(_ *nats.Conn, sub *nats.Subscription, err error) {
	if sub != nil {
		m.logger.Error("NATS async error", "subject", sub.Subject, "error", err)
		return
	}
	m.logger.Error("NATS async error", "error", err)
}

// ackContext bounds a server round trip; nats requires a deadline for flushes.
func (m *Client) ackContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, m.cfg.timeout)
}

func (m *Client) String() string {
	return fmt.Sprintf("natsclient(%s, %s)", m.url, m.Status())
}
