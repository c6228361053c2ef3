package natsclient

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/topstack/bus"
	"github.com/c360/topstack/errors"
	"github.com/c360/topstack/metric"
)

// unreachable refuses connections immediately.
const unreachable = "nats://127.0.0.1:1"

func TestNewClient(t *testing.T) {
	client, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)

	assert.Equal(t, "nats://localhost:4222", client.URL())
	assert.Equal(t, StatusDisconnected, client.Status())
	assert.False(t, client.IsHealthy())
	assert.Equal(t, time.Second, client.Backoff())
	assert.Contains(t, client.String(), "disconnected")
}

func TestNewClient_OptionError(t *testing.T) {
	_, err := NewClient("nats://localhost:4222", WithTimeout(0))
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestConnectionStatus_String(t *testing.T) {
	tests := map[ConnectionStatus]string{
		StatusDisconnected:   "disconnected",
		StatusConnecting:     "connecting",
		StatusConnected:      "connected",
		StatusReconnecting:   "reconnecting",
		StatusCircuitOpen:    "circuit_open",
		ConnectionStatus(99): "unknown",
	}
	for status, want := range tests {
		assert.Equal(t, want, status.String())
	}
}

func TestCircuitBreaker_OpensAfterFailures(t *testing.T) {
	client, err := NewClient(unreachable, WithCircuitBreakerThreshold(3))
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		client.recordFailure()
		assert.NotEqual(t, StatusCircuitOpen, client.Status())
	}
	client.recordFailure()
	assert.Equal(t, StatusCircuitOpen, client.Status())

	err = client.Connect(context.Background())
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.True(t, errors.IsTransient(err))
}

func TestCircuitBreaker_Reset(t *testing.T) {
	client, err := NewClient(unreachable)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		client.recordFailure()
	}
	require.Equal(t, StatusCircuitOpen, client.Status())

	client.resetCircuit()
	assert.Equal(t, StatusDisconnected, client.Status())
	assert.Equal(t, int32(0), client.Failures())
	assert.Equal(t, time.Second, client.Backoff())
}

func TestCircuitBreaker_BackoffIsCapped(t *testing.T) {
	client, err := NewClient(unreachable,
		WithCircuitBreakerThreshold(1),
		WithMaxBackoff(4*time.Second))
	require.NoError(t, err)

	client.recordFailure()
	require.Equal(t, StatusCircuitOpen, client.Status())
	assert.Equal(t, 2*time.Second, client.Backoff())

	client.recordFailure()
	assert.Equal(t, 4*time.Second, client.Backoff())

	client.recordFailure()
	assert.Equal(t, 4*time.Second, client.Backoff())
}

func TestCircuitBreaker_HalfOpen(t *testing.T) {
	client, err := NewClient(unreachable, WithCircuitBreakerThreshold(1))
	require.NoError(t, err)

	client.recordFailure()
	require.Equal(t, StatusCircuitOpen, client.Status())

	client.halfOpen()
	assert.Equal(t, StatusDisconnected, client.Status())

	// Only an open circuit moves to half-open.
	client.setStatus(StatusConnected)
	client.halfOpen()
	assert.Equal(t, StatusConnected, client.Status())
}

func TestConnect_Unreachable(t *testing.T) {
	client, err := NewClient(unreachable, WithTimeout(time.Second))
	require.NoError(t, err)

	err = client.Connect(context.Background())
	require.Error(t, err)

	var connErr *errors.ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, unreachable, connErr.Target)
	assert.True(t, errors.IsTransient(err))
	assert.Equal(t, int32(1), client.Failures())
	assert.Equal(t, StatusDisconnected, client.Status())
}

func TestConnect_AfterClose(t *testing.T) {
	client, err := NewClient(unreachable)
	require.NoError(t, err)

	require.NoError(t, client.Close(context.Background()))
	assert.ErrorIs(t, client.Connect(context.Background()), ErrClosed)
}

func TestNotConnected(t *testing.T) {
	client, err := NewClient(unreachable)
	require.NoError(t, err)
	ctx := context.Background()

	assert.ErrorIs(t, client.Publish(ctx, "iot.p.data.d.x", nil), ErrNotConnected)

	_, err = client.Subscribe(ctx, "iot.p.data.d.x", func(context.Context, bus.Message) {})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrSubscriptionFailed)
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.True(t, errors.IsTransient(err))

	_, err = client.RTT()
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestSubscribe_NilHandler(t *testing.T) {
	client, err := NewClient(unreachable)
	require.NoError(t, err)

	_, err = client.Subscribe(context.Background(), "iot.>", nil)
	assert.ErrorIs(t, err, errors.ErrInvalidRequest)
	assert.True(t, errors.IsInvalid(err))
}

func TestClose_Idempotent(t *testing.T) {
	client, err := NewClient(unreachable)
	require.NoError(t, err)

	select {
	case <-client.Done():
		t.Fatal("Done closed before Close")
	default:
	}

	require.NoError(t, client.Close(context.Background()))
	require.NoError(t, client.Close(context.Background()))

	select {
	case <-client.Done():
	default:
		t.Fatal("Done not closed after Close")
	}
	assert.ErrorIs(t, client.Publish(context.Background(), "x", nil), ErrClosed)
}

func TestWaitForConnection_Timeout(t *testing.T) {
	client, err := NewClient(unreachable)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err = client.WaitForConnection(ctx)
	assert.ErrorIs(t, err, errors.ErrConnectionTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestConcurrentFailures(t *testing.T) {
	client, err := NewClient(unreachable, WithCircuitBreakerThreshold(1000))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				client.recordFailure()
				_ = client.Status()
				_ = client.GetStatus()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(100), client.Failures())
}

func TestGetStatus(t *testing.T) {
	client, err := NewClient(unreachable)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		client.recordFailure()
	}

	status := client.GetStatus()
	assert.Equal(t, int32(3), status.FailureCount)
	assert.Equal(t, StatusDisconnected, status.Status)
	assert.NotZero(t, status.LastFailureTime)
	assert.Zero(t, status.Subscriptions)

	client.resetCircuit()
	assert.Equal(t, int32(0), client.GetStatus().FailureCount)
}

func TestConnectionOptions(t *testing.T) {
	client, err := NewClient(unreachable,
		WithCredentials("user", "pass"),
		WithName("topstack-test"),
		WithCompression(true),
	)
	require.NoError(t, err)

	// base options plus credentials, name and compression
	assert.Len(t, client.ConnectionOptions(), 9+3)

	token, err := NewClient(unreachable, WithToken("secret"))
	require.NoError(t, err)
	assert.Len(t, token.ConnectionOptions(), 9+1)
}

func TestMetricsHooks(t *testing.T) {
	registry := metric.NewMetricsRegistry()
	client, err := NewClient(unreachable,
		WithMetrics(registry),
		WithCircuitBreakerThreshold(1))
	require.NoError(t, err)
	core := registry.CoreMetrics()

	client.setStatus(StatusConnected)
	assert.Equal(t, 1.0, testutil.ToFloat64(core.BusConnected))

	client.recordFailure()
	assert.Equal(t, float64(circuitOpen), testutil.ToFloat64(core.BusCircuitBreaker))
	assert.Equal(t, 0.0, testutil.ToFloat64(core.BusConnected))

	client.halfOpen()
	assert.Equal(t, float64(circuitHalfOpen), testutil.ToFloat64(core.BusCircuitBreaker))

	client.resetCircuit()
	assert.Equal(t, float64(circuitClosed), testutil.ToFloat64(core.BusCircuitBreaker))
}

func TestWithLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	client, err := NewClient(unreachable, WithLogger(logger), WithTimeout(time.Second))
	require.NoError(t, err)

	_ = client.Connect(context.Background())

	out := buf.String()
	assert.Contains(t, out, "component=natsclient")
	assert.Contains(t, out, `msg="Connecting to NATS"`)
	assert.Contains(t, out, "url="+unreachable)

	silent, err := NewClient(unreachable, WithLogger(nil))
	require.NoError(t, err)
	assert.NotNil(t, silent.logger)
}

func TestBreaker(t *testing.T) {
	b := newBreaker(2, 3*time.Second)
	now := time.Now()

	tripped, _ := b.fail(now)
	assert.False(t, tripped)
	tripped, pause := b.fail(now)
	assert.True(t, tripped)
	assert.Equal(t, time.Second, pause)

	_, _ = b.fail(now)
	tripped, pause = b.fail(now)
	assert.True(t, tripped)
	assert.Equal(t, 2*time.Second, pause)

	failures, backoff, last := b.snapshot()
	assert.Equal(t, int32(4), failures)
	assert.Equal(t, 3*time.Second, backoff)
	assert.Equal(t, now, last)

	b.reset()
	failures, backoff, last = b.snapshot()
	assert.Zero(t, failures)
	assert.Equal(t, time.Second, backoff)
	assert.True(t, last.IsZero())
}

func TestHealthChangeOnClose(t *testing.T) {
	var lost atomic.Bool
	client, err := NewClient(unreachable, WithConnectionLostCallback(func(error) { lost.Store(true) }))
	require.NoError(t, err)

	// Never connected: the nats closed handler never runs, so no callback.
	require.NoError(t, client.Close(context.Background()))
	assert.False(t, lost.Load())
}
