//go:build integration

package natsclient

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/topstack/bus"
	"github.com/c360/topstack/errors"
	"github.com/c360/topstack/message"
	"github.com/c360/topstack/metric"
	subengine "github.com/c360/topstack/subscription"
	tu "github.com/c360/topstack/testutil"
)

func integrationClient(t *testing.T, opts ...TestOption) *TestClient {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	return NewTestClient(t, opts...)
}

func TestIntegration_Connect(t *testing.T) {
	tc := integrationClient(t, WithFastStartup())

	assert.True(t, tc.IsReady())
	assert.Equal(t, StatusConnected, tc.Client.Status())

	rtt, err := tc.Client.RTT()
	require.NoError(t, err)
	assert.Greater(t, rtt, time.Duration(0))
}

func TestIntegration_PublishSubscribe(t *testing.T) {
	tc := integrationClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	received := make(chan bus.Message, 4)
	sub, err := tc.Client.Subscribe(ctx, "iot.project_001.data.*.*", func(_ context.Context, msg bus.Message) {
		received <- msg
	})
	require.NoError(t, err)
	assert.Equal(t, "iot.project_001.data.*.*", sub.Subject())
	assert.Equal(t, 1, tc.Client.GetStatus().Subscriptions)

	// Subscribe returns after the server acknowledged, so no sleep is needed.
	require.NoError(t, tc.Client.Publish(ctx, tu.PointDataSubject, []byte(tu.PointDataPayload)))
	require.NoError(t, tc.Client.Publish(ctx, "iot.project_002.data.device_001.point_001", []byte(tu.PointDataPayload)))

	select {
	case msg := <-received:
		assert.Equal(t, tu.PointDataSubject, msg.Subject)
		assert.JSONEq(t, tu.PointDataPayload, string(msg.Data))
	case <-ctx.Done():
		t.Fatal("timeout waiting for message")
	}

	require.NoError(t, sub.Unsubscribe(ctx))
	require.NoError(t, sub.Unsubscribe(ctx))
	assert.Zero(t, tc.Client.GetStatus().Subscriptions)

	require.NoError(t, tc.Client.Publish(ctx, tu.PointDataSubject, []byte(tu.PointDataPayload)))
	select {
	case msg := <-received:
		t.Fatalf("delivery after unsubscribe: %s", msg.Subject)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestIntegration_UnsubscribeWaitsForServer(t *testing.T) {
	tc := integrationClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	const subj = "iot.project_001.device_state.device_042"
	for range 20 {
		sub, err := tc.Client.Subscribe(ctx, subj, func(context.Context, bus.Message) {})
		require.NoError(t, err)
		n, err := tc.ServerSubscriptions(ctx, subj)
		require.NoError(t, err)
		require.Equal(t, 1, n)

		require.NoError(t, sub.Unsubscribe(ctx))
		n, err = tc.ServerSubscriptions(ctx, subj)
		require.NoError(t, err)
		require.Zero(t, n, "server still holds interest after Unsubscribe returned")
	}
}

func TestIntegration_UnsubscribeDeadline(t *testing.T) {
	tc := integrationClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	sub, err := tc.Client.Subscribe(ctx, "iot.project_001.alert.*", func(context.Context, bus.Message) {})
	require.NoError(t, err)

	expired, stop := context.WithDeadline(ctx, time.Now().Add(-time.Second))
	defer stop()
	err = sub.Unsubscribe(expired)
	var timeoutErr *errors.TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.True(t, errors.IsTransient(err))

	// Delivery is already stopped; a retry reports the same outcome.
	assert.ErrorAs(t, sub.Unsubscribe(ctx), &timeoutErr)
}

func TestIntegration_ExternalPublisher(t *testing.T) {
	tc := integrationClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var count atomic.Int32
	done := make(chan struct{})
	_, err := tc.Client.Subscribe(ctx, "iot.*.alert.*", func(context.Context, bus.Message) {
		if count.Add(1) == 3 {
			close(done)
		}
	})
	require.NoError(t, err)

	conn, err := tc.NewConnection()
	require.NoError(t, err)
	defer conn.Close()

	for i := 0; i < 3; i++ {
		require.NoError(t, conn.Publish(tu.AlertInfoSubject, []byte(tu.AlertInfoPayload)))
	}
	require.NoError(t, conn.Flush())

	select {
	case <-done:
	case <-ctx.Done():
		t.Fatalf("received %d of 3 messages", count.Load())
	}
}

func TestIntegration_CloseEndsEverything(t *testing.T) {
	tc := integrationClient(t)
	ctx := context.Background()

	_, err := tc.Client.Subscribe(ctx, "iot.>", func(context.Context, bus.Message) {})
	require.NoError(t, err)

	require.NoError(t, tc.Client.Close(ctx))

	select {
	case <-tc.Client.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("Done not closed")
	}
	assert.Zero(t, tc.Client.GetStatus().Subscriptions)
	assert.ErrorIs(t, tc.Client.Publish(ctx, "iot.x", nil), ErrClosed)

	_, err = tc.Client.Subscribe(ctx, "iot.>", func(context.Context, bus.Message) {})
	assert.ErrorIs(t, err, errors.ErrSubscriptionFailed)
}

func TestIntegration_BrokerLoss(t *testing.T) {
	var lost atomic.Bool
	tc := integrationClient(t, WithClientOptions(
		WithConnectionLostCallback(func(error) { lost.Store(true) }),
	))

	require.NoError(t, tc.Stop(context.Background()))

	// MaxReconnects(0) means the connection closes for good on the first drop.
	select {
	case <-tc.Client.Done():
	case <-time.After(15 * time.Second):
		t.Fatal("Done not closed after broker loss")
	}
	assert.Eventually(t, lost.Load, 5*time.Second, 10*time.Millisecond)
	assert.False(t, tc.Client.IsHealthy())
}

func TestIntegration_HealthCallbacks(t *testing.T) {
	var mu sync.Mutex
	var changes []bool

	tc := integrationClient(t, WithClientOptions(
		WithHealthChangeCallback(func(healthy bool) {
			mu.Lock()
			changes = append(changes, healthy)
			mu.Unlock()
		}),
	))
	assert.True(t, tc.IsReady())

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(changes) > 0 && changes[0]
	}, 2*time.Second, 10*time.Millisecond)
}

func TestIntegration_Metrics(t *testing.T) {
	registry := metric.NewMetricsRegistry()
	tc := integrationClient(t, WithClientOptions(WithMetrics(registry)))
	core := registry.CoreMetrics()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	assert.Equal(t, 1.0, testutil.ToFloat64(core.BusConnected))

	got := make(chan struct{}, 2)
	_, err := tc.Client.Subscribe(ctx, "iot.>", func(context.Context, bus.Message) { got <- struct{}{} })
	require.NoError(t, err)

	require.NoError(t, tc.Client.Publish(ctx, tu.DeviceStateSubject, []byte(tu.DeviceStatePayload)))
	require.NoError(t, tc.Client.Publish(ctx, tu.GatewayStateSubject, []byte(tu.GatewayStatePayload)))
	for i := 0; i < 2; i++ {
		select {
		case <-got:
		case <-ctx.Done():
			t.Fatal("timeout waiting for messages")
		}
	}
	assert.Equal(t, 2.0, testutil.ToFloat64(core.BusMessagesReceived))
}

// The subscription engine on a real broker: subscribe, receive one decoded
// record, unsubscribe, receive nothing more.
func TestIntegration_EngineRoundTrip(t *testing.T) {
	tc := integrationClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	engine := subengine.NewEngine(tc.Client)
	defer func() { _ = engine.Close(context.Background()) }()

	records := make(chan message.PointData, 4)
	h, err := engine.SubscribePointData(ctx, "project_001", "device_001", "point_001",
		func(_ context.Context, p message.PointData) error {
			records <- p
			return nil
		})
	require.NoError(t, err)
	assert.Equal(t, subengine.StateActive, h.State())

	require.NoError(t, tc.Client.Publish(ctx, tu.PointDataSubject, []byte(tu.PointDataPayload)))

	select {
	case p := <-records:
		assert.Equal(t, "device_001", p.DeviceID)
		assert.Equal(t, "point_001", p.PointID)
	case <-ctx.Done():
		t.Fatal("timeout waiting for record")
	}

	require.NoError(t, engine.Unsubscribe(ctx, h))
	assert.Equal(t, subengine.StateClosed, h.State())

	require.NoError(t, tc.Client.Publish(ctx, tu.PointDataSubject, []byte(tu.PointDataPayload)))
	select {
	case <-records:
		t.Fatal("record delivered after unsubscribe")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestIntegration_EngineFailsOnConnectionLoss(t *testing.T) {
	tc := integrationClient(t)
	ctx := context.Background()

	engine := subengine.NewEngine(tc.Client)
	h, err := engine.SubscribeDeviceState(ctx, "project_001", "*",
		func(context.Context, message.DeviceState) error { return nil })
	require.NoError(t, err)

	require.NoError(t, tc.Stop(ctx))

	assert.Eventually(t, func() bool { return h.State().Terminal() }, 15*time.Second, 50*time.Millisecond)

	_, err = engine.SubscribeDeviceState(ctx, "project_001", "*",
		func(context.Context, message.DeviceState) error { return nil })
	assert.ErrorIs(t, err, errors.ErrConnectionClosed)
}
