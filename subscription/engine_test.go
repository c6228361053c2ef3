package subscription

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/topstack/errors"
	"github.com/c360/topstack/message"
	"github.com/c360/topstack/metric"
	"github.com/c360/topstack/subject"
	"github.com/c360/topstack/testutil"
)

const waitFor = 2 * time.Second

// recorder collects records and reported errors from an engine.
type recorder struct {
	mu      sync.Mutex
	records []message.Record
	errs    []error
	got     chan struct{}
}

func newRecorder() *recorder {
	return &recorder{got: make(chan struct{}, 1024)}
}

func (r *recorder) handle(_ context.Context, rec message.Record) error {
	r.mu.Lock()
	r.records = append(r.records, rec)
	r.mu.Unlock()
	r.got <- struct{}{}
	return nil
}

func (r *recorder) onError(_ Handle, _ string, err error) {
	r.mu.Lock()
	r.errs = append(r.errs, err)
	r.mu.Unlock()
}

func (r *recorder) wait(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-r.got:
		case <-time.After(waitFor):
			t.Fatalf("timed out after %d of %d records", i, n)
		}
	}
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

func (r *recorder) reported() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errs...)
}

func publish(t *testing.T, b *testutil.MockBus, subj, payload string) {
	t.Helper()
	require.NoError(t, b.Publish(context.Background(), subj, []byte(payload)))
}

func allPoints() subject.Scope {
	return subject.Scope{Project: "*", Device: "*", Point: "*"}
}

func TestEngine_WildcardPointDataDelivery(t *testing.T) {
	b := testutil.NewMockBus()
	rec := newRecorder()
	engine := NewEngine(b)
	ctx := context.Background()

	h, err := engine.Subscribe(ctx, allPoints(), subject.ClassPointData, rec.handle)
	require.NoError(t, err)
	assert.Equal(t, "iot.*.data.*.*", h.Subject)
	assert.Equal(t, StateActive, h.State())

	publish(t, b, testutil.PointDataSubject, testutil.PointDataPayload)
	rec.wait(t, 1)
	require.NoError(t, engine.Unsubscribe(ctx, h))

	require.Equal(t, 1, rec.count())
	point, ok := rec.records[0].(message.PointData)
	require.True(t, ok, "got %T", rec.records[0])
	assert.Equal(t, "device_001", point.DeviceID)
	assert.Equal(t, 1, point.Quality)
	assert.Equal(t, 25.5, point.Value)
	assert.Equal(t, testutil.PointDataSubject, point.Origin())
}

func TestEngine_NoDeliveryAfterUnsubscribe(t *testing.T) {
	b := testutil.NewMockBus()
	rec := newRecorder()
	engine := NewEngine(b)
	ctx := context.Background()

	h, err := engine.Subscribe(ctx, allPoints(), subject.ClassPointData, rec.handle)
	require.NoError(t, err)
	publish(t, b, testutil.PointDataSubject, testutil.PointDataPayload)
	rec.wait(t, 1)

	require.NoError(t, engine.Unsubscribe(ctx, h))
	assert.Equal(t, StateClosed, h.State())

	publish(t, b, testutil.PointDataSubject, testutil.PointDataPayload)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, rec.count())
	assert.Zero(t, b.SubscriptionCount())
}

func TestEngine_UnsubscribeIsIdempotent(t *testing.T) {
	b := testutil.NewMockBus()
	engine := NewEngine(b)
	ctx := context.Background()

	h, err := engine.Subscribe(ctx, allPoints(), subject.ClassPointData, newRecorder().handle)
	require.NoError(t, err)

	require.NoError(t, engine.Unsubscribe(ctx, h))
	require.NoError(t, engine.Unsubscribe(ctx, h))

	_, unsubscribes := b.Calls()
	assert.Equal(t, 1, unsubscribes, "bus sees a single unsubscribe")
	assert.Zero(t, engine.Len())
}

func TestEngine_UnsubscribeUnknownHandle(t *testing.T) {
	engine := NewEngine(testutil.NewMockBus())
	err := engine.Unsubscribe(context.Background(), Handle{})
	assert.ErrorIs(t, err, errors.ErrUnknownHandle)
	assert.False(t, Handle{}.Valid())
}

func TestEngine_PreservesBusOrder(t *testing.T) {
	b := testutil.NewMockBus()
	rec := newRecorder()
	engine := NewEngine(b)
	ctx := context.Background()

	h, err := engine.Subscribe(ctx, allPoints(), subject.ClassPointData, rec.handle)
	require.NoError(t, err)

	const n = 200
	for i := 0; i < n; i++ {
		publish(t, b, testutil.PointDataSubject,
			fmt.Sprintf(`{"deviceID":"device_001","pointID":"point_001","value":%d}`, i))
	}
	rec.wait(t, n)
	require.NoError(t, engine.Unsubscribe(ctx, h))

	for i, r := range rec.records {
		assert.Equal(t, float64(i), r.(message.PointData).Value, "position %d", i)
	}
}

func TestEngine_DecodeFailureKeepsSubscription(t *testing.T) {
	b := testutil.NewMockBus()
	rec := newRecorder()
	engine := NewEngine(b, WithErrorHandler(rec.onError))
	ctx := context.Background()

	h, err := engine.Subscribe(ctx, allPoints(), subject.ClassPointData, rec.handle)
	require.NoError(t, err)

	publish(t, b, testutil.PointDataSubject, testutil.MalformedPayload)
	publish(t, b, testutil.PointDataSubject, testutil.BadTimestampPayload)
	publish(t, b, testutil.PointDataSubject, testutil.PointDataPayload)
	rec.wait(t, 1)

	assert.Equal(t, StateActive, h.State())
	require.NoError(t, engine.Unsubscribe(ctx, h))

	errs := rec.reported()
	require.Len(t, errs, 2)

	var decodeErr *errors.DecodeError
	require.ErrorAs(t, errs[0], &decodeErr)
	assert.Equal(t, testutil.PointDataSubject, decodeErr.Source)

	var tsErr *errors.TimestampFormatError
	require.ErrorAs(t, errs[1], &tsErr)
	assert.Equal(t, "timestamp", tsErr.Field)
	assert.ErrorIs(t, errs[1], errors.ErrBadTimestamp)
}

func TestEngine_HandlerErrorIsReported(t *testing.T) {
	b := testutil.NewMockBus()
	rec := newRecorder()
	engine := NewEngine(b, WithErrorHandler(rec.onError))
	ctx := context.Background()

	boom := errors.New("downstream unavailable")
	calls := make(chan struct{}, 2)
	h, err := engine.Subscribe(ctx, allPoints(), subject.ClassPointData,
		func(context.Context, message.Record) error {
			calls <- struct{}{}
			return boom
		})
	require.NoError(t, err)

	publish(t, b, testutil.PointDataSubject, testutil.PointDataPayload)
	publish(t, b, testutil.PointDataSubject, testutil.PointDataPayload)
	for i := 0; i < 2; i++ {
		select {
		case <-calls:
		case <-time.After(waitFor):
			t.Fatal("handler not called")
		}
	}
	require.NoError(t, engine.Unsubscribe(ctx, h))

	errs := rec.reported()
	require.Len(t, errs, 2)
	assert.ErrorIs(t, errs[0], boom)
}

func TestEngine_HandlerPanicIsRecovered(t *testing.T) {
	b := testutil.NewMockBus()
	rec := newRecorder()
	engine := NewEngine(b, WithErrorHandler(rec.onError))
	ctx := context.Background()

	first := true
	h, err := engine.Subscribe(ctx, allPoints(), subject.ClassPointData,
		func(ctx context.Context, r message.Record) error {
			if first {
				first = false
				panic("handler bug")
			}
			return rec.handle(ctx, r)
		})
	require.NoError(t, err)

	publish(t, b, testutil.PointDataSubject, testutil.PointDataPayload)
	publish(t, b, testutil.PointDataSubject, testutil.PointDataPayload)
	rec.wait(t, 1)
	require.NoError(t, engine.Unsubscribe(ctx, h))

	errs := rec.reported()
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], errors.ErrHandlerPanic)
}

func TestEngine_QueueFullDropsAndReports(t *testing.T) {
	b := testutil.NewMockBus()
	rec := newRecorder()
	registry := metric.NewMetricsRegistry()
	engine := NewEngine(b, WithQueueSize(1), WithErrorHandler(rec.onError), WithMetrics(registry))
	ctx := context.Background()

	release := make(chan struct{})
	started := make(chan struct{}, 16)
	h, err := engine.Subscribe(ctx, allPoints(), subject.ClassPointData,
		func(context.Context, message.Record) error {
			started <- struct{}{}
			<-release
			return nil
		})
	require.NoError(t, err)

	publish(t, b, testutil.PointDataSubject, testutil.PointDataPayload)
	<-started // worker is now blocked holding the first message
	for i := 0; i < 5; i++ {
		publish(t, b, testutil.PointDataSubject, testutil.PointDataPayload)
	}
	close(release)

	assert.Equal(t, StateActive, h.State())
	require.NoError(t, engine.Unsubscribe(ctx, h))

	errs := rec.reported()
	require.Len(t, errs, 4, "one queued, four dropped")
	for _, err := range errs {
		assert.ErrorIs(t, err, errors.ErrQueueFull)
	}
	dropped := registry.CoreMetrics().SubscriptionMessages.WithLabelValues("point-data", metric.OutcomeDropped)
	assert.Equal(t, 4.0, promtest.ToFloat64(dropped))
}

func TestEngine_UnsubscribeFromOwnHandler(t *testing.T) {
	b := testutil.NewMockBus()
	engine := NewEngine(b)
	ctx := context.Background()

	var (
		h     Handle
		ready = make(chan struct{})
		done  = make(chan error, 1)
		calls int
		mu    sync.Mutex
	)
	h, err := engine.Subscribe(ctx, allPoints(), subject.ClassPointData,
		func(hctx context.Context, _ message.Record) error {
			<-ready
			mu.Lock()
			calls++
			mu.Unlock()
			done <- engine.Unsubscribe(hctx, h)
			return nil
		})
	require.NoError(t, err)
	close(ready)

	publish(t, b, testutil.PointDataSubject, testutil.PointDataPayload)
	publish(t, b, testutil.PointDataSubject, testutil.PointDataPayload)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(waitFor):
		t.Fatal("unsubscribe from own handler blocked")
	}

	assert.Eventually(t, func() bool { return h.State() == StateClosed }, waitFor, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	assert.Equal(t, 1, calls, "queued message is not delivered after unsubscribe")
	mu.Unlock()
}

func TestEngine_SubscribeFailure(t *testing.T) {
	b := testutil.NewMockBus()
	engine := NewEngine(b)
	b.FailNextSubscribe(errors.ErrNotConnected)

	h, err := engine.Subscribe(context.Background(), allPoints(), subject.ClassPointData, newRecorder().handle)
	require.Error(t, err)
	assert.False(t, h.Valid())

	var subErr *errors.SubscribeError
	require.ErrorAs(t, err, &subErr)
	assert.Equal(t, "iot.*.data.*.*", subErr.Subject)
	assert.ErrorIs(t, err, errors.ErrSubscriptionFailed)
	assert.ErrorIs(t, err, errors.ErrNotConnected)
	assert.True(t, errors.IsTransient(err))
	assert.Zero(t, engine.Len())

	// The failure does not affect the next subscription.
	_, err = engine.Subscribe(context.Background(), allPoints(), subject.ClassPointData, newRecorder().handle)
	assert.NoError(t, err)
}

func TestEngine_SubscribeErrorFromBackendNotRewrapped(t *testing.T) {
	b := testutil.NewMockBus()
	engine := NewEngine(b)
	backendErr := &errors.SubscribeError{Subject: "iot.*.data.*.*", Err: errors.ErrNotConnected}
	b.FailNextSubscribe(backendErr)

	_, err := engine.Subscribe(context.Background(), allPoints(), subject.ClassPointData, newRecorder().handle)
	require.Error(t, err)
	assert.Same(t, backendErr, err)
	assert.Equal(t, 1, strings.Count(err.Error(), "subscribe iot.*.data.*.*"))
	assert.ErrorIs(t, err, errors.ErrSubscriptionFailed)
}

func TestEngine_SubscribeRejectsBadInput(t *testing.T) {
	engine := NewEngine(testutil.NewMockBus())
	ctx := context.Background()

	tests := []struct {
		name    string
		scope   subject.Scope
		class   subject.Class
		handler Handler
	}{
		{"nil handler", allPoints(), subject.ClassPointData, nil},
		{"dotted id", subject.Scope{Project: "a.b"}, subject.ClassPointData, newRecorder().handle},
		{"multi-level wildcard", subject.Scope{Project: ">"}, subject.ClassPointData, newRecorder().handle},
		{"unknown class", allPoints(), subject.Class("telemetry"), newRecorder().handle},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := engine.Subscribe(ctx, tt.scope, tt.class, tt.handler)
			require.Error(t, err)
			assert.ErrorIs(t, err, errors.ErrSubscriptionFailed)
			assert.True(t, errors.IsInvalid(err))
		})
	}
	assert.Zero(t, engine.Len())
}

func TestEngine_ScopeFiltersSubjects(t *testing.T) {
	b := testutil.NewMockBus()
	rec := newRecorder()
	engine := NewEngine(b)
	ctx := context.Background()

	_, err := engine.Subscribe(ctx, subject.Scope{Project: "project_001", Device: "device_002"},
		subject.ClassPointData, rec.handle)
	require.NoError(t, err)

	publish(t, b, testutil.PointDataSubject, testutil.PointDataPayload)
	publish(t, b, "iot.project_001.data.device_002.point_001", testutil.PointDataPayload)
	publish(t, b, "iot.project_001.device_state.device_002", testutil.DeviceStatePayload)
	rec.wait(t, 1)
	require.NoError(t, engine.Close(ctx))

	assert.Equal(t, 1, rec.count())
	assert.Equal(t, "iot.project_001.data.device_002.point_001", rec.records[0].Origin())
}

func TestEngine_SubscriptionsRunIndependently(t *testing.T) {
	b := testutil.NewMockBus()
	engine := NewEngine(b)
	ctx := context.Background()

	block := make(chan struct{})
	defer close(block)
	_, err := engine.Subscribe(ctx, allPoints(), subject.ClassPointData,
		func(context.Context, message.Record) error {
			<-block
			return nil
		})
	require.NoError(t, err)

	rec := newRecorder()
	_, err = engine.Subscribe(ctx, subject.Scope{}, subject.ClassDeviceState, rec.handle)
	require.NoError(t, err)

	publish(t, b, testutil.PointDataSubject, testutil.PointDataPayload)
	publish(t, b, testutil.DeviceStateSubject, testutil.DeviceStatePayload)
	rec.wait(t, 1)
}

func TestEngine_CloseReleasesHandles(t *testing.T) {
	b := testutil.NewMockBus()
	engine := NewEngine(b)
	ctx := context.Background()

	h1, err := engine.Subscribe(ctx, allPoints(), subject.ClassPointData, newRecorder().handle)
	require.NoError(t, err)
	h2, err := engine.Subscribe(ctx, subject.Scope{}, subject.ClassGatewayState, newRecorder().handle)
	require.NoError(t, err)
	require.Equal(t, 2, engine.Len())

	require.NoError(t, engine.Close(ctx))
	assert.Equal(t, StateClosed, h1.State())
	assert.Equal(t, StateClosed, h2.State())
	assert.Zero(t, engine.Len())
	assert.Zero(t, b.SubscriptionCount())

	// Unsubscribe after Close is still a no-op.
	assert.NoError(t, engine.Unsubscribe(ctx, h1))
	assert.NoError(t, engine.Close(ctx))

	_, err = engine.Subscribe(ctx, allPoints(), subject.ClassPointData, newRecorder().handle)
	assert.ErrorIs(t, err, errors.ErrEngineClosed)
}

func TestEngine_BusCloseReleasesHandles(t *testing.T) {
	b := testutil.NewMockBus()
	engine := NewEngine(b)
	ctx := context.Background()

	h, err := engine.Subscribe(ctx, allPoints(), subject.ClassPointData, newRecorder().handle)
	require.NoError(t, err)

	require.NoError(t, b.Close())
	assert.Eventually(t, func() bool { return h.State() == StateClosed }, waitFor, 5*time.Millisecond)
	assert.Zero(t, engine.Len())

	_, err = engine.Subscribe(ctx, allPoints(), subject.ClassPointData, newRecorder().handle)
	assert.ErrorIs(t, err, errors.ErrConnectionClosed)
}

func TestEngine_ConcurrentSubscribeUnsubscribe(t *testing.T) {
	b := testutil.NewMockBus()
	engine := NewEngine(b)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			scope := subject.Scope{Project: fmt.Sprintf("p%d", i)}
			h, err := engine.Subscribe(ctx, scope, subject.ClassDeviceState, newRecorder().handle)
			if !assert.NoError(t, err) {
				return
			}
			assert.NoError(t, engine.Unsubscribe(ctx, h))
		}(i)
	}
	wg.Wait()
	assert.Zero(t, engine.Len())
	assert.Zero(t, b.SubscriptionCount())
}

func TestEngine_Metrics(t *testing.T) {
	b := testutil.NewMockBus()
	registry := metric.NewMetricsRegistry()
	rec := newRecorder()
	engine := NewEngine(b, WithMetrics(registry))
	ctx := context.Background()
	core := registry.CoreMetrics()

	h, err := engine.Subscribe(ctx, allPoints(), subject.ClassPointData, rec.handle)
	require.NoError(t, err)
	assert.Equal(t, 1.0, promtest.ToFloat64(core.SubscriptionsActive))

	publish(t, b, testutil.PointDataSubject, testutil.MalformedPayload)
	publish(t, b, testutil.PointDataSubject, testutil.PointDataPayload)
	rec.wait(t, 1)
	require.NoError(t, engine.Unsubscribe(ctx, h))

	assert.Equal(t, 1.0, promtest.ToFloat64(core.SubscriptionMessages.WithLabelValues("point-data", metric.OutcomeDelivered)))
	assert.Equal(t, 1.0, promtest.ToFloat64(core.SubscriptionMessages.WithLabelValues("point-data", metric.OutcomeDecodeError)))
	assert.Equal(t, 0.0, promtest.ToFloat64(core.SubscriptionsActive))
}

func TestEngine_WithRoot(t *testing.T) {
	b := testutil.NewMockBus()
	rec := newRecorder()
	engine := NewEngine(b, WithRoot("plant"))

	h, err := engine.Subscribe(context.Background(), subject.Scope{}, subject.ClassDeviceState, rec.handle)
	require.NoError(t, err)
	assert.Equal(t, "plant.*.device_state.*", h.Subject)

	publish(t, b, testutil.DeviceStateSubject, testutil.DeviceStatePayload)
	publish(t, b, "plant.project_001.device_state.device_001", testutil.DeviceStatePayload)
	rec.wait(t, 1)
	require.NoError(t, engine.Close(context.Background()))
	assert.Equal(t, 1, rec.count())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "requested", StateRequested.String())
	assert.Equal(t, "active", StateActive.String())
	assert.Equal(t, "unsubscribing", StateUnsubscribing.String())
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "failed", StateFailed.String())
	assert.Equal(t, "unknown", State(42).String())
	assert.True(t, StateFailed.Terminal())
	assert.False(t, StateActive.Terminal())
}

func timeAfter() <-chan time.Time { return time.After(waitFor) }
