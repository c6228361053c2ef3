package retry

import (
	"context"
	"fmt"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/topstack/api"
	"github.com/c360/topstack/envelope"
	"github.com/c360/topstack/errors"
)

func fast() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     100 * time.Millisecond,
		Multiplier:   2.0,
		AddJitter:    false, // Disable for predictable tests
	}
}

func transient() error {
	return &errors.ConnectionError{Target: "http://platform", Err: fmt.Errorf("connection refused")}
}

func TestRetry_Success(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), fast(), func(context.Context) error {
		attempts++
		if attempts < 3 {
			return transient()
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetry_AllAttemptsFail(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), fast(), func(context.Context) error {
		attempts++
		return &errors.TimeoutError{Operation: "GET /alert/open_api/v1/alert_level", Err: context.DeadlineExceeded}
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed after 3 attempts")
	assert.ErrorIs(t, err, errors.ErrConnectionTimeout)
	assert.Equal(t, 3, attempts)
}

func TestRetry_OnlyTransientErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		attempts int
	}{
		{"connection", transient(), 3},
		{"server error", &errors.APIError{Code: "503", Message: "busy"}, 3},
		{"throttled", &errors.APIError{Code: "429", Message: "slow down"}, 3},
		{"unauthorized", &errors.APIError{Code: "401", Message: "bad key"}, 1},
		{"config", &errors.ConfigError{Field: "BaseURL", Reason: "required"}, 1},
		{"decode", &errors.DecodeError{Source: "/x", Err: errors.ErrInvalidData}, 1},
		{"closed", errors.ErrEngineClosed, 1},
		{"unclassified", errors.New("something odd"), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attempts := 0
			err := Do(context.Background(), fast(), func(context.Context) error {
				attempts++
				return tt.err
			})
			assert.ErrorIs(t, err, tt.err)
			assert.Equal(t, tt.attempts, attempts)
		})
	}
}

func TestRetry_CustomRetryable(t *testing.T) {
	cfg := fast()
	cfg.Retryable = func(err error) bool { return errors.IsAPIError(err, "409") }

	attempts := 0
	err := Do(context.Background(), cfg, func(context.Context) error {
		attempts++
		return &errors.APIError{Code: "409", Message: "conflict"}
	})
	assert.Error(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetry_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := fast()
	cfg.MaxAttempts = 5
	cfg.InitialDelay = 100 * time.Millisecond
	cfg.MaxDelay = time.Second

	attempts := 0
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	err := Do(ctx, cfg, func(context.Context) error {
		attempts++
		return transient()
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	var connErr *errors.ConnectionError
	assert.ErrorAs(t, err, &connErr, "the last failure stays reachable")
	assert.Less(t, attempts, 5)
}

func TestRetry_BackoffTiming(t *testing.T) {
	cfg := Config{MaxAttempts: 4, InitialDelay: 10 * time.Millisecond, MaxDelay: 25 * time.Millisecond, Multiplier: 2.0}

	var delays []time.Duration
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		assert.Equal(t, len(delays)+1, attempt)
		assert.True(t, errors.IsTransient(err))
		delays = append(delays, delay)
	}

	start := time.Now()
	_ = Do(context.Background(), cfg, func(context.Context) error { return transient() })

	assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 25 * time.Millisecond}, delays)
	assert.GreaterOrEqual(t, time.Since(start), 55*time.Millisecond)
}

func TestRetry_Jitter(t *testing.T) {
	cfg := fast()
	cfg.AddJitter = true
	cfg.OnRetry = func(_ int, _ error, delay time.Duration) {
		assert.GreaterOrEqual(t, delay, 10*time.Millisecond)
		assert.Less(t, delay, 13*time.Millisecond)
	}
	cfg.MaxAttempts = 2
	_ = Do(context.Background(), cfg, func(context.Context) error { return transient() })
}

func TestRetry_InvalidConfig(t *testing.T) {
	noop := func(context.Context) error { return nil }
	tests := map[string]Config{
		"InitialDelay": {InitialDelay: -1},
		"MaxDelay":     {InitialDelay: time.Second, MaxDelay: time.Millisecond},
		"Multiplier":   {Multiplier: -2},
	}
	for field, cfg := range tests {
		t.Run(field, func(t *testing.T) {
			err := Do(context.Background(), cfg, noop)
			var cfgErr *errors.ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, field, cfgErr.Field)
		})
	}
}

func TestRetry_ZeroAttempts(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), Config{}, func(context.Context) error {
		attempts++
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 1, attempts)
}

func TestRetry_Presets(t *testing.T) {
	assert.Equal(t, 3, DefaultConfig().MaxAttempts)
	assert.Equal(t, 10, Quick().MaxAttempts)
	assert.Equal(t, 30, Persistent().MaxAttempts)
	for _, cfg := range []Config{DefaultConfig(), Quick(), Persistent()} {
		_, err := cfg.normalize()
		assert.NoError(t, err)
	}
}

// flakyPlatform fails the first n calls with a 503 envelope.
type flakyPlatform struct {
	failures int
	calls    int
}

func (f *flakyPlatform) Call(_ context.Context, _, path string, _ url.Values, _ any) (*envelope.Envelope, error) {
	f.calls++
	body := `{"code":"200","data":[{"code":"L1","name":"High"}]}`
	if f.calls <= f.failures {
		body = `{"code":"503","message":"service unavailable"}`
	}
	env, err := envelope.Decode(path, []byte(body))
	if err != nil {
		return nil, err
	}
	return env, env.Err()
}

func TestRetry_WithResultAroundEndpoint(t *testing.T) {
	platform := &flakyPlatform{failures: 2}

	levels, err := DoWithResult(context.Background(), fast(), func(ctx context.Context) ([]api.AlertLevel, error) {
		return api.AlertLevels.Do(ctx, platform, struct{}{})
	})

	require.NoError(t, err)
	assert.Equal(t, 3, platform.calls)
	require.Len(t, levels, 1)
	assert.Equal(t, "High", levels[0].Name)
}

func BenchmarkRetry_Success(b *testing.B) {
	ctx := context.Background()
	cfg := Config{MaxAttempts: 1, InitialDelay: time.Millisecond}

	for i := 0; i < b.N; i++ {
		_ = Do(ctx, cfg, func(context.Context) error { return nil })
	}
}

func ExampleDo() {
	ctx := context.Background()

	err := Do(ctx, DefaultConfig(), func(ctx context.Context) error {
		return nil // an idempotent platform call
	})
	fmt.Println(err)
	// Output: <nil>
}
