package natsclient

import (
	"log/slog"
	"time"

	"github.com/c360/topstack/errors"
	"github.com/c360/topstack/metric"
	"github.com/c360/topstack/pkg/security"
	"github.com/c360/topstack/pkg/tlsutil"
)

// ClientOption configures a Client. Options that reject their argument fail
// NewClient.
type ClientOption func(*Client) error

// WithLogger sets the logger. A nil logger keeps the client silent.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) error {
		if logger != nil {
			c.logger = logger.With("component", "natsclient")
		}
		return nil
	}
}

// WithMetrics records connection status, reconnects, circuit state and
// received messages in the registry's core metrics.
func WithMetrics(registry *metric.MetricsRegistry) ClientOption {
	return func(c *Client) error {
		c.metrics = registry.CoreMetrics()
		return nil
	}
}

// WithMaxReconnects bounds reconnect attempts after a drop; -1 is unlimited and
// 0 makes the first drop final.
func WithMaxReconnects(n int) ClientOption {
	return func(c *Client) error {
		c.cfg.maxReconnects = n
		return nil
	}
}

// WithReconnectWait sets the pause between reconnect attempts
func WithReconnectWait(d time.Duration) ClientOption {
	return func(c *Client) error {
		c.cfg.reconnectWait = d
		return nil
	}
}

// WithPingInterval sets how often the server is pinged
func WithPingInterval(d time.Duration) ClientOption {
	return func(c *Client) error {
		c.cfg.pingInterval = d
		return nil
	}
}

// WithTimeout sets the dial timeout. It also bounds subscribe acknowledgements
// when the caller's context has no deadline.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) error {
		if d <= 0 {
			return &errors.ConfigError{Field: "timeout", Reason: "must be positive"}
		}
		c.cfg.timeout = d
		return nil
	}
}

// WithDrainTimeout bounds draining on Close
func WithDrainTimeout(d time.Duration) ClientOption {
	return func(c *Client) error {
		if d <= 0 {
			return &errors.ConfigError{Field: "drain_timeout", Reason: "must be positive"}
		}
		c.cfg.drainTimeout = d
		return nil
	}
}

// WithCircuitBreakerThreshold sets the failed connects that open the circuit
func WithCircuitBreakerThreshold(threshold int32) ClientOption {
	return func(c *Client) error {
		if threshold <= 0 {
			return &errors.ConfigError{Field: "circuit_breaker_threshold", Reason: "must be positive"}
		}
		c.cfg.circuitThreshold = threshold
		return nil
	}
}

// WithMaxBackoff caps the pause of an open circuit
func WithMaxBackoff(d time.Duration) ClientOption {
	return func(c *Client) error {
		if d <= 0 {
			return &errors.ConfigError{Field: "max_backoff", Reason: "must be positive"}
		}
		c.cfg.maxBackoff = d
		return nil
	}
}

// WithCredentials authenticates with a username and password
func WithCredentials(username, password string) ClientOption {
	return func(c *Client) error {
		c.cfg.username, c.cfg.password = username, password
		return nil
	}
}

// WithToken authenticates with a token
func WithToken(token string) ClientOption {
	return func(c *Client) error {
		c.cfg.token = token
		return nil
	}
}

// WithTLS secures the connection. Certificates are loaded here so a missing
// file fails NewClient rather than the first Connect.
func WithTLS(cfg security.ClientTLSConfig) ClientOption {
	return func(c *Client) error {
		tlsConfig, err := tlsutil.LoadClientTLSConfig(cfg)
		if err != nil {
			return err
		}
		c.cfg.tlsConfig = tlsConfig
		return nil
	}
}

// WithName identifies the connection to the server
func WithName(name string) ClientOption {
	return func(c *Client) error {
		c.cfg.name = name
		return nil
	}
}

// WithCompression asks the server for compressed traffic
func WithCompression(enabled bool) ClientOption {
	return func(c *Client) error {
		c.cfg.compression = enabled
		return nil
	}
}

// WithDisconnectCallback is called, on its own goroutine, when the connection drops
func WithDisconnectCallback(fn func(error)) ClientOption {
	return func(c *Client) error {
		c.cfg.onDisconnect = fn
		return nil
	}
}

// WithReconnectCallback is called, on its own goroutine, after a reconnect
func WithReconnectCallback(fn func()) ClientOption {
	return func(c *Client) error {
		c.cfg.onReconnect = fn
		return nil
	}
}

// WithHealthChangeCallback is called with true on connect and reconnect and
// with false on drop and close.
func WithHealthChangeCallback(fn func(healthy bool)) ClientOption {
	return func(c *Client) error {
		c.cfg.onHealthChange = fn
		return nil
	}
}

// WithConnectionLostCallback is called once when the connection closes for
// good, because reconnects were exhausted or Close was called.
func WithConnectionLostCallback(fn func(error)) ClientOption {
	return func(c *Client) error {
		c.cfg.onConnectionLost = fn
		return nil
	}
}
