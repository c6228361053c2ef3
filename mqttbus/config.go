package mqttbus

import (
	"crypto/tls"
	"net/url"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/c360/topstack/errors"
)

// Defaults applied by Config when a field is zero
const (
	DefaultConnectTimeout = 10 * time.Second
	DefaultAckTimeout     = 5 * time.Second
	DefaultKeepAlive      = 60 * time.Second

	// disconnectQuiesce is how long Close lets in-flight work finish, in ms
	disconnectQuiesce = 250

	maxQoS = 2
)

// Config holds the broker connection settings.
type Config struct {
	// Broker is the broker URL: tcp://, ssl://, ws:// or wss://
	Broker   string
	ClientID string
	Username string
	Password string

	// TLS secures ssl:// and wss:// brokers
	TLS *tls.Config

	// QoS is used for every subscription and publish (0, 1 or 2)
	QoS byte

	ConnectTimeout time.Duration
	// AckTimeout bounds subscribe, unsubscribe and publish acknowledgements
	// when the caller's context has no earlier deadline
	AckTimeout time.Duration
	KeepAlive  time.Duration

	// DisableReconnect makes the first connection loss final: Done closes and
	// every subscription ends.
	DisableReconnect bool
}

// Validate checks the configuration without touching the network.
func (c Config) Validate() error {
	if c.Broker == "" {
		return &errors.ConfigError{Field: "Broker", Reason: "required"}
	}
	u, err := url.Parse(c.Broker)
	if err != nil {
		return &errors.ConfigError{Field: "Broker", Reason: err.Error()}
	}
	switch u.Scheme {
	case "tcp", "ssl", "tls", "mqtt", "mqtts", "ws", "wss":
	default:
		return &errors.ConfigError{Field: "Broker", Reason: "unsupported scheme " + u.Scheme}
	}
	if u.Host == "" {
		return &errors.ConfigError{Field: "Broker", Reason: "host is required"}
	}
	if c.QoS > maxQoS {
		return &errors.ConfigError{Field: "QoS", Reason: "must be 0, 1 or 2"}
	}
	if c.ConnectTimeout < 0 || c.AckTimeout < 0 || c.KeepAlive < 0 {
		return &errors.ConfigError{Field: "timeouts", Reason: "must not be negative"}
	}
	if c.Password != "" && c.Username == "" {
		return &errors.ConfigError{Field: "Username", Reason: "required with Password"}
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.AckTimeout == 0 {
		c.AckTimeout = DefaultAckTimeout
	}
	if c.KeepAlive == 0 {
		c.KeepAlive = DefaultKeepAlive
	}
	return c
}

// clientOptions translates the configuration to paho options. Connection
// callbacks are attached by the Bus.
func (c Config) clientOptions() *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(c.Broker)
	if c.ClientID != "" {
		opts.SetClientID(c.ClientID)
	}
	if c.Username != "" {
		opts.SetUsername(c.Username)
		opts.SetPassword(c.Password)
	}
	if c.TLS != nil {
		opts.SetTLSConfig(c.TLS)
	}

	// Subscriptions are restored by the Bus after a reconnect.
	opts.SetCleanSession(true)
	opts.SetOrderMatters(true)
	opts.SetAutoReconnect(!c.DisableReconnect)
	opts.SetConnectRetry(false)
	opts.SetConnectTimeout(c.ConnectTimeout)
	opts.SetWriteTimeout(c.AckTimeout)
	opts.SetKeepAlive(c.KeepAlive)
	return opts
}
