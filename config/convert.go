package config

import (
	"log/slog"
	"time"

	"github.com/c360/topstack/client"
	"github.com/c360/topstack/envelope"
	"github.com/c360/topstack/errors"
	"github.com/c360/topstack/metric"
	"github.com/c360/topstack/mqttbus"
	"github.com/c360/topstack/natsclient"
	"github.com/c360/topstack/pkg/cache"
	"github.com/c360/topstack/pkg/tlsutil"
	"github.com/c360/topstack/subscription"
)

// ClientConfig returns the transport client configuration
func (c *Config) ClientConfig() client.Config {
	return client.Config{
		BaseURL:   c.API.BaseURL,
		APIKey:    c.API.APIKey,
		ProjectID: c.API.ProjectID,
		AppID:     c.API.AppID,
		AppSecret: c.API.AppSecret,
		Timeout:   c.API.Timeout,
		TLS:       c.API.TLS,
	}
}

// ClientOptions returns the client options for the api section. logger and
// registry may be nil. With cache_ttl set it builds the response cache.
func (c *Config) ClientOptions(logger *slog.Logger, registry *metric.MetricsRegistry) ([]client.Option, error) {
	var opts []client.Option
	if logger != nil {
		opts = append(opts, client.WithLogger(logger))
	}
	if registry != nil {
		opts = append(opts, client.WithMetrics(registry))
	}
	if c.API.CacheTTL > 0 {
		responses, err := cache.New[*envelope.Envelope](c.API.CacheSize, c.API.CacheTTL,
			cache.WithMetrics[*envelope.Envelope](registry, "api_responses"))
		if err != nil {
			return nil, err
		}
		opts = append(opts, client.WithResponseCache(responses))
	}
	return opts, nil
}

// NATSOptions returns the natsclient options for the bus section. logger and
// registry may be nil.
func (c *Config) NATSOptions(logger *slog.Logger, registry *metric.MetricsRegistry) []natsclient.ClientOption {
	b := c.Bus
	opts := []natsclient.ClientOption{
		natsclient.WithMaxReconnects(b.Reconnects()),
		natsclient.WithReconnectWait(b.ReconnectWait),
		natsclient.WithTimeout(c.API.Timeout),
	}
	if b.ClientName != "" {
		opts = append(opts, natsclient.WithName(b.ClientName))
	}
	if b.Token != "" {
		opts = append(opts, natsclient.WithToken(b.Token))
	}
	if b.Username != "" {
		opts = append(opts, natsclient.WithCredentials(b.Username, b.Password))
	}
	if !b.TLS.IsZero() {
		opts = append(opts, natsclient.WithTLS(b.TLS))
	}
	if logger != nil {
		opts = append(opts, natsclient.WithLogger(logger))
	}
	if registry != nil {
		opts = append(opts, natsclient.WithMetrics(registry))
	}
	return opts
}

// MQTTConfig returns the mqttbus configuration for the bus section
func (c *Config) MQTTConfig() (mqttbus.Config, error) {
	b := c.Bus
	if b.Token != "" {
		return mqttbus.Config{}, &errors.ConfigError{Field: "bus.token", Reason: "the mqtt driver authenticates with username/password"}
	}
	cfg := mqttbus.Config{
		Broker:           b.URL,
		ClientID:         b.ClientName,
		Username:         b.Username,
		Password:         b.Password,
		QoS:              b.QoS,
		AckTimeout:       c.API.Timeout,
		DisableReconnect: b.Reconnects() == 0,
	}
	if !b.TLS.IsZero() {
		tlsConfig, err := tlsutil.LoadClientTLSConfig(b.TLS)
		if err != nil {
			return mqttbus.Config{}, &errors.ConfigError{Field: "bus.tls", Reason: err.Error()}
		}
		cfg.TLS = tlsConfig
	}
	return cfg, nil
}

// EngineOptions returns the subscription engine options for the bus section.
// logger and registry may be nil.
func (c *Config) EngineOptions(logger *slog.Logger, registry *metric.MetricsRegistry) []subscription.Option {
	opts := []subscription.Option{subscription.WithQueueSize(c.Bus.QueueSize)}
	if c.Bus.Root != "" {
		opts = append(opts, subscription.WithRoot(c.Bus.Root))
	}
	if logger != nil {
		opts = append(opts, subscription.WithLogger(logger))
	}
	if registry != nil {
		opts = append(opts, subscription.WithMetrics(registry))
	}
	return opts
}

// CallTimeout is the per-call deadline of the transport client
func (c *Config) CallTimeout() time.Duration {
	return c.API.Timeout
}
