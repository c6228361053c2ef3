package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/topstack/errors"
	"github.com/c360/topstack/pkg/security"
)

func validConfig() *Config {
	cfg := &Config{
		API: APIConfig{
			BaseURL:   "https://topstack.example.com",
			APIKey:    "ak-123",
			ProjectID: "project_001",
		},
	}
	cfg.applyDefaults()
	return cfg
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, DefaultTimeout, cfg.API.Timeout)
	assert.Equal(t, DefaultPageSize, cfg.API.PageSize)
	assert.Equal(t, DriverNATS, cfg.Bus.Driver)
	assert.Equal(t, DefaultQueueSize, cfg.Bus.QueueSize)
	assert.Equal(t, -1, cfg.Bus.Reconnects())
	assert.Equal(t, 2*time.Second, cfg.Bus.ReconnectWait)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Empty(t, cfg.Metrics.Path, "no metrics path without an address")
}

func TestConfig_Validate(t *testing.T) {
	zero := 0
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"valid", func(*Config) {}, ""},
		{"app credentials", func(c *Config) {
			c.API.APIKey, c.API.ProjectID = "", ""
			c.API.AppID, c.API.AppSecret = "app", "secret"
		}, ""},
		{"nats bus", func(c *Config) { c.Bus.URL = "nats://broker:4222"; c.Bus.Token = "t" }, ""},
		{"mqtt bus", func(c *Config) {
			c.Bus.Driver, c.Bus.URL, c.Bus.QoS = DriverMQTT, "tcp://broker:1883", 1
			c.Bus.MaxReconnects = &zero
		}, ""},
		{"missing base url", func(c *Config) { c.API.BaseURL = "" }, "api.base_url"},
		{"bad scheme", func(c *Config) { c.API.BaseURL = "ftp://x" }, "api.base_url"},
		{"no credentials", func(c *Config) { c.API.APIKey, c.API.ProjectID = "", "" }, "api.credentials"},
		{"key without project", func(c *Config) { c.API.ProjectID = "" }, "api.project_id"},
		{"page size", func(c *Config) { c.API.PageSize = -1 }, "api.page_size"},
		{"negative cache ttl", func(c *Config) { c.API.CacheTTL = -time.Second }, "api.cache_ttl"},
		{"cache without size", func(c *Config) { c.API.CacheTTL, c.API.CacheSize = time.Minute, 0 }, "api.cache_size"},
		{"tls version", func(c *Config) { c.API.TLS.MinVersion = "1.0" }, "api.tls.min_version"},
		{"missing ca file", func(c *Config) { c.API.TLS.CAFiles = []string{"/nonexistent/ca.pem"} }, "api.tls.ca_files[0]"},
		{"mtls without key", func(c *Config) {
			c.API.TLS.MTLS = security.ClientMTLSConfig{Enabled: true, CertFile: "c.pem"}
		}, "api.tls.mtls"},
		{"unknown driver", func(c *Config) { c.Bus.URL = "amqp://x:5672"; c.Bus.Driver = "amqp" }, "bus.driver"},
		{"nats scheme", func(c *Config) { c.Bus.URL = "tcp://broker:4222" }, "bus.url"},
		{"relative bus url", func(c *Config) { c.Bus.URL = "broker" }, "bus.url"},
		{"token and user", func(c *Config) {
			c.Bus.URL, c.Bus.Token, c.Bus.Username, c.Bus.Password = "nats://b:4222", "t", "u", "p"
		}, "bus.token"},
		{"user without password", func(c *Config) { c.Bus.URL, c.Bus.Username = "nats://b:4222", "u" }, "bus.username"},
		{"mqtt qos", func(c *Config) { c.Bus.Driver, c.Bus.URL, c.Bus.QoS = DriverMQTT, "tcp://b:1883", 3 }, "bus.qos"},
		{"root with dot", func(c *Config) { c.Bus.URL, c.Bus.Root = "nats://b:4222", "a.b" }, "bus.root"},
		{"log level", func(c *Config) { c.Log.Level = "verbose" }, "log.level"},
		{"log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			var cfgErr *errors.ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
			assert.True(t, errors.IsInvalid(err))
		})
	}
}

func TestConfig_ValidateAcceptsExistingCAFile(t *testing.T) {
	ca := filepath.Join(t.TempDir(), "ca.pem")
	require.NoError(t, os.WriteFile(ca, []byte("not checked here"), 0600))

	cfg := validConfig()
	cfg.API.TLS.CAFiles = []string{ca}
	assert.NoError(t, cfg.Validate())
}

func TestConfig_Redacted(t *testing.T) {
	cfg := validConfig()
	cfg.Bus.Token = "bus-secret"
	cfg.Bus.Password = "pw"

	r := cfg.Redacted()
	assert.Equal(t, "****", r.API.APIKey)
	assert.Equal(t, "****", r.Bus.Token)
	assert.Equal(t, "****", r.Bus.Password)
	assert.Empty(t, r.API.AppSecret)
	assert.Equal(t, "project_001", r.API.ProjectID)

	// The original is untouched.
	assert.Equal(t, "ak-123", cfg.API.APIKey)
}
