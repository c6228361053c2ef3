package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/c360/topstack/errors"
	"github.com/c360/topstack/pkg/security"
	"github.com/c360/topstack/pkg/tlsutil"
)

// Bus drivers
const (
	DriverNATS = "nats"
	DriverMQTT = "mqtt"
)

// Defaults filled in by the loader
const (
	DefaultTimeout   = 30 * time.Second
	DefaultPageSize  = 10
	DefaultQueueSize = 256
	DefaultCacheSize = 512
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// Config is the complete configuration of the topstack command
type Config struct {
	API     APIConfig     `yaml:"api" json:"api"`
	Bus     BusConfig     `yaml:"bus" json:"bus"`
	Log     LogConfig     `yaml:"log" json:"log"`
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`
}

// APIConfig holds the platform HTTP API settings
type APIConfig struct {
	BaseURL   string `yaml:"base_url" json:"base_url"`
	APIKey    string `yaml:"api_key" json:"api_key,omitempty"`
	ProjectID string `yaml:"project_id" json:"project_id,omitempty"`
	AppID     string `yaml:"app_id" json:"app_id,omitempty"`
	AppSecret string `yaml:"app_secret" json:"app_secret,omitempty"`

	Timeout  time.Duration `yaml:"timeout" json:"timeout"`
	PageSize int           `yaml:"page_size" json:"page_size"`

	// CacheTTL enables the GET response cache when positive
	CacheTTL  time.Duration `yaml:"cache_ttl" json:"cache_ttl,omitempty"`
	CacheSize int           `yaml:"cache_size" json:"cache_size,omitempty"`

	TLS security.ClientTLSConfig `yaml:"tls" json:"tls,omitempty"`
}

// BusConfig holds the event bus connection settings. An empty URL means no bus.
type BusConfig struct {
	Driver   string `yaml:"driver" json:"driver"`
	URL      string `yaml:"url" json:"url,omitempty"`
	Token    string `yaml:"token" json:"token,omitempty"`
	Username string `yaml:"username" json:"username,omitempty"`
	Password string `yaml:"password" json:"password,omitempty"`

	// ClientName identifies the connection to the broker
	ClientName string `yaml:"client_name" json:"client_name,omitempty"`
	// Root overrides the first subject token
	Root string `yaml:"root" json:"root,omitempty"`
	// QueueSize bounds each subscription's pending messages
	QueueSize int `yaml:"queue_size" json:"queue_size"`

	// MaxReconnects is unlimited when unset; 0 makes the first loss final
	MaxReconnects *int          `yaml:"max_reconnects" json:"max_reconnects,omitempty"`
	ReconnectWait time.Duration `yaml:"reconnect_wait" json:"reconnect_wait,omitempty"`
	// QoS applies to the mqtt driver only
	QoS byte `yaml:"qos" json:"qos,omitempty"`

	TLS security.ClientTLSConfig `yaml:"tls" json:"tls,omitempty"`
}

// Reconnects returns the reconnect limit, -1 for unlimited
func (b BusConfig) Reconnects() int {
	if b.MaxReconnects == nil {
		return -1
	}
	return *b.MaxReconnects
}

// LogConfig selects the slog handler
type LogConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// MetricsConfig enables the Prometheus endpoint when Addr is set
type MetricsConfig struct {
	Addr string `yaml:"addr" json:"addr,omitempty"`
	Path string `yaml:"path" json:"path,omitempty"`
}

// Default returns a configuration with every default applied and nothing else
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultTimeout
	}
	if c.API.PageSize == 0 {
		c.API.PageSize = DefaultPageSize
	}
	if c.API.CacheTTL > 0 && c.API.CacheSize == 0 {
		c.API.CacheSize = DefaultCacheSize
	}
	if c.Bus.Driver == "" {
		c.Bus.Driver = DriverNATS
	}
	if c.Bus.QueueSize == 0 {
		c.Bus.QueueSize = DefaultQueueSize
	}
	if c.Bus.ReconnectWait == 0 {
		c.Bus.ReconnectWait = 2 * time.Second
	}
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
	if c.Metrics.Addr != "" && c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

// Validate checks the whole configuration. The API section is always required;
// the bus section only when a URL is set.
func (c *Config) Validate() error {
	if err := c.ClientConfig().Validate(); err != nil {
		var cfgErr *errors.ConfigError
		if errors.As(err, &cfgErr) {
			return &errors.ConfigError{Field: "api." + apiField(cfgErr.Field), Reason: cfgErr.Reason}
		}
		return err
	}
	if c.API.PageSize <= 0 {
		return &errors.ConfigError{Field: "api.page_size", Reason: "must be positive"}
	}
	if c.API.CacheTTL < 0 {
		return &errors.ConfigError{Field: "api.cache_ttl", Reason: "must not be negative"}
	}
	if c.API.CacheTTL > 0 && c.API.CacheSize <= 0 {
		return &errors.ConfigError{Field: "api.cache_size", Reason: "must be positive when caching"}
	}
	if err := validateTLS("api.tls", c.API.TLS); err != nil {
		return err
	}
	if err := c.validateBus(); err != nil {
		return err
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return &errors.ConfigError{Field: "log.level", Reason: fmt.Sprintf("unknown level %q", c.Log.Level)}
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return &errors.ConfigError{Field: "log.format", Reason: fmt.Sprintf("unknown format %q", c.Log.Format)}
	}
	return nil
}

func (c *Config) validateBus() error {
	b := c.Bus
	if b.URL == "" {
		return nil
	}
	u, err := url.Parse(b.URL)
	if err != nil || u.Host == "" {
		return &errors.ConfigError{Field: "bus.url", Reason: "must be an absolute broker address"}
	}
	switch b.Driver {
	case DriverNATS:
		if u.Scheme != "nats" && u.Scheme != "tls" {
			return &errors.ConfigError{Field: "bus.url", Reason: "nats driver needs a nats:// or tls:// address"}
		}
	case DriverMQTT:
		if b.QoS > 2 {
			return &errors.ConfigError{Field: "bus.qos", Reason: "must be 0, 1 or 2"}
		}
	default:
		return &errors.ConfigError{Field: "bus.driver", Reason: fmt.Sprintf("unknown driver %q", b.Driver)}
	}
	if b.Token != "" && b.Username != "" {
		return &errors.ConfigError{Field: "bus.token", Reason: "set either token or username/password, not both"}
	}
	if (b.Username == "") != (b.Password == "") {
		return &errors.ConfigError{Field: "bus.username", Reason: "username and password go together"}
	}
	if b.QueueSize < 0 {
		return &errors.ConfigError{Field: "bus.queue_size", Reason: "must not be negative"}
	}
	if b.Root != "" && strings.ContainsAny(b.Root, ".*> ") {
		return &errors.ConfigError{Field: "bus.root", Reason: "must be a single subject token"}
	}
	return validateTLS("bus.tls", b.TLS)
}

func validateTLS(field string, t security.ClientTLSConfig) error {
	for i, caFile := range t.CAFiles {
		if _, err := os.Stat(caFile); err != nil {
			return &errors.ConfigError{Field: fmt.Sprintf("%s.ca_files[%d]", field, i), Reason: err.Error()}
		}
	}
	if _, ok := tlsutil.MinVersion(t.MinVersion); !ok {
		return &errors.ConfigError{Field: field + ".min_version", Reason: `must be "1.2" or "1.3"`}
	}
	if t.MTLS.Enabled && (t.MTLS.CertFile == "" || t.MTLS.KeyFile == "") {
		return &errors.ConfigError{Field: field + ".mtls", Reason: "cert_file and key_file are required"}
	}
	return nil
}

// apiField maps client.Config field names to file keys
func apiField(name string) string {
	switch name {
	case "BaseURL":
		return "base_url"
	case "APIKey":
		return "api_key"
	case "ProjectID":
		return "project_id"
	case "AppID":
		return "app_id"
	case "AppSecret":
		return "app_secret"
	case "Timeout":
		return "timeout"
	default:
		return strings.ToLower(name)
	}
}

// Redacted returns a copy safe to print: secrets are masked.
func (c *Config) Redacted() *Config {
	out := *c
	mask := func(s *string) {
		if *s != "" {
			*s = "****"
		}
	}
	mask(&out.API.APIKey)
	mask(&out.API.AppSecret)
	mask(&out.Bus.Token)
	mask(&out.Bus.Password)
	return &out
}
