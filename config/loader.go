package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/c360/topstack/errors"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "TOPSTACK"

// envVar binds one environment variable to a field
type envVar struct {
	suffix string
	set    func(c *Config, v string) error
}

func str(field func(*Config) *string) func(*Config, string) error {
	return func(c *Config, v string) error {
		*field(c) = v
		return nil
	}
}

func duration(field func(*Config) *time.Duration) func(*Config, string) error {
	return func(c *Config, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*field(c) = d
		return nil
	}
}

func integer(field func(*Config) *int) func(*Config, string) error {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*field(c) = n
		return nil
	}
}

var envVars = []envVar{
	{"BASE_URL", str(func(c *Config) *string { return &c.API.BaseURL })},
	{"API_KEY", str(func(c *Config) *string { return &c.API.APIKey })},
	{"PROJECT_ID", str(func(c *Config) *string { return &c.API.ProjectID })},
	{"APP_ID", str(func(c *Config) *string { return &c.API.AppID })},
	{"APP_SECRET", str(func(c *Config) *string { return &c.API.AppSecret })},
	{"TIMEOUT", duration(func(c *Config) *time.Duration { return &c.API.Timeout })},
	{"PAGE_SIZE", integer(func(c *Config) *int { return &c.API.PageSize })},
	{"CACHE_TTL", duration(func(c *Config) *time.Duration { return &c.API.CacheTTL })},
	{"CACHE_SIZE", integer(func(c *Config) *int { return &c.API.CacheSize })},
	{"BUS_DRIVER", str(func(c *Config) *string { return &c.Bus.Driver })},
	{"BUS_URL", str(func(c *Config) *string { return &c.Bus.URL })},
	{"BUS_TOKEN", str(func(c *Config) *string { return &c.Bus.Token })},
	{"BUS_USERNAME", str(func(c *Config) *string { return &c.Bus.Username })},
	{"BUS_PASSWORD", str(func(c *Config) *string { return &c.Bus.Password })},
	{"BUS_ROOT", str(func(c *Config) *string { return &c.Bus.Root })},
	{"BUS_QUEUE_SIZE", integer(func(c *Config) *int { return &c.Bus.QueueSize })},
	{"LOG_LEVEL", str(func(c *Config) *string { return &c.Log.Level })},
	{"LOG_FORMAT", str(func(c *Config) *string { return &c.Log.Format })},
	{"METRICS_ADDR", str(func(c *Config) *string { return &c.Metrics.Addr })},
}

// EnvVars lists the environment variables the loader reads
func EnvVars() []string {
	names := make([]string, len(envVars))
	for i, ev := range envVars {
		names[i] = EnvPrefix + "_" + ev.suffix
	}
	return names
}

// Loader reads configuration. The zero value is not usable; call NewLoader.
type Loader struct {
	envPrefix  string
	lookupEnv  func(string) (string, bool)
	validation bool
}

// NewLoader creates a loader that reads the process environment and validates
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  EnvPrefix,
		lookupEnv:  os.LookupEnv,
		validation: true,
	}
}

// EnableValidation turns validation of the loaded result on or off
func (l *Loader) EnableValidation(enable bool) {
	l.validation = enable
}

// Load reads path, applies environment overrides and defaults, then validates.
// An empty path skips the file.
func (l *Loader) Load(path string) (*Config, error) {
	var data []byte
	if path != "" {
		var err error
		data, err = readConfigFile(path)
		if err != nil {
			return nil, errors.WrapInvalid(err, "config", "Load", "read "+path)
		}
	}
	return l.LoadBytes(data)
}

// LoadBytes is Load for configuration already in memory
func (l *Loader) LoadBytes(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := decode(data, cfg); err != nil {
		return nil, err
	}
	if err := l.applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	if l.validation {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// Load reads path with a default loader
func Load(path string) (*Config, error) {
	return NewLoader().Load(path)
}

// decode parses YAML, which includes JSON documents, rejecting unknown keys
func decode(data []byte, cfg *Config) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := checkJSONDepth(data); err != nil && looksLikeJSON(data) {
		return &errors.DecodeError{Source: "config", Err: err}
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return &errors.DecodeError{Source: "config", Err: fmt.Errorf("%w: %w", errors.ErrInvalidConfig, err)}
	}
	return nil
}

func looksLikeJSON(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[')
}

func (l *Loader) applyEnvOverrides(cfg *Config) error {
	for _, ev := range envVars {
		key := l.envPrefix + "_" + ev.suffix
		val, ok := l.lookupEnv(key)
		if !ok || val == "" {
			continue
		}
		if err := checkEnvValue(key, val); err != nil {
			return &errors.ConfigError{Field: key, Reason: err.Error()}
		}
		if err := ev.set(cfg, val); err != nil {
			return &errors.ConfigError{Field: key, Reason: err.Error()}
		}
	}
	return nil
}

// Marshal renders cfg as YAML
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
