package core

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the client.
// It supports three-layer configuration priority:
//  1. Default values (lowest priority)
//  2. Environment variables (medium priority)
//  3. Functional options (highest priority)
type Config struct {
	// BaseURL of the remote ordering API, e.g. "https://api.deliverly.io".
	BaseURL string `yaml:"base_url" json:"base_url" env:"DELIVERLY_BASE_URL"`

	// HTTP client behavior.
	HTTP HTTPConfig `yaml:"http" json:"http"`

	// Resilience applied to read-path calls.
	Resilience ResilienceConfig `yaml:"resilience" json:"resilience"`

	// Redis, when set, enables Redis-backed session persistence and the
	// snapshot read-cache. Empty means in-memory only.
	Redis RedisConfig `yaml:"redis" json:"redis"`

	// Logging configuration.
	Logging LoggingConfig `yaml:"logging" json:"logging"`

	// Telemetry toggles OTel instrumentation of outbound requests.
	Telemetry TelemetryConfig `yaml:"telemetry" json:"telemetry"`
}

// HTTPConfig contains outbound HTTP client configuration.
type HTTPConfig struct {
	Timeout time.Duration `yaml:"timeout" json:"timeout" env:"DELIVERLY_HTTP_TIMEOUT"`
}

// ResilienceConfig controls retry and circuit breaker behavior for
// read-path (fetch) calls. Mutations are never retried; their recovery
// path is a forced refresh.
type ResilienceConfig struct {
	MaxAttempts      int           `yaml:"max_attempts" json:"max_attempts" env:"DELIVERLY_RETRY_MAX_ATTEMPTS"`
	InitialDelay     time.Duration `yaml:"initial_delay" json:"initial_delay"`
	MaxDelay         time.Duration `yaml:"max_delay" json:"max_delay"`
	BackoffFactor    float64       `yaml:"backoff_factor" json:"backoff_factor"`
	FailureThreshold int           `yaml:"failure_threshold" json:"failure_threshold"`
	SleepWindow      time.Duration `yaml:"sleep_window" json:"sleep_window"`
	HalfOpenRequests int           `yaml:"half_open_requests" json:"half_open_requests"`
}

// RedisConfig points at an optional Redis instance.
type RedisConfig struct {
	URL string        `yaml:"url" json:"url" env:"DELIVERLY_REDIS_URL"`
	TTL time.Duration `yaml:"ttl" json:"ttl"`
}

// TelemetryConfig toggles tracing and metrics on outbound calls.
type TelemetryConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled" env:"DELIVERLY_TELEMETRY_ENABLED"`
}

// Option is a functional option for Config.
type Option func(*Config)

// NewConfig builds a Config from defaults, environment, then options.
func NewConfig(opts ...Option) (*Config, error) {
	cfg := DefaultConfig()
	cfg.applyEnv()
	for _, opt := range opts {
		opt(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultConfig returns the baseline configuration.
func DefaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{Timeout: 15 * time.Second},
		Resilience: ResilienceConfig{
			MaxAttempts:      3,
			InitialDelay:     100 * time.Millisecond,
			MaxDelay:         2 * time.Second,
			BackoffFactor:    2.0,
			FailureThreshold: 5,
			SleepWindow:      30 * time.Second,
			HalfOpenRequests: 2,
		},
		Redis:     RedisConfig{TTL: 24 * time.Hour},
		Logging:   LoggingConfig{Level: "info"},
		Telemetry: TelemetryConfig{Enabled: true},
	}
}

func (c *Config) applyEnv() {
	if v := os.Getenv("DELIVERLY_BASE_URL"); v != "" {
		c.BaseURL = v
	}
	if v := os.Getenv("DELIVERLY_HTTP_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.HTTP.Timeout = d
		}
	}
	if v := os.Getenv("DELIVERLY_RETRY_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Resilience.MaxAttempts = n
		}
	}
	if v := os.Getenv("DELIVERLY_REDIS_URL"); v != "" {
		c.Redis.URL = v
	}
	if v := os.Getenv("DELIVERLY_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("DELIVERLY_TELEMETRY_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Telemetry.Enabled = b
		}
	}
}

// Validate checks the configuration for obvious mistakes.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return &ClientError{
			Op:   "config.Validate",
			Kind: KindConfig,
			Err:  fmt.Errorf("base URL is required: %w", ErrValidation),
		}
	}
	if _, err := url.Parse(c.BaseURL); err != nil {
		return &ClientError{
			Op:   "config.Validate",
			Kind: KindConfig,
			Err:  fmt.Errorf("invalid base URL %q: %w", c.BaseURL, err),
		}
	}
	if c.HTTP.Timeout <= 0 {
		return &ClientError{
			Op:   "config.Validate",
			Kind: KindConfig,
			Err:  fmt.Errorf("HTTP timeout must be positive: %w", ErrValidation),
		}
	}
	return nil
}

// LoadConfigFile reads a YAML config file and returns the options it
// implies. File values sit between env vars and explicit options.
func LoadConfigFile(path string) (Option, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	var fileCfg Config
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return func(c *Config) {
		if fileCfg.BaseURL != "" {
			c.BaseURL = fileCfg.BaseURL
		}
		if fileCfg.HTTP.Timeout > 0 {
			c.HTTP.Timeout = fileCfg.HTTP.Timeout
		}
		if fileCfg.Resilience.MaxAttempts > 0 {
			c.Resilience.MaxAttempts = fileCfg.Resilience.MaxAttempts
		}
		if fileCfg.Resilience.FailureThreshold > 0 {
			c.Resilience.FailureThreshold = fileCfg.Resilience.FailureThreshold
		}
		if fileCfg.Redis.URL != "" {
			c.Redis.URL = fileCfg.Redis.URL
		}
		if fileCfg.Redis.TTL > 0 {
			c.Redis.TTL = fileCfg.Redis.TTL
		}
		if fileCfg.Logging.Level != "" {
			c.Logging.Level = fileCfg.Logging.Level
		}
	}, nil
}

// WithBaseURL sets the remote API base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Config) { c.BaseURL = baseURL }
}

// WithHTTPTimeout sets the outbound HTTP timeout.
func WithHTTPTimeout(d time.Duration) Option {
	return func(c *Config) { c.HTTP.Timeout = d }
}

// WithRedisURL enables Redis-backed session persistence and snapshot
// caching.
func WithRedisURL(url string) Option {
	return func(c *Config) { c.Redis.URL = url }
}

// WithLogLevel sets the log level for the default logger.
func WithLogLevel(level string) Option {
	return func(c *Config) { c.Logging.Level = level }
}

// WithTelemetry toggles OTel instrumentation.
func WithTelemetry(enabled bool) Option {
	return func(c *Config) { c.Telemetry.Enabled = enabled }
}

// WithResilience replaces the resilience settings wholesale.
func WithResilience(rc ResilienceConfig) Option {
	return func(c *Config) { c.Resilience = rc }
}
