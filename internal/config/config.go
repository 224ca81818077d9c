package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	Port        int    `envconfig:"PORT" default:"8080"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	SSLRedirect bool   `envconfig:"SSL_REDIRECT" default:"false"`
	RateLimit   int    `envconfig:"RATE_LIMIT_PER_MINUTE" default:"300"`

	// Upstream business API
	APIBaseURL string `envconfig:"API_BASE_URL" default:"http://localhost:8000/api"`
	APIToken   string `envconfig:"API_TOKEN"`

	// HTTP client
	HTTPTimeout time.Duration `envconfig:"HTTP_TIMEOUT" default:"10s"`

	// Resilience
	MaxRetries     int           `envconfig:"MAX_RETRIES" default:"3"`
	InitialBackoff time.Duration `envconfig:"INITIAL_BACKOFF" default:"100ms"`
	BreakerName    string        `envconfig:"BREAKER_NAME" default:"upstream-api"`

	// Detail cache: memory or redis
	CacheBackend    string        `envconfig:"CACHE_BACKEND" default:"memory"`
	CacheTTL        time.Duration `envconfig:"CACHE_TTL" default:"5m"`
	CacheMaxEntries int           `envconfig:"CACHE_MAX_ENTRIES" default:"10000"`
	RedisAddr       string        `envconfig:"REDIS_ADDR" default:"localhost:6379"`

	// Observability
	OTLPEndpoint string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName  string `envconfig:"OTEL_SERVICE_NAME" default:"bizdesk-bfa"`

	// Default locale for messages when Accept-Language is absent or unsupported.
	DefaultLocale string `envconfig:"DEFAULT_LOCALE" default:"en"`
}

// Load reads configuration from environment variables with defaults.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("config: API_BASE_URL %q is not an absolute URL", c.APIBaseURL)
	}
	switch c.CacheBackend {
	case "memory", "redis":
	default:
		return fmt.Errorf("config: CACHE_BACKEND must be memory or redis, got %q", c.CacheBackend)
	}
	if c.MaxRetries < 0 {
		return errors.New("config: MAX_RETRIES must not be negative")
	}
	if c.HTTPTimeout <= 0 {
		return errors.New("config: HTTP_TIMEOUT must be positive")
	}
	return nil
}
