// Package config handles YAML configuration loading with environment variable expansion.
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/oddskit/oddsrelay/internal/cache"
)

// Config is the top-level relay configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Upstream  UpstreamConfig  `yaml:"upstream"`
	Auth      AuthConfig      `yaml:"auth"`
	Cache     CacheConfig     `yaml:"cache"`
	Database  DatabaseConfig  `yaml:"database"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// UpstreamConfig holds odds backend connection settings.
type UpstreamConfig struct {
	BaseURL    string        `yaml:"base_url"`
	Timeout    time.Duration `yaml:"timeout"`
	RetryMax   int           `yaml:"retry_max"`
	ForceHTTP2 bool          `yaml:"force_http2"`
	// RateLimitRPM caps outbound requests per minute per route. 0 = unlimited.
	RateLimitRPM int64 `yaml:"rate_limit_rpm"`
	// QuotaReserve is how much of the backend's monthly request allowance to
	// keep untouched for out-of-band use.
	QuotaReserve int64 `yaml:"quota_reserve"`
}

// AuthConfig holds backend authentication settings.
type AuthConfig struct {
	// RefreshToken seeds the session on first start when the store is empty.
	// Expanded from the environment in the usual case: ${ODDSRELAY_REFRESH_TOKEN}.
	RefreshToken string `yaml:"refresh_token"`
	// RefreshSkew is how long before expiry the access token is renewed.
	RefreshSkew time.Duration `yaml:"refresh_skew"`
}

// CacheConfig holds response cache settings.
type CacheConfig struct {
	Enabled       bool          `yaml:"enabled"`
	MaxSize       int           `yaml:"max_size"`
	DefaultTTL    time.Duration `yaml:"default_ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
	// RouteTTL overrides the default TTL per cached route, keyed by the
	// route name ("scans", "predictions", "sports").
	RouteTTL map[string]time.Duration `yaml:"route_ttl"`
}

// TTLFor returns the TTL for a cached route, falling back to the default.
func (c CacheConfig) TTLFor(route string) time.Duration {
	if ttl, ok := c.RouteTTL[route]; ok {
		return ttl
	}
	return c.DefaultTTL
}

// DatabaseConfig holds SQLite settings for the session store.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"` // file path or ":memory:"
}

// TelemetryConfig holds observability settings.
type TelemetryConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
}

// MetricsConfig controls Prometheus metrics.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// TracingConfig controls OpenTelemetry tracing.
type TracingConfig struct {
	Enabled    bool    `yaml:"enabled"`
	Endpoint   string  `yaml:"endpoint"`    // OTLP gRPC endpoint
	SampleRate float64 `yaml:"sample_rate"` // 0.0 to 1.0
}

var envPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnv replaces ${VAR} patterns with environment variable values.
func expandEnv(data []byte) []byte {
	return envPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		varName := string(match[2 : len(match)-1])
		if val, ok := os.LookupEnv(varName); ok {
			return []byte(val)
		}
		return match
	})
}

// Load reads and parses a YAML config file, expanding environment variables.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	data = expandEnv(data)

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Default returns the configuration defaults applied before file values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8790",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Upstream: UpstreamConfig{
			Timeout:      10 * time.Second,
			RetryMax:     2,
			ForceHTTP2:   true,
			RateLimitRPM: 60,
			QuotaReserve: 50,
		},
		Auth: AuthConfig{
			RefreshSkew: 30 * time.Second,
		},
		Cache: CacheConfig{
			Enabled:       true,
			MaxSize:       cache.DefaultMaxSize,
			DefaultTTL:    cache.DefaultTTL,
			SweepInterval: 60 * time.Second,
		},
		Database: DatabaseConfig{
			DSN: "oddsrelay.db",
		},
	}
}
