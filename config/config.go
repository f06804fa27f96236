package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

const (
	MinCacheTTL = 60 * time.Second
	MaxCacheTTL = 300 * time.Second
)

type Config struct {
	ServerPort string `env:"SERVER_PORT" envDefault:"8080"`

	// Persistence of recent searches
	DatabaseDriver string `env:"DATABASE_DRIVER" envDefault:"sqlite"`
	DatabaseURL    string `env:"DATABASE_URL" envDefault:"./tibia-lookup.db"`

	// Upstream API
	TibiaDataBaseURL string        `env:"TIBIADATA_BASE_URL" envDefault:"https://api.tibiadata.com"`
	ConnectTimeout   time.Duration `env:"CONNECT_TIMEOUT" envDefault:"15s"`
	RequestTimeout   time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`
	RequestRateLimit time.Duration `env:"REQUEST_RATE_LIMIT" envDefault:"0s"`

	// Response cache
	CacheTTL             time.Duration `env:"CACHE_TTL" envDefault:"5m"`
	CacheMaxEntries      int           `env:"CACHE_MAX_ENTRIES" envDefault:"50"`
	CacheMaxBytes        int64         `env:"CACHE_MAX_BYTES" envDefault:"2097152"`
	CacheCleanupInterval time.Duration `env:"CACHE_CLEANUP_INTERVAL" envDefault:"1m"`

	// Lookup pipeline
	MinLoading                time.Duration `env:"MIN_LOADING" envDefault:"500ms"`
	ConnectivityProbeInterval time.Duration `env:"CONNECTIVITY_PROBE_INTERVAL" envDefault:"30s"`
	SessionIdleTimeout        time.Duration `env:"SESSION_IDLE_TIMEOUT" envDefault:"30m"`
	MaxSessions               int           `env:"MAX_SESSIONS" envDefault:"1000"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`
}

// LoadConfig reads .env (when present) and the process environment into a validated Config
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logrus.Warn("Error loading .env file, using system environment variables")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// DefaultConfig returns the configuration used when no environment is set
func DefaultConfig() *Config {
	cfg := &Config{}
	// envDefault tags only; an empty environment cannot fail to parse.
	_ = env.ParseWithOptions(cfg, env.Options{Environment: map[string]string{}})
	return cfg
}

// Validate rejects unusable values and applies defaults for the rest
func (c *Config) Validate() error {
	logger := logrus.WithField("component", "Config")

	c.DatabaseDriver = strings.ToLower(strings.TrimSpace(c.DatabaseDriver))
	switch c.DatabaseDriver {
	case "":
		c.DatabaseDriver = "sqlite"
		logger.Debug("Applied default DatabaseDriver")
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported database driver: %s", c.DatabaseDriver)
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL must be set")
	}

	if !strings.HasPrefix(c.TibiaDataBaseURL, "http://") && !strings.HasPrefix(c.TibiaDataBaseURL, "https://") {
		return fmt.Errorf("TIBIADATA_BASE_URL must be an http(s) URL, got %q", c.TibiaDataBaseURL)
	}
	c.TibiaDataBaseURL = strings.TrimRight(c.TibiaDataBaseURL, "/")

	if c.CacheTTL < MinCacheTTL {
		logger.Warnf("CACHE_TTL %v below minimum, using %v", c.CacheTTL, MinCacheTTL)
		c.CacheTTL = MinCacheTTL
	}
	if c.CacheTTL > MaxCacheTTL {
		logger.Warnf("CACHE_TTL %v above maximum, using %v", c.CacheTTL, MaxCacheTTL)
		c.CacheTTL = MaxCacheTTL
	}

	if c.CacheMaxEntries <= 0 {
		c.CacheMaxEntries = 50
		logger.Debug("Applied default CacheMaxEntries")
	}
	if c.CacheMaxBytes <= 0 {
		c.CacheMaxBytes = 2 << 20
		logger.Debug("Applied default CacheMaxBytes")
	}
	if c.CacheCleanupInterval <= 0 {
		c.CacheCleanupInterval = time.Minute
		logger.Debug("Applied default CacheCleanupInterval")
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 15 * time.Second
		logger.Debug("Applied default ConnectTimeout")
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 30 * time.Second
		logger.Debug("Applied default RequestTimeout")
	}
	if c.RequestRateLimit < 0 {
		c.RequestRateLimit = 0
	}
	if c.MinLoading < 0 {
		c.MinLoading = 0
	}
	if c.ConnectivityProbeInterval <= 0 {
		c.ConnectivityProbeInterval = 30 * time.Second
		logger.Debug("Applied default ConnectivityProbeInterval")
	}
	if c.SessionIdleTimeout <= 0 {
		c.SessionIdleTimeout = 30 * time.Minute
		logger.Debug("Applied default SessionIdleTimeout")
	}
	if c.MaxSessions <= 0 {
		c.MaxSessions = 1000
		logger.Debug("Applied default MaxSessions")
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "json"
	}
	return nil
}
