package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the listing-insights application.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	Log       LogConfig
	Metrics   MetricsConfig
	Geo       GeoConfig
	Session   SessionConfig
}

type ServerConfig struct {
	Addr            string
	Env             string
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
	MinConns int
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type RateLimitConfig struct {
	Enabled bool
	RPS     float64
	Burst   int
}

type LogConfig struct {
	Level  string
	Format string
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool
	Path    string
}

// GeoConfig configures GeoIP lookup.
type GeoConfig struct {
	Enabled      bool
	DatabasePath string
}

// SessionConfig tunes visitor session tracking.
type SessionConfig struct {
	// Window is the recency gap bounding a single session.
	Window time.Duration
	// BounceThreshold is the time-on-page below which a view counts as a bounce.
	BounceThreshold time.Duration
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Addr:            getEnv("INSIGHTS_HTTP_ADDR", ":8080"),
			Env:             getEnv("INSIGHTS_ENV", "development"),
			ShutdownTimeout: getDurationEnv("INSIGHTS_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			Host:     getEnv("INSIGHTS_DB_HOST", "localhost"),
			Port:     getIntEnv("INSIGHTS_DB_PORT", 5432),
			User:     getEnv("INSIGHTS_DB_USER", "insights"),
			Password: getEnv("INSIGHTS_DB_PASSWORD", "insights_secret"),
			DBName:   getEnv("INSIGHTS_DB_NAME", "insights"),
			SSLMode:  getEnv("INSIGHTS_DB_SSLMODE", "disable"),
			MaxConns: getIntEnv("INSIGHTS_DB_MAX_CONNS", 25),
			MinConns: getIntEnv("INSIGHTS_DB_MIN_CONNS", 5),
		},
		Redis: RedisConfig{
			Addr:     getEnv("INSIGHTS_REDIS_ADDR", "localhost:6379"),
			Password: getEnv("INSIGHTS_REDIS_PASSWORD", ""),
			DB:       getIntEnv("INSIGHTS_REDIS_DB", 0),
		},
		RateLimit: RateLimitConfig{
			Enabled: getBoolEnv("INSIGHTS_RATE_LIMIT_ENABLED", true),
			RPS:     getFloatEnv("INSIGHTS_RATE_LIMIT_RPS", 500),
			Burst:   getIntEnv("INSIGHTS_RATE_LIMIT_BURST", 100),
		},
		Log: LogConfig{
			Level:  getEnv("INSIGHTS_LOG_LEVEL", "info"),
			Format: getEnv("INSIGHTS_LOG_FORMAT", "json"),
		},
		Metrics: MetricsConfig{
			Enabled: getBoolEnv("INSIGHTS_METRICS_ENABLED", true),
			Path:    getEnv("INSIGHTS_METRICS_PATH", "/metrics"),
		},
		Geo: GeoConfig{
			Enabled:      getBoolEnv("INSIGHTS_GEO_ENABLED", false),
			DatabasePath: getEnv("INSIGHTS_GEO_DB_PATH", "/app/data/GeoLite2-City.mmdb"),
		},
		Session: SessionConfig{
			Window:          getDurationEnv("INSIGHTS_SESSION_WINDOW", 30*time.Minute),
			BounceThreshold: getDurationEnv("INSIGHTS_BOUNCE_THRESHOLD", 10*time.Second),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.Session.Window <= 0 {
		return fmt.Errorf("INSIGHTS_SESSION_WINDOW must be positive")
	}
	if c.Session.BounceThreshold < 0 {
		return fmt.Errorf("INSIGHTS_BOUNCE_THRESHOLD must not be negative")
	}
	if c.Geo.Enabled && c.Geo.DatabasePath == "" {
		return fmt.Errorf("INSIGHTS_GEO_DB_PATH is required when geo is enabled")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// Helper functions for reading environment variables

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getIntEnv(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getFloatEnv(key string, def float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getBoolEnv(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getDurationEnv(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
