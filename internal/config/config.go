// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP API listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// GRPCAddr is the address the gRPC health server listens on (e.g. :9090).
	GRPCAddr string `mapstructure:"GRPC_ADDR"`
	// DatabaseURL is the Postgres DSN. Empty outside production selects in-memory repositories.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
	// LogLevel is the zap level name (debug, info, warn, error).
	LogLevel string `mapstructure:"LOG_LEVEL"`

	// SessionTTLRaw is the session lifetime (e.g. "1h").
	SessionTTLRaw string `mapstructure:"SESSION_TTL"`
	// RefreshTTLRaw is the refresh token lifetime (e.g. "720h").
	RefreshTTLRaw string `mapstructure:"REFRESH_TTL"`
	// SessionEncryptionKey is 64 hex chars or a path to a file holding them.
	SessionEncryptionKey string `mapstructure:"SESSION_ENCRYPTION_KEY"`
	// CookieSecure sets the Secure attribute on the session cookie. Only disable for local http.
	CookieSecure bool `mapstructure:"COOKIE_SECURE"`
	// CookieDomain is the optional Domain attribute of the session cookie.
	CookieDomain string `mapstructure:"COOKIE_DOMAIN"`
	// BcryptCost is the bcrypt cost factor (4–31); default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`

	// RateLimitMaxAttempts is the failures per window that block an IP.
	RateLimitMaxAttempts int `mapstructure:"RATE_LIMIT_MAX_ATTEMPTS"`
	// RateLimitWindowRaw is the window length (e.g. "60s").
	RateLimitWindowRaw string `mapstructure:"RATE_LIMIT_WINDOW"`
	// SweepIntervalRaw is how often expired sessions and limiter entries are evicted (e.g. "5m").
	SweepIntervalRaw string `mapstructure:"SWEEP_INTERVAL"`
	// AuditQueueSize bounds the in-memory audit queue.
	AuditQueueSize int `mapstructure:"AUDIT_QUEUE_SIZE"`

	// OTLPEndpoint is the OTLP gRPC collector; empty disables export.
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	// OTLPInsecure forces plaintext to the collector.
	OTLPInsecure bool `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	// ServiceName is the OTel service.name resource attribute.
	ServiceName string `mapstructure:"OTEL_SERVICE_NAME"`

	// KafkaBrokers is a comma-separated list of brokers. When set, audit events are also published to Kafka.
	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// AuditKafkaTopic is the topic for audit events.
	AuditKafkaTopic string `mapstructure:"AUDIT_KAFKA_TOPIC"`
	// KafkaGroupID is the consumer group of the audit worker.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`
	// LokiURL is where the worker pushes audit events (e.g. http://localhost:3100).
	LokiURL string `mapstructure:"LOKI_URL"`

	// SeedAdminUsername and SeedAdminPassword are used by cmd/seed only.
	SeedAdminUsername string `mapstructure:"SEED_ADMIN_USERNAME"`
	SeedAdminPassword string `mapstructure:"SEED_ADMIN_PASSWORD"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("GRPC_ADDR", ":9090")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("APP_ENV", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("SESSION_TTL", "1h")
	v.SetDefault("REFRESH_TTL", "720h") // 30d
	v.SetDefault("SESSION_ENCRYPTION_KEY", "")
	v.SetDefault("COOKIE_SECURE", true)
	v.SetDefault("COOKIE_DOMAIN", "")
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("RATE_LIMIT_MAX_ATTEMPTS", 5)
	v.SetDefault("RATE_LIMIT_WINDOW", "60s")
	v.SetDefault("SWEEP_INTERVAL", "5m")
	v.SetDefault("AUDIT_QUEUE_SIZE", 1024)
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("OTEL_SERVICE_NAME", "session-gate")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("AUDIT_KAFKA_TOPIC", "session-audit")
	v.SetDefault("KAFKA_GROUP_ID", "session-audit-worker")
	v.SetDefault("LOKI_URL", "")
	v.SetDefault("SEED_ADMIN_USERNAME", "admin")
	v.SetDefault("SEED_ADMIN_PASSWORD", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}

	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}
	if cfg.RateLimitMaxAttempts < 0 {
		return nil, errors.New("config: RATE_LIMIT_MAX_ATTEMPTS must not be negative")
	}

	if cfg.IsProduction() {
		if cfg.SessionEncryptionKey == "" {
			return nil, errors.New("config: SESSION_ENCRYPTION_KEY must be set when APP_ENV=production")
		}
		if cfg.DatabaseURL == "" {
			return nil, errors.New("config: DATABASE_URL must be set when APP_ENV=production")
		}
		if !cfg.CookieSecure {
			return nil, errors.New("config: COOKIE_SECURE must not be false when APP_ENV=production")
		}
	}

	return &cfg, nil
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// SessionTTL parses SessionTTLRaw. Returns 1h if unset or invalid.
func (c *Config) SessionTTL() time.Duration {
	return parseDuration(c.SessionTTLRaw, time.Hour)
}

// RefreshTTL parses RefreshTTLRaw. Returns 720h if unset or invalid.
func (c *Config) RefreshTTL() time.Duration {
	return parseDuration(c.RefreshTTLRaw, 30*24*time.Hour)
}

// RateLimitWindow parses RateLimitWindowRaw. Returns 60s if unset or invalid.
func (c *Config) RateLimitWindow() time.Duration {
	return parseDuration(c.RateLimitWindowRaw, 60*time.Second)
}

// SweepInterval parses SweepIntervalRaw. Returns 5m if unset or invalid.
func (c *Config) SweepInterval() time.Duration {
	return parseDuration(c.SweepIntervalRaw, 5*time.Minute)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// KafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// An empty list means audit publishing is disabled.
func (c *Config) KafkaBrokersList() []string {
	if c == nil || c.KafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.KafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
