// Package config reads the premium services' settings from the environment,
// after loading a .env file when one is present.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every setting of the CLI, API and worker.
type Config struct {
	// Application
	AppEnv    string
	LogLevel  string
	LogFormat string

	// Database
	DatabaseURL      string
	DatabaseDriver   string
	SQLitePath       string
	DatabaseMaxConns int

	// Redis
	RedisURL string
	// OwnerCacheTTL is how long a tenant owner lookup is reused. Zero
	// disables the cache.
	OwnerCacheTTL time.Duration

	// RabbitMQ
	RabbitMQURL   string
	PurchaseQueue string

	// Outbox
	OutboxEnabled      bool
	OutboxPollInterval time.Duration
	OutboxMaxRetries   int
	OutboxRetention    time.Duration

	// Discord
	DiscordAPIURL        string
	DiscordBotToken      string
	OwnerLookupTimeout   time.Duration
	OwnerBreakerFailures int
	OwnerBreakerTimeout  time.Duration
	StaticGuildOwners    string

	// Licensing
	SweepInterval    time.Duration
	LicenseKeyPrefix string
	NotifyTimeout    time.Duration

	// API
	APIAddr                 string
	APIAdminToken           string
	ActivationRatePerMinute int
	ActivationBurst         int

	// Worker
	WorkerHealthAddr string
}

// Load reads the environment. Unset variables take their defaults; a set
// but malformed variable is an error naming it.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var e env
	cfg := &Config{
		AppEnv:    e.str("APP_ENV", "development"),
		LogLevel:  e.str("LOG_LEVEL", "info"),
		LogFormat: e.str("LOG_FORMAT", "json"),

		DatabaseURL:      e.str("DATABASE_URL", ""),
		SQLitePath:       e.str("SQLITE_PATH", defaultSQLitePath()),
		DatabaseMaxConns: e.positive("DATABASE_MAX_CONNS", 10),

		RedisURL:      e.str("REDIS_URL", ""),
		OwnerCacheTTL: e.duration("OWNER_CACHE_TTL", 5*time.Minute),

		RabbitMQURL:   e.str("RABBITMQ_URL", ""),
		PurchaseQueue: e.str("PURCHASE_QUEUE", "premium.purchases"),

		OutboxPollInterval: e.duration("OUTBOX_POLL_INTERVAL", time.Second),
		OutboxMaxRetries:   e.positive("OUTBOX_MAX_RETRIES", 5),
		OutboxRetention:    e.duration("OUTBOX_RETENTION", 7*24*time.Hour),

		DiscordAPIURL:        e.str("DISCORD_API_URL", "https://discord.com/api/v10"),
		DiscordBotToken:      e.str("DISCORD_BOT_TOKEN", ""),
		OwnerLookupTimeout:   e.duration("OWNER_LOOKUP_TIMEOUT", 5*time.Second),
		OwnerBreakerFailures: e.positive("OWNER_BREAKER_FAILURES", 5),
		OwnerBreakerTimeout:  e.duration("OWNER_BREAKER_TIMEOUT", 30*time.Second),
		StaticGuildOwners:    e.str("STATIC_GUILD_OWNERS", ""),

		SweepInterval:    e.duration("SWEEP_INTERVAL", time.Hour),
		LicenseKeyPrefix: e.str("LICENSE_KEY_PREFIX", "LYCE"),
		NotifyTimeout:    e.duration("NOTIFY_TIMEOUT", 10*time.Second),

		APIAddr:                 e.str("API_ADDR", "0.0.0.0:8080"),
		APIAdminToken:           e.str("API_ADMIN_TOKEN", ""),
		ActivationRatePerMinute: e.positive("ACTIVATION_RATE_PER_MINUTE", 5),
		ActivationBurst:         e.positive("ACTIVATION_BURST", 3),

		WorkerHealthAddr: e.str("WORKER_HEALTH_ADDR", "0.0.0.0:8081"),
	}
	// A configured broker routes events through the outbox unless told otherwise.
	cfg.OutboxEnabled = e.boolean("OUTBOX_ENABLED", cfg.RabbitMQURL != "")

	cfg.DatabaseDriver = "sqlite"
	if cfg.DatabaseURL != "" {
		cfg.DatabaseDriver = "postgres"
	}

	if err := errors.Join(e.errs...); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// IsDevelopment reports APP_ENV=development.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction reports APP_ENV=production.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// UsesSQLite reports whether the local SQLite store is selected.
func (c *Config) UsesSQLite() bool {
	return c.DatabaseDriver == "sqlite"
}

// env reads typed variables and collects the parse failures.
type env struct {
	errs []error
}

func (e *env) str(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func (e *env) parse(key string, parse func(string) error) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	if err := parse(v); err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s=%q: %w", key, v, err))
	}
}

func (e *env) positive(key string, def int) int {
	n := def
	e.parse(key, func(v string) error {
		i, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		if i <= 0 {
			return errors.New("must be positive")
		}
		n = i
		return nil
	})
	return n
}

func (e *env) duration(key string, def time.Duration) time.Duration {
	d := def
	e.parse(key, func(v string) error {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		if parsed < 0 {
			return errors.New("must not be negative")
		}
		d = parsed
		return nil
	})
	return d
}

func (e *env) boolean(key string, def bool) bool {
	b := def
	e.parse(key, func(v string) error {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		b = parsed
		return nil
	})
	return b
}

func defaultSQLitePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "premium.db"
	}
	return filepath.Join(home, ".lyce", "premium.db")
}
