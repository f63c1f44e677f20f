package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/dyagdi/PriceLess/internal/storage"
	pkgconfig "github.com/dyagdi/PriceLess/pkg/config"
	"github.com/dyagdi/PriceLess/pkg/database"
	"github.com/dyagdi/PriceLess/pkg/tracing"
)

// Config holds all configuration for the storefront service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`

	// HTTP server
	HTTPPort           int      `env:"STOREFRONT_HTTP_PORT" envDefault:"8010"`
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
	HealthCheckTimeout int      `env:"HEALTH_CHECK_TIMEOUT_SECONDS" envDefault:"5" validate:"gte=1,lte=60"`

	// Storage
	StorageDriver      string `env:"STORAGE_DRIVER" envDefault:"memory"`
	FavoritesKeyPrefix string `env:"FAVORITES_KEY_PREFIX" envDefault:"storefront:"`
	FavoritesTTLHours  int    `env:"FAVORITES_TTL_HOURS" envDefault:"0" validate:"gte=0"`
	FavoritesStableIDs bool   `env:"FAVORITES_STABLE_IDS" envDefault:"false"`

	// Sessions
	SessionIdleTTLMinutes int `env:"SESSION_IDLE_TTL_MINUTES" envDefault:"30"`

	// Redis
	RedisAddr string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPass string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB   int    `env:"REDIS_DB" envDefault:"0"`

	// PostgreSQL
	PostgresHost     string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort     int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser     string `env:"POSTGRES_USER" envDefault:"priceless"`
	PostgresPassword string `env:"POSTGRES_PASSWORD" envDefault:"priceless"`
	PostgresDB       string `env:"POSTGRES_DB" envDefault:"priceless"`
	PostgresSSLMode  string `env:"POSTGRES_SSLMODE" envDefault:"disable"`

	// SQLite
	SQLitePath string `env:"SQLITE_PATH" envDefault:"priceless.db"`

	// Kafka
	EventsEnabled bool     `env:"EVENTS_ENABLED" envDefault:"false"`
	KafkaBrokers  []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	Tracing tracing.Config
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load storefront config: %w", err)
	}
	if cfg.Tracing.ServiceName == "" {
		cfg.Tracing.ServiceName = "storefront"
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if !storage.ValidDriver(c.StorageDriver) {
		return fmt.Errorf("invalid STORAGE_DRIVER %q: want memory, redis, postgres or sqlite", c.StorageDriver)
	}
	if c.SessionIdleTTLMinutes < 1 {
		return fmt.Errorf("SESSION_IDLE_TTL_MINUTES must be positive, got %d", c.SessionIdleTTLMinutes)
	}
	if c.FavoritesKeyPrefix == "" {
		return fmt.Errorf("FAVORITES_KEY_PREFIX is required")
	}
	if c.StorageDriver == storage.DriverSQLite && strings.TrimSpace(c.SQLitePath) == "" {
		return fmt.Errorf("SQLITE_PATH is required for the sqlite driver")
	}
	if c.EventsEnabled && len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required when EVENTS_ENABLED is set")
	}
	return nil
}

// SessionIdleTTL returns the idle expiry of a session.
func (c *Config) SessionIdleTTL() time.Duration {
	return time.Duration(c.SessionIdleTTLMinutes) * time.Minute
}

// ReadinessTimeout bounds one run of the readiness checks.
func (c *Config) ReadinessTimeout() time.Duration {
	return time.Duration(c.HealthCheckTimeout) * time.Second
}

// FavoritesTTL returns how long a Redis favorites record lives; zero keeps it
// forever.
func (c *Config) FavoritesTTL() time.Duration {
	return time.Duration(c.FavoritesTTLHours) * time.Hour
}

// Postgres builds the pool configuration from the POSTGRES_* settings.
func (c *Config) Postgres() *database.PostgresConfig {
	pg := database.DefaultPostgresConfig()
	pg.Host = c.PostgresHost
	pg.Port = c.PostgresPort
	pg.User = c.PostgresUser
	pg.Password = c.PostgresPassword
	pg.DBName = c.PostgresDB
	pg.SSLMode = c.PostgresSSLMode
	return &pg
}

// Redis builds the client configuration from the REDIS_* settings.
func (c *Config) Redis() database.RedisConfig {
	return database.RedisConfig{
		Addr:         c.RedisAddr,
		Password:     c.RedisPass,
		DB:           c.RedisDB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}
