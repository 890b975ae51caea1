package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all service configuration
type Config struct {
	Service  ServiceConfig
	Store    StoreConfig
	Media    MediaConfig
	Naming   NamingConfig
	Score    ScoreConfig
	Pace     PaceConfig
	Security SecurityConfig
}

// ServiceConfig holds service-specific settings
type ServiceConfig struct {
	Name        string
	Port        int
	Environment string
	LogLevel    string
	LogFormat   string
}

// StoreConfig selects and configures the document store backend
type StoreConfig struct {
	// Backend is "redis", "postgres", or "memory"
	Backend  string
	Redis    RedisConfig
	Postgres PostgresConfig
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// PostgresConfig holds Postgres connection settings
type PostgresConfig struct {
	Host        string
	Port        int
	Database    string
	User        string
	Password    string
	MaxConns    int
	MinConns    int
	MaxIdleTime time.Duration
	MaxLifetime time.Duration
}

// MediaConfig holds blob store settings
type MediaConfig struct {
	// Root is the directory content-addressed blobs are stored under
	Root string
}

// NamingConfig holds the rename throttle policy
type NamingConfig struct {
	MaxRenames        int
	MinRenameInterval time.Duration
}

// ScoreConfig holds ranking decay settings
type ScoreConfig struct {
	HalfLife time.Duration
}

// PaceConfig holds admission pacing and rate limiting settings
type PaceConfig struct {
	// Delay is applied before admitting each mutating request
	Delay time.Duration
	// MutationLimit is the per-member fixed-window cap on mutating requests
	MutationLimit int64
	// WindowSec is the fixed window length in seconds
	WindowSec int
}

// SecurityConfig holds credential settings
type SecurityConfig struct {
	// PasswordSecret keys the HMAC used for password hashes. Required.
	PasswordSecret string
}

// Load loads configuration from environment variables
func Load(serviceName string) (*Config, error) {
	cfg := &Config{
		Service: ServiceConfig{
			Name:        serviceName,
			Port:        getEnvInt("PORT", 8080),
			Environment: getEnv("ENVIRONMENT", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
			LogFormat:   getEnv("LOG_FORMAT", "text"),
		},
		Store: StoreConfig{
			Backend: getEnv("STORE_BACKEND", "redis"),
			Redis: RedisConfig{
				Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
				Password: getEnv("REDIS_PASSWORD", ""),
				DB:       getEnvInt("REDIS_DB", 0),
			},
			Postgres: PostgresConfig{
				Host:        getEnv("POSTGRES_HOST", "localhost"),
				Port:        getEnvInt("POSTGRES_PORT", 5432),
				Database:    getEnv("POSTGRES_DB", "gallery"),
				User:        getEnv("POSTGRES_USER", "gallery"),
				Password:    getEnv("POSTGRES_PASSWORD", "gallery"),
				MaxConns:    getEnvInt("POSTGRES_MAX_CONNS", 50),
				MinConns:    getEnvInt("POSTGRES_MIN_CONNS", 10),
				MaxIdleTime: getEnvDuration("POSTGRES_MAX_IDLE_TIME", 30*time.Minute),
				MaxLifetime: getEnvDuration("POSTGRES_MAX_LIFETIME", 1*time.Hour),
			},
		},
		Media: MediaConfig{
			Root: getEnv("MEDIA_ROOT", "db/media"),
		},
		Naming: NamingConfig{
			MaxRenames:        getEnvInt("NAMING_MAX_RENAMES", 50),
			MinRenameInterval: getEnvDuration("NAMING_MIN_RENAME_INTERVAL", 1*time.Hour),
		},
		Score: ScoreConfig{
			HalfLife: getEnvDuration("SCORE_HALF_LIFE", 30*24*time.Hour),
		},
		Pace: PaceConfig{
			Delay:         getEnvDuration("PACE_DELAY", 1*time.Second),
			MutationLimit: int64(getEnvInt("PACE_MUTATION_LIMIT", 30)),
			WindowSec:     getEnvInt("PACE_WINDOW_SEC", 60),
		},
		Security: SecurityConfig{
			PasswordSecret: os.Getenv("PASSWORD_SECRET"),
		},
	}

	return cfg, cfg.Validate()
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.Service.Port < 1 || c.Service.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Service.Port)
	}

	switch c.Store.Backend {
	case "redis", "postgres", "memory":
	default:
		return fmt.Errorf("unknown store backend: %s", c.Store.Backend)
	}

	if c.Media.Root == "" {
		return fmt.Errorf("media root is required")
	}

	if c.Naming.MaxRenames < 0 {
		return fmt.Errorf("max renames must be >= 0")
	}

	if c.Score.HalfLife <= 0 {
		return fmt.Errorf("score half-life must be positive")
	}

	if c.Security.PasswordSecret == "" {
		return fmt.Errorf("please set environment variable: export PASSWORD_SECRET=theSecretValue")
	}

	return nil
}

// PostgresURL returns the PostgreSQL connection string
func (c *Config) PostgresURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.Store.Postgres.User,
		c.Store.Postgres.Password,
		c.Store.Postgres.Host,
		c.Store.Postgres.Port,
		c.Store.Postgres.Database,
	)
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
