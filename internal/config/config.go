package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/rpattn/projectledger/internal/db"
	"github.com/rpattn/projectledger/internal/logging"
	"github.com/rpattn/projectledger/internal/persistence"
)

// Config represents the service configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database db.Config      `mapstructure:"database"`
	Search   SearchConfig   `mapstructure:"search"`
	Logging  logging.Config `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Search backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

type SearchConfig struct {
	Backend      string        `mapstructure:"backend"`
	IndexTimeout time.Duration `mapstructure:"index_timeout"`
	Redis        RedisConfig   `mapstructure:"redis"`
}

// RedisConfig represents the Redis search backend
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

// Validate checks the configuration for values the service cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.New("server.port must be between 1 and 65535")
	}
	switch c.Database.Driver {
	case db.DriverPostgres:
		if c.Database.Host == "" {
			return errors.New("database.host is required")
		}
		if c.Database.DBName == "" {
			return errors.New("database.dbname is required")
		}
	case db.DriverSQLite:
		if c.Database.Path == "" {
			return errors.New("database.path is required for sqlite")
		}
	default:
		return fmt.Errorf("database.driver must be one of: postgres, sqlite (got %q)", c.Database.Driver)
	}
	switch c.Search.Backend {
	case BackendMemory:
	case BackendRedis:
		if c.Search.Redis.Addr == "" {
			return errors.New("search.redis.addr is required")
		}
	default:
		return fmt.Errorf("search.backend must be one of: memory, redis (got %q)", c.Search.Backend)
	}
	if c.Search.IndexTimeout <= 0 {
		return errors.New("search.index_timeout must be positive")
	}
	if c.Metrics.Enabled && (c.Metrics.Port <= 0 || c.Metrics.Port > 65535) {
		return errors.New("metrics.port must be between 1 and 65535")
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	return nil
}

// DefaultConfig returns the configuration used when nothing overrides it.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			AllowedOrigins:  []string{"http://localhost:3000"},
		},
		Database: db.DefaultConfig(),
		Search: SearchConfig{
			Backend:      BackendMemory,
			IndexTimeout: persistence.DefaultIndexTimeout,
			Redis: RedisConfig{
				Addr:   "localhost:6379",
				Prefix: "projectledger",
			},
		},
		Logging: logging.Config{Level: "info", Format: "json"},
		Metrics: MetricsConfig{Enabled: true, Port: 9090, Path: "/metrics"},
	}
}
