// Package config loads application configuration from config files and
// environment variables.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/labsense-server/internal/domain"
)

// Manager loads and holds the application configuration.
type Manager struct {
	config *domain.Config
}

// NewManager loads configuration from config.yaml and LABSENSE_* environment
// variables, with environment taking precedence.
func NewManager() (*Manager, error) {
	m := &Manager{}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return m, nil
}

func (m *Manager) loadConfig() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/labsense/")

	viper.SetEnvPrefix("LABSENSE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	m.setDefaults()

	// The config file is optional; defaults plus environment variables are
	// a complete configuration.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &domain.Config{}
	if err := viper.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.config = config
	return nil
}

func (m *Manager) setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.idle_timeout", "120s")
	viper.SetDefault("server.rate_limit", 10.0)
	viper.SetDefault("server.rate_burst", 20)

	// An empty database host disables Postgres persistence entirely; the
	// server then serves from the catalog source alone.
	viper.SetDefault("database.host", "")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.database", "labsense")
	viper.SetDefault("database.username", "postgres")
	viper.SetDefault("database.password", "")
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.max_conns", 25)
	viper.SetDefault("database.min_conns", 2)
	viper.SetDefault("database.conn_max_lifetime", "5m")
	viper.SetDefault("database.conn_max_idle_time", "10m")
	viper.SetDefault("database.migrations_path", "migrations")

	viper.SetDefault("catalog.source", "builtin")
	viper.SetDefault("catalog.sqlite_path", "data/catalog.db")
	viper.SetDefault("catalog.reload_interval", "0s")

	viper.SetDefault("cache.redis_url", "")
	viper.SetDefault("cache.default_ttl", "1h")
	viper.SetDefault("cache.memory_size", 1000)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
}

// GetConfig returns the complete configuration.
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// GetServerConfig returns the HTTP server configuration.
func (m *Manager) GetServerConfig() *domain.ServerConfig {
	return &m.config.Server
}

// GetDatabaseConfig returns the Postgres configuration.
func (m *Manager) GetDatabaseConfig() *domain.DatabaseConfig {
	return &m.config.Database
}

// GetCatalogConfig returns the catalog source configuration.
func (m *Manager) GetCatalogConfig() *domain.CatalogConfig {
	return &m.config.Catalog
}

// GetCacheConfig returns the cache configuration.
func (m *Manager) GetCacheConfig() *domain.CacheConfig {
	return &m.config.Cache
}

// GetLoggingConfig returns the logging configuration.
func (m *Manager) GetLoggingConfig() *domain.LoggingConfig {
	return &m.config.Logging
}

// Validate checks the loaded configuration for consistency.
func (m *Manager) Validate() error {
	cfg := m.config

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", cfg.Server.Port)
	}
	if cfg.Server.RateLimit <= 0 {
		return fmt.Errorf("server rate limit must be positive: %f", cfg.Server.RateLimit)
	}
	if cfg.Server.RateBurst <= 0 {
		return fmt.Errorf("server rate burst must be positive: %d", cfg.Server.RateBurst)
	}

	switch cfg.Catalog.Source {
	case "builtin":
	case "sqlite":
		if cfg.Catalog.SQLitePath == "" {
			return fmt.Errorf("catalog source %q requires catalog.sqlite_path", cfg.Catalog.Source)
		}
	case "postgres":
		if cfg.Database.Host == "" {
			return fmt.Errorf("catalog source %q requires database configuration", cfg.Catalog.Source)
		}
		if cfg.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
	default:
		return fmt.Errorf("unknown catalog source: %q", cfg.Catalog.Source)
	}

	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown logging level: %q", cfg.Logging.Level)
	}
	switch cfg.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("unknown logging format: %q", cfg.Logging.Format)
	}

	return nil
}
