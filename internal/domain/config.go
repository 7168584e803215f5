package domain

import (
	"time"
)

// Config is the main application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Catalog  CatalogConfig  `mapstructure:"catalog"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig is the HTTP server configuration.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	RateLimit    float64       `mapstructure:"rate_limit"` // requests per second per client
	RateBurst    int           `mapstructure:"rate_burst"`
}

// DatabaseConfig is the Postgres connection configuration.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Database        string        `mapstructure:"database"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// CatalogConfig selects and tunes the catalog source.
type CatalogConfig struct {
	// Source is one of "builtin", "sqlite", "postgres".
	Source string `mapstructure:"source"`
	// SQLitePath is the catalog database path when Source is "sqlite".
	SQLitePath string `mapstructure:"sqlite_path"`
	// ReloadInterval, when positive, triggers periodic snapshot reloads.
	ReloadInterval time.Duration `mapstructure:"reload_interval"`
}

// CacheConfig configures the signal-bundle caches.
type CacheConfig struct {
	// RedisURL enables the distributed cache when non-empty.
	RedisURL   string        `mapstructure:"redis_url"`
	DefaultTTL time.Duration `mapstructure:"default_ttl"`
	// MemorySize is the entry capacity of the in-process LRU.
	MemorySize int `mapstructure:"memory_size"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or text
}
