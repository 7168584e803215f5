// This file contains the lightweight configuration for standalone MCP
// operation, which needs no config file and no external databases.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// LiteConfig is a simplified configuration for the standalone MCP server.
type LiteConfig struct {
	// Data storage
	DataDir     string // Base directory for data files
	CatalogPath string // Optional SQLite catalog; empty means the builtin catalog

	// Cache settings
	CacheMaxItems int           // Maximum items in memory cache
	CacheTTL      time.Duration // Default cache TTL

	// Logging
	LogLevel  string // Log level: debug, info, warn, error
	LogFormat string // Log format: json, text
}

// DefaultLiteConfig returns a configuration with sensible defaults.
func DefaultLiteConfig() *LiteConfig {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".labsense")

	return &LiteConfig{
		DataDir:       dataDir,
		CacheMaxItems: 1000,
		CacheTTL:      time.Hour,
		LogLevel:      "info",
		LogFormat:     "json",
	}
}

// LoadLiteConfig loads configuration from environment variables, falling
// back to defaults where unset.
func LoadLiteConfig() *LiteConfig {
	cfg := DefaultLiteConfig()

	if v := os.Getenv("LABSENSE_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("LABSENSE_CATALOG_PATH"); v != "" {
		cfg.CatalogPath = v
	}

	if v := os.Getenv("LABSENSE_CACHE_MAX_ITEMS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.CacheMaxItems = n
		}
	}
	if v := os.Getenv("LABSENSE_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.CacheTTL = d
		}
	}

	if v := os.Getenv("LABSENSE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("LABSENSE_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}

	return cfg
}

// EnsureDataDir creates the data directory if it does not exist.
func (c *LiteConfig) EnsureDataDir() error {
	return os.MkdirAll(c.DataDir, 0755)
}

// FeedbackDBPath returns the path of the SQLite feedback database.
func (c *LiteConfig) FeedbackDBPath() string {
	return filepath.Join(c.DataDir, "feedback.db")
}
