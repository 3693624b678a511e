// Package server exposes the registry over HTTP: form building and reading,
// view revision management, and the submission lifecycle.
package server

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the HTTP server configuration.
type Config struct {
	// ListenAddr is the host:port the server binds to.
	ListenAddr string `yaml:"listen_addr"`

	// Database selects the backing store.
	Database DatabaseConfig `yaml:"database"`

	// CORS lists the allowed origins; empty means same-origin only.
	CORS CORSConfig `yaml:"cors"`
}

// DatabaseConfig selects the database driver and its DSN.
type DatabaseConfig struct {
	// Type is one of postgres, mysql, sqlite.
	Type string `yaml:"type"`
	// DSN is the driver connection string. For sqlite it is the file path,
	// or ":memory:" for an in-memory database.
	DSN string `yaml:"dsn"`
}

// CORSConfig configures cross-origin access for browser clients.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// LoadConfig loads server configuration from a YAML file. If the file does
// not exist, default configuration is returned.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("read server config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse server config: %w", err)
	}
	return cfg, nil
}

// DefaultConfig returns the default server configuration.
func DefaultConfig() *Config {
	return &Config{
		ListenAddr: ":8080",
		Database: DatabaseConfig{
			Type: "sqlite",
			DSN:  "registry.db",
		},
	}
}
