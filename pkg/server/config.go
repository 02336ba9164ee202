package server

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml"
)

// Config contains the file server configuration.
type Config struct {
	// Network address to listen on (e.g. ":2049")
	ListenAddress string `toml:"listen_address"`

	// Directory exported to clients
	ExportPath string `toml:"export_path"`

	// Maximum concurrent requests
	MaxConcurrent int `toml:"max_concurrent"`

	// Maximum read size in bytes
	MaxReadSize int `toml:"max_read_size"`

	// Maximum accepted connections, zero for no limit
	MaxConnections int `toml:"max_connections"`

	// Request timeout in seconds, zero for none
	RequestTimeout int `toml:"request_timeout"`

	// Enable root squashing (map root to anonymous user)
	EnableRootSquash bool `toml:"enable_root_squash"`

	// Anonymous user ID
	AnonUID uint32 `toml:"anon_uid"`

	// Anonymous group ID
	AnonGID uint32 `toml:"anon_gid"`

	// Address of the Prometheus endpoint, empty to disable it
	MetricsAddress string `toml:"metrics_address"`

	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		ListenAddress:    ":2049",
		MaxConcurrent:    100,
		MaxReadSize:      1024 * 1024, // 1MB
		MaxConnections:   256,
		RequestTimeout:   30,
		EnableRootSquash: true,
		AnonUID:          65534, // nobody
		AnonGID:          65534, // nogroup
		LogLevel:         "info",
		LogFormat:        "text",
	}
}

// LoadConfig reads a TOML file on top of DefaultConfig.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks the configuration for values the server cannot run with.
func (c *Config) Validate() error {
	if c.MaxConcurrent <= 0 {
		return fmt.Errorf("max_concurrent must be positive, got %d", c.MaxConcurrent)
	}
	if c.MaxReadSize <= 0 {
		return fmt.Errorf("max_read_size must be positive, got %d", c.MaxReadSize)
	}
	if c.MaxConnections < 0 {
		return fmt.Errorf("max_connections must not be negative, got %d", c.MaxConnections)
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("request_timeout must not be negative, got %d", c.RequestTimeout)
	}
	return nil
}

func (c *Config) requestTimeout() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Second
}
