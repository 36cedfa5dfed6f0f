// Package config resolves console configuration from the environment with
// fixed local defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all console configuration.
type Config struct {
	// Endpoints
	APIURL string // REST base URL
	WSURL  string // push-stream endpoint (ws:// or wss://)

	// Behavior
	StatusInterval time.Duration // status snapshot refresh period
	ReconnectDelay time.Duration // fixed wait between stream reconnects
	LogRetention   int           // most-recent log entries kept in memory

	// Session
	SessionPath string // SQLite file holding the bearer token

	// Logging
	LogLevel string // debug, info, warn, error
}

// Defaults.
const (
	DefaultAPIURL         = "http://localhost:8000"
	DefaultWSURL          = "ws://localhost:8000/ws"
	DefaultStatusInterval = 30 * time.Second
	DefaultReconnectDelay = 5 * time.Second
	DefaultLogRetention   = 100
)

// Load resolves configuration from NEBULA_* environment variables, falling
// back to local defaults.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("nebula")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("api_url", DefaultAPIURL)
	v.SetDefault("ws_url", DefaultWSURL)
	v.SetDefault("status_interval", DefaultStatusInterval)
	v.SetDefault("reconnect_delay", DefaultReconnectDelay)
	v.SetDefault("log_retention", DefaultLogRetention)
	v.SetDefault("log_level", "info")
	v.SetDefault("session_path", defaultSessionPath())

	cfg := &Config{
		APIURL:         v.GetString("api_url"),
		WSURL:          v.GetString("ws_url"),
		StatusInterval: v.GetDuration("status_interval"),
		ReconnectDelay: v.GetDuration("reconnect_delay"),
		LogRetention:   v.GetInt("log_retention"),
		SessionPath:    v.GetString("session_path"),
		LogLevel:       v.GetString("log_level"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.APIURL == "" {
		return errors.New("API URL is required")
	}
	if c.WSURL == "" {
		return errors.New("stream URL is required")
	}
	if !strings.HasPrefix(c.WSURL, "ws://") && !strings.HasPrefix(c.WSURL, "wss://") {
		return fmt.Errorf("stream URL must be ws:// or wss://, got %q", c.WSURL)
	}
	if c.StatusInterval < time.Second {
		return errors.New("status interval must be at least 1 second")
	}
	if c.ReconnectDelay < time.Second {
		return errors.New("reconnect delay must be at least 1 second")
	}
	if c.LogRetention <= 0 {
		return errors.New("log retention must be positive")
	}
	return nil
}

// defaultSessionPath places the session database under the user config
// directory, falling back to the working directory.
func defaultSessionPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "nebula-session.db"
	}
	return filepath.Join(dir, "nebula-console", "session.db")
}
