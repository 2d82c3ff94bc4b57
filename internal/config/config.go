// Package config loads the service configuration from TOML and the environment.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of environment variables that override file settings.
const EnvPrefix = "IFLAB_"

// Config is the top level service configuration.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	SQLite        SQLiteConfig        `koanf:"sqlite"`
	Alerts        AlertsConfig        `koanf:"alerts"`
	Notifications NotificationsConfig `koanf:"notifications"`
	Logging       LoggingConfig       `koanf:"logging"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Address         string        `koanf:"address"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// SQLiteConfig holds the database location.
type SQLiteConfig struct {
	Path string `koanf:"path"`
}

// AlertsConfig tunes rule evaluation and status detection.
type AlertsConfig struct {
	Enabled             bool          `koanf:"enabled"`
	EvaluationInterval  time.Duration `koanf:"evaluation_interval"`
	StatusInterval      time.Duration `koanf:"status_interval"`
	OfflineAfter        time.Duration `koanf:"offline_after"`
	Workers             int           `koanf:"workers"`
	NeverSeenOffline    bool          `koanf:"never_seen_offline"`
	NotifyOnResolve     bool          `koanf:"notify_on_resolve"`
	NotificationTimeout time.Duration `koanf:"notification_timeout"`
	WebhookURLs         []string      `koanf:"webhook_urls"`
	WebhookSkipTLS      bool          `koanf:"webhook_skip_tls_verify"`
}

// NotificationsConfig configures the live-push channel.
type NotificationsConfig struct {
	NATSURL       string `koanf:"nats_url"`
	SubjectPrefix string `koanf:"subject_prefix"`
}

// LoggingConfig controls log verbosity and destination.
type LoggingConfig struct {
	Level  string `koanf:"level"`  // debug, info, warn, error
	Format string `koanf:"format"` // text, json
	File   string `koanf:"file"`   // optional rotating log file
}

// Default returns the configuration used when no file or environment overrides exist.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Address:         ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		SQLite: SQLiteConfig{
			Path: "iflab.db",
		},
		Alerts: AlertsConfig{
			Enabled:             true,
			EvaluationInterval:  time.Minute,
			StatusInterval:      5 * time.Minute,
			OfflineAfter:        5 * time.Minute,
			Workers:             4,
			NeverSeenOffline:    true,
			NotifyOnResolve:     false,
			NotificationTimeout: 5 * time.Second,
		},
		Notifications: NotificationsConfig{
			SubjectPrefix: "notifications",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the TOML file at path (when it exists) and applies IFLAB_* environment
// overrides on top of the defaults.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
				return nil, fmt.Errorf("failed to load config file: %w", err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
	}

	// IFLAB_ALERTS_WORKERS -> alerts.workers
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return envToKey(strings.TrimPrefix(s, EnvPrefix))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	if c.SQLite.Path == "" {
		return fmt.Errorf("sqlite.path is required")
	}
	if c.Alerts.Workers < 0 {
		return fmt.Errorf("alerts.workers must not be negative")
	}
	if c.Alerts.OfflineAfter < 0 {
		return fmt.Errorf("alerts.offline_after must not be negative")
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}
	return nil
}

// envToKey maps an environment suffix to a config key. The first underscore
// separates the section, the rest are kept so multi-word keys survive:
// ALERTS_EVALUATION_INTERVAL -> alerts.evaluation_interval.
func envToKey(s string) string {
	s = strings.ToLower(s)
	section, rest, found := strings.Cut(s, "_")
	if !found {
		return section
	}
	return section + "." + rest
}
