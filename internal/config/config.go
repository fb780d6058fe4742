// Package config loads console configuration from defaults, an optional
// YAML file, a .env file, and CHAMPDESK_* environment variables, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds every runtime setting of the console.
type Config struct {
	// DBPath is the local mirror SQLite file.
	DBPath string `mapstructure:"db_path"`

	// RemoteURL is the hosted database URL (libsql://... or file:...).
	// Empty means the console runs mirror-only.
	RemoteURL string `mapstructure:"remote_url"`

	// AuthToken authenticates against the hosted database.
	AuthToken string `mapstructure:"auth_token"`

	// SyncInterval is the periodic reconciliation cadence.
	SyncInterval time.Duration `mapstructure:"sync_interval"`

	// ProbeInterval is the connectivity check cadence.
	ProbeInterval time.Duration `mapstructure:"probe_interval"`

	// ProbeAddr is the host:port dialed to detect connectivity.
	ProbeAddr string `mapstructure:"probe_addr"`

	// DashboardPort serves the status console. 0 disables it.
	DashboardPort int `mapstructure:"dashboard_port"`

	// PreferOffline makes reads serve the mirror even while online.
	PreferOffline bool `mapstructure:"prefer_offline"`

	// AutoSync pushes writes to the remote immediately when online.
	AutoSync bool `mapstructure:"auto_sync"`

	// LogFile receives daemon logs. Empty logs to stderr.
	LogFile string `mapstructure:"log_file"`

	// BackoffBase is the first retry delay for failing records.
	BackoffBase time.Duration `mapstructure:"backoff_base"`

	// BackoffMax caps the retry delay.
	BackoffMax time.Duration `mapstructure:"backoff_max"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("db_path", defaultDBPath())
	v.SetDefault("remote_url", "")
	v.SetDefault("auth_token", "")
	v.SetDefault("sync_interval", 30*time.Second)
	v.SetDefault("probe_interval", 5*time.Second)
	v.SetDefault("probe_addr", "1.1.1.1:443")
	v.SetDefault("dashboard_port", 8380)
	v.SetDefault("prefer_offline", false)
	v.SetDefault("auto_sync", true)
	v.SetDefault("log_file", "")
	v.SetDefault("backoff_base", 30*time.Second)
	v.SetDefault("backoff_max", 15*time.Minute)
}

// Load reads configuration. If file is non-empty it must exist and parse;
// otherwise champdesk.yaml is read from the working directory when
// present. A .env file in the working directory is loaded first so the
// environment overrides have somewhere convenient to live.
func Load(file string) (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return nil, fmt.Errorf("failed to load .env: %w", err)
		}
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("CHAMPDESK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", file, err)
		}
	} else {
		v.SetConfigName("champdesk")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the runtime cannot work with.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("db_path must not be empty")
	}
	if c.SyncInterval <= 0 {
		return fmt.Errorf("sync_interval must be positive, got %s", c.SyncInterval)
	}
	if c.ProbeInterval <= 0 {
		return fmt.Errorf("probe_interval must be positive, got %s", c.ProbeInterval)
	}
	if c.BackoffBase <= 0 || c.BackoffMax < c.BackoffBase {
		return fmt.Errorf("backoff range %s..%s is invalid", c.BackoffBase, c.BackoffMax)
	}
	if c.DashboardPort < 0 || c.DashboardPort > 65535 {
		return fmt.Errorf("dashboard_port %d out of range", c.DashboardPort)
	}
	return nil
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "champdesk.db"
	}
	return filepath.Join(home, ".champdesk", "mirror.db")
}
