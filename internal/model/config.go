package model

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Storage backend names accepted by storage.backend.
const (
	StorageKeyring = "keyring"
	StorageSQLite  = "sqlite"
	StorageMemory  = "memory"
)

// APIConfig holds the settings for talking to the TimeGrave backend.
type APIConfig struct {
	// BaseURL is the root URL of the backend. Empty selects the in-process
	// mock backend.
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// TimeoutMS bounds every request, in milliseconds.
	TimeoutMS int `mapstructure:"timeout_ms" yaml:"timeout_ms"`

	// ShareBaseURL is the public origin used to build capsule share links.
	ShareBaseURL string `mapstructure:"share_base_url" yaml:"share_base_url"`
}

// Timeout returns TimeoutMS as a duration.
func (c APIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// StorageConfig selects where the session token is persisted.
type StorageConfig struct {
	Backend string `mapstructure:"backend" yaml:"backend"`

	// Path is the keyring file directory or the sqlite database file,
	// depending on Backend.
	Path string `mapstructure:"path" yaml:"path"`
}

// LogConfig holds logging preferences.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
}

// NotifyConfig controls the notification watcher.
type NotifyConfig struct {
	IntervalSec int `mapstructure:"interval_sec" yaml:"interval_sec"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	API     APIConfig     `mapstructure:"api" yaml:"api"`
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
	Notify  NotifyConfig  `mapstructure:"notify" yaml:"notify"`
}

// configDir returns ~/.config/timegrave, or the working directory when the
// home directory cannot be resolved.
func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "timegrave")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/timegrave/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

// DefaultAppConfig returns a sensible default configuration.
func DefaultAppConfig() *AppConfig {
	return &AppConfig{
		API: APIConfig{
			TimeoutMS: 30000,
		},
		Storage: StorageConfig{
			Backend: StorageKeyring,
			Path:    filepath.Join(configDir(), "credentials"),
		},
		Log: LogConfig{
			Level: "info",
		},
		Notify: NotifyConfig{
			IntervalSec: 60,
		},
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// Environment variables prefixed with TIMEGRAVE_ override file values, and
// TIMEGRAVE_API_URL overrides api.base_url. A missing file yields defaults.
func LoadConfig(path string) (*AppConfig, error) {
	defaults := DefaultAppConfig()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix("TIMEGRAVE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("api.base_url", "TIMEGRAVE_API_URL", "TIMEGRAVE_API_BASE_URL"); err != nil {
		return nil, fmt.Errorf("binding env: %w", err)
	}

	// Set defaults so missing keys resolve to sensible values.
	v.SetDefault("api.base_url", defaults.API.BaseURL)
	v.SetDefault("api.timeout_ms", defaults.API.TimeoutMS)
	v.SetDefault("api.share_base_url", defaults.API.ShareBaseURL)
	v.SetDefault("storage.backend", defaults.Storage.Backend)
	v.SetDefault("storage.path", defaults.Storage.Path)
	v.SetDefault("log.level", defaults.Log.Level)
	v.SetDefault("notify.interval_sec", defaults.Notify.IntervalSec)

	if err := v.ReadInConfig(); err != nil {
		_, isPathErr := err.(*os.PathError)
		_, isNotFound := err.(viper.ConfigFileNotFoundError)
		if !isPathErr && !isNotFound {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := DefaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.API.TimeoutMS <= 0 {
		cfg.API.TimeoutMS = defaults.API.TimeoutMS
	}
	if cfg.Notify.IntervalSec <= 0 {
		cfg.Notify.IntervalSec = defaults.Notify.IntervalSec
	}
	cfg.API.BaseURL = strings.TrimRight(cfg.API.BaseURL, "/")

	switch cfg.Storage.Backend {
	case StorageKeyring, StorageSQLite, StorageMemory:
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("api", cfg.API)
	v.Set("storage", cfg.Storage)
	v.Set("log", cfg.Log)
	v.Set("notify", cfg.Notify)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
