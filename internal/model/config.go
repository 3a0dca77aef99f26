package model

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	defaultBaseURL       = "http://127.0.0.1:8000/api/v1"
	defaultBadgeInterval = 30
	defaultListInterval  = 10
)

// APIConfig holds settings for the backend REST client.
type APIConfig struct {
	// BaseURL is the API root, including the version prefix.
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// TimeoutSec bounds a single HTTP request.
	TimeoutSec int `mapstructure:"timeout_sec" yaml:"timeout_sec"`

	// MaxRetries is how many times a rate-limited request is retried.
	MaxRetries int `mapstructure:"max_retries" yaml:"max_retries"`
}

// PollingConfig holds the intervals of the two notification poll loops.
type PollingConfig struct {
	// BadgeIntervalSec is the period of the session-wide badge loop.
	BadgeIntervalSec int `mapstructure:"badge_interval_sec" yaml:"badge_interval_sec"`

	// ListIntervalSec is the period of the list loop that runs while the
	// notification screen is focused.
	ListIntervalSec int `mapstructure:"list_interval_sec" yaml:"list_interval_sec"`

	// FetchTimeoutSec bounds one poll tick.
	FetchTimeoutSec int `mapstructure:"fetch_timeout_sec" yaml:"fetch_timeout_sec"`
}

// LogConfig holds logging preferences.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	File  string `mapstructure:"file" yaml:"file"`
}

// CacheConfig holds the location of the local notification cache.
type CacheConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// MockConfig holds settings for the local backend stand-in.
type MockConfig struct {
	Addr      string `mapstructure:"addr" yaml:"addr"`
	JWTSecret string `mapstructure:"jwt_secret" yaml:"jwt_secret"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	API     APIConfig     `mapstructure:"api" yaml:"api"`
	Polling PollingConfig `mapstructure:"polling" yaml:"polling"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
	Cache   CacheConfig   `mapstructure:"cache" yaml:"cache"`
	Mock    MockConfig    `mapstructure:"mock" yaml:"mock"`
}

// BadgeInterval returns the badge loop period.
func (c PollingConfig) BadgeInterval() time.Duration {
	return secondsOr(c.BadgeIntervalSec, defaultBadgeInterval)
}

// ListInterval returns the list loop period.
func (c PollingConfig) ListInterval() time.Duration {
	return secondsOr(c.ListIntervalSec, defaultListInterval)
}

// FetchTimeout returns the per-tick fetch timeout.
func (c PollingConfig) FetchTimeout() time.Duration {
	return secondsOr(c.FetchTimeoutSec, 30)
}

// Timeout returns the per-request HTTP timeout.
func (c APIConfig) Timeout() time.Duration {
	return secondsOr(c.TimeoutSec, 10)
}

func secondsOr(sec, fallback int) time.Duration {
	if sec <= 0 {
		sec = fallback
	}
	return time.Duration(sec) * time.Second
}

// ConfigDir returns ~/.config/schoolportal, or the working directory when
// the home directory cannot be resolved.
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "schoolportal")
}

// DefaultConfigPath returns the default path for the configuration file.
func DefaultConfigPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	dir := ConfigDir()
	return &AppConfig{
		API: APIConfig{
			BaseURL:    defaultBaseURL,
			TimeoutSec: 10,
			MaxRetries: 3,
		},
		Polling: PollingConfig{
			BadgeIntervalSec: defaultBadgeInterval,
			ListIntervalSec:  defaultListInterval,
			FetchTimeoutSec:  30,
		},
		Log: LogConfig{
			Level: "info",
			File:  filepath.Join(dir, "portal.log"),
		},
		Cache: CacheConfig{
			Path: filepath.Join(dir, "cache.db"),
		},
		Mock: MockConfig{
			Addr:      ":8000",
			JWTSecret: "portal-mock-secret",
		},
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// Environment variables prefixed with SCHOOLPORTAL_ override file values
// (e.g. SCHOOLPORTAL_API_BASE_URL). A missing file yields the defaults.
func LoadConfig(path string) (*AppConfig, error) {
	def := defaultAppConfig()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetDefault("api.base_url", def.API.BaseURL)
	v.SetDefault("api.timeout_sec", def.API.TimeoutSec)
	v.SetDefault("api.max_retries", def.API.MaxRetries)
	v.SetDefault("polling.badge_interval_sec", def.Polling.BadgeIntervalSec)
	v.SetDefault("polling.list_interval_sec", def.Polling.ListIntervalSec)
	v.SetDefault("polling.fetch_timeout_sec", def.Polling.FetchTimeoutSec)
	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("log.file", def.Log.File)
	v.SetDefault("cache.path", def.Cache.Path)
	v.SetDefault("mock.addr", def.Mock.Addr)
	v.SetDefault("mock.jwt_secret", def.Mock.JWTSecret)

	v.SetEnvPrefix("SCHOOLPORTAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		var pathErr *os.PathError
		if !errors.As(err, &notFound) && !errors.As(err, &pathErr) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.API.BaseURL = strings.TrimRight(cfg.API.BaseURL, "/")
	if cfg.API.BaseURL == "" {
		cfg.API.BaseURL = defaultBaseURL
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
	v.Set("polling", cfg.Polling)
	v.Set("log", cfg.Log)
	v.Set("cache", cfg.Cache)
	v.Set("mock", cfg.Mock)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}

// Origin returns the scheme and host of the API base URL, used to resolve
// relative attachment paths. A base URL without scheme or host is returned
// unchanged.
func (c APIConfig) Origin() string {
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return c.BaseURL
	}
	return (&url.URL{Scheme: u.Scheme, Host: u.Host}).String()
}
