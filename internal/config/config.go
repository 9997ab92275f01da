package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config holds the dashboard service configuration
type Config struct {
	ListenAddr   string `toml:"listen_addr"`
	BackendURL   string `toml:"backend_url"`
	BackendWSURL string `toml:"backend_ws_url"`
	StaticDir    string `toml:"static_dir"`

	// Cookie policy: secure + SameSite=None for cross-site production
	// deployments, SameSite=Lax otherwise.
	CookieSecure   bool   `toml:"cookie_secure"`
	CookieSameSite string `toml:"cookie_same_site"`

	SessionIdleMinutes   int `toml:"session_idle_minutes"`
	ChannelRetryAttempts int `toml:"channel_retry_attempts"`
	ChannelRetryDelayMS  int `toml:"channel_retry_delay_ms"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		ListenAddr:           "127.0.0.1:8380",
		BackendURL:           "http://127.0.0.1:4000/api/v1",
		CookieSameSite:       "lax",
		SessionIdleMinutes:   30,
		ChannelRetryAttempts: 5,
		ChannelRetryDelayMS:  1000,
	}
}

// DataDir returns the prodevscore data directory.
// Uses PRODEVSCORE_DATA_DIR env var if set, otherwise ~/.prodevscore
func DataDir() string {
	if dir := os.Getenv("PRODEVSCORE_DATA_DIR"); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".prodevscore")
}

// GlobalConfigPath returns the path to the global config file
func GlobalConfigPath() string {
	return filepath.Join(DataDir(), "config.toml")
}

// Load loads the configuration from the default path
func Load() (*Config, error) {
	return LoadFrom(GlobalConfigPath())
}

// LoadFrom loads the configuration from a specific path. A missing file
// yields the defaults.
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save saves the configuration to the default path
func Save(cfg *Config) error {
	path := GlobalConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

// WebsocketURL returns the live-event endpoint. When backend_ws_url is
// unset it is derived from backend_url by swapping the scheme and
// stripping the API path: the event stream lives at the server root.
func (c *Config) WebsocketURL() string {
	if c.BackendWSURL != "" {
		return c.BackendWSURL
	}

	u := c.BackendURL
	scheme := "ws://"
	switch {
	case strings.HasPrefix(u, "https://"):
		scheme = "wss://"
		u = strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = strings.TrimPrefix(u, "http://")
	}
	if i := strings.Index(u, "/"); i >= 0 {
		u = u[:i]
	}
	return scheme + u
}
