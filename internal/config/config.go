// Package config handles loading and managing leadhistory configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// RemoteConfig holds CRM server connection settings.
type RemoteConfig struct {
	URL           string        `toml:"url"`            // CRM base URL
	APIKey        string        `toml:"api_key"`        // Sent as X-API-Key when set
	AllowInsecure bool          `toml:"allow_insecure"` // Permit plain http
	Timeout       time.Duration `toml:"timeout"`        // Per-request timeout
	RateLimitQPS  float64       `toml:"rate_limit_qps"` // 0 disables pacing
}

// UIConfig holds presentation settings.
type UIConfig struct {
	Language       string        `toml:"language"`
	Timezone       string        `toml:"timezone"` // IANA name; empty means local time
	SearchDebounce time.Duration `toml:"search_debounce"`
	ScrollDebounce time.Duration `toml:"scroll_debounce"`
}

// ScrollConfig controls where message-pane scroll offsets are kept.
type ScrollConfig struct {
	Store      string        `toml:"store"`        // "memory" or "sqlite"
	KeepOnExit bool          `toml:"keep_on_exit"` // Keep offsets when a view closes
	MaxAge     time.Duration `toml:"max_age"`      // SQLite entries older than this are pruned
}

// Scroll store kinds.
const (
	ScrollStoreMemory = "memory"
	ScrollStoreSQLite = "sqlite"
)

// Config represents the leadhistory configuration.
type Config struct {
	Remote RemoteConfig `toml:"remote"`
	UI     UIConfig     `toml:"ui"`
	Scroll ScrollConfig `toml:"scroll"`

	// Computed paths (not from config file)
	HomeDir string `toml:"-"`
}

// DefaultHome returns the default leadhistory home directory.
// Respects LEADHISTORY_HOME environment variable.
func DefaultHome() string {
	if h := os.Getenv("LEADHISTORY_HOME"); h != "" {
		return expandPath(h)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".leadhistory"
	}
	return filepath.Join(home, ".leadhistory")
}

// Load reads the configuration from the specified file. homeDir, when
// non-empty, overrides the home directory. If path is empty, uses
// <home>/config.toml; an explicit path must exist, and without a homeDir
// override its directory becomes the home directory.
func Load(path, homeDir string) (*Config, error) {
	explicit := path != ""
	switch {
	case homeDir != "":
		homeDir = expandPath(homeDir)
	case explicit:
		homeDir = filepath.Dir(expandPath(path))
	default:
		homeDir = DefaultHome()
	}

	if explicit {
		path = expandPath(path)
	} else {
		path = filepath.Join(homeDir, "config.toml")
	}

	cfg := &Config{
		HomeDir: homeDir,
		// Defaults
		Remote: RemoteConfig{
			Timeout:      30 * time.Second,
			RateLimitQPS: 5,
		},
		UI: UIConfig{
			SearchDebounce: 500 * time.Millisecond,
			ScrollDebounce: 100 * time.Millisecond,
		},
		Scroll: ScrollConfig{
			Store:  ScrollStoreMemory,
			MaxAge: 30 * 24 * time.Hour,
		},
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if explicit {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		if msg := err.Error(); strings.Contains(msg, "invalid escape") || strings.Contains(msg, "hexadecimal digits") {
			return nil, fmt.Errorf("decode config: %w\n\n"+
				"hint: backslashes in double-quoted TOML strings start escape sequences.\n"+
				"Use forward slashes (\"C:/Users/me\") or single quotes ('C:\\Users\\me').", err)
		}
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	switch c.Scroll.Store {
	case ScrollStoreMemory, ScrollStoreSQLite:
	case "":
		c.Scroll.Store = ScrollStoreMemory
	default:
		return fmt.Errorf("scroll.store must be %q or %q, got %q", ScrollStoreMemory, ScrollStoreSQLite, c.Scroll.Store)
	}
	if c.Remote.Timeout < 0 {
		return fmt.Errorf("remote.timeout must not be negative")
	}
	if c.Remote.RateLimitQPS < 0 {
		return fmt.Errorf("remote.rate_limit_qps must not be negative")
	}
	if c.UI.Timezone != "" {
		if _, err := time.LoadLocation(c.UI.Timezone); err != nil {
			return fmt.Errorf("ui.timezone: %w", err)
		}
	}
	return nil
}

// ConfigPath returns the default config file path.
func (c *Config) ConfigPath() string {
	return filepath.Join(c.HomeDir, "config.toml")
}

// ScrollDBPath returns the path to the SQLite scroll store.
func (c *Config) ScrollDBPath() string {
	return filepath.Join(c.HomeDir, "scroll.db")
}

// LogPath returns the path of the log file the terminal UI writes to.
func (c *Config) LogPath() string {
	return filepath.Join(c.HomeDir, "leadhistory.log")
}

// Location returns the time zone dates are displayed in.
func (c *Config) Location() *time.Location {
	if c.UI.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.UI.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// RequireRemote returns an error describing how to configure the CRM
// server when no URL is set.
func (c *Config) RequireRemote() error {
	if c.Remote.URL != "" {
		return nil
	}
	return fmt.Errorf("no CRM server configured\n\n"+
		"Add to %s:\n"+
		"  [remote]\n"+
		"  url = \"https://crm.example.com\"", c.ConfigPath())
}

// expandPath expands a leading ~ or ~/ to the user's home directory.
// ~user forms are left alone.
func expandPath(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
