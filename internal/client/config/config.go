package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/opennews/newsbox/internal/utils"
)

const (
	DefaultServerURL        = "https://news.opennews.dev"
	DefaultControlPlaneAddr = "localhost:7939"
	DefaultSyncInterval     = Duration(15 * time.Minute)
)

// Duration round-trips through JSON as a string like "15m" so the config file
// stays hand-editable.
type Duration time.Duration

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		// tolerate an integer nanosecond value
		var n int64
		if err2 := json.Unmarshal(data, &n); err2 == nil {
			*d = Duration(n)
			return nil
		}
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

var (
	DefaultConfigPath  = filepath.Join("~", ".newsbox", "config.json")
	DefaultDataDir     = filepath.Join("~", "NewsboxCache")
	DefaultSecretsPath = filepath.Join("~", ".newsbox", "secrets.json")
)

// Config is the persisted client configuration.
type Config struct {
	// DataDir is the cache root the sync engine mirrors into.
	DataDir string `json:"data_dir"`

	// ServerURL is the base URL of the news content server.
	ServerURL string `json:"server_url"`

	// ControlPlaneAddr is the local HTTP listen address.
	ControlPlaneAddr string `json:"control_plane_addr"`

	// SyncInterval is the automatic pass period.
	SyncInterval Duration `json:"sync_interval"`

	// ForceFullRefresh makes every changed-document directory refresh a full
	// wipe-and-redownload rather than a top-up.
	ForceFullRefresh bool `json:"force_full_refresh,omitempty"`

	// Path this config was loaded from, not serialized.
	path string
}

func Default() *Config {
	return &Config{
		DataDir:          DefaultDataDir,
		ServerURL:        DefaultServerURL,
		ControlPlaneAddr: DefaultControlPlaneAddr,
		SyncInterval:     DefaultSyncInterval,
	}
}

// Load reads and validates a config file.
func Load(path string) (*Config, error) {
	path, err := utils.ResolvePath(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.path = path

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config to its path, creating parent directories.
func (c *Config) Save() error {
	if c.path == "" {
		path, err := utils.ResolvePath(DefaultConfigPath)
		if err != nil {
			return err
		}
		c.path = path
	}

	if err := utils.EnsureParent(c.path); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(c.path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func (c *Config) Path() string {
	return c.path
}

// SetPath overrides where Save writes.
func (c *Config) SetPath(path string) {
	c.path = path
}

func (c *Config) Validate() error {
	if c.DataDir == "" {
		return errors.New("config: data_dir is required")
	}
	if c.ServerURL == "" {
		return errors.New("config: server_url is required")
	}
	u, err := url.Parse(c.ServerURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("config: invalid server_url %q", c.ServerURL)
	}
	if c.ControlPlaneAddr == "" {
		return errors.New("config: control_plane_addr is required")
	}
	if c.SyncInterval <= 0 {
		return fmt.Errorf("config: sync_interval must be positive, got %s", c.SyncInterval)
	}
	return nil
}
