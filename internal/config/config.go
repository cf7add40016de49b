package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"eventhub/internal/model"
)

// NOTE: Load creates a default config on first run, the same way the
// session file is created lazily by internal/session.

const (
	DefaultBaseURL     = "https://event-back-end.vercel.app/api"
	DefaultListen      = "127.0.0.1:8080"
	DefaultTimezone    = "UTC"
	DefaultRefreshCron = "*/5 * * * *"
	DefaultTimeout     = 15 * time.Second

	// AuthSchemeNone sends the bare token in the Authorization header.
	AuthSchemeNone = "none"
)

// APIConfig describes how to reach the remote event API.
type APIConfig struct {
	// BaseURL includes the /api prefix, e.g. "https://events.example.com/api".
	BaseURL string `yaml:"base_url" json:"base_url"`

	// Timeout bounds a single request; there is no retry.
	Timeout   time.Duration `yaml:"timeout" json:"timeout"`
	UserAgent string        `yaml:"user_agent" json:"user_agent"`

	// AuthScheme prefixes the token in the Authorization header ("Bearer"
	// by default). "none" sends the token on its own.
	AuthScheme string `yaml:"auth_scheme" json:"auth_scheme"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the dashboard server.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// CaptureConfig controls dashboard snapshots.
type CaptureConfig struct {
	Width   int           `yaml:"width" json:"width"`
	Height  int           `yaml:"height" json:"height"`
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// Config is the top-level application configuration.
type Config struct {
	API APIConfig `yaml:"api" json:"api"`

	// SessionPath is the file holding token, username and email.
	SessionPath string `yaml:"session_path" json:"session_path"`

	// Listen is the HTTP listen address for the local dashboard.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone used to display and export events.
	Timezone string `yaml:"timezone" json:"timezone"`

	// RefreshCron schedules background cache refreshes while serving.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// Categories offered for new events.
	Categories []string `yaml:"categories" json:"categories"`

	LogLevel string `yaml:"log_level" json:"log_level"`

	// BasicAuth, if non-nil, protects every dashboard endpoint except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`

	Capture CaptureConfig `yaml:"capture" json:"capture"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	cfg := &Config{
		API: APIConfig{
			BaseURL:    DefaultBaseURL,
			Timeout:    DefaultTimeout,
			UserAgent:  "eventhub/0.1",
			AuthScheme: "Bearer",
		},
		SessionPath: defaultSessionPath(),
		Listen:      DefaultListen,
		Timezone:    DefaultTimezone,
		RefreshCron: DefaultRefreshCron,
		Categories:  append([]string(nil), model.DefaultCategories...),
		LogLevel:    "info",
		Capture: CaptureConfig{
			Width:   1280,
			Height:  900,
			Timeout: 30 * time.Second,
		},
	}
	return cfg
}

// DefaultPath is $XDG_CONFIG_HOME/eventhub/config.yaml, or a relative path
// when no user config dir is known.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		return filepath.Join(".eventhub", "config.yaml")
	}
	return filepath.Join(dir, "eventhub", "config.yaml")
}

func defaultSessionPath() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		return filepath.Join(".eventhub", "session.json")
	}
	return filepath.Join(dir, "eventhub", "session.json")
}

// Normalize fills in missing/zero values with defaults so that partially
// written files still behave.
func (c *Config) Normalize() {
	c.API.BaseURL = strings.TrimRight(strings.TrimSpace(c.API.BaseURL), "/")
	if c.API.BaseURL == "" {
		c.API.BaseURL = DefaultBaseURL
	}
	if c.API.Timeout <= 0 {
		c.API.Timeout = DefaultTimeout
	}
	if c.API.UserAgent == "" {
		c.API.UserAgent = "eventhub/0.1"
	}
	if c.API.AuthScheme == "" {
		c.API.AuthScheme = "Bearer"
	}
	if c.SessionPath == "" {
		c.SessionPath = defaultSessionPath()
	}
	if c.Listen == "" {
		c.Listen = DefaultListen
	}
	if c.Timezone == "" {
		c.Timezone = DefaultTimezone
	}
	if c.RefreshCron == "" {
		c.RefreshCron = DefaultRefreshCron
	}
	if len(c.Categories) == 0 {
		c.Categories = append([]string(nil), model.DefaultCategories...)
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Capture.Width <= 0 {
		c.Capture.Width = 1280
	}
	if c.Capture.Height <= 0 {
		c.Capture.Height = 900
	}
	if c.Capture.Timeout <= 0 {
		c.Capture.Timeout = 30 * time.Second
	}
}

// Location resolves Timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms and returned.
//   - If the file exists, it is unmarshalled and normalized.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Environment variables that override file values.
const (
	EnvAPIURL      = "EVENTHUB_API_URL"
	EnvSessionPath = "EVENTHUB_SESSION_PATH"
	EnvListen      = "EVENTHUB_LISTEN"
	EnvLogLevel    = "EVENTHUB_LOG_LEVEL"
)

// ApplyEnv loads envFile (if present) into the process environment and
// overlays EVENTHUB_* variables onto c. A missing env file is not an error.
func (c *Config) ApplyEnv(envFile string) error {
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				return err
			}
		}
	}
	if v := os.Getenv(EnvAPIURL); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv(EnvSessionPath); v != "" {
		c.SessionPath = v
	}
	if v := os.Getenv(EnvListen); v != "" {
		c.Listen = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	c.Normalize()
	return nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return WriteFileAtomic(path, data)
}

// WriteFileAtomic writes data next to path and renames it into place with
// 0600 permissions, creating the parent directory (0700) if needed.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".eventhub-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save is a convenience method on Config that delegates to Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
