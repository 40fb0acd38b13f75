package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultDebounceDelay is the quiet period before the preview is recomposed.
const DefaultDebounceDelay = 250 * time.Millisecond

// DefaultPrefix namespaces every storage key written by the playground.
const DefaultPrefix = "syntax-studio-"

// Config represents the syntaxstudio configuration
type Config struct {
	Title   string        `yaml:"title"`
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Editor  EditorConfig  `yaml:"editor"`
	API     *APIConfig    `yaml:"api,omitempty"`
	Sync    *SyncConfig   `yaml:"sync,omitempty"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port  int    `yaml:"port"`
	Host  string `yaml:"host"`
	Debug bool   `yaml:"debug"`
}

// StorageConfig selects and configures the durable key/value store
type StorageConfig struct {
	Driver    string `yaml:"driver"`               // "sqlite", "postgres" or "memory". Default: sqlite
	Path      string `yaml:"path,omitempty"`       // For sqlite: database file (default: ./syntaxstudio.db)
	DSN       string `yaml:"dsn,omitempty"`        // For postgres: connection string (env vars expanded, falls back to DATABASE_URL)
	Prefix    string `yaml:"prefix,omitempty"`     // Key namespace (default: syntax-studio-)
	CacheTTL  string `yaml:"cache_ttl,omitempty"`  // Read cache TTL (e.g., "30s"). Default: disabled
	OnCorrupt string `yaml:"on_corrupt,omitempty"` // "fail" (default) or "default"
}

// EditorConfig holds editor and preview behaviour
type EditorConfig struct {
	DebounceDelay    string `yaml:"debounce_delay,omitempty"`    // Quiet period before recomposing (default: 250ms)
	ClipboardTimeout string `yaml:"clipboard_timeout,omitempty"` // How long to wait for the browser clipboard (default: 10s)
}

// APIConfig holds REST API configuration
type APIConfig struct {
	Enabled   bool             `yaml:"enabled"` // Enable REST API endpoints (default: false)
	RateLimit *RateLimitConfig `yaml:"rate_limit,omitempty"`
}

// RateLimitConfig holds rate limiting configuration for the API
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second,omitempty"` // Rate limit in requests per second (default: 10)
	Burst             int     `yaml:"burst,omitempty"`               // Burst size (default: 20)
	MaxIPs            int     `yaml:"max_ips,omitempty"`             // Tracked client IPs (default: 10000)
}

// SyncConfig mirrors buffers from files on disk
type SyncConfig struct {
	Dir string `yaml:"dir"` // Directory holding index.html, style.css and script.js
}

// GetDriver returns the storage driver (default: "sqlite")
func (c StorageConfig) GetDriver() string {
	if c.Driver == "" {
		return "sqlite"
	}
	return c.Driver
}

// GetPath returns the sqlite path (default: "./syntaxstudio.db")
func (c StorageConfig) GetPath() string {
	if c.Path == "" {
		return "./syntaxstudio.db"
	}
	return c.Path
}

// GetDSN returns the postgres DSN with environment variable expansion,
// falling back to DATABASE_URL
func (c StorageConfig) GetDSN() string {
	if c.DSN != "" {
		return os.ExpandEnv(c.DSN)
	}
	return os.Getenv("DATABASE_URL")
}

// GetPrefix returns the key namespace (default: "syntax-studio-")
func (c StorageConfig) GetPrefix() string {
	if c.Prefix == "" {
		return DefaultPrefix
	}
	return c.Prefix
}

// GetCacheTTL returns the read cache TTL (0 if caching is disabled)
func (c StorageConfig) GetCacheTTL() time.Duration {
	if c.CacheTTL == "" {
		return 0
	}
	d, err := time.ParseDuration(c.CacheTTL)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

// FallbackOnCorrupt returns true if corrupt stored values should be
// replaced by the default instead of failing startup
func (c StorageConfig) FallbackOnCorrupt() bool {
	return c.OnCorrupt == "default"
}

// GetDebounceDelay returns the parsed debounce delay (default: 250ms)
func (c EditorConfig) GetDebounceDelay() time.Duration {
	if c.DebounceDelay == "" {
		return DefaultDebounceDelay
	}
	d, err := time.ParseDuration(c.DebounceDelay)
	if err != nil || d <= 0 {
		return DefaultDebounceDelay
	}
	return d
}

// GetClipboardTimeout returns the browser clipboard timeout (default: 10s)
func (c EditorConfig) GetClipboardTimeout() time.Duration {
	if c.ClipboardTimeout == "" {
		return 10 * time.Second
	}
	d, err := time.ParseDuration(c.ClipboardTimeout)
	if err != nil || d <= 0 {
		return 10 * time.Second
	}
	return d
}

// GetRateLimitRPS returns the rate limit in requests per second (default: 10)
func (c *APIConfig) GetRateLimitRPS() float64 {
	if c == nil || c.RateLimit == nil || c.RateLimit.RequestsPerSecond <= 0 {
		return 10
	}
	return c.RateLimit.RequestsPerSecond
}

// GetRateLimitBurst returns the burst size (default: 20)
func (c *APIConfig) GetRateLimitBurst() int {
	if c == nil || c.RateLimit == nil || c.RateLimit.Burst <= 0 {
		return 20
	}
	return c.RateLimit.Burst
}

// GetRateLimitMaxIPs returns the number of tracked client IPs (default: 10000)
func (c *APIConfig) GetRateLimitMaxIPs() int {
	if c == nil || c.RateLimit == nil || c.RateLimit.MaxIPs <= 0 {
		return 10000
	}
	return c.RateLimit.MaxIPs
}

// IsAPIEnabled returns whether the API is enabled
func (c *Config) IsAPIEnabled() bool {
	return c.API != nil && c.API.Enabled
}

// IsSyncEnabled returns whether a sync directory is configured
func (c *Config) IsSyncEnabled() bool {
	return c.Sync != nil && c.Sync.Dir != ""
}

// Validate checks the configuration for values that cannot be served.
func (c *Config) Validate() error {
	switch c.Storage.GetDriver() {
	case "sqlite", "postgres", "memory":
	default:
		return fmt.Errorf("storage: unknown driver %q (want sqlite, postgres or memory)", c.Storage.Driver)
	}

	switch c.Storage.OnCorrupt {
	case "", "fail", "default":
	default:
		return fmt.Errorf("storage: unknown on_corrupt policy %q (want fail or default)", c.Storage.OnCorrupt)
	}

	if c.Storage.GetDriver() == "postgres" && c.Storage.GetDSN() == "" {
		return fmt.Errorf("storage: postgres driver requires dsn or DATABASE_URL")
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server: invalid port %d", c.Server.Port)
	}

	return nil
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Title: "Syntax Studio",
		Server: ServerConfig{
			Port:  8080,
			Host:  "localhost",
			Debug: false,
		},
		Storage: StorageConfig{
			Driver: "sqlite",
			Prefix: DefaultPrefix,
		},
		Editor: EditorConfig{
			DebounceDelay: DefaultDebounceDelay.String(),
		},
	}
}

// Load loads configuration from a YAML file
// If the file doesn't exist, returns the default configuration
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		return DefaultConfig(), nil
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig() // Start with defaults
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// LoadFromDir looks for syntaxstudio.yaml, then syntaxstudio.yml, in the
// given directory. If neither is found, returns the default configuration.
// A relative sqlite path is resolved against dir.
func LoadFromDir(dir string) (*Config, error) {
	configPath := filepath.Join(dir, "syntaxstudio.yaml")
	if _, err := os.Stat(configPath); err != nil {
		configPath = filepath.Join(dir, "syntaxstudio.yml")
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, err
	}

	if cfg.Storage.GetDriver() == "sqlite" && !filepath.IsAbs(cfg.Storage.GetPath()) {
		cfg.Storage.Path = filepath.Join(dir, cfg.Storage.GetPath())
	}
	if cfg.IsSyncEnabled() && !filepath.IsAbs(cfg.Sync.Dir) {
		cfg.Sync.Dir = filepath.Join(dir, cfg.Sync.Dir)
	}

	return cfg, nil
}

// Save writes the configuration to a YAML file
func (c *Config) Save(configPath string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
