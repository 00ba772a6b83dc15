// ABOUTME: Configuration loading and parsing for the assistant client
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values applied when the config file omits a field.
const (
	DefaultServerURL       = "http://127.0.0.1:8000"
	DefaultRequestTimeout  = 30 * time.Second
	DefaultGuestMaxThreads = 1
	DefaultGuestMaxMsgs    = 10
)

// Config represents the complete client configuration
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Guest   GuestConfig   `yaml:"guest"`
	Auth    AuthConfig    `yaml:"auth"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig holds backend connection configuration
type ServerConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	TimeoutRaw string `yaml:"timeout"`
}

// GuestConfig holds guest-session persistence and quota configuration
type GuestConfig struct {
	DatabasePath string `yaml:"database_path"`
	MaxThreads   int    `yaml:"max_threads"`
	MaxMessages  int    `yaml:"max_messages"`
}

// AuthConfig holds credential storage configuration
type AuthConfig struct {
	// TokenPath overrides the default token file location
	// (~/.config/assist/token).
	TokenPath string `yaml:"token_path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values and defaults applied.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Default returns a configuration with all defaults applied, for running
// without a config file.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.URL == "" {
		return fmt.Errorf("server.url is required")
	}

	if c.Guest.DatabasePath == "" {
		return fmt.Errorf("guest.database_path is required")
	}

	if c.Guest.MaxThreads < 1 {
		return fmt.Errorf("guest.max_threads must be at least 1")
	}

	if c.Guest.MaxMessages < 1 {
		return fmt.Errorf("guest.max_messages must be at least 1")
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	if cfg.Server.TimeoutRaw != "" {
		var err error
		cfg.Server.Timeout, err = time.ParseDuration(cfg.Server.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing server.timeout %q: %w", cfg.Server.TimeoutRaw, err)
		}
	}

	return nil
}

// applyDefaults fills in zero-valued fields with their defaults.
func (c *Config) applyDefaults() {
	if c.Server.URL == "" {
		c.Server.URL = DefaultServerURL
	}
	if c.Server.Timeout == 0 {
		c.Server.Timeout = DefaultRequestTimeout
	}
	if c.Guest.DatabasePath == "" {
		c.Guest.DatabasePath = defaultGuestDBPath()
	}
	if c.Guest.MaxThreads == 0 {
		c.Guest.MaxThreads = DefaultGuestMaxThreads
	}
	if c.Guest.MaxMessages == 0 {
		c.Guest.MaxMessages = DefaultGuestMaxMsgs
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// defaultGuestDBPath returns the guest database location under the user's
// data directory, falling back to the working directory.
func defaultGuestDBPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "guest.db"
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}
	return filepath.Join(dataDir, "assist", "guest.db")
}
