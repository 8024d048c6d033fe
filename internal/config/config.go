package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"dario.cat/mergo"
	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"

	"github.com/OHshajim/MedLink/pkg/medlink/api"
	"github.com/OHshajim/MedLink/pkg/medlink/auth"
	"github.com/OHshajim/MedLink/pkg/medlink/query"
)

// Config represents the medlink CLI configuration file
type Config struct {
	API     APIConfig     `yaml:"api"`
	Session SessionConfig `yaml:"session"`
	Cache   CacheConfig   `yaml:"cache"`
	Log     LogConfig     `yaml:"log"`
}

// APIConfig holds the remote API settings
type APIConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// SessionConfig selects where the credential is kept between runs
type SessionConfig struct {
	Store string `yaml:"store"`
	Path  string `yaml:"path,omitempty"`
}

// CacheConfig bounds the server-state cache
type CacheConfig struct {
	Size int `yaml:"size"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns the built-in configuration
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL: api.DefaultBaseURL,
			Timeout: api.DefaultTimeout,
		},
		Session: SessionConfig{
			Store: auth.StoreFile,
		},
		Cache: CacheConfig{
			Size: query.DefaultSize,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// DefaultPath returns the location of the configuration file
func DefaultPath() (string, error) {
	root, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, "medlink", "config.yaml"), nil
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.SetDefaults(); err != nil {
		return nil, err
	}
	return &config, nil
}

// SetDefaults fills every unset field from DefaultConfig
func (c *Config) SetDefaults() error {
	if err := mergo.Merge(c, DefaultConfig()); err != nil {
		return fmt.Errorf("failed to apply defaults: %w", err)
	}
	return nil
}

// Validate validates the configuration, reporting every problem at once
func (c *Config) Validate() error {
	var result *multierror.Error

	if u, err := url.Parse(c.API.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		result = multierror.Append(result, fmt.Errorf("api.base_url must be an http(s) URL, got %q", c.API.BaseURL))
	}
	if c.API.Timeout <= 0 {
		result = multierror.Append(result, fmt.Errorf("api.timeout must be positive"))
	}

	switch c.Session.Store {
	case auth.StoreFile, auth.StoreSQLite, auth.StoreMemory:
	default:
		result = multierror.Append(result, fmt.Errorf("session.store must be one of %s, %s, %s, got %q",
			auth.StoreFile, auth.StoreSQLite, auth.StoreMemory, c.Session.Store))
	}

	if c.Cache.Size <= 0 {
		result = multierror.Append(result, fmt.Errorf("cache.size must be positive"))
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		result = multierror.Append(result, fmt.Errorf("log.level %q is not supported", c.Log.Level))
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		result = multierror.Append(result, fmt.Errorf("log.format must be console or json, got %q", c.Log.Format))
	}

	return result.ErrorOrNil()
}

// SaveConfig saves configuration to a YAML file
func SaveConfig(config *Config, filePath string) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(filePath), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(filePath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
