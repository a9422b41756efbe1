// ABOUTME: Target configuration and credential management
// ABOUTME: Loads config from an XDG path or an explicit file, with .env and environment overrides
package sync

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds EveryAction credentials and target behavior.
type Config struct {
	AppName               string  `yaml:"app_name" json:"app_name"`
	APIKey                string  `yaml:"api_key" json:"api_key"`
	OnlyUpsertEmptyFields bool    `yaml:"only_upsert_empty_fields" json:"only_upsert_empty_fields"`
	BaseURL               string  `yaml:"base_url,omitempty" json:"base_url,omitempty"`
	RateLimit             float64 `yaml:"rate_limit,omitempty" json:"rate_limit,omitempty"`
	DatabasePath          string  `yaml:"database_path,omitempty" json:"database_path,omitempty"`
}

// ConfigDir returns XDG-compliant directory for target configuration.
func ConfigDir() string {
	return filepath.Join(xdg.ConfigHome, "target-everyaction")
}

// ConfigPath returns the default configuration file path.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// LoadConfig reads path, or ConfigPath when path is empty. A missing default
// file yields an empty config. JSON files (Singer style) and YAML files are
// both accepted. Environment variables, including those from a .env file in
// the working directory, override file values:
// - EVERYACTION_APP_NAME
// - EVERYACTION_API_KEY
// - EVERYACTION_ONLY_UPSERT_EMPTY_FIELDS
// - EVERYACTION_BASE_URL
// - EVERYACTION_RATE_LIMIT
// - EVERYACTION_DB_PATH.
func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	explicit := path != ""
	if !explicit {
		path = ConfigPath()
	}

	cfg := &Config{}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		// yaml.v3 also parses JSON documents
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) error {
	if appName := os.Getenv("EVERYACTION_APP_NAME"); appName != "" {
		cfg.AppName = appName
	}
	if apiKey := os.Getenv("EVERYACTION_API_KEY"); apiKey != "" {
		cfg.APIKey = apiKey
	}
	if onlyEmpty := os.Getenv("EVERYACTION_ONLY_UPSERT_EMPTY_FIELDS"); onlyEmpty != "" {
		cfg.OnlyUpsertEmptyFields = onlyEmpty == "true" || onlyEmpty == "1"
	}
	if baseURL := os.Getenv("EVERYACTION_BASE_URL"); baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if rateLimit := os.Getenv("EVERYACTION_RATE_LIMIT"); rateLimit != "" {
		v, err := strconv.ParseFloat(rateLimit, 64)
		if err != nil {
			return fmt.Errorf("invalid EVERYACTION_RATE_LIMIT %q: %w", rateLimit, err)
		}
		cfg.RateLimit = v
	}
	if dbPath := os.Getenv("EVERYACTION_DB_PATH"); dbPath != "" {
		cfg.DatabasePath = dbPath
	}
	return nil
}

// SaveConfig writes cfg to ConfigPath with owner-only permissions.
func SaveConfig(cfg *Config) error {
	return SaveConfigTo(cfg, ConfigPath())
}

// SaveConfigTo writes cfg as YAML to path with owner-only permissions.
func SaveConfigTo(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks the credentials required to reach the API.
func (c *Config) Validate() error {
	var missing []string
	if strings.TrimSpace(c.AppName) == "" {
		missing = append(missing, "app_name")
	}
	if strings.TrimSpace(c.APIKey) == "" {
		missing = append(missing, "api_key")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required config: %s", strings.Join(missing, ", "))
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("rate_limit must not be negative")
	}
	return nil
}

// Redacted returns a copy safe for display.
func (c Config) Redacted() Config {
	if c.APIKey != "" {
		c.APIKey = "****"
	}
	return c
}
