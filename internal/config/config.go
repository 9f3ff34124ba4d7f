// Package config provides configuration loading and validation for the CLI
// and server.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
)

// Config represents configuration that can be loaded from a JSON file.
// All fields are optional; missing values use defaults or must be provided
// via CLI flags.
type Config struct {
	// Server
	Port        int    `json:"port,omitempty" validate:"omitempty,min=1,max=65535"`
	DatabaseURL string `json:"database_url,omitempty"` // PostgreSQL connection URL for ban persistence

	// Providers
	OpenverseBaseURL string `json:"openverse_base_url,omitempty" validate:"omitempty,url"`
	WikimediaBaseURL string `json:"wikimedia_base_url,omitempty" validate:"omitempty,url"`
	UseBrowser       bool   `json:"use_browser,omitempty"` // Headless browser fallback for JS-rendered search pages

	// Scoring
	TablesPath      string `json:"tables_path,omitempty"`     // Path to civilization term tables JSON
	ScoreThreshold  int    `json:"score_threshold,omitempty"` // Minimum score for historical content
	APIKey          string `json:"api_key,omitempty"`         // Gemini API key for the topic classifier
	ClassifierModel string `json:"classifier_model,omitempty"`

	// Caching
	CacheSize            int `json:"cache_size,omitempty" validate:"omitempty,min=1"`
	CacheTTLMinutes      int `json:"cache_ttl_minutes,omitempty" validate:"omitempty,min=1"`
	PreloadCacheSize     int `json:"preload_cache_size,omitempty" validate:"omitempty,min=1"`
	MaxConcurrentPreload int `json:"max_concurrent_preload,omitempty" validate:"omitempty,min=1"`

	// Sessions
	SessionTimeoutMinutes int `json:"session_timeout_minutes,omitempty" validate:"omitempty,min=1"`
	SweepIntervalMinutes  int `json:"sweep_interval_minutes,omitempty" validate:"omitempty,min=1"`

	// Behavior
	Verbose bool `json:"verbose,omitempty"` // Print detailed debug information
}

// LoadConfig loads configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

var validate = validator.New()

// Validate checks that the configuration has valid values.
// Note: This doesn't check for required fields since those are handled
// by CLI flag validation after merging.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
			e := errs[0]
			return fmt.Errorf("config error: field '%s' failed validation '%s'", e.Field(), e.Tag())
		}
		return fmt.Errorf("config error: %w", err)
	}

	if c.ScoreThreshold < 0 {
		return fmt.Errorf("config error: 'score_threshold' must be non-negative")
	}

	// Validate file paths exist (if specified)
	if c.TablesPath != "" {
		if _, err := os.Stat(c.TablesPath); os.IsNotExist(err) {
			return fmt.Errorf("config error: tables file not found: %s", c.TablesPath)
		}
	}

	return nil
}

// MergeWithDefaults returns a new Config with unset fields filled from
// defaults. This is used to apply config file values as defaults for CLI
// flags.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	// String fields: use default if empty
	if result.DatabaseURL == "" {
		result.DatabaseURL = defaults.DatabaseURL
	}
	if result.OpenverseBaseURL == "" {
		result.OpenverseBaseURL = defaults.OpenverseBaseURL
	}
	if result.WikimediaBaseURL == "" {
		result.WikimediaBaseURL = defaults.WikimediaBaseURL
	}
	if result.TablesPath == "" {
		result.TablesPath = defaults.TablesPath
	}
	if result.APIKey == "" {
		result.APIKey = defaults.APIKey
	}
	if result.ClassifierModel == "" {
		result.ClassifierModel = defaults.ClassifierModel
	}

	// Int fields: use default if zero
	if result.Port == 0 {
		result.Port = defaults.Port
	}
	if result.ScoreThreshold == 0 {
		result.ScoreThreshold = defaults.ScoreThreshold
	}
	if result.CacheSize == 0 {
		result.CacheSize = defaults.CacheSize
	}
	if result.CacheTTLMinutes == 0 {
		result.CacheTTLMinutes = defaults.CacheTTLMinutes
	}
	if result.PreloadCacheSize == 0 {
		result.PreloadCacheSize = defaults.PreloadCacheSize
	}
	if result.MaxConcurrentPreload == 0 {
		result.MaxConcurrentPreload = defaults.MaxConcurrentPreload
	}
	if result.SessionTimeoutMinutes == 0 {
		result.SessionTimeoutMinutes = defaults.SessionTimeoutMinutes
	}
	if result.SweepIntervalMinutes == 0 {
		result.SweepIntervalMinutes = defaults.SweepIntervalMinutes
	}

	// Bool fields: cannot distinguish unset from false, so we don't merge
	// (CLI flags should always win for bools)

	return result
}
