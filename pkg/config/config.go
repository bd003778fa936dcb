package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the data harvester
type Config struct {
	// HTTP client settings
	HTTP HTTPConfig `yaml:"http" json:"http"`

	// Retry behavior for fetches
	Retry RetryConfig `yaml:"retry" json:"retry"`

	// Local storage settings
	Storage StorageConfig `yaml:"storage" json:"storage"`

	// Protected-source (challenge) settings
	Rendered RenderedConfig `yaml:"rendered" json:"rendered"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// HTTPConfig holds HTTP client configuration
type HTTPConfig struct {
	Timeout        time.Duration `yaml:"timeout" json:"timeout"`
	UserAgent      string        `yaml:"user_agent" json:"user_agent"`
	AcceptLanguage string        `yaml:"accept_language" json:"accept_language"`
	JitterMin      time.Duration `yaml:"jitter_min" json:"jitter_min"`
	JitterMax      time.Duration `yaml:"jitter_max" json:"jitter_max"`

	// RequestsPerMinute caps the overall request rate. Zero disables
	// the cap; the jitter window still applies.
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute"`
}

// RetryConfig holds retry configuration for fetches
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts" json:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay" json:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay" json:"max_delay"`
	Multiplier  float64       `yaml:"multiplier" json:"multiplier"`
}

// StorageConfig holds local storage configuration
type StorageConfig struct {
	Root         string `yaml:"root" json:"root"`
	ManifestName string `yaml:"manifest_name" json:"manifest_name"`
}

// RenderedConfig holds settings for sources behind interactive challenges
type RenderedConfig struct {
	ChallengeTimeout time.Duration `yaml:"challenge_timeout" json:"challenge_timeout"`
	PollInterval     time.Duration `yaml:"poll_interval" json:"poll_interval"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Timeout:           60 * time.Second,
			UserAgent:         "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36",
			AcceptLanguage:    "en-US,en;q=0.9",
			JitterMin:         200 * time.Millisecond,
			JitterMax:         800 * time.Millisecond,
			RequestsPerMinute: 60,
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   2 * time.Second,
			MaxDelay:    60 * time.Second,
			Multiplier:  2.0,
		},
		Storage: StorageConfig{
			Root:         "./downloads",
			ManifestName: "_manifest.json",
		},
		Rendered: RenderedConfig{
			ChallengeTimeout: 45 * time.Second,
			PollInterval:     3 * time.Second,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	if root := os.Getenv("DATAHARVEST_STORAGE_ROOT"); root != "" {
		c.Storage.Root = root
	}
	if ua := os.Getenv("DATAHARVEST_USER_AGENT"); ua != "" {
		c.HTTP.UserAgent = ua
	}
	if timeout := os.Getenv("DATAHARVEST_HTTP_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil && d > 0 {
			c.HTTP.Timeout = d
		}
	}
	if attempts := os.Getenv("DATAHARVEST_MAX_ATTEMPTS"); attempts != "" {
		var val int
		fmt.Sscanf(attempts, "%d", &val)
		if val > 0 {
			c.Retry.MaxAttempts = val
		}
	}
	if rate := os.Getenv("DATAHARVEST_RATE_LIMIT"); rate != "" {
		var val int
		fmt.Sscanf(rate, "%d", &val)
		if val >= 0 {
			c.HTTP.RequestsPerMinute = val
		}
	}
	if logLevel := os.Getenv("DATAHARVEST_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}

	return nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	// Check in order of precedence
	locations := []string{
		".dataharvest.yaml",
		".dataharvest.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "dataharvest", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".config", "dataharvest", "config.yml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.HTTP.Timeout <= 0 {
		errs = append(errs, errors.New("http timeout must be positive"))
	}
	if c.HTTP.JitterMin < 0 || c.HTTP.JitterMax < c.HTTP.JitterMin {
		errs = append(errs, errors.New("jitter window is invalid"))
	}
	if c.HTTP.RequestsPerMinute < 0 {
		errs = append(errs, errors.New("requests per minute cannot be negative"))
	}

	if c.Retry.MaxAttempts <= 0 {
		errs = append(errs, errors.New("max attempts must be positive"))
	}
	if c.Retry.Multiplier < 1.0 {
		errs = append(errs, errors.New("retry multiplier must be at least 1"))
	}

	if c.Storage.Root == "" {
		errs = append(errs, errors.New("storage root is required"))
	}
	if c.Storage.ManifestName == "" {
		errs = append(errs, errors.New("manifest name is required"))
	}

	if c.Rendered.ChallengeTimeout <= 0 {
		errs = append(errs, errors.New("challenge timeout must be positive"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if root, ok := flags["storage-root"].(string); ok && root != "" {
		c.Storage.Root = root
	}
	if attempts, ok := flags["max-attempts"].(int); ok && attempts > 0 {
		c.Retry.MaxAttempts = attempts
	}
	if timeout, ok := flags["timeout"].(time.Duration); ok && timeout > 0 {
		c.HTTP.Timeout = timeout
	}
	if rate, ok := flags["rate-limit"].(int); ok && rate >= 0 {
		c.HTTP.RequestsPerMinute = rate
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Try to load .env files (don't fail if they don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".dataharvest.env"))

	// Start with defaults
	config := DefaultConfig()

	// Load from config file
	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	// Override with environment variables (includes values from .env)
	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Override with command line flags
	config.MergeCommandLineFlags(flags)

	// Validate final configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
