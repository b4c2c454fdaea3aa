package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/pclean-go/pclean/internal/ratelimit"
)

// Config is the complete application configuration for a pclean process:
// one schema, one driver run, an optional status server, and where state
// persists between runs.
type Config struct {
	Profile   string          `mapstructure:"profile"`
	Schema    SchemaConfig    `mapstructure:"schema"`
	Driver    DriverConfig    `mapstructure:"driver"`
	Persist   PersistConfig   `mapstructure:"persist"`
	StatusAPI StatusAPIConfig `mapstructure:"status_api"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// SchemaConfig locates the relation-name-to-family schema document (§6).
type SchemaConfig struct {
	Path string `mapstructure:"path"`
}

// DriverConfig is the §6 driver configuration surface.
type DriverConfig struct {
	MaxIterations          int     `mapstructure:"max_iterations"`
	TimeoutSeconds         float64 `mapstructure:"timeout_seconds"`
	Verbose                bool    `mapstructure:"verbose"`
	HyperparameterSubsteps int     `mapstructure:"hyperparameter_substeps"`
	Seed                   int64   `mapstructure:"seed"`
}

// PersistConfig controls where cluster state is dumped between runs.
type PersistConfig struct {
	Path   string `mapstructure:"path"`
	Format string `mapstructure:"format"` // "text" or "sqlite"
}

// StatusAPIConfig holds the read-only status/metrics server configuration.
type StatusAPIConfig struct {
	Enabled   bool             `mapstructure:"enabled"`
	Port      int              `mapstructure:"port"`
	Host      string           `mapstructure:"host"`
	CORS      bool             `mapstructure:"cors"`
	RateLimit ratelimit.Config `mapstructure:"rate_limit"`
}

// LoggingConfig holds structured-logging configuration (obslog.Config).
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // console, json
	Output string `mapstructure:"output"` // stderr, stdout, or a file path
}

// DefaultConfig returns configuration with sensible defaults for a single
// local driver run.
func DefaultConfig() *Config {
	configDir := ConfigPath()

	return &Config{
		Profile: "default",
		Schema: SchemaConfig{
			Path: "schema.yaml",
		},
		Driver: DriverConfig{
			MaxIterations:          1000,
			TimeoutSeconds:         0,
			Verbose:                false,
			HyperparameterSubsteps: 1,
			Seed:                   0,
		},
		Persist: PersistConfig{
			Path:   filepath.Join(configDir, "state.pclean"),
			Format: "text",
		},
		StatusAPI: StatusAPIConfig{
			Enabled: true,
			Port:    7321,
			Host:    "localhost",
			CORS:    true,
			RateLimit: ratelimit.Config{
				Enabled: true,
				Global: ratelimit.LimitConfig{
					RequestsPerSecond: 20,
					BurstSize:         40,
				},
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads configuration from a YAML file with fallback to defaults.
// Searches, in order: ./config.yaml, ~/.pclean/config.yaml, /etc/pclean.
func Load() (*Config, error) {
	return load("")
}

// LoadFrom loads configuration from the YAML file at path, with no
// fallback search — an explicit path the caller already knows about (e.g.
// the CLI's --config flag).
func LoadFrom(path string) (*Config, error) {
	return load(path)
}

func load(explicitPath string) (*Config, error) {
	v := viper.New()

	if explicitPath != "" {
		v.SetConfigFile(explicitPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")

		v.AddConfigPath(".")
		homeDir, _ := os.UserHomeDir()
		v.AddConfigPath(filepath.Join(homeDir, ".pclean"))
		v.AddConfigPath("/etc/pclean")
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

func setDefaults(v *viper.Viper) {
	def := DefaultConfig()

	v.SetDefault("profile", def.Profile)
	v.SetDefault("schema.path", def.Schema.Path)

	v.SetDefault("driver.max_iterations", def.Driver.MaxIterations)
	v.SetDefault("driver.timeout_seconds", def.Driver.TimeoutSeconds)
	v.SetDefault("driver.verbose", def.Driver.Verbose)
	v.SetDefault("driver.hyperparameter_substeps", def.Driver.HyperparameterSubsteps)
	v.SetDefault("driver.seed", def.Driver.Seed)

	v.SetDefault("persist.path", def.Persist.Path)
	v.SetDefault("persist.format", def.Persist.Format)

	v.SetDefault("status_api.enabled", def.StatusAPI.Enabled)
	v.SetDefault("status_api.port", def.StatusAPI.Port)
	v.SetDefault("status_api.host", def.StatusAPI.Host)
	v.SetDefault("status_api.cors", def.StatusAPI.CORS)
	v.SetDefault("status_api.rate_limit.enabled", def.StatusAPI.RateLimit.Enabled)
	v.SetDefault("status_api.rate_limit.global.requests_per_second", def.StatusAPI.RateLimit.Global.RequestsPerSecond)
	v.SetDefault("status_api.rate_limit.global.burst_size", def.StatusAPI.RateLimit.Global.BurstSize)

	v.SetDefault("logging.level", def.Logging.Level)
	v.SetDefault("logging.format", def.Logging.Format)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Schema.Path == "" {
		return fmt.Errorf("schema.path is required")
	}
	if c.Driver.MaxIterations <= 0 {
		return fmt.Errorf("driver.max_iterations must be > 0")
	}
	if c.Driver.TimeoutSeconds < 0 {
		return fmt.Errorf("driver.timeout_seconds must be >= 0")
	}
	if c.Driver.HyperparameterSubsteps <= 0 {
		return fmt.Errorf("driver.hyperparameter_substeps must be > 0")
	}

	validFormats := map[string]bool{"text": true, "sqlite": true}
	if !validFormats[c.Persist.Format] {
		return fmt.Errorf("persist.format must be one of: text, sqlite")
	}

	if c.StatusAPI.Enabled {
		if c.StatusAPI.Port < 1 || c.StatusAPI.Port > 65535 {
			return fmt.Errorf("status_api.port must be between 1 and 65535")
		}
		if c.StatusAPI.Host == "" {
			return fmt.Errorf("status_api.host is required when the status API is enabled")
		}
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validLogFormats := map[string]bool{"console": true, "json": true}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: console, json")
	}

	return nil
}

// EnsureConfigDir creates the directory that holds the persisted state file,
// if it doesn't already exist.
func (c *Config) EnsureConfigDir() error {
	dir := filepath.Dir(c.Persist.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return nil
}

// ConfigPath returns the path to the configuration directory.
func ConfigPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".pclean")
}
