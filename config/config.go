package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the complete flashfs configuration.
//
// Configuration sources (in order of precedence):
//  1. CLI flags
//  2. Environment variables (FLASHFS_*)
//  3. Configuration file (YAML or TOML)
//  4. Default values
type Config struct {
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Device  DeviceConfig  `mapstructure:"device" yaml:"device"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" yaml:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Valid values: text, json
	Format string `mapstructure:"format" yaml:"format" validate:"required,oneof=text json"`

	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" yaml:"output" validate:"required"`
}

// DeviceConfig selects the simulated chip and where its pages live.
type DeviceConfig struct {
	// Density is the chip density code, 2 (AT45DB011) through 8 (AT45DB642).
	Density int `mapstructure:"density" yaml:"density" validate:"gte=2,lte=8"`

	// Latency keeps the chip busy for this long after every operation.
	Latency time.Duration `mapstructure:"latency" yaml:"latency" validate:"gte=0"`

	Store StoreConfig `mapstructure:"store" yaml:"store"`
}

// StoreConfig specifies the page store type and type-specific options.
// Only the section matching Type is used.
type StoreConfig struct {
	// Valid values: memory, file, badger
	Type string `mapstructure:"type" yaml:"type" validate:"required,oneof=memory file badger"`

	File   map[string]any `mapstructure:"file" yaml:"file"`
	Badger map[string]any `mapstructure:"badger" yaml:"badger"`
}

// MetricsConfig enables device operation counters.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// Load loads configuration from file, environment, and defaults.
// An empty configPath uses the default location, and a missing file
// there is not an error.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures environment variables and the config file search.
// Example: FLASHFS_DEVICE_DENSITY=4
func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("FLASHFS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// keys must be bound for environment overrides to reach Unmarshal
	for _, key := range []string{
		"logging.level",
		"logging.format",
		"logging.output",
		"device.density",
		"device.latency",
		"device.store.type",
		"device.store.file.path",
		"device.store.badger.path",
		"metrics.enabled",
	} {
		_ = v.BindEnv(key)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// getConfigDir returns $XDG_CONFIG_HOME/flashfs, ~/.config/flashfs, or
// the current directory if neither can be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "flashfs")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "flashfs")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}
