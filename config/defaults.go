package config

import (
	"strings"
)

const (
	DefaultDensity   = 2
	DefaultStoreType = "file"
	DefaultImageFile = "flash.img"
)

// ApplyDefaults replaces zero values with defaults and normalizes values.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyDeviceDefaults(&cfg.Device)
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stderr"
	}
}

func applyDeviceDefaults(cfg *DeviceConfig) {
	if cfg.Density == 0 {
		cfg.Density = DefaultDensity
	}
	if cfg.Store.Type == "" {
		cfg.Store.Type = DefaultStoreType
	}
	if cfg.Store.File == nil {
		cfg.Store.File = map[string]any{}
	}
	if _, ok := cfg.Store.File["path"]; !ok {
		cfg.Store.File["path"] = DefaultImageFile
	}
	if cfg.Store.Badger == nil {
		cfg.Store.Badger = map[string]any{}
	}
}

// GetDefaultConfig returns a configuration with every default applied.
func GetDefaultConfig() *Config {
	cfg := &Config{
		Device: DeviceConfig{
			Store: StoreConfig{
				Badger: map[string]any{
					"path":      "flash.badger",
					"in_memory": false,
				},
			},
		},
	}
	ApplyDefaults(cfg)
	return cfg
}
