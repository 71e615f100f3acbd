package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const configHeader = `# flashfs configuration file
#
# Environment variables override these settings, for example
# FLASHFS_LOGGING_LEVEL=DEBUG or FLASHFS_DEVICE_DENSITY=4.
#
# device.store.type selects where the simulated chip keeps its pages:
#   memory  pages are lost on exit
#   file    a flash image file (device.store.file.path)
#   badger  a badger database (device.store.badger.path)

`

// InitConfig writes the default configuration to path, or to the default
// location when path is empty, and returns the path written. An existing
// file is only replaced when force is set.
func InitConfig(path string, force bool) (string, error) {
	if path == "" {
		path = GetDefaultConfigPath()
	}
	if _, err := os.Stat(path); err == nil && !force {
		return "", fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(GetDefaultConfig())
	if err != nil {
		return "", fmt.Errorf("failed to marshal default config: %w", err)
	}
	content := append([]byte(configHeader), data...)
	if err := os.WriteFile(path, content, 0644); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}
	return path, nil
}
