package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func writeConfig(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.Nil(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	cfg, err := Load("")
	require.Nil(t, err)
	assert.Equal(t, "INFO", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, "stderr", cfg.Logging.Output)
	assert.Equal(t, DefaultDensity, cfg.Device.Density)
	assert.Equal(t, "file", cfg.Device.Store.Type)
	assert.Equal(t, DefaultImageFile, cfg.Device.Store.File["path"])
	assert.False(t, cfg.Metrics.Enabled)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: debug
  format: json
device:
  density: 4
  latency: 2ms
  store:
    type: badger
    badger:
      in_memory: true
metrics:
  enabled: true
`)
	cfg, err := Load(path)
	require.Nil(t, err)
	assert.Equal(t, "DEBUG", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, 4, cfg.Device.Density)
	assert.Equal(t, 2*time.Millisecond, cfg.Device.Latency)
	assert.Equal(t, "badger", cfg.Device.Store.Type)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestLoadEnvironment(t *testing.T) {
	path := writeConfig(t, "device:\n  density: 3\n")
	t.Setenv("FLASHFS_DEVICE_DENSITY", "5")
	t.Setenv("FLASHFS_LOGGING_LEVEL", "warn")
	cfg, err := Load(path)
	require.Nil(t, err)
	assert.Equal(t, 5, cfg.Device.Density)
	assert.Equal(t, "WARN", cfg.Logging.Level)
}

func TestLoadInvalid(t *testing.T) {
	cases := map[string]string{
		"density":   "device:\n  density: 9\n",
		"store":     "device:\n  store:\n    type: s3\n",
		"format":    "logging:\n  format: xml\n",
		"badger":    "device:\n  store:\n    type: badger\n",
		"file path": "device:\n  store:\n    type: file\n    file:\n      path: \"\"\n",
	}
	for name, content := range cases {
		_, err := Load(writeConfig(t, content))
		assert.NotNil(t, err, name)
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.NotNil(t, err)
}

func TestInitConfig(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	path, err := InitConfig("", false)
	require.Nil(t, err)
	assert.Equal(t, filepath.Join(dir, "flashfs", "config.yaml"), path)

	content, err := os.ReadFile(path)
	require.Nil(t, err)
	var parsed map[string]any
	require.Nil(t, yaml.Unmarshal(content, &parsed))
	for _, section := range []string{"logging", "device", "metrics"} {
		assert.Contains(t, parsed, section)
	}

	_, err = InitConfig("", false)
	assert.NotNil(t, err)
	_, err = InitConfig("", true)
	assert.Nil(t, err)

	cfg, err := Load("")
	require.Nil(t, err)
	assert.Equal(t, GetDefaultConfig(), cfg)
}
