package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DefaultLogLevel, cfg.Logging.Level)
	assert.Equal(t, DefaultDeviceKind, cfg.Device.Kind)
	assert.Equal(t, DefaultCacheCapacity, cfg.Cache.Capacity)
	assert.False(t, cfg.Metrics.Enabled)
	assert.Equal(t, DefaultSchedPriority, cfg.Scheduler.DefaultPriority)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
logging:
  level: DEBUG
device:
  kind: badger
  path: /tmp/minos-badger
cache:
  capacity: 64
metrics:
  enabled: true
  listen: ":9999"
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "DEBUG", cfg.Logging.Level)
	assert.Equal(t, "badger", cfg.Device.Kind)
	assert.Equal(t, 64, cfg.Cache.Capacity)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, ":9999", cfg.Metrics.Listen)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Device:    DeviceConfig{Kind: "file", Path: "x.img"},
			Scheduler: SchedulerConfig{DefaultPriority: 16, MinPriority: 2},
		}
	}

	assert.NoError(t, base().Validate())

	c := base()
	c.Device.Kind = "tape"
	assert.Error(t, c.Validate())

	c = base()
	c.Device.Path = ""
	assert.Error(t, c.Validate())

	c = base()
	c.Device = DeviceConfig{Kind: "memory"}
	assert.NoError(t, c.Validate(), "memory devices need no path")

	c = base()
	c.Scheduler.MinPriority = 1
	assert.Error(t, c.Validate())

	c = base()
	c.Scheduler.DefaultPriority = 1
	assert.Error(t, c.Validate())
}

func TestParseSize(t *testing.T) {
	n, err := ParseSize("4Mi")
	require.NoError(t, err)
	assert.Equal(t, uint64(4<<20), n)

	_, err = ParseSize("four megabytes")
	assert.Error(t, err)
}
