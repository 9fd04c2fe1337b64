// Package config loads and validates the minos configuration.
//
// Configuration sources, in order of precedence: environment variables
// (MINOS_*), a YAML configuration file, and defaults. Command-line flags
// are not bound into the configuration.
package config

import (
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/mcavallo/minos/internal/bytesize"
)

// Config captures the static configuration of the minos binaries.
type Config struct {
	// Logging controls log output behavior.
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Device selects and locates the block device backing the image.
	Device DeviceConfig `mapstructure:"device" yaml:"device"`

	// Cache configures the block cache.
	Cache CacheConfig `mapstructure:"cache" yaml:"cache"`

	// Metrics contains the Prometheus metrics server configuration.
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// Scheduler carries the stride scheduler parameters.
	Scheduler SchedulerConfig `mapstructure:"scheduler" yaml:"scheduler"`
}

// LoggingConfig controls the logger.
type LoggingConfig struct {
	// Level is one of DEBUG, INFO, WARN, ERROR.
	Level string `mapstructure:"level" yaml:"level"`

	// Format is "text" or "json".
	Format string `mapstructure:"format" yaml:"format"`

	// Output is "stdout", "stderr", or a file path.
	Output string `mapstructure:"output" yaml:"output"`
}

// DeviceConfig locates the filesystem image.
type DeviceConfig struct {
	// Kind is "file", "badger", or "memory".
	Kind string `mapstructure:"kind" yaml:"kind"`

	// Path is the image file or Badger directory. Ignored for "memory".
	Path string `mapstructure:"path" yaml:"path"`
}

// CacheConfig sizes the block cache.
type CacheConfig struct {
	// Capacity is the number of resident 512-byte blocks.
	Capacity int `mapstructure:"capacity" yaml:"capacity"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Enabled turns the metrics registry and HTTP listener on.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Listen is the address for /metrics, e.g. ":9090".
	Listen string `mapstructure:"listen" yaml:"listen"`
}

// SchedulerConfig carries the stride parameters passed to kernel.New.
type SchedulerConfig struct {
	// DefaultPriority is assigned to new threads.
	DefaultPriority int `mapstructure:"default_priority" yaml:"default_priority"`

	// MinPriority is the lowest accepted priority.
	MinPriority int `mapstructure:"min_priority" yaml:"min_priority"`
}

// Load reads the configuration from path (optional), the environment, and
// defaults, then validates it.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("MINOS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	decodeHook := mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.TextUnmarshallerHookFunc(),
	)
	if err := v.Unmarshal(&cfg, viper.DecodeHook(decodeHook)); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch c.Device.Kind {
	case "file", "badger", "memory":
	default:
		return fmt.Errorf("config: unknown device kind %q", c.Device.Kind)
	}
	if c.Device.Kind != "memory" && c.Device.Path == "" {
		return fmt.Errorf("config: device path is required for kind %q", c.Device.Kind)
	}
	if c.Cache.Capacity < 0 {
		return fmt.Errorf("config: cache capacity must not be negative")
	}
	if c.Scheduler.MinPriority < 2 {
		return fmt.Errorf("config: min priority must be at least 2")
	}
	if c.Scheduler.DefaultPriority < c.Scheduler.MinPriority {
		return fmt.Errorf("config: default priority below minimum")
	}
	return nil
}

// ParseSize converts a human-readable size to bytes; exposed here so CLI
// flags share the config's size grammar.
func ParseSize(s string) (uint64, error) {
	size, err := bytesize.Parse(s)
	if err != nil {
		return 0, err
	}
	return size.Bytes(), nil
}
