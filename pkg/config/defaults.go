package config

import "github.com/spf13/viper"

// Default values for every configuration key.
const (
	DefaultLogLevel  = "INFO"
	DefaultLogFormat = "text"
	DefaultLogOutput = "stdout"

	DefaultDeviceKind = "file"

	DefaultCacheCapacity = 16

	DefaultMetricsListen = ":9090"

	DefaultSchedPriority    = 16
	DefaultSchedMinPriority = 2
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", DefaultLogLevel)
	v.SetDefault("logging.format", DefaultLogFormat)
	v.SetDefault("logging.output", DefaultLogOutput)

	v.SetDefault("device.kind", DefaultDeviceKind)
	v.SetDefault("device.path", "minos.img")

	v.SetDefault("cache.capacity", DefaultCacheCapacity)

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.listen", DefaultMetricsListen)

	v.SetDefault("scheduler.default_priority", DefaultSchedPriority)
	v.SetDefault("scheduler.min_priority", DefaultSchedMinPriority)
}
