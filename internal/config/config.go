package config

import "time"

type Config struct {
	Paths    PathsConfig    `yaml:"paths"`
	Worker   WorkerConfig   `yaml:"worker"`
	Liveness LivenessConfig `yaml:"liveness"`
	Watch    WatchConfig    `yaml:"watch"`
	Snapshot SnapshotConfig `yaml:"snapshot"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type PathsConfig struct {
	Registry   string `yaml:"registry"`   // scripts.json
	Backups    string `yaml:"backups"`    // ./backups
	Reproduced string `yaml:"reproduced"` // ./reproduced
}

type WorkerConfig struct {
	PollInterval time.Duration `yaml:"pollInterval"` // e.g. 5s
	Schedule     string        `yaml:"schedule"`     // cron spec, overrides pollInterval when set
}

type LivenessConfig struct {
	Timeout time.Duration `yaml:"timeout"` // bound on one process enumeration
}

type WatchConfig struct {
	Mode            string        `yaml:"mode"`         // "off", "auto", "poll", "fsnotify"
	PollInterval    time.Duration `yaml:"pollInterval"` // e.g. 2s
	DebounceWindow  time.Duration `yaml:"debounceWindow"`
	StabilityWindow time.Duration `yaml:"stabilityWindow"`
}

type SnapshotConfig struct {
	CompressionLevel int `yaml:"compressionLevel"` // gzip level, -1 = default
}

type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json", "text", "auto"
}

// Default returns the configuration used when no config file is present.
func Default() *Config {
	return &Config{
		Paths: PathsConfig{
			Registry:   "scripts.json",
			Backups:    "./backups",
			Reproduced: "./reproduced",
		},
		Worker: WorkerConfig{
			PollInterval: 5 * time.Second,
		},
		Liveness: LivenessConfig{
			Timeout: 2 * time.Second,
		},
		Watch: WatchConfig{
			Mode:            "off",
			PollInterval:    2 * time.Second,
			DebounceWindow:  500 * time.Millisecond,
			StabilityWindow: 200 * time.Millisecond,
		},
		Snapshot: SnapshotConfig{
			CompressionLevel: -1,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "auto",
		},
	}
}
