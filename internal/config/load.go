package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// matches $(VAR_NAME)
var envPattern = regexp.MustCompile(`\$\(([A-Za-z0-9_]+)\)`)

// Environment variables that override file values.
const (
	EnvRegistry     = "SCRIPTDB_REGISTRY"
	EnvBackups      = "SCRIPTDB_BACKUPS_DIR"
	EnvReproduced   = "SCRIPTDB_REPRODUCED_DIR"
	EnvPollInterval = "SCRIPTDB_POLL_INTERVAL"
	EnvLogLevel     = "SCRIPTDB_LOG_LEVEL"
)

// MinPollInterval is the finest interval the cron scheduler honors.
const MinPollInterval = time.Second

// replaces $(VAR) with os.Getenv(VAR)
func expandEnvVars(s string) string {
	return envPattern.ReplaceAllStringFunc(s, func(m string) string {
		key := mapEnvKey(envPattern.FindStringSubmatch(m)[1])
		return os.Getenv(key)
	})
}

// Load reads a YAML config file on top of the defaults.
func Load(path string) (*Config, error) {
	// read raw YAML file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// expand $(ENV_VAR) placeholders
	expanded := expandEnvVars(string(data))

	// unmarshal over defaults so omitted keys keep their default
	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling yaml: %w", err)
	}

	return cfg, nil
}

// LoadOptional behaves like Load but returns the defaults when the file
// does not exist.
func LoadOptional(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// ApplyEnv overlays the SCRIPTDB_* environment variables.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv(EnvRegistry); v != "" {
		c.Paths.Registry = v
	}
	if v := getenv(EnvBackups); v != "" {
		c.Paths.Backups = v
	}
	if v := getenv(EnvReproduced); v != "" {
		c.Paths.Reproduced = v
	}
	if v := getenv(EnvPollInterval); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvPollInterval, err)
		}
		c.Worker.PollInterval = d
		// an explicit interval replaces a file schedule
		c.Worker.Schedule = ""
	}
	if v := getenv(EnvLogLevel); v != "" {
		c.Logging.Level = v
	}
	return nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Paths.Registry == "" {
		return errors.New("paths.registry must not be empty")
	}
	if c.Paths.Backups == "" || c.Paths.Reproduced == "" {
		return errors.New("paths.backups and paths.reproduced must not be empty")
	}
	if c.Worker.Schedule == "" && c.Worker.PollInterval < MinPollInterval {
		return fmt.Errorf("worker.pollInterval must be at least %s, got %s", MinPollInterval, c.Worker.PollInterval)
	}
	if c.Worker.Schedule != "" {
		if _, err := cron.ParseStandard(c.Worker.Schedule); err != nil {
			return fmt.Errorf("worker.schedule: %w", err)
		}
	}
	if c.Liveness.Timeout <= 0 {
		return fmt.Errorf("liveness.timeout must be positive, got %s", c.Liveness.Timeout)
	}
	switch c.Watch.Mode {
	case "", "off":
	case "auto", "poll", "fsnotify":
		if c.Watch.PollInterval <= 0 {
			return fmt.Errorf("watch.pollInterval must be positive, got %s", c.Watch.PollInterval)
		}
	default:
		return fmt.Errorf("unknown watch.mode %q", c.Watch.Mode)
	}
	if l := c.Snapshot.CompressionLevel; l < -2 || l > 9 {
		return fmt.Errorf("snapshot.compressionLevel out of range: %d", l)
	}
	return nil
}
