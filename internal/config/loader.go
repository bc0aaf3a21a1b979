package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// rawConfig mirrors Config with pointer-typed numeric fields so that an
// explicitly-configured zero is distinguishable from an absent key.
type rawConfig struct {
	Event struct {
		IdleSleepTime  *int `yaml:"idle_sleep_time"`
		TickResolution *int `yaml:"tick_resolution"`
	} `yaml:"event"`
	Plugins PluginsConfig `yaml:"plugins"`
	Log     LogConfig     `yaml:"log"`
	API     APIConfig     `yaml:"api"`
	Journal JournalConfig `yaml:"journal"`
}

// Defaults returns a configuration with every field at its default value.
func Defaults() *Config {
	return &Config{
		Event: EventConfig{
			IdleSleepTime:  10,
			TickResolution: 10,
		},
		Log: LogConfig{
			Level: "INFO",
		},
	}
}

// Load reads and parses configuration from a YAML file. Absent keys take
// their defaults; present keys are range-checked.
func Load(configPath string) (*Config, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("config file not found: %s", absPath)
	}

	interpolated := interpolateEnv(string(data))

	var raw rawConfig
	if err := yaml.Unmarshal([]byte(interpolated), &raw); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}

	cfg := Defaults()
	if raw.Event.IdleSleepTime != nil {
		cfg.Event.IdleSleepTime = *raw.Event.IdleSleepTime
	}
	if raw.Event.TickResolution != nil {
		cfg.Event.TickResolution = *raw.Event.TickResolution
	}
	cfg.Plugins = raw.Plugins
	if raw.Log.Level != "" {
		cfg.Log.Level = raw.Log.Level
	}
	cfg.API = raw.API
	cfg.Journal = raw.Journal

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// validate range-checks the configuration.
func validate(cfg *Config) error {
	if cfg.Event.IdleSleepTime < 1 || cfg.Event.IdleSleepTime > 1000 {
		return fmt.Errorf("event.idle_sleep_time must be in range 1-1000, got %d", cfg.Event.IdleSleepTime)
	}
	if cfg.Event.TickResolution < cfg.Event.IdleSleepTime || cfg.Event.TickResolution > 1000 {
		return fmt.Errorf("event.tick_resolution must be in range %d-1000, got %d",
			cfg.Event.IdleSleepTime, cfg.Event.TickResolution)
	}
	return nil
}

// interpolateEnv replaces ${VAR} references with environment values.
// Unset variables interpolate to the empty string.
func interpolateEnv(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(name)
	})
}
