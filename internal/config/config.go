package config

import (
	"fmt"
	"time"
)

type Config struct {
	Server      ServerConfig
	Storage     StorageConfig
	Log         LogConfig
	Retention   RetentionConfig
	Progression ProgressionConfig
	History     HistoryConfig
	API         APIConfig
}

type ServerConfig struct {
	Port       int
	MCPEnabled bool
}

type StorageConfig struct {
	DataDir string
}

type LogConfig struct {
	Level string
}

type RetentionConfig struct {
	// RefreshInterval is a time.ParseDuration string.
	RefreshInterval string
}

type ProgressionConfig struct {
	// Timezone is an IANA name; empty means the system local zone.
	Timezone string
}

type HistoryConfig struct {
	Capacity int
}

type APIConfig struct {
	Token string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:       4100,
			MCPEnabled: true,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Log: LogConfig{
			Level: "info",
		},
		Retention: RetentionConfig{
			RefreshInterval: "60s",
		},
		History: HistoryConfig{
			Capacity: 100,
		},
	}
}

// Load reads configuration from the platform-native backend and environment
// variables.
//
// On macOS the backend is UserDefaults (domain: app.think).
// On Linux the backend is a JSON file at $XDG_CONFIG_HOME/think/config.json.
//
// Environment variables (THINK_*) override backend values on all platforms.
func Load() (Config, error) {
	return loadWith(newPlatformBackend())
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid config: server.port %d out of range", c.Server.Port)
	}
	if c.History.Capacity < 1 {
		return fmt.Errorf("invalid config: history.capacity must be positive, got %d", c.History.Capacity)
	}
	if d, err := time.ParseDuration(c.Retention.RefreshInterval); err != nil || d <= 0 {
		return fmt.Errorf("invalid config: retention.refresh_interval %q is not a positive duration", c.Retention.RefreshInterval)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid config: log.level %q (want debug, info, warn or error)", c.Log.Level)
	}
	return nil
}

// RefreshInterval returns the parsed retention refresh period.
func (c Config) RefreshInterval() time.Duration {
	d, err := time.ParseDuration(c.Retention.RefreshInterval)
	if err != nil || d <= 0 {
		return time.Minute
	}
	return d
}

// Location returns the time zone used to decide calendar days.
func (c Config) Location() (*time.Location, error) {
	if c.Progression.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Progression.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid config: progression.timezone %q: %w", c.Progression.Timezone, err)
	}
	return loc, nil
}
