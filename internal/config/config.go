package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// ConfigFileName is searched for from the working directory upward.
const ConfigFileName = "groundwork.toml"

const defaultEnvironmentName = "local"

// ServerConfig holds the HTTP scaffold settings.
type ServerConfig struct {
	Addr               string   `toml:"addr"`
	ReadTimeoutSecs    int      `toml:"read_timeout_secs"`
	WriteTimeoutSecs   int      `toml:"write_timeout_secs"`
	ShutdownGraceSecs  int      `toml:"shutdown_grace_secs"`
	AllowedOrigins     []string `toml:"allowed_origins"`
	RateLimitPerMinute int      `toml:"rate_limit_per_minute"`
	RateLimitBurst     int      `toml:"rate_limit_burst"`
}

// LogConfig holds structured logging settings.
type LogConfig struct {
	Level  string `toml:"level"`  // debug, info, warn, error
	Format string `toml:"format"` // text or json
}

// EnvironmentConfig describes a single named environment from groundwork.toml.
type EnvironmentConfig struct {
	DatabaseURL string `toml:"database_url"`
	RedisAddr   string `toml:"redis_addr"`
	RedisPrefix string `toml:"redis_prefix"`
}

type Config struct {
	DefaultEnvironment string                       `toml:"default_environment"`
	MigrationsDir      string                       `toml:"migrations_dir"`
	Server             ServerConfig                 `toml:"server"`
	Log                LogConfig                    `toml:"log"`
	Environments       map[string]EnvironmentConfig `toml:"environments"`
	ConfigFilePath     string                       `toml:"-"`
}

// ReadTimeout returns the configured read timeout with a sane default.
func (c ServerConfig) ReadTimeout() time.Duration {
	return secondsOr(c.ReadTimeoutSecs, 10*time.Second)
}

func (c ServerConfig) WriteTimeout() time.Duration {
	return secondsOr(c.WriteTimeoutSecs, 30*time.Second)
}

func (c ServerConfig) ShutdownGrace() time.Duration {
	return secondsOr(c.ShutdownGraceSecs, 15*time.Second)
}

func secondsOr(secs int, fallback time.Duration) time.Duration {
	if secs <= 0 {
		return fallback
	}
	return time.Duration(secs) * time.Second
}

// ConfigDir returns the directory holding the config file, or "" when no
// file was found.
func (c *Config) ConfigDir() string {
	if c == nil || c.ConfigFilePath == "" {
		return ""
	}
	return filepath.Dir(c.ConfigFilePath)
}

// LoadConfig searches for groundwork.toml starting in the working directory
// and walking up until a project boundary. A missing file is not an error;
// the zero config with defaults applies.
func LoadConfig() (*Config, error) {
	startDir, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	dir := startDir
	for {
		configPath := filepath.Join(dir, ConfigFileName)
		if _, err := os.Stat(configPath); err == nil {
			data, err := os.ReadFile(configPath)
			if err != nil {
				return nil, err
			}

			var config Config
			if err := toml.Unmarshal(data, &config); err != nil {
				return nil, fmt.Errorf("parse %s: %w", configPath, err)
			}

			config.ConfigFilePath = configPath
			applyDefaults(&config)
			return &config, nil
		}

		if isProjectRoot(dir) {
			break
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root
			break
		}
		dir = parent
	}

	config := &Config{}
	applyDefaults(config)
	return config, nil
}

func applyDefaults(c *Config) {
	if c.DefaultEnvironment == "" {
		c.DefaultEnvironment = defaultEnvironmentName
	}
	if c.MigrationsDir == "" {
		c.MigrationsDir = "migrations"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.RateLimitPerMinute <= 0 {
		c.Server.RateLimitPerMinute = 120
	}
	if c.Server.RateLimitBurst <= 0 {
		c.Server.RateLimitBurst = 30
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// isProjectRoot checks if the directory is a project root based on common markers
func isProjectRoot(dir string) bool {
	if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
		return true
	}
	if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
		return true
	}
	if _, err := os.Stat(filepath.Join(dir, "package.json")); err == nil {
		return true
	}
	return false
}
