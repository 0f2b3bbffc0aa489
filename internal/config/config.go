// Package config loads server settings from an optional YAML file and the
// environment. Environment variables win over the file; unset values fall
// back to defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultJWTSecret is used when no secret is configured. It is only fit for
// local development.
const DefaultJWTSecret = "tally-dev-secret-change-me"

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	JWT      JWTConfig      `yaml:"jwt"`
	Jobs     JobsConfig     `yaml:"jobs"`
	Log      LogConfig      `yaml:"log"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type JWTConfig struct {
	Secret string `yaml:"secret"`
	// TokenTTL is a Go duration such as "24h".
	TokenTTL string `yaml:"token_ttl"`
}

// JobsConfig schedules the recurrence and balance jobs.
type JobsConfig struct {
	// Schedule is a standard five-field cron expression.
	Schedule string `yaml:"schedule"`
	// Timezone is an IANA zone name the schedule is evaluated in.
	Timezone string `yaml:"timezone"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Load reads the YAML file at path, or at $CONFIG_FILE when path is empty,
// then applies environment overrides and defaults. A missing path means no
// file.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	setDefaults(cfg)

	if _, err := cfg.TokenTTL(); err != nil {
		return nil, err
	}
	if _, err := cfg.Location(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func applyEnv(cfg *Config) error {
	if port := os.Getenv("PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", port, err)
		}
		cfg.Server.Port = p
	}
	cfg.Database.Path = getEnv("DB_PATH", cfg.Database.Path)
	cfg.JWT.Secret = getEnv("JWT_SECRET", cfg.JWT.Secret)
	cfg.JWT.TokenTTL = getEnv("TOKEN_TTL", cfg.JWT.TokenTTL)
	cfg.Jobs.Schedule = getEnv("JOB_SCHEDULE", cfg.Jobs.Schedule)
	cfg.Jobs.Timezone = getEnv("JOB_TIMEZONE", cfg.Jobs.Timezone)
	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	return nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "./data/tally.db"
	}
	if cfg.JWT.Secret == "" {
		cfg.JWT.Secret = DefaultJWTSecret
	}
	if cfg.JWT.TokenTTL == "" {
		cfg.JWT.TokenTTL = "24h"
	}
	if cfg.Jobs.Schedule == "" {
		cfg.Jobs.Schedule = "0 0 * * *"
	}
	if cfg.Jobs.Timezone == "" {
		cfg.Jobs.Timezone = "Europe/London"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

// TokenTTL parses the configured session lifetime.
func (c *Config) TokenTTL() (time.Duration, error) {
	d, err := time.ParseDuration(c.JWT.TokenTTL)
	if err != nil {
		return 0, fmt.Errorf("invalid token TTL %q: %w", c.JWT.TokenTTL, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid token TTL %q: must be positive", c.JWT.TokenTTL)
	}
	return d, nil
}

// Location loads the jobs time zone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Jobs.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid job timezone %q: %w", c.Jobs.Timezone, err)
	}
	return loc, nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}
