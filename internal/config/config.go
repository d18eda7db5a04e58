// Package config loads provisioner configuration from an optional
// config.yaml, environment variables, and defaults, in that order of
// precedence (environment wins).
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration structure.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Queue    QueueConfig    `mapstructure:"queue"`
	Sweep    SweepConfig    `mapstructure:"sweep"`
	Log      LogConfig      `mapstructure:"log"`
	Otel     OtelConfig     `mapstructure:"otel"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Addr returns the listen address for the HTTP server.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// DatabaseConfig contains SQLite settings.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// QueueConfig contains message queue settings.
type QueueConfig struct {
	// Prefetch bounds in-flight messages per consumer queue.
	Prefetch int `mapstructure:"prefetch"`
}

// SweepConfig controls the stuck-provisioning sweeper.
type SweepConfig struct {
	Interval  time.Duration `mapstructure:"interval"`
	Threshold time.Duration `mapstructure:"threshold"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or text
}

// OtelConfig contains tracing settings.
type OtelConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
}

// Load reads configuration from file and environment variables. The config
// file is optional; environment variables use underscored nested keys
// (queue.prefetch becomes QUEUE_PREFETCH).
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/provisioner")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// Validate checks for settings that would make the service misbehave
// quietly rather than fail loudly.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path must not be empty")
	}
	if c.Queue.Prefetch <= 0 {
		return fmt.Errorf("queue.prefetch must be positive")
	}
	if c.Sweep.Interval <= 0 {
		return fmt.Errorf("sweep.interval must be positive")
	}
	if c.Sweep.Threshold <= 0 {
		return fmt.Errorf("sweep.threshold must be positive")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("database.path", "provisioner.db")

	v.SetDefault("queue.prefetch", 1)

	v.SetDefault("sweep.interval", "5m")
	v.SetDefault("sweep.threshold", "30m")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("otel.enabled", false)
	v.SetDefault("otel.service_name", "provisioner")
}
