// Package config loads and validates the gateway configuration file.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ServerConfig holds the listen addresses for the three protocol adapters.
type ServerConfig struct {
	RESTAddr    string `yaml:"rest_addr"`
	GRPCAddr    string `yaml:"grpc_addr"`
	JSONRPCAddr string `yaml:"jsonrpc_addr"`
}

// LoggingConfig selects the log level ("debug", "info", "warn", "error").
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// MetricsConfig controls the optional Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// StreamConfig tunes the subscription engine.
type StreamConfig struct {
	// Buffer is the per-subscription output buffer. The producer blocks when
	// the consumer falls this many events behind.
	Buffer int `yaml:"buffer"`
	// DefaultIntervalSeconds replaces zero or negative client intervals.
	DefaultIntervalSeconds int `yaml:"default_interval_seconds"`
}

// RateLimitConfig bounds per-client REST request rates. Zero RPS disables
// limiting.
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// Config is the root of the configuration file.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Stream    StreamConfig    `yaml:"stream"`
	RateLimit RateLimitConfig `yaml:"ratelimit"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			RESTAddr:    "127.0.0.1:3000",
			GRPCAddr:    "127.0.0.1:5000",
			JSONRPCAddr: "127.0.0.1:4000",
		},
		Logging: LoggingConfig{Level: "debug"},
		Metrics: MetricsConfig{Enabled: false, Addr: "127.0.0.1:9090"},
		Stream: StreamConfig{
			Buffer:                 32,
			DefaultIntervalSeconds: 2,
		},
	}
}

// Load reads the YAML file at path on top of the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultInterval returns the configured fallback tick interval.
func (c *Config) DefaultInterval() time.Duration {
	if c.Stream.DefaultIntervalSeconds <= 0 {
		return 2 * time.Second
	}
	return time.Duration(c.Stream.DefaultIntervalSeconds) * time.Second
}

// Validate checks that the configuration can actually be served.
func (c *Config) Validate() error {
	var errs []error

	errs = append(errs, c.validateAddrs()...)
	errs = append(errs, c.validateStream()...)
	errs = append(errs, c.validateRateLimit()...)

	return errors.Join(errs...)
}

func (c *Config) validateAddrs() []error {
	var errs []error
	for name, addr := range map[string]string{
		"server.rest_addr":    c.Server.RESTAddr,
		"server.grpc_addr":    c.Server.GRPCAddr,
		"server.jsonrpc_addr": c.Server.JSONRPCAddr,
	} {
		if addr == "" {
			errs = append(errs, fmt.Errorf("%s is required", name))
			continue
		}
		if _, _, err := net.SplitHostPort(addr); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	if c.Metrics.Enabled {
		if _, _, err := net.SplitHostPort(c.Metrics.Addr); err != nil {
			errs = append(errs, fmt.Errorf("metrics.addr: %w", err))
		}
	}
	return errs
}

func (c *Config) validateStream() []error {
	var errs []error
	if c.Stream.Buffer < 32 {
		errs = append(errs, fmt.Errorf("stream.buffer must be at least 32, got %d", c.Stream.Buffer))
	}
	if c.Stream.DefaultIntervalSeconds < 0 {
		errs = append(errs, fmt.Errorf("stream.default_interval_seconds must not be negative, got %d", c.Stream.DefaultIntervalSeconds))
	}
	return errs
}

func (c *Config) validateRateLimit() []error {
	var errs []error
	if c.RateLimit.RPS < 0 {
		errs = append(errs, fmt.Errorf("ratelimit.rps must not be negative, got %v", c.RateLimit.RPS))
	}
	if c.RateLimit.RPS > 0 && c.RateLimit.Burst <= 0 {
		errs = append(errs, fmt.Errorf("ratelimit.burst must be positive when ratelimit.rps is set, got %d", c.RateLimit.Burst))
	}
	return errs
}
