// Package config loads the ambient application configuration.
//
// This covers the knobs that are not part of a check manifest: the
// status server, logging, and the run registry location. Values come
// from defaults, an optional condorcheck.yaml config file, environment
// variables with the CONDORCHECK_ prefix, and per-call overrides, in
// increasing precedence.
package config

import "time"

// Config is the resolved application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Registry RegistryConfig `mapstructure:"registry"`
}

// ServerConfig configures the status server.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// RegistryConfig locates the run registry.
type RegistryConfig struct {
	// Dir overrides the default registry location under the app data dir.
	Dir string `mapstructure:"dir"`
}
