// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Storeloft Contributors

// Package config loads runtime configuration from a YAML file with CLI flag
// overrides.
package config

import (
	"os"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// Config is the full runtime configuration.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Database      DatabaseConfig      `koanf:"database"`
	Observability ObservabilityConfig `koanf:"observability"`
	HostAPI       HostAPIConfig       `koanf:"host_api"`
	Hooks         HooksConfig         `koanf:"hooks"`
	Logging       LoggingConfig       `koanf:"logging"`
}

// ServerConfig configures the public HTTP API.
type ServerConfig struct {
	Addr string `koanf:"addr"`
}

// DatabaseConfig configures the PostgreSQL connection.
type DatabaseConfig struct {
	URL string `koanf:"url"`
}

// ObservabilityConfig configures the metrics and health endpoint.
type ObservabilityConfig struct {
	Addr string `koanf:"addr"`
}

// HostAPIConfig configures the internal host API the sandbox transports
// plugin calls to.
type HostAPIConfig struct {
	BaseURL string `koanf:"base_url"`
}

// HooksConfig configures lifecycle hook dispatch.
type HooksConfig struct {
	Policy   string        `koanf:"policy"`
	Attempts uint64        `koanf:"attempts"`
	Backoff  time.Duration `koanf:"backoff"`
}

// LoggingConfig configures structured log output.
type LoggingConfig struct {
	Format string `koanf:"format"`
}

// Default returns the baseline configuration before file and flag overrides.
func Default() Config {
	return Config{
		Server:        ServerConfig{Addr: ":8080"},
		Observability: ObservabilityConfig{Addr: "127.0.0.1:9100"},
		HostAPI:       HostAPIConfig{BaseURL: "http://127.0.0.1:8080"},
		Hooks: HooksConfig{
			Policy:   "best_effort",
			Attempts: 3,
			Backoff:  100 * time.Millisecond,
		},
		Logging: LoggingConfig{Format: "json"},
	}
}

// Load builds the configuration: defaults, then the YAML file at path (if
// given), then flag overrides, then the DATABASE_URL environment variable as
// a last-resort database fallback.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	cfg := Default()
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, oops.Code("CONFIG_INVALID").With("path", path).Wrap(err)
		}
	}
	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return Config{}, oops.Code("CONFIG_INVALID").With("operation", "apply flags").Wrap(err)
		}
	}

	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, oops.Code("CONFIG_INVALID").With("operation", "unmarshal config").Wrap(err)
	}

	if cfg.Database.URL == "" {
		cfg.Database.URL = os.Getenv("DATABASE_URL")
	}
	return cfg, nil
}
