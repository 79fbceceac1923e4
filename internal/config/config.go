// Proxyguard - Proxy and VPN Detection for Game Server Administration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/proxyguard

// Package config loads the two configuration layers Proxyguard uses.
//
// The application config (Config) describes how the service runs: HTTP
// listener, DuckDB store, console callback, GeoIP database and logging. It is
// loaded with Koanf v2 from built-in defaults, an optional YAML file and
// environment variables, in that order of precedence.
//
// The plugin config (Plugin) is the B3-style ini file an administrator edits
// next to the game server: detection threshold, kick reason, which proxy
// services are enabled, command levels and message templates. Invalid values
// in that file never abort loading; they are logged and replaced by defaults.
//
// Example:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    logging.Fatal().Err(err).Msg("failed to load config")
//	}
//	plugin, err := config.LoadPlugin(cfg.Plugin.Path)
package config

import (
	"net"
	"strconv"
	"time"
)

// Config holds all application configuration.
//
// Config is immutable after Load() and safe for concurrent read access.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Console  ConsoleConfig  `koanf:"console"`
	GeoIP    GeoIPConfig    `koanf:"geoip"`
	Plugin   PluginConfig   `koanf:"plugin"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig holds HTTP API settings.
//
// Environment Variables:
//   - HTTP_HOST, HTTP_PORT: listen address (default: 0.0.0.0:8340)
//   - HTTP_READ_TIMEOUT, HTTP_WRITE_TIMEOUT: per-request timeouts
//   - HTTP_SHUTDOWN_TIMEOUT: graceful shutdown budget (default: 10s)
//   - API_TOKEN: shared bearer token the host bot must send (empty disables auth)
//   - CORS_ORIGINS: comma-separated allowed origins for the dashboard
//   - RATE_LIMIT_REQUESTS, RATE_LIMIT_WINDOW, DISABLE_RATE_LIMIT
type ServerConfig struct {
	Host              string        `koanf:"host"`
	Port              int           `koanf:"port"`
	ReadTimeout       time.Duration `koanf:"read_timeout"`
	WriteTimeout      time.Duration `koanf:"write_timeout"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout"`
	APIToken          string        `koanf:"api_token"`
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	Environment       string        `koanf:"environment"`
}

// DatabaseConfig holds DuckDB settings
type DatabaseConfig struct {
	// Path is the DuckDB file. An empty path opens an in-memory database,
	// which loses detections on restart.
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads"` // 0 = DuckDB default
}

// ConsoleConfig describes the host bot's callback endpoint used to kick
// clients and send chat messages.
type ConsoleConfig struct {
	CallbackURL string        `koanf:"callback_url"`
	Token       string        `koanf:"token"`
	Timeout     time.Duration `koanf:"timeout"`

	// RateLimitMs is the minimum spacing between two callbacks. 0 disables
	// the limit.
	RateLimitMs int `koanf:"rate_limit_ms"`
}

// GeoIPConfig configures the local MaxMind database used to resolve client
// locations when the host does not send them.
type GeoIPConfig struct {
	// DatabasePath points to a GeoLite2/GeoIP2 City or Country mmdb file.
	// Empty disables local resolution.
	DatabasePath string `koanf:"database_path"`
}

// PluginConfig locates the ini plugin file.
type PluginConfig struct {
	Path string `koanf:"path"`
}

// LoggingConfig holds logging settings.
//
// Environment Variables:
//   - LOG_LEVEL: trace, debug, info, warn, error (default: info)
//   - LOG_FORMAT: json, console (default: json)
//   - LOG_CALLER: true/false - include caller file:line (default: false)
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// ListenAddr returns host:port for the HTTP server.
func (s ServerConfig) ListenAddr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// IsProduction reports whether ENVIRONMENT=production.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// Load reads configuration with the following precedence (highest first):
//  1. Environment variables
//  2. Config file (CONFIG_PATH or one of DefaultConfigPaths)
//  3. Built-in defaults
func Load() (*Config, error) {
	return LoadWithKoanf()
}
