// Haguard - Security Hardening Engine for LLM-Assisted Home Automation
// Copyright 2026 Haguard Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/haguard/haguard

// Package config loads Haguard configuration with Koanf v2 from layered
// sources: built-in defaults, an optional YAML file, and HAGUARD_
// environment variables (highest priority).
//
// The engine never refuses to start over malformed limit values: invalid
// fields are replaced by the documented defaults and a warning is logged.
// The full default policy lives in one place, defaultConfig, rather than
// scattered fallback branches.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/haguard/haguard/internal/audit"
	"github.com/haguard/haguard/internal/detect"
	"github.com/haguard/haguard/internal/logging"
	"github.com/haguard/haguard/internal/ratelimit"
)

// DefaultConfigPaths lists where config files are searched, in order.
var DefaultConfigPaths = []string{
	"haguard.yaml",
	"haguard.yml",
	"/etc/haguard/config.yaml",
	"/etc/haguard/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "HAGUARD_CONFIG"

// envPrefix namespaces Haguard environment variables.
const envPrefix = "HAGUARD_"

// Config is the root configuration.
type Config struct {
	Logging  LoggingConfig  `koanf:"logging" json:"logging"`
	Server   ServerConfig   `koanf:"server" json:"server"`
	Security SecurityConfig `koanf:"security" json:"security"`
}

// LoggingConfig configures the zerolog output.
type LoggingConfig struct {
	Level  string `koanf:"level" json:"level" validate:"omitempty,oneof=trace debug info warn warning error fatal disabled"`
	Format string `koanf:"format" json:"format" validate:"omitempty,oneof=json console"`
}

// ServerConfig configures the optional admin/report HTTP surface.
type ServerConfig struct {
	Enabled bool          `koanf:"enabled" json:"enabled"`
	Host    string        `koanf:"host" json:"host"`
	Port    int           `koanf:"port" json:"port" validate:"omitempty,min=1,max=65535"`
	Timeout time.Duration `koanf:"timeout" json:"timeout"`

	// Edge rate limiting applied by httprate in front of the engine.
	EdgeRateLimit  int           `koanf:"edge_rate_limit" json:"edge_rate_limit" validate:"omitempty,min=1"`
	EdgeRateWindow time.Duration `koanf:"edge_rate_window" json:"edge_rate_window"`

	CORSOrigins []string `koanf:"cors_origins" json:"cors_origins"`
}

// SecurityConfig configures the engine components.
type SecurityConfig struct {
	RateLimitEnabled  bool `koanf:"rate_limit_enabled" json:"rate_limit_enabled"`
	ValidationEnabled bool `koanf:"validation_enabled" json:"validation_enabled"`
	DetectionEnabled  bool `koanf:"detection_enabled" json:"detection_enabled"`
	AuditEnabled      bool `koanf:"audit_enabled" json:"audit_enabled"`

	RateLimit ratelimit.Config `koanf:"rate_limit" json:"rate_limit"`
	Detector  detect.Config    `koanf:"detector" json:"detector"`
	Audit     audit.Config     `koanf:"audit" json:"audit"`

	// AllowedDomains seeds the URL validation allowlist.
	AllowedDomains []string `koanf:"allowed_domains" json:"allowed_domains"`

	// ScanLimit caps how many characters of an input are pattern-scanned.
	ScanLimit int `koanf:"scan_limit" json:"scan_limit" validate:"omitempty,min=1"`

	// SanitizeMaxDepth bounds sanitizer recursion.
	SanitizeMaxDepth int `koanf:"sanitize_max_depth" json:"sanitize_max_depth" validate:"omitempty,min=1"`

	// AuditStore selects the audit backend: memory or badger.
	AuditStore string `koanf:"audit_store" json:"audit_store" validate:"omitempty,oneof=memory badger"`

	// AuditStorePath is the BadgerDB directory for the badger backend.
	AuditStorePath string `koanf:"audit_store_path" json:"audit_store_path"`
}

// defaultConfig is the single default-policy table. Every fallback the
// engine applies on malformed input comes from here.
func defaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Server: ServerConfig{
			Enabled:        false,
			Host:           "127.0.0.1",
			Port:           8787,
			Timeout:        30 * time.Second,
			EdgeRateLimit:  300,
			EdgeRateWindow: time.Minute,
			CORSOrigins:    []string{},
		},
		Security: SecurityConfig{
			RateLimitEnabled:  true,
			ValidationEnabled: true,
			DetectionEnabled:  true,
			AuditEnabled:      true,
			RateLimit:         ratelimit.DefaultConfig(),
			Detector:          detect.DefaultConfig(),
			Audit:             audit.DefaultConfig(),
			AllowedDomains:    []string{},
			ScanLimit:         100_000,
			SanitizeMaxDepth:  20,
			AuditStore:        "memory",
			AuditStorePath:    "/data/haguard/audit",
		},
	}
}

// Default returns the default configuration. Exposed so embedding hosts
// can start from the documented policy table and override fields.
func Default() *Config {
	return defaultConfig()
}

// Load reads configuration from defaults, an optional YAML file, and
// HAGUARD_ environment variables. Invalid values never fail the load;
// they are replaced by defaults with a logged warning.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
		logging.Info().Str("path", path).Msg("loaded config file")
	}

	// HAGUARD_SECURITY_RATE_LIMIT_ENABLED -> security.rate_limit_enabled
	envProvider := env.Provider(envPrefix, ".", envTransform)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}

	cfg.ApplyDefaults()
	return cfg, nil
}

// envTransform maps HAGUARD_ environment variable names to koanf paths.
// The first underscore separates the section; the remainder is the key:
// HAGUARD_LOGGING_LEVEL -> logging.level,
// HAGUARD_SECURITY_SCAN_LIMIT -> security.scan_limit.
func envTransform(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
	parts := strings.SplitN(key, "_", 2)
	if len(parts) != 2 {
		return key
	}

	section, rest := parts[0], parts[1]
	switch section {
	case "logging", "server", "security":
		return section + "." + rest
	default:
		return key
	}
}

// findConfigFile returns the first config file found, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
		logging.Warn().Str("path", envPath).Msg("config path from environment does not exist")
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// ApplyDefaults validates the configuration and replaces every invalid
// field with its default, logging one warning per replaced field. The
// hardening layer prefers availability over perfect enforcement, so this
// never returns an error.
func (c *Config) ApplyDefaults() {
	def := defaultConfig()

	validate := validator.New(validator.WithRequiredStructEnabled())
	err := validate.Struct(c)
	if err == nil {
		c.applyZeroDefaults(def)
		return
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		logging.Warn().Err(err).Msg("config validation failed, using defaults")
		*c = *def
		return
	}

	for _, fe := range fieldErrs {
		logging.Warn().
			Str("field", fe.Namespace()).
			Str("constraint", fe.Tag()).
			Msg("invalid config value replaced with default")
		c.resetField(fe.Namespace(), def)
	}

	c.applyZeroDefaults(def)
}

// resetField restores a single validated field to its default.
func (c *Config) resetField(namespace string, def *Config) {
	switch namespace {
	case "Config.Logging.Level":
		c.Logging.Level = def.Logging.Level
	case "Config.Logging.Format":
		c.Logging.Format = def.Logging.Format
	case "Config.Server.Port":
		c.Server.Port = def.Server.Port
	case "Config.Server.EdgeRateLimit":
		c.Server.EdgeRateLimit = def.Server.EdgeRateLimit
	case "Config.Security.ScanLimit":
		c.Security.ScanLimit = def.Security.ScanLimit
	case "Config.Security.SanitizeMaxDepth":
		c.Security.SanitizeMaxDepth = def.Security.SanitizeMaxDepth
	case "Config.Security.AuditStore":
		c.Security.AuditStore = def.Security.AuditStore
	case "Config.Security.RateLimit.MinuteLimit":
		c.Security.RateLimit.MinuteLimit = def.Security.RateLimit.MinuteLimit
	case "Config.Security.RateLimit.HourLimit":
		c.Security.RateLimit.HourLimit = def.Security.RateLimit.HourLimit
	case "Config.Security.RateLimit.DayLimit":
		c.Security.RateLimit.DayLimit = def.Security.RateLimit.DayLimit
	case "Config.Security.Detector.ErrorRateWindow":
		c.Security.Detector.ErrorRateWindow = def.Security.Detector.ErrorRateWindow
	case "Config.Security.Detector.ErrorRateThreshold":
		c.Security.Detector.ErrorRateThreshold = def.Security.Detector.ErrorRateThreshold
	default:
		// Unmapped fields fall through to applyZeroDefaults or the
		// component-level normalization.
	}
}

// applyZeroDefaults fills unset values that validation tags cannot catch.
func (c *Config) applyZeroDefaults(def *Config) {
	if c.Logging.Level == "" {
		c.Logging.Level = def.Logging.Level
	}
	if c.Logging.Format == "" {
		c.Logging.Format = def.Logging.Format
	}
	if c.Server.Host == "" {
		c.Server.Host = def.Server.Host
	}
	if c.Server.Port == 0 {
		c.Server.Port = def.Server.Port
	}
	if c.Server.Timeout <= 0 {
		c.Server.Timeout = def.Server.Timeout
	}
	if c.Server.EdgeRateLimit <= 0 {
		c.Server.EdgeRateLimit = def.Server.EdgeRateLimit
	}
	if c.Server.EdgeRateWindow <= 0 {
		c.Server.EdgeRateWindow = def.Server.EdgeRateWindow
	}
	if c.Security.ScanLimit <= 0 {
		c.Security.ScanLimit = def.Security.ScanLimit
	}
	if c.Security.SanitizeMaxDepth <= 0 {
		c.Security.SanitizeMaxDepth = def.Security.SanitizeMaxDepth
	}
	if c.Security.AuditStore == "" {
		c.Security.AuditStore = def.Security.AuditStore
	}
	if c.Security.AuditStorePath == "" {
		c.Security.AuditStorePath = def.Security.AuditStorePath
	}
}
