// Zondarr - Unified Media Server Invitation Manager
// Copyright 2026 Zondarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zondarr/zondarr

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/zondarr/config.yaml",
	"/etc/zondarr/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config with all built-in defaults. These are
// applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        5690,
			Timeout:     30 * time.Second,
			Environment: "development",
			PublicURL:   "",
		},
		Database: DatabaseConfig{
			Path:        "/data/zondarr.db",
			BusyTimeout: 5 * time.Second,
		},
		Security: SecurityConfig{
			JWTSecret:         "",
			AccessTokenTTL:    15 * time.Minute,
			RefreshTokenTTL:   14 * 24 * time.Hour,
			AdminUsername:     "",
			AdminPassword:     "",
			TrustedOrigins:    []string{},
			DenylistPath:      "/data/denylist",
			CookieSecure:      true,
			RateLimitDisabled: false,
			LockoutThreshold:  5,
			LockoutWindow:     15 * time.Minute,
			LockoutDuration:   15 * time.Minute,
			WizardProgressTTL: time.Hour,
			PlexOwnerToken:    "",
		},
		Sync: SyncConfig{
			Enabled:  true,
			Interval: 15 * time.Minute,
			Timeout:  2 * time.Minute,
		},
		Janitor: JanitorConfig{
			Interval: 10 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:       "info",
			Format:      "json",
			Caller:      false,
			CaptureSize: 500,
		},
		API: APIConfig{
			DefaultPageSize: 50,
			MaxPageSize:     200,
		},
	}
}

// Load loads configuration with layered sources: defaults, then an
// optional YAML config file, then environment variables.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths lists config paths parsed as comma-separated slices
// when sourced from env vars.
var sliceConfigPaths = []string{
	"security.trusted_origins",
}

// processSliceFields converts comma-separated strings to slices for known
// slice fields. Env vars arrive as strings; YAML values are already lists.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}
		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envTransformFunc maps environment variable names to koanf config paths.
// Unmapped variables are skipped so random env vars don't pollute config.
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// Server
		"http_host":   "server.host",
		"http_port":   "server.port",
		"http_timeout": "server.timeout",
		"environment": "server.environment",
		"public_url":  "server.public_url",

		// Database
		"db_path":         "database.path",
		"db_busy_timeout": "database.busy_timeout",

		// Security
		"jwt_secret":          "security.jwt_secret",
		"access_token_ttl":    "security.access_token_ttl",
		"refresh_token_ttl":   "security.refresh_token_ttl",
		"admin_username":      "security.admin_username",
		"admin_password":      "security.admin_password",
		"trusted_origins":     "security.trusted_origins",
		"denylist_path":       "security.denylist_path",
		"cookie_secure":       "security.cookie_secure",
		"disable_rate_limit":  "security.rate_limit_disabled",
		"lockout_threshold":   "security.lockout_threshold",
		"lockout_window":      "security.lockout_window",
		"lockout_duration":    "security.lockout_duration",
		"wizard_progress_ttl": "security.wizard_progress_ttl",
		"plex_owner_token":    "security.plex_owner_token",

		// Sync
		"sync_enabled":  "sync.enabled",
		"sync_interval": "sync.interval",
		"sync_timeout":  "sync.timeout",

		// Janitor
		"janitor_interval": "janitor.interval",

		// Logging
		"log_level":        "logging.level",
		"log_format":       "logging.format",
		"log_caller":       "logging.caller",
		"log_capture_size": "logging.capture_size",

		// API
		"api_default_page_size": "api.default_page_size",
		"api_max_page_size":     "api.max_page_size",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}
	return ""
}
