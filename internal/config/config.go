// Zondarr - Unified Media Server Invitation Manager
// Copyright 2026 Zondarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zondarr/zondarr

// Package config loads and validates application configuration using
// Koanf v2 with layered sources (highest priority wins):
//
//  1. Environment variables
//  2. Config file (config.yaml)
//  3. Built-in defaults
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config is the root configuration struct.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Security SecurityConfig `koanf:"security"`
	Sync     SyncConfig     `koanf:"sync"`
	Janitor  JanitorConfig  `koanf:"janitor"`
	Logging  LoggingConfig  `koanf:"logging"`
	API      APIConfig      `koanf:"api"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host        string        `koanf:"host"`
	Port        int           `koanf:"port"`
	Timeout     time.Duration `koanf:"timeout"`
	Environment string        `koanf:"environment"` // development or production
	// PublicURL is the externally reachable base URL, used in invitation
	// links and as the default trusted CSRF origin.
	PublicURL string `koanf:"public_url"`
}

// DatabaseConfig holds sqlite settings.
type DatabaseConfig struct {
	Path        string        `koanf:"path"`
	BusyTimeout time.Duration `koanf:"busy_timeout"`
}

// SecurityConfig holds authentication settings.
type SecurityConfig struct {
	// JWTSecret signs access, refresh, pending-TOTP and wizard progress
	// tokens. Minimum 32 characters.
	JWTSecret string `koanf:"jwt_secret"`

	AccessTokenTTL  time.Duration `koanf:"access_token_ttl"`
	RefreshTokenTTL time.Duration `koanf:"refresh_token_ttl"`

	// Bootstrap admin created on first start when no admin exists.
	AdminUsername string `koanf:"admin_username"`
	AdminPassword string `koanf:"admin_password"`

	// TrustedOrigins are browser origins allowed to issue state-changing
	// requests (CSRF origin check). PublicURL's origin is always trusted.
	TrustedOrigins []string `koanf:"trusted_origins"`

	// DenylistPath is the badger directory for revoked token JTIs and
	// login lockout state.
	DenylistPath string `koanf:"denylist_path"`

	// CookieSecure marks auth cookies as Secure. Defaults to true in
	// production environments.
	CookieSecure bool `koanf:"cookie_secure"`

	RateLimitDisabled bool `koanf:"rate_limit_disabled"`

	// Lockout settings for repeated failed logins.
	LockoutThreshold int           `koanf:"lockout_threshold"`
	LockoutWindow    time.Duration `koanf:"lockout_window"`
	LockoutDuration  time.Duration `koanf:"lockout_duration"`

	// WizardProgressTTL bounds how long a guest wizard progress token
	// stays valid.
	WizardProgressTTL time.Duration `koanf:"wizard_progress_ttl"`

	// PlexOwnerToken, when set, enables admin sign-in through the
	// plex.tv PIN flow for the server owner account.
	PlexOwnerToken string `koanf:"plex_owner_token"`
}

// SyncConfig holds background reconciliation settings.
type SyncConfig struct {
	Enabled  bool          `koanf:"enabled"`
	Interval time.Duration `koanf:"interval"`
	Timeout  time.Duration `koanf:"timeout"` // per-server budget
}

// JanitorConfig holds the maintenance sweep settings: invitation expiry,
// user expiry and token cleanup.
type JanitorConfig struct {
	Interval time.Duration `koanf:"interval"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
	// CaptureSize is the number of recent log lines kept for the SSE
	// log stream.
	CaptureSize int `koanf:"capture_size"`
}

// APIConfig holds request handling settings.
type APIConfig struct {
	DefaultPageSize int `koanf:"default_page_size"`
	MaxPageSize     int `koanf:"max_page_size"`
}

// IsDevelopment reports whether the server runs in development mode.
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Server.Environment, "development")
}

// Addr returns the host:port listen address.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// TrustedOriginSet returns the effective set of trusted browser origins:
// the configured list plus the origin of PublicURL.
func (c *Config) TrustedOriginSet() []string {
	origins := make([]string, 0, len(c.Security.TrustedOrigins)+1)
	origins = append(origins, c.Security.TrustedOrigins...)
	if c.Server.PublicURL != "" {
		if u, err := url.Parse(c.Server.PublicURL); err == nil && u.Scheme != "" && u.Host != "" {
			origins = append(origins, u.Scheme+"://"+u.Host)
		}
	}
	return origins
}

// Validate checks the configuration for fatal misconfiguration. It is
// called by Load after all layers are merged.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if len(c.Security.JWTSecret) < 32 {
		return fmt.Errorf("security.jwt_secret must be at least 32 characters (got %d)", len(c.Security.JWTSecret))
	}
	if c.Security.AccessTokenTTL <= 0 || c.Security.RefreshTokenTTL <= 0 {
		return fmt.Errorf("token TTLs must be positive")
	}
	if c.Security.RefreshTokenTTL <= c.Security.AccessTokenTTL {
		return fmt.Errorf("security.refresh_token_ttl must exceed access_token_ttl")
	}
	if c.Server.PublicURL != "" {
		u, err := url.Parse(c.Server.PublicURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("server.public_url %q is not an absolute URL", c.Server.PublicURL)
		}
	}
	if c.Sync.Enabled && c.Sync.Interval < time.Minute {
		return fmt.Errorf("sync.interval must be at least 1m (got %s)", c.Sync.Interval)
	}
	if c.API.MaxPageSize < c.API.DefaultPageSize {
		return fmt.Errorf("api.max_page_size must be >= api.default_page_size")
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "json", "console":
	default:
		return fmt.Errorf("logging.format %q must be json or console", c.Logging.Format)
	}
	return nil
}
