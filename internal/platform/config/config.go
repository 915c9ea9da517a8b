// Copyright (c) 2026 Lumenbase. All rights reserved.
// Author: platform@lumenbase.app

/*
Package config handles application-wide settings and environment parsing.

It leverages 'caarlos0/env' to map OS environment variables into a strongly-typed
Go struct, providing early validation and default values.

Usage:

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}

Architecture:

  - Immutability: Once loaded, configuration is read-only.
  - DI-Friendly: Passed to core components (DB, Redis) via constructors.
  - Zero Hidden State: No global variables are used to store config.

This ensures the application is Twelve-Factor compliant by storing config in the env.
*/
package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

// # Configuration Schema

// Config holds all runtime configuration for the Lumenbase accounts server.
type Config struct {

	// Server settings
	ServerPort  string `env:"SERVER_PORT"  envDefault:"8080"`
	Environment string `env:"ENVIRONMENT"  envDefault:"development"`
	Debug       bool   `env:"DEBUG"        envDefault:"false"`

	// PublicBaseURL is the externally visible origin of this service,
	// used to build provider callback URLs.
	PublicBaseURL string `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:8080"`

	// Relational Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL,required"`

	// MigrationPath is the filesystem path to the SQL migrations directory.
	MigrationPath string `env:"MIGRATION_PATH" envDefault:"./data/migrations"`

	// Key-Value Cache (Redis)
	RedisURL string `env:"REDIS_URL,required"`

	// Token signing secrets. Two independent secrets so possession of one
	// cannot forge tokens of the other type. Both are mandatory: the server
	// must never fall back to a default secret in production.
	AccessTokenSecret  string `env:"ACCESS_TOKEN_SECRET,required"`
	RefreshTokenSecret string `env:"REFRESH_TOKEN_SECRET,required"`

	// Identity providers (OAuth sign-in)
	GitHubClientID     string `env:"GITHUB_CLIENT_ID,required"`
	GitHubClientSecret string `env:"GITHUB_CLIENT_SECRET,required"`
	GoogleClientID     string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET"`

	// AdminEmails is the comma-separated allow-list consumed by sec.AdminPolicy.
	// It is the single source of truth for the admin role.
	AdminEmails string `env:"ADMIN_EMAILS"`

	// Cross-Origin Resource Sharing
	AllowedOrigins string `env:"ALLOWED_ORIGINS" envDefault:"https://lumenbase.app,https://www.lumenbase.app"`

	// AllowedSchemes lists custom URI schemes accepted as CORS origins and
	// deep-link targets for desktop-application callbacks.
	AllowedSchemes string `env:"ALLOWED_SCHEMES" envDefault:"lumenstudio"`
}

// # Configuration Loading

// Load parses environment variables into a [Config] struct.
func Load() (*Config, error) {

	// Initialize an empty config struct
	cfg := &Config{}

	// Use the 'env' package to map environment variables to struct fields.
	// This will fail if any field marked with 'required' is missing.
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	// The two signing secrets must be independent or the token-type claim is
	// the only thing standing between a refresh token and an access token.
	if cfg.AccessTokenSecret == cfg.RefreshTokenSecret {
		return nil, fmt.Errorf("config: ACCESS_TOKEN_SECRET and REFRESH_TOKEN_SECRET must differ")
	}

	return cfg, nil
}

// IsDevelopment reports whether the server is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction reports whether the server is running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// SplitAdminEmails returns the parsed admin allow-list, trimmed and lowercased.
func (c *Config) SplitAdminEmails() []string {
	return splitList(c.AdminEmails)
}

// SplitAllowedOrigins returns the parsed CORS origin allow-list.
func (c *Config) SplitAllowedOrigins() []string {
	return splitList(c.AllowedOrigins)
}

// SplitAllowedSchemes returns the parsed custom URI scheme allow-list.
func (c *Config) SplitAllowedSchemes() []string {
	return splitList(c.AllowedSchemes)
}

// splitList splits a comma-separated env value into trimmed, lowercased entries.
func splitList(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.ToLower(strings.TrimSpace(part))
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
