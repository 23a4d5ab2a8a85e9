package config

import (
	"os"
	"strings"
)

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files.
//
// Configuration is loaded from environment variables using the
// github.com/caarlos0/env library. See individual domain config
// files for details on available environment variables:
//   - auth.go: Authentication and session configuration
//   - database.go: Postgres and Redis configuration
//   - http.go: HTTP server configuration
type AppConfig struct {
	// IsDev controls development mode behavior.
	// Set DEV=true or NODE_ENV=development for development mode.
	IsDev bool `env:"DEV" envDefault:"false"`

	// Authentication configuration
	Auth AuthConfig

	// Database configuration
	Postgres DBConfig    `envPrefix:"DB_"`
	Redis    RedisConfig `envPrefix:"REDIS_"`

	// HTTP server configuration
	HTTP HTTPConfig
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment variables.
func (c *AppConfig) Sanitize() {
	c.HTTP.Sanitize()
	c.Auth.Sanitize()

	// Check NODE_ENV for dev mode
	c.detectDevMode()
}

// detectDevMode checks both DEV and NODE_ENV environment variables.
// NODE_ENV is checked as a fallback (common in frontend tooling).
// NODE_ENV=production also forces production cookies.
func (c *AppConfig) detectDevMode() {
	nodeEnv := strings.ToLower(os.Getenv("NODE_ENV"))
	if !c.IsDev {
		c.IsDev = nodeEnv == "development" || nodeEnv == "dev"
	}
	if nodeEnv == "production" {
		c.HTTP.Production = true
	}
}

// SecureCookies reports whether cookies must carry the Secure attribute regardless of request scheme.
func (c *AppConfig) SecureCookies() bool {
	return c.HTTP.Production && !c.IsDev
}
