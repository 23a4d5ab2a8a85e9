package bootstrap

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/novakinetix/academy/config"
)

// InitLogger initializes the structured logger. LOG_LEVEL=debug enables debug output.
func InitLogger() *slog.Logger {
	level := slog.LevelInfo
	if strings.EqualFold(os.Getenv("LOG_LEVEL"), "debug") {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	return logger
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (config.AppConfig, error) {
	// Load .env file if it exists (development)
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return config.AppConfig{}, fmt.Errorf("load .env file: %w", err)
		}
	}

	var cfg config.AppConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}

	cfg.Sanitize()
	return cfg, nil
}

// ValidateAuthConfig checks that the selected auth mode has what it needs.
func ValidateAuthConfig(cfg *config.AppConfig) error {
	if cfg == nil {
		return errors.New("config is required")
	}
	switch cfg.Auth.Mode {
	case config.AuthModeMock:
		if cfg.Auth.DevAuth.UserID == "" || cfg.Auth.DevAuth.Email == "" {
			return errors.New("AUTH_MODE=mock requires DEV_AUTH_USER_ID and DEV_AUTH_EMAIL")
		}
		if cfg.HTTP.Production && !cfg.IsDev {
			return errors.New("AUTH_MODE=mock is not allowed in production")
		}
	case config.AuthModeOAuth:
		o := cfg.Auth.OAuth
		var missing []string
		if o.ClientID == "" {
			missing = append(missing, "OAUTH_CLIENT_ID")
		}
		if o.ClientSecret == "" {
			missing = append(missing, "OAUTH_CLIENT_SECRET")
		}
		if o.DiscoveryURL == "" {
			missing = append(missing, "OAUTH_DISCOVERY_URL")
		}
		if len(missing) > 0 {
			return fmt.Errorf("AUTH_MODE=oauth requires %s", strings.Join(missing, ", "))
		}
	default:
		return fmt.Errorf("unsupported auth mode %q", cfg.Auth.Mode)
	}
	return nil
}
