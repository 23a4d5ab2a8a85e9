package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/novakinetix/academy/config"
	"github.com/novakinetix/academy/internal/adapters/devauth"
	"github.com/novakinetix/academy/internal/adapters/oidc"
	redisadapter "github.com/novakinetix/academy/internal/adapters/redis"
	"github.com/novakinetix/academy/internal/data"
	"github.com/novakinetix/academy/internal/ports"
	"github.com/novakinetix/academy/internal/service"
)

// AuthConfig contains configuration for the credential provider.
type AuthConfig struct {
	Auth        config.AuthConfig
	RedisConfig config.RedisConfig
	Clients     AuthClients
	Logger      *slog.Logger
}

// AuthClients holds the connections the credential provider stores data in.
type AuthClients struct {
	Redis redis.UniversalClient // Required: sessions
	DB    *sql.DB               // Optional: password sign-in is disabled without it
}

// BuildAuthService creates the credential provider for the configured auth mode.
func BuildAuthService(ctx context.Context, cfg AuthConfig) (*service.AuthService, error) {
	if cfg.Clients.Redis == nil {
		return nil, errors.New("auth service requires a redis client")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	name, provider, err := buildProvider(ctx, cfg.Auth)
	if err != nil {
		return nil, err
	}

	stores := service.AuthStores{
		Sessions: redisadapter.NewSessionStore(cfg.Clients.Redis,
			redisadapter.WithPrefix(cfg.RedisConfig.SessionPrefix)),
	}
	if cfg.Clients.DB != nil {
		stores.Credentials = data.NewCredentialRepo(cfg.Clients.DB)
	} else {
		logger.WarnContext(ctx, "password sign-in disabled: database not configured")
	}

	logger.InfoContext(ctx, "auth provider configured", "mode", cfg.Auth.Mode, "provider", name)
	return service.NewAuthService(service.AuthServiceOptions{
		Providers: map[string]ports.AuthProvider{name: provider},
		Stores:    stores,
		Config: service.AuthServiceConfig{
			SessionTTL: cfg.Auth.SessionTTL,
			Logger:     logger,
		},
	}), nil
}

//nolint:ireturn // the provider is chosen by auth mode at runtime.
func buildProvider(ctx context.Context, auth config.AuthConfig) (string, ports.AuthProvider, error) {
	switch auth.Mode {
	case config.AuthModeMock:
		prov, err := devauth.NewProvider(devauth.Config{
			UserID:   auth.DevAuth.UserID,
			Email:    auth.DevAuth.Email,
			FullName: auth.DevAuth.FullName,
		})
		if err != nil {
			return "", nil, fmt.Errorf("create dev auth provider: %w", err)
		}
		return devauth.ProviderName, prov, nil

	case config.AuthModeOAuth:
		oauth := auth.OAuth
		prov, err := oidc.NewProvider(ctx, oidc.ProviderConfig{
			Name:         oauth.Provider,
			ClientID:     oauth.ClientID,
			ClientSecret: oauth.ClientSecret,
			RedirectURL:  oauth.RedirectURL,
			Scope:        oauth.Scope,
			DiscoveryURL: oauth.DiscoveryURL,
		})
		if err != nil {
			return "", nil, fmt.Errorf("create OIDC provider: %w", err)
		}
		name := oauth.Provider
		if name == "" {
			name = "oidc"
		}
		return name, prov, nil

	default:
		return "", nil, fmt.Errorf("unsupported auth mode %q", auth.Mode)
	}
}
