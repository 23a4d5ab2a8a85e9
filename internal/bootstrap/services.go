package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/novakinetix/academy/config"
	"github.com/novakinetix/academy/internal/adapters/authroles"
	"github.com/novakinetix/academy/internal/data"
	"github.com/novakinetix/academy/internal/service"
)

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Auth     *service.AuthService
	Logins   *service.CallbackService
	Activity *service.ActivityRecorder
	Profiles *data.ProfileRepo
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// NewServices builds every service from its stores. Nothing is shared through
// package state; each constructor receives what it uses.
func NewServices(ctx context.Context, deps *ServiceDeps) (ServiceContainer, error) {
	if deps == nil || deps.Config == nil {
		return ServiceContainer{}, errors.New("service deps with config are required")
	}
	if deps.DB == nil {
		return ServiceContainer{}, errors.New("services require a database")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := deps.Config

	auth, err := BuildAuthService(ctx, AuthConfig{
		Auth:        cfg.Auth,
		RedisConfig: cfg.Redis,
		Clients:     AuthClients{Redis: deps.RedisClient, DB: deps.DB},
		Logger:      logger,
	})
	if err != nil {
		return ServiceContainer{}, err
	}

	profiles := data.NewProfileRepo(deps.DB)
	activities := data.NewActivityRepo(deps.DB)
	allow := authroles.NewAllowList(
		cfg.Auth.Bootstrap.AdminEmails,
		cfg.Auth.Bootstrap.InternEmails,
		cfg.Auth.Bootstrap.ParentEmails,
	)

	return ServiceContainer{
		Auth: auth,
		Logins: service.NewCallbackService(service.CallbackServiceOptions{
			Stores: service.CallbackStores{Profiles: profiles, Activities: activities},
			Roles:  service.CallbackRoles{Assigner: allow},
			Logger: logger,
		}),
		Activity: service.NewActivityRecorder(activities, logger),
		Profiles: profiles,
	}, nil
}
