package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/novakinetix/academy/config"
	httpx "github.com/novakinetix/academy/internal/http"
)

const shutdownWaitTimeout = 10 * time.Second

// HTTPServerConfig contains configuration for HTTP server.
type HTTPServerConfig struct {
	Config   *config.AppConfig
	Services ServiceContainer
	Probes   ReadinessProbes
}

// ReadinessProbes are the backing stores reported by /readyz.
type ReadinessProbes struct {
	DB    *sql.DB
	Redis redis.UniversalClient
}

// BuildHTTPHandler wires the services into the gateway router.
func BuildHTTPHandler(cfg *HTTPServerConfig, logger *slog.Logger) (http.Handler, error) {
	if cfg == nil || cfg.Config == nil {
		return nil, errors.New("http server config is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	appCfg := cfg.Config

	return httpx.NewRouter(httpx.RouterServices{
		Auth:      cfg.Services.Auth,
		Logins:    cfg.Services.Logins,
		Profiles:  cfg.Services.Profiles,
		Activity:  cfg.Services.Activity,
		Providers: cfg.Services.Auth.Providers(),
		Readiness: readinessPingers(cfg.Probes),
		Config: httpx.RouterConfig{
			SignupPath: appCfg.Auth.SignupPath,
			Cookies: httpx.CookieConfig{
				Domain:     appCfg.HTTP.CookieDomain,
				Production: appCfg.SecureCookies(),
			},
			AllowedHosts:   appCfg.HTTP.AllowedHosts,
			LoginRateLimit: appCfg.Auth.LoginRateLimit,
		},
		Logger: logger,
	}), nil
}

func readinessPingers(p ReadinessProbes) map[string]httpx.Pinger {
	pingers := make(map[string]httpx.Pinger, 2)
	if p.DB != nil {
		pingers["postgres"] = httpx.PingFunc(p.DB.PingContext)
	}
	if p.Redis != nil {
		client := p.Redis
		pingers["redis"] = httpx.PingFunc(func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		})
	}
	return pingers
}

func newServer(addr string, handler http.Handler) *http.Server {
	// Guard against empty addr to avoid listening on Go default
	if addr == "" {
		addr = ":8080"
	}
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

// ServeHTTP runs the server until ctx is canceled, then shuts it down gracefully.
func ServeHTTP(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	server := newServer(addr, handler)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.InfoContext(gctx, "starting HTTP server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownWaitTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		logger.Info("HTTP server stopped")
		return nil
	})
	return g.Wait()
}
