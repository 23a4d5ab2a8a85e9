package httpx

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"

	"github.com/novakinetix/academy/config"
	domainauth "github.com/novakinetix/academy/internal/domain/auth"
	"github.com/novakinetix/academy/internal/ports"
)

// DefaultLoginRateLimit is the per-IP password attempts allowed per minute.
const DefaultLoginRateLimit = 10

// RouterConfig holds HTTP-level settings.
type RouterConfig struct {
	SignupPath     string
	Cookies        CookieConfig
	AllowedHosts   []string
	LoginRateLimit int
}

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Auth     AuthServiceInterface // Required
	Logins   LoginCompleter       // Required
	Profiles ports.ProfileReader  // Required: role lookups for the gate
	Activity ActivityLister       // Optional: recent activity on dashboards
	// Providers lists the social login providers offered on the login page.
	Providers []string
	// Readiness maps dependency names to pingers for /readyz.
	Readiness map[string]Pinger
	Config    RouterConfig
	Logger    *slog.Logger
}

// NewRouter creates the chi router: security headers, the request gate, and
// every route the gateway serves.
func NewRouter(services RouterServices) http.Handler {
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}
	signupPath := services.Config.SignupPath
	if signupPath == "" {
		signupPath = config.DefaultSignupPath
	}
	registry := services.Logins.Registry()
	public := DefaultPublicRoutes(signupPath)

	authHandlers := NewAuthHandlers(services.Auth, services.Logins, services.Config.Cookies, logger)
	pages := &DashboardHandlers{
		Registry:   registry,
		Activity:   services.Activity,
		Providers:  services.Providers,
		SignupPath: signupPath,
		Logger:     logger,
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(Recover(logger))
	r.Use(Logging(logger))
	r.Use(SecureHeaders(SecureHeadersConfig{
		AllowedHosts: services.Config.AllowedHosts,
		Production:   services.Config.Cookies.Production,
		Logger:       logger,
	}))
	r.Use(Gate(GateOptions{
		Resolvers: GateResolvers{Sessions: services.Auth, Profiles: services.Profiles},
		Routing:   GateRouting{Registry: registry, Public: &public},
		Logger:    logger,
	}))

	r.Get("/healthz", healthHandler)
	r.Head("/healthz", healthHandler)
	r.Get("/readyz", readinessHandler(services.Readiness, logger))

	registerPublicPages(r, pages, signupPath)
	registerAuthRoutes(r, authHandlers, services.Config.LoginRateLimit)
	registerDashboards(r, pages, registry)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		WriteJSON(w, http.StatusNotFound, map[string]string{"error": "not_found", "message": "page not found"})
	})
	return r
}

func registerPublicPages(r chi.Router, pages *DashboardHandlers, signupPath string) {
	r.Get("/", pages.Home)
	r.Get("/login", pages.Login)
	r.Get(signupPath, pages.Signup)
	r.Get("/reset-password", pages.ResetPassword)
	r.Get(AuthErrorPath, pages.AuthCodeError)
}

func registerAuthRoutes(r chi.Router, h *AuthHandlers, loginRateLimit int) {
	if loginRateLimit <= 0 {
		loginRateLimit = DefaultLoginRateLimit
	}
	r.Get("/auth/oauth/{provider}", h.BeginOAuth)
	r.Get("/auth/callback", h.Callback)
	r.Get("/auth/status", h.Status)
	r.Post("/auth/logout", h.Logout)
	r.With(httprate.Limit(
		loginRateLimit,
		time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
			WriteJSON(w, http.StatusTooManyRequests, map[string]string{
				"error":   "rate_limited",
				"message": "too many login attempts, try again shortly",
			})
		}),
	)).Post("/auth/login", h.PasswordLogin)
}

// registerDashboards mounts every role's route prefixes on the dashboard handler.
func registerDashboards(r chi.Router, pages *DashboardHandlers, registry *domainauth.RoleRegistry) {
	seen := make(map[string]struct{})
	for _, prefix := range registry.Prefixes() {
		if _, dup := seen[prefix]; dup {
			continue
		}
		seen[prefix] = struct{}{}
		r.Get(prefix, pages.Dashboard)
		r.Get(prefix+"/*", pages.Dashboard)
	}
}
