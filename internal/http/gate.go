package httpx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/novakinetix/academy/config"
	domainauth "github.com/novakinetix/academy/internal/domain/auth"
	apperrors "github.com/novakinetix/academy/internal/errors"
	"github.com/novakinetix/academy/internal/ports"
	"github.com/novakinetix/academy/internal/service"
)

// SessionCookieName is the cookie carrying the server-side session id.
const SessionCookieName = "session_id"

// SessionResolver resolves a session id taken from the session cookie.
type SessionResolver interface {
	GetSession(ctx context.Context, sessionID string) (*domainauth.Session, error)
}

// PublicRoutes describes requests the gate lets through without evaluation.
type PublicRoutes struct {
	Paths    []string // exact matches
	Prefixes []string // segment-aware prefix matches
}

// DefaultPublicRoutes returns the public allow-list with the given sign-up path.
func DefaultPublicRoutes(signupPath string) PublicRoutes {
	if signupPath == "" {
		signupPath = config.DefaultSignupPath
	}
	return PublicRoutes{
		Paths: []string{
			"/",
			"/login",
			signupPath,
			"/reset-password",
			"/auth/callback",
			"/auth/auth-code-error",
			"/auth/login",
			"/auth/logout",
			"/auth/status",
			"/favicon.ico",
			"/healthz",
			"/readyz",
		},
		Prefixes: []string{"/static", "/auth/oauth"},
	}
}

// Matches reports whether path is public.
func (p PublicRoutes) Matches(path string) bool {
	for _, exact := range p.Paths {
		if path == exact {
			return true
		}
	}
	for _, prefix := range p.Prefixes {
		prefix = strings.TrimSuffix(prefix, "/")
		if prefix != "" && strings.HasPrefix(path, prefix) &&
			(len(path) == len(prefix) || path[len(prefix)] == '/') {
			return true
		}
	}
	return false
}

// GateResolvers groups the lookups the gate performs per request.
type GateResolvers struct {
	Sessions SessionResolver     // Required
	Profiles ports.ProfileReader // Required
}

// GateRouting groups the static routing tables.
type GateRouting struct {
	Registry *domainauth.RoleRegistry // Optional: defaults to domainauth.DefaultRegistry
	Public   *PublicRoutes            // Optional: defaults to DefaultPublicRoutes("")
}

// GateOptions groups dependencies for Gate.
type GateOptions struct {
	Resolvers GateResolvers
	Routing   GateRouting
	Logger    *slog.Logger
}

type gate struct {
	sessions SessionResolver
	profiles ports.ProfileReader
	registry *domainauth.RoleRegistry
	public   PublicRoutes
	logger   *slog.Logger
}

// Gate returns the request gate middleware. Every request is either passed
// through, sent to /login, or sent to the caller's own dashboard. The gate
// fails closed: any error or panic while resolving the session or role is
// treated as unauthenticated.
func Gate(opts GateOptions) func(http.Handler) http.Handler {
	if opts.Resolvers.Sessions == nil || opts.Resolvers.Profiles == nil {
		panic("httpx: Gate requires session and profile resolvers")
	}
	g := &gate{
		sessions: opts.Resolvers.Sessions,
		profiles: opts.Resolvers.Profiles,
		registry: opts.Routing.Registry,
		logger:   opts.Logger,
	}
	if g.registry == nil {
		g.registry = domainauth.DefaultRegistry()
	}
	if opts.Routing.Public != nil {
		g.public = *opts.Routing.Public
	} else {
		g.public = DefaultPublicRoutes("")
	}
	if g.logger == nil {
		g.logger = slog.Default()
	}
	g.logger = g.logger.With("component", "gate")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			g.serve(next, w, r)
		})
	}
}

func (g *gate) serve(next http.Handler, w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	if g.public.Matches(path) {
		next.ServeHTTP(w, r)
		return
	}

	session, err := g.resolveSession(r)
	if err != nil {
		if !errors.Is(err, errNoSession) && !errors.Is(err, service.ErrSessionNotFound) {
			g.logger.WarnContext(r.Context(), "session lookup failed", "path", path, "error", err)
		}
		http.Redirect(w, r, loginRedirectURL(path), http.StatusFound)
		return
	}

	profile, err := g.resolveProfile(r.Context(), session.UserID)
	if err != nil {
		g.logger.WarnContext(r.Context(), "role lookup failed",
			"path", path,
			"user_id", session.UserID,
			"error", err,
		)
		http.Redirect(w, r, loginRedirectURL(path), http.StatusFound)
		return
	}

	if !g.registry.Allows(profile.Role, path) {
		http.Redirect(w, r, g.registry.DashboardURLFor(profile.Role), http.StatusFound)
		return
	}

	ctx := SetSessionInContext(r.Context(), session)
	ctx = SetProfileInContext(ctx, profile)
	next.ServeHTTP(w, r.WithContext(ctx))
}

var errNoSession = errors.New("no session")

func (g *gate) resolveSession(r *http.Request) (session *domainauth.Session, err error) {
	defer func() {
		if p := recover(); p != nil {
			session, err = nil, fmt.Errorf("session lookup panicked: %v", p)
		}
	}()

	c, cookieErr := r.Cookie(SessionCookieName)
	if cookieErr != nil || c.Value == "" {
		return nil, errNoSession
	}
	session, err = g.sessions.GetSession(r.Context(), c.Value)
	if err != nil {
		return nil, err
	}
	if session == nil || session.UserID == "" {
		return nil, errNoSession
	}
	return session, nil
}

// resolveProfile returns the caller's profile as the store reports it. A missing
// profile resolves to a student placeholder; any other failure is returned.
func (g *gate) resolveProfile(ctx context.Context, userID string) (profile *domainauth.Profile, err error) {
	defer func() {
		if p := recover(); p != nil {
			profile, err = nil, fmt.Errorf("profile lookup panicked: %v", p)
		}
	}()

	stored, err := g.profiles.Get(ctx, userID)
	switch {
	case err == nil:
		return &stored, nil
	case apperrors.IsNotFound(err):
		return &domainauth.Profile{ID: userID, Role: domainauth.RoleStudent}, nil
	default:
		return nil, err
	}
}
