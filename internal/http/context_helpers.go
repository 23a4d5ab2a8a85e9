package httpx

import (
	"context"

	domainauth "github.com/novakinetix/academy/internal/domain/auth"
)

// Unexported context key types to avoid collisions across packages.
// Centralized in this file so all handlers/middleware use the same keys.
type (
	sessionKey struct{}
	profileKey struct{}
)

// SetSessionInContext returns a child context that carries the given session.
// If session is nil, the original ctx is returned unchanged.
func SetSessionInContext(ctx context.Context, session *domainauth.Session) context.Context {
	if session == nil {
		return ctx
	}
	return context.WithValue(ctx, sessionKey{}, session)
}

// GetUserSessionFromContext returns the user session from context and a boolean indicating presence.
func GetUserSessionFromContext(ctx context.Context) (*domainauth.Session, bool) {
	if session, ok := ctx.Value(sessionKey{}).(*domainauth.Session); ok && session != nil {
		return session, true
	}
	return nil, false
}

// GetSessionFromContext retrieves the session from the request context.
func GetSessionFromContext(ctx context.Context) *domainauth.Session {
	if s, ok := GetUserSessionFromContext(ctx); ok {
		return s
	}
	return nil
}

// SetProfileInContext returns a child context carrying the resolved profile.
func SetProfileInContext(ctx context.Context, profile *domainauth.Profile) context.Context {
	if profile == nil {
		return ctx
	}
	return context.WithValue(ctx, profileKey{}, profile)
}

// GetProfileFromContext returns the profile the gate resolved, if any.
func GetProfileFromContext(ctx context.Context) (*domainauth.Profile, bool) {
	if p, ok := ctx.Value(profileKey{}).(*domainauth.Profile); ok && p != nil {
		return p, true
	}
	return nil, false
}
