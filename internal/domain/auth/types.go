package auth

// Package auth contains domain-level types for authentication, sessions and
// role-based routing. It is pure and free of framework/adapter concerns.

import (
	"strings"
	"time"
)

// Identity represents the authenticated principal returned by a credential provider.
// Adapters map provider-specific claims into this shape.
type Identity struct {
	UserID         string // stable user identifier (provider subject or credential id)
	Email          string
	FullName       string
	EmailConfirmed bool
	CreatedAt      time.Time
	Provider       string // "email", "google", "dev", ...
}

// Session is the server-side record we persist for an authenticated user.
// ID is an opaque session identifier. Role is deliberately absent: it is
// resolved from the profile store on every gated request.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	Provider  string    `json:"provider"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the session is past its expiry at now.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// Grant is what a successful sign-in or code exchange yields.
type Grant struct {
	Identity Identity
	Session  Session
}

// Complete reports whether both the user and the session are present.
func (g *Grant) Complete() bool {
	return g != nil && g.Identity.UserID != "" && g.Session.ID != ""
}

// Profile is the persisted account record that carries the user's role.
type Profile struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	FullName      string     `json:"full_name"`
	Role          Role       `json:"role"`
	EmailVerified bool       `json:"email_verified"`
	FirstLogin    bool       `json:"first_login"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	LastLogin     *time.Time `json:"last_login,omitempty"`
}

// DisplayName returns the full name, or the email local part when no name is known.
func DisplayName(fullName, email string) string {
	if n := strings.TrimSpace(fullName); n != "" {
		return n
	}
	local, _, _ := strings.Cut(email, "@")
	return local
}

// ActivityType enumerates the kinds of audit rows the gateway writes.
type ActivityType string

const (
	ActivityLogin        ActivityType = "login"
	ActivitySocialLogin  ActivityType = "social_login"
	ActivitySocialSignup ActivityType = "social_signup"
	ActivityLogout       ActivityType = "logout"
	ActivityAdminAction  ActivityType = "admin_action"
)

// Activity is an append-only audit row.
type Activity struct {
	ID          string         `json:"id"`
	UserID      string         `json:"user_id"`
	Type        ActivityType   `json:"activity_type"`
	Description string         `json:"description"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Credential is a password login record owned by the credential provider.
type Credential struct {
	UserID         string
	Email          string
	PasswordHash   string
	EmailConfirmed bool
	CreatedAt      time.Time
}
