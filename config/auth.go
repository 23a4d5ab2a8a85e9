package config

import (
	"fmt"
	"strings"
	"time"
)

// AuthMode represents the authentication mode for the application.
type AuthMode string

const (
	// AuthModeOAuth uses OAuth/OIDC for social login.
	AuthModeOAuth AuthMode = "oauth"
	// AuthModeMock uses mock/dev authentication (for development only).
	AuthModeMock AuthMode = "mock"
)

// DefaultSignupPath is the one place the sign-up route is spelled.
// The request gate's public allow-list and any link targets read it from AuthConfig.
const DefaultSignupPath = "/signup"

// UnmarshalText implements encoding.TextUnmarshaler for AuthMode.
func (a *AuthMode) UnmarshalText(text []byte) error {
	v := strings.ToLower(string(text))
	switch v {
	case "oauth", "mock":
		*a = AuthMode(v)
		return nil
	default:
		return fmt.Errorf("invalid AuthMode: %q (valid options: oauth, mock)", v)
	}
}

// OAuthConfig contains OAuth/OIDC configuration for the social login provider.
type OAuthConfig struct {
	// Provider is the name used in /auth/oauth/{provider}.
	Provider     string `env:"PROVIDER"      envDefault:"google"`
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	RedirectURL  string `env:"REDIRECT_URL"  envDefault:"http://localhost:8080/auth/callback"`
	Scope        string `env:"SCOPE"         envDefault:"openid profile email"`
	DiscoveryURL string `env:"DISCOVERY_URL" envDefault:"https://accounts.google.com"`
}

// DevAuthConfig controls mock/dev authentication identity.
// Used when AUTH_MODE=mock for development and testing.
type DevAuthConfig struct {
	UserID   string `env:"USER_ID"   envDefault:"00000000-0000-0000-0000-000000000001"`
	Email    string `env:"EMAIL"     envDefault:"dev@example.com"`
	FullName string `env:"FULL_NAME" envDefault:"Dev User"`
}

// BootstrapRolesConfig lists the email addresses that receive a non-student role
// the first time a profile is provisioned for them. Everyone else starts as a student.
type BootstrapRolesConfig struct {
	AdminEmails  []string `env:"ADMIN_EMAILS"  envSeparator:","`
	InternEmails []string `env:"INTERN_EMAILS" envSeparator:","`
	ParentEmails []string `env:"PARENT_EMAILS" envSeparator:","`
}

// AuthConfig groups all authentication-related configuration.
type AuthConfig struct {
	// Mode determines which social login provider to use.
	Mode AuthMode `env:"AUTH_MODE" envDefault:"oauth"`

	// OAuth configuration (used when Mode=oauth).
	OAuth OAuthConfig `envPrefix:"OAUTH_"`

	// DevAuth configuration (used when Mode=mock).
	DevAuth DevAuthConfig `envPrefix:"DEV_AUTH_"`

	// Bootstrap role allow-lists for profile provisioning.
	Bootstrap BootstrapRolesConfig `envPrefix:"AUTH_BOOTSTRAP_"`

	// SessionTTL is the lifetime of a session and of its cookie.
	SessionTTL time.Duration `env:"AUTH_SESSION_TTL" envDefault:"168h"`

	// SignupPath is the public sign-up route.
	SignupPath string `env:"AUTH_SIGNUP_PATH" envDefault:"/signup"`

	// LoginRateLimit is the number of password sign-in attempts allowed per IP per minute.
	LoginRateLimit int `env:"AUTH_LOGIN_RATE_LIMIT" envDefault:"10"`
}

// Sanitize applies guardrails to auth configuration values.
func (a *AuthConfig) Sanitize() {
	if a.SessionTTL <= 0 {
		a.SessionTTL = 7 * 24 * time.Hour
	}
	a.SignupPath = strings.TrimSpace(a.SignupPath)
	if a.SignupPath == "" || !strings.HasPrefix(a.SignupPath, "/") {
		a.SignupPath = DefaultSignupPath
	}
	if a.LoginRateLimit <= 0 {
		a.LoginRateLimit = 10
	}
	a.OAuth.Provider = strings.ToLower(strings.TrimSpace(a.OAuth.Provider))
	a.Bootstrap.AdminEmails = normalizeEmails(a.Bootstrap.AdminEmails)
	a.Bootstrap.InternEmails = normalizeEmails(a.Bootstrap.InternEmails)
	a.Bootstrap.ParentEmails = normalizeEmails(a.Bootstrap.ParentEmails)
}

func normalizeEmails(in []string) []string {
	out := make([]string, 0, len(in))
	for _, e := range in {
		if v := strings.ToLower(strings.TrimSpace(e)); v != "" {
			out = append(out, v)
		}
	}
	return out
}
