package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	domainauth "github.com/novakinetix/academy/internal/domain/auth"
	apperrors "github.com/novakinetix/academy/internal/errors"
	"github.com/novakinetix/academy/internal/ports"
)

// PasswordProvider is the provider name recorded for password sign-ins.
const PasswordProvider = "email"

// DefaultSessionTTL is used when AuthServiceConfig.SessionTTL is unset.
const DefaultSessionTTL = 7 * 24 * time.Hour

const minPasswordLength = 8

var (
	// ErrInvalidCredentials covers both unknown emails and wrong passwords.
	ErrInvalidCredentials = errors.New("invalid login credentials")
	// ErrEmailNotConfirmed is returned when the account exists but its email is unconfirmed.
	ErrEmailNotConfirmed = errors.New("please confirm your email address before signing in")
	// ErrSessionNotFound is returned for absent or expired sessions.
	ErrSessionNotFound = errors.New("session not found")
	// ErrUnknownProvider is returned for social providers that are not configured.
	ErrUnknownProvider = errors.New("unknown auth provider")
	// ErrWeakPassword is returned when a new password is too short.
	ErrWeakPassword = fmt.Errorf("password must be at least %d characters", minPasswordLength)
)

// AuthStores groups the persistence ports used by AuthService.
type AuthStores struct {
	Sessions    ports.SessionStore    // Required
	Credentials ports.CredentialStore // Optional: password sign-in is disabled without it
}

// AuthServiceConfig holds tunables for AuthService.
type AuthServiceConfig struct {
	SessionTTL time.Duration
	Logger     *slog.Logger
	Now        func() time.Time // Optional: defaults to time.Now
}

// AuthServiceOptions groups dependencies for AuthService.
type AuthServiceOptions struct {
	Providers map[string]ports.AuthProvider // Social login providers keyed by name
	Stores    AuthStores
	Config    AuthServiceConfig
}

// AuthService is the credential provider: it signs users in with a password or
// a social provider and issues server-side sessions.
type AuthService struct {
	providers   map[string]ports.AuthProvider
	sessions    ports.SessionStore
	credentials ports.CredentialStore
	ttl         time.Duration
	logger      *slog.Logger
	now         func() time.Time
}

// NewAuthService constructs a new AuthService. It panics if the session store is nil.
func NewAuthService(opts AuthServiceOptions) *AuthService {
	if opts.Stores.Sessions == nil {
		panic("service: AuthService requires a session store")
	}
	providers := make(map[string]ports.AuthProvider, len(opts.Providers))
	for name, p := range opts.Providers {
		if p != nil {
			providers[strings.ToLower(name)] = p
		}
	}
	ttl := opts.Config.SessionTTL
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	now := opts.Config.Now
	if now == nil {
		now = time.Now
	}
	logger := opts.Config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		providers:   providers,
		sessions:    opts.Stores.Sessions,
		credentials: opts.Stores.Credentials,
		ttl:         ttl,
		logger:      logger.With("component", "auth_service"),
		now:         now,
	}
}

// SessionTTL returns the lifetime given to new sessions.
func (s *AuthService) SessionTTL() time.Duration { return s.ttl }

// Providers returns the configured social provider names in sorted order.
func (s *AuthService) Providers() []string {
	names := make([]string, 0, len(s.providers))
	for name := range s.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BeginLoginResult contains the result of beginning a social login flow.
type BeginLoginResult struct {
	Provider string
	AuthURL  string
	State    string
	Nonce    string
}

// BeginOAuth starts a social login with the named provider.
func (s *AuthService) BeginOAuth(ctx context.Context, provider, redirectTo string) (*BeginLoginResult, error) {
	name, p, err := s.provider(provider)
	if err != nil {
		return nil, err
	}
	if redirectTo == "" {
		redirectTo = "/"
	}

	authURL, state, nonce, err := p.Begin(ctx, ports.BeginInput{RedirectURL: redirectTo})
	if err != nil {
		return nil, fmt.Errorf("begin auth flow: %w", err)
	}
	return &BeginLoginResult{Provider: name, AuthURL: authURL, State: state, Nonce: nonce}, nil
}

// ExchangeInput groups parameters for completing a social login.
type ExchangeInput struct {
	Provider string // Optional when exactly one provider is configured
	Code     string
	State    string
	Nonce    string
}

// ExchangeCodeForSession trades an authorization code for an identity and a fresh session.
func (s *AuthService) ExchangeCodeForSession(ctx context.Context, in ExchangeInput) (*domainauth.Grant, error) {
	if in.Code == "" {
		return nil, errors.New("authorization code is required")
	}
	_, p, err := s.provider(in.Provider)
	if err != nil {
		return nil, err
	}

	identity, err := p.Exchange(ctx, ports.ExchangeInput{Code: in.Code, State: in.State, Nonce: in.Nonce})
	if err != nil {
		return nil, fmt.Errorf("exchange authorization code: %w", err)
	}
	return s.issueSession(ctx, identity)
}

// SignInWithPassword checks an email/password pair and issues a session.
func (s *AuthService) SignInWithPassword(ctx context.Context, email, password string) (*domainauth.Grant, error) {
	if s.credentials == nil {
		return nil, ErrInvalidCredentials
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	cred, err := s.credentials.GetByEmail(ctx, email)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("load credential: %w", err)
	}
	if cmpErr := bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(password)); cmpErr != nil {
		return nil, ErrInvalidCredentials
	}
	if !cred.EmailConfirmed {
		return nil, ErrEmailNotConfirmed
	}

	return s.issueSession(ctx, domainauth.Identity{
		UserID:         cred.UserID,
		Email:          cred.Email,
		EmailConfirmed: true,
		CreatedAt:      cred.CreatedAt,
		Provider:       PasswordProvider,
	})
}

// GetSession retrieves a live session by ID.
func (s *AuthService) GetSession(ctx context.Context, sessionID string) (*domainauth.Session, error) {
	if sessionID == "" {
		return nil, ErrSessionNotFound
	}

	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}

	if session.Expired(s.now()) {
		if deleteErr := s.sessions.Delete(ctx, sessionID); deleteErr != nil {
			return nil, errors.Join(ErrSessionNotFound, fmt.Errorf("delete session: %w", deleteErr))
		}
		return nil, ErrSessionNotFound
	}

	return &session, nil
}

// SignOut removes a session. An empty ID is a no-op.
func (s *AuthService) SignOut(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// CreateAccountInput carries the fields for a new password account.
type CreateAccountInput struct {
	Email     string
	Password  string
	Confirmed bool
}

// CreatePasswordAccount stores a bcrypt-hashed credential under a new user id.
func (s *AuthService) CreatePasswordAccount(ctx context.Context, in CreateAccountInput) (domainauth.Credential, error) {
	if s.credentials == nil {
		return domainauth.Credential{}, errors.New("password accounts are not configured")
	}
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" || !strings.Contains(email, "@") {
		return domainauth.Credential{}, apperrors.ValidationField("email", "a valid email is required")
	}
	if len(in.Password) < minPasswordLength {
		return domainauth.Credential{}, ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return domainauth.Credential{}, fmt.Errorf("hash password: %w", err)
	}
	cred := domainauth.Credential{
		UserID:         uuid.NewString(),
		Email:          email,
		PasswordHash:   string(hash),
		EmailConfirmed: in.Confirmed,
		CreatedAt:      s.now(),
	}
	if err := s.credentials.Create(ctx, cred); err != nil {
		return domainauth.Credential{}, fmt.Errorf("create credential: %w", err)
	}
	return cred, nil
}

func (s *AuthService) issueSession(ctx context.Context, identity domainauth.Identity) (*domainauth.Grant, error) {
	now := s.now()
	session := domainauth.Session{
		ID:        uuid.NewString(),
		UserID:    identity.UserID,
		Email:     identity.Email,
		Provider:  identity.Provider,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if identity.UserID == "" {
		// No user, no session: the grant comes back incomplete.
		return &domainauth.Grant{Identity: identity}, nil
	}
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	s.logger.DebugContext(ctx, "session issued", "user_id", identity.UserID, "provider", identity.Provider)
	return &domainauth.Grant{Identity: identity, Session: session}, nil
}

func (s *AuthService) provider(name string) (string, ports.AuthProvider, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" && len(s.providers) == 1 {
		for only, p := range s.providers {
			return only, p, nil
		}
	}
	p, ok := s.providers[name]
	if !ok {
		return "", nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
	return name, p, nil
}
