package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"golang.org/x/crypto/bcrypt"

	domainauth "github.com/novakinetix/academy/internal/domain/auth"
	"github.com/novakinetix/academy/internal/mocks"
	doubles "github.com/novakinetix/academy/internal/mocks/auth"
	"github.com/novakinetix/academy/internal/ports"
	"github.com/novakinetix/academy/internal/testutil"
)

func newTestAuthService(t *testing.T, now time.Time) (*AuthService, *doubles.MemorySessionStore, *doubles.MemoryCredentialStore, *doubles.MockAuthProvider) {
	t.Helper()
	sessions := doubles.NewMemorySessionStore()
	creds := doubles.NewMemoryCredentialStore()
	idp := doubles.NewMockAuthProvider()
	svc := NewAuthService(AuthServiceOptions{
		Providers: map[string]ports.AuthProvider{"Google": idp},
		Stores:    AuthStores{Sessions: sessions, Credentials: creds},
		Config: AuthServiceConfig{
			SessionTTL: time.Hour,
			Logger:     testutil.DiscardLogger(),
			Now:        testutil.FixedTimeFunc(now),
		},
	})
	return svc, sessions, creds, idp
}

func seedCredential(t *testing.T, store *doubles.MemoryCredentialStore, email, password string, confirmed bool) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, store.Create(context.Background(), domainauth.Credential{
		UserID:         "user-" + email,
		Email:          email,
		PasswordHash:   string(hash),
		EmailConfirmed: confirmed,
	}))
}

func TestNewAuthService_PanicsWithoutSessionStore(t *testing.T) {
	assert.Panics(t, func() { NewAuthService(AuthServiceOptions{}) })
}

func TestAuthService_Defaults(t *testing.T) {
	svc := NewAuthService(AuthServiceOptions{Stores: AuthStores{Sessions: doubles.NewMemorySessionStore()}})
	assert.Equal(t, DefaultSessionTTL, svc.SessionTTL())
	assert.Empty(t, svc.Providers())
}

func TestAuthService_BeginOAuth(t *testing.T) {
	svc, _, _, _ := newTestAuthService(t, testutil.TestTime())

	assert.Equal(t, []string{"google"}, svc.Providers())

	res, err := svc.BeginOAuth(context.Background(), "GOOGLE", "")
	require.NoError(t, err)
	assert.Equal(t, "google", res.Provider)
	assert.Equal(t, "https://mock-idp/auth", res.AuthURL)
	assert.Equal(t, "state-1", res.State)
	assert.Equal(t, "nonce-1", res.Nonce)

	_, err = svc.BeginOAuth(context.Background(), "github", "/")
	require.ErrorIs(t, err, ErrUnknownProvider)
}

func TestAuthService_ExchangeCodeForSession(t *testing.T) {
	now := testutil.TestTime()
	svc, sessions, _, _ := newTestAuthService(t, now)

	grant, err := svc.ExchangeCodeForSession(context.Background(), ExchangeInput{Code: "abc", State: "s"})
	require.NoError(t, err)
	require.True(t, grant.Complete())
	assert.Equal(t, "mock-user-1", grant.Session.UserID)
	assert.Equal(t, now.Add(time.Hour), grant.Session.ExpiresAt)
	assert.Equal(t, 1, sessions.Len())
}

func TestAuthService_ExchangeCodeForSession_Errors(t *testing.T) {
	svc, sessions, _, idp := newTestAuthService(t, testutil.TestTime())

	_, err := svc.ExchangeCodeForSession(context.Background(), ExchangeInput{})
	require.Error(t, err)

	idp.ExchangeFunc = func(context.Context, ports.ExchangeInput) (domainauth.Identity, error) {
		return domainauth.Identity{}, errors.New("bad code")
	}
	_, err = svc.ExchangeCodeForSession(context.Background(), ExchangeInput{Code: "x"})
	require.ErrorContains(t, err, "bad code")
	assert.Zero(t, sessions.Len())
}

func TestAuthService_ExchangeWithoutUserIsIncomplete(t *testing.T) {
	svc, sessions, _, idp := newTestAuthService(t, testutil.TestTime())
	idp.ExchangeFunc = func(context.Context, ports.ExchangeInput) (domainauth.Identity, error) {
		return domainauth.Identity{Email: "nobody@example.com"}, nil
	}

	grant, err := svc.ExchangeCodeForSession(context.Background(), ExchangeInput{Code: "x"})
	require.NoError(t, err)
	assert.False(t, grant.Complete())
	assert.Zero(t, sessions.Len())
}

func TestAuthService_SignInWithPassword(t *testing.T) {
	svc, sessions, creds, _ := newTestAuthService(t, testutil.TestTime())
	seedCredential(t, creds, "ann@example.com", "correct-horse", true)
	seedCredential(t, creds, "bob@example.com", "correct-horse", false)

	tests := []struct {
		name     string
		email    string
		password string
		wantErr  error
	}{
		{name: "ok", email: " Ann@Example.com ", password: "correct-horse"},
		{name: "wrong password", email: "ann@example.com", password: "nope", wantErr: ErrInvalidCredentials},
		{name: "unknown email", email: "who@example.com", password: "correct-horse", wantErr: ErrInvalidCredentials},
		{name: "empty", wantErr: ErrInvalidCredentials},
		{name: "unconfirmed", email: "bob@example.com", password: "correct-horse", wantErr: ErrEmailNotConfirmed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			grant, err := svc.SignInWithPassword(context.Background(), tt.email, tt.password)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "user-ann@example.com", grant.Identity.UserID)
			assert.Equal(t, PasswordProvider, grant.Session.Provider)
		})
	}
	assert.Equal(t, 1, sessions.Len())
}

func TestAuthService_SignInWithPassword_StoreFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	creds := mocks.NewMockCredentialStore(ctrl)
	creds.EXPECT().GetByEmail(gomock.Any(), "ann@example.com").Return(domainauth.Credential{}, errors.New("db down"))

	svc := NewAuthService(AuthServiceOptions{
		Stores: AuthStores{Sessions: doubles.NewMemorySessionStore(), Credentials: creds},
		Config: AuthServiceConfig{Logger: testutil.DiscardLogger()},
	})

	_, err := svc.SignInWithPassword(context.Background(), "ann@example.com", "whatever")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthService_SignInWithPassword_NoCredentialStore(t *testing.T) {
	svc := NewAuthService(AuthServiceOptions{Stores: AuthStores{Sessions: doubles.NewMemorySessionStore()}})
	_, err := svc.SignInWithPassword(context.Background(), "a@example.com", "password1")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthService_GetSession(t *testing.T) {
	now := testutil.TestTime()
	svc, sessions, _, _ := newTestAuthService(t, now)
	ctx := context.Background()

	require.NoError(t, sessions.Save(ctx, domainauth.Session{ID: "live", UserID: "u1", ExpiresAt: now.Add(time.Minute)}))
	require.NoError(t, sessions.Save(ctx, domainauth.Session{ID: "stale", UserID: "u1", ExpiresAt: now.Add(-time.Minute)}))

	got, err := svc.GetSession(ctx, "live")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UserID)

	_, err = svc.GetSession(ctx, "stale")
	require.ErrorIs(t, err, ErrSessionNotFound)
	_, err = sessions.Get(ctx, "stale")
	require.Error(t, err, "expired session should be deleted")

	_, err = svc.GetSession(ctx, "missing")
	require.ErrorIs(t, err, ErrSessionNotFound)

	_, err = svc.GetSession(ctx, "")
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestAuthService_GetSession_StoreFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockSessionStore(ctrl)
	store.EXPECT().Get(gomock.Any(), "sid").Return(domainauth.Session{}, errors.New("redis down"))

	svc := NewAuthService(AuthServiceOptions{Stores: AuthStores{Sessions: store}})
	_, err := svc.GetSession(context.Background(), "sid")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrSessionNotFound)
}

func TestAuthService_SignOut(t *testing.T) {
	svc, sessions, _, _ := newTestAuthService(t, testutil.TestTime())
	ctx := context.Background()
	require.NoError(t, sessions.Save(ctx, domainauth.Session{ID: "sid", UserID: "u1"}))

	require.NoError(t, svc.SignOut(ctx, "sid"))
	require.NoError(t, svc.SignOut(ctx, ""))
	assert.Zero(t, sessions.Len())
}

func TestAuthService_CreatePasswordAccount(t *testing.T) {
	now := testutil.TestTime()
	svc, _, _, _ := newTestAuthService(t, now)
	ctx := context.Background()

	cred, err := svc.CreatePasswordAccount(ctx, CreateAccountInput{Email: " New@Example.com", Password: "long-enough", Confirmed: true})
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", cred.Email)
	assert.NotEmpty(t, cred.UserID)
	assert.Equal(t, now, cred.CreatedAt)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte("long-enough")))

	grant, err := svc.SignInWithPassword(ctx, "new@example.com", "long-enough")
	require.NoError(t, err)
	assert.Equal(t, cred.UserID, grant.Identity.UserID)

	_, err = svc.CreatePasswordAccount(ctx, CreateAccountInput{Email: "x@example.com", Password: "short"})
	require.ErrorIs(t, err, ErrWeakPassword)

	_, err = svc.CreatePasswordAccount(ctx, CreateAccountInput{Email: "not-an-email", Password: "long-enough"})
	require.Error(t, err)

	_, err = svc.CreatePasswordAccount(ctx, CreateAccountInput{Email: "new@example.com", Password: "long-enough"})
	require.Error(t, err)
}
