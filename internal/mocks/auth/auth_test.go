package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	domainauth "github.com/novakinetix/academy/internal/domain/auth"
	apperrors "github.com/novakinetix/academy/internal/errors"
	"github.com/novakinetix/academy/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockAuthProvider_Begin_Defaults(t *testing.T) {
	provider := NewMockAuthProvider()
	ctx := context.Background()

	input := ports.BeginInput{RedirectURL: "http://localhost:8080/auth/callback"}
	authURL, state, nonce, err := provider.Begin(ctx, input)

	require.NoError(t, err)
	assert.Equal(t, "https://mock-idp/auth", authURL)
	assert.Equal(t, "state-1", state)
	assert.Equal(t, "nonce-1", nonce)

	// Second call should increment counters
	_, state2, nonce2, err := provider.Begin(ctx, input)
	require.NoError(t, err)
	assert.Equal(t, "state-2", state2)
	assert.Equal(t, "nonce-2", nonce2)
}

func TestMockAuthProvider_Begin_CustomFunc(t *testing.T) {
	provider := &MockAuthProvider{
		BeginFunc: func(context.Context, ports.BeginInput) (string, string, string, error) {
			return "", "", "", errors.New("idp down")
		},
	}

	_, _, _, err := provider.Begin(context.Background(), ports.BeginInput{})
	require.EqualError(t, err, "idp down")
}

func TestMockAuthProvider_Exchange_Defaults(t *testing.T) {
	provider := &MockAuthProvider{}

	id, err := provider.Exchange(context.Background(), ports.ExchangeInput{Code: "c"})
	require.NoError(t, err)
	assert.Equal(t, "mock-user-1", id.UserID)
	assert.Equal(t, "mock.user@example.com", id.Email)
	assert.True(t, id.EmailConfirmed)
}

func TestMockAuthProvider_Exchange_CustomUser(t *testing.T) {
	provider := NewMockAuthProvider()
	provider.DefaultUser = domainauth.Identity{UserID: "u-9", Email: "nine@example.com"}

	id, err := provider.Exchange(context.Background(), ports.ExchangeInput{})
	require.NoError(t, err)
	assert.Equal(t, "u-9", id.UserID)
}

func TestMemorySessionStore_SaveGetDelete(t *testing.T) {
	store := NewMemorySessionStore()
	ctx := context.Background()

	sess := domainauth.Session{ID: "s1", UserID: "u1", ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, store.Save(ctx, sess))
	assert.Equal(t, 1, store.Len())

	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UserID)

	require.NoError(t, store.Delete(ctx, "s1"))
	_, err = store.Get(ctx, "s1")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestMemorySessionStore_EmptyID(t *testing.T) {
	store := NewMemorySessionStore()
	require.Error(t, store.Save(context.Background(), domainauth.Session{}))
}

func TestMemoryProfileStore_UpsertKeepsRole(t *testing.T) {
	store := NewMemoryProfileStore(domainauth.Profile{
		ID: "u1", Email: "old@example.com", FullName: "Kept", Role: domainauth.RoleAdmin,
	})

	got, err := store.Upsert(context.Background(), domainauth.Profile{
		ID: "u1", Email: "new@example.com", FullName: "Ignored", Role: domainauth.RoleStudent,
	})
	require.NoError(t, err)
	assert.Equal(t, domainauth.RoleAdmin, got.Role)
	assert.Equal(t, "new@example.com", got.Email)
	assert.Equal(t, "Kept", got.FullName)
	assert.Equal(t, 1, store.Upserts)
}

func TestMemoryProfileStore_EmailIsUnique(t *testing.T) {
	store := NewMemoryProfileStore(domainauth.Profile{ID: "u1", Email: "Ann@Example.com"})

	_, err := store.Upsert(context.Background(), domainauth.Profile{ID: "u2", Email: "ann@example.com"})
	assert.True(t, apperrors.IsConflict(err))
	assert.Zero(t, store.Upserts)

	_, ok := store.Profile("u2")
	assert.False(t, ok)
}

func TestMemoryProfileStore_ReadsCanonicalRole(t *testing.T) {
	store := NewMemoryProfileStore(
		domainauth.Profile{ID: "u1", Email: "t@example.com", Role: "teacher"},
		domainauth.Profile{ID: "u2", Email: "x@example.com", Role: "superuser"},
	)
	ctx := context.Background()

	got, err := store.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, domainauth.RoleIntern, got.Role)

	got, err = store.GetByEmail(ctx, "x@example.com")
	require.NoError(t, err)
	assert.Equal(t, domainauth.RoleStudent, got.Role)
}

func TestMemoryProfileStore_RecordLoginClearsFirstLogin(t *testing.T) {
	store := NewMemoryProfileStore(domainauth.Profile{ID: "u1", FirstLogin: true})
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	require.NoError(t, store.RecordLogin(context.Background(), "u1", at))

	p, ok := store.Profile("u1")
	require.True(t, ok)
	assert.False(t, p.FirstLogin)
	require.NotNil(t, p.LastLogin)
	assert.Equal(t, at, *p.LastLogin)
}

func TestMemoryProfileStore_NotFound(t *testing.T) {
	store := NewMemoryProfileStore()
	_, err := store.Get(context.Background(), "missing")
	assert.True(t, apperrors.IsNotFound(err))
	_, err = store.GetByEmail(context.Background(), "missing@example.com")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestMemoryActivityStore_ListNewestFirst(t *testing.T) {
	store := NewMemoryActivityStore()
	ctx := context.Background()
	require.NoError(t, store.Record(ctx, domainauth.Activity{UserID: "u1", Description: "first"}))
	require.NoError(t, store.Record(ctx, domainauth.Activity{UserID: "u2", Description: "other"}))
	require.NoError(t, store.Record(ctx, domainauth.Activity{UserID: "u1", Description: "second"}))

	got, err := store.ListByUser(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "second", got[0].Description)

	got, err = store.ListByUser(ctx, "u1", 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestMemoryActivityStore_RecordErr(t *testing.T) {
	store := NewMemoryActivityStore()
	store.RecordErr = errors.New("boom")
	require.Error(t, store.Record(context.Background(), domainauth.Activity{UserID: "u1"}))
	assert.Empty(t, store.All())
}

func TestMemoryCredentialStore(t *testing.T) {
	store := NewMemoryCredentialStore()
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, domainauth.Credential{UserID: "u1", Email: "Ann@Example.com"}))

	got, err := store.GetByEmail(ctx, "ann@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UserID)

	err = store.Create(ctx, domainauth.Credential{UserID: "u2", Email: "ann@example.com"})
	assert.True(t, apperrors.IsConflict(err))
}

func TestStaticRoleAssigner(t *testing.T) {
	assigner := StaticRoleAssigner{"boss@example.com": domainauth.RoleAdmin}
	assert.Equal(t, domainauth.RoleAdmin, assigner.AssignRole(" Boss@Example.com "))
	assert.Equal(t, domainauth.RoleStudent, assigner.AssignRole("kid@example.com"))
	assert.Equal(t, domainauth.RoleStudent, StaticRoleAssigner(nil).AssignRole("x@example.com"))
}
