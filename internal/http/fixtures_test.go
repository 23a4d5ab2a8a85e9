package httpx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/novakinetix/academy/internal/adapters/authroles"
	domainauth "github.com/novakinetix/academy/internal/domain/auth"
	doubles "github.com/novakinetix/academy/internal/mocks/auth"
	"github.com/novakinetix/academy/internal/ports"
	"github.com/novakinetix/academy/internal/service"
	"github.com/novakinetix/academy/internal/testutil"
)

const testAdminEmail = "admin@novakinetix.academy"

// gatewayFixture wires the real services over in-memory stores.
type gatewayFixture struct {
	auth       *service.AuthService
	logins     *service.CallbackService
	idp        *doubles.MockAuthProvider
	sessions   *doubles.MemorySessionStore
	profiles   *doubles.MemoryProfileStore
	activities *doubles.MemoryActivityStore
	creds      *doubles.MemoryCredentialStore
	router     http.Handler
}

type fixtureOption func(*RouterServices)

func withLoginRateLimit(n int) fixtureOption {
	return func(s *RouterServices) { s.Config.LoginRateLimit = n }
}

func withReadiness(deps map[string]Pinger) fixtureOption {
	return func(s *RouterServices) { s.Readiness = deps }
}

func newGatewayFixture(t *testing.T, opts ...fixtureOption) *gatewayFixture {
	t.Helper()
	f := &gatewayFixture{
		idp:        doubles.NewMockAuthProvider(),
		sessions:   doubles.NewMemorySessionStore(),
		profiles:   doubles.NewMemoryProfileStore(),
		activities: doubles.NewMemoryActivityStore(),
		creds:      doubles.NewMemoryCredentialStore(),
	}
	logger := testutil.DiscardLogger()
	f.auth = service.NewAuthService(service.AuthServiceOptions{
		Providers: map[string]ports.AuthProvider{"google": f.idp},
		Stores:    service.AuthStores{Sessions: f.sessions, Credentials: f.creds},
		Config:    service.AuthServiceConfig{Logger: logger},
	})
	f.logins = service.NewCallbackService(service.CallbackServiceOptions{
		Stores: service.CallbackStores{Profiles: f.profiles, Activities: f.activities},
		Roles:  service.CallbackRoles{Assigner: authroles.NewAllowList([]string{testAdminEmail}, nil, nil)},
		Logger: logger,
	})

	services := RouterServices{
		Auth:      f.auth,
		Logins:    f.logins,
		Profiles:  f.profiles,
		Activity:  service.NewActivityRecorder(f.activities, logger),
		Providers: f.auth.Providers(),
		Logger:    logger,
	}
	for _, opt := range opts {
		opt(&services)
	}
	f.router = NewRouter(services)
	return f
}

// signIn stores a profile and a live session for it and returns the session cookie.
func (f *gatewayFixture) signIn(t *testing.T, userID string, role domainauth.Role) *http.Cookie {
	t.Helper()
	ctx := context.Background()
	if role != "" {
		_, err := f.profiles.Upsert(ctx, domainauth.Profile{ID: userID, Email: userID + "@example.com", Role: role})
		require.NoError(t, err)
	}
	sid := "sid-" + userID
	require.NoError(t, f.sessions.Save(ctx, domainauth.Session{
		ID:        sid,
		UserID:    userID,
		ExpiresAt: time.Now().Add(time.Hour),
	}))
	return &http.Cookie{Name: SessionCookieName, Value: sid}
}

func (f *gatewayFixture) do(req *http.Request, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *gatewayFixture) get(path string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	return f.do(httptest.NewRequest(http.MethodGet, path, nil), cookies...)
}

// beginOAuth runs the begin step and returns the cookies it set.
func (f *gatewayFixture) beginOAuth(t *testing.T, redirectTo string) []*http.Cookie {
	t.Helper()
	path := "/auth/oauth/google"
	if redirectTo != "" {
		path += "?redirectTo=" + url.QueryEscape(redirectTo)
	}
	rec := f.get(path)
	require.Equal(t, http.StatusFound, rec.Code)
	return rec.Result().Cookies()
}

func findCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}
