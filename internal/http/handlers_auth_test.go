package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/novakinetix/academy/internal/domain/auth"
	"github.com/novakinetix/academy/internal/ports"
	"github.com/novakinetix/academy/internal/service"
)

func TestBeginOAuth_SetsRoundTripCookies(t *testing.T) {
	f := newGatewayFixture(t)

	rec := f.get("/auth/oauth/google?redirectTo=%2Fadmin%2Fusers")

	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://mock-idp/auth", rec.Header().Get("Location"))
	for name, want := range map[string]string{
		cookieOAuthState:    "state-1",
		cookieOAuthNonce:    "nonce-1",
		cookieOAuthProvider: "google",
		cookiePostLogin:     "/admin/users",
	} {
		c := findCookie(rec, name)
		require.NotNil(t, c, name)
		assert.Equal(t, want, c.Value, name)
		assert.Equal(t, oauthCookieMaxAge, c.MaxAge, name)
		assert.True(t, c.HttpOnly, name)
	}
}

func TestBeginOAuth_UnknownProvider(t *testing.T) {
	f := newGatewayFixture(t)

	rec := f.get("/auth/oauth/myspace")

	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/auth/auth-code-error?error=unsupported_provider", rec.Header().Get("Location"))
}

func TestBeginOAuth_RejectsOffsiteRedirect(t *testing.T) {
	f := newGatewayFixture(t)

	rec := f.get("/auth/oauth/google?redirectTo=https%3A%2F%2Fevil.example%2F")

	c := findCookie(rec, cookiePostLogin)
	require.NotNil(t, c)
	assert.Equal(t, "/", c.Value)
}

func TestCallback_ProviderErrorIsForwardedVerbatim(t *testing.T) {
	f := newGatewayFixture(t)

	rec := f.get("/auth/callback?error=access_denied&error_description=User+denied+access")

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t,
		"/auth/auth-code-error?error=access_denied&error_description=User+denied+access",
		rec.Header().Get("Location"))
	assert.Zero(t, f.sessions.Len())
}

func TestCallback_NoCodeNoErrorGoesToLogin(t *testing.T) {
	f := newGatewayFixture(t)

	rec := f.get("/auth/callback")

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
}

func TestCallback_NewAdminFromAllowList(t *testing.T) {
	f := newGatewayFixture(t)
	f.idp.DefaultUser = domainauth.Identity{
		UserID:         "new-admin",
		Email:          testAdminEmail,
		FullName:       "Ada Admin",
		EmailConfirmed: true,
		Provider:       "google",
	}
	cookies := f.beginOAuth(t, "")

	rec := f.get("/auth/callback?code=fresh&state=state-1", cookies...)

	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/admin", rec.Header().Get("Location"))

	p, ok := f.profiles.Profile("new-admin")
	require.True(t, ok)
	assert.Equal(t, domainauth.RoleAdmin, p.Role)
	assert.True(t, p.EmailVerified)
	assert.NotNil(t, p.LastLogin)

	sc := findCookie(rec, SessionCookieName)
	require.NotNil(t, sc)
	assert.True(t, sc.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, sc.SameSite)
	assert.Equal(t, "/", sc.Path)
	assert.Equal(t, int(service.DefaultSessionTTL.Seconds()), sc.MaxAge)
	assert.Equal(t, 1, f.sessions.Len())

	acts := f.activities.All()
	require.Len(t, acts, 1)
	assert.Equal(t, domainauth.ActivitySocialSignup, acts[0].Type)

	// The new session is honoured by the gate.
	assert.Equal(t, http.StatusOK, f.get("/admin", sc).Code)
}

func TestCallback_NewUserWithoutAllowListIsStudent(t *testing.T) {
	f := newGatewayFixture(t)
	f.idp.DefaultUser = domainauth.Identity{UserID: "u-admin-ish", Email: "sysadmin.fan@example.com", EmailConfirmed: true}
	cookies := f.beginOAuth(t, "")

	rec := f.get("/auth/callback?code=c&state=state-1", cookies...)

	assert.Equal(t, "/student-dashboard", rec.Header().Get("Location"))
}

func TestCallback_HonoursAllowedPostLoginRedirect(t *testing.T) {
	f := newGatewayFixture(t)
	f.idp.DefaultUser = domainauth.Identity{UserID: "a1", Email: testAdminEmail, EmailConfirmed: true}

	cookies := f.beginOAuth(t, "/admin/users")
	rec := f.get("/auth/callback?code=c&state=state-1", cookies...)
	assert.Equal(t, "/admin/users", rec.Header().Get("Location"))

	f.idp.DefaultUser = domainauth.Identity{UserID: "s1", Email: "kid@example.com", EmailConfirmed: true}
	cookies = f.beginOAuth(t, "/admin/users")
	rec = f.get("/auth/callback?code=c&state=state-2", cookies...)
	assert.Equal(t, "/student-dashboard", rec.Header().Get("Location"))
}

func TestCallback_StateMismatch(t *testing.T) {
	f := newGatewayFixture(t)
	cookies := f.beginOAuth(t, "")

	rec := f.get("/auth/callback?code=c&state=forged", cookies...)

	require.Equal(t, http.StatusFound, rec.Code)
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, AuthErrorPath, loc.Path)
	assert.Equal(t, "invalid_state", loc.Query().Get("error"))
	assert.Zero(t, f.sessions.Len())
}

func TestCallback_MissingStateCookie(t *testing.T) {
	f := newGatewayFixture(t)

	rec := f.get("/auth/callback?code=c&state=state-1")

	loc, _ := url.Parse(rec.Header().Get("Location"))
	assert.Equal(t, "invalid_state", loc.Query().Get("error"))
}

func TestCallback_ExchangeFailure(t *testing.T) {
	f := newGatewayFixture(t)
	f.idp.ExchangeFunc = func(context.Context, ports.ExchangeInput) (domainauth.Identity, error) {
		return domainauth.Identity{}, errors.New("invalid_grant: code expired")
	}
	cookies := f.beginOAuth(t, "")

	rec := f.get("/auth/callback?code=stale&state=state-1", cookies...)

	require.Equal(t, http.StatusFound, rec.Code)
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, AuthErrorPath, loc.Path)
	assert.Equal(t, "exchange_failed", loc.Query().Get("error"))
	assert.Contains(t, loc.Query().Get("error_description"), "invalid_grant: code expired")
}

func TestCallback_IncompleteGrant(t *testing.T) {
	f := newGatewayFixture(t)
	f.idp.ExchangeFunc = func(context.Context, ports.ExchangeInput) (domainauth.Identity, error) {
		return domainauth.Identity{Email: "ghost@example.com"}, nil
	}
	cookies := f.beginOAuth(t, "")

	rec := f.get("/auth/callback?code=c&state=state-1", cookies...)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, AuthErrorPath, rec.Header().Get("Location"))
}

func TestCallback_ProfileStoreFailure(t *testing.T) {
	f := newGatewayFixture(t)
	f.profiles.UpsertErr = errors.New("relation \"profiles\" does not exist")
	cookies := f.beginOAuth(t, "")

	rec := f.get("/auth/callback?code=c&state=state-1", cookies...)

	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t,
		"/auth/auth-code-error?error=unexpected_error&error_description=An+unexpected+error+occurred+during+authentication",
		rec.Header().Get("Location"))
	assert.Zero(t, f.sessions.Len(), "session is discarded when the login cannot complete")
	assert.Nil(t, findCookie(rec, SessionCookieName))
}

func TestCallback_UnverifiedAllowListedEmailIsStudent(t *testing.T) {
	f := newGatewayFixture(t)
	f.idp.DefaultUser = domainauth.Identity{
		UserID:   "unverified-sub",
		Email:    testAdminEmail,
		Provider: "google",
	}
	cookies := f.beginOAuth(t, "")

	rec := f.get("/auth/callback?code=c&state=state-1", cookies...)

	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/student-dashboard", rec.Header().Get("Location"))
	p, ok := f.profiles.Profile("unverified-sub")
	require.True(t, ok)
	assert.Equal(t, domainauth.RoleStudent, p.Role)
	assert.False(t, p.EmailVerified)

	sc := findCookie(rec, SessionCookieName)
	require.NotNil(t, sc)
	assert.NotEqual(t, http.StatusOK, f.get("/admin", sc).Code)
}

func TestCallback_EmailAlreadyHasAccount(t *testing.T) {
	f := newGatewayFixture(t)
	seedPasswordUser(t, f, "mum@example.com", "correct-horse", domainauth.RoleParent)
	f.idp.DefaultUser = domainauth.Identity{
		UserID:         "google-sub",
		Email:          "mum@example.com",
		EmailConfirmed: true,
		Provider:       "google",
	}
	cookies := f.beginOAuth(t, "")

	rec := f.get("/auth/callback?code=c&state=state-1", cookies...)

	require.Equal(t, http.StatusFound, rec.Code)
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, AuthErrorPath, loc.Path)
	assert.Equal(t, "account_exists", loc.Query().Get("error"))
	assert.Zero(t, f.sessions.Len(), "session is discarded when the login cannot complete")
	assert.Nil(t, findCookie(rec, SessionCookieName))
}

func TestCallback_SideEffectFailuresDoNotBlockRedirect(t *testing.T) {
	f := newGatewayFixture(t)
	f.activities.RecordErr = errors.New("activity insert failed")
	f.profiles.RecordLoginErr = errors.New("last_login update failed")
	cookies := f.beginOAuth(t, "")

	rec := f.get("/auth/callback?code=c&state=state-1", cookies...)

	assert.Equal(t, "/student-dashboard", rec.Header().Get("Location"))
	assert.NotNil(t, findCookie(rec, SessionCookieName))
}

func TestCallback_RedirectDependsOnlyOnExchangeOutcome(t *testing.T) {
	f := newGatewayFixture(t)
	var mu sync.Mutex
	used := map[string]bool{}
	f.idp.ExchangeFunc = func(_ context.Context, in ports.ExchangeInput) (domainauth.Identity, error) {
		mu.Lock()
		defer mu.Unlock()
		if used[in.Code] {
			return domainauth.Identity{}, errors.New("code already used")
		}
		used[in.Code] = true
		return domainauth.Identity{UserID: "a1", Email: testAdminEmail, EmailConfirmed: true}, nil
	}
	cookies := f.beginOAuth(t, "")

	first := f.get("/auth/callback?code=once&state=state-1", cookies...)
	second := f.get("/auth/callback?code=once&state=state-1", cookies...)

	assert.Equal(t, "/admin", first.Header().Get("Location"))
	loc, _ := url.Parse(second.Header().Get("Location"))
	assert.Equal(t, AuthErrorPath, loc.Path)
	assert.Equal(t, "exchange_failed", loc.Query().Get("error"))
	assert.Nil(t, findCookie(second, SessionCookieName))
	assert.Equal(t, 1, f.sessions.Len())

	// Same successful outcome twice gives the same redirect.
	f.idp.ExchangeFunc = nil
	f.idp.DefaultUser = domainauth.Identity{UserID: "a1", Email: testAdminEmail, EmailConfirmed: true}
	again1 := f.get("/auth/callback?code=x&state=state-1", cookies...)
	again2 := f.get("/auth/callback?code=x&state=state-1", cookies...)
	assert.Equal(t, again1.Header().Get("Location"), again2.Header().Get("Location"))
}

func TestCallback_AlwaysRedirects(t *testing.T) {
	f := newGatewayFixture(t)
	cookies := f.beginOAuth(t, "")

	for _, path := range []string{
		"/auth/callback",
		"/auth/callback?error=x",
		"/auth/callback?code=c&state=nope",
		"/auth/callback?code=c&state=state-1",
	} {
		rec := f.get(path, cookies...)
		assert.Equal(t, http.StatusFound, rec.Code, path)
		assert.NotContains(t, rec.Header().Get("Content-Type"), "application/json", path)
	}
}

func seedPasswordUser(t *testing.T, f *gatewayFixture, email, password string, role domainauth.Role) string {
	t.Helper()
	ctx := context.Background()
	cred, err := f.auth.CreatePasswordAccount(ctx, service.CreateAccountInput{Email: email, Password: password, Confirmed: true})
	require.NoError(t, err)
	if role != "" {
		_, err = f.profiles.Upsert(ctx, domainauth.Profile{ID: cred.UserID, Email: email, Role: role})
		require.NoError(t, err)
	}
	return cred.UserID
}

func postForm(path string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func postJSON(path, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestPasswordLogin_FormSuccess(t *testing.T) {
	f := newGatewayFixture(t)
	userID := seedPasswordUser(t, f, "mum@example.com", "correct-horse", domainauth.RoleParent)

	rec := f.do(postForm("/auth/login", url.Values{"email": {"mum@example.com"}, "password": {"correct-horse"}}))

	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/parent-dashboard", rec.Header().Get("Location"))
	require.NotNil(t, findCookie(rec, SessionCookieName))

	acts := f.activities.All()
	require.Len(t, acts, 1)
	assert.Equal(t, domainauth.ActivityLogin, acts[0].Type)
	assert.Equal(t, userID, acts[0].UserID)
}

func TestPasswordLogin_FormRedirectTo(t *testing.T) {
	f := newGatewayFixture(t)
	seedPasswordUser(t, f, "mum@example.com", "correct-horse", domainauth.RoleParent)

	rec := f.do(postForm("/auth/login", url.Values{
		"email": {"mum@example.com"}, "password": {"correct-horse"}, "redirectTo": {"/parent-dashboard/children"},
	}))
	assert.Equal(t, "/parent-dashboard/children", rec.Header().Get("Location"))

	rec = f.do(postForm("/auth/login", url.Values{
		"email": {"mum@example.com"}, "password": {"correct-horse"}, "redirectTo": {"/admin"},
	}))
	assert.Equal(t, "/parent-dashboard", rec.Header().Get("Location"))
}

func TestPasswordLogin_JSON(t *testing.T) {
	f := newGatewayFixture(t)
	seedPasswordUser(t, f, "ta@example.com", "correct-horse", domainauth.RoleIntern)
	_, err := f.auth.CreatePasswordAccount(context.Background(), service.CreateAccountInput{
		Email: "late@example.com", Password: "correct-horse",
	})
	require.NoError(t, err)
	seedPasswordUser(t, f, "orphan@example.com", "correct-horse", "")

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantError  string
	}{
		{name: "ok", body: `{"email":"ta@example.com","password":"correct-horse"}`, wantStatus: http.StatusOK},
		{name: "wrong password", body: `{"email":"ta@example.com","password":"nope"}`, wantStatus: http.StatusUnauthorized, wantError: "invalid_credentials"},
		{name: "unknown user", body: `{"email":"who@example.com","password":"x"}`, wantStatus: http.StatusUnauthorized, wantError: "invalid_credentials"},
		{name: "bad email", body: `{"email":"not-an-email","password":"x"}`, wantStatus: http.StatusBadRequest, wantError: "invalid_request"},
		{name: "unconfirmed", body: `{"email":"late@example.com","password":"correct-horse"}`, wantStatus: http.StatusUnauthorized, wantError: "email_not_confirmed"},
		{name: "no profile", body: `{"email":"orphan@example.com","password":"correct-horse"}`, wantStatus: http.StatusUnauthorized, wantError: "profile_not_found"},
		{name: "unknown field", body: `{"email":"ta@example.com","password":"x","admin":true}`, wantStatus: http.StatusBadRequest, wantError: "invalid_json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(postJSON("/auth/login", tt.body))
			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())

			var body map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			if tt.wantError == "" {
				assert.Equal(t, "/intern-dashboard", body["redirect_url"])
				assert.Equal(t, "intern", body["role"])
				return
			}
			assert.Equal(t, tt.wantError, body["error"])
		})
	}
	assert.Equal(t, 1, f.sessions.Len(), "only the successful login keeps a session")
}

func TestPasswordLogin_ValidationFieldErrors(t *testing.T) {
	f := newGatewayFixture(t)

	rec := f.do(postJSON("/auth/login", `{"email":"nope","password":""}`))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body struct {
		Fields map[string]string `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "email", body.Fields["email"])
	assert.Equal(t, "required", body.Fields["password"])
}

func TestPasswordLogin_FormFailureRedirectsToLogin(t *testing.T) {
	f := newGatewayFixture(t)

	rec := f.do(postForm("/auth/login", url.Values{"email": {"a@example.com"}, "password": {"wrong"}}))

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login?error=invalid_credentials", rec.Header().Get("Location"))
}

func TestPasswordLogin_RateLimited(t *testing.T) {
	f := newGatewayFixture(t, withLoginRateLimit(2))

	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		last = f.do(postJSON("/auth/login", `{"email":"a@example.com","password":"x"}`))
	}

	assert.Equal(t, http.StatusTooManyRequests, last.Code)
}

func TestLogout(t *testing.T) {
	f := newGatewayFixture(t)
	cookie := f.signIn(t, "kid", domainauth.RoleStudent)

	rec := f.do(httptest.NewRequest(http.MethodPost, "/auth/logout", nil), cookie)

	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
	assert.Zero(t, f.sessions.Len())

	cleared := findCookie(rec, SessionCookieName)
	require.NotNil(t, cleared)
	assert.Less(t, cleared.MaxAge, 0)

	acts := f.activities.All()
	require.Len(t, acts, 1)
	assert.Equal(t, domainauth.ActivityLogout, acts[0].Type)

	// The old cookie no longer opens the dashboard.
	assert.Equal(t, "/login?redirectTo=%2Fstudent-dashboard", f.get("/student-dashboard", cookie).Header().Get("Location"))
}

func TestLogout_WithoutSession(t *testing.T) {
	f := newGatewayFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.Header.Set("Accept", "application/json")
	rec := f.do(req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"success","redirect_to":"/login"}`, rec.Body.String())
	assert.Empty(t, f.activities.All())
}

func TestStatus(t *testing.T) {
	f := newGatewayFixture(t)

	rec := f.get("/auth/status")
	assert.JSONEq(t, `{"authenticated":false}`, rec.Body.String())

	cookie := f.signIn(t, "kid", domainauth.RoleStudent)
	rec = f.get("/auth/status", cookie)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["authenticated"])

	rec = f.get("/auth/status", &http.Cookie{Name: SessionCookieName, Value: "gone"})
	assert.JSONEq(t, `{"authenticated":false}`, rec.Body.String())
	assert.NotNil(t, findCookie(rec, SessionCookieName))
}

func TestSessionCookie_SecureInProduction(t *testing.T) {
	cookies := CookieConfig{Production: true}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	cookies.setSession(rec, req, "sid", service.DefaultSessionTTL)

	c := findCookie(rec, SessionCookieName)
	require.NotNil(t, c)
	assert.True(t, c.Secure)
	assert.Equal(t, 7*24*60*60, c.MaxAge)
}

func TestSessionCookie_SecureBehindTLSProxy(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.False(t, CookieConfig{}.secure(req))

	req.Header.Set("X-Forwarded-Proto", "https")
	assert.True(t, CookieConfig{}.secure(req))
}

func TestAuthErrorURL(t *testing.T) {
	assert.Equal(t, "/auth/auth-code-error?error=exchange_failed", authErrorURL("exchange_failed", ""))
	assert.Equal(t,
		"/auth/auth-code-error?error=a%26b&error_description=x%3Dy",
		authErrorURL("a&b", "x=y"))
}
