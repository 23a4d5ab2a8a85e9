package httpx

import (
	"net/http"
	"strings"
	"time"
)

// Short-lived cookies carrying OAuth round-trip state.
const (
	cookieOAuthState    = "oauth_state"
	cookieOAuthNonce    = "oauth_nonce"
	cookieOAuthProvider = "oauth_provider"
	cookiePostLogin     = "post_login_redirect"

	oauthCookieMaxAge = 600 // 10 minutes
)

// CookieConfig controls attributes shared by every cookie the gateway sets.
type CookieConfig struct {
	Domain     string
	Production bool // Forces Secure even when TLS terminates upstream without X-Forwarded-Proto
}

func (c CookieConfig) secure(r *http.Request) bool {
	return c.Production || r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}

// set writes an HttpOnly, SameSite=Lax cookie scoped to the whole site.
func (c CookieConfig) set(w http.ResponseWriter, r *http.Request, name, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   c.Domain,
		HttpOnly: true,
		Secure:   c.secure(r),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	})
}

// clear expires a cookie. It mirrors the attributes used when setting cookies
// to maximize compatibility across browsers during deletion.
func (c CookieConfig) clear(w http.ResponseWriter, r *http.Request, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Domain:   c.Domain,
		HttpOnly: true,
		Secure:   c.secure(r),
		MaxAge:   -1,
		Expires:  time.Unix(0, 0).UTC(),
		SameSite: http.SameSiteLaxMode,
	})
}

// setSession writes the session cookie with a Max-Age equal to ttl.
func (c CookieConfig) setSession(w http.ResponseWriter, r *http.Request, sessionID string, ttl time.Duration) {
	c.set(w, r, SessionCookieName, sessionID, int(ttl.Seconds()))
}

func (c CookieConfig) clearOAuth(w http.ResponseWriter, r *http.Request) {
	for _, name := range []string{cookieOAuthState, cookieOAuthNonce, cookieOAuthProvider, cookiePostLogin} {
		c.clear(w, r, name)
	}
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}
