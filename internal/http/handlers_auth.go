package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	domainauth "github.com/novakinetix/academy/internal/domain/auth"
	"github.com/novakinetix/academy/internal/service"
)

// AuthErrorPath is the page that explains a failed authorization.
const AuthErrorPath = "/auth/auth-code-error"

// Machine-readable error codes placed on AuthErrorPath.
const (
	authErrAccountExists       = "account_exists"
	authErrExchangeFailed      = "exchange_failed"
	authErrInvalidState        = "invalid_state"
	authErrUnexpected          = "unexpected_error"
	authErrUnsupportedProvider = "unsupported_provider"
	authErrProviderUnavailable = "provider_unavailable"

	unexpectedErrorDescription    = "An unexpected error occurred during authentication"
	accountExistsErrorDescription = "An account with this email already exists. Sign in with your password instead"
)

// AuthServiceInterface is the credential provider capability used by the handlers.
type AuthServiceInterface interface {
	BeginOAuth(ctx context.Context, provider, redirectTo string) (*service.BeginLoginResult, error)
	ExchangeCodeForSession(ctx context.Context, in service.ExchangeInput) (*domainauth.Grant, error)
	SignInWithPassword(ctx context.Context, email, password string) (*domainauth.Grant, error)
	GetSession(ctx context.Context, sessionID string) (*domainauth.Session, error)
	SignOut(ctx context.Context, sessionID string) error
	SessionTTL() time.Duration
}

// LoginCompleter turns a grant into a provisioned, routed login.
type LoginCompleter interface {
	Complete(ctx context.Context, grant *domainauth.Grant) (*service.CallbackOutcome, error)
	CompletePasswordLogin(ctx context.Context, grant *domainauth.Grant) (*service.CallbackOutcome, error)
	RecordLogout(ctx context.Context, userID string) error
	Registry() *domainauth.RoleRegistry
}

// AuthHandlers provides HTTP handlers for authentication operations.
type AuthHandlers struct {
	Svc     AuthServiceInterface
	Logins  LoginCompleter
	Cookies CookieConfig
	Logger  *slog.Logger

	validate *validator.Validate
}

// NewAuthHandlers constructs AuthHandlers. It panics if either service is nil.
func NewAuthHandlers(svc AuthServiceInterface, logins LoginCompleter, cookies CookieConfig, logger *slog.Logger) *AuthHandlers {
	if svc == nil || logins == nil {
		panic("httpx: AuthHandlers requires an auth service and a login completer")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandlers{
		Svc:      svc,
		Logins:   logins,
		Cookies:  cookies,
		Logger:   logger.With("component", "auth_handlers"),
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (h *AuthHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// BeginOAuth starts a social login.
// GET /auth/oauth/{provider}?redirectTo=<optional path>.
func (h *AuthHandlers) BeginOAuth(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	redirectTo := safeRedirectPath(r.URL.Query().Get("redirectTo"))

	result, err := h.Svc.BeginOAuth(r.Context(), provider, redirectTo)
	if err != nil {
		code := authErrProviderUnavailable
		if errors.Is(err, service.ErrUnknownProvider) {
			code = authErrUnsupportedProvider
		}
		h.logger().WarnContext(r.Context(), "begin oauth failed", "provider", provider, "error", err)
		http.Redirect(w, r, authErrorURL(code, ""), http.StatusFound)
		return
	}

	h.Cookies.set(w, r, cookieOAuthState, result.State, oauthCookieMaxAge)
	h.Cookies.set(w, r, cookieOAuthNonce, result.Nonce, oauthCookieMaxAge)
	h.Cookies.set(w, r, cookieOAuthProvider, result.Provider, oauthCookieMaxAge)
	h.Cookies.set(w, r, cookiePostLogin, redirectTo, oauthCookieMaxAge)

	http.Redirect(w, r, result.AuthURL, http.StatusFound)
}

// Callback completes an authorization-code exchange and lands the user on a dashboard.
// GET /auth/callback?code=<code>&state=<state> or ?error=<e>&error_description=<d>.
// It only ever answers with a redirect.
func (h *AuthHandlers) Callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if providerErr := q.Get("error"); providerErr != "" {
		http.Redirect(w, r, authErrorURL(providerErr, q.Get("error_description")), http.StatusFound)
		return
	}

	code := q.Get("code")
	if code == "" {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	state := q.Get("state")
	if expected := cookieValue(r, cookieOAuthState); expected == "" || expected != state {
		h.Cookies.clearOAuth(w, r)
		http.Redirect(w, r, authErrorURL(authErrInvalidState, "Invalid or expired login attempt"), http.StatusFound)
		return
	}

	grant, err := h.Svc.ExchangeCodeForSession(r.Context(), service.ExchangeInput{
		Provider: cookieValue(r, cookieOAuthProvider),
		Code:     code,
		State:    state,
		Nonce:    cookieValue(r, cookieOAuthNonce),
	})
	if err != nil {
		h.logger().WarnContext(r.Context(), "code exchange failed", "error", err)
		h.Cookies.clearOAuth(w, r)
		http.Redirect(w, r, authErrorURL(authErrExchangeFailed, err.Error()), http.StatusFound)
		return
	}
	if !grant.Complete() {
		h.logger().WarnContext(r.Context(), "code exchange returned no user or session")
		h.Cookies.clearOAuth(w, r)
		http.Redirect(w, r, AuthErrorPath, http.StatusFound)
		return
	}

	outcome, err := h.Logins.Complete(r.Context(), grant)
	if err != nil {
		h.logger().ErrorContext(r.Context(), "login completion failed",
			"user_id", grant.Identity.UserID,
			"error", err,
		)
		h.discardSession(r.Context(), grant.Session.ID)
		h.Cookies.clearOAuth(w, r)
		if errors.Is(err, service.ErrAccountExists) {
			http.Redirect(w, r, authErrorURL(authErrAccountExists, accountExistsErrorDescription), http.StatusFound)
			return
		}
		http.Redirect(w, r, authErrorURL(authErrUnexpected, unexpectedErrorDescription), http.StatusFound)
		return
	}

	target := h.postLoginTarget(r, outcome)
	h.Cookies.setSession(w, r, grant.Session.ID, h.Svc.SessionTTL())
	h.Cookies.clearOAuth(w, r)
	http.Redirect(w, r, target, http.StatusFound)
}

type loginRequest struct {
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required"`
	RedirectTo string `json:"redirect_to"`
}

// PasswordLogin signs in with email and password.
// POST /auth/login with a form or JSON body. JSON clients get JSON back;
// form posts are redirected.
func (h *AuthHandlers) PasswordLogin(w http.ResponseWriter, r *http.Request) {
	req, ok := h.readLoginRequest(w, r)
	if !ok {
		return
	}

	if err := h.validator().Struct(req); err != nil {
		h.loginFailed(w, r, http.StatusBadRequest, "invalid_request", fieldErrors(err))
		return
	}

	grant, err := h.Svc.SignInWithPassword(r.Context(), req.Email, req.Password)
	switch {
	case err == nil:
	case errors.Is(err, service.ErrInvalidCredentials):
		h.loginFailed(w, r, http.StatusUnauthorized, "invalid_credentials", nil)
		return
	case errors.Is(err, service.ErrEmailNotConfirmed):
		h.loginFailed(w, r, http.StatusUnauthorized, "email_not_confirmed", nil)
		return
	default:
		h.logger().ErrorContext(r.Context(), "password sign-in failed", "error", err)
		h.loginFailed(w, r, http.StatusInternalServerError, "login_failed", nil)
		return
	}

	outcome, err := h.Logins.CompletePasswordLogin(r.Context(), grant)
	if err != nil {
		h.discardSession(r.Context(), grant.Session.ID)
		if errors.Is(err, service.ErrProfileNotFound) {
			h.loginFailed(w, r, http.StatusUnauthorized, "profile_not_found", nil)
			return
		}
		h.logger().ErrorContext(r.Context(), "password login completion failed", "error", err)
		h.loginFailed(w, r, http.StatusInternalServerError, "login_failed", nil)
		return
	}

	target := h.allowedTarget(safeRedirectPath(req.RedirectTo), outcome)
	h.Cookies.setSession(w, r, grant.Session.ID, h.Svc.SessionTTL())
	if wantsJSON(r) {
		WriteJSON(w, http.StatusOK, map[string]any{
			"redirect_url": target,
			"role":         outcome.Role,
		})
		return
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// Logout deletes the server-side session and clears the cookie.
// POST /auth/logout.
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	if sessionID := cookieValue(r, SessionCookieName); sessionID != "" {
		if sess, err := h.Svc.GetSession(r.Context(), sessionID); err == nil {
			// Best-effort audit row; RecordLogout already logs failures.
			_ = h.Logins.RecordLogout(r.Context(), sess.UserID)
		}
		if err := h.Svc.SignOut(r.Context(), sessionID); err != nil {
			h.logger().WarnContext(r.Context(), "logout failed", "error", err)
		}
	}

	h.Cookies.clear(w, r, SessionCookieName)

	if wantsJSON(r) {
		WriteJSON(w, http.StatusOK, map[string]string{
			"status":      "success",
			"redirect_to": "/login",
		})
		return
	}
	http.Redirect(w, r, "/login", http.StatusFound)
}

// Status returns the current authentication status.
// GET /auth/status.
func (h *AuthHandlers) Status(w http.ResponseWriter, r *http.Request) {
	sessionID := cookieValue(r, SessionCookieName)
	if sessionID == "" {
		WriteJSON(w, http.StatusOK, map[string]any{"authenticated": false})
		return
	}

	session, err := h.Svc.GetSession(r.Context(), sessionID)
	if err != nil {
		// Session is invalid or expired, clear the cookie
		h.Cookies.clear(w, r, SessionCookieName)
		WriteJSON(w, http.StatusOK, map[string]any{"authenticated": false})
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"authenticated": true,
		"user": map[string]any{
			"id":       session.UserID,
			"email":    session.Email,
			"provider": session.Provider,
		},
		"expires_at": session.ExpiresAt,
	})
}

func (h *AuthHandlers) validator() *validator.Validate {
	if h.validate == nil {
		h.validate = validator.New(validator.WithRequiredStructEnabled())
	}
	return h.validate
}

func (h *AuthHandlers) readLoginRequest(w http.ResponseWriter, r *http.Request) (loginRequest, bool) {
	var req loginRequest
	if isJSONRequest(r) {
		if !DecodeJSON(w, r, &req) {
			return req, false
		}
	} else {
		if err := r.ParseForm(); err != nil {
			h.loginFailed(w, r, http.StatusBadRequest, "invalid_request", nil)
			return req, false
		}
		req = loginRequest{
			Email:      r.PostFormValue("email"),
			Password:   r.PostFormValue("password"),
			RedirectTo: r.PostFormValue("redirectTo"),
		}
	}
	req.Email = strings.TrimSpace(req.Email)
	return req, true
}

// loginFailed answers a failed password login: JSON for API clients, a redirect
// back to the login page otherwise.
func (h *AuthHandlers) loginFailed(w http.ResponseWriter, r *http.Request, status int, code string, fields map[string]string) {
	if wantsJSON(r) {
		body := map[string]any{"error": code, "message": loginErrorMessage(code)}
		if len(fields) > 0 {
			body["fields"] = fields
		}
		WriteJSON(w, status, body)
		return
	}
	http.Redirect(w, r, "/login?error="+url.QueryEscape(code), http.StatusFound)
}

func loginErrorMessage(code string) string {
	switch code {
	case "invalid_credentials":
		return service.ErrInvalidCredentials.Error()
	case "email_not_confirmed":
		return service.ErrEmailNotConfirmed.Error()
	case "profile_not_found":
		return service.ErrProfileNotFound.Error()
	case "invalid_request":
		return "email and password are required"
	default:
		return "login failed"
	}
}

func fieldErrors(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		out[strings.ToLower(fe.Field())] = fe.Tag()
	}
	return out
}

// discardSession drops a session that was issued for a login we are rejecting.
func (h *AuthHandlers) discardSession(ctx context.Context, sessionID string) {
	if err := h.Svc.SignOut(ctx, sessionID); err != nil {
		h.logger().WarnContext(ctx, "failed to discard session", "error", err)
	}
}

// postLoginTarget honours the post_login_redirect cookie when the role may
// access it, otherwise lands on the role's dashboard.
func (h *AuthHandlers) postLoginTarget(r *http.Request, outcome *service.CallbackOutcome) string {
	return h.allowedTarget(safeRedirectPath(cookieValue(r, cookiePostLogin)), outcome)
}

func (h *AuthHandlers) allowedTarget(candidate string, outcome *service.CallbackOutcome) string {
	if candidate == "/" || candidate == "" {
		return outcome.RedirectURL
	}
	u, err := url.Parse(candidate)
	if err != nil {
		return outcome.RedirectURL
	}
	if h.Logins.Registry().Allows(outcome.Role, u.Path) {
		return candidate
	}
	return outcome.RedirectURL
}

// authErrorURL builds the auth error page URL, carrying code and description verbatim.
func authErrorURL(code, description string) string {
	q := url.Values{}
	q.Set("error", code)
	if description != "" {
		q.Set("error_description", description)
	}
	return AuthErrorPath + "?" + q.Encode()
}
