package httpx

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/novakinetix/academy/config"
	domainauth "github.com/novakinetix/academy/internal/domain/auth"
)

const dashboardActivityLimit = 10

// ActivityLister lists a user's recent audit rows.
type ActivityLister interface {
	Recent(ctx context.Context, userID string, limit int) ([]domainauth.Activity, error)
}

// DashboardHandlers serves the role dashboards and the public page descriptors.
// Page rendering lives in the frontend; these handlers return what it needs as JSON.
type DashboardHandlers struct {
	Registry   *domainauth.RoleRegistry
	Activity   ActivityLister // Optional
	Providers  []string
	SignupPath string
	Logger     *slog.Logger
}

type dashboardResponse struct {
	Role           domainauth.Role         `json:"role"`
	DashboardURL   string                  `json:"dashboard_url"`
	Path           string                  `json:"path"`
	Permissions    []domainauth.Permission `json:"permissions"`
	Profile        *domainauth.Profile     `json:"profile"`
	RecentActivity []domainauth.Activity   `json:"recent_activity"`
}

// Dashboard describes the caller's dashboard. The gate has already authorised
// the path and placed the profile in the request context.
func (h *DashboardHandlers) Dashboard(w http.ResponseWriter, r *http.Request) {
	profile, ok := GetProfileFromContext(r.Context())
	if !ok {
		http.Redirect(w, r, loginRedirectURL(r.URL.Path), http.StatusFound)
		return
	}

	resp := dashboardResponse{
		Role:           profile.Role,
		DashboardURL:   h.Registry.DashboardURLFor(profile.Role),
		Path:           r.URL.Path,
		Permissions:    h.Registry.PermissionsFor(profile.Role),
		Profile:        profile,
		RecentActivity: []domainauth.Activity{},
	}
	if h.Activity != nil {
		acts, err := h.Activity.Recent(r.Context(), profile.ID, dashboardActivityLimit)
		if err != nil {
			h.logger().WarnContext(r.Context(), "failed to load recent activity", "user_id", profile.ID, "error", err)
		} else if acts != nil {
			resp.RecentActivity = acts
		}
	}
	WriteJSON(w, http.StatusOK, resp)
}

// Home describes the landing page.
func (h *DashboardHandlers) Home(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{
		"page":       "home",
		"login_url":  "/login",
		"signup_url": h.signupPath(),
	})
}

// Login describes the login page: the social providers on offer and any error to show.
func (h *DashboardHandlers) Login(w http.ResponseWriter, r *http.Request) {
	providers := h.Providers
	if providers == nil {
		providers = []string{}
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"page":        "login",
		"providers":   providers,
		"redirect_to": safeRedirectPath(r.URL.Query().Get("redirectTo")),
		"error":       r.URL.Query().Get("error"),
		"signup_url":  h.signupPath(),
	})
}

// Signup describes the sign-up page.
func (h *DashboardHandlers) Signup(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{"page": "signup", "login_url": "/login"})
}

// ResetPassword describes the password reset page.
func (h *DashboardHandlers) ResetPassword(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{"page": "reset-password", "login_url": "/login"})
}

// AuthCodeError describes the auth error page, echoing the error it was given.
func (h *DashboardHandlers) AuthCodeError(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	WriteJSON(w, http.StatusOK, map[string]any{
		"page":              "auth-code-error",
		"error":             q.Get("error"),
		"error_description": q.Get("error_description"),
		"login_url":         "/login",
	})
}

func (h *DashboardHandlers) signupPath() string {
	if h.SignupPath == "" {
		return config.DefaultSignupPath
	}
	return h.SignupPath
}

func (h *DashboardHandlers) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}
