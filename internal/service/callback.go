package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	domainauth "github.com/novakinetix/academy/internal/domain/auth"
	apperrors "github.com/novakinetix/academy/internal/errors"
	"github.com/novakinetix/academy/internal/ports"
)

var (
	// ErrIncompleteGrant is returned when a grant lacks a user or a session.
	ErrIncompleteGrant = errors.New("grant is missing user or session")
	// ErrProfileNotFound is returned by password login when no profile exists.
	ErrProfileNotFound = errors.New("user profile not found")
	// ErrAccountExists is returned when a new identity's email already belongs
	// to another profile.
	ErrAccountExists = errors.New("an account with this email already exists")
)

// CallbackStores groups the persistence ports used by CallbackService.
type CallbackStores struct {
	Profiles   ports.ProfileStore  // Required
	Activities ports.ActivityStore // Optional: audit rows are skipped without it
}

// CallbackRoles groups role assignment and routing.
type CallbackRoles struct {
	Assigner ports.RoleAssigner       // Optional: everyone provisions as student without it
	Registry *domainauth.RoleRegistry // Optional: defaults to domainauth.DefaultRegistry
}

// CallbackServiceOptions groups dependencies for CallbackService.
type CallbackServiceOptions struct {
	Stores CallbackStores
	Roles  CallbackRoles
	Logger *slog.Logger
}

// CallbackService turns a fresh grant into a routed, provisioned login.
type CallbackService struct {
	profiles ports.ProfileStore
	activity *ActivityRecorder
	assigner ports.RoleAssigner
	registry *domainauth.RoleRegistry
	logger   *slog.Logger
	now      func() time.Time
}

// NewCallbackService constructs a CallbackService. It panics if the profile store is nil.
func NewCallbackService(opts CallbackServiceOptions) *CallbackService {
	if opts.Stores.Profiles == nil {
		panic("service: CallbackService requires a profile store")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	registry := opts.Roles.Registry
	if registry == nil {
		registry = domainauth.DefaultRegistry()
	}
	return &CallbackService{
		profiles: opts.Stores.Profiles,
		activity: NewActivityRecorder(opts.Stores.Activities, logger),
		assigner: opts.Roles.Assigner,
		registry: registry,
		logger:   logger.With("component", "callback_service"),
		now:      time.Now,
	}
}

// CallbackOutcome is the result of completing a login.
type CallbackOutcome struct {
	Profile     domainauth.Profile
	Role        domainauth.Role
	RedirectURL string
	NewUser     bool
	// SideEffectErrors holds failures of best-effort writes (activity, last_login).
	SideEffectErrors []error
}

// Complete finishes a social login: it provisions a profile on first sight,
// records the login and picks the dashboard to land on.
func (s *CallbackService) Complete(ctx context.Context, grant *domainauth.Grant) (*CallbackOutcome, error) {
	if !grant.Complete() {
		return nil, ErrIncompleteGrant
	}
	identity := grant.Identity

	profile, err := s.profiles.Get(ctx, identity.UserID)
	switch {
	case err == nil:
	case apperrors.IsNotFound(err):
		profile, err = s.provision(ctx, identity)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("load profile: %w", err)
	}

	newUser := !identity.EmailConfirmed || profile.FirstLogin

	activity := domainauth.Activity{
		UserID:      profile.ID,
		Type:        domainauth.ActivitySocialLogin,
		Description: "Logged in via " + identity.Provider,
		Metadata: map[string]any{
			"provider": identity.Provider,
			"email":    identity.Email,
		},
	}
	if newUser {
		activity.Type = domainauth.ActivitySocialSignup
		activity.Description = "Signed up via " + identity.Provider
	}

	out := s.outcome(profile, newUser)
	out.SideEffectErrors = s.recordLogin(ctx, profile.ID, activity)
	return out, nil
}

// CompletePasswordLogin finishes a password login. Unlike social login it never
// provisions: a credential without a profile is rejected with ErrProfileNotFound.
func (s *CallbackService) CompletePasswordLogin(ctx context.Context, grant *domainauth.Grant) (*CallbackOutcome, error) {
	if !grant.Complete() {
		return nil, ErrIncompleteGrant
	}

	profile, err := s.profiles.Get(ctx, grant.Identity.UserID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("load profile: %w", err)
	}

	out := s.outcome(profile, false)
	out.SideEffectErrors = s.recordLogin(ctx, profile.ID, domainauth.Activity{
		UserID:      profile.ID,
		Type:        domainauth.ActivityLogin,
		Description: "User logged in",
		Metadata:    map[string]any{"method": "password"},
	})
	return out, nil
}

// RecordLogout writes the logout audit row, best-effort.
func (s *CallbackService) RecordLogout(ctx context.Context, userID string) error {
	if userID == "" {
		return nil
	}
	return s.activity.Record(ctx, domainauth.Activity{
		UserID:      userID,
		Type:        domainauth.ActivityLogout,
		Description: "User logged out",
	})
}

// Registry exposes the role registry used for routing.
func (s *CallbackService) Registry() *domainauth.RoleRegistry { return s.registry }

func (s *CallbackService) provision(ctx context.Context, identity domainauth.Identity) (domainauth.Profile, error) {
	// Allow-listed roles are only granted to emails the provider verified.
	role := domainauth.RoleStudent
	if s.assigner != nil && identity.EmailConfirmed {
		role = s.assigner.AssignRole(identity.Email)
	}

	stored, err := s.profiles.Upsert(ctx, domainauth.Profile{
		ID:            identity.UserID,
		Email:         identity.Email,
		FullName:      domainauth.DisplayName(identity.FullName, identity.Email),
		Role:          role,
		EmailVerified: identity.EmailConfirmed,
		FirstLogin:    true,
	})
	if err != nil {
		if apperrors.IsConflict(err) {
			return domainauth.Profile{}, fmt.Errorf("provision profile: %w: %w", ErrAccountExists, err)
		}
		return domainauth.Profile{}, fmt.Errorf("provision profile: %w", err)
	}
	s.logger.InfoContext(ctx, "profile provisioned",
		"user_id", stored.ID,
		"role", string(stored.Role),
		"provider", identity.Provider,
	)
	return stored, nil
}

func (s *CallbackService) outcome(profile domainauth.Profile, newUser bool) *CallbackOutcome {
	role := profile.Role
	return &CallbackOutcome{
		Profile:     profile,
		Role:        role,
		RedirectURL: s.registry.DashboardURLFor(role),
		NewUser:     newUser,
	}
}

// recordLogin runs the best-effort writes in order and collects their failures.
func (s *CallbackService) recordLogin(ctx context.Context, userID string, a domainauth.Activity) []error {
	var errs []error
	if err := s.activity.Record(ctx, a); err != nil {
		errs = append(errs, fmt.Errorf("record activity: %w", err))
	}
	if err := s.profiles.RecordLogin(ctx, userID, s.now()); err != nil {
		s.logger.WarnContext(ctx, "failed to update last login", "user_id", userID, "error", err)
		errs = append(errs, fmt.Errorf("update last login: %w", err))
	}
	return errs
}
