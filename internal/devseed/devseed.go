package devseed

import (
	"context"
	"fmt"
	"log/slog"

	domainauth "github.com/novakinetix/academy/internal/domain/auth"
	apperrors "github.com/novakinetix/academy/internal/errors"
	"github.com/novakinetix/academy/internal/ports"
	"github.com/novakinetix/academy/internal/service"
)

// DefaultPassword is the password given to every seeded development account.
const DefaultPassword = "academy-dev-password"

// Account describes one seeded development login.
type Account struct {
	Email    string
	FullName string
	Role     domainauth.Role
}

// DefaultAccounts returns one confirmed account per role.
func DefaultAccounts() []Account {
	return []Account{
		{Email: "admin@dev.novakinetix.academy", FullName: "Dev Admin", Role: domainauth.RoleAdmin},
		{Email: "intern@dev.novakinetix.academy", FullName: "Dev Intern", Role: domainauth.RoleIntern},
		{Email: "parent@dev.novakinetix.academy", FullName: "Dev Parent", Role: domainauth.RoleParent},
		{Email: "student@dev.novakinetix.academy", FullName: "Dev Student", Role: domainauth.RoleStudent},
	}
}

// AccountCreator creates password credentials.
type AccountCreator interface {
	CreatePasswordAccount(ctx context.Context, in service.CreateAccountInput) (domainauth.Credential, error)
}

// Services bundles the dependencies needed for development seeding.
type Services struct {
	Accounts AccountCreator
	Profiles ports.ProfileStore
}

// Run creates every account in accounts. Accounts whose email is already
// registered are left alone, so Run can be repeated safely.
func Run(ctx context.Context, svcs Services, accounts []Account, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	failures := 0
	for _, acct := range accounts {
		created, err := seedAccount(ctx, svcs, acct)
		if err != nil {
			logger.ErrorContext(ctx, "failed to seed account", "email", acct.Email, "error", err)
			failures++
			continue
		}
		msg := "account already exists"
		if created {
			msg = "created account"
		}
		logger.InfoContext(ctx, msg, "email", acct.Email, "role", acct.Role)
	}
	if failures > 0 {
		return fmt.Errorf("%d seed errors; check logs", failures)
	}
	return nil
}

func seedAccount(ctx context.Context, svcs Services, acct Account) (bool, error) {
	cred, err := svcs.Accounts.CreatePasswordAccount(ctx, service.CreateAccountInput{
		Email:     acct.Email,
		Password:  DefaultPassword,
		Confirmed: true,
	})
	if err != nil {
		if apperrors.IsConflict(err) {
			return false, nil
		}
		return false, err
	}
	if _, err := svcs.Profiles.Upsert(ctx, domainauth.Profile{
		ID:            cred.UserID,
		Email:         cred.Email,
		FullName:      acct.FullName,
		Role:          acct.Role,
		EmailVerified: true,
		FirstLogin:    true,
	}); err != nil {
		return false, fmt.Errorf("provision profile: %w", err)
	}
	return true, nil
}
