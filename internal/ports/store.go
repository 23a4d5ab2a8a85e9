package ports

import (
	"context"
	"time"

	domainauth "github.com/novakinetix/academy/internal/domain/auth"
)

// ProfileReader looks up a profile by user id. A missing profile is reported
// with an error for which internal/errors.IsNotFound returns true. Roles come
// back canonical; callers do not normalize them again.
type ProfileReader interface {
	Get(ctx context.Context, id string) (domainauth.Profile, error)
}

// ProfileStore is the full profile persistence port.
type ProfileStore interface {
	ProfileReader
	GetByEmail(ctx context.Context, email string) (domainauth.Profile, error)
	// Upsert inserts p, or refreshes email and name when a profile with the same id
	// exists. An existing role is never overwritten. Returns the stored row, or a
	// conflict error when the email belongs to another profile.
	Upsert(ctx context.Context, p domainauth.Profile) (domainauth.Profile, error)
	// RecordLogin sets last_login and clears first_login.
	RecordLogin(ctx context.Context, id string, at time.Time) error
	SetRole(ctx context.Context, id string, role domainauth.Role) error
}

// ActivityStore appends audit rows.
type ActivityStore interface {
	Record(ctx context.Context, a domainauth.Activity) error
	ListByUser(ctx context.Context, userID string, limit int) ([]domainauth.Activity, error)
}
