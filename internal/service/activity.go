package service

import (
	"context"
	"log/slog"
	"time"

	domainauth "github.com/novakinetix/academy/internal/domain/auth"
	"github.com/novakinetix/academy/internal/ports"
)

// ActivityRecorder writes audit rows on a best-effort basis: a failed write is
// logged at WARN and returned, but never stops the caller's flow.
type ActivityRecorder struct {
	store  ports.ActivityStore
	logger *slog.Logger
	now    func() time.Time
}

// NewActivityRecorder constructs an ActivityRecorder. A nil store makes every call a no-op.
func NewActivityRecorder(store ports.ActivityStore, logger *slog.Logger) *ActivityRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &ActivityRecorder{store: store, logger: logger.With("component", "activity"), now: time.Now}
}

// Record attempts to write a and returns the write error, if any.
func (r *ActivityRecorder) Record(ctx context.Context, a domainauth.Activity) error {
	if r == nil || r.store == nil {
		return nil
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = r.now()
	}
	if err := r.store.Record(ctx, a); err != nil {
		r.logger.WarnContext(ctx, "failed to record activity",
			"user_id", a.UserID,
			"activity_type", string(a.Type),
			"error", err,
		)
		return err
	}
	return nil
}

// Recent lists a user's latest activities.
func (r *ActivityRecorder) Recent(ctx context.Context, userID string, limit int) ([]domainauth.Activity, error) {
	if r == nil || r.store == nil {
		return nil, nil
	}
	return r.store.ListByUser(ctx, userID, limit)
}
