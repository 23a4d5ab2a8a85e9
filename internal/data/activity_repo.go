package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	domainauth "github.com/novakinetix/academy/internal/domain/auth"
	apperrors "github.com/novakinetix/academy/internal/errors"
	"github.com/novakinetix/academy/internal/ports"
)

var _ ports.ActivityStore = (*ActivityRepo)(nil)

const (
	activityInsertQuery = `
		INSERT INTO user_activities (id, user_id, activity_type, description, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	activityListByUserQuery = `
		SELECT id, user_id, activity_type, description, metadata, created_at
		FROM user_activities
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`
)

// ActivityRepo appends and lists audit rows in user_activities.
type ActivityRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewActivityRepo creates a new ActivityRepo with real time provider.
func NewActivityRepo(db *sql.DB) *ActivityRepo {
	return &ActivityRepo{DB: db, timeProvider: &RealTimeProvider{}}
}

// NewActivityRepoWithTimeProvider creates a new ActivityRepo with a custom time provider.
func NewActivityRepoWithTimeProvider(db *sql.DB, tp TimeProvider) *ActivityRepo {
	return &ActivityRepo{DB: db, timeProvider: tp}
}

// Record inserts an activity. Missing id and timestamp are filled in.
func (r *ActivityRepo) Record(ctx context.Context, a domainauth.Activity) error {
	args, err := activityInsertArgs(a, r.timeProvider)
	if err != nil {
		return err
	}
	if _, err := r.DB.ExecContext(ctx, activityInsertQuery, args...); err != nil {
		return apperrors.MapDBError(fmt.Errorf("record %s activity: %w", a.Type, err))
	}
	return nil
}

func activityInsertArgs(a domainauth.Activity, tp TimeProvider) ([]any, error) {
	if strings.TrimSpace(a.UserID) == "" {
		return nil, ErrUserIDRequired
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = tp.Now()
	}
	meta := a.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("marshal activity metadata: %w", err)
	}
	return []any{a.ID, a.UserID, string(a.Type), a.Description, metaJSON, a.CreatedAt.UTC()}, nil
}

// ListByUser returns the most recent activities for a user, newest first.
func (r *ActivityRepo) ListByUser(ctx context.Context, userID string, limit int) (out []domainauth.Activity, err error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrUserIDRequired
	}
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	rows, err := r.DB.QueryContext(ctx, activityListByUserQuery, userID, limit)
	if err != nil {
		return nil, apperrors.MapDBError(fmt.Errorf("list activities: %w", err))
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}()

	for rows.Next() {
		var (
			a        domainauth.Activity
			typ      string
			metaJSON []byte
		)
		if err = rows.Scan(&a.ID, &a.UserID, &typ, &a.Description, &metaJSON, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		a.Type = domainauth.ActivityType(typ)
		if len(metaJSON) > 0 {
			if err = json.Unmarshal(metaJSON, &a.Metadata); err != nil {
				return nil, fmt.Errorf("decode activity metadata: %w", err)
			}
		}
		out = append(out, a)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activities: %w", err)
	}
	return out, nil
}
