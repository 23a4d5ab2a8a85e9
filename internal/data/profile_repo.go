package data

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	domainauth "github.com/novakinetix/academy/internal/domain/auth"
	"github.com/novakinetix/academy/internal/data/pgxutil"
	apperrors "github.com/novakinetix/academy/internal/errors"
	"github.com/novakinetix/academy/internal/ports"
)

var _ ports.ProfileStore = (*ProfileRepo)(nil)

const profileColumns = `id, email, full_name, role, email_verified, first_login, created_at, updated_at, last_login`

const (
	profileGetByIDQuery    = `SELECT ` + profileColumns + ` FROM profiles WHERE id = $1`
	profileGetByEmailQuery = `SELECT ` + profileColumns + ` FROM profiles WHERE lower(email) = lower($1)`

	// On conflict the stored role is kept and a blank name is filled in.
	profileUpsertQuery = `
		INSERT INTO profiles (id, email, full_name, role, email_verified, first_login, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		ON CONFLICT (id) DO UPDATE SET
			email = EXCLUDED.email,
			full_name = CASE WHEN profiles.full_name = '' THEN EXCLUDED.full_name ELSE profiles.full_name END,
			updated_at = EXCLUDED.updated_at
		RETURNING ` + profileColumns

	profileRecordLoginQuery = `UPDATE profiles SET last_login = $2, first_login = FALSE, updated_at = $2 WHERE id = $1`
	profileSetRoleQuery     = `UPDATE profiles SET role = $2, updated_at = $3 WHERE id = $1`
)

// ProfileRepo provides database operations for user profiles.
type ProfileRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewProfileRepo creates a new ProfileRepo with real time provider.
func NewProfileRepo(db *sql.DB) *ProfileRepo {
	return &ProfileRepo{DB: db, timeProvider: &RealTimeProvider{}}
}

// NewProfileRepoWithTimeProvider creates a new ProfileRepo with a custom time provider (useful for tests).
func NewProfileRepoWithTimeProvider(db *sql.DB, tp TimeProvider) *ProfileRepo {
	return &ProfileRepo{DB: db, timeProvider: tp}
}

// Get retrieves a profile by user id.
func (r *ProfileRepo) Get(ctx context.Context, id string) (domainauth.Profile, error) {
	if strings.TrimSpace(id) == "" {
		return domainauth.Profile{}, ErrProfileIDRequired
	}
	return r.getOne(ctx, profileGetByIDQuery, id)
}

// GetByEmail retrieves a profile by email, case-insensitively.
func (r *ProfileRepo) GetByEmail(ctx context.Context, email string) (domainauth.Profile, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return domainauth.Profile{}, ErrEmailRequired
	}
	return r.getOne(ctx, profileGetByEmailQuery, email)
}

// Upsert inserts a profile or refreshes an existing one. The stored role is never overwritten.
func (r *ProfileRepo) Upsert(ctx context.Context, p domainauth.Profile) (domainauth.Profile, error) {
	if strings.TrimSpace(p.ID) == "" {
		return domainauth.Profile{}, ErrProfileIDRequired
	}
	if strings.TrimSpace(p.Email) == "" {
		return domainauth.Profile{}, ErrEmailRequired
	}
	role := p.Role
	if role == "" {
		role = domainauth.RoleStudent
	}
	if !role.Valid() {
		return domainauth.Profile{}, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}

	now := r.timeProvider.Now().UTC()
	row := r.DB.QueryRowContext(ctx, profileUpsertQuery,
		p.ID,
		strings.TrimSpace(p.Email),
		strings.TrimSpace(p.FullName),
		string(role),
		p.EmailVerified,
		p.FirstLogin,
		now,
	)
	out, err := scanProfile(row)
	if err != nil {
		return domainauth.Profile{}, apperrors.MapDBError(fmt.Errorf("upsert profile %s: %w", p.ID, err))
	}
	return out, nil
}

// RecordLogin stamps last_login and clears the first-login flag.
func (r *ProfileRepo) RecordLogin(ctx context.Context, id string, at time.Time) error {
	if strings.TrimSpace(id) == "" {
		return ErrProfileIDRequired
	}
	if at.IsZero() {
		at = r.timeProvider.Now()
	}
	return r.execOne(ctx, "record login", id, profileRecordLoginQuery, id, at.UTC())
}

// SetRole changes a profile's role.
func (r *ProfileRepo) SetRole(ctx context.Context, id string, role domainauth.Role) error {
	if strings.TrimSpace(id) == "" {
		return ErrProfileIDRequired
	}
	if !role.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	return r.execOne(ctx, "set role", id, profileSetRoleQuery, id, string(role), r.timeProvider.Now().UTC())
}

// ChangeRole sets a profile's role and appends audit to user_activities in
// one transaction. Neither write lands if the other fails.
func (r *ProfileRepo) ChangeRole(ctx context.Context, id string, role domainauth.Role, audit domainauth.Activity) error {
	if strings.TrimSpace(id) == "" {
		return ErrProfileIDRequired
	}
	if !role.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	if audit.UserID == "" {
		audit.UserID = id
	}
	auditArgs, err := activityInsertArgs(audit, r.timeProvider)
	if err != nil {
		return err
	}

	return pgxutil.WithSQLTx(ctx, r.DB, pgxutil.SQLTxConfig{Fn: func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, profileSetRoleQuery, id, string(role), r.timeProvider.Now().UTC())
		if err != nil {
			return apperrors.MapDBError(fmt.Errorf("change role %s: %w", id, err))
		}
		if n, err := res.RowsAffected(); err != nil {
			return fmt.Errorf("change role %s: rows affected: %w", id, err)
		} else if n == 0 {
			return apperrors.NotFoundf("profile %s not found", id)
		}
		if _, err := tx.ExecContext(ctx, activityInsertQuery, auditArgs...); err != nil {
			return apperrors.MapDBError(fmt.Errorf("record role change: %w", err))
		}
		return nil
	}})
}

func (r *ProfileRepo) getOne(ctx context.Context, query, arg string) (domainauth.Profile, error) {
	p, err := scanProfile(r.DB.QueryRowContext(ctx, query, arg))
	if err != nil {
		return domainauth.Profile{}, apperrors.MapDBError(fmt.Errorf("get profile: %w", err))
	}
	return p, nil
}

func (r *ProfileRepo) execOne(ctx context.Context, op, id, query string, args ...any) error {
	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.MapDBError(fmt.Errorf("%s %s: %w", op, id, err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s %s: rows affected: %w", op, id, err)
	}
	if n == 0 {
		return apperrors.NotFoundf("profile %s not found", id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanProfile reads one profile row. Stored roles are normalized here, so the
// legacy "teacher" value surfaces as intern and anything unrecognised as student.
func scanProfile(row rowScanner) (domainauth.Profile, error) {
	var (
		p         domainauth.Profile
		rawRole   string
		lastLogin sql.NullTime
	)
	if err := row.Scan(
		&p.ID,
		&p.Email,
		&p.FullName,
		&rawRole,
		&p.EmailVerified,
		&p.FirstLogin,
		&p.CreatedAt,
		&p.UpdatedAt,
		&lastLogin,
	); err != nil {
		return domainauth.Profile{}, err
	}
	p.Role = domainauth.RoleOrDefault(rawRole)
	if lastLogin.Valid {
		t := lastLogin.Time
		p.LastLogin = &t
	}
	return p, nil
}
