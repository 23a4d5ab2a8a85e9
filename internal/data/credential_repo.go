package data

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	domainauth "github.com/novakinetix/academy/internal/domain/auth"
	apperrors "github.com/novakinetix/academy/internal/errors"
	"github.com/novakinetix/academy/internal/ports"
)

var _ ports.CredentialStore = (*CredentialRepo)(nil)

const (
	credentialGetByEmailQuery = `
		SELECT user_id, email, password_hash, email_confirmed, created_at
		FROM auth_credentials
		WHERE lower(email) = lower($1)`

	credentialInsertQuery = `
		INSERT INTO auth_credentials (user_id, email, password_hash, email_confirmed, created_at)
		VALUES ($1, $2, $3, $4, $5)`
)

// CredentialRepo stores password credentials. Hashing happens in the service layer.
type CredentialRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewCredentialRepo creates a new CredentialRepo with real time provider.
func NewCredentialRepo(db *sql.DB) *CredentialRepo {
	return &CredentialRepo{DB: db, timeProvider: &RealTimeProvider{}}
}

// GetByEmail looks up a credential by email, case-insensitively.
func (r *CredentialRepo) GetByEmail(ctx context.Context, email string) (domainauth.Credential, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return domainauth.Credential{}, ErrEmailRequired
	}

	var c domainauth.Credential
	err := r.DB.QueryRowContext(ctx, credentialGetByEmailQuery, email).
		Scan(&c.UserID, &c.Email, &c.PasswordHash, &c.EmailConfirmed, &c.CreatedAt)
	if err != nil {
		return domainauth.Credential{}, apperrors.MapDBError(fmt.Errorf("get credential: %w", err))
	}
	return c, nil
}

// Create inserts a new credential. A duplicate email maps to a Conflict error.
func (r *CredentialRepo) Create(ctx context.Context, c domainauth.Credential) error {
	if strings.TrimSpace(c.UserID) == "" {
		return ErrUserIDRequired
	}
	if strings.TrimSpace(c.Email) == "" {
		return ErrEmailRequired
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = r.timeProvider.Now()
	}
	if _, err := r.DB.ExecContext(ctx, credentialInsertQuery,
		c.UserID,
		strings.ToLower(strings.TrimSpace(c.Email)),
		c.PasswordHash,
		c.EmailConfirmed,
		c.CreatedAt.UTC(),
	); err != nil {
		return apperrors.MapDBError(fmt.Errorf("create credential: %w", err))
	}
	return nil
}
