package errors

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// reKeyField extracts field name from unique violation detail: "Key (field)=(value) already exists.".
	reKeyField = regexp.MustCompile(`Key \(([^)]+)\)=`)
	// reTable extracts the table from FK violation details ("referenced from table", "not present in table").
	reTable = regexp.MustCompile(`(?:from|in) table "?([^"]+)"?`)
)

// tableNames maps tables to the names users see in messages.
var tableNames = map[string]string{
	"profiles":         "Profile",
	"user_activities":  "Activity",
	"auth_credentials": "Credential",
}

// MapDBError maps database errors to AppError instances.
//   - sql.ErrNoRows / pgx.ErrNoRows → NotFound
//   - unique violations → Conflict
//   - foreign key violations → ForeignKey
//   - check and NOT NULL violations → Validation
//   - context deadline/cancel → Timeout/Canceled
//
// Unrecognised errors are returned unchanged.
func MapDBError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &AppError{Code: ErrCodeTimeout, Message: "Request timed out. Please try again.", Cause: err}
	}
	if errors.Is(err, context.Canceled) {
		return &AppError{Code: ErrCodeCanceled, Message: "Request was canceled.", Cause: err}
	}

	if errors.Is(err, sql.ErrNoRows) || errors.Is(err, pgx.ErrNoRows) {
		return &AppError{Code: ErrCodeNotFound, Message: "Resource not found", Cause: err}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return mapPgError(pgErr)
	}

	return err
}

func mapPgError(pgErr *pgconn.PgError) error {
	switch pgErr.Code {
	case pgerrcode.UniqueViolation:
		return &AppError{
			Code:    ErrCodeConflict,
			Message: "This value already exists. Please choose a different one.",
			Field:   uniqueField(pgErr),
			Cause:   pgErr,
		}
	case pgerrcode.ForeignKeyViolation:
		return &AppError{Code: ErrCodeForeignKey, Message: foreignKeyMessage(pgErr), Cause: pgErr}
	case pgerrcode.CheckViolation:
		return validationFor(pgErr, "This field has an invalid value.", "Invalid data. Please check your input.")
	case pgerrcode.NotNullViolation:
		return validationFor(pgErr, "This field is required.", "Required field is missing. Please check your input.")
	default:
		return &AppError{Code: ErrCodeInternal, Message: "A database error occurred. Please try again.", Cause: pgErr}
	}
}

func validationFor(pgErr *pgconn.PgError, withField, generic string) error {
	if pgErr.ColumnName != "" {
		return &AppError{Code: ErrCodeValidation, Message: withField, Field: pgErr.ColumnName, Cause: pgErr}
	}
	return &AppError{Code: ErrCodeValidation, Message: generic, Cause: pgErr}
}

// uniqueField prefers ColumnName, then the Detail message, then the constraint name.
func uniqueField(pgErr *pgconn.PgError) string {
	if pgErr.ColumnName != "" {
		return pgErr.ColumnName
	}
	if m := reKeyField.FindStringSubmatch(pgErr.Detail); len(m) == 2 {
		return m[1]
	}
	return inferFieldFromConstraint(pgErr.TableName, pgErr.ConstraintName)
}

func foreignKeyMessage(pgErr *pgconn.PgError) string {
	table := pgErr.TableName
	if m := reTable.FindStringSubmatch(pgErr.Detail); len(m) == 2 {
		table = m[1]
	}
	switch {
	case strings.Contains(pgErr.Detail, "is not present in table"):
		return "Cannot complete operation because the referenced " + displayTable(table) + " does not exist."
	case table != "":
		return "Cannot complete operation because this item is in use by " + displayTable(table) + "."
	default:
		return "Cannot complete operation because this item is in use."
	}
}

// inferFieldFromConstraint strips the table prefix and the key suffix from a
// constraint name: "profiles_email_key" → "email". Multi-column names yield "".
func inferFieldFromConstraint(table, constraint string) string {
	if constraint == "" {
		return ""
	}
	name := constraint
	if table != "" {
		name = strings.TrimPrefix(name, table+"_")
	} else if _, rest, ok := strings.Cut(name, "_"); ok {
		name = rest
	}
	for _, suffix := range []string{"_key", "_unique", "_idx"} {
		name = strings.TrimSuffix(name, suffix)
	}
	if name == "" || strings.Contains(name, "_") || name == constraint {
		return ""
	}
	return name
}

func displayTable(table string) string {
	table = strings.ToLower(strings.TrimSpace(table))
	if name, ok := tableNames[table]; ok {
		return name
	}
	return strings.ReplaceAll(table, "_", " ")
}
