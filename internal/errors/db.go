package errors

import (
	"context"
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
	// reNotPresent detects missing parent: "... is not present in table ...".
	reNotPresent = regexp.MustCompile(`is not present in table "?([^"]+)"?`)
)

// MapDBError maps database errors to AppError instances.
// It handles:
// - pgx.ErrNoRows → NotFound
// - Unique constraint violations → Conflict
// - Foreign key, check and NOT NULL violations → Validation
// - Context timeouts/cancellations → Timeout/Canceled
// - Connection-class failures → Internal
//
// If the error is not a recognized database error, it returns the original error.
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
	if errors.Is(err, pgx.ErrNoRows) {
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
		return mapUniqueViolation(pgErr)
	case pgerrcode.ForeignKeyViolation:
		return mapForeignKeyViolation(pgErr)
	case pgerrcode.CheckViolation:
		return &AppError{
			Code:    ErrCodeValidation,
			Message: "The " + mapTableToDomain(pgErr.TableName) + " value is not allowed.",
			Field:   inferFieldFromConstraint(pgErr.ConstraintName),
			Cause:   pgErr,
		}
	case pgerrcode.NotNullViolation:
		return &AppError{
			Code:    ErrCodeValidation,
			Message: "A required field is missing.",
			Field:   pgErr.ColumnName,
			Cause:   pgErr,
		}
	default:
		if pgerrcode.IsConnectionException(pgErr.Code) {
			return &AppError{Code: ErrCodeInternal, Message: "The database is unavailable.", Cause: pgErr}
		}
		return &AppError{Code: ErrCodeInternal, Message: "A database error occurred. Please try again.", Cause: pgErr}
	}
}

func mapUniqueViolation(pgErr *pgconn.PgError) error {
	field := pgErr.ColumnName
	if field == "" && pgErr.Detail != "" {
		if m := reKeyField.FindStringSubmatch(pgErr.Detail); len(m) == 2 {
			field = m[1]
		}
	}
	if field == "" {
		field = inferFieldFromConstraint(pgErr.ConstraintName)
	}
	return &AppError{
		Code:    ErrCodeConflict,
		Message: "This value already exists. Please choose a different one.",
		Field:   field,
		Cause:   pgErr,
	}
}

func mapForeignKeyViolation(pgErr *pgconn.PgError) error {
	table := pgErr.TableName
	if m := reNotPresent.FindStringSubmatch(pgErr.Detail); len(m) == 2 {
		table = m[1]
	}
	return &AppError{
		Code:    ErrCodeValidation,
		Message: "The referenced " + mapTableToDomain(table) + " does not exist.",
		Cause:   pgErr,
	}
}

// inferFieldFromConstraint extracts a single column from constraint names
// shaped like "<table>_<column>_key" or "<table>_<column>_check".
func inferFieldFromConstraint(constraint string) string {
	for _, suffix := range []string{"_key", "_check", "_fkey"} {
		if !strings.HasSuffix(constraint, suffix) {
			continue
		}
		parts := strings.Split(strings.TrimSuffix(constraint, suffix), "_")
		if len(parts) == 2 {
			return parts[1]
		}
		return ""
	}
	return ""
}

// mapTableToDomain converts table names to user-facing names.
func mapTableToDomain(table string) string {
	switch table {
	case "identities":
		return "identity"
	case "lockouts":
		return "lockout"
	case "audit_events":
		return "audit event"
	case "role_permissions":
		return "role permission"
	case "":
		return "record"
	default:
		return strings.ReplaceAll(strings.TrimSuffix(table, "s"), "_", " ")
	}
}
