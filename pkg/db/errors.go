package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// IsUniqueViolation reports whether the provided error references a Postgres
// unique violation constraint. When constraintName is provided, the helper looks
// for the constraint text in the error message.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	if constraintName != "" {
		return strings.Contains(msg, constraintName)
	}
	return strings.Contains(msg, "duplicate key value")
}

// lockNotAvailable is the Postgres SQLSTATE raised when a NOWAIT or
// lock_timeout-bounded row lock cannot be acquired.
const lockNotAvailable = "55P03"

// IsLockTimeout reports whether the error is a Postgres lock acquisition
// timeout. Callers map it to a retryable busy error at the boundary.
func IsLockTimeout(err error) bool {
	if err == nil {
		return false
	}

	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return pgxErr.Code == lockNotAvailable
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == lockNotAvailable
	}

	return strings.Contains(err.Error(), "lock timeout") ||
		strings.Contains(err.Error(), "could not obtain lock")
}
