package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrInvalidAmount         = errors.New("amount must be positive")
	ErrAssetNotFound         = errors.New("asset type not found")
	ErrAccountNotFound       = errors.New("account not found")
	ErrTreasuryNotConfigured = errors.New("treasury account is not configured")
	ErrWalletNotFound        = errors.New("wallet not found")
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrDuplicateRequest      = errors.New("duplicate request")
	ErrSerializationConflict = errors.New("concurrent transaction conflict, retry the request")
)

const (
	pgUniqueViolation      = "23505"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

// IsSerializationFailure reports whether err is a Postgres serialization or
// deadlock abort, the one failure a caller may retry verbatim.
func IsSerializationFailure(err error) bool {
	if errors.Is(err, ErrSerializationConflict) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgSerializationFailure || pgErr.Code == pgDeadlockDetected
	}
	return false
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
