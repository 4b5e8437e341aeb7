package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"github.com/jwalitptl/neuroscan-api/internal/repository"
)

// SQLSTATE codes the repositories classify.
const (
	codeUniqueViolation      = "23505"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
	codeQueryCanceled        = "57014"
)

func sqlState(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func isUniqueViolation(err error) bool {
	return sqlState(err) == codeUniqueViolation
}

// mapError turns driver errors into repository sentinels. Unknown errors
// are returned unchanged for the caller to wrap.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return repository.ErrNotFound
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %w", repository.ErrCanceled, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", repository.ErrStoreBusy, err)
	}

	switch sqlState(err) {
	case codeLockNotAvailable, codeQueryCanceled, codeSerializationFailure, codeDeadlockDetected:
		return fmt.Errorf("%w: %w", repository.ErrStoreBusy, err)
	case codeUniqueViolation:
		return fmt.Errorf("%w: %w", repository.ErrAlreadyExists, err)
	}
	return err
}
