package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/neuroscan-api/internal/repository"
	"github.com/jwalitptl/neuroscan-api/pkg/metrics"
)

// DefaultOperationTimeout bounds every store operation.
const DefaultOperationTimeout = 30 * time.Second

// BaseRepository provides common functionality for all repositories
type BaseRepository struct {
	db      *sqlx.DB
	timeout time.Duration
	metrics *metrics.Metrics
}

// NewBaseRepository creates a new base repository. m may be nil.
func NewBaseRepository(db *sqlx.DB, timeout time.Duration, m *metrics.Metrics) BaseRepository {
	if timeout <= 0 {
		timeout = DefaultOperationTimeout
	}
	return BaseRepository{db: db, timeout: timeout, metrics: m}
}

// GetDB returns the database instance
func (r *BaseRepository) GetDB() *sqlx.DB {
	return r.db
}

func (r *BaseRepository) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.db.PingContext(ctx)
}

// run bounds fn by the operation timeout, records metrics and maps the
// driver error.
// A canceled caller yields ErrCanceled whatever the driver reported.
func (r *BaseRepository) run(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	opCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	err := mapError(fn(opCtx))
	if err != nil && !errors.Is(err, repository.ErrCanceled) && errors.Is(ctx.Err(), context.Canceled) {
		err = fmt.Errorf("%w: %w", repository.ErrCanceled, err)
	}
	r.observe(op, start, err)
	return err
}

func (r *BaseRepository) observe(op string, start time.Time, err error) {
	if r.metrics == nil {
		return
	}
	status := "ok"
	switch {
	case errors.Is(err, repository.ErrCanceled):
		status = "canceled"
	case err != nil && !errors.Is(err, repository.ErrNotFound):
		status = "error"
	}
	r.metrics.DatabaseOperations.WithLabelValues(op, status).Inc()
	r.metrics.DatabaseLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// WithTx executes fn within a transaction bounded by the operation timeout.
// Row locks wait at most as long as the operation itself.
func (r *BaseRepository) WithTx(ctx context.Context, op string, fn func(ctx context.Context, tx *sqlx.Tx) error) error {
	return r.run(ctx, op, func(ctx context.Context) error {
		tx, err := r.db.BeginTxx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}

		defer func() {
			if p := recover(); p != nil {
				tx.Rollback()
				panic(p)
			}
		}()

		lockTimeout := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", r.timeout.Milliseconds())
		if _, err := tx.ExecContext(ctx, lockTimeout); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to set lock timeout: %w", err)
		}

		if err := fn(ctx, tx); err != nil {
			tx.Rollback()
			return err
		}

		return tx.Commit()
	})
}

func expectRows(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}
