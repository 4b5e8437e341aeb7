package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/neuroscan-api/internal/model"
	"github.com/jwalitptl/neuroscan-api/internal/repository"
)

// ClaimLease is how long a claimed event may stay in processing before
// another claim picks it up again.
const ClaimLease = 5 * time.Minute

type outboxRepository struct {
	BaseRepository
}

func NewOutboxRepository(base BaseRepository) repository.OutboxRepository {
	return &outboxRepository{base}
}

func (r *outboxRepository) Create(ctx context.Context, event *model.OutboxEvent) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}
	if event.Payload == nil {
		return fmt.Errorf("event payload cannot be nil")
	}

	query := `
		INSERT INTO outbox_events (
			id, event_type, payload, status, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6
		)
	`
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	event.CreatedAt = time.Now().UTC()
	event.UpdatedAt = event.CreatedAt
	event.Status = model.OutboxStatusPending

	return r.run(ctx, "outbox.create", func(ctx context.Context) error {
		_, err := r.db.ExecContext(ctx, query,
			event.ID,
			event.EventType,
			string(event.Payload),
			event.Status,
			event.CreatedAt,
			event.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to create outbox event: %w", err)
		}
		return nil
	})
}

func (r *outboxRepository) ClaimBatch(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	query := `
		UPDATE outbox_events
		SET status = 'processing', updated_at = NOW()
		WHERE id IN (
			SELECT id FROM outbox_events
			WHERE (status IN ('pending', 'retry') AND (retry_at IS NULL OR retry_at <= NOW()))
			   OR (status = 'processing' AND updated_at < NOW() - make_interval(secs => $2))
			ORDER BY created_at ASC
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, event_type, payload, status, error_message, created_at, processed_at,
			updated_at, retry_count, retry_at
	`

	events := []*model.OutboxEvent{}
	err := r.run(ctx, "outbox.claim_batch", func(ctx context.Context) error {
		if err := r.db.SelectContext(ctx, &events, query, limit, ClaimLease.Seconds()); err != nil {
			return fmt.Errorf("failed to claim outbox events: %w", err)
		}
		return nil
	})
	return events, err
}

func (r *outboxRepository) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	return r.setStatus(ctx, "outbox.mark_processed", `
		UPDATE outbox_events
		SET status = 'processed', error_message = NULL, processed_at = NOW(), updated_at = NOW()
		WHERE id = $1`, id)
}

func (r *outboxRepository) MarkRetry(ctx context.Context, id uuid.UUID, errMsg string, retryAt time.Time) error {
	return r.setStatus(ctx, "outbox.mark_retry", `
		UPDATE outbox_events
		SET status = 'retry', error_message = $2, retry_at = $3, retry_count = retry_count + 1, updated_at = NOW()
		WHERE id = $1`, id, errMsg, retryAt)
}

func (r *outboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	return r.setStatus(ctx, "outbox.mark_failed", `
		UPDATE outbox_events
		SET status = 'failed', error_message = $2, retry_count = retry_count + 1, updated_at = NOW()
		WHERE id = $1`, id, errMsg)
}

func (r *outboxRepository) setStatus(ctx context.Context, op, query string, args ...interface{}) error {
	return r.run(ctx, op, func(ctx context.Context) error {
		res, err := r.db.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to update outbox event: %w", err)
		}
		return expectRows(res)
	})
}

func (r *outboxRepository) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	query := `
		DELETE FROM outbox_events
		WHERE status = 'processed'
		AND processed_at < $1
	`
	var n int64
	err := r.run(ctx, "outbox.delete_processed", func(ctx context.Context) error {
		result, err := r.db.ExecContext(ctx, query, before)
		if err != nil {
			return fmt.Errorf("failed to delete processed events: %w", err)
		}
		n, err = result.RowsAffected()
		return err
	})
	return n, err
}
