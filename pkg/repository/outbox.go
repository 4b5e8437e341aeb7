package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/neuroscan-api/internal/model"
)

// OutboxRepository is the part of the outbox store the workers need.
type OutboxRepository interface {
	ClaimBatch(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
	MarkProcessed(ctx context.Context, id uuid.UUID) error
	MarkRetry(ctx context.Context, id uuid.UUID, errMsg string, retryAt time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error
	DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
}
