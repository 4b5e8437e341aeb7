package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jwalitptl/neuroscan-api/internal/email"
	"github.com/jwalitptl/neuroscan-api/internal/model"
	"github.com/jwalitptl/neuroscan-api/pkg/logger"
	"github.com/jwalitptl/neuroscan-api/pkg/messaging"
	"github.com/jwalitptl/neuroscan-api/pkg/metrics"
	"github.com/jwalitptl/neuroscan-api/pkg/repository"
)

// errPermanent marks events that no retry can deliver.
var errPermanent = errors.New("permanent failure")

const maxRetryDelay = time.Hour

type OutboxProcessorConfig struct {
	BatchSize     int
	PollInterval  time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
}

// OutboxProcessor delivers queued events: notification.email goes to the
// mail sender, every other known type to the event publisher.
type OutboxProcessor struct {
	repo      repository.OutboxRepository
	sender    email.Sender
	publisher messaging.Publisher
	config    OutboxProcessorConfig
	logger    *logger.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

// NewOutboxProcessor panics on a config LoadConfig would have rejected.
// publisher may be nil, in which case domain events are marked processed
// without being sent anywhere.
func NewOutboxProcessor(
	repo repository.OutboxRepository,
	sender email.Sender,
	publisher messaging.Publisher,
	config OutboxProcessorConfig,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *OutboxProcessor {
	if config.BatchSize <= 0 {
		panic("BatchSize must be greater than 0")
	}
	if config.PollInterval <= 0 {
		panic("PollInterval must be greater than 0")
	}
	if config.RetryAttempts <= 0 {
		panic("RetryAttempts must be greater than 0")
	}
	if config.RetryDelay <= 0 {
		panic("RetryDelay must be greater than 0")
	}

	return &OutboxProcessor{
		repo:      repo,
		sender:    sender,
		publisher: publisher,
		config:    config,
		logger:    logger,
		metrics:   metrics,
		now:       time.Now,
	}
}

func (p *OutboxProcessor) Start(ctx context.Context) {
	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	p.logger.Info("Starting outbox processor")

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Shutting down outbox processor")
			return
		case <-ticker.C:
			if _, err := p.ProcessBatch(ctx); err != nil {
				p.logger.Error(err, "Failed to process events")
			}
		}
	}
}

// ProcessBatch claims and delivers one batch and returns how many events it
// claimed.
func (p *OutboxProcessor) ProcessBatch(ctx context.Context) (int, error) {
	timer := prometheus.NewTimer(p.metrics.OutboxProcessingLatency)
	defer timer.ObserveDuration()

	events, err := p.repo.ClaimBatch(ctx, p.config.BatchSize)
	if err != nil {
		p.metrics.DatabaseOperations.WithLabelValues("claim_outbox_batch", "error").Inc()
		return 0, fmt.Errorf("failed to claim events: %w", err)
	}
	p.metrics.DatabaseOperations.WithLabelValues("claim_outbox_batch", "success").Inc()
	p.metrics.OutboxQueueSize.Set(float64(len(events)))

	for _, event := range events {
		if err := p.processEvent(ctx, event); err != nil {
			p.logger.Error(err, "Failed to process event",
				"event_id", event.ID.String(),
				"event_type", event.EventType,
				"retry_count", event.RetryCount)
		}
	}

	return len(events), nil
}

func (p *OutboxProcessor) processEvent(ctx context.Context, event *model.OutboxEvent) error {
	err := p.deliver(ctx, event)
	if err == nil {
		p.metrics.OutboxEventsProcessed.Inc()
		if err := p.repo.MarkProcessed(ctx, event.ID); err != nil {
			return fmt.Errorf("failed to mark event processed: %w", err)
		}
		return nil
	}

	errStr := err.Error()
	if errors.Is(err, errPermanent) || event.RetryCount+1 >= p.config.RetryAttempts {
		p.metrics.OutboxEventsFailed.Inc()
		if updateErr := p.repo.MarkFailed(ctx, event.ID, errStr); updateErr != nil {
			p.logger.Error(updateErr, "Failed to update event status", "event_id", event.ID.String())
		}
		return err
	}

	p.metrics.OutboxRetries.WithLabelValues(event.EventType).Inc()
	retryAt := p.now().Add(p.backoff(event.RetryCount))
	if updateErr := p.repo.MarkRetry(ctx, event.ID, errStr, retryAt); updateErr != nil {
		p.logger.Error(updateErr, "Failed to update event status", "event_id", event.ID.String())
	}
	return err
}

func (p *OutboxProcessor) deliver(ctx context.Context, event *model.OutboxEvent) error {
	switch event.EventType {
	case model.EventEmailNotification:
		var msg model.EmailNotification
		if err := json.Unmarshal(event.Payload, &msg); err != nil {
			return fmt.Errorf("%w: bad email payload: %w", errPermanent, err)
		}
		if msg.To == "" {
			return fmt.Errorf("%w: email without recipient", errPermanent)
		}
		return p.sender.Send(ctx, msg)

	case model.EventDoctorApproved, model.EventDoctorRejected,
		model.EventRecordCreated, model.EventRecordScanned:
		if p.publisher == nil {
			return nil
		}
		return p.publisher.Publish(ctx, event.EventType, event.Payload)

	default:
		return fmt.Errorf("%w: unknown event type %q", errPermanent, event.EventType)
	}
}

// backoff doubles RetryDelay per previous attempt.
func (p *OutboxProcessor) backoff(retryCount int) time.Duration {
	d := p.config.RetryDelay
	for i := 0; i < retryCount && d < maxRetryDelay; i++ {
		d *= 2
	}
	if d > maxRetryDelay {
		d = maxRetryDelay
	}
	return d
}
