// Package bootstrap opens the external resources named in the config. It is
// shared by the api and worker binaries.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/neuroscan-api/internal/config"
	"github.com/jwalitptl/neuroscan-api/internal/email"
	"github.com/jwalitptl/neuroscan-api/internal/repository"
	"github.com/jwalitptl/neuroscan-api/internal/repository/memory"
	"github.com/jwalitptl/neuroscan-api/internal/repository/postgres"
	"github.com/jwalitptl/neuroscan-api/internal/storage"
	"github.com/jwalitptl/neuroscan-api/pkg/logger"
	"github.com/jwalitptl/neuroscan-api/pkg/messaging"
	"github.com/jwalitptl/neuroscan-api/pkg/messaging/nats"
	"github.com/jwalitptl/neuroscan-api/pkg/messaging/redis"
	"github.com/jwalitptl/neuroscan-api/pkg/metrics"
	"github.com/jwalitptl/neuroscan-api/pkg/worker"
)

// Resources holds everything opened from the config. Close releases them
// in reverse order.
type Resources struct {
	DB      *sqlx.DB
	Store   *repository.Store
	closers []func() error
}

func (r *Resources) onClose(fn func() error) {
	r.closers = append(r.closers, fn)
}

func (r *Resources) Close(l *logger.Logger) {
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			l.Error(err, "Failed to close resource")
		}
	}
	r.closers = nil
}

// OpenStore connects to postgres, or builds the in-memory store for the
// memory driver. DB is nil for the memory driver.
func OpenStore(ctx context.Context, cfg config.DatabaseConfig, m *metrics.Metrics) (*Resources, error) {
	res := &Resources{}
	if cfg.Driver == "memory" {
		res.Store = memory.New().Repositories()
		return res, nil
	}

	db, err := postgres.NewDB(ctx, cfg)
	if err != nil {
		return nil, err
	}
	res.DB = db
	res.Store = postgres.NewStore(db, cfg.OperationTimeout, m)
	res.onClose(db.Close)
	return res, nil
}

func OpenStorage(ctx context.Context, cfg config.StorageConfig, secrets config.Secrets) (storage.Storage, error) {
	switch cfg.Driver {
	case "s3":
		return storage.NewS3Storage(ctx, storage.S3Config{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: secrets.AWSSecretAccessKey,
			UsePathStyle:    cfg.S3.UsePathStyle,
		})
	case "local":
		return storage.NewLocalStorage(cfg.LocalDir)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}
}

// OpenBroker connects to Redis when redis.url is set. It returns nil, nil
// otherwise.
func (r *Resources) OpenBroker(cfg *config.Config, l *logger.Logger) (messaging.Broker, error) {
	if cfg.Redis.URL == "" {
		return nil, nil
	}
	broker, err := redis.NewRedisBroker(cfg.Redis.ToBrokerConfig(), l.Zerolog())
	if err != nil {
		return nil, err
	}
	r.onClose(broker.Close)
	return broker, nil
}

// OpenPublisher picks the outbox event publisher: NATS when configured,
// else the Redis broker, else nil.
func (r *Resources) OpenPublisher(cfg *config.Config, broker messaging.Broker, l *logger.Logger) (messaging.Publisher, error) {
	if cfg.NATS.URL != "" {
		pub, err := nats.Connect(cfg.NATS.URL, cfg.NATS.SubjectPrefix, l.Zerolog())
		if err != nil {
			return nil, err
		}
		r.onClose(pub.Close)
		return pub, nil
	}
	if broker != nil {
		return broker, nil
	}
	return nil, nil
}

func EmailSender(cfg *config.Config, l *logger.Logger) email.Sender {
	return email.New(email.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.Secrets.SMTPPassword,
		From:     cfg.SMTP.From,
	}, l.Named("email"))
}

// StartOutbox runs the processor and the cleanup worker until ctx is done.
func StartOutbox(ctx context.Context, cfg *config.Config, outbox repository.OutboxRepository, sender email.Sender, pub messaging.Publisher, l *logger.Logger, m *metrics.Metrics) {
	processor := worker.NewOutboxProcessor(outbox, sender, pub, cfg.Outbox.ToWorkerConfig(), l.Named("outbox"), m)
	cleanup := worker.NewOutboxCleanupWorker(outbox, cfg.Outbox.Retention, cfg.Outbox.CleanupInterval, l.Named("outbox-cleanup"))
	go processor.Start(ctx)
	go cleanup.Start(ctx)
}
