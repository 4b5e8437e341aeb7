package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/neuroscan-api/internal/model"
	"github.com/jwalitptl/neuroscan-api/internal/repository/memory"
	"github.com/jwalitptl/neuroscan-api/pkg/logger"
	"github.com/jwalitptl/neuroscan-api/pkg/metrics"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []model.EmailNotification
	err  error
}

func (s *recordingSender) Send(_ context.Context, msg model.EmailNotification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

type recordingPublisher struct {
	subjects []string
}

func (p *recordingPublisher) Publish(_ context.Context, subject string, _ []byte) error {
	p.subjects = append(p.subjects, subject)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func testConfig() OutboxProcessorConfig {
	return OutboxProcessorConfig{
		BatchSize:     10,
		PollInterval:  time.Second,
		RetryAttempts: 2,
		RetryDelay:    time.Minute,
	}
}

func enqueue(t *testing.T, store *memory.Store, eventType string, payload interface{}) {
	t.Helper()
	event, err := model.NewOutboxEvent(eventType, payload)
	require.NoError(t, err)
	require.NoError(t, store.Repositories().Outbox.Create(context.Background(), event))
}

func TestOutboxProcessor_DeliversEmailAndDomainEvents(t *testing.T) {
	store := memory.New()
	sender := &recordingSender{}
	pub := &recordingPublisher{}
	p := NewOutboxProcessor(store.Repositories().Outbox, sender, pub, testConfig(), logger.FromGlobal(), metrics.NewNop())

	enqueue(t, store, model.EventEmailNotification, model.EmailNotification{To: "p@x.io", Subject: "Confirmation Code", Body: "123456"})
	enqueue(t, store, model.EventDoctorApproved, model.DoctorEvent{Email: "d@x.io"})

	n, err := p.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.Len(t, sender.sent, 1)
	assert.Equal(t, "p@x.io", sender.sent[0].To)
	assert.Equal(t, []string{model.EventDoctorApproved}, pub.subjects)

	for _, e := range store.Events() {
		assert.Equal(t, model.OutboxStatusProcessed, e.Status)
		assert.NotNil(t, e.ProcessedAt)
	}

	n, err = p.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestOutboxProcessor_RetriesThenFails(t *testing.T) {
	store := memory.New()
	sender := &recordingSender{err: errors.New("smtp down")}
	p := NewOutboxProcessor(store.Repositories().Outbox, sender, nil, testConfig(), logger.FromGlobal(), metrics.NewNop())

	enqueue(t, store, model.EventEmailNotification, model.EmailNotification{To: "p@x.io"})

	_, err := p.ProcessBatch(context.Background())
	require.NoError(t, err)

	events := store.Events()
	require.Len(t, events, 1)
	assert.Equal(t, model.OutboxStatusRetry, events[0].Status)
	assert.Equal(t, 1, events[0].RetryCount)
	require.NotNil(t, events[0].RetryAt)

	// Not due yet.
	n, err := p.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	// Pull the retry forward; this counts as the second attempt.
	require.NoError(t, p.repo.MarkRetry(context.Background(), events[0].ID, "smtp down", time.Now().Add(-time.Second)))

	_, err = p.ProcessBatch(context.Background())
	require.NoError(t, err)
	events = store.Events()
	assert.Equal(t, model.OutboxStatusFailed, events[0].Status)
	require.NotNil(t, events[0].ErrorMessage)
	assert.Contains(t, *events[0].ErrorMessage, "smtp down")
}

func TestOutboxProcessor_UnknownTypeFailsImmediately(t *testing.T) {
	store := memory.New()
	p := NewOutboxProcessor(store.Repositories().Outbox, &recordingSender{}, nil, testConfig(), logger.FromGlobal(), metrics.NewNop())

	enqueue(t, store, "something.else", map[string]string{})

	_, err := p.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.OutboxStatusFailed, store.Events()[0].Status)
}

func TestOutboxProcessor_DomainEventsWithoutPublisher(t *testing.T) {
	store := memory.New()
	p := NewOutboxProcessor(store.Repositories().Outbox, &recordingSender{}, nil, testConfig(), logger.FromGlobal(), metrics.NewNop())

	enqueue(t, store, model.EventRecordScanned, model.RecordEvent{RecordID: 1})

	_, err := p.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.OutboxStatusProcessed, store.Events()[0].Status)
}

func TestOutboxProcessor_Backoff(t *testing.T) {
	p := NewOutboxProcessor(memory.New().Repositories().Outbox, &recordingSender{}, nil, testConfig(), logger.FromGlobal(), metrics.NewNop())

	assert.Equal(t, time.Minute, p.backoff(0))
	assert.Equal(t, 4*time.Minute, p.backoff(2))
	assert.Equal(t, time.Hour, p.backoff(20))
}

func TestNewOutboxProcessor_PanicsOnBadConfig(t *testing.T) {
	assert.Panics(t, func() {
		NewOutboxProcessor(nil, nil, nil, OutboxProcessorConfig{}, logger.FromGlobal(), metrics.NewNop())
	})
}

func TestOutboxCleanupWorker(t *testing.T) {
	store := memory.New()
	p := NewOutboxProcessor(store.Repositories().Outbox, &recordingSender{}, nil, testConfig(), logger.FromGlobal(), metrics.NewNop())
	enqueue(t, store, model.EventRecordCreated, model.RecordEvent{RecordID: 1})
	_, err := p.ProcessBatch(context.Background())
	require.NoError(t, err)

	w := NewOutboxCleanupWorker(store.Repositories().Outbox, time.Hour, time.Minute, logger.FromGlobal())

	n, err := w.Cleanup(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	w.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	n, err = w.Cleanup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Empty(t, store.Events())
}
