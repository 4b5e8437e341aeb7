package postgres

import (
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/neuroscan-api/internal/repository"
	"github.com/jwalitptl/neuroscan-api/pkg/metrics"
)

// NewStore wires every postgres repository around one pool.
func NewStore(db *sqlx.DB, timeout time.Duration, m *metrics.Metrics) *repository.Store {
	base := NewBaseRepository(db, timeout, m)
	return &repository.Store{
		Accounts: NewAccountRepository(base),
		Pending:  NewPendingRepository(base),
		Records:  NewRecordRepository(base),
		Chat:     NewChatRepository(base),
		Outbox:   NewOutboxRepository(base),
		Health:   &base,
	}
}
