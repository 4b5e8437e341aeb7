package admin

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/neuroscan-api/internal/model"
	"github.com/jwalitptl/neuroscan-api/internal/repository/memory"
	"github.com/jwalitptl/neuroscan-api/internal/service/notification"
	apperrors "github.com/jwalitptl/neuroscan-api/pkg/errors"
	"github.com/jwalitptl/neuroscan-api/pkg/logger"
	"github.com/jwalitptl/neuroscan-api/pkg/security"
)

func seedDoctor(t *testing.T, store *memory.Store, email string) {
	t.Helper()
	repos := store.Repositories()
	phone := "1"
	require.NoError(t, repos.Pending.Create(context.Background(), &model.PendingSignup{
		Email: email, Name: "Dr", PasswordHash: "x", Role: model.RoleDoctor, ConfirmationCode: "111111", Phone: &phone,
	}))
	_, err := repos.Pending.Promote(context.Background(), email, "111111")
	require.NoError(t, err)
}

func newService(store *memory.Store) *Service {
	repos := store.Repositories()
	return NewService(repos.Accounts, notification.NewService(repos.Outbox, nil), security.NewBcryptHasher(4), nil)
}

func TestApproveDoctor(t *testing.T) {
	store := memory.New()
	svc := newService(store)
	ctx := context.Background()
	seedDoctor(t, store, "d@x.io")

	require.NoError(t, svc.ApproveDoctor(ctx, "D@x.io"))
	ok, err := store.Repositories().Accounts.IsDoctorApproved(ctx, "d@x.io")
	require.NoError(t, err)
	assert.True(t, ok)

	events := store.Events()
	require.Len(t, events, 1)
	assert.Equal(t, model.EventDoctorApproved, events[0].EventType)

	err = svc.ApproveDoctor(ctx, "ghost@x.io")
	assert.Equal(t, http.StatusNotFound, apperrors.HTTPStatus(err))
}

func TestRejectDoctorFreesEmail(t *testing.T) {
	store := memory.New()
	svc := newService(store)
	ctx := context.Background()
	seedDoctor(t, store, "d@x.io")

	require.NoError(t, svc.RejectDoctor(ctx, "d@x.io"))

	_, err := store.Repositories().Accounts.GetDoctor(ctx, "d@x.io")
	assert.Error(t, err)
	_, err = store.Repositories().Accounts.EmailRole(ctx, "d@x.io")
	assert.Error(t, err)

	var types []string
	for _, e := range store.Events() {
		types = append(types, e.EventType)
	}
	assert.Equal(t, []string{model.EventEmailNotification, model.EventDoctorRejected}, types)

	err = svc.RejectDoctor(ctx, "d@x.io")
	assert.Equal(t, http.StatusNotFound, apperrors.HTTPStatus(err))
}

func TestRejectDoctorWithRecordsConflicts(t *testing.T) {
	store := memory.New()
	svc := newService(store)
	ctx := context.Background()
	seedDoctor(t, store, "d@x.io")
	require.NoError(t, svc.ApproveDoctor(ctx, "d@x.io"))

	_, err := store.Repositories().Records.Create(ctx, model.NewRecord{Name: "Pat", Email: "p@x.io", DoctorEmail: "d@x.io"})
	require.NoError(t, err)

	err = svc.RejectDoctor(ctx, "d@x.io")
	assert.Equal(t, http.StatusConflict, apperrors.HTTPStatus(err))
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, "doctor still owns patient records", appErr.Message)

	role, err := store.Repositories().Accounts.EmailRole(ctx, "d@x.io")
	require.NoError(t, err)
	assert.Equal(t, model.RoleDoctor, role)
	_, err = store.Repositories().Accounts.GetDoctor(ctx, "d@x.io")
	assert.NoError(t, err)
}

type downNotifier struct{}

func (downNotifier) Enqueue(context.Context, string, interface{}) error { return errors.New("outbox down") }
func (downNotifier) SendConfirmationCode(context.Context, string, string) error {
	return errors.New("outbox down")
}
func (downNotifier) SendRejection(context.Context, string) error { return errors.New("outbox down") }
func (downNotifier) SendRecord(context.Context, *model.PatientRecord) error {
	return errors.New("outbox down")
}

func TestRejectDoctorLogsQueueFailures(t *testing.T) {
	store := memory.New()
	seedDoctor(t, store, "d@x.io")
	logs := &bytes.Buffer{}
	l := logger.NewLogger(&logger.Config{Level: logger.DebugLevel, Output: logs})
	svc := NewService(store.Repositories().Accounts, downNotifier{}, security.NewBcryptHasher(4), l)

	require.NoError(t, svc.RejectDoctor(context.Background(), "d@x.io"))

	out := logs.String()
	assert.Contains(t, out, "Failed to queue rejection notice")
	assert.Contains(t, out, "Failed to queue domain event")
	assert.Contains(t, out, `"component":"admin"`)
	assert.Contains(t, out, "outbox down")
}

func TestListUsers(t *testing.T) {
	store := memory.New()
	svc := newService(store)
	seedDoctor(t, store, "d@x.io")

	users, err := svc.ListUsers(context.Background())
	require.NoError(t, err)
	assert.Empty(t, users.Patients)
	require.Len(t, users.Doctors, 1)
	assert.Equal(t, "1", users.Doctors[0].Phone)
	require.NotNil(t, users.Doctors[0].Approved)
	assert.False(t, *users.Doctors[0].Approved)
}

func TestSeedAdmin(t *testing.T) {
	store := memory.New()
	svc := newService(store)
	ctx := context.Background()

	created, err := svc.SeedAdmin(ctx, "admin@x.io", "Admin", "admin-password")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = svc.SeedAdmin(ctx, "admin@x.io", "Admin", "admin-password")
	require.NoError(t, err)
	assert.False(t, created)

	_, err = svc.SeedAdmin(ctx, "", "Admin", "admin-password")
	assert.Error(t, err)
}
