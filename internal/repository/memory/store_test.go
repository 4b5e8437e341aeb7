package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/neuroscan-api/internal/model"
	"github.com/jwalitptl/neuroscan-api/internal/repository"
)

func pendingPatient(email, code string) *model.PendingSignup {
	return &model.PendingSignup{
		Email:            email,
		Name:             "Pat",
		PasswordHash:     "hash",
		Role:             model.RolePatient,
		ConfirmationCode: code,
	}
}

func TestPromote_ConcurrentYieldsOneAccount(t *testing.T) {
	ctx := context.Background()
	repos := New().Repositories()
	require.NoError(t, repos.Pending.Create(ctx, pendingPatient("p@x.io", "123456")))

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repos.Pending.Promote(ctx, "p@x.io", "123456"); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	patients, err := repos.Accounts.ListPatients(ctx)
	require.NoError(t, err)
	assert.Len(t, patients, 1)

	_, err = repos.Pending.Get(ctx, "p@x.io")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestPromote_WrongCodeLeavesState(t *testing.T) {
	ctx := context.Background()
	repos := New().Repositories()
	require.NoError(t, repos.Pending.Create(ctx, pendingPatient("p@x.io", "123456")))

	_, err := repos.Pending.Promote(ctx, "p@x.io", "000000")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	p, err := repos.Pending.Get(ctx, "p@x.io")
	require.NoError(t, err)
	assert.Equal(t, "123456", p.ConfirmationCode)

	_, err = repos.Accounts.EmailRole(ctx, "p@x.io")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestPendingCreate_RejectsRegisteredEmail(t *testing.T) {
	ctx := context.Background()
	repos := New().Repositories()
	require.NoError(t, repos.Accounts.CreateAdmin(ctx, &model.Admin{Email: "a@x.io", Name: "A", PasswordHash: "h"}))

	err := repos.Pending.Create(ctx, pendingPatient("a@x.io", "123456"))
	assert.ErrorIs(t, err, repository.ErrEmailTaken)

	require.NoError(t, repos.Pending.Create(ctx, pendingPatient("p@x.io", "123456")))
	err = repos.Pending.Create(ctx, pendingPatient("p@x.io", "654321"))
	assert.ErrorIs(t, err, repository.ErrAlreadyExists)
}

func TestRecordOwnership(t *testing.T) {
	ctx := context.Background()
	repos := New().Repositories()

	rec, err := repos.Records.Create(ctx, model.NewRecord{Name: "Pat", Email: "p@x.io", DoctorEmail: "a@doc.io"})
	require.NoError(t, err)

	_, err = repos.Records.GetForDoctor(ctx, "b@doc.io", rec.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = repos.Records.GetForDoctor(ctx, "b@doc.io", rec.ID+100)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	err = repos.Records.UpdateReport(ctx, "b@doc.io", rec.ID, "hijack")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	got, err := repos.Records.GetForPatient(ctx, "p@x.io", rec.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Report)
}

func TestChatHistoryOrder(t *testing.T) {
	ctx := context.Background()
	repos := New().Repositories()

	for _, text := range []string{"one", "two", "three"} {
		require.NoError(t, repos.Chat.Save(ctx, &model.ChatMessage{Room: "a@x.io_b@y.io", SenderEmail: "a@x.io", MessageText: text}))
	}
	require.NoError(t, repos.Chat.Save(ctx, &model.ChatMessage{Room: "other", MessageText: "x"}))

	msgs, err := repos.Chat.History(ctx, "a@x.io_b@y.io", 0)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "one", msgs[0].MessageText)
	assert.Equal(t, "three", msgs[2].MessageText)

	msgs, err = repos.Chat.History(ctx, "a@x.io_b@y.io", 2)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "two", msgs[0].MessageText)
}
