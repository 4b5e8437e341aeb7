package auth

import (
	"context"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/neuroscan-api/internal/model"
	"github.com/jwalitptl/neuroscan-api/internal/repository/memory"
	"github.com/jwalitptl/neuroscan-api/internal/service/notification"
	"github.com/jwalitptl/neuroscan-api/pkg/auth"
	apperrors "github.com/jwalitptl/neuroscan-api/pkg/errors"
	"github.com/jwalitptl/neuroscan-api/pkg/security"
)

const testCode = "123456"

func newTestService(t *testing.T) (*Service, *memory.Store, *auth.TokenService) {
	t.Helper()
	store := memory.New()
	repos := store.Repositories()
	tokens, err := auth.NewTokenService(auth.Config{Secret: "0123456789abcdef0123456789abcdef"})
	require.NoError(t, err)

	svc := NewService(repos.Accounts, repos.Pending, tokens,
		security.NewBcryptHasher(4), security.FixedCode(testCode),
		notification.NewService(repos.Outbox, nil), nil)
	return svc, store, tokens
}

func signupPatient(t *testing.T, svc *Service, email string) {
	t.Helper()
	require.NoError(t, svc.SignupPatient(context.Background(), &model.PatientSignupRequest{
		Email: email, Password: "password1", Name: "Pat",
	}))
}

func TestSignupQueuesConfirmationCode(t *testing.T) {
	svc, store, _ := newTestService(t)

	signupPatient(t, svc, " Pat@X.io ")

	events := store.Events()
	require.Len(t, events, 1)
	assert.Equal(t, model.EventEmailNotification, events[0].EventType)
	assert.Contains(t, string(events[0].Payload), `"to":"pat@x.io"`)
	assert.Contains(t, string(events[0].Payload), testCode)
}

func TestSignupRejectsPendingAndRegisteredEmails(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	signupPatient(t, svc, "p@x.io")
	err := svc.SignupPatient(ctx, &model.PatientSignupRequest{Email: "p@x.io", Password: "password1", Name: "Pat"})
	assert.Equal(t, http.StatusConflict, apperrors.HTTPStatus(err))

	_, _, err = svc.Verify(ctx, &model.VerifyRequest{Email: "p@x.io", ConfirmationCode: testCode})
	require.NoError(t, err)

	err = svc.SignupDoctor(ctx, &model.DoctorSignupRequest{
		Email: "p@x.io", Password: "password1", Name: "Dr", Phone: "1", Country: "EG",
		City: "Cairo", Hospital: "H", University: "U",
	})
	assert.Equal(t, http.StatusConflict, apperrors.HTTPStatus(err))
}

func TestSignupShortPassword(t *testing.T) {
	svc, _, _ := newTestService(t)

	err := svc.SignupPatient(context.Background(), &model.PatientSignupRequest{Email: "p@x.io", Password: "short", Name: "Pat"})
	assert.Equal(t, http.StatusBadRequest, apperrors.HTTPStatus(err))
}

func TestVerify(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	repos := store.Repositories()
	signupPatient(t, svc, "p@x.io")

	_, _, err := svc.Verify(ctx, &model.VerifyRequest{Email: "p@x.io", ConfirmationCode: "654321"})
	assert.Equal(t, http.StatusBadRequest, apperrors.HTTPStatus(err))

	_, err = repos.Pending.Get(ctx, "p@x.io")
	require.NoError(t, err, "wrong code must keep the pending row")
	_, err = repos.Accounts.GetPatient(ctx, "p@x.io")
	assert.Error(t, err)

	res, msg, err := svc.Verify(ctx, &model.VerifyRequest{Email: "p@x.io", ConfirmationCode: testCode})
	require.NoError(t, err)
	assert.Equal(t, "Account verified successfully", msg)
	assert.Equal(t, model.RolePatient, res.Role)

	_, err = repos.Pending.Get(ctx, "p@x.io")
	assert.Error(t, err)
	patient, err := repos.Accounts.GetPatient(ctx, "p@x.io")
	require.NoError(t, err)
	assert.True(t, patient.Verified)
}

func TestVerifyConcurrentlyCreatesOneAccount(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	signupPatient(t, svc, "race@x.io")

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		created  int
		verified int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, _, err := svc.Verify(ctx, &model.VerifyRequest{Email: "race@x.io", ConfirmationCode: testCode})
			mu.Lock()
			defer mu.Unlock()
			if err == nil && !res.AlreadyVerified {
				created++
			} else if err == nil {
				verified++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.LessOrEqual(t, created+verified, 16)
	patients, err := store.Repositories().Accounts.ListPatients(ctx)
	require.NoError(t, err)
	assert.Len(t, patients, 1)
}

func TestSignin(t *testing.T) {
	svc, _, tokens := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.SignupDoctor(ctx, &model.DoctorSignupRequest{
		Email: "d@x.io", Password: "password1", Name: "Dr D", Phone: "1", Country: "EG",
		City: "Cairo", Hospital: "H", University: "U",
	}))
	_, _, err := svc.Verify(ctx, &model.VerifyRequest{Email: "d@x.io", ConfirmationCode: testCode})
	require.NoError(t, err)

	resp, msg, err := svc.Signin(ctx, &model.SigninRequest{Email: "D@x.io", Password: "password1"})
	require.NoError(t, err)
	assert.Equal(t, "Pending", msg)
	assert.Equal(t, model.RoleDoctor, resp.Type)
	require.NotNil(t, resp.Approved)
	assert.False(t, *resp.Approved)

	claims, err := tokens.ValidateSession(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, "d@x.io", claims.Email)
	assert.Equal(t, "doctor", claims.Type)

	_, _, err = svc.Signin(ctx, &model.SigninRequest{Email: "d@x.io", Password: "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, apperrors.HTTPStatus(err))

	_, _, err = svc.Signin(ctx, &model.SigninRequest{Email: "nobody@x.io", Password: "password1"})
	assert.Equal(t, http.StatusUnauthorized, apperrors.HTTPStatus(err))
}

func TestResendCode(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	err := svc.ResendCode(ctx, &model.ResendCodeRequest{Email: "p@x.io"})
	assert.Equal(t, http.StatusNotFound, apperrors.HTTPStatus(err))

	signupPatient(t, svc, "p@x.io")
	require.NoError(t, svc.ResendCode(ctx, &model.ResendCodeRequest{Email: "p@x.io"}))
	assert.Len(t, store.Events(), 2)
}
