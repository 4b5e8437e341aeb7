package account

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/neuroscan-api/internal/model"
	"github.com/jwalitptl/neuroscan-api/internal/repository"
	"github.com/jwalitptl/neuroscan-api/internal/repository/memory"
	"github.com/jwalitptl/neuroscan-api/internal/storage"
	apperrors "github.com/jwalitptl/neuroscan-api/pkg/errors"
)

const doctor = "doc@clinic.io"

func newService(t *testing.T) (*Service, *repository.Store, *storage.LocalStorage) {
	t.Helper()
	repos := memory.New().Repositories()
	hospital := "General"
	require.NoError(t, repos.Pending.Create(context.Background(), &model.PendingSignup{
		Email: doctor, Name: "Dr. D", PasswordHash: "x", Role: model.RoleDoctor,
		ConfirmationCode: "000000", Hospital: &hospital,
	}))
	_, err := repos.Pending.Promote(context.Background(), doctor, "000000")
	require.NoError(t, err)

	files, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	return NewService(repos.Accounts, files, nil), repos, files
}

func strPtr(s string) *string { return &s }

func TestUpdateDoctorProfileFields(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	d, err := svc.UpdateDoctorProfile(ctx, doctor, model.DoctorProfileUpdate{About: strPtr("Neurologist")}, nil)
	require.NoError(t, err)
	require.NotNil(t, d.About)
	assert.Equal(t, "Neurologist", *d.About)
	assert.Equal(t, "General", d.Hospital)

	_, err = svc.UpdateDoctorProfile(ctx, doctor, model.DoctorProfileUpdate{}, nil)
	assert.Equal(t, http.StatusBadRequest, apperrors.HTTPStatus(err))

	_, err = svc.UpdateDoctorProfile(ctx, "ghost@clinic.io", model.DoctorProfileUpdate{Name: strPtr("X")}, nil)
	assert.Equal(t, http.StatusNotFound, apperrors.HTTPStatus(err))
}

func TestUpdateDoctorProfileImageReplacesOld(t *testing.T) {
	svc, _, files := newService(t)
	ctx := context.Background()

	d, err := svc.UpdateDoctorProfile(ctx, doctor, model.DoctorProfileUpdate{},
		&Upload{Filename: "me.png", Body: strings.NewReader("one")})
	require.NoError(t, err)
	require.NotNil(t, d.ProfileImage)
	first := *d.ProfileImage
	assert.True(t, strings.HasPrefix(first, "profiles/"))

	d, err = svc.UpdateDoctorProfile(ctx, doctor, model.DoctorProfileUpdate{},
		&Upload{Filename: "me2.JPG", Body: strings.NewReader("two")})
	require.NoError(t, err)
	second := *d.ProfileImage
	assert.NotEqual(t, first, second)

	_, err = files.Get(ctx, first)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	rc, err := files.Get(ctx, second)
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "two", string(body))
}

func TestUpdateDoctorProfileRejectsImageType(t *testing.T) {
	svc, _, _ := newService(t)

	_, err := svc.UpdateDoctorProfile(context.Background(), doctor, model.DoctorProfileUpdate{},
		&Upload{Filename: "me.pdf", Body: strings.NewReader("x")})
	assert.Equal(t, http.StatusBadRequest, apperrors.HTTPStatus(err))
}

func TestPublicDoctorProfileRequiresApproval(t *testing.T) {
	svc, repos, _ := newService(t)
	ctx := context.Background()

	_, err := svc.PublicDoctorProfile(ctx, doctor)
	assert.Equal(t, http.StatusNotFound, apperrors.HTTPStatus(err))

	require.NoError(t, repos.Accounts.SetDoctorApproved(ctx, doctor, true))

	p, err := svc.PublicDoctorProfile(ctx, " DOC@clinic.io ")
	require.NoError(t, err)
	assert.Equal(t, "Dr. D", p.Name)
	assert.Equal(t, "General", p.Hospital)
}
