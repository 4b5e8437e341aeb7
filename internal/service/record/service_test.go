package record

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/neuroscan-api/internal/model"
	"github.com/jwalitptl/neuroscan-api/internal/repository/memory"
	"github.com/jwalitptl/neuroscan-api/internal/service/notification"
	"github.com/jwalitptl/neuroscan-api/internal/storage"
	apperrors "github.com/jwalitptl/neuroscan-api/pkg/errors"
)

const (
	doctorA = "a@clinic.io"
	doctorB = "b@clinic.io"
	patient = "p@x.io"
)

type fixture struct {
	svc   *Service
	store *memory.Store
	files *storage.LocalStorage
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	repos := store.Repositories()

	require.NoError(t, repos.Pending.Create(context.Background(), &model.PendingSignup{
		Email: patient, Name: "Pat", PasswordHash: "x", Role: model.RolePatient, ConfirmationCode: "000000",
	}))
	_, err := repos.Pending.Promote(context.Background(), patient, "000000")
	require.NoError(t, err)

	files, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	return &fixture{
		svc:   NewService(repos.Accounts, repos.Records, files, notification.NewService(repos.Outbox, nil), nil),
		store: store,
		files: files,
	}
}

func (f *fixture) add(t *testing.T, doctor string) int64 {
	t.Helper()
	id, err := f.svc.AddPatient(context.Background(), doctor, &model.AddPatientRequest{Name: "Pat", Email: patient})
	require.NoError(t, err)
	return id
}

func assertNotFound(t *testing.T, err error) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, apperrors.HTTPStatus(err))
	assert.Equal(t, "record not found or access denied", err.Error())
}

func TestAddPatientRequiresRegisteredPatient(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.AddPatient(context.Background(), doctorA, &model.AddPatientRequest{Name: "X", Email: "ghost@x.io"})
	assert.Equal(t, http.StatusNotFound, apperrors.HTTPStatus(err))

	id := f.add(t, doctorA)
	assert.Positive(t, id)

	events := f.store.Events()
	require.Len(t, events, 1)
	assert.Equal(t, model.EventRecordCreated, events[0].EventType)
}

func TestOtherDoctorGetsUniform404(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.add(t, doctorA)

	for _, other := range []int64{id, id + 1, 9999, 0, -1} {
		_, err := f.svc.Get(ctx, doctorB, other)
		assertNotFound(t, err)
	}

	assertNotFound(t, f.svc.UpdateScanResult(ctx, doctorB, &model.UpdateScanRequest{PatientID: id, ScanResult: "x"}))
	assertNotFound(t, f.svc.SaveReport(ctx, doctorB, &model.SaveReportRequest{PatientID: id, Report: "x"}))
	assertNotFound(t, f.svc.DeleteFile(ctx, doctorB, id))
	assertNotFound(t, f.svc.ShareByEmail(ctx, doctorB, id))
	_, err := f.svc.UploadFile(ctx, doctorB, id, "scan.png", strings.NewReader("x"))
	assertNotFound(t, err)

	rec, err := f.svc.Get(ctx, doctorA, id)
	require.NoError(t, err)
	assert.Nil(t, rec.ScanResult)
	assert.Nil(t, rec.Report)
	assert.Nil(t, rec.FilePath)

	list, err := f.svc.List(ctx, doctorB)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestOwnerMutations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.add(t, doctorA)

	require.NoError(t, f.svc.UpdateScanResult(ctx, doctorA, &model.UpdateScanRequest{PatientID: id, ScanResult: "notumor (Conf: 0.99)"}))
	require.NoError(t, f.svc.SaveReport(ctx, doctorA, &model.SaveReportRequest{PatientID: id, Report: "all clear"}))

	rec, err := f.svc.Get(ctx, doctorA, id)
	require.NoError(t, err)
	assert.Equal(t, "notumor (Conf: 0.99)", *rec.ScanResult)
	assert.Equal(t, "all clear", *rec.Report)
	assert.Equal(t, "", rec.ProcessedImage)
}

func TestUploadReplaceAndDeleteFile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.add(t, doctorA)

	_, err := f.svc.UploadFile(ctx, doctorA, id, "notes.exe", strings.NewReader("x"))
	assert.Equal(t, http.StatusBadRequest, apperrors.HTTPStatus(err))

	name, err := f.svc.UploadFile(ctx, doctorA, id, `C:\scans\first.PNG`, strings.NewReader("one"))
	require.NoError(t, err)
	assert.Equal(t, "first.PNG", name)

	rec, err := f.svc.Get(ctx, doctorA, id)
	require.NoError(t, err)
	require.NotNil(t, rec.FilePath)
	first := *rec.FilePath
	assert.True(t, strings.HasPrefix(first, "records/"))
	assert.True(t, strings.HasSuffix(*rec.FileName, "-first.PNG"))

	_, err = f.svc.UploadFile(ctx, doctorA, id, "second.pdf", strings.NewReader("two"))
	require.NoError(t, err)

	_, err = f.files.Get(ctx, first)
	assert.ErrorIs(t, err, storage.ErrNotFound, "replaced file must be removed")

	rec, err = f.svc.Get(ctx, doctorA, id)
	require.NoError(t, err)
	second := *rec.FilePath

	require.NoError(t, f.svc.DeleteFile(ctx, doctorA, id))
	rec, err = f.svc.Get(ctx, doctorA, id)
	require.NoError(t, err)
	assert.Nil(t, rec.FilePath)
	_, err = f.files.Get(ctx, second)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// Deleting again is fine.
	assert.NoError(t, f.svc.DeleteFile(ctx, doctorA, id))
}

func TestShareByEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.add(t, doctorA)
	require.NoError(t, f.svc.SaveReport(ctx, doctorA, &model.SaveReportRequest{PatientID: id, Report: "stable"}))

	require.NoError(t, f.svc.ShareByEmail(ctx, doctorA, id))

	events := f.store.Events()
	last := events[len(events)-1]
	assert.Equal(t, model.EventEmailNotification, last.EventType)
	assert.Contains(t, string(last.Payload), `"subject":"Your Record"`)
	assert.Contains(t, string(last.Payload), `Report: stable`)
}

func TestRecordSummary(t *testing.T) {
	age := 41
	scan := "glioma (Conf: 0.93)"
	got := notification.RecordSummary(&model.PatientRecord{Name: "Pat", Email: patient, Age: &age, ScanResult: &scan})
	assert.Equal(t, "Name: Pat\nEmail: p@x.io\nAge: 41\nScan: glioma (Conf: 0.93)\nReport: None", got)
}
