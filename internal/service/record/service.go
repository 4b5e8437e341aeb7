// Package record holds the doctor side of patient records. Every operation
// goes through the Guard or an owner-scoped update.
package record

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/jwalitptl/neuroscan-api/internal/model"
	"github.com/jwalitptl/neuroscan-api/internal/repository"
	"github.com/jwalitptl/neuroscan-api/internal/service/notification"
	"github.com/jwalitptl/neuroscan-api/internal/storage"
	apperrors "github.com/jwalitptl/neuroscan-api/pkg/errors"
	"github.com/jwalitptl/neuroscan-api/pkg/logger"
)

var allowedFileTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".pdf":  "application/pdf",
}

type Service struct {
	accounts repository.AccountRepository
	records  repository.RecordRepository
	guard    *Guard
	storage  storage.Storage
	notifier notification.Service
	log      *logger.Logger
}

func NewService(
	accounts repository.AccountRepository,
	records repository.RecordRepository,
	store storage.Storage,
	notifier notification.Service,
	l *logger.Logger,
) *Service {
	if l == nil {
		l = logger.FromGlobal()
	}
	return &Service{
		accounts: accounts,
		records:  records,
		guard:    NewGuard(records),
		storage:  store,
		notifier: notifier,
		log:      l.Named("record"),
	}
}

func (s *Service) Guard() *Guard { return s.guard }

// AddPatient creates a record owned by doctorEmail for a registered patient.
func (s *Service) AddPatient(ctx context.Context, doctorEmail string, req *model.AddPatientRequest) (int64, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	_, err := s.accounts.GetPatient(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return 0, apperrors.NotFound("patient", errors.New("patient must register before a record can be added"))
	}
	if err != nil {
		return 0, repository.Classify(err)
	}

	rec, err := s.records.Create(ctx, model.NewRecord{
		Name:        strings.TrimSpace(req.Name),
		Email:       email,
		Age:         req.Age,
		DoctorEmail: doctorEmail,
	})
	if err != nil {
		return 0, repository.Classify(err)
	}

	s.emit(ctx, model.EventRecordCreated, rec)
	return rec.ID, nil
}

func (s *Service) List(ctx context.Context, doctorEmail string) ([]model.RecordView, error) {
	recs, err := s.records.ListByDoctor(ctx, doctorEmail)
	if err != nil {
		return nil, repository.Classify(err)
	}
	return views(recs), nil
}

func (s *Service) Get(ctx context.Context, doctorEmail string, id int64) (*model.RecordView, error) {
	rec, err := s.guard.DoctorRecord(ctx, doctorEmail, id)
	if err != nil {
		return nil, err
	}
	v := rec.View()
	return &v, nil
}

func (s *Service) UpdateScanResult(ctx context.Context, doctorEmail string, req *model.UpdateScanRequest) error {
	return Deny(s.records.UpdateScanResult(ctx, doctorEmail, req.PatientID, req.ScanResult))
}

func (s *Service) SaveReport(ctx context.Context, doctorEmail string, req *model.SaveReportRequest) error {
	return Deny(s.records.UpdateReport(ctx, doctorEmail, req.PatientID, req.Report))
}

// UploadFile stores the file under records/<id>/ and replaces any previous
// one. It returns the stored file name.
func (s *Service) UploadFile(ctx context.Context, doctorEmail string, id int64, filename string, r io.Reader) (string, error) {
	name := path.Base(strings.ReplaceAll(strings.TrimSpace(filename), "\\", "/"))
	if name == "" || name == "." || name == "/" {
		return "", apperrors.BadRequest("No file selected", nil)
	}
	contentType, ok := allowedFileTypes[strings.ToLower(path.Ext(name))]
	if !ok {
		return "", apperrors.BadRequest("Invalid file type. Only JPG, PNG, and PDF are allowed.", nil)
	}

	rec, err := s.guard.DoctorRecord(ctx, doctorEmail, id)
	if err != nil {
		return "", err
	}

	key := fmt.Sprintf("records/%d/%s-%s", id, uuid.NewString(), name)
	if err := s.storage.Put(ctx, key, r, contentType); err != nil {
		return "", apperrors.Upstream("file storage", err)
	}

	if err := s.records.SetFilePath(ctx, doctorEmail, id, &key); err != nil {
		s.removeObject(ctx, key)
		return "", Deny(err)
	}
	if rec.FilePath != nil && *rec.FilePath != "" && *rec.FilePath != key {
		s.removeObject(ctx, *rec.FilePath)
	}
	return name, nil
}

// DeleteFile removes the stored file, if any, and clears file_path.
func (s *Service) DeleteFile(ctx context.Context, doctorEmail string, id int64) error {
	rec, err := s.guard.DoctorRecord(ctx, doctorEmail, id)
	if err != nil {
		return err
	}
	if err := s.records.SetFilePath(ctx, doctorEmail, id, nil); err != nil {
		return Deny(err)
	}
	if rec.FilePath != nil && *rec.FilePath != "" {
		s.removeObject(ctx, *rec.FilePath)
	}
	return nil
}

// ShareByEmail mails the patient a summary of the record.
func (s *Service) ShareByEmail(ctx context.Context, doctorEmail string, id int64) error {
	rec, err := s.guard.DoctorRecord(ctx, doctorEmail, id)
	if err != nil {
		return err
	}
	if err := s.notifier.SendRecord(ctx, rec); err != nil {
		return repository.Classify(err)
	}
	return nil
}

func (s *Service) removeObject(ctx context.Context, key string) {
	if err := s.storage.Delete(ctx, key); err != nil {
		s.log.Warn("Failed to delete stored file", "key", key, "error", err)
	}
}

func (s *Service) emit(ctx context.Context, eventType string, rec *model.PatientRecord) {
	event := model.RecordEvent{RecordID: rec.ID, DoctorEmail: rec.DoctorEmail, PatientEmail: rec.Email}
	if rec.ScanResult != nil {
		event.ScanResult = *rec.ScanResult
	}
	if err := s.notifier.Enqueue(ctx, eventType, event); err != nil {
		s.log.Error(err, "Failed to queue domain event", "event_type", eventType, "record_id", rec.ID)
	}
}

func views(recs []*model.PatientRecord) []model.RecordView {
	out := make([]model.RecordView, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.View())
	}
	return out
}
