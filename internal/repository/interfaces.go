package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/neuroscan-api/internal/model"
	apperrors "github.com/jwalitptl/neuroscan-api/pkg/errors"
)

// Sentinel errors every implementation returns, wrapped or bare.
var (
	ErrNotFound      = errors.New("not found")
	ErrEmailTaken    = errors.New("email already registered")
	ErrAlreadyExists = errors.New("already exists")
	ErrStoreBusy     = errors.New("store busy")
	ErrHasRecords    = errors.New("doctor owns patient records")
	ErrCanceled      = errors.New("operation canceled")
)

// All repository interfaces in one file
type (
	// AccountRepository covers the three role tables and the cross-role
	// email registry.
	AccountRepository interface {
		// EmailRole returns the role registered for email, or ErrNotFound.
		EmailRole(ctx context.Context, email string) (model.Role, error)
		FindCredential(ctx context.Context, role model.Role, email string) (*model.Credential, error)

		GetPatient(ctx context.Context, email string) (*model.Patient, error)
		GetDoctor(ctx context.Context, email string) (*model.Doctor, error)
		ListPatients(ctx context.Context) ([]*model.Patient, error)
		ListDoctors(ctx context.Context) ([]*model.Doctor, error)

		// CreateAdmin inserts the admin or returns ErrEmailTaken.
		CreateAdmin(ctx context.Context, admin *model.Admin) error
		IsDoctorApproved(ctx context.Context, email string) (bool, error)
		SetDoctorApproved(ctx context.Context, email string, approved bool) error
		// DeleteDoctor removes the doctor and its registry row. It returns
		// ErrHasRecords, and deletes nothing, while patient records still
		// reference the doctor's email.
		DeleteDoctor(ctx context.Context, email string) error
		UpdateDoctorProfile(ctx context.Context, email string, update model.DoctorProfileUpdate) (*model.Doctor, error)
	}

	// PendingRepository stores signups awaiting confirmation.
	PendingRepository interface {
		// Create stores p, or returns ErrEmailTaken when the email is already
		// an account and ErrAlreadyExists when it is already pending.
		Create(ctx context.Context, p *model.PendingSignup) error
		Get(ctx context.Context, email string) (*model.PendingSignup, error)
		UpdateCode(ctx context.Context, email, code string) error
		Delete(ctx context.Context, email string) error
		// Promote atomically turns the pending row into an account when code
		// matches. A wrong code returns ErrNotFound and changes nothing. When
		// the account already exists the pending row is deleted and
		// ErrEmailTaken is returned.
		Promote(ctx context.Context, email, code string) (*model.PendingSignup, error)
	}

	RecordRepository interface {
		Create(ctx context.Context, rec model.NewRecord) (*model.PatientRecord, error)
		// GetForDoctor and GetForPatient return ErrNotFound both for a missing
		// record and for one the caller does not own.
		GetForDoctor(ctx context.Context, doctorEmail string, id int64) (*model.PatientRecord, error)
		GetForPatient(ctx context.Context, patientEmail string, id int64) (*model.PatientRecord, error)
		ListByDoctor(ctx context.Context, doctorEmail string) ([]*model.PatientRecord, error)
		ListByPatient(ctx context.Context, patientEmail string) ([]*model.PatientRecord, error)

		// Conditional updates. Zero affected rows return ErrNotFound.
		UpdateScanResult(ctx context.Context, doctorEmail string, id int64, scanResult string) error
		UpdateScan(ctx context.Context, doctorEmail string, id int64, scan model.ScanUpdate) error
		UpdateReport(ctx context.Context, doctorEmail string, id int64, report string) error
		SetFilePath(ctx context.Context, doctorEmail string, id int64, filePath *string) error
	}

	ChatRepository interface {
		Save(ctx context.Context, msg *model.ChatMessage) error
		History(ctx context.Context, room string, limit int) ([]*model.ChatMessage, error)
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		// ClaimBatch moves up to limit due events to processing and returns
		// them. Events left in processing past the claim lease are due again.
		ClaimBatch(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		MarkProcessed(ctx context.Context, id uuid.UUID) error
		MarkRetry(ctx context.Context, id uuid.UUID, errMsg string, retryAt time.Time) error
		MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}

	// Pinger reports store health for readiness checks.
	Pinger interface {
		Ping(ctx context.Context) error
	}
)

// Store bundles the repositories a running server needs.
type Store struct {
	Accounts AccountRepository
	Pending  PendingRepository
	Records  RecordRepository
	Chat     ChatRepository
	Outbox   OutboxRepository
	Health   Pinger
}

// Classify maps a store error that the caller did not handle explicitly
// onto the API taxonomy.
func Classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrCanceled), errors.Is(err, context.Canceled):
		return apperrors.Canceled(err)
	case errors.Is(err, ErrStoreBusy):
		return apperrors.StoreBusy(err)
	case errors.Is(err, ErrEmailTaken), errors.Is(err, ErrAlreadyExists):
		return apperrors.Conflict("email already registered", err)
	default:
		if _, ok := apperrors.As(err); ok {
			return err
		}
		return apperrors.Internal(err)
	}
}
