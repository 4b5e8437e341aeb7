package record

import (
	"context"
	"errors"

	"github.com/jwalitptl/neuroscan-api/internal/model"
	"github.com/jwalitptl/neuroscan-api/internal/repository"
	apperrors "github.com/jwalitptl/neuroscan-api/pkg/errors"
)

// Guard resolves records on behalf of a caller. A record that does not
// exist and a record owned by someone else produce the same 404.
type Guard struct {
	records repository.RecordRepository
}

func NewGuard(records repository.RecordRepository) *Guard {
	return &Guard{records: records}
}

// DoctorRecord returns the record if doctorEmail owns it.
func (g *Guard) DoctorRecord(ctx context.Context, doctorEmail string, id int64) (*model.PatientRecord, error) {
	if id <= 0 {
		return nil, apperrors.NotFoundOrForbidden("record")
	}
	rec, err := g.records.GetForDoctor(ctx, doctorEmail, id)
	if err != nil {
		return nil, Deny(err)
	}
	return rec, nil
}

// PatientRecord returns the record if it concerns patientEmail.
func (g *Guard) PatientRecord(ctx context.Context, patientEmail string, id int64) (*model.PatientRecord, error) {
	if id <= 0 {
		return nil, apperrors.NotFoundOrForbidden("record")
	}
	rec, err := g.records.GetForPatient(ctx, patientEmail, id)
	if err != nil {
		return nil, Deny(err)
	}
	return rec, nil
}

// Deny maps the result of an owner-scoped query or update. Zero rows
// becomes the uniform 404.
func Deny(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NotFoundOrForbidden("record")
	}
	return repository.Classify(err)
}
