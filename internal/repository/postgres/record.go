package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jwalitptl/neuroscan-api/internal/model"
	"github.com/jwalitptl/neuroscan-api/internal/repository"
)

const recordColumns = `id, name, email, age, created_at, scan_result, file_path, report,
	processed_image, segmentation_mask, doctor_email`

type recordRepository struct {
	BaseRepository
}

func NewRecordRepository(base BaseRepository) repository.RecordRepository {
	return &recordRepository{base}
}

func (r *recordRepository) Create(ctx context.Context, rec model.NewRecord) (*model.PatientRecord, error) {
	query := `
		INSERT INTO patient_records (name, email, age, created_at, doctor_email)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + recordColumns

	var out model.PatientRecord
	err := r.run(ctx, "record.create", func(ctx context.Context) error {
		err := r.db.GetContext(ctx, &out, query, rec.Name, rec.Email, rec.Age, time.Now().UTC(), rec.DoctorEmail)
		if err != nil {
			return fmt.Errorf("failed to create patient record: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *recordRepository) GetForDoctor(ctx context.Context, doctorEmail string, id int64) (*model.PatientRecord, error) {
	return r.getOne(ctx, "record.get_for_doctor",
		`SELECT `+recordColumns+` FROM patient_records WHERE id = $1 AND doctor_email = $2`, id, doctorEmail)
}

func (r *recordRepository) GetForPatient(ctx context.Context, patientEmail string, id int64) (*model.PatientRecord, error) {
	return r.getOne(ctx, "record.get_for_patient",
		`SELECT `+recordColumns+` FROM patient_records WHERE id = $1 AND email = $2`, id, patientEmail)
}

func (r *recordRepository) getOne(ctx context.Context, op, query string, args ...interface{}) (*model.PatientRecord, error) {
	var rec model.PatientRecord
	err := r.run(ctx, op, func(ctx context.Context) error {
		if err := r.db.GetContext(ctx, &rec, query, args...); err != nil {
			return fmt.Errorf("failed to get patient record: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *recordRepository) ListByDoctor(ctx context.Context, doctorEmail string) ([]*model.PatientRecord, error) {
	return r.list(ctx, "record.list_by_doctor",
		`SELECT `+recordColumns+` FROM patient_records WHERE doctor_email = $1 ORDER BY created_at DESC, id DESC`,
		doctorEmail)
}

func (r *recordRepository) ListByPatient(ctx context.Context, patientEmail string) ([]*model.PatientRecord, error) {
	return r.list(ctx, "record.list_by_patient",
		`SELECT `+recordColumns+` FROM patient_records WHERE email = $1 ORDER BY created_at DESC, id DESC`,
		patientEmail)
}

func (r *recordRepository) list(ctx context.Context, op, query, email string) ([]*model.PatientRecord, error) {
	records := []*model.PatientRecord{}
	err := r.run(ctx, op, func(ctx context.Context) error {
		if err := r.db.SelectContext(ctx, &records, query, email); err != nil {
			return fmt.Errorf("failed to list patient records: %w", err)
		}
		return nil
	})
	return records, err
}

// ownedUpdate runs an UPDATE whose first two parameters are the record id
// and the owning doctor. No matching row means not found or not owned.
func (r *recordRepository) ownedUpdate(ctx context.Context, op, query string, args ...interface{}) error {
	return r.run(ctx, op, func(ctx context.Context) error {
		res, err := r.db.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to update patient record: %w", err)
		}
		return expectRows(res)
	})
}

func (r *recordRepository) UpdateScanResult(ctx context.Context, doctorEmail string, id int64, scanResult string) error {
	return r.ownedUpdate(ctx, "record.update_scan_result",
		`UPDATE patient_records SET scan_result = $3 WHERE id = $1 AND doctor_email = $2`,
		id, doctorEmail, scanResult)
}

func (r *recordRepository) UpdateScan(ctx context.Context, doctorEmail string, id int64, scan model.ScanUpdate) error {
	return r.ownedUpdate(ctx, "record.update_scan",
		`UPDATE patient_records SET scan_result = $3, processed_image = $4, segmentation_mask = $5
		WHERE id = $1 AND doctor_email = $2`,
		id, doctorEmail, scan.ScanResult, scan.ProcessedImage, scan.SegmentationMask)
}

func (r *recordRepository) UpdateReport(ctx context.Context, doctorEmail string, id int64, report string) error {
	return r.ownedUpdate(ctx, "record.update_report",
		`UPDATE patient_records SET report = $3 WHERE id = $1 AND doctor_email = $2`,
		id, doctorEmail, report)
}

func (r *recordRepository) SetFilePath(ctx context.Context, doctorEmail string, id int64, filePath *string) error {
	return r.ownedUpdate(ctx, "record.set_file_path",
		`UPDATE patient_records SET file_path = $3 WHERE id = $1 AND doctor_email = $2`,
		id, doctorEmail, filePath)
}
