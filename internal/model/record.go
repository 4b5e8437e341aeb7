package model

import (
	"path"
	"time"
)

// PatientRecord is owned by exactly one doctor and concerns one patient.
type PatientRecord struct {
	ID               int64     `db:"id" json:"id"`
	Name             string    `db:"name" json:"name"`
	Email            string    `db:"email" json:"email"`
	Age              *int      `db:"age" json:"age"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	ScanResult       *string   `db:"scan_result" json:"scan_result"`
	FilePath         *string   `db:"file_path" json:"file_path"`
	Report           *string   `db:"report" json:"report"`
	ProcessedImage   *string   `db:"processed_image" json:"processed_image"`
	SegmentationMask *string   `db:"segmentation_mask" json:"segmentation_mask,omitempty"`
	DoctorEmail      string    `db:"doctor_email" json:"doctor_email"`
}

// RecordView is the record shape returned by detail and listing endpoints.
type RecordView struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	Age            *int      `json:"age"`
	CreatedAt      time.Time `json:"created_at"`
	ScanResult     *string   `json:"scan_result"`
	FilePath       *string   `json:"file_path"`
	FileName       *string   `json:"file_name"`
	Report         *string   `json:"report"`
	ProcessedImage string    `json:"processed_image"`
}

func (r *PatientRecord) View() RecordView {
	v := RecordView{
		ID:         r.ID,
		Name:       r.Name,
		Email:      r.Email,
		Age:        r.Age,
		CreatedAt:  r.CreatedAt,
		ScanResult: r.ScanResult,
		FilePath:   r.FilePath,
		Report:     r.Report,
	}
	if r.FilePath != nil && *r.FilePath != "" {
		name := path.Base(*r.FilePath)
		v.FileName = &name
	}
	if r.ProcessedImage != nil {
		v.ProcessedImage = *r.ProcessedImage
	}
	return v
}

type NewRecord struct {
	Name        string
	Email       string
	Age         *int
	DoctorEmail string
}

// ScanUpdate replaces the scan columns of a record. Nil clears a column.
type ScanUpdate struct {
	ScanResult       string
	ProcessedImage   *string
	SegmentationMask *string
}

type AddPatientRequest struct {
	Name  string `json:"name" binding:"required"`
	Email string `json:"email" binding:"required,email"`
	Age   *int   `json:"age" binding:"omitempty,gte=0,lte=150"`
}

type UpdateScanRequest struct {
	PatientID  int64  `json:"patient_id" binding:"required,gt=0"`
	ScanResult string `json:"scan_result" binding:"required"`
}

type SaveReportRequest struct {
	PatientID int64  `json:"patient_id" binding:"required,gt=0"`
	Report    string `json:"report" binding:"required"`
}

// RecordRef names a record by id, for operations that need nothing else.
type RecordRef struct {
	PatientID int64 `json:"patient_id" binding:"required,gt=0"`
}

// ShareLink is returned when a patient shares a record.
type ShareLink struct {
	ShareLink string `json:"share_link"`
	ExpiresIn string `json:"expires_in"`
}
