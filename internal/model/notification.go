package model

// Outbox event types.
const (
	EventEmailNotification = "notification.email"
	EventDoctorApproved    = "doctor.approved"
	EventDoctorRejected    = "doctor.rejected"
	EventRecordCreated     = "record.created"
	EventRecordScanned     = "record.scanned"
)

// EmailNotification is the payload of a notification.email event.
type EmailNotification struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	HTML    bool   `json:"html,omitempty"`
}

// DoctorEvent is the payload of doctor.approved and doctor.rejected.
type DoctorEvent struct {
	Email string `json:"email"`
}

// RecordEvent is the payload of record.created and record.scanned.
type RecordEvent struct {
	RecordID     int64  `json:"record_id"`
	DoctorEmail  string `json:"doctor_email"`
	PatientEmail string `json:"patient_email"`
	ScanResult   string `json:"scan_result,omitempty"`
}
