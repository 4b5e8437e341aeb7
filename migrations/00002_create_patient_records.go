package migrations

import (
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigration(upCreatePatientRecords, downCreatePatientRecords)
}

func upCreatePatientRecords(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS patient_records (
			id BIGSERIAL PRIMARY KEY,
			name TEXT NOT NULL,
			email TEXT NOT NULL,
			age INTEGER,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now(),
			scan_result TEXT,
			file_path TEXT,
			report TEXT,
			doctor_email TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_patient_records_doctor ON patient_records (doctor_email, created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_patient_records_patient ON patient_records (email, created_at DESC);
	`)
	return err
}

func downCreatePatientRecords(tx *sql.Tx) error {
	_, err := tx.Exec(`DROP TABLE IF EXISTS patient_records;`)
	return err
}
