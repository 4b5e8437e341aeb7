package migrations

import (
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigration(upAddScanAndProfileColumns, downAddScanAndProfileColumns)
}

func upAddScanAndProfileColumns(tx *sql.Tx) error {
	_, err := tx.Exec(`
		ALTER TABLE patient_records ADD COLUMN IF NOT EXISTS processed_image TEXT;
		ALTER TABLE patient_records ADD COLUMN IF NOT EXISTS segmentation_mask TEXT;
		ALTER TABLE doctors ADD COLUMN IF NOT EXISTS profile_image TEXT;
		ALTER TABLE doctors ADD COLUMN IF NOT EXISTS about TEXT;
	`)
	return err
}

func downAddScanAndProfileColumns(tx *sql.Tx) error {
	_, err := tx.Exec(`
		ALTER TABLE doctors DROP COLUMN IF EXISTS about;
		ALTER TABLE doctors DROP COLUMN IF EXISTS profile_image;
		ALTER TABLE patient_records DROP COLUMN IF EXISTS segmentation_mask;
		ALTER TABLE patient_records DROP COLUMN IF EXISTS processed_image;
	`)
	return err
}
