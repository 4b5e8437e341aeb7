package migrations

import (
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigration(upCreateAccounts, downCreateAccounts)
}

func upCreateAccounts(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS account_emails (
			email TEXT PRIMARY KEY,
			role TEXT NOT NULL CHECK (role IN ('patient', 'doctor', 'admin'))
		);

		CREATE TABLE IF NOT EXISTS patients (
			email TEXT PRIMARY KEY REFERENCES account_emails(email),
			name TEXT NOT NULL,
			password_hash TEXT NOT NULL,
			verified BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now()
		);

		CREATE TABLE IF NOT EXISTS doctors (
			email TEXT PRIMARY KEY REFERENCES account_emails(email),
			name TEXT NOT NULL,
			password_hash TEXT NOT NULL,
			phone TEXT NOT NULL,
			country TEXT NOT NULL,
			city TEXT NOT NULL,
			hospital TEXT NOT NULL,
			university TEXT NOT NULL,
			approved BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now()
		);

		CREATE TABLE IF NOT EXISTS admins (
			email TEXT PRIMARY KEY REFERENCES account_emails(email),
			name TEXT NOT NULL,
			password_hash TEXT NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now()
		);

		CREATE TABLE IF NOT EXISTS pending_users (
			email TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			password_hash TEXT NOT NULL,
			role TEXT NOT NULL CHECK (role IN ('patient', 'doctor')),
			confirmation_code TEXT NOT NULL,
			phone TEXT,
			country TEXT,
			city TEXT,
			hospital TEXT,
			university TEXT,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now()
		);
	`)
	return err
}

func downCreateAccounts(tx *sql.Tx) error {
	_, err := tx.Exec(`
		DROP TABLE IF EXISTS pending_users;
		DROP TABLE IF EXISTS admins;
		DROP TABLE IF EXISTS doctors;
		DROP TABLE IF EXISTS patients;
		DROP TABLE IF EXISTS account_emails;
	`)
	return err
}
