package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/neuroscan-api/internal/model"
	"github.com/jwalitptl/neuroscan-api/internal/repository"
)

const doctorColumns = `email, name, password_hash, phone, country, city, hospital, university,
	approved, profile_image, about, created_at`

var credentialQueries = map[model.Role]string{
	model.RolePatient: `SELECT email, name, password_hash, 'patient' AS role, NULL::boolean AS approved
		FROM patients WHERE email = $1`,
	model.RoleDoctor: `SELECT email, name, password_hash, 'doctor' AS role, approved
		FROM doctors WHERE email = $1`,
	model.RoleAdmin: `SELECT email, name, password_hash, 'admin' AS role, NULL::boolean AS approved
		FROM admins WHERE email = $1`,
}

type accountRepository struct {
	BaseRepository
}

func NewAccountRepository(base BaseRepository) repository.AccountRepository {
	return &accountRepository{base}
}

func (r *accountRepository) EmailRole(ctx context.Context, email string) (model.Role, error) {
	var role model.Role
	err := r.run(ctx, "account.email_role", func(ctx context.Context) error {
		if err := r.db.GetContext(ctx, &role, `SELECT role FROM account_emails WHERE email = $1`, email); err != nil {
			return fmt.Errorf("failed to look up email: %w", err)
		}
		return nil
	})
	return role, err
}

func (r *accountRepository) FindCredential(ctx context.Context, role model.Role, email string) (*model.Credential, error) {
	query, ok := credentialQueries[role]
	if !ok {
		return nil, fmt.Errorf("unknown role %q", role)
	}

	var cred model.Credential
	err := r.run(ctx, "account.find_credential", func(ctx context.Context) error {
		if err := r.db.GetContext(ctx, &cred, query, email); err != nil {
			return fmt.Errorf("failed to get %s credential: %w", role, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &cred, nil
}

func (r *accountRepository) GetPatient(ctx context.Context, email string) (*model.Patient, error) {
	var p model.Patient
	err := r.run(ctx, "account.get_patient", func(ctx context.Context) error {
		query := `SELECT email, name, password_hash, verified, created_at FROM patients WHERE email = $1`
		if err := r.db.GetContext(ctx, &p, query, email); err != nil {
			return fmt.Errorf("failed to get patient: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *accountRepository) GetDoctor(ctx context.Context, email string) (*model.Doctor, error) {
	var d model.Doctor
	err := r.run(ctx, "account.get_doctor", func(ctx context.Context) error {
		query := `SELECT ` + doctorColumns + ` FROM doctors WHERE email = $1`
		if err := r.db.GetContext(ctx, &d, query, email); err != nil {
			return fmt.Errorf("failed to get doctor: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *accountRepository) ListPatients(ctx context.Context) ([]*model.Patient, error) {
	var patients []*model.Patient
	err := r.run(ctx, "account.list_patients", func(ctx context.Context) error {
		query := `SELECT email, name, password_hash, verified, created_at FROM patients ORDER BY email`
		if err := r.db.SelectContext(ctx, &patients, query); err != nil {
			return fmt.Errorf("failed to list patients: %w", err)
		}
		return nil
	})
	return patients, err
}

func (r *accountRepository) ListDoctors(ctx context.Context) ([]*model.Doctor, error) {
	var doctors []*model.Doctor
	err := r.run(ctx, "account.list_doctors", func(ctx context.Context) error {
		query := `SELECT ` + doctorColumns + ` FROM doctors ORDER BY email`
		if err := r.db.SelectContext(ctx, &doctors, query); err != nil {
			return fmt.Errorf("failed to list doctors: %w", err)
		}
		return nil
	})
	return doctors, err
}

func (r *accountRepository) CreateAdmin(ctx context.Context, admin *model.Admin) error {
	admin.CreatedAt = time.Now().UTC()

	err := r.WithTx(ctx, "account.create_admin", func(ctx context.Context, tx *sqlx.Tx) error {
		if err := registerEmail(ctx, tx, admin.Email, model.RoleAdmin); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO admins (email, name, password_hash, created_at) VALUES ($1, $2, $3, $4)`,
			admin.Email, admin.Name, admin.PasswordHash, admin.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to create admin: %w", err)
		}
		return nil
	})
	return err
}

// registerEmail claims email for role in the cross-role registry.
func registerEmail(ctx context.Context, tx *sqlx.Tx, email string, role model.Role) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO account_emails (email, role) VALUES ($1, $2)`, email, role)
	if isUniqueViolation(err) {
		return repository.ErrEmailTaken
	}
	if err != nil {
		return fmt.Errorf("failed to register email: %w", err)
	}
	return nil
}

func (r *accountRepository) IsDoctorApproved(ctx context.Context, email string) (bool, error) {
	var approved bool
	err := r.run(ctx, "account.is_doctor_approved", func(ctx context.Context) error {
		if err := r.db.GetContext(ctx, &approved, `SELECT approved FROM doctors WHERE email = $1`, email); err != nil {
			return fmt.Errorf("failed to get doctor approval: %w", err)
		}
		return nil
	})
	return approved, err
}

func (r *accountRepository) SetDoctorApproved(ctx context.Context, email string, approved bool) error {
	return r.run(ctx, "account.set_doctor_approved", func(ctx context.Context) error {
		res, err := r.db.ExecContext(ctx, `UPDATE doctors SET approved = $2 WHERE email = $1`, email, approved)
		if err != nil {
			return fmt.Errorf("failed to update doctor approval: %w", err)
		}
		return expectRows(res)
	})
}

func (r *accountRepository) DeleteDoctor(ctx context.Context, email string) error {
	return r.WithTx(ctx, "account.delete_doctor", func(ctx context.Context, tx *sqlx.Tx) error {
		var owns bool
		if err := tx.GetContext(ctx, &owns, `SELECT EXISTS (SELECT 1 FROM patient_records WHERE doctor_email = $1)`, email); err != nil {
			return fmt.Errorf("failed to check doctor records: %w", err)
		}
		if owns {
			return repository.ErrHasRecords
		}

		res, err := tx.ExecContext(ctx, `DELETE FROM doctors WHERE email = $1`, email)
		if err != nil {
			return fmt.Errorf("failed to delete doctor: %w", err)
		}
		if err := expectRows(res); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM account_emails WHERE email = $1`, email); err != nil {
			return fmt.Errorf("failed to release email: %w", err)
		}
		return nil
	})
}

func (r *accountRepository) UpdateDoctorProfile(ctx context.Context, email string, u model.DoctorProfileUpdate) (*model.Doctor, error) {
	query := `
		UPDATE doctors SET
			name = COALESCE($2, name),
			phone = COALESCE($3, phone),
			country = COALESCE($4, country),
			city = COALESCE($5, city),
			hospital = COALESCE($6, hospital),
			university = COALESCE($7, university),
			about = COALESCE($8, about),
			profile_image = COALESCE($9, profile_image)
		WHERE email = $1
		RETURNING ` + doctorColumns

	var d model.Doctor
	err := r.run(ctx, "account.update_doctor_profile", func(ctx context.Context) error {
		err := r.db.GetContext(ctx, &d, query, email,
			u.Name, u.Phone, u.Country, u.City, u.Hospital, u.University, u.About, u.ProfileImage,
		)
		if err != nil {
			return fmt.Errorf("failed to update doctor profile: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &d, nil
}
