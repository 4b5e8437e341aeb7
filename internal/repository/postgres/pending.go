package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/neuroscan-api/internal/model"
	"github.com/jwalitptl/neuroscan-api/internal/repository"
)

const pendingColumns = `email, name, password_hash, role, confirmation_code,
	phone, country, city, hospital, university, created_at`

type pendingRepository struct {
	BaseRepository
}

func NewPendingRepository(base BaseRepository) repository.PendingRepository {
	return &pendingRepository{base}
}

func (r *pendingRepository) Create(ctx context.Context, p *model.PendingSignup) error {
	p.CreatedAt = time.Now().UTC()

	return r.WithTx(ctx, "pending.create", func(ctx context.Context, tx *sqlx.Tx) error {
		var registered bool
		if err := tx.GetContext(ctx, &registered,
			`SELECT EXISTS (SELECT 1 FROM account_emails WHERE email = $1)`, p.Email); err != nil {
			return fmt.Errorf("failed to check email: %w", err)
		}
		if registered {
			return repository.ErrEmailTaken
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO pending_users (`+pendingColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			p.Email, p.Name, p.PasswordHash, p.Role, p.ConfirmationCode,
			p.Phone, p.Country, p.City, p.Hospital, p.University, p.CreatedAt,
		)
		if isUniqueViolation(err) {
			return repository.ErrAlreadyExists
		}
		if err != nil {
			return fmt.Errorf("failed to create pending signup: %w", err)
		}
		return nil
	})
}

func (r *pendingRepository) Get(ctx context.Context, email string) (*model.PendingSignup, error) {
	var p model.PendingSignup
	err := r.run(ctx, "pending.get", func(ctx context.Context) error {
		query := `SELECT ` + pendingColumns + ` FROM pending_users WHERE email = $1`
		if err := r.db.GetContext(ctx, &p, query, email); err != nil {
			return fmt.Errorf("failed to get pending signup: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *pendingRepository) UpdateCode(ctx context.Context, email, code string) error {
	return r.run(ctx, "pending.update_code", func(ctx context.Context) error {
		res, err := r.db.ExecContext(ctx,
			`UPDATE pending_users SET confirmation_code = $2 WHERE email = $1`, email, code)
		if err != nil {
			return fmt.Errorf("failed to update confirmation code: %w", err)
		}
		return expectRows(res)
	})
}

func (r *pendingRepository) Delete(ctx context.Context, email string) error {
	return r.run(ctx, "pending.delete", func(ctx context.Context) error {
		if _, err := r.db.ExecContext(ctx, `DELETE FROM pending_users WHERE email = $1`, email); err != nil {
			return fmt.Errorf("failed to delete pending signup: %w", err)
		}
		return nil
	})
}

var errAlreadyVerified = errors.New("account already verified")

func (r *pendingRepository) Promote(ctx context.Context, email, code string) (*model.PendingSignup, error) {
	var p model.PendingSignup
	alreadyVerified := false

	err := r.WithTx(ctx, "pending.promote", func(ctx context.Context, tx *sqlx.Tx) error {
		query := `SELECT ` + pendingColumns + ` FROM pending_users WHERE email = $1 FOR UPDATE`
		if err := tx.GetContext(ctx, &p, query, email); err != nil {
			return fmt.Errorf("failed to lock pending signup: %w", err)
		}
		if p.ConfirmationCode != code {
			return repository.ErrNotFound
		}

		res, err := tx.ExecContext(ctx,
			`INSERT INTO account_emails (email, role) VALUES ($1, $2) ON CONFLICT (email) DO NOTHING`,
			email, p.Role)
		if err != nil {
			return fmt.Errorf("failed to register email: %w", err)
		}
		if err := expectRows(res); errors.Is(err, repository.ErrNotFound) {
			alreadyVerified = true
		} else if err != nil {
			return err
		}

		if !alreadyVerified {
			if err := insertAccount(ctx, tx, &p); err != nil {
				return err
			}
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM pending_users WHERE email = $1`, email); err != nil {
			return fmt.Errorf("failed to delete pending signup: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if alreadyVerified {
		return &p, fmt.Errorf("%w: %w", repository.ErrEmailTaken, errAlreadyVerified)
	}
	return &p, nil
}

func insertAccount(ctx context.Context, tx *sqlx.Tx, p *model.PendingSignup) error {
	now := time.Now().UTC()

	var err error
	switch p.Role {
	case model.RolePatient:
		_, err = tx.ExecContext(ctx,
			`INSERT INTO patients (email, name, password_hash, verified, created_at) VALUES ($1, $2, $3, TRUE, $4)`,
			p.Email, p.Name, p.PasswordHash, now)
	case model.RoleDoctor:
		f := p.DoctorFields()
		_, err = tx.ExecContext(ctx, `
			INSERT INTO doctors (email, name, password_hash, phone, country, city, hospital, university, approved, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, FALSE, $9)`,
			p.Email, p.Name, p.PasswordHash, f.Phone, f.Country, f.City, f.Hospital, f.University, now)
	default:
		return fmt.Errorf("pending signup has unknown role %q", p.Role)
	}
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", p.Role, err)
	}
	return nil
}
