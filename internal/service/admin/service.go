// Package admin covers doctor vetting and the user listing.
package admin

import (
	"context"
	"errors"
	"strings"

	"github.com/jwalitptl/neuroscan-api/internal/model"
	"github.com/jwalitptl/neuroscan-api/internal/repository"
	"github.com/jwalitptl/neuroscan-api/internal/service/notification"
	apperrors "github.com/jwalitptl/neuroscan-api/pkg/errors"
	"github.com/jwalitptl/neuroscan-api/pkg/logger"
	"github.com/jwalitptl/neuroscan-api/pkg/security"
)

type Service struct {
	accounts repository.AccountRepository
	notifier notification.Service
	hasher   security.PasswordHasher
	log      *logger.Logger
}

func NewService(accounts repository.AccountRepository, notifier notification.Service, hasher security.PasswordHasher, l *logger.Logger) *Service {
	if l == nil {
		l = logger.FromGlobal()
	}
	return &Service{accounts: accounts, notifier: notifier, hasher: hasher, log: l.Named("admin")}
}

func (s *Service) ListUsers(ctx context.Context) (*model.UserListing, error) {
	patients, err := s.accounts.ListPatients(ctx)
	if err != nil {
		return nil, repository.Classify(err)
	}
	doctors, err := s.accounts.ListDoctors(ctx)
	if err != nil {
		return nil, repository.Classify(err)
	}

	out := &model.UserListing{
		Patients: make([]model.UserSummary, 0, len(patients)),
		Doctors:  make([]model.UserSummary, 0, len(doctors)),
	}
	for _, p := range patients {
		out.Patients = append(out.Patients, model.UserSummary{Email: p.Email, Name: p.Name, Role: model.RolePatient})
	}
	for _, d := range doctors {
		approved := d.Approved
		out.Doctors = append(out.Doctors, model.UserSummary{
			Email:        d.Email,
			Name:         d.Name,
			Role:         model.RoleDoctor,
			Phone:        d.Phone,
			Country:      d.Country,
			City:         d.City,
			Hospital:     d.Hospital,
			University:   d.University,
			Approved:     &approved,
			ProfileImage: d.ProfileImage,
			About:        d.About,
		})
	}
	return out, nil
}

func (s *Service) ApproveDoctor(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))

	err := s.accounts.SetDoctorApproved(ctx, email, true)
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NotFound("doctor", nil)
	}
	if err != nil {
		return repository.Classify(err)
	}

	s.emit(ctx, model.EventDoctorApproved, email)
	return nil
}

// RejectDoctor deletes the doctor account and mails a rejection notice.
// Doctors that still own patient records cannot be rejected, since a later
// signup with the same email would inherit them.
func (s *Service) RejectDoctor(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))

	err := s.accounts.DeleteDoctor(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NotFound("doctor", nil)
	}
	if errors.Is(err, repository.ErrHasRecords) {
		return apperrors.Conflict("doctor still owns patient records", err)
	}
	if err != nil {
		return repository.Classify(err)
	}

	if err := s.notifier.SendRejection(ctx, email); err != nil {
		s.log.Error(err, "Failed to queue rejection notice", "email", email)
	}
	s.emit(ctx, model.EventDoctorRejected, email)
	return nil
}

// SeedAdmin creates the configured admin account. It reports false when the
// email is already registered.
func (s *Service) SeedAdmin(ctx context.Context, email, name, password string) (bool, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return false, apperrors.BadRequest("admin email and password are required", nil)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return false, apperrors.BadRequest("admin password rejected", err)
	}

	err = s.accounts.CreateAdmin(ctx, &model.Admin{Email: email, Name: name, PasswordHash: hash})
	if errors.Is(err, repository.ErrEmailTaken) {
		return false, nil
	}
	if err != nil {
		return false, repository.Classify(err)
	}
	return true, nil
}

func (s *Service) emit(ctx context.Context, eventType, email string) {
	if err := s.notifier.Enqueue(ctx, eventType, model.DoctorEvent{Email: email}); err != nil {
		s.log.Error(err, "Failed to queue domain event", "event_type", eventType, "email", email)
	}
}
