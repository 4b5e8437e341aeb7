// Package auth implements signup, verification and signin for every role.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jwalitptl/neuroscan-api/internal/model"
	"github.com/jwalitptl/neuroscan-api/internal/repository"
	"github.com/jwalitptl/neuroscan-api/internal/service/notification"
	"github.com/jwalitptl/neuroscan-api/pkg/auth"
	apperrors "github.com/jwalitptl/neuroscan-api/pkg/errors"
	"github.com/jwalitptl/neuroscan-api/pkg/logger"
	"github.com/jwalitptl/neuroscan-api/pkg/security"
)

const (
	msgVerified        = "Account verified successfully"
	msgAlreadyVerified = "Account already verified. Proceed to signin."
)

// signinOrder is the lookup order for credentials.
var signinOrder = []model.Role{model.RolePatient, model.RoleDoctor, model.RoleAdmin}

type Service struct {
	accounts repository.AccountRepository
	pending  repository.PendingRepository
	tokens   *auth.TokenService
	hasher   security.PasswordHasher
	codes    security.CodeGenerator
	notifier notification.Service
	log      *logger.Logger
}

func NewService(
	accounts repository.AccountRepository,
	pending repository.PendingRepository,
	tokens *auth.TokenService,
	hasher security.PasswordHasher,
	codes security.CodeGenerator,
	notifier notification.Service,
	l *logger.Logger,
) *Service {
	if l == nil {
		l = logger.FromGlobal()
	}
	return &Service{
		accounts: accounts,
		pending:  pending,
		tokens:   tokens,
		hasher:   hasher,
		codes:    codes,
		notifier: notifier,
		log:      l.Named("auth"),
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Service) SignupPatient(ctx context.Context, req *model.PatientSignupRequest) error {
	return s.signup(ctx, &model.PendingSignup{
		Email: normalizeEmail(req.Email),
		Name:  strings.TrimSpace(req.Name),
		Role:  model.RolePatient,
	}, req.Password)
}

func (s *Service) SignupDoctor(ctx context.Context, req *model.DoctorSignupRequest) error {
	return s.signup(ctx, &model.PendingSignup{
		Email:      normalizeEmail(req.Email),
		Name:       strings.TrimSpace(req.Name),
		Role:       model.RoleDoctor,
		Phone:      &req.Phone,
		Country:    &req.Country,
		City:       &req.City,
		Hospital:   &req.Hospital,
		University: &req.University,
	}, req.Password)
}

func (s *Service) signup(ctx context.Context, p *model.PendingSignup, password string) error {
	hash, err := s.hasher.Hash(password)
	if errors.Is(err, security.ErrPasswordTooShort) {
		return apperrors.BadRequest("password is too short", err)
	}
	if errors.Is(err, security.ErrPasswordTooLong) {
		return apperrors.BadRequest("password is too long", err)
	}
	if err != nil {
		return apperrors.Internal(err)
	}
	code, err := s.codes.Generate()
	if err != nil {
		return apperrors.Internal(err)
	}
	p.PasswordHash = hash
	p.ConfirmationCode = code

	err = s.pending.Create(ctx, p)
	switch {
	case errors.Is(err, repository.ErrEmailTaken):
		return apperrors.Conflict("Email already registered. Try signing in.", err)
	case errors.Is(err, repository.ErrAlreadyExists):
		return apperrors.Conflict("Email is already pending verification.", err)
	case err != nil:
		return repository.Classify(err)
	}

	if err := s.notifier.SendConfirmationCode(ctx, p.Email, code); err != nil {
		// The pending row stays; the user can ask for the code again.
		s.log.Error(err, "Failed to queue confirmation code", "email", p.Email)
	}
	return nil
}

// Verify promotes a pending signup to an account when the code matches.
func (s *Service) Verify(ctx context.Context, req *model.VerifyRequest) (*model.VerifyResult, string, error) {
	email := normalizeEmail(req.Email)

	p, err := s.pending.Promote(ctx, email, req.ConfirmationCode)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil, "", apperrors.BadRequest("Invalid code", nil)
	case errors.Is(err, repository.ErrEmailTaken):
		role, _ := s.accounts.EmailRole(ctx, email)
		return &model.VerifyResult{Email: email, Role: role, AlreadyVerified: true}, msgAlreadyVerified, nil
	case err != nil:
		return nil, "", repository.Classify(err)
	}

	return &model.VerifyResult{Email: p.Email, Role: p.Role}, msgVerified, nil
}

// ResendCode issues a fresh code for a pending signup.
func (s *Service) ResendCode(ctx context.Context, req *model.ResendCodeRequest) error {
	email := normalizeEmail(req.Email)

	code, err := s.codes.Generate()
	if err != nil {
		return apperrors.Internal(err)
	}
	err = s.pending.UpdateCode(ctx, email, code)
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NotFound("pending signup", nil)
	}
	if err != nil {
		return repository.Classify(err)
	}

	if err := s.notifier.SendConfirmationCode(ctx, email, code); err != nil {
		return repository.Classify(err)
	}
	return nil
}

// Signin checks the password against patients, doctors and admins in that
// order and issues a session token. The returned message is "Pending" for a
// doctor awaiting approval.
func (s *Service) Signin(ctx context.Context, req *model.SigninRequest) (*model.SigninResponse, string, error) {
	email := normalizeEmail(req.Email)

	cred, err := s.findCredential(ctx, email)
	if err != nil {
		return nil, "", err
	}
	if err := s.hasher.Compare(cred.PasswordHash, req.Password); err != nil {
		if errors.Is(err, security.ErrPasswordMismatch) {
			return nil, "", apperrors.Unauthenticated(model.ErrInvalidCredentials.Error(), nil)
		}
		return nil, "", apperrors.Internal(err)
	}

	token, err := s.tokens.IssueSession(auth.Identity{
		Email:    cred.Email,
		Name:     cred.Name,
		Role:     string(cred.Role),
		Approved: cred.Approved,
	})
	if err != nil {
		return nil, "", apperrors.Internal(fmt.Errorf("failed to issue session: %w", err))
	}

	message := "Success"
	if cred.Role == model.RoleDoctor && (cred.Approved == nil || !*cred.Approved) {
		message = "Pending"
	}

	return &model.SigninResponse{
		Token:    token,
		Email:    cred.Email,
		Name:     cred.Name,
		Type:     cred.Role,
		Approved: cred.Approved,
	}, message, nil
}

func (s *Service) findCredential(ctx context.Context, email string) (*model.Credential, error) {
	for _, role := range signinOrder {
		cred, err := s.accounts.FindCredential(ctx, role, email)
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, repository.Classify(err)
		}
		return cred, nil
	}
	return nil, apperrors.Unauthenticated(model.ErrInvalidCredentials.Error(), nil)
}
