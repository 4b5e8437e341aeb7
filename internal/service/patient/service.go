// Package patient is the patient side of records: listing, detail, share
// links and the public read behind a share link.
package patient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jwalitptl/neuroscan-api/internal/model"
	"github.com/jwalitptl/neuroscan-api/internal/repository"
	"github.com/jwalitptl/neuroscan-api/internal/service/record"
	"github.com/jwalitptl/neuroscan-api/pkg/auth"
	apperrors "github.com/jwalitptl/neuroscan-api/pkg/errors"
)

type Profile struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Verified bool   `json:"verified"`
}

type Service struct {
	accounts     repository.AccountRepository
	records      repository.RecordRepository
	guard        *record.Guard
	tokens       *auth.TokenService
	shareBaseURL string
}

func NewService(
	accounts repository.AccountRepository,
	records repository.RecordRepository,
	tokens *auth.TokenService,
	shareBaseURL string,
) *Service {
	return &Service{
		accounts:     accounts,
		records:      records,
		guard:        record.NewGuard(records),
		tokens:       tokens,
		shareBaseURL: strings.TrimRight(shareBaseURL, "/"),
	}
}

func (s *Service) Records(ctx context.Context, email string) ([]model.RecordView, error) {
	recs, err := s.records.ListByPatient(ctx, email)
	if err != nil {
		return nil, repository.Classify(err)
	}
	out := make([]model.RecordView, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.View())
	}
	return out, nil
}

func (s *Service) Record(ctx context.Context, email string, id int64) (*model.RecordView, error) {
	rec, err := s.guard.PatientRecord(ctx, email, id)
	if err != nil {
		return nil, err
	}
	v := rec.View()
	return &v, nil
}

func (s *Service) Profile(ctx context.Context, email string) (*Profile, error) {
	p, err := s.accounts.GetPatient(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("patient", nil)
	}
	if err != nil {
		return nil, repository.Classify(err)
	}
	return &Profile{Email: p.Email, Name: p.Name, Verified: p.Verified}, nil
}

// Share mints a share link for one of the patient's own records.
func (s *Service) Share(ctx context.Context, email string, id int64) (*model.ShareLink, error) {
	if _, err := s.guard.PatientRecord(ctx, email, id); err != nil {
		return nil, err
	}

	token, err := s.tokens.IssueShare(id, email)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return &model.ShareLink{
		ShareLink: fmt.Sprintf("%s/shared/record/%s", s.shareBaseURL, token),
		ExpiresIn: humanDays(s.tokens.ShareTTL()),
	}, nil
}

// PublicRecord resolves a share token. The record must still belong to the
// patient named in the token.
func (s *Service) PublicRecord(ctx context.Context, token string) (*model.RecordView, error) {
	claims, err := s.tokens.ValidateShare(token)
	if errors.Is(err, auth.ErrTokenExpired) {
		return nil, apperrors.TokenExpired(err)
	}
	if err != nil {
		return nil, apperrors.Unauthenticated("This share link is invalid", err)
	}
	return s.Record(ctx, claims.PatientEmail, claims.RecordID)
}

func humanDays(d time.Duration) string {
	days := int(d / (24 * time.Hour))
	if days == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", days)
}
