// Package account manages doctor profiles.
package account

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/jwalitptl/neuroscan-api/internal/model"
	"github.com/jwalitptl/neuroscan-api/internal/repository"
	"github.com/jwalitptl/neuroscan-api/internal/storage"
	apperrors "github.com/jwalitptl/neuroscan-api/pkg/errors"
	"github.com/jwalitptl/neuroscan-api/pkg/logger"
)

var imageTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
}

// Upload is a file taken from a multipart form.
type Upload struct {
	Filename string
	Body     io.Reader
}

type Service struct {
	accounts repository.AccountRepository
	storage  storage.Storage
	log      *logger.Logger
}

func NewService(accounts repository.AccountRepository, store storage.Storage, l *logger.Logger) *Service {
	if l == nil {
		l = logger.FromGlobal()
	}
	return &Service{accounts: accounts, storage: store, log: l.Named("account")}
}

func (s *Service) DoctorProfile(ctx context.Context, email string) (*model.Doctor, error) {
	d, err := s.accounts.GetDoctor(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("doctor", nil)
	}
	if err != nil {
		return nil, repository.Classify(err)
	}
	return d, nil
}

// UpdateDoctorProfile applies the non-nil fields and, when image is set,
// stores it as the new profile image.
func (s *Service) UpdateDoctorProfile(ctx context.Context, email string, update model.DoctorProfileUpdate, image *Upload) (*model.Doctor, error) {
	var newKey string
	if image != nil {
		name := path.Base(strings.ReplaceAll(image.Filename, "\\", "/"))
		contentType, ok := imageTypes[strings.ToLower(path.Ext(name))]
		if !ok {
			return nil, apperrors.BadRequest("Invalid image type. Only JPG and PNG are allowed.", nil)
		}
		newKey = fmt.Sprintf("profiles/%s-%s", uuid.NewString(), name)
		if err := s.storage.Put(ctx, newKey, image.Body, contentType); err != nil {
			return nil, apperrors.Upstream("file storage", err)
		}
		update.ProfileImage = &newKey
	}
	if update.Empty() {
		return nil, apperrors.BadRequest("No fields to update", nil)
	}

	old, err := s.accounts.GetDoctor(ctx, email)
	if err != nil {
		s.discard(ctx, newKey)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("doctor", nil)
		}
		return nil, repository.Classify(err)
	}

	d, err := s.accounts.UpdateDoctorProfile(ctx, email, update)
	if err != nil {
		s.discard(ctx, newKey)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("doctor", nil)
		}
		return nil, repository.Classify(err)
	}

	if newKey != "" && old.ProfileImage != nil && *old.ProfileImage != "" {
		s.discard(ctx, *old.ProfileImage)
	}
	return d, nil
}

// PublicDoctorProfile is what a patient may see. Unapproved doctors do not
// exist from the patient's point of view.
func (s *Service) PublicDoctorProfile(ctx context.Context, email string) (*model.PublicDoctorProfile, error) {
	d, err := s.accounts.GetDoctor(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, repository.ErrNotFound) || (err == nil && !d.Approved) {
		return nil, apperrors.NotFound("doctor", errors.New("not found or not approved"))
	}
	if err != nil {
		return nil, repository.Classify(err)
	}
	return &model.PublicDoctorProfile{
		Email:        d.Email,
		Name:         d.Name,
		Hospital:     d.Hospital,
		University:   d.University,
		ProfileImage: d.ProfileImage,
		About:        d.About,
	}, nil
}

func (s *Service) discard(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := s.storage.Delete(ctx, key); err != nil {
		s.log.Warn("Failed to delete stored file", "key", key, "error", err)
	}
}
