package files

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/neuroscan-api/internal/middleware"
	"github.com/jwalitptl/neuroscan-api/internal/model"
	"github.com/jwalitptl/neuroscan-api/internal/service/record"
	"github.com/jwalitptl/neuroscan-api/internal/storage"
	apperrors "github.com/jwalitptl/neuroscan-api/pkg/errors"
	"github.com/jwalitptl/neuroscan-api/pkg/httputil"
)

// Handler serves stored uploads. Profile images are public; record files
// need a session of the record's patient or of its owning doctor, who must
// still be approved.
type Handler struct {
	store  storage.Storage
	guard  *record.Guard
	authMw *middleware.AuthMiddleware
}

func NewHandler(store storage.Storage, guard *record.Guard, authMw *middleware.AuthMiddleware) *Handler {
	return &Handler{store: store, guard: guard, authMw: authMw}
}

func (h *Handler) RegisterRoutes(r gin.IRoutes) {
	r.GET("/files/*key", h.Serve)
}

func (h *Handler) Serve(c *gin.Context) {
	key, err := storage.CleanKey(strings.TrimPrefix(c.Param("key"), "/"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.NotFound("file", err))
		return
	}

	switch {
	case strings.HasPrefix(key, "profiles/"):
	case strings.HasPrefix(key, "records/"):
		if err := h.authorizeRecordFile(c, key); err != nil {
			httputil.RespondWithError(c, err)
			return
		}
	default:
		httputil.RespondWithError(c, apperrors.NotFound("file", nil))
		return
	}

	rc, err := h.store.Get(c.Request.Context(), key)
	if errors.Is(err, storage.ErrNotFound) {
		httputil.RespondWithError(c, apperrors.NotFound("file", err))
		return
	}
	if err != nil {
		httputil.RespondWithError(c, apperrors.Upstream("file storage", err))
		return
	}
	defer rc.Close()

	contentType := mime.TypeByExtension(path.Ext(key))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Type", contentType)
	c.Header("Cache-Control", "private, max-age=300")
	c.Status(http.StatusOK)
	_, _ = io.Copy(c.Writer, rc)
}

func (h *Handler) authorizeRecordFile(c *gin.Context, key string) error {
	identity, err := h.authMw.Authorize(c.Request, "", true)
	if err != nil {
		return err
	}

	parts := strings.SplitN(key, "/", 3)
	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || len(parts) < 3 {
		return apperrors.NotFound("file", err)
	}

	var rec *model.PatientRecord
	switch identity.Role {
	case model.RoleDoctor:
		rec, err = h.guard.DoctorRecord(c.Request.Context(), identity.Email, id)
	case model.RolePatient:
		rec, err = h.guard.PatientRecord(c.Request.Context(), identity.Email, id)
	default:
		return apperrors.NotFoundOrForbidden("file")
	}
	if err != nil {
		return err
	}
	if rec.FilePath == nil || *rec.FilePath != key {
		return apperrors.NotFoundOrForbidden("file")
	}
	return nil
}
