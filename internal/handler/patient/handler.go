package patient

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/neuroscan-api/internal/middleware"
	"github.com/jwalitptl/neuroscan-api/internal/model"
	"github.com/jwalitptl/neuroscan-api/internal/service/account"
	"github.com/jwalitptl/neuroscan-api/internal/service/patient"
	apperrors "github.com/jwalitptl/neuroscan-api/pkg/errors"
	"github.com/jwalitptl/neuroscan-api/pkg/httputil"
)

type Handler struct {
	svc      *patient.Service
	profiles *account.Service
}

func NewHandler(svc *patient.Service, profiles *account.Service) *Handler {
	return &Handler{svc: svc, profiles: profiles}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup, authMw *middleware.AuthMiddleware) {
	patients := r.Group("/patient", authMw.RequireRole(model.RolePatient, false))
	{
		patients.GET("/records", h.ListRecords)
		patients.GET("/record/:id", h.GetRecord)
		patients.GET("/profile", h.GetProfile)
		patients.GET("/doctor-profile", h.GetDoctorProfile)
		patients.POST("/share/:id", h.ShareRecord)
	}
}

func caller(c *gin.Context) string {
	id, _ := middleware.IdentityFrom(c)
	return id.Email
}

func (h *Handler) ListRecords(c *gin.Context) {
	records, err := h.svc.Records(c.Request.Context(), caller(c))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, "", gin.H{"records": records})
}

func (h *Handler) GetRecord(c *gin.Context) {
	id, ok := httputil.ParamID(c, "id")
	if !ok {
		return
	}
	rec, err := h.svc.Record(c.Request.Context(), caller(c), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, "", rec)
}

func (h *Handler) GetProfile(c *gin.Context) {
	p, err := h.svc.Profile(c.Request.Context(), caller(c))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, "", p)
}

func (h *Handler) GetDoctorProfile(c *gin.Context) {
	email := c.Query("email")
	if email == "" {
		httputil.RespondWithError(c, apperrors.BadRequest("email is required", nil))
		return
	}
	p, err := h.profiles.PublicDoctorProfile(c.Request.Context(), email)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, "", p)
}

func (h *Handler) ShareRecord(c *gin.Context) {
	id, ok := httputil.ParamID(c, "id")
	if !ok {
		return
	}
	link, err := h.svc.Share(c.Request.Context(), caller(c), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, "Share link generated successfully", link)
}
