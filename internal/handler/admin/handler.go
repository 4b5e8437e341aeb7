package admin

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/neuroscan-api/internal/middleware"
	"github.com/jwalitptl/neuroscan-api/internal/model"
	"github.com/jwalitptl/neuroscan-api/internal/service/admin"
	"github.com/jwalitptl/neuroscan-api/pkg/httputil"
)

// DoctorRequest names the doctor an admin acts on.
type DoctorRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type Handler struct {
	svc *admin.Service
}

func NewHandler(svc *admin.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup, authMw *middleware.AuthMiddleware) {
	admins := r.Group("/admin", authMw.RequireRole(model.RoleAdmin, false))
	{
		admins.GET("/users", h.ListUsers)
		admins.POST("/approve-doctor", h.ApproveDoctor)
		admins.POST("/reject-doctor", h.RejectDoctor)
	}
}

func (h *Handler) ListUsers(c *gin.Context) {
	users, err := h.svc.ListUsers(c.Request.Context())
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, "", users)
}

func (h *Handler) ApproveDoctor(c *gin.Context) {
	var req DoctorRequest
	if !httputil.BindJSON(c, &req) {
		return
	}
	if err := h.svc.ApproveDoctor(c.Request.Context(), req.Email); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, "Approved", nil)
}

func (h *Handler) RejectDoctor(c *gin.Context) {
	var req DoctorRequest
	if !httputil.BindJSON(c, &req) {
		return
	}
	if err := h.svc.RejectDoctor(c.Request.Context(), req.Email); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, "Rejected", nil)
}
