package auth

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/neuroscan-api/internal/model"
	"github.com/jwalitptl/neuroscan-api/internal/service/auth"
	"github.com/jwalitptl/neuroscan-api/pkg/httputil"
)

type Handler struct {
	svc *auth.Service
}

func NewHandler(svc *auth.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/signup/patient", h.SignupPatient)
	r.POST("/signup/doctor", h.SignupDoctor)
	r.POST("/verify", h.Verify)
	r.POST("/signin", h.Signin)
	r.POST("/resend-code", h.ResendCode)
}

func (h *Handler) SignupPatient(c *gin.Context) {
	var req model.PatientSignupRequest
	if !httputil.BindJSON(c, &req) {
		return
	}
	if err := h.svc.SignupPatient(c.Request.Context(), &req); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, "Signup successful", gin.H{"email": req.Email})
}

func (h *Handler) SignupDoctor(c *gin.Context) {
	var req model.DoctorSignupRequest
	if !httputil.BindJSON(c, &req) {
		return
	}
	if err := h.svc.SignupDoctor(c.Request.Context(), &req); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, "Signup successful", gin.H{"email": req.Email})
}

func (h *Handler) Verify(c *gin.Context) {
	var req model.VerifyRequest
	if !httputil.BindJSON(c, &req) {
		return
	}
	result, msg, err := h.svc.Verify(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, msg, result)
}

func (h *Handler) Signin(c *gin.Context) {
	var req model.SigninRequest
	if !httputil.BindJSON(c, &req) {
		return
	}
	resp, msg, err := h.svc.Signin(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, msg, resp)
}

func (h *Handler) ResendCode(c *gin.Context) {
	var req model.ResendCodeRequest
	if !httputil.BindJSON(c, &req) {
		return
	}
	if err := h.svc.ResendCode(c.Request.Context(), &req); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, "Code resent", nil)
}
