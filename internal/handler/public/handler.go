package public

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/neuroscan-api/internal/service/patient"
	"github.com/jwalitptl/neuroscan-api/pkg/httputil"
)

// Handler serves record reads authorized by a share token alone.
type Handler struct {
	svc *patient.Service
}

func NewHandler(svc *patient.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/public/record/:token", h.GetSharedRecord)
}

func (h *Handler) GetSharedRecord(c *gin.Context) {
	rec, err := h.svc.PublicRecord(c.Request.Context(), c.Param("token"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, "", rec)
}
