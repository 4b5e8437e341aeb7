package chat

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/neuroscan-api/internal/chat"
	"github.com/jwalitptl/neuroscan-api/internal/middleware"
	"github.com/jwalitptl/neuroscan-api/internal/model"
	"github.com/jwalitptl/neuroscan-api/pkg/auth"
	apperrors "github.com/jwalitptl/neuroscan-api/pkg/errors"
	"github.com/jwalitptl/neuroscan-api/pkg/httputil"
)

type Handler struct {
	svc      *chat.Service
	tokens   *auth.TokenService
	upgrader websocket.Upgrader
}

// NewHandler accepts websocket upgrades from allowedOrigins. An empty list
// or "*" accepts any origin.
func NewHandler(svc *chat.Service, tokens *auth.TokenService, allowedOrigins []string) *Handler {
	origins := make(map[string]struct{}, len(allowedOrigins))
	anyOrigin := len(allowedOrigins) == 0
	for _, o := range allowedOrigins {
		if o == "*" {
			anyOrigin = true
		}
		origins[o] = struct{}{}
	}

	return &Handler{
		svc:    svc,
		tokens: tokens,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if anyOrigin || origin == "" {
					return true
				}
				_, ok := origins[origin]
				return ok
			},
		},
	}
}

func (h *Handler) RegisterRoutes(api *gin.RouterGroup, root gin.IRoutes, authMw *middleware.AuthMiddleware) {
	api.GET("/chat/history/:room", authMw.Authenticate(), h.History)
	root.GET("/ws", h.Connect)
}

func (h *Handler) History(c *gin.Context) {
	id, _ := middleware.IdentityFrom(c)
	msgs, err := h.svc.History(c.Request.Context(), id, c.Param("room"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, "", msgs)
}

// Connect validates ?token= before upgrading. A bad token gets a plain 401
// and no socket.
func (h *Handler) Connect(c *gin.Context) {
	claims, err := h.tokens.ValidateSession(c.Query("token"))
	if errors.Is(err, auth.ErrTokenExpired) {
		httputil.RespondWithError(c, apperrors.TokenExpired(err))
		return
	}
	if err != nil {
		httputil.RespondWithError(c, apperrors.Unauthenticated("invalid token", err))
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// The upgrader has already written the error response.
		log.Warn().Err(err).Str("email", claims.Email).Msg("Websocket upgrade failed")
		return
	}

	sess := h.svc.NewSession(model.Identity{
		Email: claims.Email,
		Name:  claims.Name,
		Role:  model.Role(claims.Type),
	})
	h.svc.Serve(c.Request.Context(), conn, sess)
}
