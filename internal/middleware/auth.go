package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/neuroscan-api/internal/model"
	"github.com/jwalitptl/neuroscan-api/internal/repository"
	"github.com/jwalitptl/neuroscan-api/pkg/auth"
	apperrors "github.com/jwalitptl/neuroscan-api/pkg/errors"
	"github.com/jwalitptl/neuroscan-api/pkg/httputil"
	"github.com/jwalitptl/neuroscan-api/pkg/metrics"
)

const ContextIdentity = "identity"

// ApprovalChecker reads the current approval flag of a doctor.
type ApprovalChecker interface {
	IsDoctorApproved(ctx context.Context, email string) (bool, error)
}

type AuthMiddleware struct {
	tokens    *auth.TokenService
	approvals ApprovalChecker
	metrics   *metrics.Metrics
}

func NewAuthMiddleware(tokens *auth.TokenService, approvals ApprovalChecker, m *metrics.Metrics) *AuthMiddleware {
	if m == nil {
		m = metrics.NewNop()
	}
	return &AuthMiddleware{
		tokens:    tokens,
		approvals: approvals,
		metrics:   m,
	}
}

// Authenticate accepts any valid session token.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return m.RequireRole("", false)
}

// RequireRole accepts session tokens of the given role. An empty role accepts
// every role. With requireApproval a doctor's approval is re-read from the
// store on every request, so a revoked approval takes effect immediately.
func (m *AuthMiddleware) RequireRole(role model.Role, requireApproval bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		identity, err := m.Authorize(c.Request, role, requireApproval)
		if err != nil {
			httputil.RespondWithError(c, err)
			return
		}

		c.Set(ContextIdentity, identity)
		c.Next()
	}
}

// Authorize resolves the bearer token of r and applies the role and approval
// policy. Routes outside RequireRole use it so both paths share one check.
// Only doctors are subject to the approval check.
func (m *AuthMiddleware) Authorize(r *http.Request, role model.Role, requireApproval bool) (model.Identity, error) {
	token, err := BearerToken(r)
	if err != nil {
		return model.Identity{}, m.deny("header", err)
	}

	claims, err := m.tokens.ValidateSession(token)
	switch {
	case errors.Is(err, auth.ErrTokenExpired):
		return model.Identity{}, m.deny("expired", apperrors.TokenExpired(err))
	case err != nil:
		return model.Identity{}, m.deny("invalid", apperrors.Unauthenticated("invalid token", err))
	}

	identity := model.Identity{Email: claims.Email, Name: claims.Name, Role: model.Role(claims.Type)}
	if role != "" && identity.Role != role {
		return model.Identity{}, m.deny("role", apperrors.Forbidden(fmt.Sprintf("%s access required", role)))
	}

	if requireApproval && identity.Role == model.RoleDoctor {
		approved, err := m.approvals.IsDoctorApproved(r.Context(), identity.Email)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return model.Identity{}, repository.Classify(err)
		}
		if !approved {
			return model.Identity{}, m.deny("unapproved", apperrors.Forbidden("doctor not approved"))
		}
	}
	return identity, nil
}

func (m *AuthMiddleware) deny(reason string, err error) error {
	m.metrics.AuthFailures.WithLabelValues(reason).Inc()
	return err
}

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header.
func BearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", apperrors.Unauthenticated("missing authorization header", nil)
	}
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", apperrors.Unauthenticated("invalid authorization format", nil)
	}
	return parts[1], nil
}

// IdentityFrom returns the caller set by RequireRole.
func IdentityFrom(c *gin.Context) (model.Identity, bool) {
	v, ok := c.Get(ContextIdentity)
	if !ok {
		return model.Identity{}, false
	}
	id, ok := v.(model.Identity)
	return id, ok
}
