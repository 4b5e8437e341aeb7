package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/neuroscan-api/internal/model"
	"github.com/jwalitptl/neuroscan-api/internal/repository"
	"github.com/jwalitptl/neuroscan-api/pkg/auth"
	"github.com/jwalitptl/neuroscan-api/pkg/httputil"
	"github.com/jwalitptl/neuroscan-api/pkg/metrics"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type approvals map[string]bool

func (a approvals) IsDoctorApproved(_ context.Context, email string) (bool, error) {
	if email == "busy@clinic.io" {
		return false, repository.ErrStoreBusy
	}
	approved, ok := a[email]
	if !ok {
		return false, repository.ErrNotFound
	}
	return approved, nil
}

type authFixture struct {
	tokens  *auth.TokenService
	now     time.Time
	router  *gin.Engine
	metrics *metrics.Metrics
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	f := &authFixture{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC), metrics: metrics.NewNop()}
	tokens, err := auth.NewTokenService(auth.Config{Secret: strings.Repeat("k", 32)},
		auth.WithClock(func() time.Time { return f.now }))
	require.NoError(t, err)
	f.tokens = tokens

	m := NewAuthMiddleware(tokens, approvals{"ok@clinic.io": true, "new@clinic.io": false}, f.metrics)
	echo := func(c *gin.Context) {
		id, ok := IdentityFrom(c)
		if !ok {
			c.Status(http.StatusTeapot)
			return
		}
		httputil.RespondWithSuccess(c, "ok", id)
	}

	f.router = gin.New()
	f.router.GET("/any", m.Authenticate(), echo)
	f.router.GET("/patient", m.RequireRole(model.RolePatient, false), echo)
	f.router.GET("/doctor", m.RequireRole(model.RoleDoctor, true), echo)
	f.router.OPTIONS("/doctor", m.RequireRole(model.RoleDoctor, true), echo)
	f.router.GET("/download", func(c *gin.Context) {
		id, err := m.Authorize(c.Request, "", true)
		if err != nil {
			httputil.RespondWithError(c, err)
			return
		}
		httputil.RespondWithSuccess(c, "ok", id)
	})
	return f
}

func (f *authFixture) token(t *testing.T, email string, role model.Role) string {
	t.Helper()
	tok, err := f.tokens.IssueSession(auth.Identity{Email: email, Role: string(role)})
	require.NoError(t, err)
	return tok
}

func (f *authFixture) do(method, path, header string) (int, httputil.Response) {
	req := httptest.NewRequest(method, path, nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	var body httputil.Response
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return w.Code, body
}

func TestRequireRole(t *testing.T) {
	f := newAuthFixture(t)
	patient := f.token(t, "p@x.io", model.RolePatient)

	cases := []struct {
		name   string
		path   string
		header string
		status int
		msg    string
	}{
		{"missing header", "/any", "", http.StatusUnauthorized, "missing authorization header"},
		{"garbled header", "/any", "Token abc", http.StatusUnauthorized, "invalid authorization format"},
		{"invalid token", "/any", "Bearer abc", http.StatusUnauthorized, "invalid token"},
		{"any role", "/any", "Bearer " + patient, http.StatusOK, "ok"},
		{"matching role", "/patient", "Bearer " + patient, http.StatusOK, "ok"},
		{"wrong role", "/doctor", "Bearer " + patient, http.StatusForbidden, "doctor access required"},
		{"approved doctor", "/doctor", "Bearer " + f.token(t, "ok@clinic.io", model.RoleDoctor), http.StatusOK, "ok"},
		{"unapproved doctor", "/doctor", "Bearer " + f.token(t, "new@clinic.io", model.RoleDoctor), http.StatusForbidden, "doctor not approved"},
		{"deleted doctor", "/doctor", "Bearer " + f.token(t, "gone@clinic.io", model.RoleDoctor), http.StatusForbidden, "doctor not approved"},
		{"store busy", "/doctor", "Bearer " + f.token(t, "busy@clinic.io", model.RoleDoctor), http.StatusServiceUnavailable, "store busy, retry later"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, body := f.do(http.MethodGet, tc.path, tc.header)
			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.msg, body.Message)
		})
	}

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.AuthFailures.WithLabelValues("role")))
}

func TestAuthorizeOutsideMiddleware(t *testing.T) {
	f := newAuthFixture(t)

	cases := []struct {
		name   string
		header string
		status int
		msg    string
	}{
		{"patient skips approval", "Bearer " + f.token(t, "p@x.io", model.RolePatient), http.StatusOK, "ok"},
		{"approved doctor", "Bearer " + f.token(t, "ok@clinic.io", model.RoleDoctor), http.StatusOK, "ok"},
		{"revoked doctor", "Bearer " + f.token(t, "new@clinic.io", model.RoleDoctor), http.StatusForbidden, "doctor not approved"},
		{"deleted doctor", "Bearer " + f.token(t, "gone@clinic.io", model.RoleDoctor), http.StatusForbidden, "doctor not approved"},
		{"missing header", "", http.StatusUnauthorized, "missing authorization header"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, body := f.do(http.MethodGet, "/download", tc.header)
			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.msg, body.Message)
		})
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.AuthFailures.WithLabelValues("unapproved")))
}

func TestRequireRoleExpiredToken(t *testing.T) {
	f := newAuthFixture(t)
	tok := f.token(t, "p@x.io", model.RolePatient)

	f.now = f.now.Add(auth.DefaultSessionTTL + time.Second)
	status, body := f.do(http.MethodGet, "/patient", "Bearer "+tok)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "token expired", body.Message)
}

func TestRequireRolePassesPreflight(t *testing.T) {
	f := newAuthFixture(t)
	status, _ := f.do(http.MethodOptions, "/doctor", "")
	assert.Equal(t, http.StatusNoContent, status)
}

func TestRateLimitPerClient(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 0.001, Burst: 2})
	r := gin.New()
	r.GET("/", rl.RateLimit(), func(c *gin.Context) { c.Status(http.StatusOK) })

	hit := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = ip + ":1234"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, hit("10.0.0.1"))
	assert.Equal(t, http.StatusOK, hit("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, hit("10.0.0.1"))
	assert.Equal(t, http.StatusOK, hit("10.0.0.2"))
}

func TestTimeoutSkipsWebsocket(t *testing.T) {
	r := gin.New()
	r.Use(Timeout(TimeoutConfig{Duration: time.Minute, SkipPrefixes: []string{"/ws"}}))
	deadline := func(c *gin.Context) {
		_, ok := c.Request.Context().Deadline()
		c.JSON(http.StatusOK, gin.H{"deadline": ok})
	}
	r.GET("/ws", deadline)
	r.GET("/api", deadline)

	for path, want := range map[string]string{"/ws": `{"deadline":false}`, "/api": `{"deadline":true}`} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.JSONEq(t, want, w.Body.String(), path)
	}
}

func TestSizeLimit(t *testing.T) {
	r := gin.New()
	r.Use(SizeLimit(SizeLimitConfig{MaxBodySize: 8, MaxHeaderSize: 1 << 10}))
	r.POST("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("0123456789")))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("small")))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRecoveryAndErrorHandler(t *testing.T) {
	r := gin.New()
	r.Use(Recovery(), RequestID(), ErrorHandler())
	r.GET("/panic", func(c *gin.Context) { panic("boom") })
	r.GET("/attached", func(c *gin.Context) { _ = c.Error(errors.New("db exploded")) })

	for _, path := range []string{"/panic", "/attached"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusInternalServerError, w.Code, path)
		assert.Contains(t, w.Body.String(), "internal server error", path)
		assert.NotContains(t, w.Body.String(), "exploded", path)
	}
}

func TestErrorHandlerLogsCanceledAtDebug(t *testing.T) {
	var logs bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&logs)
	t.Cleanup(func() { log.Logger = prev })

	r := gin.New()
	r.Use(ErrorHandler())
	r.GET("/gone", func(c *gin.Context) {
		httputil.RespondWithError(c, repository.Classify(fmt.Errorf("failed to list records: %w", context.Canceled)))
	})
	r.GET("/bare", func(c *gin.Context) { _ = c.Error(context.Canceled) })

	for _, path := range []string{"/gone", "/bare"} {
		logs.Reset()
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, 499, w.Code, path)
		assert.Contains(t, logs.String(), `"level":"debug"`, path)
		assert.NotContains(t, logs.String(), `"level":"error"`, path)
	}
}

func TestRequestIDEchoesHeader(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(ContextRequestID)) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderXRequestID, "abc-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Body.String())
	assert.Equal(t, "abc-123", w.Header().Get(HeaderXRequestID))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Len(t, w.Body.String(), 36)
}

func TestSecurityHeadersNoStoreOnAPI(t *testing.T) {
	r := gin.New()
	r.Use(SecurityHeaders(DefaultSecurityConfig()))
	r.GET("/api/patient/records", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/files/profiles/a.png", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/patient/records", nil))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/files/profiles/a.png", nil))
	assert.Empty(t, w.Header().Get("Cache-Control"))
	assert.Contains(t, w.Header().Get("Strict-Transport-Security"), "max-age=31536000")
}
