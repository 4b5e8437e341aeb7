package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestService(t *testing.T) (*TokenService, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	svc, err := NewTokenService(Config{Secret: testSecret, Issuer: "neuroscan"}, WithClock(clock.Now))
	require.NoError(t, err)
	return svc, clock
}

func TestNewTokenService_RejectsWeakSecret(t *testing.T) {
	_, err := NewTokenService(Config{Secret: ""})
	assert.ErrorIs(t, err, ErrWeakSecret)

	_, err = NewTokenService(Config{Secret: "short"})
	assert.ErrorIs(t, err, ErrWeakSecret)
}

func TestSessionRoundTrip(t *testing.T) {
	svc, _ := newTestService(t)
	approved := true

	token, err := svc.IssueSession(Identity{Email: "doc@clinic.org", Name: "Dr. Who", Role: "doctor", Approved: &approved})
	require.NoError(t, err)

	claims, err := svc.ValidateSession(token)
	require.NoError(t, err)
	assert.Equal(t, "doc@clinic.org", claims.Email)
	assert.Equal(t, "Dr. Who", claims.Name)
	assert.Equal(t, "doctor", claims.Type)
	require.NotNil(t, claims.Approved)
	assert.True(t, *claims.Approved)
	assert.Equal(t, svc.now().Add(DefaultSessionTTL).Unix(), claims.ExpiresAt.Unix())
}

func TestSessionExpiresAfterClockAdvance(t *testing.T) {
	svc, clock := newTestService(t)

	token, err := svc.IssueSessionFor(Identity{Email: "p@x.io", Role: "patient"}, 0)
	require.NoError(t, err)

	clock.Advance(time.Second)

	_, err = svc.ValidateSession(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestSessionValidJustBeforeExpiry(t *testing.T) {
	svc, clock := newTestService(t)

	token, err := svc.IssueSession(Identity{Email: "p@x.io", Role: "patient"})
	require.NoError(t, err)

	clock.Advance(DefaultSessionTTL - time.Second)
	_, err = svc.ValidateSession(token)
	assert.NoError(t, err)

	clock.Advance(2 * time.Second)
	_, err = svc.ValidateSession(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestValidateSession_TamperedPayload(t *testing.T) {
	svc, _ := newTestService(t)

	token, err := svc.IssueSession(Identity{Email: "p@x.io", Role: "patient"})
	require.NoError(t, err)

	other, err := svc.IssueSession(Identity{Email: "admin@x.io", Role: "admin"})
	require.NoError(t, err)

	// Splice the admin payload onto the patient signature.
	parts := strings.Split(token, ".")
	otherParts := strings.Split(other, ".")
	forged := parts[0] + "." + otherParts[1] + "." + parts[2]

	_, err = svc.ValidateSession(forged)
	assert.ErrorIs(t, err, ErrTokenSignature)
}

func TestValidateSession_WrongKey(t *testing.T) {
	svc, clock := newTestService(t)
	other, err := NewTokenService(Config{Secret: strings.Repeat("z", 32)}, WithClock(clock.Now))
	require.NoError(t, err)

	token, err := other.IssueSession(Identity{Email: "p@x.io", Role: "patient"})
	require.NoError(t, err)

	_, err = svc.ValidateSession(token)
	assert.ErrorIs(t, err, ErrTokenSignature)
}

func TestValidateSession_RejectsNoneAlgorithm(t *testing.T) {
	svc, clock := newTestService(t)

	claims := SessionClaims{
		Email: "p@x.io",
		Type:  "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			Audience:  jwt.ClaimStrings{audienceSession},
			ExpiresAt: jwt.NewNumericDate(clock.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = svc.ValidateSession(token)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrTokenExpired)
}

func TestValidateSession_Garbage(t *testing.T) {
	svc, _ := newTestService(t)

	for _, token := range []string{"", "abc", "a.b.c", "Bearer x.y.z"} {
		_, err := svc.ValidateSession(token)
		assert.ErrorIs(t, err, ErrTokenMalformed, token)
	}
}

func TestShareTokenIsNotASession(t *testing.T) {
	svc, _ := newTestService(t)

	share, err := svc.IssueShare(42, "p@x.io")
	require.NoError(t, err)

	_, err = svc.ValidateSession(share)
	assert.ErrorIs(t, err, ErrTokenMalformed)

	session, err := svc.IssueSession(Identity{Email: "p@x.io", Role: "patient"})
	require.NoError(t, err)

	_, err = svc.ValidateShare(session)
	assert.ErrorIs(t, err, ErrTokenMalformed)
}

func TestShareTokenLifetime(t *testing.T) {
	svc, clock := newTestService(t)

	token, err := svc.IssueShare(42, "p@x.io")
	require.NoError(t, err)

	claims, err := svc.ValidateShare(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.RecordID)
	assert.Equal(t, "p@x.io", claims.PatientEmail)

	clock.Advance(6 * 24 * time.Hour)
	_, err = svc.ValidateShare(token)
	assert.NoError(t, err)

	clock.Advance(24*time.Hour + time.Second)
	_, err = svc.ValidateShare(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestIssueRequiresIdentity(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.IssueSession(Identity{Role: "patient"})
	assert.Error(t, err)

	_, err = svc.IssueShare(0, "p@x.io")
	assert.Error(t, err)
}
