package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	DefaultSessionTTL = 24 * time.Hour
	DefaultShareTTL   = 7 * 24 * time.Hour

	// MinSecretLength is the shortest HMAC key accepted at startup.
	MinSecretLength = 32

	audienceSession = "session"
	audienceShare   = "share"
)

var (
	ErrTokenExpired   = errors.New("token expired")
	ErrTokenMalformed = errors.New("token malformed")
	ErrTokenSignature = errors.New("token signature invalid")
	ErrWeakSecret     = fmt.Errorf("jwt secret must be at least %d bytes", MinSecretLength)
)

// Identity is what a session token asserts about its bearer.
type Identity struct {
	Email    string
	Name     string
	Role     string
	Approved *bool
}

// SessionClaims is the signed payload of a session token. The role travels
// under "type" so existing clients keep working.
type SessionClaims struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Approved *bool  `json:"approved,omitempty"`
	jwt.RegisteredClaims
}

// ShareClaims grants read access to one record until it expires.
type ShareClaims struct {
	RecordID     int64  `json:"record_id"`
	PatientEmail string `json:"patient_email"`
	jwt.RegisteredClaims
}

type Config struct {
	Secret     string
	Issuer     string
	SessionTTL time.Duration
	ShareTTL   time.Duration
}

type Option func(*TokenService)

// WithClock replaces time.Now for issuing and validating.
func WithClock(now func() time.Time) Option {
	return func(s *TokenService) {
		s.now = now
	}
}

// TokenService issues and validates HS256 tokens with a process-wide key.
type TokenService struct {
	secret     []byte
	issuer     string
	sessionTTL time.Duration
	shareTTL   time.Duration
	now        func() time.Time
}

func NewTokenService(cfg Config, opts ...Option) (*TokenService, error) {
	if len(cfg.Secret) < MinSecretLength {
		return nil, ErrWeakSecret
	}

	s := &TokenService{
		secret:     []byte(cfg.Secret),
		issuer:     cfg.Issuer,
		sessionTTL: cfg.SessionTTL,
		shareTTL:   cfg.ShareTTL,
		now:        time.Now,
	}
	if s.sessionTTL <= 0 {
		s.sessionTTL = DefaultSessionTTL
	}
	if s.shareTTL <= 0 {
		s.shareTTL = DefaultShareTTL
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *TokenService) SessionTTL() time.Duration { return s.sessionTTL }
func (s *TokenService) ShareTTL() time.Duration   { return s.shareTTL }

// IssueSession signs a session token with the configured TTL.
func (s *TokenService) IssueSession(id Identity) (string, error) {
	return s.IssueSessionFor(id, s.sessionTTL)
}

// IssueSessionFor signs a session token that expires after ttl.
func (s *TokenService) IssueSessionFor(id Identity, ttl time.Duration) (string, error) {
	if id.Email == "" || id.Role == "" {
		return "", fmt.Errorf("failed to issue session token: email and role are required")
	}

	claims := SessionClaims{
		Email:            id.Email,
		Name:             id.Name,
		Type:             id.Role,
		Approved:         id.Approved,
		RegisteredClaims: s.registered(audienceSession, ttl),
	}
	return s.sign(claims)
}

// IssueShare signs a share token for one record.
func (s *TokenService) IssueShare(recordID int64, patientEmail string) (string, error) {
	if recordID <= 0 || patientEmail == "" {
		return "", fmt.Errorf("failed to issue share token: record and patient are required")
	}

	claims := ShareClaims{
		RecordID:         recordID,
		PatientEmail:     patientEmail,
		RegisteredClaims: s.registered(audienceShare, s.shareTTL),
	}
	return s.sign(claims)
}

func (s *TokenService) ValidateSession(tokenString string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	if err := s.parse(tokenString, claims, audienceSession); err != nil {
		return nil, err
	}
	if claims.Email == "" || claims.Type == "" {
		return nil, ErrTokenMalformed
	}
	return claims, nil
}

func (s *TokenService) ValidateShare(tokenString string) (*ShareClaims, error) {
	claims := &ShareClaims{}
	if err := s.parse(tokenString, claims, audienceShare); err != nil {
		return nil, err
	}
	if claims.RecordID <= 0 || claims.PatientEmail == "" {
		return nil, ErrTokenMalformed
	}
	return claims, nil
}

func (s *TokenService) registered(audience string, ttl time.Duration) jwt.RegisteredClaims {
	now := s.now()
	return jwt.RegisteredClaims{
		Issuer:    s.issuer,
		Audience:  jwt.ClaimStrings{audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
}

func (s *TokenService) sign(claims jwt.Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func (s *TokenService) parse(tokenString string, claims jwt.Claims, audience string) error {
	if tokenString == "" {
		return ErrTokenMalformed
	}

	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (interface{}, error) {
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithAudience(audience),
		jwt.WithTimeFunc(s.now),
	)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrTokenSignature
	default:
		return ErrTokenMalformed
	}
}
