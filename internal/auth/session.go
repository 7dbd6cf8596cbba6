package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	sessionTokenType  = "session"
	defaultIssuer     = "vendorhub"
	defaultSessionTTL = 24 * time.Hour
)

// SessionClaims is the self-contained claim set of a session token. The role
// embedded at issue time is the single source of truth for role gating during
// one request; handlers re-fetch the identity only when they need fresh data.
type SessionClaims struct {
	Email     string `json:"email"`
	Role      Role   `json:"role"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// Sessions issues and verifies signed session tokens.
type Sessions struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// SessionsOption configures Sessions.
type SessionsOption func(*Sessions)

// WithSessionTTL overrides the default 24h token lifetime.
func WithSessionTTL(ttl time.Duration) SessionsOption {
	return func(s *Sessions) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithIssuer overrides the issuer claim.
func WithIssuer(issuer string) SessionsOption {
	return func(s *Sessions) {
		if issuer = strings.TrimSpace(issuer); issuer != "" {
			s.issuer = issuer
		}
	}
}

// WithClock overrides the time source (tests).
func WithClock(fn func() time.Time) SessionsOption {
	return func(s *Sessions) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewSessions constructs a session token service. The signing secret is an
// explicit dependency; there is no ambient configuration.
func NewSessions(secret string, opts ...SessionsOption) (*Sessions, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("auth: signing secret is required")
	}
	s := &Sessions{
		secret: []byte(secret),
		issuer: defaultIssuer,
		ttl:    defaultSessionTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// TTL returns the configured session lifetime.
func (s *Sessions) TTL() time.Duration { return s.ttl }

// Issue signs a session token for the identity. Pure signing operation, no
// side effects.
func (s *Sessions) Issue(ident *Identity) (string, time.Time, error) {
	if ident == nil || strings.TrimSpace(ident.ID) == "" {
		return "", time.Time{}, errors.New("auth: identity is required")
	}
	now := s.now().UTC()
	expiresAt := now.Add(s.ttl)
	claims := SessionClaims{
		Email:     ident.Email,
		Role:      ident.Role,
		TokenType: sessionTokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   ident.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Verify validates signature, expiry and claim shape. All failure causes
// collapse into ErrInvalidToken.
func (s *Sessions) Verify(token string) (*SessionClaims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(token, &SessionClaims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return s.now().UTC() }))
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*SessionClaims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.TokenType != sessionTokenType {
		return nil, ErrInvalidToken
	}
	if claims.Issuer != s.issuer {
		return nil, ErrInvalidToken
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrInvalidToken
	}
	if _, ok := ParseRole(string(claims.Role)); !ok {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
