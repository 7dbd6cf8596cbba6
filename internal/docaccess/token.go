// Package docaccess issues and resolves scoped document access tokens. A
// token authorizes exactly one document in one access mode for a short
// window; it carries no session identity and is the only authorization
// artifact the retrieval endpoint accepts.
package docaccess

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"vendorhub.org/internal/auth"
	"vendorhub.org/internal/supplier"
)

// Mode determines response framing, not permission level: view streams
// inline, download triggers an attachment transfer.
type Mode string

const (
	ModeView     Mode = "view"
	ModeDownload Mode = "download"
)

const (
	accessTokenType = "document_access"

	downloadTTL = 15 * time.Minute
	viewTTL     = 30 * time.Minute
)

var (
	// ErrInvalidToken covers every verification failure without
	// distinguishing the cause.
	ErrInvalidToken = errors.New("docaccess: invalid token")

	ErrForbidden = errors.New("docaccess: forbidden")
	ErrNotFound  = errors.New("docaccess: not found")
)

// Claims is the self-contained claim set of a scoped access token.
// OwnerProfileID is set only for owner-initiated downloads and is re-checked
// against the document's current owner at resolution time.
type Claims struct {
	DocumentID     string `json:"document_id"`
	Mode           Mode   `json:"mode"`
	OwnerProfileID string `json:"owner_profile_id,omitempty"`
	TokenType      string `json:"token_type"`
	jwt.RegisteredClaims
}

// Issuer mints scoped access tokens.
type Issuer struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// IssuerOption configures Issuer.
type IssuerOption func(*Issuer)

// WithClock overrides the time source (tests).
func WithClock(fn func() time.Time) IssuerOption {
	return func(i *Issuer) {
		if fn != nil {
			i.now = fn
		}
	}
}

// WithIssuerName overrides the issuer claim.
func WithIssuerName(name string) IssuerOption {
	return func(i *Issuer) {
		if name = strings.TrimSpace(name); name != "" {
			i.issuer = name
		}
	}
}

// NewIssuer constructs a token issuer with an explicit signing secret.
func NewIssuer(secret string, opts ...IssuerOption) (*Issuer, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("docaccess: signing secret is required")
	}
	i := &Issuer{secret: []byte(secret), issuer: "vendorhub", now: time.Now}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// Issue mints a token for the document on behalf of the requester.
// Regular and supplier requesters must own the document through their
// profile and receive a download token; admin and reviewer requesters
// receive a view token without an ownership check.
func (i *Issuer) Issue(doc *supplier.Document, requester *auth.SessionClaims, requesterProfileID string) (string, time.Time, error) {
	if doc == nil || requester == nil {
		return "", time.Time{}, fmt.Errorf("%w: document and requester are required", ErrForbidden)
	}

	var (
		mode    Mode
		ttl     time.Duration
		ownerID string
	)
	switch requester.Role {
	case auth.RoleRegular, auth.RoleSupplier:
		if requesterProfileID == "" || doc.ProfileID != requesterProfileID {
			return "", time.Time{}, fmt.Errorf("%w: document belongs to another profile", ErrForbidden)
		}
		mode = ModeDownload
		ttl = downloadTTL
		ownerID = requesterProfileID
	case auth.RoleAdmin, auth.RoleReviewer:
		mode = ModeView
		ttl = viewTTL
	default:
		return "", time.Time{}, fmt.Errorf("%w: role %s cannot access documents", ErrForbidden, requester.Role)
	}

	now := i.now().UTC()
	expiresAt := now.Add(ttl)
	claims := Claims{
		DocumentID:     doc.ID,
		Mode:           mode,
		OwnerProfileID: ownerID,
		TokenType:      accessTokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Verify validates signature, expiry and claim shape; every failure cause
// collapses into ErrInvalidToken.
func (i *Issuer) Verify(token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return i.secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return i.now().UTC() }))
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.TokenType != accessTokenType {
		return nil, ErrInvalidToken
	}
	if claims.Issuer != i.issuer {
		return nil, ErrInvalidToken
	}
	if strings.TrimSpace(claims.DocumentID) == "" {
		return nil, ErrInvalidToken
	}
	if claims.Mode != ModeView && claims.Mode != ModeDownload {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
