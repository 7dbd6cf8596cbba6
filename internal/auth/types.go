package auth

import (
	"context"
	"strings"
	"time"
)

// Role is the single coarse-grained role carried by an identity.
type Role string

const (
	RoleRegular  Role = "regular"
	RoleSupplier Role = "supplier"
	RoleAdmin    Role = "admin"
	RoleReviewer Role = "reviewer"
)

// ParseRole normalizes and validates a role string.
func ParseRole(raw string) (Role, bool) {
	switch Role(strings.TrimSpace(strings.ToLower(raw))) {
	case RoleRegular:
		return RoleRegular, true
	case RoleSupplier:
		return RoleSupplier, true
	case RoleAdmin:
		return RoleAdmin, true
	case RoleReviewer:
		return RoleReviewer, true
	default:
		return "", false
	}
}

// Identity represents an authenticated principal. Role and SupplierApplicant
// are mutated only through supplier lifecycle transitions.
type Identity struct {
	ID                string    `json:"id"`
	Email             string    `json:"email"`
	PasswordHash      string    `json:"-"`
	Role              Role      `json:"role"`
	SupplierApplicant bool      `json:"supplier_applicant"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// IdentityStore describes identity persistence required by the auth
// subsystem. Mutations of Role and SupplierApplicant are deliberately absent;
// those happen inside lifecycle transitions owned by the supplier store.
type IdentityStore interface {
	CreateIdentity(ctx context.Context, ident *Identity) error
	IdentityByID(ctx context.Context, id string) (*Identity, error)
	IdentityByEmail(ctx context.Context, email string) (*Identity, error)
}
