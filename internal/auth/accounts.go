package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"vendorhub.org/internal/ids"
)

// Accounts handles registration and credential verification.
type Accounts struct {
	store IdentityStore
	now   func() time.Time
}

// NewAccounts constructs the account service.
func NewAccounts(store IdentityStore) (*Accounts, error) {
	if store == nil {
		return nil, errors.New("auth: identity store is required")
	}
	return &Accounts{store: store, now: time.Now}, nil
}

// Register creates a regular identity with a hashed password. Duplicate
// email fails with ErrConflict.
func (a *Accounts) Register(ctx context.Context, email, password string) (*Identity, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	hash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInput, err)
	}
	now := a.now().UTC()
	ident := &Identity{
		ID:           ids.New(),
		Email:        email,
		PasswordHash: hash,
		Role:         RoleRegular,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := a.store.CreateIdentity(ctx, ident); err != nil {
		return nil, err
	}
	return ident, nil
}

// Login verifies credentials. Unknown email and wrong password report the
// same ErrUnauthorized so the response does not confirm account existence.
func (a *Accounts) Login(ctx context.Context, email, password string) (*Identity, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, ErrUnauthorized
	}
	if password == "" {
		return nil, ErrUnauthorized
	}
	ident, err := a.store.IdentityByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	if err := VerifyPassword(ident.PasswordHash, password); err != nil {
		return nil, ErrUnauthorized
	}
	return ident, nil
}

// Identity loads a fresh identity record; used where data freshness matters,
// never for role gating.
func (a *Accounts) Identity(ctx context.Context, id string) (*Identity, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: identity id is required", ErrInvalidInput)
	}
	return a.store.IdentityByID(ctx, id)
}

func normalizeEmail(email string) (string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || !strings.Contains(email, "@") {
		return "", fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	return email, nil
}
