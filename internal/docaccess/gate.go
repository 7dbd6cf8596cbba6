package docaccess

import (
	"context"
	"errors"
	"fmt"

	"vendorhub.org/internal/supplier"
)

// DocumentGetter is the slice of supplier persistence the gate needs.
type DocumentGetter interface {
	DocumentByID(ctx context.Context, documentID string) (*supplier.Document, error)
}

// Gate authorizes a single file transfer from a scoped access token. The
// token is the authorization; the gate never consults session state. It does
// re-check that the document still exists and, for owner-issued tokens, that
// ownership has not changed since issuance.
type Gate struct {
	tokens *Issuer
	docs   DocumentGetter
}

// NewGate constructs the gate.
func NewGate(tokens *Issuer, docs DocumentGetter) (*Gate, error) {
	if tokens == nil {
		return nil, errors.New("docaccess: token issuer is required")
	}
	if docs == nil {
		return nil, errors.New("docaccess: document store is required")
	}
	return &Gate{tokens: tokens, docs: docs}, nil
}

// Resolve verifies the token and authorizes one transfer of the referenced
// document. A document deleted after issuance is a normal race and reports
// ErrNotFound; an ownership mismatch reports ErrForbidden.
func (g *Gate) Resolve(ctx context.Context, token string) (*supplier.Document, Mode, error) {
	claims, err := g.tokens.Verify(token)
	if err != nil {
		return nil, "", err
	}
	doc, err := g.docs.DocumentByID(ctx, claims.DocumentID)
	if err != nil {
		if errors.Is(err, supplier.ErrNotFound) {
			return nil, "", ErrNotFound
		}
		return nil, "", err
	}
	if claims.OwnerProfileID != "" && doc.ProfileID != claims.OwnerProfileID {
		return nil, "", fmt.Errorf("%w: document owner changed since issuance", ErrForbidden)
	}
	return doc, claims.Mode, nil
}
