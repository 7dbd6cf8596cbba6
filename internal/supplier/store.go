package supplier

import "context"

// Store describes supplier persistence. Every method that mutates more than
// one record is a single atomic transition: the precondition check and the
// writes happen inside one isolated transaction, never as a read-then-write
// pair. Implementations report precondition failures with the sentinel
// errors of this package.
type Store interface {
	// CreateApplication creates a pending profile with its documents and
	// sets the owning identity's applicant flag, all in one transaction.
	// Fails with ErrConflict when the flag is already set and with
	// ErrNotFound when the identity does not exist.
	CreateApplication(ctx context.Context, profile *Profile, docs []*Document) error

	// ApproveProfile moves a pending profile to approved and promotes the
	// owning identity's role to supplier. Fails with ErrInvalidTransition
	// unless the current status is pending.
	ApproveProfile(ctx context.Context, profileID string) (*Profile, error)

	// RejectProfile moves a pending profile to rejected and stores the
	// reason. Fails with ErrInvalidTransition unless the current status is
	// pending.
	RejectProfile(ctx context.Context, profileID, reason string) (*Profile, error)

	// DeleteProfileByIdentity removes the profile and its documents and
	// clears the identity's applicant flag. Fails with ErrNotFound when no
	// profile exists. The identity's role is not demoted.
	DeleteProfileByIdentity(ctx context.Context, identityID string) error

	// UpdateBusiness replaces business fields of an approved profile.
	// Fails with ErrForbidden when the profile is not approved.
	UpdateBusiness(ctx context.Context, identityID string, upd BusinessUpdate) (*Profile, error)

	ProfileByID(ctx context.Context, profileID string) (*Profile, error)
	ProfileByIdentity(ctx context.Context, identityID string) (*Profile, error)
	ListPending(ctx context.Context, limit int) ([]*Profile, error)

	DocumentByID(ctx context.Context, documentID string) (*Document, error)
	DocumentsByProfile(ctx context.Context, profileID string) ([]*Document, error)
}
