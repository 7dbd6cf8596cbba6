package supplier

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"vendorhub.org/internal/auth"
	"vendorhub.org/internal/ids"
	"vendorhub.org/internal/obs"
)

const (
	// MaxDocuments bounds the files accepted with one application.
	MaxDocuments = 3
	// MaxDocumentBytes is the per-file size ceiling.
	MaxDocumentBytes = 5 << 20
	// AcceptedContentType is the single accepted document MIME type.
	AcceptedContentType = "application/pdf"
)

// Notifier receives lifecycle notifications. Enqueueing must never block and
// its failures must never surface as transition failures.
type Notifier interface {
	SupplierApproved(email, profileID string)
	SupplierRejected(email, profileID, reason string)
}

// BlobRemover deletes stored file blobs when a profile is deleted.
type BlobRemover interface {
	Remove(location string) error
}

// Service owns the supplier application state machine. All record mutations
// of profiles, documents, identity role and applicant flag go through the
// named operations below; no other code path writes them.
type Service struct {
	store      Store
	identities auth.IdentityStore
	notifier   Notifier
	blobs      BlobRemover
	now        func() time.Time
}

// ServiceOption configures Service.
type ServiceOption func(*Service)

// WithNotifier wires the notification dispatcher.
func WithNotifier(n Notifier) ServiceOption {
	return func(s *Service) { s.notifier = n }
}

// WithBlobRemover wires file blob cleanup for profile deletion.
func WithBlobRemover(r BlobRemover) ServiceOption {
	return func(s *Service) { s.blobs = r }
}

// WithClock overrides the time source (tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs the lifecycle manager.
func NewService(store Store, identities auth.IdentityStore, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("supplier: store is required")
	}
	if identities == nil {
		return nil, errors.New("supplier: identity store is required")
	}
	s := &Service{store: store, identities: identities, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Apply submits a supplier application: creates the pending profile, its
// documents, and sets the applicant flag in one atomic unit. A concurrent
// duplicate fails with ErrConflict inside the store transaction.
func (s *Service) Apply(ctx context.Context, identityID string, uploads []Upload) (*Profile, error) {
	identityID = strings.TrimSpace(identityID)
	if identityID == "" {
		return nil, fmt.Errorf("%w: identity id is required", ErrInvalidInput)
	}
	if len(uploads) == 0 || len(uploads) > MaxDocuments {
		return nil, fmt.Errorf("%w: between 1 and %d documents are required", ErrInvalidInput, MaxDocuments)
	}
	for _, up := range uploads {
		if strings.TrimSpace(up.FileName) == "" || strings.TrimSpace(up.Location) == "" {
			return nil, fmt.Errorf("%w: document name and location are required", ErrInvalidInput)
		}
		if up.ContentType != AcceptedContentType {
			return nil, fmt.Errorf("%w: unsupported content type %s", ErrInvalidInput, up.ContentType)
		}
		if up.SizeBytes <= 0 || up.SizeBytes > MaxDocumentBytes {
			return nil, fmt.Errorf("%w: document size out of bounds", ErrInvalidInput)
		}
	}

	now := s.now().UTC()
	profile := &Profile{
		ID:         ids.New(),
		IdentityID: identityID,
		Status:     StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	docs := make([]*Document, 0, len(uploads))
	for _, up := range uploads {
		docs = append(docs, &Document{
			ID:          ids.New(),
			ProfileID:   profile.ID,
			FileName:    up.FileName,
			Location:    up.Location,
			ContentType: up.ContentType,
			SizeBytes:   up.SizeBytes,
			CreatedAt:   now,
		})
	}

	if err := s.store.CreateApplication(ctx, profile, docs); err != nil {
		obs.ObserveTransition("apply", "failure")
		return nil, err
	}
	obs.ObserveTransition("apply", "success")
	return profile, nil
}

// Approve moves a pending profile to approved and promotes the owner's role
// to supplier. Approving a non-pending profile fails with
// ErrInvalidTransition rather than being a silent no-op.
func (s *Service) Approve(ctx context.Context, profileID string) (*Profile, error) {
	profileID = strings.TrimSpace(profileID)
	if profileID == "" {
		return nil, fmt.Errorf("%w: profile id is required", ErrInvalidInput)
	}
	profile, err := s.store.ApproveProfile(ctx, profileID)
	if err != nil {
		obs.ObserveTransition("approve", "failure")
		return nil, err
	}
	obs.ObserveTransition("approve", "success")
	s.notifyOwner(ctx, profile, func(email string) {
		s.notifier.SupplierApproved(email, profile.ID)
	})
	return profile, nil
}

// Reject moves a pending profile to rejected with a mandatory reason. The
// owner's role is deliberately not reset.
func (s *Service) Reject(ctx context.Context, profileID, reason string) (*Profile, error) {
	profileID = strings.TrimSpace(profileID)
	if profileID == "" {
		return nil, fmt.Errorf("%w: profile id is required", ErrInvalidInput)
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, fmt.Errorf("%w: rejection reason is required", ErrInvalidInput)
	}
	profile, err := s.store.RejectProfile(ctx, profileID, reason)
	if err != nil {
		obs.ObserveTransition("reject", "failure")
		return nil, err
	}
	obs.ObserveTransition("reject", "success")
	s.notifyOwner(ctx, profile, func(email string) {
		s.notifier.SupplierRejected(email, profile.ID, reason)
	})
	return profile, nil
}

// DeleteProfile removes the identity's profile with its documents and clears
// the applicant flag. Stored file blobs are removed best-effort after the
// transaction commits.
func (s *Service) DeleteProfile(ctx context.Context, identityID string) error {
	identityID = strings.TrimSpace(identityID)
	if identityID == "" {
		return fmt.Errorf("%w: identity id is required", ErrInvalidInput)
	}
	profile, err := s.store.ProfileByIdentity(ctx, identityID)
	if err != nil {
		return err
	}
	docs, err := s.store.DocumentsByProfile(ctx, profile.ID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteProfileByIdentity(ctx, identityID); err != nil {
		obs.ObserveTransition("delete", "failure")
		return err
	}
	obs.ObserveTransition("delete", "success")
	if s.blobs != nil {
		for _, doc := range docs {
			if err := s.blobs.Remove(doc.Location); err != nil {
				obs.Error("document blob removal failed", map[string]any{
					"document_id": doc.ID,
					"error":       err.Error(),
				})
			}
		}
	}
	return nil
}

// UpdateBusiness replaces business fields; only approved profiles may be
// updated.
func (s *Service) UpdateBusiness(ctx context.Context, identityID string, upd BusinessUpdate) (*Profile, error) {
	identityID = strings.TrimSpace(identityID)
	if identityID == "" {
		return nil, fmt.Errorf("%w: identity id is required", ErrInvalidInput)
	}
	if upd.Name == nil && upd.Address == nil && upd.City == nil && upd.State == nil && upd.Zip == nil {
		return nil, fmt.Errorf("%w: no fields to update", ErrInvalidInput)
	}
	if upd.Name != nil && strings.TrimSpace(*upd.Name) == "" {
		return nil, fmt.Errorf("%w: business name cannot be empty", ErrInvalidInput)
	}
	return s.store.UpdateBusiness(ctx, identityID, upd)
}

// Profile loads the identity's profile together with its documents.
func (s *Service) Profile(ctx context.Context, identityID string) (*Profile, []*Document, error) {
	identityID = strings.TrimSpace(identityID)
	if identityID == "" {
		return nil, nil, fmt.Errorf("%w: identity id is required", ErrInvalidInput)
	}
	profile, err := s.store.ProfileByIdentity(ctx, identityID)
	if err != nil {
		return nil, nil, err
	}
	docs, err := s.store.DocumentsByProfile(ctx, profile.ID)
	if err != nil {
		return nil, nil, err
	}
	return profile, docs, nil
}

// PendingApplications lists profiles awaiting review.
func (s *Service) PendingApplications(ctx context.Context, limit int) ([]*Profile, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.store.ListPending(ctx, limit)
}

// Document loads a single submitted document.
func (s *Service) Document(ctx context.Context, documentID string) (*Document, error) {
	documentID = strings.TrimSpace(documentID)
	if documentID == "" {
		return nil, fmt.Errorf("%w: document id is required", ErrInvalidInput)
	}
	return s.store.DocumentByID(ctx, documentID)
}

// notifyOwner resolves the owning identity's email and runs the enqueue
// callback. Lookup or enqueue problems are logged, never propagated: a failed
// notification must not roll back a committed transition.
func (s *Service) notifyOwner(ctx context.Context, profile *Profile, enqueue func(email string)) {
	if s.notifier == nil {
		return
	}
	ident, err := s.identities.IdentityByID(ctx, profile.IdentityID)
	if err != nil {
		obs.Error("notification skipped, owner lookup failed", map[string]any{
			"profile_id": profile.ID,
			"error":      err.Error(),
		})
		return
	}
	enqueue(ident.Email)
}
