package supplier

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"vendorhub.org/internal/auth"
)

type recordingNotifier struct {
	mu       sync.Mutex
	approved []string
	rejected []string
}

func (n *recordingNotifier) SupplierApproved(email, profileID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.approved = append(n.approved, email)
}

func (n *recordingNotifier) SupplierRejected(email, profileID, reason string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.rejected = append(n.rejected, email+":"+reason)
}

type recordingRemover struct {
	mu      sync.Mutex
	removed []string
}

func (r *recordingRemover) Remove(location string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removed = append(r.removed, location)
	return nil
}

func newTestService(t *testing.T) (*Service, *InMemory, *recordingNotifier, *recordingRemover) {
	t.Helper()
	store := NewInMemory()
	notifier := &recordingNotifier{}
	remover := &recordingRemover{}
	svc, err := NewService(store, store,
		WithNotifier(notifier),
		WithBlobRemover(remover),
	)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, store, notifier, remover
}

func addIdentity(t *testing.T, store *InMemory, id, email string) {
	t.Helper()
	now := time.Now().UTC()
	err := store.CreateIdentity(context.Background(), &auth.Identity{
		ID:           id,
		Email:        email,
		PasswordHash: "x",
		Role:         auth.RoleRegular,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		t.Fatalf("CreateIdentity: %v", err)
	}
}

func pdfUploads(n int) []Upload {
	uploads := make([]Upload, 0, n)
	for i := 0; i < n; i++ {
		uploads = append(uploads, Upload{
			FileName:    "doc.pdf",
			ContentType: AcceptedContentType,
			Location:    "blob/loc",
			SizeBytes:   1024,
		})
	}
	return uploads
}

func TestApplyCreatesPendingProfile(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	ctx := context.Background()
	addIdentity(t, store, "id-1", "a@b.com")

	profile, err := svc.Apply(ctx, "id-1", pdfUploads(2))
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if profile.Status != StatusPending {
		t.Fatalf("status = %q, want pending", profile.Status)
	}

	ident, err := store.IdentityByID(ctx, "id-1")
	if err != nil {
		t.Fatalf("IdentityByID: %v", err)
	}
	if !ident.SupplierApplicant {
		t.Fatal("applicant flag not set")
	}
	if ident.Role != auth.RoleRegular {
		t.Fatalf("role changed on apply: %q", ident.Role)
	}

	docs, err := store.DocumentsByProfile(ctx, profile.ID)
	if err != nil {
		t.Fatalf("DocumentsByProfile: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("documents = %d, want 2", len(docs))
	}
}

func TestApplyValidation(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	ctx := context.Background()
	addIdentity(t, store, "id-1", "a@b.com")

	oversized := pdfUploads(1)
	oversized[0].SizeBytes = MaxDocumentBytes + 1
	wrongType := pdfUploads(1)
	wrongType[0].ContentType = "image/png"

	cases := map[string][]Upload{
		"no documents":       nil,
		"too many documents": pdfUploads(MaxDocuments + 1),
		"oversized document": oversized,
		"wrong content type": wrongType,
	}
	for name, uploads := range cases {
		if _, err := svc.Apply(ctx, "id-1", uploads); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("%s: got %v, want ErrInvalidInput", name, err)
		}
	}

	if _, err := svc.Apply(ctx, "missing", pdfUploads(1)); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown identity: got %v, want ErrNotFound", err)
	}
}

func TestApplyDuplicateIsConflict(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	ctx := context.Background()
	addIdentity(t, store, "id-1", "a@b.com")

	if _, err := svc.Apply(ctx, "id-1", pdfUploads(1)); err != nil {
		t.Fatalf("first apply: %v", err)
	}
	if _, err := svc.Apply(ctx, "id-1", pdfUploads(1)); !errors.Is(err, ErrConflict) {
		t.Fatalf("second apply: got %v, want ErrConflict", err)
	}
}

// Two racing submissions must produce exactly one profile.
func TestApplyConcurrentDuplicate(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	ctx := context.Background()
	addIdentity(t, store, "id-1", "a@b.com")

	const workers = 8
	errs := make(chan error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Apply(ctx, "id-1", pdfUploads(1))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var succeeded, conflicted int
	for err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrConflict):
			conflicted++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 || conflicted != workers-1 {
		t.Fatalf("succeeded=%d conflicted=%d, want 1/%d", succeeded, conflicted, workers-1)
	}
}

func TestApprovePromotesRoleAndNotifies(t *testing.T) {
	svc, store, notifier, _ := newTestService(t)
	ctx := context.Background()
	addIdentity(t, store, "id-1", "a@b.com")

	profile, err := svc.Apply(ctx, "id-1", pdfUploads(1))
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	approved, err := svc.Approve(ctx, profile.ID)
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if approved.Status != StatusApproved {
		t.Fatalf("status = %q, want approved", approved.Status)
	}

	ident, _ := store.IdentityByID(ctx, "id-1")
	if ident.Role != auth.RoleSupplier {
		t.Fatalf("role = %q, want supplier", ident.Role)
	}
	if len(notifier.approved) != 1 || notifier.approved[0] != "a@b.com" {
		t.Fatalf("approval notifications = %v", notifier.approved)
	}
}

func TestRejectKeepsRoleAndNotifies(t *testing.T) {
	svc, store, notifier, _ := newTestService(t)
	ctx := context.Background()
	addIdentity(t, store, "id-1", "a@b.com")

	profile, err := svc.Apply(ctx, "id-1", pdfUploads(1))
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	rejected, err := svc.Reject(ctx, profile.ID, "incomplete paperwork")
	if err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if rejected.Status != StatusRejected || rejected.RejectionReason != "incomplete paperwork" {
		t.Fatalf("rejected profile = %+v", rejected)
	}

	ident, _ := store.IdentityByID(ctx, "id-1")
	if ident.Role != auth.RoleRegular {
		t.Fatalf("role changed on reject: %q", ident.Role)
	}
	if len(notifier.rejected) != 1 {
		t.Fatalf("rejection notifications = %v", notifier.rejected)
	}
}

func TestRejectRequiresReason(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	ctx := context.Background()
	addIdentity(t, store, "id-1", "a@b.com")
	profile, _ := svc.Apply(ctx, "id-1", pdfUploads(1))

	if _, err := svc.Reject(ctx, profile.ID, "   "); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("blank reason: got %v, want ErrInvalidInput", err)
	}
}

func TestTransitionsFromTerminalStates(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	ctx := context.Background()

	addIdentity(t, store, "id-1", "a@b.com")
	p1, _ := svc.Apply(ctx, "id-1", pdfUploads(1))
	if _, err := svc.Approve(ctx, p1.ID); err != nil {
		t.Fatalf("Approve: %v", err)
	}

	addIdentity(t, store, "id-2", "c@d.com")
	p2, _ := svc.Apply(ctx, "id-2", pdfUploads(1))
	if _, err := svc.Reject(ctx, p2.ID, "nope"); err != nil {
		t.Fatalf("Reject: %v", err)
	}

	cases := []struct {
		name string
		op   func() error
	}{
		{"approve approved", func() error { _, err := svc.Approve(ctx, p1.ID); return err }},
		{"reject approved", func() error { _, err := svc.Reject(ctx, p1.ID, "late"); return err }},
		{"approve rejected", func() error { _, err := svc.Approve(ctx, p2.ID); return err }},
		{"reject rejected", func() error { _, err := svc.Reject(ctx, p2.ID, "again"); return err }},
	}
	for _, tc := range cases {
		if err := tc.op(); !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("%s: got %v, want ErrInvalidTransition", tc.name, err)
		}
	}

	if _, err := svc.Approve(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("approve missing: got %v, want ErrNotFound", err)
	}
}

func TestDeleteProfileClearsState(t *testing.T) {
	svc, store, _, remover := newTestService(t)
	ctx := context.Background()
	addIdentity(t, store, "id-1", "a@b.com")

	uploads := pdfUploads(2)
	uploads[0].Location = "blob/a"
	uploads[1].Location = "blob/b"
	profile, err := svc.Apply(ctx, "id-1", uploads)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	docs, err := store.DocumentsByProfile(ctx, profile.ID)
	if err != nil {
		t.Fatalf("DocumentsByProfile: %v", err)
	}

	if err := svc.DeleteProfile(ctx, "id-1"); err != nil {
		t.Fatalf("DeleteProfile: %v", err)
	}

	if _, _, err := svc.Profile(ctx, "id-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("profile after delete: got %v, want ErrNotFound", err)
	}
	for _, doc := range docs {
		if _, err := svc.Document(ctx, doc.ID); !errors.Is(err, ErrNotFound) {
			t.Fatalf("document %s after delete: got %v, want ErrNotFound", doc.ID, err)
		}
	}
	if len(remover.removed) != 2 {
		t.Fatalf("blobs removed = %v, want 2 entries", remover.removed)
	}

	ident, _ := store.IdentityByID(ctx, "id-1")
	if ident.SupplierApplicant {
		t.Fatal("applicant flag not cleared")
	}

	// The identity may apply again after deleting its profile.
	if _, err := svc.Apply(ctx, "id-1", pdfUploads(1)); err != nil {
		t.Fatalf("re-apply after delete: %v", err)
	}
}

func TestUpdateBusinessOnlyWhenApproved(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	ctx := context.Background()
	addIdentity(t, store, "id-1", "a@b.com")
	profile, _ := svc.Apply(ctx, "id-1", pdfUploads(1))

	name := "Acme Goods"
	if _, err := svc.UpdateBusiness(ctx, "id-1", BusinessUpdate{Name: &name}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("update while pending: got %v, want ErrForbidden", err)
	}

	if _, err := svc.Approve(ctx, profile.ID); err != nil {
		t.Fatalf("Approve: %v", err)
	}

	city := "Lincoln"
	updated, err := svc.UpdateBusiness(ctx, "id-1", BusinessUpdate{Name: &name, City: &city})
	if err != nil {
		t.Fatalf("UpdateBusiness: %v", err)
	}
	if updated.Business.Name != "Acme Goods" || updated.Business.City != "Lincoln" {
		t.Fatalf("business = %+v", updated.Business)
	}

	if _, err := svc.UpdateBusiness(ctx, "id-1", BusinessUpdate{}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("empty update: got %v, want ErrInvalidInput", err)
	}
	empty := "  "
	if _, err := svc.UpdateBusiness(ctx, "id-1", BusinessUpdate{Name: &empty}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("blank name: got %v, want ErrInvalidInput", err)
	}
}

func TestPendingApplications(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	ctx := context.Background()

	addIdentity(t, store, "id-1", "a@b.com")
	addIdentity(t, store, "id-2", "c@d.com")
	p1, _ := svc.Apply(ctx, "id-1", pdfUploads(1))
	if _, err := svc.Apply(ctx, "id-2", pdfUploads(1)); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if _, err := svc.Approve(ctx, p1.ID); err != nil {
		t.Fatalf("Approve: %v", err)
	}

	pending, err := svc.PendingApplications(ctx, 0)
	if err != nil {
		t.Fatalf("PendingApplications: %v", err)
	}
	if len(pending) != 1 || pending[0].IdentityID != "id-2" {
		t.Fatalf("pending = %+v", pending)
	}
}
