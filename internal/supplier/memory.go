package supplier

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"vendorhub.org/internal/auth"
)

// InMemory implements Store and auth.IdentityStore with in-process
// concurrency safety. Transition semantics match the Postgres store: the
// precondition check and the writes happen under one lock.
// NOTE: used by tests and local runs without a database.
type InMemory struct {
	mu         sync.RWMutex
	identities map[string]*auth.Identity
	byEmail    map[string]string
	profiles   map[string]*Profile
	byIdentity map[string]string
	documents  map[string]*Document
}

var _ Store = (*InMemory)(nil)
var _ auth.IdentityStore = (*InMemory)(nil)

// NewInMemory creates an empty store.
func NewInMemory() *InMemory {
	return &InMemory{
		identities: make(map[string]*auth.Identity),
		byEmail:    make(map[string]string),
		profiles:   make(map[string]*Profile),
		byIdentity: make(map[string]string),
		documents:  make(map[string]*Document),
	}
}

// --- auth.IdentityStore ---

func (s *InMemory) CreateIdentity(ctx context.Context, ident *auth.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byEmail[ident.Email]; ok {
		return fmt.Errorf("%w: email already registered", auth.ErrConflict)
	}
	cp := *ident
	s.identities[ident.ID] = &cp
	s.byEmail[ident.Email] = ident.ID
	return nil
}

func (s *InMemory) IdentityByID(ctx context.Context, id string) (*auth.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ident, ok := s.identities[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	cp := *ident
	return &cp, nil
}

func (s *InMemory) IdentityByEmail(ctx context.Context, email string) (*auth.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, auth.ErrNotFound
	}
	cp := *s.identities[id]
	return &cp, nil
}

// --- Store ---

func (s *InMemory) CreateApplication(ctx context.Context, profile *Profile, docs []*Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ident, ok := s.identities[profile.IdentityID]
	if !ok {
		return ErrNotFound
	}
	if ident.SupplierApplicant {
		return fmt.Errorf("%w: application already submitted", ErrConflict)
	}
	cp := *profile
	s.profiles[profile.ID] = &cp
	s.byIdentity[profile.IdentityID] = profile.ID
	for _, doc := range docs {
		dcp := *doc
		s.documents[doc.ID] = &dcp
	}
	ident.SupplierApplicant = true
	ident.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *InMemory) ApproveProfile(ctx context.Context, profileID string) (*Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	profile, ok := s.profiles[profileID]
	if !ok {
		return nil, ErrNotFound
	}
	if profile.Status != StatusPending {
		return nil, fmt.Errorf("%w: profile is %s", ErrInvalidTransition, profile.Status)
	}
	profile.Status = StatusApproved
	profile.UpdatedAt = time.Now().UTC()
	if ident, ok := s.identities[profile.IdentityID]; ok {
		ident.Role = auth.RoleSupplier
		ident.UpdatedAt = profile.UpdatedAt
	}
	cp := *profile
	return &cp, nil
}

func (s *InMemory) RejectProfile(ctx context.Context, profileID, reason string) (*Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	profile, ok := s.profiles[profileID]
	if !ok {
		return nil, ErrNotFound
	}
	if profile.Status != StatusPending {
		return nil, fmt.Errorf("%w: profile is %s", ErrInvalidTransition, profile.Status)
	}
	profile.Status = StatusRejected
	profile.RejectionReason = reason
	profile.UpdatedAt = time.Now().UTC()
	cp := *profile
	return &cp, nil
}

func (s *InMemory) DeleteProfileByIdentity(ctx context.Context, identityID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	profileID, ok := s.byIdentity[identityID]
	if !ok {
		return ErrNotFound
	}
	for id, doc := range s.documents {
		if doc.ProfileID == profileID {
			delete(s.documents, id)
		}
	}
	delete(s.profiles, profileID)
	delete(s.byIdentity, identityID)
	if ident, ok := s.identities[identityID]; ok {
		ident.SupplierApplicant = false
		ident.UpdatedAt = time.Now().UTC()
	}
	return nil
}

func (s *InMemory) UpdateBusiness(ctx context.Context, identityID string, upd BusinessUpdate) (*Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	profileID, ok := s.byIdentity[identityID]
	if !ok {
		return nil, ErrNotFound
	}
	profile := s.profiles[profileID]
	if profile.Status != StatusApproved {
		return nil, fmt.Errorf("%w: profile is %s", ErrForbidden, profile.Status)
	}
	upd.Apply(&profile.Business)
	profile.UpdatedAt = time.Now().UTC()
	cp := *profile
	return &cp, nil
}

func (s *InMemory) ProfileByID(ctx context.Context, profileID string) (*Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	profile, ok := s.profiles[profileID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *profile
	return &cp, nil
}

func (s *InMemory) ProfileByIdentity(ctx context.Context, identityID string) (*Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	profileID, ok := s.byIdentity[identityID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s.profiles[profileID]
	return &cp, nil
}

func (s *InMemory) ListPending(ctx context.Context, limit int) ([]*Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []*Profile
	for _, profile := range s.profiles {
		if profile.Status == StatusPending {
			cp := *profile
			res = append(res, &cp)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	if len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

func (s *InMemory) DocumentByID(ctx context.Context, documentID string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[documentID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *doc
	return &cp, nil
}

func (s *InMemory) DocumentsByProfile(ctx context.Context, profileID string) ([]*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []*Document
	for _, doc := range s.documents {
		if doc.ProfileID == profileID {
			cp := *doc
			res = append(res, &cp)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}
