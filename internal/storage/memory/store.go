// Package memory implements storage interfaces with in-process maps.
// It exists for development mode and unit tests; documents are copied on
// the way in and out so callers never share memory with the store.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sirosfoundation/go-smp/internal/storage"
)

// Store implements storage.Store in memory
type Store struct {
	mu sync.RWMutex

	serviceGroups   map[string]*storage.ServiceGroup
	serviceMetadata map[string]*storage.ServiceInformation
	redirects       map[string]*storage.Redirect
	businessCards   map[string]*storage.BusinessCard
	users           map[string]*storage.User
}

// NewStore creates an empty in-memory store
func NewStore() *Store {
	return &Store{
		serviceGroups:   make(map[string]*storage.ServiceGroup),
		serviceMetadata: make(map[string]*storage.ServiceInformation),
		redirects:       make(map[string]*storage.Redirect),
		businessCards:   make(map[string]*storage.BusinessCard),
		users:           make(map[string]*storage.User),
	}
}

// Close is a no-op for the in-memory store
func (s *Store) Close(ctx context.Context) error { return nil }

// Ping is a no-op for the in-memory store
func (s *Store) Ping(ctx context.Context) error { return nil }

// ServiceGroupStore implementation

func (s *Store) CreateServiceGroup(ctx context.Context, sg *storage.ServiceGroup) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.serviceGroups[sg.ID]; ok {
		return storage.ErrDuplicate
	}
	sg.CreatedAt = time.Now()
	sg.UpdatedAt = sg.CreatedAt
	cp := *sg
	s.serviceGroups[sg.ID] = &cp
	return nil
}

func (s *Store) GetServiceGroup(ctx context.Context, id string) (*storage.ServiceGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sg, ok := s.serviceGroups[id]
	if !ok {
		return nil, nil
	}
	cp := *sg
	return &cp, nil
}

func (s *Store) UpdateServiceGroup(ctx context.Context, sg *storage.ServiceGroup) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sg.UpdatedAt = time.Now()
	cp := *sg
	s.serviceGroups[sg.ID] = &cp
	return nil
}

func (s *Store) DeleteServiceGroup(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.serviceGroups[id]; !ok {
		return false, nil
	}
	delete(s.serviceGroups, id)
	return true, nil
}

func (s *Store) ListServiceGroupsByOwner(ctx context.Context, ownerID string) ([]*storage.ServiceGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*storage.ServiceGroup
	for _, sg := range s.serviceGroups {
		if sg.OwnerID == ownerID {
			cp := *sg
			out = append(out, &cp)
		}
	}
	sortGroups(out)
	return out, nil
}

func (s *Store) ListServiceGroups(ctx context.Context) ([]*storage.ServiceGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*storage.ServiceGroup, 0, len(s.serviceGroups))
	for _, sg := range s.serviceGroups {
		cp := *sg
		out = append(out, &cp)
	}
	sortGroups(out)
	return out, nil
}

func sortGroups(gs []*storage.ServiceGroup) {
	sort.Slice(gs, func(i, j int) bool { return gs[i].ID < gs[j].ID })
}

// ServiceInformationStore implementation

func (s *Store) UpsertServiceInformation(ctx context.Context, si *storage.ServiceInformation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if existing, ok := s.serviceMetadata[si.ID]; ok {
		si.CreatedAt = existing.CreatedAt
	} else if si.CreatedAt.IsZero() {
		si.CreatedAt = now
	}
	si.UpdatedAt = now
	cp := *si
	cp.Processes = append([]storage.Process(nil), si.Processes...)
	s.serviceMetadata[si.ID] = &cp
	return nil
}

func (s *Store) GetServiceInformation(ctx context.Context, id string) (*storage.ServiceInformation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	si, ok := s.serviceMetadata[id]
	if !ok {
		return nil, nil
	}
	cp := *si
	cp.Processes = append([]storage.Process(nil), si.Processes...)
	return &cp, nil
}

func (s *Store) ListServiceInformation(ctx context.Context, serviceGroupID string) ([]*storage.ServiceInformation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*storage.ServiceInformation
	for _, si := range s.serviceMetadata {
		if si.ServiceGroupID == serviceGroupID {
			cp := *si
			cp.Processes = append([]storage.Process(nil), si.Processes...)
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) DeleteServiceInformation(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.serviceMetadata[id]; !ok {
		return false, nil
	}
	delete(s.serviceMetadata, id)
	return true, nil
}

func (s *Store) DeleteAllServiceInformation(ctx context.Context, serviceGroupID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, si := range s.serviceMetadata {
		if si.ServiceGroupID == serviceGroupID {
			delete(s.serviceMetadata, id)
			n++
		}
	}
	return n, nil
}

// RedirectStore implementation

func (s *Store) UpsertRedirect(ctx context.Context, r *storage.Redirect) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if existing, ok := s.redirects[r.ID]; ok {
		r.CreatedAt = existing.CreatedAt
	} else if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now
	cp := *r
	s.redirects[r.ID] = &cp
	return nil
}

func (s *Store) GetRedirect(ctx context.Context, id string) (*storage.Redirect, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.redirects[id]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (s *Store) ListRedirects(ctx context.Context, serviceGroupID string) ([]*storage.Redirect, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*storage.Redirect
	for _, r := range s.redirects {
		if r.ServiceGroupID == serviceGroupID {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) DeleteRedirect(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.redirects[id]; !ok {
		return false, nil
	}
	delete(s.redirects, id)
	return true, nil
}

func (s *Store) DeleteAllRedirects(ctx context.Context, serviceGroupID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, r := range s.redirects {
		if r.ServiceGroupID == serviceGroupID {
			delete(s.redirects, id)
			n++
		}
	}
	return n, nil
}

// BusinessCardStore implementation

func (s *Store) UpsertBusinessCard(ctx context.Context, bc *storage.BusinessCard) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if existing, ok := s.businessCards[bc.ID]; ok {
		bc.CreatedAt = existing.CreatedAt
	} else if bc.CreatedAt.IsZero() {
		bc.CreatedAt = now
	}
	bc.UpdatedAt = now
	cp := *bc
	cp.Entities = append([]storage.BusinessEntity(nil), bc.Entities...)
	s.businessCards[bc.ID] = &cp
	return nil
}

func (s *Store) GetBusinessCard(ctx context.Context, id string) (*storage.BusinessCard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bc, ok := s.businessCards[id]
	if !ok {
		return nil, nil
	}
	cp := *bc
	cp.Entities = append([]storage.BusinessEntity(nil), bc.Entities...)
	return &cp, nil
}

func (s *Store) DeleteBusinessCard(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.businessCards[id]; !ok {
		return false, nil
	}
	delete(s.businessCards, id)
	return true, nil
}

// UserStore implementation

func (s *Store) CreateUser(ctx context.Context, u *storage.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[u.ID]; ok {
		return storage.ErrDuplicate
	}
	u.CreatedAt = time.Now()
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *Store) GetUser(ctx context.Context, id string) (*storage.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (s *Store) GetUserByName(ctx context.Context, name string) (*storage.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.UserName == name {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}
