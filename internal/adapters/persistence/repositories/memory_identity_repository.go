package repositories

import (
	"context"
	"sort"
	"sync"
	"time"

	"c5isr-identity/internal/core/domain"
)

// memoryIdentityRepository keeps identities in process memory
type memoryIdentityRepository struct {
	mu         sync.RWMutex
	identities map[string]*domain.Identity
}

// NewMemoryIdentityRepository creates an empty in-memory identity repository
func NewMemoryIdentityRepository() IdentityRepository {
	return &memoryIdentityRepository{identities: make(map[string]*domain.Identity)}
}

func clone(i *domain.Identity) *domain.Identity {
	c := *i
	if i.LastLogin != nil {
		t := *i.LastLogin
		c.LastLogin = &t
	}
	return &c
}

func (r *memoryIdentityRepository) GetByUsername(_ context.Context, username string) (*domain.Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i, ok := r.identities[username]
	if !ok {
		return nil, domain.ErrIdentityNotFound
	}
	return clone(i), nil
}

func (r *memoryIdentityRepository) List(_ context.Context) ([]*domain.Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.Identity, 0, len(r.identities))
	for _, i := range r.identities {
		out = append(out, clone(i))
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Username < out[b].Username })
	return out, nil
}

func (r *memoryIdentityRepository) Upsert(_ context.Context, identity *domain.Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.identities[identity.Username] = clone(identity)
	return nil
}

func (r *memoryIdentityRepository) Exists(_ context.Context, username string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.identities[username]
	return ok, nil
}

func (r *memoryIdentityRepository) RecordLogin(_ context.Context, username string, at time.Time) (*domain.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i, ok := r.identities[username]
	if !ok {
		return nil, domain.ErrIdentityNotFound
	}
	t := at
	i.LastLogin = &t
	i.LoginCount++
	return clone(i), nil
}

func (r *memoryIdentityRepository) MarkTOTPEnrolled(_ context.Context, username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i, ok := r.identities[username]
	if !ok {
		return domain.ErrIdentityNotFound
	}
	i.TOTPEnrolled = true
	return nil
}
