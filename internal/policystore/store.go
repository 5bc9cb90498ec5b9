package policystore

import (
	"context"
	"sync"

	"rentgate/internal/domain"
	"rentgate/pkg/platform/sentinel"
)

// Store persists policies. Create assigns the next sequential ID; policies
// are immutable and never deleted, so there is no update or delete.
type Store interface {
	Create(ctx context.Context, p domain.Policy) (domain.PolicyID, error)
	Get(ctx context.Context, id domain.PolicyID) (domain.Policy, error)
}

// InMemoryStore favors clarity over performance; it backs unit tests and
// local runs.
type InMemoryStore struct {
	mu       sync.RWMutex
	nextID   domain.PolicyID
	policies map[domain.PolicyID]domain.Policy
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		nextID:   1,
		policies: make(map[domain.PolicyID]domain.Policy),
	}
}

func (s *InMemoryStore) Create(_ context.Context, p domain.Policy) (domain.PolicyID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = s.nextID
	s.nextID++
	s.policies[p.ID] = p
	return p.ID, nil
}

func (s *InMemoryStore) Get(_ context.Context, id domain.PolicyID) (domain.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.policies[id]; ok {
		return p, nil
	}
	return domain.Policy{}, sentinel.ErrNotFound
}
