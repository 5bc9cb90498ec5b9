package escrow

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"rentgate/internal/domain"
	"rentgate/pkg/platform/sentinel"
)

// LeaseStore persists leases keyed by (policy, tenant). Put upserts: the
// same key is written on creation, resolution, and restart. Delete exists
// only to roll back a creation whose deposit failed.
type LeaseStore interface {
	Get(ctx context.Context, policyID domain.PolicyID, tenant common.Address) (domain.Lease, error)
	Put(ctx context.Context, lease domain.Lease) error
	Delete(ctx context.Context, policyID domain.PolicyID, tenant common.Address) error
}

type leaseKey struct {
	policyID domain.PolicyID
	tenant   common.Address
}

type InMemoryLeaseStore struct {
	mu     sync.RWMutex
	leases map[leaseKey]domain.Lease
}

func NewInMemoryLeaseStore() *InMemoryLeaseStore {
	return &InMemoryLeaseStore{leases: make(map[leaseKey]domain.Lease)}
}

func (s *InMemoryLeaseStore) Get(_ context.Context, policyID domain.PolicyID, tenant common.Address) (domain.Lease, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if l, ok := s.leases[leaseKey{policyID, tenant}]; ok {
		return l, nil
	}
	return domain.Lease{}, sentinel.ErrNotFound
}

func (s *InMemoryLeaseStore) Put(_ context.Context, lease domain.Lease) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leases[leaseKey{lease.PolicyID, lease.Tenant}] = lease
	return nil
}

func (s *InMemoryLeaseStore) Delete(_ context.Context, policyID domain.PolicyID, tenant common.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.leases, leaseKey{policyID, tenant})
	return nil
}
