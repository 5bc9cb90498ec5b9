package eligibility

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"rentgate/internal/domain"
)

// RecordStore holds the write-once eligibility flags. Set is idempotent;
// once a (tenant, policy) pair is true nothing reverts it.
type RecordStore interface {
	Set(ctx context.Context, tenant common.Address, policyID domain.PolicyID) error
	Get(ctx context.Context, tenant common.Address, policyID domain.PolicyID) (bool, error)
}

type recordKey struct {
	tenant   common.Address
	policyID domain.PolicyID
}

type InMemoryRecordStore struct {
	mu      sync.RWMutex
	records map[recordKey]struct{}
}

func NewInMemoryRecordStore() *InMemoryRecordStore {
	return &InMemoryRecordStore{records: make(map[recordKey]struct{})}
}

func (s *InMemoryRecordStore) Set(_ context.Context, tenant common.Address, policyID domain.PolicyID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[recordKey{tenant, policyID}] = struct{}{}
	return nil
}

func (s *InMemoryRecordStore) Get(_ context.Context, tenant common.Address, policyID domain.PolicyID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.records[recordKey{tenant, policyID}]
	return ok, nil
}
