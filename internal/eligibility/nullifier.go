package eligibility

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"rentgate/pkg/platform/sentinel"
)

// NullifierDomain keeps the two gate variants' nullifier spaces logically
// distinct: a value consumed through one path does not block the other.
// Passing the same domain for both variants collapses them into one shared
// namespace.
type NullifierDomain string

const (
	DomainProof  NullifierDomain = "proof"
	DomainAttest NullifierDomain = "attest"
)

// NullifierStore marks nullifiers used, exactly once. Consume must be an
// indivisible check-and-insert: it returns sentinel.ErrAlreadyUsed when the
// value was consumed before, and no two calls can both succeed for the same
// (domain, value).
type NullifierStore interface {
	Consume(ctx context.Context, dom NullifierDomain, value common.Hash) error
}

// InMemoryNullifierStore holds the used set under a single mutex, making the
// check-and-insert trivially indivisible.
type InMemoryNullifierStore struct {
	mu   sync.Mutex
	used map[string]struct{}
}

func NewInMemoryNullifierStore() *InMemoryNullifierStore {
	return &InMemoryNullifierStore{used: make(map[string]struct{})}
}

func (s *InMemoryNullifierStore) Consume(_ context.Context, dom NullifierDomain, value common.Hash) error {
	key := string(dom) + ":" + value.Hex()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.used[key]; ok {
		return sentinel.ErrAlreadyUsed
	}
	s.used[key] = struct{}{}
	return nil
}
