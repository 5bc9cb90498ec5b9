// Package policystore holds immutable rental policies: the terms every
// eligibility check and lease resolves against.
package policystore

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"rentgate/internal/domain"
	"rentgate/internal/events"
	"rentgate/internal/platform/clock"
	"rentgate/internal/policystore/metrics"
	dErrors "rentgate/pkg/domain-errors"
	"rentgate/pkg/platform/sentinel"
)

type Service struct {
	store   Store
	clock   clock.Clock
	emitter *events.Emitter
	log     *slog.Logger
	metrics *metrics.Metrics
}

func NewService(store Store, clk clock.Clock, emitter *events.Emitter, log *slog.Logger, m *metrics.Metrics) *Service {
	return &Service{store: store, clock: clk, emitter: emitter, log: log, metrics: m}
}

// CreatePolicy validates terms, computes the content hash, and stores the
// policy under the next sequential ID. The deadline must be strictly in the
// future at creation time.
func (s *Service) CreatePolicy(ctx context.Context, owner common.Address, terms domain.PolicyTerms) (domain.PolicyID, error) {
	start := time.Now()

	if terms.RentAmount == nil || terms.RentAmount.Sign() <= 0 {
		return 0, dErrors.New(dErrors.CodeValidation, "rent amount must be positive")
	}
	if terms.MinAge < 0 || terms.IncomeMultiplier < 0 {
		return 0, dErrors.New(dErrors.CodeValidation, "policy terms must be non-negative")
	}
	now := s.clock.Now()
	if terms.Deadline <= uint64(now.Unix()) {
		return 0, dErrors.New(dErrors.CodeValidation, "policy deadline must be in the future")
	}

	policy := domain.Policy{
		Terms:       terms,
		Owner:       owner,
		ContentHash: domain.ContentHash(terms, owner),
		CreatedAt:   now,
	}
	id, err := s.store.Create(ctx, policy)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "store policy")
	}

	s.metrics.IncrementPoliciesCreated()
	s.metrics.ObserveCreatePolicy(start)
	s.log.InfoContext(ctx, "policy created",
		"policy_id", id,
		"owner", owner.Hex(),
		"content_hash", policy.ContentHash.Hex(),
	)
	s.emitter.Emit(ctx, events.PolicyCreated{
		PolicyID:    id,
		Owner:       owner,
		ContentHash: policy.ContentHash,
	})
	return id, nil
}

// GetPolicy returns the stored policy or a not_found error.
func (s *Service) GetPolicy(ctx context.Context, id domain.PolicyID) (domain.Policy, error) {
	p, err := s.store.Get(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return domain.Policy{}, dErrors.Newf(dErrors.CodeNotFound, "policy %d not found", id)
	}
	if err != nil {
		return domain.Policy{}, dErrors.Wrap(err, dErrors.CodeInternal, "load policy")
	}
	return p, nil
}

// IsOwner reports whether who owns the policy. A pure lookup: unknown
// policies simply answer false.
func (s *Service) IsOwner(ctx context.Context, id domain.PolicyID, who common.Address) bool {
	p, err := s.store.Get(ctx, id)
	if err != nil {
		return false
	}
	return p.Owner == who
}
