// Package escrow holds rent in custody between eligibility and resolution.
// Each (policy, tenant) pair walks NONE -> ACTIVE -> {RELEASED, REFUNDED};
// terminal states never transition again within the same instantiation,
// though a resolved pair may start a fresh lease later.
//
// All bookkeeping happens strictly before any outbound transfer, so a
// recipient that re-enters during receipt observes the lease already
// inactive. The check-and-write windows over the lease store are serialized
// by a mutex that is never held across a transfer, so concurrent requests
// cannot double-fund a pair and re-entrant calls cannot deadlock. An
// optional guard additionally rejects overlapping entry outright.
package escrow

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"rentgate/internal/domain"
	"rentgate/internal/escrow/metrics"
	"rentgate/internal/events"
	"rentgate/internal/platform/clock"
	dErrors "rentgate/pkg/domain-errors"
	"rentgate/pkg/platform/sentinel"
)

// PolicyReader is the slice of the policy module escrow needs.
type PolicyReader interface {
	GetPolicy(ctx context.Context, id domain.PolicyID) (domain.Policy, error)
}

// EligibilityReader answers whether a tenant holds an eligibility record.
type EligibilityReader interface {
	IsEligible(ctx context.Context, tenant common.Address, policyID domain.PolicyID) bool
}

type Service struct {
	policies    PolicyReader
	eligibility EligibilityReader
	leases      LeaseStore
	ledger      Ledger
	account     common.Address
	clock       clock.Clock
	emitter     *events.Emitter
	log         *slog.Logger
	metrics     *metrics.Metrics

	// mu serializes every lease-store check-and-write window. It is never
	// held while the ledger moves funds.
	mu sync.Mutex

	guard   bool
	entered atomic.Bool
}

// Option configures a Service.
type Option func(*Service)

// WithReentrancyGuard rejects overlapping entry into any state-mutating
// operation with a reentrancy error, on top of the effects-first ordering.
func WithReentrancyGuard() Option {
	return func(s *Service) { s.guard = true }
}

// NewService wires escrow. account is the address custody funds sit under
// between start and resolution.
func NewService(
	policies PolicyReader,
	eligibility EligibilityReader,
	leases LeaseStore,
	ledger Ledger,
	account common.Address,
	clk clock.Clock,
	emitter *events.Emitter,
	log *slog.Logger,
	m *metrics.Metrics,
	opts ...Option,
) *Service {
	s := &Service{
		policies:    policies,
		eligibility: eligibility,
		leases:      leases,
		ledger:      ledger,
		account:     account,
		clock:       clk,
		emitter:     emitter,
		log:         log,
		metrics:     m,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StartLease locks value into escrow for an eligible tenant. The value must
// equal the policy rent exactly.
func (s *Service) StartLease(ctx context.Context, caller common.Address, policyID domain.PolicyID, value *big.Int) (domain.Lease, error) {
	start := time.Now()
	defer s.metrics.ObserveOperation(start)
	if err := s.enter(); err != nil {
		return domain.Lease{}, err
	}
	defer s.exit()

	policy, err := s.policies.GetPolicy(ctx, policyID)
	if err != nil {
		return domain.Lease{}, err
	}
	if !s.eligibility.IsEligible(ctx, caller, policyID) {
		return domain.Lease{}, dErrors.Newf(dErrors.CodeIneligible, "no eligibility record for policy %d", policyID)
	}
	if value == nil || value.Cmp(policy.Terms.RentAmount) != 0 {
		return domain.Lease{}, dErrors.Newf(dErrors.CodeValidation,
			"value must equal policy rent amount %s exactly", policy.Terms.RentAmount)
	}

	lease := domain.Lease{
		PolicyID:  policyID,
		Tenant:    caller,
		Amount:    new(big.Int).Set(value),
		Deadline:  policy.Terms.Deadline,
		Status:    domain.LeaseStatusActive,
		StartedAt: s.clock.Now(),
	}
	prior, hadPrior, err := s.insertActive(ctx, lease)
	if err != nil {
		return domain.Lease{}, err
	}

	if err := s.ledger.Transfer(ctx, caller, s.account, lease.Amount); err != nil {
		// Abort with zero persisted effect: restore the prior terminal lease
		// or remove the record entirely.
		s.mu.Lock()
		if hadPrior {
			_ = s.leases.Put(ctx, prior)
		} else {
			_ = s.leases.Delete(ctx, policyID, caller)
		}
		s.mu.Unlock()
		s.metrics.IncrementTransfersFailed()
		return domain.Lease{}, dErrors.Wrap(err, dErrors.CodeTransferFailed, "escrow deposit failed")
	}

	s.metrics.IncrementLeasesStarted()
	s.log.InfoContext(ctx, "lease started",
		"policy_id", policyID,
		"tenant", caller.Hex(),
		"amount", lease.Amount.String(),
		"deadline", lease.Deadline,
	)
	s.emitter.Emit(ctx, events.LeaseStarted{
		PolicyID: policyID,
		Tenant:   caller,
		Amount:   lease.Amount,
		Deadline: lease.Deadline,
	})
	return lease, nil
}

// OwnerConfirm releases the escrowed rent to the policy owner. Only the
// owner may call it, and only while the lease is active.
func (s *Service) OwnerConfirm(ctx context.Context, caller common.Address, policyID domain.PolicyID, tenant common.Address) error {
	start := time.Now()
	defer s.metrics.ObserveOperation(start)
	if err := s.enter(); err != nil {
		return err
	}
	defer s.exit()

	policy, err := s.policies.GetPolicy(ctx, policyID)
	if err != nil {
		return err
	}
	if caller != policy.Owner {
		return dErrors.New(dErrors.CodeUnauthorized, "only the policy owner may confirm")
	}

	lease, err := s.takeActive(ctx, policyID, tenant, domain.LeaseStatusReleased, nil)
	if err != nil {
		return err
	}

	if err := s.payout(ctx, lease, policy.Owner); err != nil {
		return err
	}

	s.metrics.IncrementLeasesReleased()
	s.log.InfoContext(ctx, "lease released",
		"policy_id", policyID,
		"tenant", tenant.Hex(),
		"amount", lease.Amount.String(),
	)
	s.emitter.Emit(ctx, events.LeaseReleased{PolicyID: policyID, Tenant: tenant, Amount: lease.Amount})
	return nil
}

// TimeoutRefund returns the escrowed rent to the tenant once the deadline
// has elapsed. The boundary instant itself is refundable.
func (s *Service) TimeoutRefund(ctx context.Context, caller common.Address, policyID domain.PolicyID) error {
	start := time.Now()
	defer s.metrics.ObserveOperation(start)
	if err := s.enter(); err != nil {
		return err
	}
	defer s.exit()

	lease, err := s.takeActive(ctx, policyID, caller, domain.LeaseStatusRefunded, func(l domain.Lease) error {
		if !l.Refundable(s.clock.Now()) {
			return dErrors.Newf(dErrors.CodeTooEarly, "lease deadline %d not reached", l.Deadline)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := s.payout(ctx, lease, caller); err != nil {
		return err
	}

	s.metrics.IncrementLeasesRefunded()
	s.log.InfoContext(ctx, "lease refunded",
		"policy_id", policyID,
		"tenant", caller.Hex(),
		"amount", lease.Amount.String(),
	)
	s.emitter.Emit(ctx, events.LeaseRefunded{PolicyID: policyID, Tenant: caller, Amount: lease.Amount})
	return nil
}

// GetLease returns the lease for (policyID, tenant) or a not_found error.
func (s *Service) GetLease(ctx context.Context, policyID domain.PolicyID, tenant common.Address) (domain.Lease, error) {
	lease, err := s.leases.Get(ctx, policyID, tenant)
	if errors.Is(err, sentinel.ErrNotFound) {
		return domain.Lease{}, dErrors.Newf(dErrors.CodeNotFound, "no lease for policy %d and tenant %s", policyID, tenant.Hex())
	}
	if err != nil {
		return domain.Lease{}, dErrors.Wrap(err, dErrors.CodeInternal, "load lease")
	}
	return lease, nil
}

// IsLeaseActive reports whether funds are currently held for the pair.
func (s *Service) IsLeaseActive(ctx context.Context, policyID domain.PolicyID, tenant common.Address) bool {
	lease, err := s.leases.Get(ctx, policyID, tenant)
	return err == nil && lease.Active()
}

// insertActive stores lease unless the pair already has an active one. The
// load, the check, and the insert happen under one lock so two simultaneous
// starts for the same pair cannot both pass the check. Returns the prior
// terminal lease, if any, for rollback.
func (s *Service) insertActive(ctx context.Context, lease domain.Lease) (prior domain.Lease, hadPrior bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prior, err = s.leases.Get(ctx, lease.PolicyID, lease.Tenant)
	hadPrior = err == nil
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return domain.Lease{}, false, dErrors.Wrap(err, dErrors.CodeInternal, "load lease")
	}
	if hadPrior && prior.Active() {
		return domain.Lease{}, false, dErrors.Newf(dErrors.CodeConflict, "lease already active for policy %d", lease.PolicyID)
	}
	if err := s.leases.Put(ctx, lease); err != nil {
		return domain.Lease{}, false, dErrors.Wrap(err, dErrors.CodeInternal, "store lease")
	}
	return prior, hadPrior, nil
}

// takeActive atomically flips the pair's ACTIVE lease to terminal and
// returns it as it was while active. A missing lease and a resolved one fail
// the same way: there is nothing active to resolve. check runs on the loaded
// lease under the same lock; a non-nil result aborts without effect.
func (s *Service) takeActive(ctx context.Context, policyID domain.PolicyID, tenant common.Address, terminal domain.LeaseStatus, check func(domain.Lease) error) (domain.Lease, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lease, err := s.leases.Get(ctx, policyID, tenant)
	if errors.Is(err, sentinel.ErrNotFound) {
		return domain.Lease{}, dErrors.Newf(dErrors.CodeConflict, "lease not active for policy %d", policyID)
	}
	if err != nil {
		return domain.Lease{}, dErrors.Wrap(err, dErrors.CodeInternal, "load lease")
	}
	if !lease.Active() {
		return domain.Lease{}, dErrors.Newf(dErrors.CodeConflict, "lease not active for policy %d", policyID)
	}
	if check != nil {
		if err := check(lease); err != nil {
			return domain.Lease{}, err
		}
	}

	resolved := lease
	resolved.Status = terminal
	if err := s.leases.Put(ctx, resolved); err != nil {
		return domain.Lease{}, dErrors.Wrap(err, dErrors.CodeInternal, "store lease")
	}
	return lease, nil
}

// payout moves the escrowed amount to the recipient after the lease has been
// deactivated. A failed transfer restores the ACTIVE record so the whole
// operation aborts with zero net effect.
func (s *Service) payout(ctx context.Context, lease domain.Lease, recipient common.Address) error {
	if err := s.ledger.Transfer(ctx, s.account, recipient, lease.Amount); err != nil {
		s.mu.Lock()
		_ = s.leases.Put(ctx, lease)
		s.mu.Unlock()
		s.metrics.IncrementTransfersFailed()
		return dErrors.Wrap(err, dErrors.CodeTransferFailed, "escrow payout failed")
	}
	return nil
}

func (s *Service) enter() error {
	if !s.guard {
		return nil
	}
	if !s.entered.CompareAndSwap(false, true) {
		return dErrors.New(dErrors.CodeReentrancy, "overlapping escrow entry rejected")
	}
	return nil
}

func (s *Service) exit() {
	if s.guard {
		s.entered.Store(false)
	}
}
