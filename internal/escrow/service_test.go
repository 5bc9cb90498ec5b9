package escrow_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/suite"

	"rentgate/internal/domain"
	"rentgate/internal/escrow"
	"rentgate/internal/events"
	"rentgate/internal/platform/clock"
	"rentgate/internal/policystore"
	dErrors "rentgate/pkg/domain-errors"
)

var (
	ownerAddr   = common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	tenantAddr  = common.HexToAddress("0xcccccccccccccccccccccccccccccccccccccccc")
	escrowAddr  = common.HexToAddress("0x00000000000000000000000000000000e5c20000")
	rentDefault = big.NewInt(1_000)
)

// allowAll marks every tenant eligible; denyAll the opposite.
type allowAll struct{}

func (allowAll) IsEligible(context.Context, common.Address, domain.PolicyID) bool { return true }

type denyAll struct{}

func (denyAll) IsEligible(context.Context, common.Address, domain.PolicyID) bool { return false }

type EscrowSuite struct {
	suite.Suite
	ctx      context.Context
	clock    *clock.Fixed
	sink     *events.MemorySink
	policies *policystore.Service
	ledger   *escrow.MemoryLedger
	service  *escrow.Service
	deadline uint64
}

func TestEscrowSuite(t *testing.T) {
	suite.Run(t, new(EscrowSuite))
}

func (s *EscrowSuite) SetupTest() {
	s.ctx = context.Background()
	s.clock = clock.NewFixed(time.Unix(1_000_000, 0))
	s.sink = events.NewMemorySink()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	emitter := events.NewEmitter(s.sink, log)

	s.policies = policystore.NewService(policystore.NewInMemoryStore(), s.clock, emitter, log, nil)
	s.ledger = escrow.NewMemoryLedger()
	s.ledger.SetBalance(tenantAddr, big.NewInt(10_000))
	s.deadline = uint64(s.clock.Now().Unix()) + 86400

	s.service = escrow.NewService(
		s.policies,
		allowAll{},
		escrow.NewInMemoryLeaseStore(),
		s.ledger,
		escrowAddr,
		s.clock,
		emitter,
		log,
		nil,
	)
}

func (s *EscrowSuite) createPolicy() domain.PolicyID {
	id, err := s.policies.CreatePolicy(s.ctx, ownerAddr, domain.PolicyTerms{
		MinAge:             18,
		IncomeMultiplier:   3,
		RentAmount:         new(big.Int).Set(rentDefault),
		RequireCleanRecord: true,
		Deadline:           s.deadline,
	})
	s.Require().NoError(err)
	return id
}

func (s *EscrowSuite) startLease(id domain.PolicyID) domain.Lease {
	lease, err := s.service.StartLease(s.ctx, tenantAddr, id, new(big.Int).Set(rentDefault))
	s.Require().NoError(err)
	return lease
}

// equalAmount compares by value; *big.Int has multiple internal
// representations of the same number, so DeepEqual is the wrong tool.
func (s *EscrowSuite) equalAmount(want, got *big.Int) {
	s.Zero(want.Cmp(got), "want %s, got %s", want, got)
}

func (s *EscrowSuite) TestStartLease() {
	s.Run("locks rent under the escrow account", func() {
		id := s.createPolicy()
		before := s.ledger.Balance(tenantAddr)

		lease := s.startLease(id)
		s.Equal(domain.LeaseStatusActive, lease.Status)
		s.Equal(s.deadline, lease.Deadline)
		s.Equal(s.clock.Now(), lease.StartedAt)

		s.equalAmount(new(big.Int).Sub(before, rentDefault), s.ledger.Balance(tenantAddr))
		s.equalAmount(rentDefault, s.ledger.Balance(escrowAddr))
		s.True(s.service.IsLeaseActive(s.ctx, id, tenantAddr))

		s.Require().Len(s.sink.OfKind("lease_started"), 1)
	})

	s.Run("unknown policy is not found", func() {
		_, err := s.service.StartLease(s.ctx, tenantAddr, 99, rentDefault)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("ineligible tenant is rejected", func() {
		id := s.createPolicy()
		log := slog.New(slog.NewTextHandler(io.Discard, nil))
		svc := escrow.NewService(s.policies, denyAll{}, escrow.NewInMemoryLeaseStore(),
			s.ledger, escrowAddr, s.clock, events.NewEmitter(nil, log), log, nil)
		_, err := svc.StartLease(s.ctx, tenantAddr, id, rentDefault)
		s.True(dErrors.HasCode(err, dErrors.CodeIneligible))
	})

	s.Run("value must equal rent exactly", func() {
		id := s.createPolicy()
		for _, value := range []*big.Int{
			nil,
			big.NewInt(0),
			new(big.Int).Sub(rentDefault, big.NewInt(1)),
			new(big.Int).Add(rentDefault, big.NewInt(1)),
		} {
			_, err := s.service.StartLease(s.ctx, tenantAddr, id, value)
			s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		}
		s.False(s.service.IsLeaseActive(s.ctx, id, tenantAddr))
	})

	s.Run("second start while active conflicts", func() {
		id := s.createPolicy()
		s.startLease(id)
		_, err := s.service.StartLease(s.ctx, tenantAddr, id, rentDefault)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("deposit failure leaves no lease behind", func() {
		id := s.createPolicy()
		s.ledger.SetBalance(tenantAddr, big.NewInt(0))
		_, err := s.service.StartLease(s.ctx, tenantAddr, id, rentDefault)
		s.True(dErrors.HasCode(err, dErrors.CodeTransferFailed))

		_, err = s.service.GetLease(s.ctx, id, tenantAddr)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *EscrowSuite) TestOwnerConfirm() {
	s.Run("releases rent to the owner", func() {
		id := s.createPolicy()
		s.startLease(id)
		ownerBefore := s.ledger.Balance(ownerAddr)
		escrowBefore := s.ledger.Balance(escrowAddr)

		s.Require().NoError(s.service.OwnerConfirm(s.ctx, ownerAddr, id, tenantAddr))

		s.equalAmount(new(big.Int).Add(ownerBefore, rentDefault), s.ledger.Balance(ownerAddr))
		s.equalAmount(new(big.Int).Sub(escrowBefore, rentDefault), s.ledger.Balance(escrowAddr))
		lease, err := s.service.GetLease(s.ctx, id, tenantAddr)
		s.Require().NoError(err)
		s.Equal(domain.LeaseStatusReleased, lease.Status)
		s.Require().Len(s.sink.OfKind("lease_released"), 1)
	})

	s.Run("only the owner may confirm", func() {
		id := s.createPolicy()
		s.startLease(id)
		err := s.service.OwnerConfirm(s.ctx, tenantAddr, id, tenantAddr)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
		s.True(s.service.IsLeaseActive(s.ctx, id, tenantAddr))
	})

	s.Run("no active lease conflicts", func() {
		id := s.createPolicy()
		err := s.service.OwnerConfirm(s.ctx, ownerAddr, id, tenantAddr)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("confirming twice conflicts", func() {
		id := s.createPolicy()
		s.startLease(id)
		ownerBefore := s.ledger.Balance(ownerAddr)
		s.Require().NoError(s.service.OwnerConfirm(s.ctx, ownerAddr, id, tenantAddr))
		err := s.service.OwnerConfirm(s.ctx, ownerAddr, id, tenantAddr)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
		// Exactly one payout happened.
		s.equalAmount(new(big.Int).Add(ownerBefore, rentDefault), s.ledger.Balance(ownerAddr))
	})
}

func (s *EscrowSuite) TestTimeoutRefund() {
	// Subtests that move the clock restore it so later ones can still
	// create policies with a future deadline.
	baseTime := s.clock.Now()

	s.Run("before the deadline is too early", func() {
		id := s.createPolicy()
		s.startLease(id)
		s.clock.Set(time.Unix(int64(s.deadline)-1, 0))
		err := s.service.TimeoutRefund(s.ctx, tenantAddr, id)
		s.True(dErrors.HasCode(err, dErrors.CodeTooEarly))
		s.True(s.service.IsLeaseActive(s.ctx, id, tenantAddr))
		s.clock.Set(baseTime)
	})

	s.Run("the deadline instant is refundable", func() {
		id := s.createPolicy()
		s.startLease(id)
		before := s.ledger.Balance(tenantAddr)
		s.clock.Set(time.Unix(int64(s.deadline), 0))

		s.Require().NoError(s.service.TimeoutRefund(s.ctx, tenantAddr, id))

		s.equalAmount(new(big.Int).Add(before, rentDefault), s.ledger.Balance(tenantAddr))
		lease, err := s.service.GetLease(s.ctx, id, tenantAddr)
		s.Require().NoError(err)
		s.Equal(domain.LeaseStatusRefunded, lease.Status)
		s.Require().Len(s.sink.OfKind("lease_refunded"), 1)
		s.clock.Set(baseTime)
	})

	s.Run("refunding twice conflicts", func() {
		id := s.createPolicy()
		s.startLease(id)
		s.clock.Set(time.Unix(int64(s.deadline), 0))
		s.Require().NoError(s.service.TimeoutRefund(s.ctx, tenantAddr, id))
		err := s.service.TimeoutRefund(s.ctx, tenantAddr, id)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
		s.clock.Set(baseTime)
	})

	s.Run("without a lease conflicts", func() {
		id := s.createPolicy()
		err := s.service.TimeoutRefund(s.ctx, tenantAddr, id)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})
}

// slowLeaseStore adds latency to reads, widening the check-and-write window
// the way a networked store would.
type slowLeaseStore struct {
	escrow.LeaseStore
	delay time.Duration
}

func (s slowLeaseStore) Get(ctx context.Context, policyID domain.PolicyID, tenant common.Address) (domain.Lease, error) {
	time.Sleep(s.delay)
	return s.LeaseStore.Get(ctx, policyID, tenant)
}

func (s *EscrowSuite) TestConcurrentStartLeaseFundsOnce() {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	ledger := escrow.NewMemoryLedger()
	ledger.SetBalance(tenantAddr, big.NewInt(10_000))
	store := slowLeaseStore{LeaseStore: escrow.NewInMemoryLeaseStore(), delay: 2 * time.Millisecond}
	svc := escrow.NewService(s.policies, allowAll{}, store,
		ledger, escrowAddr, s.clock, events.NewEmitter(nil, log), log, nil)
	id := s.createPolicy()

	const callers = 8
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.StartLease(s.ctx, tenantAddr, id, new(big.Int).Set(rentDefault))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	started := 0
	for err := range errs {
		if err == nil {
			started++
		} else {
			s.True(dErrors.HasCode(err, dErrors.CodeConflict))
		}
	}
	// One active lease per pair: rent must be escrowed exactly once.
	s.Equal(1, started)
	s.equalAmount(rentDefault, ledger.Balance(escrowAddr))
	s.equalAmount(big.NewInt(10_000-1_000), ledger.Balance(tenantAddr))
	s.True(svc.IsLeaseActive(s.ctx, id, tenantAddr))
}

func (s *EscrowSuite) TestConcurrentOwnerConfirmPaysOnce() {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	ledger := escrow.NewMemoryLedger()
	ledger.SetBalance(tenantAddr, big.NewInt(10_000))
	store := slowLeaseStore{LeaseStore: escrow.NewInMemoryLeaseStore(), delay: 2 * time.Millisecond}
	svc := escrow.NewService(s.policies, allowAll{}, store,
		ledger, escrowAddr, s.clock, events.NewEmitter(nil, log), log, nil)
	id := s.createPolicy()
	_, err := svc.StartLease(s.ctx, tenantAddr, id, new(big.Int).Set(rentDefault))
	s.Require().NoError(err)

	const callers = 8
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- svc.OwnerConfirm(s.ctx, ownerAddr, id, tenantAddr)
		}()
	}
	wg.Wait()
	close(errs)

	released := 0
	for err := range errs {
		if err == nil {
			released++
		} else {
			s.True(dErrors.HasCode(err, dErrors.CodeConflict))
		}
	}
	s.Equal(1, released)
	s.equalAmount(rentDefault, ledger.Balance(ownerAddr))
	s.equalAmount(big.NewInt(0), ledger.Balance(escrowAddr))
}

func (s *EscrowSuite) TestResolvedPairCanStartAgain() {
	id := s.createPolicy()
	s.startLease(id)
	s.Require().NoError(s.service.OwnerConfirm(s.ctx, ownerAddr, id, tenantAddr))

	lease := s.startLease(id)
	s.Equal(domain.LeaseStatusActive, lease.Status)
}

func (s *EscrowSuite) TestPayoutFailureRestoresActiveLease() {
	id := s.createPolicy()
	s.startLease(id)

	s.ledger.OnReceive(ownerAddr, func(context.Context) error {
		return errors.New("recipient unavailable")
	})
	escrowBefore := s.ledger.Balance(escrowAddr)

	err := s.service.OwnerConfirm(s.ctx, ownerAddr, id, tenantAddr)
	s.True(dErrors.HasCode(err, dErrors.CodeTransferFailed))

	// Zero net effect: funds stay in escrow and the lease is still active.
	s.equalAmount(escrowBefore, s.ledger.Balance(escrowAddr))
	s.equalAmount(big.NewInt(0), s.ledger.Balance(ownerAddr))
	s.True(s.service.IsLeaseActive(s.ctx, id, tenantAddr))

	// The lease can still be resolved once the recipient recovers.
	s.ledger.OnReceive(ownerAddr, nil)
	s.Require().NoError(s.service.OwnerConfirm(s.ctx, ownerAddr, id, tenantAddr))
	s.equalAmount(rentDefault, s.ledger.Balance(ownerAddr))
}

func (s *EscrowSuite) TestReentrantConfirmSeesInactiveLease() {
	id := s.createPolicy()
	s.startLease(id)

	var nested error
	calls := 0
	s.ledger.OnReceive(ownerAddr, func(ctx context.Context) error {
		calls++
		if calls == 1 {
			// The owner re-enters during receipt trying to drain a second payout.
			nested = s.service.OwnerConfirm(ctx, ownerAddr, id, tenantAddr)
		}
		return nil
	})

	s.Require().NoError(s.service.OwnerConfirm(s.ctx, ownerAddr, id, tenantAddr))

	// The nested call found the lease already resolved; funds moved once.
	s.True(dErrors.HasCode(nested, dErrors.CodeConflict))
	s.equalAmount(rentDefault, s.ledger.Balance(ownerAddr))
	s.equalAmount(big.NewInt(0), s.ledger.Balance(escrowAddr))
}

func (s *EscrowSuite) TestReentrancyGuardRejectsNestedEntry() {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	ledger := escrow.NewMemoryLedger()
	ledger.SetBalance(tenantAddr, big.NewInt(10_000))
	svc := escrow.NewService(s.policies, allowAll{}, escrow.NewInMemoryLeaseStore(),
		ledger, escrowAddr, s.clock, events.NewEmitter(nil, log), log, nil,
		escrow.WithReentrancyGuard())

	id := s.createPolicy()
	_, err := svc.StartLease(s.ctx, tenantAddr, id, rentDefault)
	s.Require().NoError(err)

	var nested error
	ledger.OnReceive(ownerAddr, func(ctx context.Context) error {
		nested = svc.OwnerConfirm(ctx, ownerAddr, id, tenantAddr)
		return nil
	})

	s.Require().NoError(svc.OwnerConfirm(s.ctx, ownerAddr, id, tenantAddr))
	s.True(dErrors.HasCode(nested, dErrors.CodeReentrancy))
	s.equalAmount(big.NewInt(10_000-1_000), ledger.Balance(tenantAddr))
	s.equalAmount(rentDefault, ledger.Balance(ownerAddr))
}
