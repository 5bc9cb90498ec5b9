// Package eligibility gates access to escrow behind proof of eligibility.
// One service handles both verification strategies: succinct proofs checked
// by a pluggable verifier, and structured claims signed by a single trusted
// issuer. Both paths share replay protection and the write-once eligibility
// record.
package eligibility

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"rentgate/internal/domain"
	"rentgate/internal/eligibility/metrics"
	"rentgate/internal/events"
	"rentgate/internal/platform/clock"
	dErrors "rentgate/pkg/domain-errors"
	"rentgate/pkg/platform/sentinel"
)

// PolicyReader is the slice of the policy module the gate needs.
type PolicyReader interface {
	GetPolicy(ctx context.Context, id domain.PolicyID) (domain.Policy, error)
}

type Service struct {
	policies   PolicyReader
	verifier   ProofVerifier
	issuer     common.Address
	nullifiers NullifierStore
	records    RecordStore
	clock      clock.Clock
	emitter    *events.Emitter
	log        *slog.Logger
	metrics    *metrics.Metrics
}

// NewService wires the gate. The verifier capability and the trusted issuer
// are fixed at construction; there is no runtime strategy switching.
func NewService(
	policies PolicyReader,
	verifier ProofVerifier,
	issuer common.Address,
	nullifiers NullifierStore,
	records RecordStore,
	clk clock.Clock,
	emitter *events.Emitter,
	log *slog.Logger,
	m *metrics.Metrics,
) *Service {
	return &Service{
		policies:   policies,
		verifier:   verifier,
		issuer:     issuer,
		nullifiers: nullifiers,
		records:    records,
		clock:      clk,
		emitter:    emitter,
		log:        log,
		metrics:    m,
	}
}

// SubmitProof grants eligibility for (caller, policyID) when the proof checks
// out against the stored policy terms. The public inputs must equal the
// canonical tuple derived from the policy; a proof crafted for different
// terms fails before the verifier ever runs.
func (s *Service) SubmitProof(ctx context.Context, caller common.Address, policyID domain.PolicyID, claim domain.ProofClaim) error {
	start := time.Now()
	err := s.submitProof(ctx, caller, policyID, claim)
	s.metrics.ObserveSubmit(start)
	if err != nil {
		s.metrics.IncrementProofsRejected()
		return err
	}
	s.metrics.IncrementProofsAccepted()
	return nil
}

func (s *Service) submitProof(ctx context.Context, caller common.Address, policyID domain.PolicyID, claim domain.ProofClaim) error {
	policy, err := s.policies.GetPolicy(ctx, policyID)
	if err != nil {
		return err
	}
	if policy.Expired(s.clock.Now()) {
		return dErrors.Newf(dErrors.CodeExpired, "policy %d deadline has passed", policyID)
	}

	if len(claim.PublicInputs) != domain.ProofPublicInputs {
		return dErrors.Newf(dErrors.CodeValidation, "expected %d public inputs, got %d",
			domain.ProofPublicInputs, len(claim.PublicInputs))
	}
	high := claim.PublicInputs[domain.InputNullifierHigh]
	low := claim.PublicInputs[domain.InputNullifierLow]
	if !domain.ValidLimb(high) || !domain.ValidLimb(low) {
		return dErrors.New(dErrors.CodeValidation, "nullifier limbs must fit in 128 bits")
	}
	canonical := canonicalInputs(policy, policyID, high, low)
	for i, want := range canonical {
		if claim.PublicInputs[i] == nil || claim.PublicInputs[i].Cmp(want) != 0 {
			return dErrors.Newf(dErrors.CodeValidation, "public input %d does not match policy terms", i)
		}
	}

	ok, err := s.verifier.Verify(claim.Proof, claim.PublicInputs)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "proof verifier fault")
	}
	if !ok {
		return dErrors.New(dErrors.CodeVerificationFailed, "proof rejected")
	}

	nullifier := domain.NullifierFromLimbs(high, low)
	if err := s.consume(ctx, DomainProof, nullifier); err != nil {
		return err
	}
	return s.grant(ctx, caller, policyID, nullifier)
}

// SubmitAttestation grants eligibility for (caller, claim.PolicyID) when the
// claim is fresh, fully passed, and signed by the configured issuer.
func (s *Service) SubmitAttestation(ctx context.Context, caller common.Address, claim domain.AttestationClaim, sig []byte) error {
	start := time.Now()
	err := s.submitAttestation(ctx, caller, claim, sig)
	s.metrics.ObserveSubmit(start)
	if err != nil {
		s.metrics.IncrementAttestationsRejected()
		return err
	}
	s.metrics.IncrementAttestationsAccepted()
	return nil
}

func (s *Service) submitAttestation(ctx context.Context, caller common.Address, claim domain.AttestationClaim, sig []byte) error {
	if claim.Wallet != caller {
		return dErrors.New(dErrors.CodeUnauthorized, "claim wallet does not match caller")
	}

	policy, err := s.policies.GetPolicy(ctx, claim.PolicyID)
	if err != nil {
		return err
	}
	now := s.clock.Now()
	if policy.Expired(now) {
		return dErrors.Newf(dErrors.CodeExpired, "policy %d deadline has passed", claim.PolicyID)
	}
	if claim.Expired(now) {
		return dErrors.New(dErrors.CodeExpired, "attestation claim has expired")
	}

	if claim.PassBitmask != domain.PassAll {
		return dErrors.Newf(dErrors.CodeIneligible, "attestation passed only bitmask %#03b", claim.PassBitmask)
	}

	signer, err := recoverSigner(claim.SigningDigest(), sig)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeVerificationFailed, "malformed attestation signature")
	}
	if signer != s.issuer {
		return dErrors.New(dErrors.CodeVerificationFailed, "attestation not signed by trusted issuer")
	}

	if err := s.consume(ctx, DomainAttest, claim.Nullifier); err != nil {
		return err
	}
	return s.grant(ctx, caller, claim.PolicyID, claim.Nullifier)
}

// IsEligible reports the eligibility record for (tenant, policyID): false
// until one successful submission, true forever after.
func (s *Service) IsEligible(ctx context.Context, tenant common.Address, policyID domain.PolicyID) bool {
	ok, err := s.records.Get(ctx, tenant, policyID)
	if err != nil {
		s.log.ErrorContext(ctx, "eligibility lookup failed", "tenant", tenant.Hex(), "policy_id", policyID, "error", err)
		return false
	}
	return ok
}

func (s *Service) consume(ctx context.Context, dom NullifierDomain, nullifier common.Hash) error {
	err := s.nullifiers.Consume(ctx, dom, nullifier)
	if errors.Is(err, sentinel.ErrAlreadyUsed) {
		s.metrics.IncrementReplaysBlocked()
		return dErrors.New(dErrors.CodeReplay, "nullifier already used")
	}
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "consume nullifier")
	}
	return nil
}

func (s *Service) grant(ctx context.Context, tenant common.Address, policyID domain.PolicyID, nullifier common.Hash) error {
	if err := s.records.Set(ctx, tenant, policyID); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "record eligibility")
	}
	s.log.InfoContext(ctx, "eligibility granted",
		"tenant", tenant.Hex(),
		"policy_id", policyID,
		"nullifier", nullifier.Hex(),
	)
	s.emitter.Emit(ctx, events.Eligible{Tenant: tenant, PolicyID: policyID, Nullifier: nullifier})
	return nil
}

// canonicalInputs derives the tuple a valid proof for this policy must have
// been proven against. The nullifier limbs are claim-specific and carried
// through unchanged.
func canonicalInputs(policy domain.Policy, policyID domain.PolicyID, high, low *big.Int) []*big.Int {
	clean := big.NewInt(0)
	if policy.Terms.RequireCleanRecord {
		clean = big.NewInt(1)
	}
	return []*big.Int{
		big.NewInt(policy.Terms.MinAge),
		big.NewInt(policy.Terms.IncomeMultiplier),
		new(big.Int).Set(policy.Terms.RentAmount),
		clean,
		new(big.Int).SetUint64(uint64(policyID)),
		high,
		low,
	}
}

func recoverSigner(digest common.Hash, sig []byte) (common.Address, error) {
	pub, err := crypto.SigToPub(digest.Bytes(), sig)
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(*pub), nil
}
