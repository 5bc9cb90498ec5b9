package domain

import (
	"encoding/binary"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Number of public inputs a proof claim must carry, in order:
// minAge, incomeMultiplier, rentAmount, requireCleanRecord (0/1), policyID,
// nullifier high limb, nullifier low limb.
const ProofPublicInputs = 7

// Positions of the nullifier limbs inside the public input tuple.
const (
	InputNullifierHigh = 5
	InputNullifierLow  = 6
)

// ProofClaim is a succinct proof of eligibility plus the public inputs it was
// proven against. The proof bytes are opaque to the gate; only the configured
// verifier interprets them.
type ProofClaim struct {
	Proof        []byte
	PublicInputs []*big.Int
}

// PassBitmask flags set by the attestation issuer, one bit per check.
const (
	PassAge         uint8 = 1 << 0
	PassIncome      uint8 = 1 << 1
	PassCleanRecord uint8 = 1 << 2

	// PassAll is the only bitmask the gate accepts. Partial passes are
	// rejected outright, never partially credited.
	PassAll = PassAge | PassIncome | PassCleanRecord
)

// AttestationClaim is a structured claim signed by the trusted issuer. Expiry
// is unix seconds and bounds how long the signed claim may be submitted.
type AttestationClaim struct {
	Wallet      common.Address
	PolicyID    PolicyID
	Expiry      uint64
	Nullifier   common.Hash
	PassBitmask uint8
}

// Expired reports whether the claim itself has lapsed. As with policy
// deadlines, equal-to-expiry counts as expired.
func (c AttestationClaim) Expired(now time.Time) bool {
	return uint64(now.Unix()) >= c.Expiry
}

// attestationDomain separates attestation digests from any other message the
// issuer key might ever sign.
const attestationDomain = "rentgate/attestation/v1"

// SigningDigest is the keccak-256 digest the issuer signs: the domain tag
// followed by the claim fields in declaration order, fixed-width encoded.
func (c AttestationClaim) SigningDigest() common.Hash {
	var policyID, expiry [8]byte
	binary.BigEndian.PutUint64(policyID[:], uint64(c.PolicyID))
	binary.BigEndian.PutUint64(expiry[:], c.Expiry)
	return crypto.Keccak256Hash(
		[]byte(attestationDomain),
		c.Wallet.Bytes(),
		policyID[:],
		expiry[:],
		c.Nullifier.Bytes(),
		[]byte{c.PassBitmask},
	)
}

// NullifierFromLimbs reassembles a 32-byte nullifier from the two 128-bit
// limbs carried in a proof's public inputs: value = high<<128 | low.
func NullifierFromLimbs(high, low *big.Int) common.Hash {
	v := new(big.Int).Lsh(high, 128)
	v.Or(v, low)
	return common.BigToHash(v)
}

// limbBound is 2^128; each nullifier limb must be below it.
var limbBound = new(big.Int).Lsh(big.NewInt(1), 128)

// ValidLimb reports whether v fits in 128 bits and is non-negative.
func ValidLimb(v *big.Int) bool {
	return v != nil && v.Sign() >= 0 && v.Cmp(limbBound) < 0
}
