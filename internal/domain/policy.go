package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// PolicyID is a sequential identifier assigned by the policy store, starting
// at 1.
type PolicyID uint64

// PolicyTerms are the owner-supplied rental eligibility requirements. Amounts
// are in the smallest currency unit; Deadline is unix seconds.
type PolicyTerms struct {
	MinAge             int64
	IncomeMultiplier   int64
	RentAmount         *big.Int
	RequireCleanRecord bool
	Deadline           uint64
}

// Policy is an immutable rental policy. Once created it is never updated or
// deleted; resolved leases keep referring to it.
type Policy struct {
	ID          PolicyID
	Terms       PolicyTerms
	Owner       common.Address
	ContentHash common.Hash
	CreatedAt   time.Time
}

// Expired reports whether the policy deadline has passed. A timestamp equal
// to the deadline counts as passed, consistently with lease refunds.
func (p Policy) Expired(now time.Time) bool {
	return uint64(now.Unix()) >= p.Terms.Deadline
}

// ContentHash computes the keccak-256 commitment over the ordered tuple
// (minAge, incomeMultiplier, rentAmount, requireCleanRecord, deadline,
// owner). Every field is encoded as a 32-byte big-endian word (the owner
// address left-padded) so the digest can be recomputed off-system from the
// same public terms.
func ContentHash(terms PolicyTerms, owner common.Address) common.Hash {
	clean := big.NewInt(0)
	if terms.RequireCleanRecord {
		clean = big.NewInt(1)
	}
	rent := terms.RentAmount
	if rent == nil {
		rent = big.NewInt(0)
	}
	return crypto.Keccak256Hash(
		word(big.NewInt(terms.MinAge)),
		word(big.NewInt(terms.IncomeMultiplier)),
		word(rent),
		word(clean),
		word(new(big.Int).SetUint64(terms.Deadline)),
		common.LeftPadBytes(owner.Bytes(), 32),
	)
}

func word(v *big.Int) []byte {
	return common.LeftPadBytes(v.Bytes(), 32)
}
