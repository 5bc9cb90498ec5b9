package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// LeaseStatus tracks a lease instantiation through its lifecycle. RELEASED
// and REFUNDED are terminal; a later StartLease for the same pair creates a
// fresh instantiation rather than reviving this one.
type LeaseStatus string

const (
	LeaseStatusActive   LeaseStatus = "ACTIVE"
	LeaseStatusReleased LeaseStatus = "RELEASED"
	LeaseStatusRefunded LeaseStatus = "REFUNDED"
)

// Lease is escrowed rent for one (policy, tenant) pair. Deadline is copied
// from the policy at start time; Amount equals the policy rent exactly.
type Lease struct {
	PolicyID  PolicyID
	Tenant    common.Address
	Amount    *big.Int
	Deadline  uint64
	Status    LeaseStatus
	StartedAt time.Time
}

// Active reports whether funds are still held for this lease.
func (l Lease) Active() bool {
	return l.Status == LeaseStatusActive
}

// Refundable reports whether the deadline has elapsed; the boundary instant
// itself is refundable.
func (l Lease) Refundable(now time.Time) bool {
	return uint64(now.Unix()) >= l.Deadline
}
