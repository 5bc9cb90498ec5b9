// Package events defines the signals the core emits after committed state
// changes and the sinks that fan them out. Emission is post-commit and
// best-effort: a sink failure never aborts the operation that produced the
// signal, it is logged and dropped.
package events

import (
	"context"
	"log/slog"
	"math/big"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"rentgate/internal/domain"
)

// Signal is a committed state change worth announcing. Key is the record
// key durable sinks partition by; every signal keys by its policy so
// per-policy ordering survives partitioning.
type Signal interface {
	Kind() string
	Key() []byte
}

func policyKey(id domain.PolicyID) []byte {
	return []byte(strconv.FormatUint(uint64(id), 10))
}

type PolicyCreated struct {
	PolicyID    domain.PolicyID `json:"policy_id"`
	Owner       common.Address  `json:"owner"`
	ContentHash common.Hash     `json:"content_hash"`
}

func (PolicyCreated) Kind() string  { return "policy_created" }
func (e PolicyCreated) Key() []byte { return policyKey(e.PolicyID) }

type Eligible struct {
	Tenant    common.Address  `json:"tenant"`
	PolicyID  domain.PolicyID `json:"policy_id"`
	Nullifier common.Hash     `json:"nullifier"`
}

func (Eligible) Kind() string  { return "eligible" }
func (e Eligible) Key() []byte { return policyKey(e.PolicyID) }

type LeaseStarted struct {
	PolicyID domain.PolicyID `json:"policy_id"`
	Tenant   common.Address  `json:"tenant"`
	Amount   *big.Int        `json:"amount"`
	Deadline uint64          `json:"deadline"`
}

func (LeaseStarted) Kind() string  { return "lease_started" }
func (e LeaseStarted) Key() []byte { return policyKey(e.PolicyID) }

type LeaseReleased struct {
	PolicyID domain.PolicyID `json:"policy_id"`
	Tenant   common.Address  `json:"tenant"`
	Amount   *big.Int        `json:"amount"`
}

func (LeaseReleased) Kind() string  { return "lease_released" }
func (e LeaseReleased) Key() []byte { return policyKey(e.PolicyID) }

type LeaseRefunded struct {
	PolicyID domain.PolicyID `json:"policy_id"`
	Tenant   common.Address  `json:"tenant"`
	Amount   *big.Int        `json:"amount"`
}

func (LeaseRefunded) Kind() string  { return "lease_refunded" }
func (e LeaseRefunded) Key() []byte { return policyKey(e.PolicyID) }

// Sink receives signals. Implementations must tolerate concurrent Emit calls.
type Sink interface {
	Emit(ctx context.Context, sig Signal) error
}

// Emitter wraps a Sink with the drop-and-log policy services rely on.
type Emitter struct {
	sink Sink
	log  *slog.Logger
}

func NewEmitter(sink Sink, log *slog.Logger) *Emitter {
	return &Emitter{sink: sink, log: log}
}

// Emit forwards the signal, logging failures instead of propagating them.
func (e *Emitter) Emit(ctx context.Context, sig Signal) {
	if e == nil || e.sink == nil {
		return
	}
	if err := e.sink.Emit(ctx, sig); err != nil {
		e.log.WarnContext(ctx, "dropping signal", "kind", sig.Kind(), "error", err)
	}
}

// Envelope is the serialized form sinks publish.
type Envelope struct {
	Kind string    `json:"kind"`
	At   time.Time `json:"at"`
	Data Signal    `json:"data"`
}
