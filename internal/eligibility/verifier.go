package eligibility

//go:generate mockgen -source=verifier.go -destination=mocks/mocks.go -package=mocks ProofVerifier

import (
	"log/slog"
	"math/big"
)

// ProofVerifier is the swappable capability behind proof-mode submissions:
// given an opaque proof and its public inputs, answer pass/fail. A false
// answer with a nil error is a rejected proof; an error is an infrastructure
// fault.
type ProofVerifier interface {
	Verify(proof []byte, publicInputs []*big.Int) (bool, error)
}

// InsecureStubVerifier accepts every proof. It exists for demos and local
// wiring only: with it installed, anyone can mark themselves eligible. The
// constructor and every call log a warning so it cannot sit in a deployment
// unnoticed.
type InsecureStubVerifier struct {
	log *slog.Logger
}

// NewInsecureStubVerifier builds the always-pass verifier.
func NewInsecureStubVerifier(log *slog.Logger) *InsecureStubVerifier {
	log.Warn("INSECURE stub proof verifier installed: every proof will be accepted, eligibility guarantees are void")
	return &InsecureStubVerifier{log: log}
}

func (v *InsecureStubVerifier) Verify(_ []byte, _ []*big.Int) (bool, error) {
	v.log.Warn("INSECURE stub proof verifier accepted a proof without verification")
	return true, nil
}
