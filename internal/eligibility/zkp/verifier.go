package zkp

import (
	"bytes"
	"fmt"
	"math/big"
	"os"

	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/frontend"
)

// Groth16Verifier checks succinct proofs against a fixed verifying key. The
// key is produced once by the proving toolchain's setup and shipped as a
// file.
type Groth16Verifier struct {
	vk groth16.VerifyingKey
}

func NewGroth16Verifier(vk groth16.VerifyingKey) *Groth16Verifier {
	return &Groth16Verifier{vk: vk}
}

// LoadVerifyingKey reads a serialized verifying key from disk.
func LoadVerifyingKey(path string) (groth16.VerifyingKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read verifying key: %w", err)
	}
	vk := groth16.NewVerifyingKey(Curve())
	if _, err := vk.ReadFrom(bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("decode verifying key: %w", err)
	}
	return vk, nil
}

// Verify deserializes the proof, rebuilds the public-only witness from the
// canonical input tuple, and runs the pairing check. Malformed or rejected
// proofs answer false without error; only infrastructure faults error.
func (v *Groth16Verifier) Verify(proofBytes []byte, publicInputs []*big.Int) (bool, error) {
	proof := groth16.NewProof(Curve())
	if _, err := proof.ReadFrom(bytes.NewReader(proofBytes)); err != nil {
		return false, nil
	}

	if len(publicInputs) != 7 {
		return false, nil
	}
	assign := &EligibilityCircuit{
		MinAge:             publicInputs[0],
		IncomeMultiplier:   publicInputs[1],
		RentAmount:         publicInputs[2],
		RequireCleanRecord: publicInputs[3],
		PolicyID:           publicInputs[4],
		NullifierHigh:      publicInputs[5],
		NullifierLow:       publicInputs[6],
	}
	wit, err := frontend.NewWitness(assign, Curve().ScalarField(), frontend.PublicOnly())
	if err != nil {
		return false, fmt.Errorf("build public witness: %w", err)
	}

	if err := groth16.Verify(proof, v.vk, wit); err != nil {
		return false, nil
	}
	return true, nil
}
