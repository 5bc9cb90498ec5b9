// Package zkp holds the Groth16 side of proof-mode eligibility: the circuit
// shape shared with the proving toolchain and the verifier the gate consumes.
// Proving itself happens off-system.
package zkp

import (
	"math/big"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/hash/mimc"
)

func Curve() ecc.ID { return ecc.BN254 }

// EligibilityCircuit proves a tenant satisfies a policy without revealing
// age, income, or record status. The public inputs mirror the canonical
// tuple the gate checks against the stored policy; the nullifier limbs bind
// the proof to a one-time secret so it cannot be replayed.
type EligibilityCircuit struct {
	MinAge             frontend.Variable `gnark:",public"`
	IncomeMultiplier   frontend.Variable `gnark:",public"`
	RentAmount         frontend.Variable `gnark:",public"`
	RequireCleanRecord frontend.Variable `gnark:",public"`
	PolicyID           frontend.Variable `gnark:",public"`
	NullifierHigh      frontend.Variable `gnark:",public"`
	NullifierLow       frontend.Variable `gnark:",public"`

	Age             frontend.Variable
	AnnualIncome    frontend.Variable
	CleanRecord     frontend.Variable
	NullifierSecret frontend.Variable
}

func (c *EligibilityCircuit) Define(api frontend.API) error {
	api.AssertIsLessOrEqual(c.MinAge, c.Age)
	api.AssertIsLessOrEqual(api.Mul(c.IncomeMultiplier, c.RentAmount), c.AnnualIncome)

	api.AssertIsBoolean(c.CleanRecord)
	api.AssertIsBoolean(c.RequireCleanRecord)
	// A required clean record forces the private flag to 1.
	api.AssertIsEqual(api.Mul(c.RequireCleanRecord, api.Sub(1, c.CleanRecord)), 0)

	// Nullifier = MiMC(secret, policyID), split into two 128-bit limbs.
	h, err := mimc.NewMiMC(api)
	if err != nil {
		return err
	}
	h.Write(c.NullifierSecret, c.PolicyID)
	shift := new(big.Int).Lsh(big.NewInt(1), 128)
	api.AssertIsEqual(api.Add(api.Mul(c.NullifierHigh, shift), c.NullifierLow), h.Sum())
	return nil
}
