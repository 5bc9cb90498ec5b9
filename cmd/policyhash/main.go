// policyhash recomputes a policy content hash off-system so auditors can
// check the stored commitment against the published terms.
package main

import (
	"fmt"
	"log"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"rentgate/internal/domain"
)

func main() {
	var (
		minAge       int64
		multiplier   int64
		rentAmount   string
		cleanRecord  bool
		deadline     uint64
		ownerAddress string
	)

	cmd := &cobra.Command{
		Use:   "policyhash",
		Short: "Compute the content hash for a set of rental policy terms",
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()
			if ownerAddress == "" {
				ownerAddress = os.Getenv("RENTGATE_OWNER")
			}
			if !common.IsHexAddress(ownerAddress) {
				return fmt.Errorf("--owner must be a hex address")
			}
			rent, ok := new(big.Int).SetString(rentAmount, 10)
			if !ok {
				return fmt.Errorf("--rent must be a base-10 integer")
			}

			terms := domain.PolicyTerms{
				MinAge:             minAge,
				IncomeMultiplier:   multiplier,
				RentAmount:         rent,
				RequireCleanRecord: cleanRecord,
				Deadline:           deadline,
			}
			hash := domain.ContentHash(terms, common.HexToAddress(ownerAddress))
			fmt.Println(hash.Hex())
			return nil
		},
	}

	cmd.Flags().Int64Var(&minAge, "min-age", 0, "Minimum tenant age")
	cmd.Flags().Int64Var(&multiplier, "income-multiplier", 0, "Required income as a multiple of rent")
	cmd.Flags().StringVar(&rentAmount, "rent", "", "Rent amount in the smallest currency unit")
	cmd.Flags().BoolVar(&cleanRecord, "require-clean-record", false, "Whether a clean record is required")
	cmd.Flags().Uint64Var(&deadline, "deadline", 0, "Policy deadline as a unix timestamp")
	cmd.Flags().StringVar(&ownerAddress, "owner", "", "Policy owner address (defaults to RENTGATE_OWNER)")
	_ = cmd.MarkFlagRequired("rent")
	_ = cmd.MarkFlagRequired("deadline")

	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
