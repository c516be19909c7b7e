package valueobject

import (
	"fmt"

	"github.com/cschwartz85032/loanserve-sub001/pkg/money"
)

// Allocation is the waterfall split of a payment across receivable buckets.
// Every bucket is non-negative and the buckets sum to the payment amount.
type Allocation struct {
	Fees      money.Cents `json:"fees"`
	Interest  money.Cents `json:"interest"`
	Principal money.Cents `json:"principal"`
	Escrow    money.Cents `json:"escrow"`
	Suspense  money.Cents `json:"suspense"`
}

// Sum returns the total across all buckets.
func (a Allocation) Sum() money.Cents {
	return a.Fees + a.Interest + a.Principal + a.Escrow + a.Suspense
}

// Validate checks the allocation invariants against the payment amount.
func (a Allocation) Validate(amount money.Cents) error {
	for name, v := range map[string]money.Cents{
		"fees": a.Fees, "interest": a.Interest, "principal": a.Principal,
		"escrow": a.Escrow, "suspense": a.Suspense,
	} {
		if v < 0 {
			return fmt.Errorf("allocation bucket %s is negative: %d", name, v)
		}
	}
	if got := a.Sum(); got != amount {
		return fmt.Errorf("allocation sum %d does not equal amount %d", got, amount)
	}
	return nil
}

// SuspenseOnly returns an allocation with the entire amount in suspense,
// used when posting is deferred.
func SuspenseOnly(amount money.Cents) Allocation {
	return Allocation{Suspense: amount}
}
