package service

import (
	"fmt"
	"sort"

	"github.com/cschwartz85032/loanserve-sub001/internal/domain/valueobject"
	"github.com/cschwartz85032/loanserve-sub001/pkg/money"
)

// BucketKind names one receivable bucket in the waterfall.
type BucketKind string

const (
	BucketFees      BucketKind = "fees"
	BucketInterest  BucketKind = "interest"
	BucketPrincipal BucketKind = "principal"
	BucketEscrow    BucketKind = "escrow"
)

// BucketNeed is the outstanding amount one bucket can absorb, with its
// waterfall priority. Lower priority numbers are consumed first; buckets
// sharing a priority split proportionally.
type BucketNeed struct {
	Kind     BucketKind
	Need     money.Cents
	Priority int
}

// ReceivableState is the loan's outstanding position the allocator runs
// against.
type ReceivableState struct {
	OutstandingFees     money.Cents
	OutstandingInterest money.Cents
	ScheduledPrincipal  money.Cents
	EscrowRequirement   money.Cents
}

// WaterfallAllocator computes the allocation tuple for a payment. It is pure:
// no I/O, all arithmetic in integer cents.
type WaterfallAllocator struct {
	order []BucketKind
}

// NewWaterfallAllocator builds an allocator with the given bucket order.
// An empty order means the default fees, interest, principal, escrow.
func NewWaterfallAllocator(order ...BucketKind) *WaterfallAllocator {
	if len(order) == 0 {
		order = []BucketKind{BucketFees, BucketInterest, BucketPrincipal, BucketEscrow}
	}
	return &WaterfallAllocator{order: order}
}

// Allocate consumes amount bucket by bucket in priority order. Any residual
// after all buckets lands in suspense. The result always satisfies
// sum(buckets) == amount with every bucket non-negative.
func (a *WaterfallAllocator) Allocate(amount money.Cents, state ReceivableState) (valueobject.Allocation, error) {
	needs := make([]BucketNeed, 0, len(a.order))
	for i, kind := range a.order {
		needs = append(needs, BucketNeed{Kind: kind, Need: state.need(kind), Priority: i + 1})
	}
	return a.AllocateNeeds(amount, needs)
}

// AllocateNeeds runs the waterfall over explicit bucket needs, honoring
// shared priorities.
func (a *WaterfallAllocator) AllocateNeeds(amount money.Cents, needs []BucketNeed) (valueobject.Allocation, error) {
	if amount < 0 {
		return valueobject.Allocation{}, fmt.Errorf("waterfall: negative amount %d", amount)
	}
	for _, n := range needs {
		if n.Need < 0 {
			return valueobject.Allocation{}, fmt.Errorf("waterfall: negative need for bucket %s", n.Kind)
		}
	}

	// Stable sort keeps the declared order within a priority tier, which the
	// largest-remainder tie-break depends on.
	sorted := append([]BucketNeed{}, needs...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Priority < sorted[j].Priority })

	var alloc valueobject.Allocation
	remaining := amount

	for start := 0; start < len(sorted) && remaining > 0; {
		end := start + 1
		for end < len(sorted) && sorted[end].Priority == sorted[start].Priority {
			end++
		}
		tier := sorted[start:end]

		var tierNeed money.Cents
		for _, n := range tier {
			tierNeed += n.Need
		}
		take := remaining
		if tierNeed < take {
			take = tierNeed
		}

		if take > 0 {
			if len(tier) == 1 {
				alloc = addBucket(alloc, tier[0].Kind, take)
			} else {
				weights := make([]int64, len(tier))
				for i, n := range tier {
					weights[i] = int64(n.Need)
				}
				shares, err := money.Split(take, weights)
				if err != nil {
					return valueobject.Allocation{}, fmt.Errorf("waterfall: split tier %d: %w", tier[0].Priority, err)
				}
				for i, share := range shares {
					alloc = addBucket(alloc, tier[i].Kind, share)
				}
			}
			remaining -= take
		}
		start = end
	}

	alloc.Suspense = remaining

	if err := alloc.Validate(amount); err != nil {
		return valueobject.Allocation{}, fmt.Errorf("waterfall: %w", err)
	}
	return alloc, nil
}

func (s ReceivableState) need(kind BucketKind) money.Cents {
	switch kind {
	case BucketFees:
		return s.OutstandingFees
	case BucketInterest:
		return s.OutstandingInterest
	case BucketPrincipal:
		return s.ScheduledPrincipal
	case BucketEscrow:
		return s.EscrowRequirement
	default:
		return 0
	}
}

func addBucket(a valueobject.Allocation, kind BucketKind, amount money.Cents) valueobject.Allocation {
	switch kind {
	case BucketFees:
		a.Fees += amount
	case BucketInterest:
		a.Interest += amount
	case BucketPrincipal:
		a.Principal += amount
	case BucketEscrow:
		a.Escrow += amount
	}
	return a
}
