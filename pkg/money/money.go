package money

import (
	"fmt"
	"regexp"

	"github.com/shopspring/decimal"
)

var currencyCodeRe = regexp.MustCompile(`^[A-Z]{3}$`)

// Currency is an ISO 4217 currency code.
type Currency struct {
	code string
}

// NewCurrency creates a Currency after validating the code is exactly 3 uppercase letters.
func NewCurrency(code string) (Currency, error) {
	if !currencyCodeRe.MatchString(code) {
		return Currency{}, fmt.Errorf("invalid currency code %q: must be exactly 3 uppercase letters", code)
	}
	return Currency{code: code}, nil
}

// MustCurrency creates a Currency and panics on error. Intended for package-level
// variable initialization only.
func MustCurrency(code string) Currency {
	c, err := NewCurrency(code)
	if err != nil {
		panic(err)
	}
	return c
}

// Code returns the ISO 4217 currency code.
func (c Currency) Code() string {
	return c.code
}

// String returns the currency code.
func (c Currency) String() string {
	return c.code
}

// USD is the only currency the servicing core accepts on hot paths.
var USD = MustCurrency("USD")

// Cents is a monetary amount in integer minor units. All pipeline arithmetic
// happens in Cents; decimal values exist only at the ledger presentation edge.
type Cents int64

// FromDecimal converts a decimal dollar amount to Cents, rounding half-up at
// two fractional digits.
func FromDecimal(d decimal.Decimal) Cents {
	return Cents(d.Round(2).Mul(decimal.NewFromInt(100)).IntPart())
}

// Decimal converts Cents to a decimal dollar amount with two fractional digits.
func (c Cents) Decimal() decimal.Decimal {
	return decimal.New(int64(c), -2)
}

// String renders the amount as a dollar string, e.g. "1500.00".
func (c Cents) String() string {
	return c.Decimal().StringFixed(2)
}

// Abs returns the absolute value.
func (c Cents) Abs() Cents {
	if c < 0 {
		return -c
	}
	return c
}

// Split divides amount proportionally across weights using largest-remainder
// assignment: each share is floored, then leftover cents go to the shares with
// the largest fractional remainders, ties broken by position. The shares always
// sum to amount and no share is negative. Bankers' rounding is deliberately not
// used here: it breaks penny-level reconciliation against bank totals.
func Split(amount Cents, weights []int64) ([]Cents, error) {
	if amount < 0 {
		return nil, fmt.Errorf("money: cannot split negative amount %d", amount)
	}
	if len(weights) == 0 {
		return nil, fmt.Errorf("money: no weights to split across")
	}

	var total int64
	for i, w := range weights {
		if w < 0 {
			return nil, fmt.Errorf("money: negative weight %d at index %d", w, i)
		}
		total += w
	}
	if total == 0 {
		out := make([]Cents, len(weights))
		return out, nil
	}

	shares := make([]Cents, len(weights))
	remainders := make([]int64, len(weights))
	var assigned Cents
	for i, w := range weights {
		num := int64(amount) * w
		shares[i] = Cents(num / total)
		remainders[i] = num % total
		assigned += shares[i]
	}

	// Hand out the leftover cents, largest remainder first.
	for leftover := amount - assigned; leftover > 0; leftover-- {
		best := -1
		var bestRem int64 = -1
		for i, r := range remainders {
			if r > bestRem {
				best = i
				bestRem = r
			}
		}
		shares[best]++
		remainders[best] = -1
	}

	return shares, nil
}
