package money_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cschwartz85032/loanserve-sub001/pkg/money"
)

func TestCents_DecimalRoundTrip(t *testing.T) {
	c := money.Cents(150075)
	assert.Equal(t, "1500.75", c.String())
	assert.Equal(t, c, money.FromDecimal(c.Decimal()))
}

func TestFromDecimal_RoundsHalfUp(t *testing.T) {
	assert.Equal(t, money.Cents(101), money.FromDecimal(decimal.RequireFromString("1.005")))
	assert.Equal(t, money.Cents(100), money.FromDecimal(decimal.RequireFromString("1.004")))
}

func TestSplit_ExactProportions(t *testing.T) {
	shares, err := money.Split(10000, []int64{1, 1, 2})
	require.NoError(t, err)
	assert.Equal(t, []money.Cents{2500, 2500, 5000}, shares)
}

func TestSplit_LargestRemainder(t *testing.T) {
	// 100 cents across three equal weights: two shares get the extra cents.
	shares, err := money.Split(100, []int64{1, 1, 1})
	require.NoError(t, err)

	var sum money.Cents
	for _, s := range shares {
		sum += s
	}
	assert.Equal(t, money.Cents(100), sum)
	assert.ElementsMatch(t, []money.Cents{34, 33, 33}, shares)
}

func TestSplit_AlwaysSumsToAmount(t *testing.T) {
	weights := []int64{333333, 333333, 333334}
	for _, amount := range []money.Cents{1, 7, 99, 100001, 123456789} {
		shares, err := money.Split(amount, weights)
		require.NoError(t, err)

		var sum money.Cents
		for _, s := range shares {
			sum += s
			assert.GreaterOrEqual(t, int64(s), int64(0))
		}
		assert.Equal(t, amount, sum, "amount %d", amount)
	}
}

func TestSplit_ZeroTotalWeight(t *testing.T) {
	shares, err := money.Split(500, []int64{0, 0})
	require.NoError(t, err)
	assert.Equal(t, []money.Cents{0, 0}, shares)
}

func TestSplit_Errors(t *testing.T) {
	_, err := money.Split(-1, []int64{1})
	assert.Error(t, err)

	_, err = money.Split(100, nil)
	assert.Error(t, err)

	_, err = money.Split(100, []int64{1, -2})
	assert.Error(t, err)
}

func TestNewCurrency(t *testing.T) {
	usd, err := money.NewCurrency("USD")
	require.NoError(t, err)
	assert.Equal(t, "USD", usd.Code())

	_, err = money.NewCurrency("usd")
	assert.Error(t, err)
	_, err = money.NewCurrency("USDT")
	assert.Error(t, err)
}
