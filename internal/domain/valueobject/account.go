package valueobject

import "fmt"

// AccountType is the accounting classification of a ledger account.
type AccountType string

const (
	AccountAsset     AccountType = "asset"
	AccountLiability AccountType = "liability"
	AccountRevenue   AccountType = "revenue"
	AccountExpense   AccountType = "expense"
	AccountEquity    AccountType = "equity"
)

// AccountCode identifies one account in the servicing chart of accounts.
type AccountCode string

const (
	AccountCashACH      AccountCode = "1010-CASH-ACH"
	AccountCashWire     AccountCode = "1011-CASH-WIRE"
	AccountCashCheck    AccountCode = "1012-CASH-CHECK"
	AccountCashRealtime AccountCode = "1013-CASH-RTP"
	AccountCashCard     AccountCode = "1014-CASH-CARD"
	AccountCashBook     AccountCode = "1015-CASH-BOOK"

	AccountLoanReceivable  AccountCode = "1200-LOAN-RECEIVABLE"
	AccountInterestIncome  AccountCode = "4100-INTEREST-INCOME"
	AccountFeeIncome       AccountCode = "4200-FEE-INCOME"
	AccountEscrowLiability AccountCode = "2300-ESCROW-LIABILITY"
	AccountSuspense        AccountCode = "2400-SUSPENSE"
)

var accountTypes = map[AccountCode]AccountType{
	AccountCashACH: AccountAsset, AccountCashWire: AccountAsset,
	AccountCashCheck: AccountAsset, AccountCashRealtime: AccountAsset,
	AccountCashCard: AccountAsset, AccountCashBook: AccountAsset,
	AccountLoanReceivable:  AccountAsset,
	AccountInterestIncome:  AccountRevenue,
	AccountFeeIncome:       AccountRevenue,
	AccountEscrowLiability: AccountLiability,
	AccountSuspense:        AccountLiability,
}

// Type returns the accounting classification of the code.
func (c AccountCode) Type() (AccountType, error) {
	t, ok := accountTypes[c]
	if !ok {
		return "", fmt.Errorf("unknown account code %q", c)
	}
	return t, nil
}

func (c AccountCode) String() string { return string(c) }
