package service

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cschwartz85032/loanserve-sub001/internal/domain/model"
	"github.com/cschwartz85032/loanserve-sub001/internal/domain/valueobject"
	"github.com/cschwartz85032/loanserve-sub001/pkg/money"
)

// PostingBuilder turns an accepted payment into its balanced ledger lines:
// one asset debit against the channel's cash account and one credit per
// non-zero allocation bucket. When posting is deferred the full amount
// credits suspense and the notional buckets wait for rematching.
type PostingBuilder struct{}

// NewPostingBuilder builds the builder.
func NewPostingBuilder() *PostingBuilder {
	return &PostingBuilder{}
}

// Build returns the validated entry set for one payment.
func (b *PostingBuilder) Build(
	tenantID, paymentID uuid.UUID,
	channel valueobject.Channel,
	amount money.Cents,
	alloc valueobject.Allocation,
	postingReady bool,
	correlationID string,
	entryDate time.Time,
) (model.EntrySet, error) {
	if err := alloc.Validate(amount); err != nil {
		return model.EntrySet{}, fmt.Errorf("posting: %w", err)
	}

	cash := channel.CashAccount()
	set := model.EntrySet{}
	set.Lines = append(set.Lines, b.line(tenantID, paymentID, cash, amount, 0,
		fmt.Sprintf("cash received via %s", channel), correlationID, entryDate))

	credits := alloc
	if !postingReady {
		credits = valueobject.SuspenseOnly(amount)
	}

	type creditLine struct {
		account valueobject.AccountCode
		amount  money.Cents
		desc    string
	}
	for _, c := range []creditLine{
		{valueobject.AccountFeeIncome, credits.Fees, "fee income"},
		{valueobject.AccountInterestIncome, credits.Interest, "interest income"},
		{valueobject.AccountLoanReceivable, credits.Principal, "principal applied"},
		{valueobject.AccountEscrowLiability, credits.Escrow, "escrow funding"},
		{valueobject.AccountSuspense, credits.Suspense, "suspense holding"},
	} {
		if c.amount == 0 {
			continue
		}
		set.Lines = append(set.Lines, b.line(tenantID, paymentID, c.account, 0, c.amount,
			c.desc, correlationID, entryDate))
	}

	if err := set.Validate(); err != nil {
		return model.EntrySet{}, fmt.Errorf("posting: %w", err)
	}
	return set, nil
}

// BuildReversal mirrors the original posting: the allocation buckets are
// debited and the channel cash account is credited back.
func (b *PostingBuilder) BuildReversal(
	tenantID, paymentID uuid.UUID,
	channel valueobject.Channel,
	amount money.Cents,
	alloc valueobject.Allocation,
	correlationID string,
	entryDate time.Time,
) (model.EntrySet, error) {
	if err := alloc.Validate(amount); err != nil {
		return model.EntrySet{}, fmt.Errorf("posting: %w", err)
	}

	set := model.EntrySet{}

	type debitLine struct {
		account valueobject.AccountCode
		amount  money.Cents
		desc    string
	}
	for _, d := range []debitLine{
		{valueobject.AccountFeeIncome, alloc.Fees, "fee income reversed"},
		{valueobject.AccountInterestIncome, alloc.Interest, "interest income reversed"},
		{valueobject.AccountLoanReceivable, alloc.Principal, "principal reinstated"},
		{valueobject.AccountEscrowLiability, alloc.Escrow, "escrow unwound"},
		{valueobject.AccountSuspense, alloc.Suspense, "suspense released"},
	} {
		if d.amount == 0 {
			continue
		}
		set.Lines = append(set.Lines, b.line(tenantID, paymentID, d.account, d.amount, 0,
			d.desc, correlationID, entryDate))
	}

	set.Lines = append(set.Lines, b.line(tenantID, paymentID, channel.CashAccount(), 0, amount,
		fmt.Sprintf("cash returned via %s", channel), correlationID, entryDate))

	if err := set.Validate(); err != nil {
		return model.EntrySet{}, fmt.Errorf("posting: %w", err)
	}
	return set, nil
}

func (b *PostingBuilder) line(
	tenantID, paymentID uuid.UUID,
	account valueobject.AccountCode,
	debit, credit money.Cents,
	desc, correlationID string,
	entryDate time.Time,
) model.LedgerEntry {
	accountType, _ := account.Type()
	return model.LedgerEntry{
		ID:            uuid.New(),
		TenantID:      tenantID,
		PaymentID:     paymentID,
		EntryDate:     entryDate,
		AccountType:   accountType,
		AccountCode:   account,
		DebitCents:    debit,
		CreditCents:   credit,
		Description:   desc,
		CorrelationID: correlationID,
	}
}
