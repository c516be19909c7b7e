package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cschwartz85032/loanserve-sub001/internal/domain/valueobject"
	"github.com/cschwartz85032/loanserve-sub001/pkg/money"
)

// LedgerEntry is a single debit or credit line. Exactly one of DebitCents and
// CreditCents is non-zero. The decimal columns the ledger table carries for
// human-readable balances are derived from the cents at the persistence edge.
type LedgerEntry struct {
	ID            uuid.UUID
	TenantID      uuid.UUID
	PaymentID     uuid.UUID
	EntryDate     time.Time
	AccountType   valueobject.AccountType
	AccountCode   valueobject.AccountCode
	DebitCents    money.Cents
	CreditCents   money.Cents
	Description   string
	CorrelationID string
	Metadata      map[string]string
}

// Validate checks the one-sided invariant of a single line.
func (e LedgerEntry) Validate() error {
	if e.DebitCents < 0 || e.CreditCents < 0 {
		return fmt.Errorf("ledger line amounts must be non-negative")
	}
	if (e.DebitCents == 0) == (e.CreditCents == 0) {
		return fmt.Errorf("ledger line must have exactly one non-zero side (debit=%d credit=%d)", e.DebitCents, e.CreditCents)
	}
	return nil
}

// EntrySet is the balanced set of ledger lines for one payment.
type EntrySet struct {
	Lines []LedgerEntry
}

// Validate checks every line and the debits-equal-credits invariant. A
// violation here is never retried; the enclosing transaction aborts.
func (s EntrySet) Validate() error {
	if len(s.Lines) < 2 {
		return fmt.Errorf("entry set needs at least a debit and a credit, got %d lines", len(s.Lines))
	}

	var debits, credits money.Cents
	for i, line := range s.Lines {
		if err := line.Validate(); err != nil {
			return fmt.Errorf("line %d: %w", i, err)
		}
		debits += line.DebitCents
		credits += line.CreditCents
	}
	if debits != credits {
		return fmt.Errorf("unbalanced entry set: debits %d != credits %d", debits, credits)
	}
	return nil
}
