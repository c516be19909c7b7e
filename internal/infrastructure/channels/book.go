package channels

import (
	"fmt"
	"time"

	"github.com/cschwartz85032/loanserve-sub001/internal/domain/model"
	"github.com/cschwartz85032/loanserve-sub001/internal/domain/valueobject"
	"github.com/cschwartz85032/loanserve-sub001/pkg/money"
)

// BookTransfer is an internal ledger-to-ledger movement, e.g. a suspense
// rematch or an inter-account sweep.
type BookTransfer struct {
	TransferID    string
	AmountCents   money.Cents
	TransferDate  time.Time
	LoanID        string
	Memo          string
	CorrelationID string
}

// BookAdapter maps book transfers to envelopes.
type BookAdapter struct{}

// ToEnvelope normalizes one book transfer.
func (BookAdapter) ToEnvelope(t BookTransfer, now time.Time) (model.PaymentEnvelope, error) {
	if t.TransferID == "" {
		return model.PaymentEnvelope{}, fmt.Errorf("channels: book transfer missing transfer id")
	}

	env := newEnvelope(valueobject.ChannelBook, "internal", t.CorrelationID, now)
	env.Borrower = model.EnvelopeBorrower{LoanID: t.LoanID}
	env.Payment = model.EnvelopePayment{
		AmountCents: t.AmountCents,
		Currency:    "USD",
		Method:      string(valueobject.ChannelBook),
		ValueDate:   t.TransferDate.Format("2006-01-02"),
		Reference:   t.TransferID,
		Details: map[string]string{
			"memo": t.Memo,
		},
	}
	return env, nil
}
