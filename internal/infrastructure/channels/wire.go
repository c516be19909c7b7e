package channels

import (
	"fmt"
	"time"

	"github.com/cschwartz85032/loanserve-sub001/internal/domain/model"
	"github.com/cschwartz85032/loanserve-sub001/internal/domain/valueobject"
)

// WireTransfer carries the fields of an inbound FI-to-FI credit transfer
// (pacs.008 shape) the servicing side cares about.
type WireTransfer struct {
	MessageID       string
	EndToEndID      string
	Amount          string // decimal string as received, e.g. "2500.00"
	Currency        string
	DebtorName      string
	DebtorAccount   string
	DebtorAgentBIC  string
	CreditorAccount string
	RemittanceInfo  string
	SettlementDate  time.Time
	LoanID          string
	BankTransferID  string
}

// WireAdapter maps wire transfers to envelopes.
type WireAdapter struct {
	Provider string
}

// ToEnvelope normalizes one wire transfer. The end-to-end id becomes the
// payment reference the idempotency key derives from.
func (a WireAdapter) ToEnvelope(w WireTransfer, now time.Time) (model.PaymentEnvelope, error) {
	if w.EndToEndID == "" {
		return model.PaymentEnvelope{}, fmt.Errorf("channels: wire missing end-to-end id")
	}
	amount, err := parseAmount(w.Amount)
	if err != nil {
		return model.PaymentEnvelope{}, err
	}

	env := newEnvelope(valueobject.ChannelWire, a.Provider, w.EndToEndID, now)
	env.Borrower = model.EnvelopeBorrower{
		LoanID: w.LoanID,
		Name:   w.DebtorName,
	}
	env.Payment = model.EnvelopePayment{
		AmountCents: amount,
		Currency:    w.Currency,
		Method:      string(valueobject.ChannelWire),
		ValueDate:   w.SettlementDate.Format("2006-01-02"),
		Reference:   w.EndToEndID,
		Details: map[string]string{
			"message_id":       w.MessageID,
			"debtor_account":   w.DebtorAccount,
			"debtor_agent_bic": w.DebtorAgentBIC,
			"creditor_account": w.CreditorAccount,
			"remittance_info":  w.RemittanceInfo,
		},
	}
	if w.BankTransferID != "" {
		env.External = &model.EnvelopeExternal{BankTransferID: w.BankTransferID}
	}
	return env, nil
}
