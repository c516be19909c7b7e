package channels

import (
	"fmt"
	"time"

	"github.com/cschwartz85032/loanserve-sub001/internal/domain/model"
	"github.com/cschwartz85032/loanserve-sub001/internal/domain/valueobject"
	"github.com/cschwartz85032/loanserve-sub001/pkg/money"
)

// ACHRecord is one entry from an ACH settlement file.
type ACHRecord struct {
	TraceNumber   string
	RoutingNumber string
	AccountMask   string
	CompanyName   string
	AmountCents   money.Cents
	EffectiveDate time.Time
	LoanID        string
	// ReturnCode is set on return entries (R01, R02, ...).
	ReturnCode    string
	CorrelationID string
}

// ACHAdapter maps ACH records to envelopes.
type ACHAdapter struct {
	Provider string
}

// ToEnvelope normalizes one ACH record.
func (a ACHAdapter) ToEnvelope(rec ACHRecord, now time.Time) (model.PaymentEnvelope, error) {
	if rec.TraceNumber == "" {
		return model.PaymentEnvelope{}, fmt.Errorf("channels: ach record missing trace number")
	}

	env := newEnvelope(valueobject.ChannelACH, a.Provider, rec.CorrelationID, now)
	env.Borrower = model.EnvelopeBorrower{
		LoanID: rec.LoanID,
		Name:   rec.CompanyName,
	}
	details := map[string]string{
		"routing_number": rec.RoutingNumber,
		"account_mask":   rec.AccountMask,
		"trace_number":   rec.TraceNumber,
	}
	if rec.ReturnCode != "" {
		details["return_code"] = rec.ReturnCode
		details["is_return"] = "true"
	}
	env.Payment = model.EnvelopePayment{
		AmountCents: rec.AmountCents,
		Currency:    "USD",
		Method:      string(valueobject.ChannelACH),
		ValueDate:   rec.EffectiveDate.Format("2006-01-02"),
		Reference:   rec.TraceNumber,
		Details:     details,
	}
	return env, nil
}
