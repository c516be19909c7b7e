package model

import (
	"time"

	"github.com/cschwartz85032/loanserve-sub001/internal/domain/valueobject"
	"github.com/cschwartz85032/loanserve-sub001/pkg/money"
)

// EnvelopeSchema is the wire schema identifier for payment envelopes.
const EnvelopeSchema = "loanserve.payments.v1"

// PaymentEnvelope is the normalized, channel-independent projection of one
// inbound payment. It is the shape every channel adapter produces and the
// only shape the pipeline consumes.
type PaymentEnvelope struct {
	Schema        string    `json:"schema"`
	MessageID     string    `json:"message_id"`
	CorrelationID string    `json:"correlation_id"`
	// IdempotencyKey is derived, not supplied; adapters leave it empty and the
	// normalizer fills it in.
	IdempotencyKey string    `json:"idempotency_key,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`

	Source    EnvelopeSource    `json:"source"`
	Borrower  EnvelopeBorrower  `json:"borrower"`
	Payment   EnvelopePayment   `json:"payment"`
	Artifacts []EnvelopeArtifact `json:"artifacts,omitempty"`
	Risk      *EnvelopeRisk     `json:"risk,omitempty"`
	External  *EnvelopeExternal `json:"external,omitempty"`
}

// EnvelopeSource identifies the inbound channel.
type EnvelopeSource struct {
	Channel  valueobject.Channel `json:"channel"`
	Provider string              `json:"provider,omitempty"`
	BatchID  string              `json:"batch_id,omitempty"`
}

// EnvelopeBorrower carries the loan match and optional borrower identifiers.
type EnvelopeBorrower struct {
	LoanID      string            `json:"loan_id,omitempty"`
	Name        string            `json:"name,omitempty"`
	ExternalIDs map[string]string `json:"external_ids,omitempty"`
}

// EnvelopePayment carries the monetary facts of the payment.
type EnvelopePayment struct {
	AmountCents money.Cents       `json:"amount_cents"`
	Currency    string            `json:"currency"`
	Method      string            `json:"method"`
	ValueDate   string            `json:"value_date"` // calendar date, YYYY-MM-DD
	Reference   string            `json:"reference"`
	Details     map[string]string `json:"details,omitempty"`
}

// EnvelopeArtifact references a supporting document.
type EnvelopeArtifact struct {
	Type string `json:"type"`
	URI  string `json:"uri"`
	Hash string `json:"hash,omitempty"`
}

// EnvelopeRisk carries validation flags and the additive risk score.
type EnvelopeRisk struct {
	Flags []string `json:"flags,omitempty"`
	Score int      `json:"score"`
}

// EnvelopeExternal carries pure reference metadata from the banking side.
// These ids never participate in chain integrity; correlation_id is
// sovereign there.
type EnvelopeExternal struct {
	BankTransferID string `json:"bank_transfer_id,omitempty"`
	BankEventID    string `json:"bank_event_id,omitempty"`
	PSPID          string `json:"psp_id,omitempty"`
}

// HasLoan reports whether the envelope was matched to a loan.
func (e PaymentEnvelope) HasLoan() bool {
	return e.Borrower.LoanID != ""
}

// RequiresReview reports whether the envelope must be held for human review
// before real-bucket posting.
func (e PaymentEnvelope) RequiresReview() bool {
	return !e.HasLoan()
}

// HasFlag reports whether a validation flag is present on the envelope.
func (e PaymentEnvelope) HasFlag(flag string) bool {
	if e.Risk == nil {
		return false
	}
	for _, f := range e.Risk.Flags {
		if f == flag {
			return true
		}
	}
	return false
}
