package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cschwartz85032/loanserve-sub001/internal/domain/event"
	"github.com/cschwartz85032/loanserve-sub001/internal/domain/valueobject"
	"github.com/cschwartz85032/loanserve-sub001/pkg/events"
	"github.com/cschwartz85032/loanserve-sub001/pkg/money"
)

// Payment is the immutable record of one accepted payment. Mutations return
// a new copy; state advances only along documented transitions.
type Payment struct {
	id             uuid.UUID
	tenantID       uuid.UUID
	loanID         string
	channel        valueobject.Channel
	idempotencyKey string
	amount         money.Cents
	currency       string
	valueDate      time.Time
	status         valueobject.PaymentStatus
	allocation     valueobject.Allocation
	reference      string
	bankTransferID string
	checkNumber    string
	correlationID  string
	requiresReview bool
	riskScore      int
	version        int
	createdAt      time.Time
	updatedAt      time.Time
	domainEvents   []events.DomainEvent
}

// NewPayment accepts a validated envelope with its waterfall allocation.
// postingReady=false keeps the payment in received state with a
// suspense-only ledger posture until rematching.
func NewPayment(
	tenantID uuid.UUID,
	env PaymentEnvelope,
	allocation valueobject.Allocation,
	postingReady bool,
	now time.Time,
) (Payment, error) {
	if tenantID == uuid.Nil {
		return Payment{}, fmt.Errorf("tenant ID is required")
	}
	if env.IdempotencyKey == "" {
		return Payment{}, fmt.Errorf("idempotency key is required")
	}
	if err := allocation.Validate(env.Payment.AmountCents); err != nil {
		return Payment{}, fmt.Errorf("invalid allocation: %w", err)
	}

	valueDate, err := time.Parse("2006-01-02", env.Payment.ValueDate)
	if err != nil {
		return Payment{}, fmt.Errorf("invalid value date %q: %w", env.Payment.ValueDate, err)
	}

	status := valueobject.PaymentReceived
	if postingReady {
		status = valueobject.PaymentPosted
	}

	riskScore := 0
	if env.Risk != nil {
		riskScore = env.Risk.Score
	}
	bankTransferID := ""
	if env.External != nil {
		bankTransferID = env.External.BankTransferID
	}

	p := Payment{
		id:             uuid.New(),
		tenantID:       tenantID,
		loanID:         env.Borrower.LoanID,
		channel:        env.Source.Channel,
		idempotencyKey: env.IdempotencyKey,
		amount:         env.Payment.AmountCents,
		currency:       env.Payment.Currency,
		valueDate:      valueDate,
		status:         status,
		allocation:     allocation,
		reference:      env.Payment.Reference,
		bankTransferID: bankTransferID,
		checkNumber:    env.Payment.Details["check_number"],
		correlationID:  env.CorrelationID,
		requiresReview: env.RequiresReview(),
		riskScore:      riskScore,
		version:        1,
		createdAt:      now,
		updatedAt:      now,
	}

	payload, _ := json.Marshal(event.PaymentPostedPayload{
		PaymentID:   p.id,
		Envelope:    env,
		Allocations: allocation,
		Status:      string(status),
	})
	p.domainEvents = append(p.domainEvents,
		event.NewPaymentPosted(p.id, tenantID, env.CorrelationID, payload))

	return p, nil
}

// ReconstructPayment rebuilds a Payment from persistence.
func ReconstructPayment(
	id, tenantID uuid.UUID,
	loanID string,
	channel valueobject.Channel,
	idempotencyKey string,
	amount money.Cents,
	currency string,
	valueDate time.Time,
	status valueobject.PaymentStatus,
	allocation valueobject.Allocation,
	reference, bankTransferID, checkNumber, correlationID string,
	requiresReview bool,
	riskScore, version int,
	createdAt, updatedAt time.Time,
) Payment {
	return Payment{
		id: id, tenantID: tenantID, loanID: loanID, channel: channel,
		idempotencyKey: idempotencyKey, amount: amount, currency: currency,
		valueDate: valueDate, status: status, allocation: allocation,
		reference: reference, bankTransferID: bankTransferID,
		checkNumber: checkNumber, correlationID: correlationID,
		requiresReview: requiresReview, riskScore: riskScore,
		version: version, createdAt: createdAt, updatedAt: updatedAt,
	}
}

// Settle advances a posted payment to settled.
func (p Payment) Settle(now time.Time) (Payment, error) {
	return p.transition(valueobject.PaymentSettled, now)
}

// Reverse advances a posted payment to reversed and emits payment.reversed.
func (p Payment) Reverse(reason string, now time.Time) (Payment, error) {
	reversed, err := p.transition(valueobject.PaymentReversed, now)
	if err != nil {
		return Payment{}, err
	}
	payload, _ := json.Marshal(map[string]any{
		"payment_id": p.id,
		"reason":     reason,
	})
	reversed.domainEvents = append(reversed.domainEvents,
		event.NewPaymentReversed(p.id, p.tenantID, p.correlationID, payload))
	return reversed, nil
}

// Return advances a posted payment to returned (e.g. ACH return).
func (p Payment) Return(now time.Time) (Payment, error) {
	return p.transition(valueobject.PaymentReturned, now)
}

func (p Payment) transition(next valueobject.PaymentStatus, now time.Time) (Payment, error) {
	if !p.status.CanTransition(next) {
		return Payment{}, fmt.Errorf("illegal payment transition %s -> %s", p.status, next)
	}
	out := p
	out.status = next
	out.updatedAt = now
	out.version++
	out.domainEvents = append([]events.DomainEvent{}, p.domainEvents...)
	return out, nil
}

// Accessors
func (p Payment) ID() uuid.UUID                        { return p.id }
func (p Payment) TenantID() uuid.UUID                  { return p.tenantID }
func (p Payment) LoanID() string                       { return p.loanID }
func (p Payment) Channel() valueobject.Channel         { return p.channel }
func (p Payment) IdempotencyKey() string               { return p.idempotencyKey }
func (p Payment) Amount() money.Cents                  { return p.amount }
func (p Payment) Currency() string                     { return p.currency }
func (p Payment) ValueDate() time.Time                 { return p.valueDate }
func (p Payment) Status() valueobject.PaymentStatus    { return p.status }
func (p Payment) Allocation() valueobject.Allocation   { return p.allocation }
func (p Payment) Reference() string                    { return p.reference }
func (p Payment) BankTransferID() string               { return p.bankTransferID }
func (p Payment) CheckNumber() string                  { return p.checkNumber }
func (p Payment) CorrelationID() string                { return p.correlationID }
func (p Payment) RequiresReview() bool                 { return p.requiresReview }
func (p Payment) RiskScore() int                       { return p.riskScore }
func (p Payment) Version() int                         { return p.version }
func (p Payment) CreatedAt() time.Time                 { return p.createdAt }
func (p Payment) UpdatedAt() time.Time                 { return p.updatedAt }
func (p Payment) DomainEvents() []events.DomainEvent   { return p.domainEvents }
