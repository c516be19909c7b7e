package event

import (
	"github.com/google/uuid"

	"github.com/cschwartz85032/loanserve-sub001/pkg/events"
)

// Event types published through the outbox. The dispatcher maps each type to
// its exchange and routing key.
const (
	TypePaymentPosted        = "payment.posted"
	TypePaymentReversed      = "payment.reversed"
	TypePaymentReturned      = "payment.returned"
	TypeServicingRunStarted  = "servicing.run.started"
	TypeServicingRunFinished = "servicing.run.finished"
	TypeReconVariance        = "reconciliation.variance"
	TypeExceptionOpened      = "servicing.exception.opened"
)

// Aggregate types recorded on outbox rows.
const (
	AggregatePayments  = "payments"
	AggregateServicing = "servicing_runs"
	AggregateRecon     = "reconciliations"
)

// PaymentPostedPayload is the wire body of payment.posted. The envelope field
// holds the full canonical envelope; it stays untyped here because the event
// package never inspects it.
type PaymentPostedPayload struct {
	PaymentID   uuid.UUID `json:"payment_id"`
	Envelope    any       `json:"envelope"`
	Allocations any       `json:"allocations"`
	Status      string    `json:"status"`
}

// NewPaymentPosted signals a payment was accepted and posted.
func NewPaymentPosted(paymentID, tenantID uuid.UUID, correlationID string, payload []byte) events.DomainEvent {
	return events.NewBaseEvent(TypePaymentPosted, paymentID, AggregatePayments, tenantID, correlationID, payload)
}

// NewPaymentReversed signals a posted payment was reversed.
func NewPaymentReversed(paymentID, tenantID uuid.UUID, correlationID string, payload []byte) events.DomainEvent {
	return events.NewBaseEvent(TypePaymentReversed, paymentID, AggregatePayments, tenantID, correlationID, payload)
}

// NewPaymentReturned signals a posted payment came back from the bank.
func NewPaymentReturned(paymentID, tenantID uuid.UUID, correlationID string, payload []byte) events.DomainEvent {
	return events.NewBaseEvent(TypePaymentReturned, paymentID, AggregatePayments, tenantID, correlationID, payload)
}

// ServicingRunStartedPayload is the wire body of servicing.run.started. The
// run worker consumes it to pick up pending runs.
type ServicingRunStartedPayload struct {
	RunID         uuid.UUID `json:"run_id"`
	ValuationDate string    `json:"valuation_date"`
	DryRun        bool      `json:"dry_run"`
}

// NewServicingRunStarted signals a pending run is ready for worker pickup.
func NewServicingRunStarted(runID, tenantID uuid.UUID, correlationID string, payload []byte) events.DomainEvent {
	return events.NewBaseEvent(TypeServicingRunStarted, runID, AggregateServicing, tenantID, correlationID, payload)
}

// NewServicingRunFinished signals a servicing run reached a terminal state.
func NewServicingRunFinished(runID, tenantID uuid.UUID, correlationID string, payload []byte) events.DomainEvent {
	return events.NewBaseEvent(TypeServicingRunFinished, runID, AggregateServicing, tenantID, correlationID, payload)
}

// NewReconVariance signals a bank-vs-SoR variance was detected.
func NewReconVariance(reconID, tenantID uuid.UUID, correlationID string, payload []byte) events.DomainEvent {
	return events.NewBaseEvent(TypeReconVariance, reconID, AggregateRecon, tenantID, correlationID, payload)
}

// NewExceptionOpened signals a servicing exception case was opened.
func NewExceptionOpened(exceptionID, tenantID uuid.UUID, correlationID string, payload []byte) events.DomainEvent {
	return events.NewBaseEvent(TypeExceptionOpened, exceptionID, AggregateServicing, tenantID, correlationID, payload)
}
