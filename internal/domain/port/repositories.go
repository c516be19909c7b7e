package port

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cschwartz85032/loanserve-sub001/internal/domain/model"
	"github.com/cschwartz85032/loanserve-sub001/internal/domain/valueobject"
	"github.com/cschwartz85032/loanserve-sub001/pkg/money"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// PostingBundle is everything one accepted payment writes atomically:
// the payment row, its balanced ledger lines, the outbox rows for its
// domain events, and the chained audit event. The store commits all of
// it or none of it.
type PostingBundle struct {
	Payment   model.Payment
	Entries   model.EntrySet
	EventType string
	EventData []byte // opaque JSON for the chained audit event
	Actor     model.ActorType
	ActorID   string
}

// PostingResult reports the stored payment and whether this call created it.
type PostingResult struct {
	PaymentID uuid.UUID
	IsNew     bool
	Status    valueobject.PaymentStatus
}

// PaymentRepository reads payment aggregates.
type PaymentRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (model.Payment, error)
	FindByIdempotencyKey(ctx context.Context, key string) (model.Payment, error)
}

// PostingStore persists a payment bundle atomically. A concurrent insert of
// the same idempotency key resolves to the winner's row with IsNew=false.
type PostingStore interface {
	Post(ctx context.Context, bundle PostingBundle) (PostingResult, error)
	// Transition persists a status change (settle, reverse, return) together
	// with its ledger lines, outbox rows and chained audit event.
	Transition(ctx context.Context, payment model.Payment, entries model.EntrySet, eventType string, eventData []byte, actor model.ActorType, actorID string) error
}

// EventLogRepository reads the hash-chained audit log. Appends happen only
// inside posting transactions; the log has no update or delete path.
type EventLogRepository interface {
	// ListByTenant returns the tenant's chain ordered by event time then id.
	ListByTenant(ctx context.Context, limit, offset int) ([]model.PaymentEvent, error)
	// ListRange pages the chain restricted to from <= event_time < to.
	ListRange(ctx context.Context, from, to time.Time, limit, offset int) ([]model.PaymentEvent, error)
	CountByTenant(ctx context.Context) (int, error)
	// LastHash returns the newest event hash, or the genesis hash for an
	// empty chain.
	LastHash(ctx context.Context) (string, error)
}

// ServicingRepository persists runs and their per-loan artifacts.
type ServicingRepository interface {
	SaveRun(ctx context.Context, run model.ServicingRun) error
	UpdateRun(ctx context.Context, run model.ServicingRun) error
	GetRun(ctx context.Context, id uuid.UUID) (model.ServicingRun, error)
	// FindActiveRun returns the tenant's pending or running run, if any.
	FindActiveRun(ctx context.Context) (model.ServicingRun, error)
	// InsertEvent writes one servicing event. A duplicate event key returns
	// (false, nil): the step already ran.
	InsertEvent(ctx context.Context, ev model.ServicingEvent) (inserted bool, err error)
	// DeleteLoanEvents clears one loan's events for a valuation date within a
	// single run, making room for a reprocess. Returns the number removed.
	DeleteLoanEvents(ctx context.Context, runID uuid.UUID, loanID string, valuationDate time.Time) (int, error)
	InsertAccrual(ctx context.Context, acc model.InterestAccrual) error
	// InsertLedgerEntries writes the balanced lines a cycle step produced,
	// such as the application of an inbox payment to its loan.
	InsertLedgerEntries(ctx context.Context, entries model.EntrySet) error
	InsertException(ctx context.Context, exc model.ServicingException) error
	ListOpenExceptions(ctx context.Context, loanID string) ([]model.ServicingException, error)
	// CheckOwnershipPrecision verifies investor ownership columns carry the
	// fixed decimal(8,6) scale. Called once at startup.
	CheckOwnershipPrecision(ctx context.Context) error
}

// ReconciliationRepository upserts (channel, period) comparison rows.
type ReconciliationRepository interface {
	// Upsert writes the row keyed by (tenant, channel, period) and reports
	// the stored version.
	Upsert(ctx context.Context, rec model.Reconciliation) (model.Reconciliation, error)
	Get(ctx context.Context, id uuid.UUID) (model.Reconciliation, error)
}

// ProcessedMessageRepository is the consumer-side dedup store. Seen answers
// the cheap pre-check; Record marks a message handled once its side effects
// committed. The unique key on (consumer, message_id) arbitrates concurrent
// deliveries: the loser of a Record race gets firstTime=false.
type ProcessedMessageRepository interface {
	Seen(ctx context.Context, consumer, messageID string) (bool, error)
	Record(ctx context.Context, consumer, messageID string, now time.Time) (firstTime bool, err error)
}

// LoanPosition is the read-model view of one loan the servicing cycle
// operates on. The loan master lives in another system; this is a projection.
type LoanPosition struct {
	LoanID            string
	TenantID          uuid.UUID
	PrincipalBalance  decimal.Decimal
	InterestRate      decimal.Decimal
	LastAccrualDate   time.Time
	NextDueDate       time.Time
	PastDueDays       int
	PastDueAmount     money.Cents
	GraceDays         int
	LateFeeCents      money.Cents
	EscrowBalance     money.Cents
	EscrowRequirement money.Cents
	MaturityDate      time.Time
	Receivables       ReceivableSnapshot
}

// ReceivableSnapshot carries the outstanding buckets the waterfall runs over.
type ReceivableSnapshot struct {
	OutstandingFees     money.Cents
	OutstandingInterest money.Cents
	ScheduledPrincipal  money.Cents
	EscrowRequirement   money.Cents
}

// EscrowDisbursement is a tax or insurance payment due from escrow.
type EscrowDisbursement struct {
	ID          uuid.UUID
	LoanID      string
	Payee       string
	Category    string // tax, hazard_insurance, ...
	AmountCents money.Cents
	DueDate     time.Time
}

// InvestorPosition is one investor's stake in a loan. Ownership is a fixed
// decimal(8,6) fraction; positions on a loan sum to 1.
type InvestorPosition struct {
	InvestorID uuid.UUID
	LoanID     string
	Ownership  decimal.Decimal
}

// PendingPayment is an unapplied inbox payment awaiting the servicing cycle.
type PendingPayment struct {
	PaymentID uuid.UUID
	LoanID    string
	Amount    money.Cents
	ValueDate time.Time
}

// FeeDue is a scheduled servicing fee that has come due and is not yet
// assessed.
type FeeDue struct {
	ID          uuid.UUID
	LoanID      string
	FeeType     string // servicing, nsf, inspection, ...
	AmountCents money.Cents
	DueDate     time.Time
}

// CollectedPayment is a posted payment whose proceeds still await investor
// distribution.
type CollectedPayment struct {
	PaymentID uuid.UUID
	Amount    money.Cents
}

// LoanReadModel exposes the external loan, escrow and investor projections
// the servicing cycle consumes. It never writes.
type LoanReadModel interface {
	ListLoans(ctx context.Context, loanIDs []string) ([]LoanPosition, error)
	ReceivableState(ctx context.Context, loanID string) (ReceivableSnapshot, error)
	PendingPayments(ctx context.Context, loanID string, asOf time.Time) ([]PendingPayment, error)
	// FeesDue returns the loan's scheduled fees due by asOf and not yet
	// assessed.
	FeesDue(ctx context.Context, loanID string, asOf time.Time) ([]FeeDue, error)
	DisbursementsDue(ctx context.Context, loanID string, asOf time.Time) ([]EscrowDisbursement, error)
	InvestorPositions(ctx context.Context, loanID string) ([]InvestorPosition, error)
	// CollectedPayments returns the loan's posted payments whose proceeds are
	// still undistributed as of asOf. Distribution idempotency rides on the
	// per-payment servicing event keys, not on a flag here.
	CollectedPayments(ctx context.Context, loanID string, asOf time.Time) ([]CollectedPayment, error)
}
