package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cschwartz85032/loanserve-sub001/internal/domain/valueobject"
	"github.com/cschwartz85032/loanserve-sub001/pkg/money"
)

// ServicingRun is one invocation of the daily servicing cycle.
type ServicingRun struct {
	id              uuid.UUID
	tenantID        uuid.UUID
	valuationDate   time.Time
	status          valueobject.RunStatus
	totalLoans      int
	loansProcessed  int
	eventsCreated   int
	exceptionsCreated int
	disbursedBeneficiary money.Cents
	disbursedInvestors   money.Cents
	reconStatus     valueobject.ReconStatus
	dryRun          bool
	loanIDs         []string
	inputHash       string
	errors          []string
	createdAt       time.Time
	updatedAt       time.Time
}

// NewServicingRun creates a pending run.
func NewServicingRun(tenantID uuid.UUID, valuationDate time.Time, loanIDs []string, dryRun bool, inputHash string, now time.Time) (ServicingRun, error) {
	if tenantID == uuid.Nil {
		return ServicingRun{}, fmt.Errorf("tenant ID is required")
	}
	if valuationDate.IsZero() {
		return ServicingRun{}, fmt.Errorf("valuation date is required")
	}
	if inputHash == "" {
		return ServicingRun{}, fmt.Errorf("input hash is required")
	}

	return ServicingRun{
		id:            uuid.New(),
		tenantID:      tenantID,
		valuationDate: valuationDate,
		status:        valueobject.RunPending,
		reconStatus:   valueobject.ReconPending,
		dryRun:        dryRun,
		loanIDs:       loanIDs,
		inputHash:     inputHash,
		createdAt:     now,
		updatedAt:     now,
	}, nil
}

// ReconstructServicingRun rebuilds a run from persistence.
func ReconstructServicingRun(
	id, tenantID uuid.UUID,
	valuationDate time.Time,
	status valueobject.RunStatus,
	totalLoans, loansProcessed, eventsCreated, exceptionsCreated int,
	disbursedBeneficiary, disbursedInvestors money.Cents,
	reconStatus valueobject.ReconStatus,
	dryRun bool,
	loanIDs []string,
	inputHash string,
	errs []string,
	createdAt, updatedAt time.Time,
) ServicingRun {
	return ServicingRun{
		id: id, tenantID: tenantID, valuationDate: valuationDate, status: status,
		totalLoans: totalLoans, loansProcessed: loansProcessed,
		eventsCreated: eventsCreated, exceptionsCreated: exceptionsCreated,
		disbursedBeneficiary: disbursedBeneficiary, disbursedInvestors: disbursedInvestors,
		reconStatus: reconStatus, dryRun: dryRun, loanIDs: loanIDs,
		inputHash: inputHash, errors: errs, createdAt: createdAt, updatedAt: updatedAt,
	}
}

// ErrRunNotPending rejects a second pickup of the same run.
var ErrRunNotPending = errors.New("run is not pending")

// Start transitions the run to running at worker pickup.
func (r ServicingRun) Start(totalLoans int, now time.Time) (ServicingRun, error) {
	if r.status != valueobject.RunPending {
		return ServicingRun{}, fmt.Errorf("current status %s: %w", r.status, ErrRunNotPending)
	}
	out := r
	out.status = valueobject.RunRunning
	out.totalLoans = totalLoans
	out.updatedAt = now
	return out, nil
}

// RecordLoan accumulates per-loan results into the run counters.
func (r ServicingRun) RecordLoan(eventsCreated, exceptionsCreated int, beneficiary, investors money.Cents, now time.Time) ServicingRun {
	out := r
	out.loansProcessed++
	out.eventsCreated += eventsCreated
	out.exceptionsCreated += exceptionsCreated
	out.disbursedBeneficiary += beneficiary
	out.disbursedInvestors += investors
	out.updatedAt = now
	return out
}

// RecordException counts a run-level exception case that belongs to no
// single loan, such as an imbalanced disbursement reconciliation.
func (r ServicingRun) RecordException(now time.Time) ServicingRun {
	out := r
	out.exceptionsCreated++
	out.updatedAt = now
	return out
}

// RecordError appends a run-level error message.
func (r ServicingRun) RecordError(msg string, now time.Time) ServicingRun {
	out := r
	out.errors = append(append([]string{}, r.errors...), msg)
	out.updatedAt = now
	return out
}

// Complete finalizes a running run with its reconciliation status.
func (r ServicingRun) Complete(reconStatus valueobject.ReconStatus, now time.Time) (ServicingRun, error) {
	if r.status != valueobject.RunRunning {
		return ServicingRun{}, fmt.Errorf("can only complete running runs, current: %s", r.status)
	}
	out := r
	out.status = valueobject.RunCompleted
	out.reconStatus = reconStatus
	out.updatedAt = now
	return out, nil
}

// Fail marks a running run failed. Terminal.
func (r ServicingRun) Fail(msg string, now time.Time) (ServicingRun, error) {
	if r.status.Terminal() {
		return ServicingRun{}, fmt.Errorf("run already terminal: %s", r.status)
	}
	out := r.RecordError(msg, now)
	out.status = valueobject.RunFailed
	return out, nil
}

// Cancel marks a pending or running run cancelled. Events already written
// stay in place as audit.
func (r ServicingRun) Cancel(now time.Time) (ServicingRun, error) {
	if r.status.Terminal() {
		return ServicingRun{}, fmt.Errorf("run already terminal: %s", r.status)
	}
	out := r
	out.status = valueobject.RunCancelled
	out.updatedAt = now
	return out, nil
}

// ForReprocess returns a copy with dry-run off: a per-loan reprocess always
// persists its results, even when the original run was a dry run.
func (r ServicingRun) ForReprocess() ServicingRun {
	out := r
	out.dryRun = false
	return out
}

// ReconcileDisbursements grades the beneficiary-vs-investor totals:
// |diff| < $0.01 balanced, < $10 pending (still converging), else imbalanced.
func (r ServicingRun) ReconcileDisbursements() valueobject.ReconStatus {
	diff := (r.disbursedBeneficiary - r.disbursedInvestors).Abs()
	switch {
	case diff < 1:
		return valueobject.ReconBalanced
	case diff < 10*100:
		return valueobject.ReconPending
	default:
		return valueobject.ReconImbalanced
	}
}

// Accessors
func (r ServicingRun) ID() uuid.UUID                           { return r.id }
func (r ServicingRun) TenantID() uuid.UUID                     { return r.tenantID }
func (r ServicingRun) ValuationDate() time.Time                { return r.valuationDate }
func (r ServicingRun) Status() valueobject.RunStatus           { return r.status }
func (r ServicingRun) TotalLoans() int                         { return r.totalLoans }
func (r ServicingRun) LoansProcessed() int                     { return r.loansProcessed }
func (r ServicingRun) EventsCreated() int                      { return r.eventsCreated }
func (r ServicingRun) ExceptionsCreated() int                  { return r.exceptionsCreated }
func (r ServicingRun) DisbursedBeneficiary() money.Cents       { return r.disbursedBeneficiary }
func (r ServicingRun) DisbursedInvestors() money.Cents         { return r.disbursedInvestors }
func (r ServicingRun) ReconStatus() valueobject.ReconStatus    { return r.reconStatus }
func (r ServicingRun) DryRun() bool                            { return r.dryRun }
func (r ServicingRun) LoanIDs() []string                       { return r.loanIDs }
func (r ServicingRun) InputHash() string                       { return r.inputHash }
func (r ServicingRun) Errors() []string                        { return r.errors }
func (r ServicingRun) CreatedAt() time.Time                    { return r.createdAt }
func (r ServicingRun) UpdatedAt() time.Time                    { return r.updatedAt }
