package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cschwartz85032/loanserve-sub001/internal/domain/valueobject"
	"github.com/cschwartz85032/loanserve-sub001/pkg/money"
)

// VarianceSuggestedActions is the operator checklist attached to every
// reconciliation variance exception.
var VarianceSuggestedActions = []string{
	"review bank statement for the period",
	"check for duplicate postings",
	"look for settlement delays crossing the period boundary",
	"investigate reversals and returns",
}

// Reconciliation compares bank totals against the system of record for one
// (channel, period) window. The composite key is unique; repeated posts
// upsert the same row.
type Reconciliation struct {
	ID          uuid.UUID
	TenantID    uuid.UUID
	Channel     valueobject.Channel
	PeriodStart time.Time
	PeriodEnd   time.Time
	BankTotal   money.Cents
	SORTotal    money.Cents
	Status      valueobject.ReconciliationRowStatus
	ExceptionID *uuid.UUID
	Details     map[string]string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewReconciliation records one comparison and derives its status.
func NewReconciliation(
	tenantID uuid.UUID,
	channel valueobject.Channel,
	periodStart, periodEnd time.Time,
	bankTotal, sorTotal money.Cents,
	now time.Time,
) (Reconciliation, error) {
	if tenantID == uuid.Nil {
		return Reconciliation{}, fmt.Errorf("tenant ID is required")
	}
	if !channel.Valid() {
		return Reconciliation{}, fmt.Errorf("invalid channel %q", channel)
	}
	if periodEnd.Before(periodStart) {
		return Reconciliation{}, fmt.Errorf("period end %s before start %s", periodEnd.Format("2006-01-02"), periodStart.Format("2006-01-02"))
	}

	r := Reconciliation{
		ID:          uuid.New(),
		TenantID:    tenantID,
		Channel:     channel,
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
		BankTotal:   bankTotal,
		SORTotal:    sorTotal,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if r.Variance() == 0 {
		r.Status = valueobject.ReconciliationBalanced
	} else {
		r.Status = valueobject.ReconciliationVariance
	}
	return r, nil
}

// Variance is the signed difference bank minus system of record.
func (r Reconciliation) Variance() money.Cents {
	return r.BankTotal - r.SORTotal
}

// OpenException builds the exception case for a variance row.
func (r Reconciliation) OpenException(now time.Time) (ServicingException, error) {
	if r.Status != valueobject.ReconciliationVariance {
		return ServicingException{}, fmt.Errorf("no exception for status %s", r.Status)
	}
	severity := valueobject.SeverityForVariance(r.Variance())
	msg := fmt.Sprintf("reconciliation variance of %s on channel %s for %s..%s",
		r.Variance().String(), r.Channel,
		r.PeriodStart.Format("2006-01-02"), r.PeriodEnd.Format("2006-01-02"))
	return NewServicingException(r.TenantID, nil, "", severity,
		"reconciliation_variance", msg, VarianceSuggestedActions, now), nil
}
