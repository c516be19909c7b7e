package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/cschwartz85032/loanserve-sub001/internal/domain/model"
	"github.com/cschwartz85032/loanserve-sub001/pkg/money"
)

// StartServicingRunCommand requests a new daily cycle.
type StartServicingRunCommand struct {
	ValuationDate string   `json:"valuation_date"` // YYYY-MM-DD
	LoanIDs       []string `json:"loan_ids,omitempty"`
	DryRun        bool     `json:"dry_run"`
}

// ServicingRunResponse is the read view of a run.
type ServicingRunResponse struct {
	ID                   uuid.UUID   `json:"id"`
	ValuationDate        string      `json:"valuation_date"`
	Status               string      `json:"status"`
	TotalLoans           int         `json:"total_loans"`
	LoansProcessed       int         `json:"loans_processed"`
	EventsCreated        int         `json:"events_created"`
	ExceptionsCreated    int         `json:"exceptions_created"`
	DisbursedBeneficiary money.Cents `json:"disbursed_beneficiary_cents"`
	DisbursedInvestors   money.Cents `json:"disbursed_investors_cents"`
	ReconStatus          string      `json:"recon_status"`
	DryRun               bool        `json:"dry_run"`
	Errors               []string    `json:"errors,omitempty"`
	CreatedAt            time.Time   `json:"created_at"`
	UpdatedAt            time.Time   `json:"updated_at"`
}

// RunToResponse maps the aggregate to its read view.
func RunToResponse(r model.ServicingRun) ServicingRunResponse {
	return ServicingRunResponse{
		ID:                   r.ID(),
		ValuationDate:        r.ValuationDate().Format("2006-01-02"),
		Status:               string(r.Status()),
		TotalLoans:           r.TotalLoans(),
		LoansProcessed:       r.LoansProcessed(),
		EventsCreated:        r.EventsCreated(),
		ExceptionsCreated:    r.ExceptionsCreated(),
		DisbursedBeneficiary: r.DisbursedBeneficiary(),
		DisbursedInvestors:   r.DisbursedInvestors(),
		ReconStatus:          string(r.ReconStatus()),
		DryRun:               r.DryRun(),
		Errors:               r.Errors(),
		CreatedAt:            r.CreatedAt(),
		UpdatedAt:            r.UpdatedAt(),
	}
}

// RecordReconciliationCommand submits one bank-vs-SoR comparison.
type RecordReconciliationCommand struct {
	Channel     string      `json:"channel"`
	PeriodStart string      `json:"period_start"` // YYYY-MM-DD
	PeriodEnd   string      `json:"period_end"`
	BankTotal   money.Cents `json:"bank_total_cents"`
	SORTotal    money.Cents `json:"sor_total_cents"`
}

// ReconciliationResponse is the stored comparison with its verdict.
type ReconciliationResponse struct {
	ID          uuid.UUID   `json:"id"`
	Channel     string      `json:"channel"`
	PeriodStart string      `json:"period_start"`
	PeriodEnd   string      `json:"period_end"`
	BankTotal   money.Cents `json:"bank_total_cents"`
	SORTotal    money.Cents `json:"sor_total_cents"`
	Variance    money.Cents `json:"variance_cents"`
	Status      string      `json:"status"`
	ExceptionID *uuid.UUID  `json:"exception_id,omitempty"`
}

// ReconciliationToResponse maps the row to its read view.
func ReconciliationToResponse(r model.Reconciliation) ReconciliationResponse {
	return ReconciliationResponse{
		ID:          r.ID,
		Channel:     string(r.Channel),
		PeriodStart: r.PeriodStart.Format("2006-01-02"),
		PeriodEnd:   r.PeriodEnd.Format("2006-01-02"),
		BankTotal:   r.BankTotal,
		SORTotal:    r.SORTotal,
		Variance:    r.Variance(),
		Status:      string(r.Status),
		ExceptionID: r.ExceptionID,
	}
}
