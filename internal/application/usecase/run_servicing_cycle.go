package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cschwartz85032/loanserve-sub001/internal/application/dto"
	"github.com/cschwartz85032/loanserve-sub001/internal/domain/event"
	"github.com/cschwartz85032/loanserve-sub001/internal/domain/model"
	"github.com/cschwartz85032/loanserve-sub001/internal/domain/port"
	"github.com/cschwartz85032/loanserve-sub001/internal/domain/service"
	"github.com/cschwartz85032/loanserve-sub001/internal/domain/valueobject"
	"github.com/cschwartz85032/loanserve-sub001/pkg/events"
	"github.com/cschwartz85032/loanserve-sub001/pkg/money"
)

const ownershipScale = 1_000_000 // decimal(8,6) ownership as integer weights

// RunServicingCycleUseCase executes the daily cycle for one pending run:
// accrual, payment application, fee assessment, escrow disbursement,
// investor distribution, exception sweep, then run-level reconciliation.
// Every step writes a keyed servicing event, so re-running a run skips
// work already done instead of doubling it.
type RunServicingCycleUseCase struct {
	runs    port.ServicingRepository
	loans   port.LoanReadModel
	accrual *service.AccrualCalculator
	outbox  events.EventPublisher
	logger  *slog.Logger
}

// NewRunServicingCycleUseCase wires the cycle engine.
func NewRunServicingCycleUseCase(
	runs port.ServicingRepository,
	loans port.LoanReadModel,
	accrual *service.AccrualCalculator,
	outbox events.EventPublisher,
	logger *slog.Logger,
) *RunServicingCycleUseCase {
	return &RunServicingCycleUseCase{runs: runs, loans: loans, accrual: accrual, outbox: outbox, logger: logger}
}

// loanOutcome accumulates one loan's results before they roll into the run.
type loanOutcome struct {
	events      int
	exceptions  int
	beneficiary money.Cents
	investors   money.Cents
}

// Execute picks up a pending run and drives it to a terminal state. A failure
// mid-cycle marks the run failed; events already committed stay committed.
func (uc *RunServicingCycleUseCase) Execute(ctx context.Context, runID uuid.UUID) (dto.ServicingRunResponse, error) {
	run, err := uc.runs.GetRun(ctx, runID)
	if err != nil {
		return dto.ServicingRunResponse{}, err
	}

	positions, err := uc.loans.ListLoans(ctx, run.LoanIDs())
	if err != nil {
		return dto.ServicingRunResponse{}, fmt.Errorf("list loans: %w", err)
	}

	now := time.Now().UTC()
	run, err = run.Start(len(positions), now)
	if err != nil {
		return dto.ServicingRunResponse{}, err
	}
	if err := uc.runs.UpdateRun(ctx, run); err != nil {
		return dto.ServicingRunResponse{}, fmt.Errorf("mark run running: %w", err)
	}

	uc.logger.Info("servicing cycle started",
		"run_id", run.ID(), "valuation_date", run.ValuationDate().Format("2006-01-02"),
		"loans", len(positions), "dry_run", run.DryRun())

	for _, loan := range positions {
		if err := ctx.Err(); err != nil {
			return uc.fail(ctx, run, fmt.Sprintf("cycle interrupted: %v", err))
		}
		outcome, err := uc.processLoan(ctx, run, loan)
		if err != nil {
			uc.logger.Error("loan processing failed",
				"run_id", run.ID(), "loan_id", loan.LoanID, "error", err)
			run = run.RecordError(fmt.Sprintf("loan %s: %v", loan.LoanID, err), time.Now().UTC())
			continue
		}
		run = run.RecordLoan(outcome.events, outcome.exceptions,
			outcome.beneficiary, outcome.investors, time.Now().UTC())
	}

	reconStatus := run.ReconcileDisbursements()
	if reconStatus == valueobject.ReconImbalanced {
		run, err = uc.flagImbalance(ctx, run)
		if err != nil {
			return dto.ServicingRunResponse{}, err
		}
	}

	completed, err := run.Complete(reconStatus, time.Now().UTC())
	if err != nil {
		return dto.ServicingRunResponse{}, err
	}
	if err := uc.runs.UpdateRun(ctx, completed); err != nil {
		return dto.ServicingRunResponse{}, fmt.Errorf("complete run: %w", err)
	}

	uc.publishFinished(ctx, completed)

	uc.logger.Info("servicing cycle finished",
		"run_id", completed.ID(),
		"loans_processed", completed.LoansProcessed(),
		"events_created", completed.EventsCreated(),
		"exceptions_created", completed.ExceptionsCreated(),
		"recon_status", completed.ReconStatus())

	return dto.RunToResponse(completed), nil
}

// ReprocessLoan reruns the cycle steps for a single loan of an existing run.
// The loan's events for this run and valuation date are cleared first, then
// the pipeline runs again with dry-run off, so corrected inputs produce fresh
// events instead of being skipped by the old keys.
func (uc *RunServicingCycleUseCase) ReprocessLoan(ctx context.Context, runID uuid.UUID, loanID string) (dto.ServicingRunResponse, error) {
	run, err := uc.runs.GetRun(ctx, runID)
	if err != nil {
		return dto.ServicingRunResponse{}, err
	}

	positions, err := uc.loans.ListLoans(ctx, []string{loanID})
	if err != nil {
		return dto.ServicingRunResponse{}, fmt.Errorf("list loans: %w", err)
	}
	if len(positions) == 0 {
		return dto.ServicingRunResponse{}, fmt.Errorf("loan %s: %w", loanID, port.ErrNotFound)
	}

	removed, err := uc.runs.DeleteLoanEvents(ctx, run.ID(), loanID, run.ValuationDate())
	if err != nil {
		return dto.ServicingRunResponse{}, fmt.Errorf("clear events for loan %s: %w", loanID, err)
	}
	uc.logger.Info("loan reprocess started",
		"run_id", run.ID(), "loan_id", loanID, "events_cleared", removed)

	outcome, err := uc.processLoan(ctx, run.ForReprocess(), positions[0])
	if err != nil {
		return dto.ServicingRunResponse{}, fmt.Errorf("reprocess loan %s: %w", loanID, err)
	}

	run = run.RecordLoan(outcome.events, outcome.exceptions,
		outcome.beneficiary, outcome.investors, time.Now().UTC())
	if err := uc.runs.UpdateRun(ctx, run); err != nil {
		return dto.ServicingRunResponse{}, fmt.Errorf("update run: %w", err)
	}
	return dto.RunToResponse(run), nil
}

func (uc *RunServicingCycleUseCase) fail(ctx context.Context, run model.ServicingRun, msg string) (dto.ServicingRunResponse, error) {
	failed, err := run.Fail(msg, time.Now().UTC())
	if err != nil {
		return dto.ServicingRunResponse{}, err
	}
	if err := uc.runs.UpdateRun(ctx, failed); err != nil {
		return dto.ServicingRunResponse{}, fmt.Errorf("mark run failed: %w", err)
	}
	uc.publishFinished(ctx, failed)
	return dto.RunToResponse(failed), fmt.Errorf("%s", msg)
}

func (uc *RunServicingCycleUseCase) publishFinished(ctx context.Context, run model.ServicingRun) {
	payload, _ := json.Marshal(dto.RunToResponse(run))
	ev := event.NewServicingRunFinished(run.ID(), run.TenantID(), run.ID().String(), payload)
	if err := uc.outbox.Publish(ctx, ev); err != nil {
		uc.logger.Error("enqueue run.finished event", "run_id", run.ID(), "error", err)
	}
}

// flagImbalance opens the run-level critical exception for a disbursement
// reconciliation that graded imbalanced. The case carries no loan id; it
// belongs to the run as a whole.
func (uc *RunServicingCycleUseCase) flagImbalance(ctx context.Context, run model.ServicingRun) (model.ServicingRun, error) {
	diff := run.DisbursedBeneficiary() - run.DisbursedInvestors()
	uc.logger.Error("disbursement reconciliation imbalanced",
		"run_id", run.ID(),
		"disbursed_beneficiary", run.DisbursedBeneficiary(),
		"disbursed_investors", run.DisbursedInvestors(),
		"diff", diff)

	if !run.DryRun() {
		runID := run.ID()
		exc := model.NewServicingException(run.TenantID(), &runID, "",
			valueobject.SeverityCritical, "disbursement_imbalance",
			fmt.Sprintf("beneficiary disbursements %s and investor disbursements %s differ by %s",
				run.DisbursedBeneficiary(), run.DisbursedInvestors(), diff.Abs()),
			[]string{
				"compare escrow disbursement events against investor distribution events",
				"check for loans that failed mid-cycle",
				"reprocess affected loans once corrected",
			},
			time.Now().UTC())
		if err := uc.runs.InsertException(ctx, exc); err != nil {
			return run, fmt.Errorf("insert imbalance exception: %w", err)
		}
		payload, _ := json.Marshal(map[string]any{
			"exception_id": exc.ID,
			"run_id":       run.ID(),
			"type":         exc.Type,
			"severity":     exc.Severity,
			"diff_cents":   int64(diff),
		})
		ev := event.NewExceptionOpened(exc.ID, run.TenantID(), run.ID().String(), payload)
		if err := uc.outbox.Publish(ctx, ev); err != nil {
			uc.logger.Error("enqueue exception.opened event", "exception_id", exc.ID, "error", err)
		}
	}
	return run.RecordException(time.Now().UTC()), nil
}

func (uc *RunServicingCycleUseCase) processLoan(ctx context.Context, run model.ServicingRun, loan port.LoanPosition) (loanOutcome, error) {
	var out loanOutcome
	valuation := run.ValuationDate()

	if err := uc.stepAccrual(ctx, run, loan, &out); err != nil {
		return out, err
	}
	if err := uc.stepPayments(ctx, run, loan, &out); err != nil {
		return out, err
	}
	if err := uc.stepFees(ctx, run, loan, &out); err != nil {
		return out, err
	}
	if err := uc.stepEscrow(ctx, run, loan, &out); err != nil {
		return out, err
	}
	if err := uc.stepDistribution(ctx, run, loan, &out); err != nil {
		return out, err
	}
	if err := uc.stepExceptionSweep(ctx, run, loan, valuation, &out); err != nil {
		return out, err
	}
	return out, nil
}

func (uc *RunServicingCycleUseCase) stepAccrual(ctx context.Context, run model.ServicingRun, loan port.LoanPosition, out *loanOutcome) error {
	valuation := run.ValuationDate()
	if !loan.LastAccrualDate.Before(valuation) {
		return nil
	}

	runID := run.ID()
	from := loan.LastAccrualDate.AddDate(0, 0, 1)
	acc, err := uc.accrual.Compute(loan.TenantID, loan.LoanID, &runID,
		loan.PrincipalBalance, loan.InterestRate, from, valuation, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("accrual: %w", err)
	}

	details, _ := json.Marshal(map[string]any{
		"from":        from.Format("2006-01-02"),
		"to":          valuation.Format("2006-01-02"),
		"day_count":   acc.DayCount,
		"daily_rate":  acc.DailyRate.String(),
		"accrued":     acc.AccruedAmount.String(),
		"convention":  string(acc.Convention),
	})
	accruedCents := money.FromDecimal(acc.AccruedAmount)

	inserted, err := uc.insertEvent(ctx, run, model.ServicingEvent{
		EventKey:  model.EventKey("interest_accrual", loan.LoanID, valuation),
		EventType: "interest_accrual",
		LoanID:    loan.LoanID,
		Amount:    accruedCents,
		Interest:  accruedCents,
		Details:   details,
	})
	if err != nil {
		return err
	}
	if inserted {
		out.events++
		if !run.DryRun() {
			if err := uc.runs.InsertAccrual(ctx, acc); err != nil {
				return fmt.Errorf("persist accrual: %w", err)
			}
		}
	}
	return nil
}

func (uc *RunServicingCycleUseCase) stepPayments(ctx context.Context, run model.ServicingRun, loan port.LoanPosition, out *loanOutcome) error {
	pending, err := uc.loans.PendingPayments(ctx, loan.LoanID, run.ValuationDate())
	if err != nil {
		return fmt.Errorf("pending payments: %w", err)
	}
	for _, p := range pending {
		inserted, err := uc.insertEvent(ctx, run, model.ServicingEvent{
			EventKey:  model.EventKey("post_payment", p.PaymentID.String(), run.ValuationDate()),
			EventType: "payment_applied",
			LoanID:    loan.LoanID,
			Amount:    p.Amount,
		})
		if err != nil {
			return err
		}
		if inserted {
			out.events++
			if !run.DryRun() {
				if err := uc.runs.InsertLedgerEntries(ctx, paymentAppliedEntries(run, loan.LoanID, p)); err != nil {
					return fmt.Errorf("ledger for payment %s: %w", p.PaymentID, err)
				}
			}
		}
	}
	return nil
}

// paymentAppliedEntries books the application of an inbox payment to its
// loan: the suspense hold is released against the loan receivable.
func paymentAppliedEntries(run model.ServicingRun, loanID string, p port.PendingPayment) model.EntrySet {
	meta := map[string]string{
		"entry_type": "payment",
		"loan_id":    loanID,
	}
	return model.EntrySet{Lines: []model.LedgerEntry{
		{
			ID:            uuid.New(),
			TenantID:      run.TenantID(),
			PaymentID:     p.PaymentID,
			EntryDate:     run.ValuationDate(),
			AccountType:   valueobject.AccountLiability,
			AccountCode:   valueobject.AccountSuspense,
			DebitCents:    p.Amount,
			Description:   fmt.Sprintf("payment applied to loan %s", loanID),
			CorrelationID: run.ID().String(),
			Metadata:      meta,
		},
		{
			ID:            uuid.New(),
			TenantID:      run.TenantID(),
			PaymentID:     p.PaymentID,
			EntryDate:     run.ValuationDate(),
			AccountType:   valueobject.AccountAsset,
			AccountCode:   valueobject.AccountLoanReceivable,
			CreditCents:   p.Amount,
			Description:   fmt.Sprintf("payment applied to loan %s", loanID),
			CorrelationID: run.ID().String(),
			Metadata:      meta,
		},
	}}
}

// stepFees assesses scheduled fees that have come due, then the late charge.
// A late fee triggers only past the grace period and only while principal is
// outstanding.
func (uc *RunServicingCycleUseCase) stepFees(ctx context.Context, run model.ServicingRun, loan port.LoanPosition, out *loanOutcome) error {
	due, err := uc.loans.FeesDue(ctx, loan.LoanID, run.ValuationDate())
	if err != nil {
		return fmt.Errorf("fees due: %w", err)
	}
	for _, f := range due {
		details, _ := json.Marshal(map[string]any{
			"fee_type": f.FeeType,
			"due_date": f.DueDate.Format("2006-01-02"),
		})
		inserted, err := uc.insertEvent(ctx, run, model.ServicingEvent{
			EventKey:  model.EventKey("assess_fee", f.ID.String(), run.ValuationDate()),
			EventType: "fee_assessed",
			LoanID:    loan.LoanID,
			Amount:    f.AmountCents,
			Fees:      f.AmountCents,
			Details:   details,
		})
		if err != nil {
			return err
		}
		if inserted {
			out.events++
		}
	}

	if loan.PastDueDays <= loan.GraceDays || loan.LateFeeCents <= 0 || !loan.PrincipalBalance.IsPositive() {
		return nil
	}
	details, _ := json.Marshal(map[string]any{
		"past_due_days": loan.PastDueDays,
		"grace_days":    loan.GraceDays,
	})
	inserted, err := uc.insertEvent(ctx, run, model.ServicingEvent{
		EventKey:  model.EventKey("late_fee", loan.LoanID, run.ValuationDate()),
		EventType: "late_fee_assessed",
		LoanID:    loan.LoanID,
		Amount:    loan.LateFeeCents,
		Fees:      loan.LateFeeCents,
		Details:   details,
	})
	if err != nil {
		return err
	}
	if inserted {
		out.events++
	}
	return nil
}

func (uc *RunServicingCycleUseCase) stepEscrow(ctx context.Context, run model.ServicingRun, loan port.LoanPosition, out *loanOutcome) error {
	due, err := uc.loans.DisbursementsDue(ctx, loan.LoanID, run.ValuationDate())
	if err != nil {
		return fmt.Errorf("disbursements due: %w", err)
	}

	balance := loan.EscrowBalance
	for _, d := range due {
		if balance < d.AmountCents {
			if err := uc.openException(ctx, run, loan.LoanID, valueobject.SeverityHigh,
				"escrow_shortfall",
				fmt.Sprintf("escrow balance %s cannot cover %s disbursement of %s to %s",
					balance, d.Category, d.AmountCents, d.Payee),
				[]string{"advance funds or reschedule the disbursement", "review escrow analysis"},
				out); err != nil {
				return err
			}
			continue
		}

		details, _ := json.Marshal(map[string]any{
			"payee":    d.Payee,
			"category": d.Category,
			"due_date": d.DueDate.Format("2006-01-02"),
		})
		inserted, err := uc.insertEvent(ctx, run, model.ServicingEvent{
			EventKey:  model.EventKey("escrow_disbursement", d.ID.String(), run.ValuationDate()),
			EventType: "escrow_disbursement",
			LoanID:    loan.LoanID,
			Amount:    d.AmountCents,
			Escrow:    d.AmountCents,
			Details:   details,
		})
		if err != nil {
			return err
		}
		if inserted {
			out.events++
			out.beneficiary += d.AmountCents
			balance -= d.AmountCents
		}
	}
	return nil
}

// stepDistribution pro-rates each undistributed payment across the loan's
// investors by ownership. The per-(investor, payment) event key makes a
// payment distributable exactly once.
func (uc *RunServicingCycleUseCase) stepDistribution(ctx context.Context, run model.ServicingRun, loan port.LoanPosition, out *loanOutcome) error {
	collected, err := uc.loans.CollectedPayments(ctx, loan.LoanID, run.ValuationDate())
	if err != nil {
		return fmt.Errorf("collected payments: %w", err)
	}
	if len(collected) == 0 {
		return nil
	}

	positions, err := uc.loans.InvestorPositions(ctx, loan.LoanID)
	if err != nil {
		return fmt.Errorf("investor positions: %w", err)
	}
	if len(positions) == 0 {
		return nil
	}

	weights := make([]int64, len(positions))
	total := decimal.Zero
	for i, p := range positions {
		weights[i] = p.Ownership.Mul(decimal.NewFromInt(ownershipScale)).IntPart()
		total = total.Add(p.Ownership)
	}
	if !total.Equal(decimal.NewFromInt(1)) {
		return uc.openException(ctx, run, loan.LoanID, valueobject.SeverityCritical,
			"data_integrity",
			fmt.Sprintf("investor ownership sums to %s, expected 1.000000", total),
			[]string{"correct investor position records before distributing"},
			out)
	}

	for _, payment := range collected {
		shares, err := money.Split(payment.Amount, weights)
		if err != nil {
			return fmt.Errorf("split payment %s: %w", payment.PaymentID, err)
		}

		for i, p := range positions {
			details, _ := json.Marshal(map[string]any{
				"investor_id": p.InvestorID,
				"payment_id":  payment.PaymentID,
				"ownership":   p.Ownership.String(),
			})
			inserted, err := uc.insertEvent(ctx, run, model.ServicingEvent{
				EventKey: model.EventKey("investor_distribution",
					fmt.Sprintf("%s_%s", p.InvestorID, payment.PaymentID), run.ValuationDate()),
				EventType: "investor_distribution",
				LoanID:    loan.LoanID,
				Amount:    shares[i],
				Details:   details,
			})
			if err != nil {
				return err
			}
			if inserted {
				out.events++
				out.investors += shares[i]
			}
		}
	}
	return nil
}

func (uc *RunServicingCycleUseCase) stepExceptionSweep(ctx context.Context, run model.ServicingRun, loan port.LoanPosition, valuation time.Time, out *loanOutcome) error {
	switch {
	case loan.PastDueDays >= 90:
		if err := uc.openException(ctx, run, loan.LoanID, valueobject.SeverityCritical,
			"delinquency_90",
			fmt.Sprintf("loan is %d days past due with %s outstanding", loan.PastDueDays, loan.PastDueAmount),
			[]string{"refer to loss mitigation", "verify contact attempts"},
			out); err != nil {
			return err
		}
	case loan.PastDueDays >= 60:
		if err := uc.openException(ctx, run, loan.LoanID, valueobject.SeverityHigh,
			"delinquency_60",
			fmt.Sprintf("loan is %d days past due with %s outstanding", loan.PastDueDays, loan.PastDueAmount),
			[]string{"escalate collection outreach"},
			out); err != nil {
			return err
		}
	case loan.PastDueDays >= 30:
		if err := uc.openException(ctx, run, loan.LoanID, valueobject.SeverityMedium,
			"delinquency_30",
			fmt.Sprintf("loan is %d days past due with %s outstanding", loan.PastDueDays, loan.PastDueAmount),
			[]string{"send delinquency notice"},
			out); err != nil {
			return err
		}
	}

	if loan.InterestRate.IsZero() || loan.PrincipalBalance.IsNegative() {
		if err := uc.openException(ctx, run, loan.LoanID, valueobject.SeverityHigh,
			"data_integrity",
			fmt.Sprintf("loan has rate %s and principal %s", loan.InterestRate, loan.PrincipalBalance),
			[]string{"correct the loan master record"},
			out); err != nil {
			return err
		}
	}

	if !loan.MaturityDate.IsZero() && loan.PrincipalBalance.IsPositive() {
		switch {
		case loan.MaturityDate.Before(valuation):
			if err := uc.openException(ctx, run, loan.LoanID, valueobject.SeverityCritical,
				"maturity_overdue",
				fmt.Sprintf("loan matured %s with principal %s outstanding",
					loan.MaturityDate.Format("2006-01-02"), loan.PrincipalBalance),
				[]string{"initiate payoff or extension"},
				out); err != nil {
				return err
			}
		case loan.MaturityDate.Before(valuation.AddDate(0, 0, 30)):
			if err := uc.openException(ctx, run, loan.LoanID, valueobject.SeverityHigh,
				"maturity_approaching_30",
				fmt.Sprintf("loan matures %s with principal %s outstanding",
					loan.MaturityDate.Format("2006-01-02"), loan.PrincipalBalance),
				[]string{"confirm payoff arrangements with borrower"},
				out); err != nil {
				return err
			}
		case loan.MaturityDate.Before(valuation.AddDate(0, 0, 90)):
			if err := uc.openException(ctx, run, loan.LoanID, valueobject.SeverityMedium,
				"maturity_approaching_90",
				fmt.Sprintf("loan matures %s with principal %s outstanding",
					loan.MaturityDate.Format("2006-01-02"), loan.PrincipalBalance),
				[]string{"send maturity notice"},
				out); err != nil {
				return err
			}
		}
	}
	return nil
}

// insertEvent fills the run-scoped fields and writes the event unless the
// key already exists or the run is a dry run.
func (uc *RunServicingCycleUseCase) insertEvent(ctx context.Context, run model.ServicingRun, ev model.ServicingEvent) (bool, error) {
	ev.ID = uuid.New()
	ev.RunID = run.ID()
	ev.TenantID = run.TenantID()
	ev.ValuationDate = run.ValuationDate()
	ev.Status = valueobject.EventSuccess
	ev.CreatedAt = time.Now().UTC()

	if run.DryRun() {
		return true, nil
	}
	inserted, err := uc.runs.InsertEvent(ctx, ev)
	if err != nil {
		return false, fmt.Errorf("insert event %s: %w", ev.EventKey, err)
	}
	if !inserted {
		uc.logger.Debug("servicing step already done", "event_key", ev.EventKey)
	}
	return inserted, nil
}

func (uc *RunServicingCycleUseCase) openException(ctx context.Context, run model.ServicingRun, loanID string, severity valueobject.Severity, excType, msg string, actions []string, out *loanOutcome) error {
	runID := run.ID()
	exc := model.NewServicingException(run.TenantID(), &runID, loanID, severity,
		excType, msg, actions, time.Now().UTC())

	if !run.DryRun() {
		// One open case per (loan, type); a second sweep must not duplicate it.
		open, err := uc.runs.ListOpenExceptions(ctx, loanID)
		if err != nil {
			return fmt.Errorf("list open exceptions: %w", err)
		}
		for _, o := range open {
			if o.Type == excType {
				return nil
			}
		}
		if err := uc.runs.InsertException(ctx, exc); err != nil {
			return fmt.Errorf("insert exception: %w", err)
		}
		payload, _ := json.Marshal(map[string]any{
			"exception_id": exc.ID,
			"loan_id":      loanID,
			"type":         excType,
			"severity":     severity,
			"due_date":     exc.DueDate.Format("2006-01-02"),
		})
		ev := event.NewExceptionOpened(exc.ID, run.TenantID(), run.ID().String(), payload)
		if err := uc.outbox.Publish(ctx, ev); err != nil {
			uc.logger.Error("enqueue exception.opened event", "exception_id", exc.ID, "error", err)
		}
	}
	out.exceptions++
	return nil
}
