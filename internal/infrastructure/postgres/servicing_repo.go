package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cschwartz85032/loanserve-sub001/internal/domain/model"
	"github.com/cschwartz85032/loanserve-sub001/internal/domain/port"
	"github.com/cschwartz85032/loanserve-sub001/internal/domain/valueobject"
	"github.com/cschwartz85032/loanserve-sub001/pkg/money"
	pgshared "github.com/cschwartz85032/loanserve-sub001/pkg/postgres"
)

const runColumns = `id, tenant_id, valuation_date, status, total_loans, loans_processed,
	events_created, exceptions_created, disbursed_beneficiary, disbursed_investors,
	recon_status, dry_run, loan_ids, input_hash, errors, created_at, updated_at`

// ServicingRepo persists servicing runs and their per-loan artifacts.
type ServicingRepo struct {
	pool *pgxpool.Pool
}

// NewServicingRepo creates the repository.
func NewServicingRepo(pool *pgxpool.Pool) *ServicingRepo {
	return &ServicingRepo{pool: pool}
}

var _ port.ServicingRepository = (*ServicingRepo)(nil)

// SaveRun inserts a new run.
func (r *ServicingRepo) SaveRun(ctx context.Context, run model.ServicingRun) error {
	return pgshared.WithTenantTransaction(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO servicing_runs (`+runColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
			run.ID(), run.TenantID(), run.ValuationDate(), string(run.Status()),
			run.TotalLoans(), run.LoansProcessed(), run.EventsCreated(), run.ExceptionsCreated(),
			int64(run.DisbursedBeneficiary()), int64(run.DisbursedInvestors()),
			string(run.ReconStatus()), run.DryRun(), run.LoanIDs(), run.InputHash(),
			run.Errors(), run.CreatedAt(), run.UpdatedAt())
		if err != nil {
			return fmt.Errorf("insert servicing run %s: %w", run.ID(), err)
		}
		return nil
	})
}

// UpdateRun persists the run's current state.
func (r *ServicingRepo) UpdateRun(ctx context.Context, run model.ServicingRun) error {
	return pgshared.WithTenantTransaction(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE servicing_runs SET status = $1, total_loans = $2, loans_processed = $3,
				events_created = $4, exceptions_created = $5, disbursed_beneficiary = $6,
				disbursed_investors = $7, recon_status = $8, errors = $9, updated_at = $10
			WHERE id = $11`,
			string(run.Status()), run.TotalLoans(), run.LoansProcessed(),
			run.EventsCreated(), run.ExceptionsCreated(),
			int64(run.DisbursedBeneficiary()), int64(run.DisbursedInvestors()),
			string(run.ReconStatus()), run.Errors(), run.UpdatedAt(), run.ID())
		if err != nil {
			return fmt.Errorf("update servicing run %s: %w", run.ID(), err)
		}
		if tag.RowsAffected() == 0 {
			return port.ErrNotFound
		}
		return nil
	})
}

// GetRun loads one run.
func (r *ServicingRepo) GetRun(ctx context.Context, id uuid.UUID) (model.ServicingRun, error) {
	var run model.ServicingRun
	err := pgshared.WithTenantTransaction(ctx, r.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `SELECT `+runColumns+` FROM servicing_runs WHERE id = $1`, id)
		var scanErr error
		run, scanErr = scanRun(row)
		return scanErr
	})
	return run, err
}

// FindActiveRun returns the tenant's pending or running run.
func (r *ServicingRepo) FindActiveRun(ctx context.Context) (model.ServicingRun, error) {
	var run model.ServicingRun
	err := pgshared.WithTenantTransaction(ctx, r.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			SELECT `+runColumns+` FROM servicing_runs
			WHERE status IN ('pending', 'running')
			ORDER BY created_at LIMIT 1`)
		var scanErr error
		run, scanErr = scanRun(row)
		return scanErr
	})
	return run, err
}

// InsertEvent writes one servicing event. A duplicate event key reports
// (false, nil): the step already ran in a previous attempt.
func (r *ServicingRepo) InsertEvent(ctx context.Context, ev model.ServicingEvent) (bool, error) {
	var inserted bool
	err := pgshared.WithTenantTransaction(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			INSERT INTO servicing_events (id, run_id, tenant_id, event_key, event_type,
				loan_id, valuation_date, amount_cents, principal_cents, interest_cents,
				escrow_cents, fees_cents, details, status, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
			ON CONFLICT ON CONSTRAINT servicing_events_tenant_key DO NOTHING`,
			ev.ID, ev.RunID, ev.TenantID, ev.EventKey, ev.EventType,
			ev.LoanID, ev.ValuationDate, int64(ev.Amount), int64(ev.Principal),
			int64(ev.Interest), int64(ev.Escrow), int64(ev.Fees),
			ev.Details, string(ev.Status), ev.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert servicing event %s: %w", ev.EventKey, err)
		}
		inserted = tag.RowsAffected() == 1
		return nil
	})
	return inserted, err
}

// DeleteLoanEvents clears one loan's events for a valuation date within a
// single run so the loan can be reprocessed without key collisions.
func (r *ServicingRepo) DeleteLoanEvents(ctx context.Context, runID uuid.UUID, loanID string, valuationDate time.Time) (int, error) {
	var removed int
	err := pgshared.WithTenantTransaction(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			DELETE FROM servicing_events
			WHERE run_id = $1 AND loan_id = $2 AND valuation_date = $3`,
			runID, loanID, valuationDate)
		if err != nil {
			return fmt.Errorf("delete servicing events for loan %s: %w", loanID, err)
		}
		removed = int(tag.RowsAffected())
		return nil
	})
	return removed, err
}

// InsertAccrual writes one accrual record.
func (r *ServicingRepo) InsertAccrual(ctx context.Context, acc model.InterestAccrual) error {
	return pgshared.WithTenantTransaction(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO interest_accruals (id, tenant_id, loan_id, run_id, accrual_date,
				from_date, to_date, day_count, convention, interest_rate, principal_balance,
				daily_rate, accrued_amount, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
			ON CONFLICT ON CONSTRAINT interest_accruals_loan_date DO NOTHING`,
			acc.ID, acc.TenantID, acc.LoanID, acc.RunID, acc.AccrualDate,
			acc.FromDate, acc.ToDate, acc.DayCount, string(acc.Convention),
			acc.InterestRate, acc.PrincipalBalance, acc.DailyRate,
			acc.AccruedAmount, acc.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert accrual for loan %s: %w", acc.LoanID, err)
		}
		return nil
	})
}

// InsertLedgerEntries writes the validated lines a cycle step produced.
func (r *ServicingRepo) InsertLedgerEntries(ctx context.Context, entries model.EntrySet) error {
	if err := entries.Validate(); err != nil {
		return fmt.Errorf("cycle ledger entries: %w", err)
	}
	return pgshared.WithTenantTransaction(ctx, r.pool, func(tx pgx.Tx) error {
		for _, line := range entries.Lines {
			_, err := tx.Exec(ctx, `
				INSERT INTO ledger_entries (id, tenant_id, payment_id, entry_date, account_type,
					account_code, debit_cents, credit_cents, description, correlation_id, metadata)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
				line.ID, line.TenantID, line.PaymentID, line.EntryDate,
				string(line.AccountType), string(line.AccountCode),
				int64(line.DebitCents), int64(line.CreditCents),
				line.Description, line.CorrelationID, line.Metadata)
			if err != nil {
				return fmt.Errorf("insert ledger entry %s: %w", line.ID, err)
			}
		}
		return nil
	})
}

// InsertException opens one exception case.
func (r *ServicingRepo) InsertException(ctx context.Context, exc model.ServicingException) error {
	return pgshared.WithTenantTransaction(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO servicing_exceptions (id, run_id, tenant_id, loan_id, severity,
				exception_type, message, suggested_action, due_date, status, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			exc.ID, exc.RunID, exc.TenantID, exc.LoanID, string(exc.Severity),
			exc.Type, exc.Message, exc.SuggestedAction, exc.DueDate,
			string(exc.Status), exc.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert exception for loan %s: %w", exc.LoanID, err)
		}
		return nil
	})
}

// ListOpenExceptions returns the loan's open cases.
func (r *ServicingRepo) ListOpenExceptions(ctx context.Context, loanID string) ([]model.ServicingException, error) {
	var out []model.ServicingException
	err := pgshared.WithTenantTransaction(ctx, r.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			SELECT id, run_id, tenant_id, loan_id, severity, exception_type, message,
				suggested_action, due_date, status, created_at
			FROM servicing_exceptions
			WHERE loan_id = $1 AND status = 'open'
			ORDER BY created_at`, loanID)
		if err != nil {
			return fmt.Errorf("list open exceptions: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var exc model.ServicingException
			var severity, status string
			if err := rows.Scan(&exc.ID, &exc.RunID, &exc.TenantID, &exc.LoanID,
				&severity, &exc.Type, &exc.Message, &exc.SuggestedAction,
				&exc.DueDate, &status, &exc.CreatedAt); err != nil {
				return fmt.Errorf("scan exception: %w", err)
			}
			exc.Severity = valueobject.Severity(severity)
			exc.Status = valueobject.ExceptionStatus(status)
			out = append(out, exc)
		}
		return rows.Err()
	})
	return out, err
}

// CheckOwnershipPrecision verifies the investor ownership column carries the
// fixed numeric(8,6) scale distributions depend on. Run once at startup.
func (r *ServicingRepo) CheckOwnershipPrecision(ctx context.Context) error {
	var precision, scale int
	err := r.pool.QueryRow(ctx, `
		SELECT numeric_precision, numeric_scale
		FROM information_schema.columns
		WHERE table_name = 'investor_positions' AND column_name = 'ownership'`).
		Scan(&precision, &scale)
	if errors.Is(err, pgx.ErrNoRows) {
		return errors.New("investor_positions.ownership column not found")
	}
	if err != nil {
		return fmt.Errorf("inspect ownership column: %w", err)
	}
	if precision != 8 || scale != 6 {
		return fmt.Errorf("investor_positions.ownership must be numeric(8,6), found numeric(%d,%d)", precision, scale)
	}
	return nil
}

func scanRun(row pgx.Row) (model.ServicingRun, error) {
	var (
		id, tenantID                        uuid.UUID
		valuationDate, createdAt, updatedAt time.Time
		status, reconStatus, inputHash      string
		totalLoans, loansProcessed          int
		eventsCreated, exceptionsCreated    int
		beneficiary, investors              int64
		dryRun                              bool
		loanIDs, errs                       []string
	)
	err := row.Scan(&id, &tenantID, &valuationDate, &status, &totalLoans, &loansProcessed,
		&eventsCreated, &exceptionsCreated, &beneficiary, &investors,
		&reconStatus, &dryRun, &loanIDs, &inputHash, &errs, &createdAt, &updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.ServicingRun{}, port.ErrNotFound
	}
	if err != nil {
		return model.ServicingRun{}, fmt.Errorf("scan servicing run: %w", err)
	}

	return model.ReconstructServicingRun(
		id, tenantID, valuationDate,
		valueobject.RunStatus(status),
		totalLoans, loansProcessed, eventsCreated, exceptionsCreated,
		money.Cents(beneficiary), money.Cents(investors),
		valueobject.ReconStatus(reconStatus),
		dryRun, loanIDs, inputHash, errs, createdAt, updatedAt), nil
}
