package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cschwartz85032/loanserve-sub001/internal/domain/port"
	"github.com/cschwartz85032/loanserve-sub001/pkg/money"
	pgshared "github.com/cschwartz85032/loanserve-sub001/pkg/postgres"
)

const loanColumns = `loan_id, tenant_id, principal_balance, interest_rate, last_accrual_date,
	next_due_date, past_due_days, past_due_cents, grace_days, late_fee_cents,
	escrow_balance_cents, escrow_requirement_cents, maturity_date,
	outstanding_fees_cents, outstanding_interest_cents, scheduled_principal_cents`

// LoanReadModel queries the loan servicing projections. The loan master is
// maintained upstream; this layer only reads.
type LoanReadModel struct {
	pool *pgxpool.Pool
}

// NewLoanReadModel creates the read model.
func NewLoanReadModel(pool *pgxpool.Pool) *LoanReadModel {
	return &LoanReadModel{pool: pool}
}

var _ port.LoanReadModel = (*LoanReadModel)(nil)

// ListLoans returns the requested loans, or every loan when loanIDs is empty.
func (m *LoanReadModel) ListLoans(ctx context.Context, loanIDs []string) ([]port.LoanPosition, error) {
	var out []port.LoanPosition
	err := pgshared.WithTenantTransaction(ctx, m.pool, func(tx pgx.Tx) error {
		var (
			rows pgx.Rows
			err  error
		)
		if len(loanIDs) == 0 {
			rows, err = tx.Query(ctx, `SELECT `+loanColumns+` FROM loans ORDER BY loan_id`)
		} else {
			rows, err = tx.Query(ctx, `SELECT `+loanColumns+` FROM loans WHERE loan_id = ANY($1) ORDER BY loan_id`, loanIDs)
		}
		if err != nil {
			return fmt.Errorf("list loans: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			pos, err := scanLoan(rows)
			if err != nil {
				return err
			}
			out = append(out, pos)
		}
		return rows.Err()
	})
	return out, err
}

// ReceivableState returns the outstanding buckets the waterfall runs over.
func (m *LoanReadModel) ReceivableState(ctx context.Context, loanID string) (port.ReceivableSnapshot, error) {
	var snap port.ReceivableSnapshot
	err := pgshared.WithTenantTransaction(ctx, m.pool, func(tx pgx.Tx) error {
		var fees, interest, principal, escrow int64
		err := tx.QueryRow(ctx, `
			SELECT outstanding_fees_cents, outstanding_interest_cents,
				scheduled_principal_cents, escrow_requirement_cents
			FROM loans WHERE loan_id = $1`, loanID).
			Scan(&fees, &interest, &principal, &escrow)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("loan %s: %w", loanID, port.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("load receivables: %w", err)
		}
		snap = port.ReceivableSnapshot{
			OutstandingFees:     money.Cents(fees),
			OutstandingInterest: money.Cents(interest),
			ScheduledPrincipal:  money.Cents(principal),
			EscrowRequirement:   money.Cents(escrow),
		}
		return nil
	})
	return snap, err
}

// PendingPayments returns the loan's received-but-unapplied payments with a
// value date on or before asOf.
func (m *LoanReadModel) PendingPayments(ctx context.Context, loanID string, asOf time.Time) ([]port.PendingPayment, error) {
	var out []port.PendingPayment
	err := pgshared.WithTenantTransaction(ctx, m.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			SELECT id, loan_id, amount_cents, value_date
			FROM payments
			WHERE loan_id = $1 AND status = 'received' AND value_date <= $2
			ORDER BY value_date, id`, loanID, asOf)
		if err != nil {
			return fmt.Errorf("list pending payments: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var p port.PendingPayment
			var amount int64
			if err := rows.Scan(&p.PaymentID, &p.LoanID, &amount, &p.ValueDate); err != nil {
				return fmt.Errorf("scan pending payment: %w", err)
			}
			p.Amount = money.Cents(amount)
			out = append(out, p)
		}
		return rows.Err()
	})
	return out, err
}

// FeesDue returns the loan's scheduled fees due by asOf and not yet assessed.
func (m *LoanReadModel) FeesDue(ctx context.Context, loanID string, asOf time.Time) ([]port.FeeDue, error) {
	var out []port.FeeDue
	err := pgshared.WithTenantTransaction(ctx, m.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			SELECT id, loan_id, fee_type, amount_cents, due_date
			FROM loan_fees
			WHERE loan_id = $1 AND due_date <= $2 AND assessed_at IS NULL
			ORDER BY due_date, id`, loanID, asOf)
		if err != nil {
			return fmt.Errorf("list fees due: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var f port.FeeDue
			var amount int64
			if err := rows.Scan(&f.ID, &f.LoanID, &f.FeeType, &amount, &f.DueDate); err != nil {
				return fmt.Errorf("scan fee: %w", err)
			}
			f.AmountCents = money.Cents(amount)
			out = append(out, f)
		}
		return rows.Err()
	})
	return out, err
}

// DisbursementsDue returns the loan's undisbursed escrow obligations due by
// asOf.
func (m *LoanReadModel) DisbursementsDue(ctx context.Context, loanID string, asOf time.Time) ([]port.EscrowDisbursement, error) {
	var out []port.EscrowDisbursement
	err := pgshared.WithTenantTransaction(ctx, m.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			SELECT id, loan_id, payee, category, amount_cents, due_date
			FROM escrow_disbursements
			WHERE loan_id = $1 AND due_date <= $2 AND disbursed_at IS NULL
			ORDER BY due_date, id`, loanID, asOf)
		if err != nil {
			return fmt.Errorf("list disbursements: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var d port.EscrowDisbursement
			var amount int64
			if err := rows.Scan(&d.ID, &d.LoanID, &d.Payee, &d.Category, &amount, &d.DueDate); err != nil {
				return fmt.Errorf("scan disbursement: %w", err)
			}
			d.AmountCents = money.Cents(amount)
			out = append(out, d)
		}
		return rows.Err()
	})
	return out, err
}

// InvestorPositions returns the loan's ownership table.
func (m *LoanReadModel) InvestorPositions(ctx context.Context, loanID string) ([]port.InvestorPosition, error) {
	var out []port.InvestorPosition
	err := pgshared.WithTenantTransaction(ctx, m.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			SELECT investor_id, loan_id, ownership
			FROM investor_positions
			WHERE loan_id = $1
			ORDER BY investor_id`, loanID)
		if err != nil {
			return fmt.Errorf("list investor positions: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var p port.InvestorPosition
			if err := rows.Scan(&p.InvestorID, &p.LoanID, &p.Ownership); err != nil {
				return fmt.Errorf("scan investor position: %w", err)
			}
			out = append(out, p)
		}
		return rows.Err()
	})
	return out, err
}

// CollectedPayments returns the loan's posted payments with a value date on
// or before asOf. The cycle's per-(investor, payment) event keys decide which
// of them still need distributing.
func (m *LoanReadModel) CollectedPayments(ctx context.Context, loanID string, asOf time.Time) ([]port.CollectedPayment, error) {
	var out []port.CollectedPayment
	err := pgshared.WithTenantTransaction(ctx, m.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			SELECT id, amount_cents
			FROM payments
			WHERE loan_id = $1 AND status = 'posted' AND value_date <= $2
			ORDER BY value_date, id`, loanID, asOf)
		if err != nil {
			return fmt.Errorf("list collected payments: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var p port.CollectedPayment
			var amount int64
			if err := rows.Scan(&p.PaymentID, &amount); err != nil {
				return fmt.Errorf("scan collected payment: %w", err)
			}
			p.Amount = money.Cents(amount)
			out = append(out, p)
		}
		return rows.Err()
	})
	return out, err
}

func scanLoan(rows pgx.Rows) (port.LoanPosition, error) {
	var (
		pos                        port.LoanPosition
		nextDue, maturity          *time.Time
		pastDue, lateFee           int64
		escrowBal, escrowReq       int64
		fees, interest, principal  int64
	)
	if err := rows.Scan(&pos.LoanID, &pos.TenantID, &pos.PrincipalBalance, &pos.InterestRate,
		&pos.LastAccrualDate, &nextDue, &pos.PastDueDays, &pastDue, &pos.GraceDays, &lateFee,
		&escrowBal, &escrowReq, &maturity, &fees, &interest, &principal); err != nil {
		return port.LoanPosition{}, fmt.Errorf("scan loan: %w", err)
	}
	if nextDue != nil {
		pos.NextDueDate = *nextDue
	}
	if maturity != nil {
		pos.MaturityDate = *maturity
	}
	pos.PastDueAmount = money.Cents(pastDue)
	pos.LateFeeCents = money.Cents(lateFee)
	pos.EscrowBalance = money.Cents(escrowBal)
	pos.EscrowRequirement = money.Cents(escrowReq)
	pos.Receivables = port.ReceivableSnapshot{
		OutstandingFees:     money.Cents(fees),
		OutstandingInterest: money.Cents(interest),
		ScheduledPrincipal:  money.Cents(principal),
		EscrowRequirement:   money.Cents(escrowReq),
	}
	return pos, nil
}
