package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cschwartz85032/loanserve-sub001/internal/domain/model"
	"github.com/cschwartz85032/loanserve-sub001/internal/domain/port"
	"github.com/cschwartz85032/loanserve-sub001/internal/domain/valueobject"
	"github.com/cschwartz85032/loanserve-sub001/pkg/money"
	pgshared "github.com/cschwartz85032/loanserve-sub001/pkg/postgres"
)

// ReconciliationRepo upserts bank-vs-SoR comparison rows keyed by
// (tenant, channel, period).
type ReconciliationRepo struct {
	pool *pgxpool.Pool
}

// NewReconciliationRepo creates the repository.
func NewReconciliationRepo(pool *pgxpool.Pool) *ReconciliationRepo {
	return &ReconciliationRepo{pool: pool}
}

var _ port.ReconciliationRepository = (*ReconciliationRepo)(nil)

// Upsert writes the row. Reposting the same period replaces the totals and
// verdict but keeps the original row id.
func (r *ReconciliationRepo) Upsert(ctx context.Context, rec model.Reconciliation) (model.Reconciliation, error) {
	var stored model.Reconciliation
	err := pgshared.WithTenantTransaction(ctx, r.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			INSERT INTO reconciliations (id, tenant_id, channel, period_start, period_end,
				bank_total, sor_total, status, exception_id, details, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			ON CONFLICT ON CONSTRAINT reconciliations_tenant_period DO UPDATE SET
				bank_total = EXCLUDED.bank_total,
				sor_total = EXCLUDED.sor_total,
				status = EXCLUDED.status,
				exception_id = COALESCE(EXCLUDED.exception_id, reconciliations.exception_id),
				details = EXCLUDED.details,
				updated_at = EXCLUDED.updated_at
			RETURNING id, tenant_id, channel, period_start, period_end, bank_total,
				sor_total, status, exception_id, details, created_at, updated_at`,
			rec.ID, rec.TenantID, string(rec.Channel), rec.PeriodStart, rec.PeriodEnd,
			int64(rec.BankTotal), int64(rec.SORTotal), string(rec.Status),
			rec.ExceptionID, rec.Details, rec.CreatedAt, rec.UpdatedAt)
		var scanErr error
		stored, scanErr = scanReconciliation(row)
		return scanErr
	})
	if err != nil {
		return model.Reconciliation{}, fmt.Errorf("upsert reconciliation: %w", err)
	}
	return stored, nil
}

// Get loads one row.
func (r *ReconciliationRepo) Get(ctx context.Context, id uuid.UUID) (model.Reconciliation, error) {
	var stored model.Reconciliation
	err := pgshared.WithTenantTransaction(ctx, r.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			SELECT id, tenant_id, channel, period_start, period_end, bank_total,
				sor_total, status, exception_id, details, created_at, updated_at
			FROM reconciliations WHERE id = $1`, id)
		var scanErr error
		stored, scanErr = scanReconciliation(row)
		return scanErr
	})
	return stored, err
}

func scanReconciliation(row pgx.Row) (model.Reconciliation, error) {
	var rec model.Reconciliation
	var channel, status string
	var bank, sor int64
	err := row.Scan(&rec.ID, &rec.TenantID, &channel, &rec.PeriodStart, &rec.PeriodEnd,
		&bank, &sor, &status, &rec.ExceptionID, &rec.Details, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Reconciliation{}, port.ErrNotFound
	}
	if err != nil {
		return model.Reconciliation{}, fmt.Errorf("scan reconciliation: %w", err)
	}
	rec.Channel = valueobject.Channel(channel)
	rec.Status = valueobject.ReconciliationRowStatus(status)
	rec.BankTotal = money.Cents(bank)
	rec.SORTotal = money.Cents(sor)
	return rec, nil
}
