package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/cschwartz85032/loanserve-sub001/internal/application/dto"
	"github.com/cschwartz85032/loanserve-sub001/internal/domain/event"
	"github.com/cschwartz85032/loanserve-sub001/internal/domain/model"
	"github.com/cschwartz85032/loanserve-sub001/internal/domain/port"
	"github.com/cschwartz85032/loanserve-sub001/internal/domain/valueobject"
	"github.com/cschwartz85032/loanserve-sub001/pkg/events"
	"github.com/cschwartz85032/loanserve-sub001/pkg/postgres"
)

// RecordReconciliationUseCase stores one bank-vs-SoR comparison. A variance
// opens a graded exception case and announces it through the outbox.
type RecordReconciliationUseCase struct {
	recons port.ReconciliationRepository
	runs   port.ServicingRepository
	outbox events.EventPublisher
	logger *slog.Logger
}

// NewRecordReconciliationUseCase wires the reconciliation path.
func NewRecordReconciliationUseCase(
	recons port.ReconciliationRepository,
	runs port.ServicingRepository,
	outbox events.EventPublisher,
	logger *slog.Logger,
) *RecordReconciliationUseCase {
	return &RecordReconciliationUseCase{recons: recons, runs: runs, outbox: outbox, logger: logger}
}

// Execute upserts the (channel, period) row. Reposting the same period
// replaces the totals and re-derives the verdict.
func (uc *RecordReconciliationUseCase) Execute(ctx context.Context, cmd dto.RecordReconciliationCommand) (dto.ReconciliationResponse, error) {
	tenantID, err := postgres.RequireTenant(ctx)
	if err != nil {
		return dto.ReconciliationResponse{}, err
	}

	channel, err := valueobject.NewChannel(cmd.Channel)
	if err != nil {
		return dto.ReconciliationResponse{}, err
	}
	periodStart, err := time.Parse("2006-01-02", cmd.PeriodStart)
	if err != nil {
		return dto.ReconciliationResponse{}, fmt.Errorf("invalid period start %q: %w", cmd.PeriodStart, err)
	}
	periodEnd, err := time.Parse("2006-01-02", cmd.PeriodEnd)
	if err != nil {
		return dto.ReconciliationResponse{}, fmt.Errorf("invalid period end %q: %w", cmd.PeriodEnd, err)
	}

	now := time.Now().UTC()
	rec, err := model.NewReconciliation(tenantID, channel, periodStart, periodEnd,
		cmd.BankTotal, cmd.SORTotal, now)
	if err != nil {
		return dto.ReconciliationResponse{}, err
	}

	if rec.Status == valueobject.ReconciliationVariance {
		exc, err := rec.OpenException(now)
		if err != nil {
			return dto.ReconciliationResponse{}, err
		}
		if err := uc.runs.InsertException(ctx, exc); err != nil {
			return dto.ReconciliationResponse{}, fmt.Errorf("open variance exception: %w", err)
		}
		rec.ExceptionID = &exc.ID

		payload, _ := json.Marshal(map[string]any{
			"reconciliation_id": rec.ID,
			"channel":           string(channel),
			"period_start":      cmd.PeriodStart,
			"period_end":        cmd.PeriodEnd,
			"variance_cents":    rec.Variance(),
			"severity":          exc.Severity,
			"exception_id":      exc.ID,
		})
		ev := event.NewReconVariance(rec.ID, tenantID, rec.ID.String(), payload)
		if err := uc.outbox.Publish(ctx, ev); err != nil {
			uc.logger.Error("enqueue variance event", "reconciliation_id", rec.ID, "error", err)
		}

		uc.logger.Warn("reconciliation variance",
			"channel", channel, "period_start", cmd.PeriodStart, "period_end", cmd.PeriodEnd,
			"variance_cents", int64(rec.Variance()), "severity", exc.Severity)
	}

	stored, err := uc.recons.Upsert(ctx, rec)
	if err != nil {
		return dto.ReconciliationResponse{}, fmt.Errorf("store reconciliation: %w", err)
	}
	return dto.ReconciliationToResponse(stored), nil
}
