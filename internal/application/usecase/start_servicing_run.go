package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/cschwartz85032/loanserve-sub001/internal/application/dto"
	"github.com/cschwartz85032/loanserve-sub001/internal/domain/event"
	"github.com/cschwartz85032/loanserve-sub001/internal/domain/model"
	"github.com/cschwartz85032/loanserve-sub001/internal/domain/port"
	"github.com/cschwartz85032/loanserve-sub001/internal/domain/service"
	"github.com/cschwartz85032/loanserve-sub001/pkg/events"
	"github.com/cschwartz85032/loanserve-sub001/pkg/postgres"
)

// ErrRunInProgress rejects a second concurrent cycle for the same tenant.
var ErrRunInProgress = errors.New("a servicing run is already pending or running")

// StartServicingRunUseCase creates a pending run and announces it through the
// outbox so a run worker picks it up.
type StartServicingRunUseCase struct {
	runs   port.ServicingRepository
	outbox events.EventPublisher
	logger *slog.Logger
}

// NewStartServicingRunUseCase wires the run creation path.
func NewStartServicingRunUseCase(runs port.ServicingRepository, outbox events.EventPublisher, logger *slog.Logger) *StartServicingRunUseCase {
	return &StartServicingRunUseCase{runs: runs, outbox: outbox, logger: logger}
}

// Execute registers a new pending run, refusing while another is active.
func (uc *StartServicingRunUseCase) Execute(ctx context.Context, cmd dto.StartServicingRunCommand) (dto.ServicingRunResponse, error) {
	tenantID, err := postgres.RequireTenant(ctx)
	if err != nil {
		return dto.ServicingRunResponse{}, err
	}

	valuationDate, err := time.Parse("2006-01-02", cmd.ValuationDate)
	if err != nil {
		return dto.ServicingRunResponse{}, fmt.Errorf("invalid valuation date %q: %w", cmd.ValuationDate, err)
	}

	if _, err := uc.runs.FindActiveRun(ctx); err == nil {
		return dto.ServicingRunResponse{}, ErrRunInProgress
	} else if !errors.Is(err, port.ErrNotFound) {
		return dto.ServicingRunResponse{}, fmt.Errorf("check active run: %w", err)
	}

	inputHash, err := service.RunInputHash(valuationDate, cmd.LoanIDs, cmd.DryRun)
	if err != nil {
		return dto.ServicingRunResponse{}, fmt.Errorf("hash run input: %w", err)
	}

	now := time.Now().UTC()
	run, err := model.NewServicingRun(tenantID, valuationDate, cmd.LoanIDs, cmd.DryRun, inputHash, now)
	if err != nil {
		return dto.ServicingRunResponse{}, err
	}
	if err := uc.runs.SaveRun(ctx, run); err != nil {
		return dto.ServicingRunResponse{}, fmt.Errorf("save run: %w", err)
	}

	payload, err := json.Marshal(event.ServicingRunStartedPayload{
		RunID:         run.ID(),
		ValuationDate: cmd.ValuationDate,
		DryRun:        cmd.DryRun,
	})
	if err != nil {
		return dto.ServicingRunResponse{}, fmt.Errorf("encode run.started payload: %w", err)
	}
	started := event.NewServicingRunStarted(run.ID(), tenantID, run.ID().String(), payload)
	if err := uc.outbox.Publish(ctx, started); err != nil {
		return dto.ServicingRunResponse{}, fmt.Errorf("enqueue run.started event: %w", err)
	}

	uc.logger.Info("servicing run created",
		"run_id", run.ID(), "valuation_date", cmd.ValuationDate, "dry_run", cmd.DryRun)
	return dto.RunToResponse(run), nil
}

// GetServicingRunUseCase reads one run.
type GetServicingRunUseCase struct {
	runs port.ServicingRepository
}

// NewGetServicingRunUseCase wires the read path.
func NewGetServicingRunUseCase(runs port.ServicingRepository) *GetServicingRunUseCase {
	return &GetServicingRunUseCase{runs: runs}
}

// Execute returns the run or port.ErrNotFound.
func (uc *GetServicingRunUseCase) Execute(ctx context.Context, id uuid.UUID) (dto.ServicingRunResponse, error) {
	run, err := uc.runs.GetRun(ctx, id)
	if err != nil {
		return dto.ServicingRunResponse{}, err
	}
	return dto.RunToResponse(run), nil
}

// CancelServicingRunUseCase cancels a pending or running run. Events already
// written stay in place.
type CancelServicingRunUseCase struct {
	runs   port.ServicingRepository
	logger *slog.Logger
}

// NewCancelServicingRunUseCase wires the cancel path.
func NewCancelServicingRunUseCase(runs port.ServicingRepository, logger *slog.Logger) *CancelServicingRunUseCase {
	return &CancelServicingRunUseCase{runs: runs, logger: logger}
}

// Execute marks the run cancelled.
func (uc *CancelServicingRunUseCase) Execute(ctx context.Context, id uuid.UUID) (dto.ServicingRunResponse, error) {
	run, err := uc.runs.GetRun(ctx, id)
	if err != nil {
		return dto.ServicingRunResponse{}, err
	}
	cancelled, err := run.Cancel(time.Now().UTC())
	if err != nil {
		return dto.ServicingRunResponse{}, err
	}
	if err := uc.runs.UpdateRun(ctx, cancelled); err != nil {
		return dto.ServicingRunResponse{}, fmt.Errorf("update run: %w", err)
	}
	uc.logger.Info("servicing run cancelled", "run_id", id)
	return dto.RunToResponse(cancelled), nil
}
