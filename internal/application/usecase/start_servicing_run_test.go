package usecase_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cschwartz85032/loanserve-sub001/internal/application/dto"
	"github.com/cschwartz85032/loanserve-sub001/internal/application/usecase"
	"github.com/cschwartz85032/loanserve-sub001/internal/domain/event"
	"github.com/cschwartz85032/loanserve-sub001/internal/domain/port"
	"github.com/cschwartz85032/loanserve-sub001/internal/domain/service"
	"github.com/cschwartz85032/loanserve-sub001/internal/domain/valueobject"
	"github.com/cschwartz85032/loanserve-sub001/pkg/postgres"
)

func TestStartServicingRun_CreatesPendingRun(t *testing.T) {
	ctx, _ := tenantCtx()
	repo := newFakeServicingRepo()
	pub := &fakePublisher{}

	cmd := dto.StartServicingRunCommand{
		ValuationDate: "2026-03-15",
		LoanIDs:       []string{"LN-42", "LN-43"},
		DryRun:        false,
	}
	resp, err := usecase.NewStartServicingRunUseCase(repo, pub, testLogger()).Execute(ctx, cmd)
	require.NoError(t, err)

	assert.Equal(t, string(valueobject.RunPending), resp.Status)
	assert.Equal(t, "2026-03-15", resp.ValuationDate)

	stored, err := repo.GetRun(context.Background(), resp.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"LN-42", "LN-43"}, stored.LoanIDs())

	wantHash, err := service.RunInputHash(
		time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), cmd.LoanIDs, false)
	require.NoError(t, err)
	assert.Equal(t, wantHash, stored.InputHash())
}

func TestStartServicingRun_AnnouncesRunToWorker(t *testing.T) {
	ctx, _ := tenantCtx()
	repo := newFakeServicingRepo()
	pub := &fakePublisher{}

	resp, err := usecase.NewStartServicingRunUseCase(repo, pub, testLogger()).
		Execute(ctx, dto.StartServicingRunCommand{ValuationDate: "2026-03-15", DryRun: true})
	require.NoError(t, err)

	require.Len(t, pub.published, 1)
	ev := pub.published[0]
	assert.Equal(t, "servicing.run.started", ev.EventType())
	assert.Equal(t, resp.ID, ev.AggregateID())

	var payload event.ServicingRunStartedPayload
	require.NoError(t, json.Unmarshal(ev.Payload(), &payload))
	assert.Equal(t, resp.ID, payload.RunID)
	assert.Equal(t, "2026-03-15", payload.ValuationDate)
	assert.True(t, payload.DryRun)
}

func TestStartServicingRun_AnnounceFailureSurfaces(t *testing.T) {
	ctx, _ := tenantCtx()
	repo := newFakeServicingRepo()
	pub := &fakePublisher{err: fmt.Errorf("outbox unavailable")}

	_, err := usecase.NewStartServicingRunUseCase(repo, pub, testLogger()).
		Execute(ctx, dto.StartServicingRunCommand{ValuationDate: "2026-03-15"})
	assert.ErrorContains(t, err, "run.started")
}

func TestStartServicingRun_RefusesWhileActive(t *testing.T) {
	ctx, _ := tenantCtx()
	repo := newFakeServicingRepo()
	pendingRun(t, repo, false)

	_, err := usecase.NewStartServicingRunUseCase(repo, &fakePublisher{}, testLogger()).
		Execute(ctx, dto.StartServicingRunCommand{ValuationDate: "2026-03-16"})
	assert.ErrorIs(t, err, usecase.ErrRunInProgress)
}

func TestStartServicingRun_RejectsBadDate(t *testing.T) {
	ctx, _ := tenantCtx()
	_, err := usecase.NewStartServicingRunUseCase(newFakeServicingRepo(), &fakePublisher{}, testLogger()).
		Execute(ctx, dto.StartServicingRunCommand{ValuationDate: "March 15th"})
	assert.Error(t, err)
}

func TestStartServicingRun_MissingTenant(t *testing.T) {
	_, err := usecase.NewStartServicingRunUseCase(newFakeServicingRepo(), &fakePublisher{}, testLogger()).
		Execute(context.Background(), dto.StartServicingRunCommand{ValuationDate: "2026-03-15"})
	assert.ErrorIs(t, err, postgres.ErrNoTenant)
}

func TestCancelServicingRun(t *testing.T) {
	repo := newFakeServicingRepo()
	run := pendingRun(t, repo, false)

	resp, err := usecase.NewCancelServicingRunUseCase(repo, testLogger()).
		Execute(context.Background(), run.ID())
	require.NoError(t, err)
	assert.Equal(t, string(valueobject.RunCancelled), resp.Status)

	// Terminal runs cannot be cancelled again.
	_, err = usecase.NewCancelServicingRunUseCase(repo, testLogger()).
		Execute(context.Background(), run.ID())
	assert.Error(t, err)
}

func TestGetServicingRun_NotFound(t *testing.T) {
	_, err := usecase.NewGetServicingRunUseCase(newFakeServicingRepo()).
		Execute(context.Background(), uuid.New())
	assert.ErrorIs(t, err, port.ErrNotFound)
}
