package model_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cschwartz85032/loanserve-sub001/internal/domain/model"
	"github.com/cschwartz85032/loanserve-sub001/internal/domain/valueobject"
)

func newTestRun(t *testing.T) model.ServicingRun {
	t.Helper()
	valuation := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	run, err := model.NewServicingRun(uuid.New(), valuation, nil, false, "hash", valuation)
	require.NoError(t, err)
	return run
}

func TestServicingRun_Lifecycle(t *testing.T) {
	run := newTestRun(t)
	now := time.Now().UTC()
	assert.Equal(t, valueobject.RunPending, run.Status())

	running, err := run.Start(3, now)
	require.NoError(t, err)
	assert.Equal(t, valueobject.RunRunning, running.Status())
	assert.Equal(t, 3, running.TotalLoans())

	running = running.RecordLoan(4, 1, 100000, 99999, now)
	running = running.RecordLoan(2, 0, 50000, 50000, now)
	assert.Equal(t, 2, running.LoansProcessed())
	assert.Equal(t, 6, running.EventsCreated())
	assert.Equal(t, 1, running.ExceptionsCreated())

	done, err := running.Complete(running.ReconcileDisbursements(), now)
	require.NoError(t, err)
	assert.Equal(t, valueobject.RunCompleted, done.Status())
}

func TestServicingRun_StartRequiresPending(t *testing.T) {
	run := newTestRun(t)
	now := time.Now().UTC()

	running, err := run.Start(1, now)
	require.NoError(t, err)
	_, err = running.Start(1, now)
	assert.ErrorIs(t, err, model.ErrRunNotPending)
}

func TestServicingRun_RecordException(t *testing.T) {
	run := newTestRun(t)
	now := time.Now().UTC()

	running, err := run.Start(1, now)
	require.NoError(t, err)

	flagged := running.RecordException(now)
	assert.Equal(t, 1, flagged.ExceptionsCreated())
	assert.Equal(t, 0, flagged.LoansProcessed(), "a run-level case counts no loan")
}

func TestServicingRun_CompleteRequiresRunning(t *testing.T) {
	run := newTestRun(t)
	_, err := run.Complete(valueobject.ReconBalanced, time.Now().UTC())
	assert.Error(t, err)
}

func TestServicingRun_FailRecordsError(t *testing.T) {
	run := newTestRun(t)
	now := time.Now().UTC()
	running, err := run.Start(1, now)
	require.NoError(t, err)

	failed, err := running.Fail("loan LN-1: read model unavailable", now)
	require.NoError(t, err)
	assert.Equal(t, valueobject.RunFailed, failed.Status())
	assert.Contains(t, failed.Errors(), "loan LN-1: read model unavailable")

	_, err = failed.Fail("again", now)
	assert.Error(t, err)
}

func TestServicingRun_CancelTerminalGuard(t *testing.T) {
	run := newTestRun(t)
	now := time.Now().UTC()

	cancelled, err := run.Cancel(now)
	require.NoError(t, err)
	assert.Equal(t, valueobject.RunCancelled, cancelled.Status())

	_, err = cancelled.Cancel(now)
	assert.Error(t, err)
}

func TestServicingRun_ReconcileDisbursements(t *testing.T) {
	now := time.Now().UTC()
	run := newTestRun(t)
	running, err := run.Start(1, now)
	require.NoError(t, err)

	balanced := running.RecordLoan(0, 0, 100000, 100000, now)
	assert.Equal(t, valueobject.ReconBalanced, balanced.ReconcileDisbursements())

	pending := running.RecordLoan(0, 0, 100000, 99500, now)
	assert.Equal(t, valueobject.ReconPending, pending.ReconcileDisbursements())

	imbalanced := running.RecordLoan(0, 0, 100000, 50000, now)
	assert.Equal(t, valueobject.ReconImbalanced, imbalanced.ReconcileDisbursements())
}

func TestEventKey(t *testing.T) {
	valuation := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, "interest_accrual_LN-42_2026-03-15",
		model.EventKey("interest_accrual", "LN-42", valuation))
	assert.Equal(t, "investor_distribution_INV-7_PAY-9_2026-03-15",
		model.EventKey("investor_distribution", "INV-7_PAY-9", valuation))
	assert.Equal(t, "late_fee_LN-42_2026-03-15_x",
		model.EventKey("late_fee", "LN-42", valuation, "x"))
}
