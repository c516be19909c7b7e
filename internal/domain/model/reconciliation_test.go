package model_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cschwartz85032/loanserve-sub001/internal/domain/model"
	"github.com/cschwartz85032/loanserve-sub001/internal/domain/valueobject"
	"github.com/cschwartz85032/loanserve-sub001/pkg/money"
)

func newRecon(t *testing.T, bank, sor int64) model.Reconciliation {
	t.Helper()
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)
	rec, err := model.NewReconciliation(uuid.New(), valueobject.ChannelACH,
		start, end, money.Cents(bank), money.Cents(sor), end)
	require.NoError(t, err)
	return rec
}

func TestNewReconciliation_Balanced(t *testing.T) {
	rec := newRecon(t, 1_000_000, 1_000_000)
	assert.Equal(t, valueobject.ReconciliationBalanced, rec.Status)

	_, err := rec.OpenException(time.Now().UTC())
	assert.Error(t, err)
}

func TestNewReconciliation_VarianceSeverity(t *testing.T) {
	now := time.Now().UTC()

	// $2,750.00 variance grades high with a +3 day due date.
	rec := newRecon(t, 1_275_000, 1_000_000)
	assert.Equal(t, valueobject.ReconciliationVariance, rec.Status)

	exc, err := rec.OpenException(now)
	require.NoError(t, err)
	assert.Equal(t, valueobject.SeverityHigh, exc.Severity)
	assert.Equal(t, "reconciliation_variance", exc.Type)
	assert.Equal(t, now.AddDate(0, 0, 3), exc.DueDate)
	assert.Equal(t, model.VarianceSuggestedActions, exc.SuggestedAction)
}

func TestNewReconciliation_NegativeVarianceGradesOnMagnitude(t *testing.T) {
	rec := newRecon(t, 1_000_000, 1_005_000)
	assert.Equal(t, money.Cents(-5000), rec.Variance())

	exc, err := rec.OpenException(time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, valueobject.SeverityLow, exc.Severity)
}

func TestNewReconciliation_Validation(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	now := time.Now().UTC()

	_, err := model.NewReconciliation(uuid.Nil, valueobject.ChannelACH, start, start, 0, 0, now)
	assert.Error(t, err)

	_, err = model.NewReconciliation(uuid.New(), "carrier_pigeon", start, start, 0, 0, now)
	assert.Error(t, err)

	_, err = model.NewReconciliation(uuid.New(), valueobject.ChannelACH,
		start, start.AddDate(0, 0, -1), 0, 0, now)
	assert.Error(t, err)
}
