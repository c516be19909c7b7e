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

func newTestEnvelope() model.PaymentEnvelope {
	return model.PaymentEnvelope{
		Schema:         model.EnvelopeSchema,
		MessageID:      "msg-1",
		CorrelationID:  "corr-1",
		IdempotencyKey: "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef",
		Source:         model.EnvelopeSource{Channel: valueobject.ChannelACH, Provider: "column"},
		Borrower:       model.EnvelopeBorrower{LoanID: "LN-42"},
		Payment: model.EnvelopePayment{
			AmountCents: 125000,
			Currency:    "USD",
			Method:      "ach",
			ValueDate:   "2026-03-15",
			Reference:   "TRACE-001",
		},
		Risk: &model.EnvelopeRisk{Score: 20},
	}
}

func newTestPayment(t *testing.T, postingReady bool) model.Payment {
	t.Helper()
	alloc := valueobject.Allocation{Interest: 50000, Principal: 75000}
	if !postingReady {
		alloc = valueobject.SuspenseOnly(125000)
	}
	p, err := model.NewPayment(uuid.New(), newTestEnvelope(), alloc, postingReady, time.Now().UTC())
	require.NoError(t, err)
	return p
}

func TestNewPayment_Posted(t *testing.T) {
	p := newTestPayment(t, true)

	assert.Equal(t, valueobject.PaymentPosted, p.Status())
	assert.Equal(t, "LN-42", p.LoanID())
	assert.False(t, p.RequiresReview())
	assert.Equal(t, 20, p.RiskScore())
	assert.Equal(t, 1, p.Version())
	require.Len(t, p.DomainEvents(), 1)
}

func TestNewPayment_DeferredStaysReceived(t *testing.T) {
	p := newTestPayment(t, false)
	assert.Equal(t, valueobject.PaymentReceived, p.Status())
	assert.Equal(t, p.Amount(), p.Allocation().Suspense)
}

func TestNewPayment_Validation(t *testing.T) {
	env := newTestEnvelope()
	alloc := valueobject.SuspenseOnly(env.Payment.AmountCents)
	now := time.Now().UTC()

	_, err := model.NewPayment(uuid.Nil, env, alloc, false, now)
	assert.Error(t, err)

	noKey := env
	noKey.IdempotencyKey = ""
	_, err = model.NewPayment(uuid.New(), noKey, alloc, false, now)
	assert.Error(t, err)

	badAlloc := valueobject.Allocation{Interest: 1}
	_, err = model.NewPayment(uuid.New(), env, badAlloc, false, now)
	assert.Error(t, err)

	badDate := env
	badDate.Payment.ValueDate = "15/03/2026"
	_, err = model.NewPayment(uuid.New(), badDate, alloc, false, now)
	assert.Error(t, err)
}

func TestPayment_ReverseFromPosted(t *testing.T) {
	p := newTestPayment(t, true)

	reversed, err := p.Reverse("operator correction", time.Now().UTC())
	require.NoError(t, err)

	assert.Equal(t, valueobject.PaymentReversed, reversed.Status())
	assert.Equal(t, p.Version()+1, reversed.Version())
	assert.Len(t, reversed.DomainEvents(), 2)
	// Original copy untouched.
	assert.Equal(t, valueobject.PaymentPosted, p.Status())
}

func TestPayment_TerminalStatesRefuseTransitions(t *testing.T) {
	p := newTestPayment(t, true)
	reversed, err := p.Reverse("dup", time.Now().UTC())
	require.NoError(t, err)

	_, err = reversed.Settle(time.Now().UTC())
	assert.Error(t, err)
	_, err = reversed.Reverse("again", time.Now().UTC())
	assert.Error(t, err)
}

func TestPayment_ReceivedCannotSettle(t *testing.T) {
	p := newTestPayment(t, false)
	_, err := p.Settle(time.Now().UTC())
	assert.Error(t, err)
}

func TestPayment_SettleAndReturn(t *testing.T) {
	p := newTestPayment(t, true)

	settled, err := p.Settle(time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, valueobject.PaymentSettled, settled.Status())

	returned, err := p.Return(time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, valueobject.PaymentReturned, returned.Status())
}
