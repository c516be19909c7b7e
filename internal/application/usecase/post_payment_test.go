package usecase_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cschwartz85032/loanserve-sub001/internal/application/usecase"
	"github.com/cschwartz85032/loanserve-sub001/internal/domain/event"
	"github.com/cschwartz85032/loanserve-sub001/internal/domain/model"
	"github.com/cschwartz85032/loanserve-sub001/internal/domain/port"
	"github.com/cschwartz85032/loanserve-sub001/internal/domain/service"
	"github.com/cschwartz85032/loanserve-sub001/internal/domain/valueobject"
	"github.com/cschwartz85032/loanserve-sub001/pkg/money"
	"github.com/cschwartz85032/loanserve-sub001/pkg/postgres"
)

// --- Mock implementations ---

type mockPaymentRepo struct {
	byKey  map[string]model.Payment
	byID   map[uuid.UUID]model.Payment
	keyErr error
}

func (m *mockPaymentRepo) FindByID(_ context.Context, id uuid.UUID) (model.Payment, error) {
	if p, ok := m.byID[id]; ok {
		return p, nil
	}
	return model.Payment{}, port.ErrNotFound
}

func (m *mockPaymentRepo) FindByIdempotencyKey(_ context.Context, key string) (model.Payment, error) {
	if m.keyErr != nil {
		return model.Payment{}, m.keyErr
	}
	if p, ok := m.byKey[key]; ok {
		return p, nil
	}
	return model.Payment{}, port.ErrNotFound
}

type mockPostingStore struct {
	bundles     []port.PostingBundle
	result      *port.PostingResult
	postErr     error
	transitions int
}

func (m *mockPostingStore) Post(_ context.Context, bundle port.PostingBundle) (port.PostingResult, error) {
	if m.postErr != nil {
		return port.PostingResult{}, m.postErr
	}
	m.bundles = append(m.bundles, bundle)
	if m.result != nil {
		return *m.result, nil
	}
	return port.PostingResult{
		PaymentID: bundle.Payment.ID(),
		IsNew:     true,
		Status:    bundle.Payment.Status(),
	}, nil
}

func (m *mockPostingStore) Transition(context.Context, model.Payment, model.EntrySet, string, []byte, model.ActorType, string) error {
	m.transitions++
	return nil
}

type mockLoanReads struct {
	receivables map[string]port.ReceivableSnapshot
}

func (m *mockLoanReads) ListLoans(context.Context, []string) ([]port.LoanPosition, error) {
	return nil, fmt.Errorf("not implemented")
}

func (m *mockLoanReads) ReceivableState(_ context.Context, loanID string) (port.ReceivableSnapshot, error) {
	snap, ok := m.receivables[loanID]
	if !ok {
		return port.ReceivableSnapshot{}, fmt.Errorf("loan %s not projected", loanID)
	}
	return snap, nil
}

func (m *mockLoanReads) PendingPayments(context.Context, string, time.Time) ([]port.PendingPayment, error) {
	return nil, nil
}

func (m *mockLoanReads) FeesDue(context.Context, string, time.Time) ([]port.FeeDue, error) {
	return nil, nil
}

func (m *mockLoanReads) DisbursementsDue(context.Context, string, time.Time) ([]port.EscrowDisbursement, error) {
	return nil, nil
}

func (m *mockLoanReads) InvestorPositions(context.Context, string) ([]port.InvestorPosition, error) {
	return nil, nil
}

func (m *mockLoanReads) CollectedPayments(context.Context, string, time.Time) ([]port.CollectedPayment, error) {
	return nil, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func tenantCtx() (context.Context, uuid.UUID) {
	tenantID := uuid.New()
	return postgres.WithTenant(context.Background(), tenantID), tenantID
}

func achEnvelope() model.PaymentEnvelope {
	return model.PaymentEnvelope{
		Schema:        model.EnvelopeSchema,
		MessageID:     "msg-1",
		CorrelationID: "corr-1",
		Source:        model.EnvelopeSource{Channel: valueobject.ChannelACH, Provider: "column"},
		Borrower:      model.EnvelopeBorrower{LoanID: "LN-42"},
		Payment: model.EnvelopePayment{
			AmountCents: 150000,
			Currency:    "USD",
			Method:      "ach",
			ValueDate:   "2026-03-15",
			Reference:   "TRACE-001",
			Details: map[string]string{
				"routing_number": "021000021",
				"account_mask":   "****1234",
			},
		},
	}
}

func newPostUseCase(repo *mockPaymentRepo, store *mockPostingStore, loans *mockLoanReads) *usecase.PostPaymentUseCase {
	return usecase.NewPostPaymentUseCase(
		repo, store, loans,
		service.NewEnvelopeValidator(),
		service.NewWaterfallAllocator(),
		service.NewRiskScorer(),
		service.NewPostingBuilder(),
		testLogger(),
	)
}

func TestPostPayment_NewMatchedPayment(t *testing.T) {
	ctx, _ := tenantCtx()
	repo := &mockPaymentRepo{}
	store := &mockPostingStore{}
	loans := &mockLoanReads{receivables: map[string]port.ReceivableSnapshot{
		"LN-42": {OutstandingInterest: 50000, ScheduledPrincipal: 80000, EscrowRequirement: 20000},
	}}

	res, err := newPostUseCase(repo, store, loans).Execute(ctx, achEnvelope())
	require.NoError(t, err)

	assert.True(t, res.IsNew)
	assert.Equal(t, string(valueobject.PaymentPosted), res.Status)
	assert.False(t, res.RequiresReview)
	assert.Equal(t, money.Cents(50000), res.Allocation.Interest)
	assert.Equal(t, money.Cents(80000), res.Allocation.Principal)
	assert.Equal(t, money.Cents(20000), res.Allocation.Escrow)
	assert.Equal(t, money.Cents(0), res.Allocation.Suspense)

	require.Len(t, store.bundles, 1)
	bundle := store.bundles[0]
	assert.Equal(t, event.TypePaymentPosted, bundle.EventType)
	assert.Equal(t, model.ActorSystem, bundle.Actor)
	assert.NotEmpty(t, bundle.EventData)
	require.NoError(t, bundle.Entries.Validate())
}

func TestPostPayment_UnmatchedLoanGoesToSuspense(t *testing.T) {
	ctx, _ := tenantCtx()
	store := &mockPostingStore{}
	env := achEnvelope()
	env.Borrower.LoanID = ""

	res, err := newPostUseCase(&mockPaymentRepo{}, store, &mockLoanReads{}).Execute(ctx, env)
	require.NoError(t, err)

	assert.True(t, res.IsNew)
	assert.Equal(t, string(valueobject.PaymentReceived), res.Status)
	assert.True(t, res.RequiresReview)
	assert.Equal(t, env.Payment.AmountCents, res.Allocation.Suspense)
	// Unmatched envelopes carry the no-loan risk bump.
	assert.Equal(t, 20, res.RiskScore)
}

func TestPostPayment_DuplicateReturnsOriginal(t *testing.T) {
	ctx, tenantID := tenantCtx()
	env := achEnvelope()
	key := service.IdempotencyKey(env.Payment.Method, env.Payment.Reference,
		env.Payment.ValueDate, env.Payment.AmountCents, env.Borrower.LoanID)

	stored := env
	stored.IdempotencyKey = key
	original, err := model.NewPayment(tenantID, stored,
		valueobject.SuspenseOnly(env.Payment.AmountCents), false, time.Now().UTC())
	require.NoError(t, err)

	repo := &mockPaymentRepo{byKey: map[string]model.Payment{key: original}}
	store := &mockPostingStore{}

	res, err := newPostUseCase(repo, store, &mockLoanReads{}).Execute(ctx, env)
	require.NoError(t, err)

	assert.False(t, res.IsNew)
	assert.Equal(t, original.ID(), res.PaymentID)
	assert.Empty(t, store.bundles, "duplicate must not reach the store")
}

func TestPostPayment_LostRaceSurfacesWinner(t *testing.T) {
	ctx, tenantID := tenantCtx()
	env := achEnvelope()
	key := service.IdempotencyKey(env.Payment.Method, env.Payment.Reference,
		env.Payment.ValueDate, env.Payment.AmountCents, env.Borrower.LoanID)

	stored := env
	stored.IdempotencyKey = key
	winner, err := model.NewPayment(tenantID, stored,
		valueobject.SuspenseOnly(env.Payment.AmountCents), false, time.Now().UTC())
	require.NoError(t, err)

	repo := &mockPaymentRepo{byID: map[uuid.UUID]model.Payment{winner.ID(): winner}}
	store := &mockPostingStore{result: &port.PostingResult{
		PaymentID: winner.ID(), IsNew: false, Status: winner.Status(),
	}}
	loans := &mockLoanReads{receivables: map[string]port.ReceivableSnapshot{"LN-42": {}}}

	res, err := newPostUseCase(repo, store, loans).Execute(ctx, env)
	require.NoError(t, err)
	assert.False(t, res.IsNew)
	assert.Equal(t, winner.ID(), res.PaymentID)
}

func TestPostPayment_InvalidEnvelopeRejected(t *testing.T) {
	ctx, _ := tenantCtx()
	store := &mockPostingStore{}
	env := achEnvelope()
	env.Payment.Currency = "EUR"

	_, err := newPostUseCase(&mockPaymentRepo{}, store, &mockLoanReads{}).Execute(ctx, env)
	require.Error(t, err)

	var invalid *service.InvalidEnvelopeError
	assert.ErrorAs(t, err, &invalid)
	assert.Empty(t, store.bundles)
}

func TestPostPayment_MissingTenant(t *testing.T) {
	_, err := newPostUseCase(&mockPaymentRepo{}, &mockPostingStore{}, &mockLoanReads{}).
		Execute(context.Background(), achEnvelope())
	assert.ErrorIs(t, err, postgres.ErrNoTenant)
}
