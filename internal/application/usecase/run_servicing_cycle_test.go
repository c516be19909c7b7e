package usecase_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cschwartz85032/loanserve-sub001/internal/application/usecase"
	"github.com/cschwartz85032/loanserve-sub001/internal/domain/model"
	"github.com/cschwartz85032/loanserve-sub001/internal/domain/port"
	"github.com/cschwartz85032/loanserve-sub001/internal/domain/service"
	"github.com/cschwartz85032/loanserve-sub001/internal/domain/valueobject"
	"github.com/cschwartz85032/loanserve-sub001/pkg/events"
	"github.com/cschwartz85032/loanserve-sub001/pkg/money"
)

// --- Fakes for the cycle engine ---

type fakeServicingRepo struct {
	runs       map[uuid.UUID]model.ServicingRun
	eventKeys  map[string]model.ServicingEvent
	accruals   []model.InterestAccrual
	exceptions []model.ServicingException
	ledgers    []model.EntrySet
}

func newFakeServicingRepo() *fakeServicingRepo {
	return &fakeServicingRepo{
		runs:      map[uuid.UUID]model.ServicingRun{},
		eventKeys: map[string]model.ServicingEvent{},
	}
}

func (f *fakeServicingRepo) SaveRun(_ context.Context, run model.ServicingRun) error {
	f.runs[run.ID()] = run
	return nil
}

func (f *fakeServicingRepo) UpdateRun(_ context.Context, run model.ServicingRun) error {
	if _, ok := f.runs[run.ID()]; !ok {
		return port.ErrNotFound
	}
	f.runs[run.ID()] = run
	return nil
}

func (f *fakeServicingRepo) GetRun(_ context.Context, id uuid.UUID) (model.ServicingRun, error) {
	run, ok := f.runs[id]
	if !ok {
		return model.ServicingRun{}, port.ErrNotFound
	}
	return run, nil
}

func (f *fakeServicingRepo) FindActiveRun(context.Context) (model.ServicingRun, error) {
	for _, run := range f.runs {
		if !run.Status().Terminal() {
			return run, nil
		}
	}
	return model.ServicingRun{}, port.ErrNotFound
}

func (f *fakeServicingRepo) InsertEvent(_ context.Context, ev model.ServicingEvent) (bool, error) {
	if _, ok := f.eventKeys[ev.EventKey]; ok {
		return false, nil
	}
	f.eventKeys[ev.EventKey] = ev
	return true, nil
}

func (f *fakeServicingRepo) DeleteLoanEvents(_ context.Context, runID uuid.UUID, loanID string, valuationDate time.Time) (int, error) {
	removed := 0
	for key, ev := range f.eventKeys {
		if ev.RunID == runID && ev.LoanID == loanID && ev.ValuationDate.Equal(valuationDate) {
			delete(f.eventKeys, key)
			removed++
		}
	}
	return removed, nil
}

func (f *fakeServicingRepo) InsertAccrual(_ context.Context, acc model.InterestAccrual) error {
	for _, a := range f.accruals {
		if a.LoanID == acc.LoanID && a.AccrualDate.Equal(acc.AccrualDate) {
			return nil
		}
	}
	f.accruals = append(f.accruals, acc)
	return nil
}

func (f *fakeServicingRepo) InsertLedgerEntries(_ context.Context, entries model.EntrySet) error {
	if err := entries.Validate(); err != nil {
		return err
	}
	f.ledgers = append(f.ledgers, entries)
	return nil
}

func (f *fakeServicingRepo) InsertException(_ context.Context, exc model.ServicingException) error {
	f.exceptions = append(f.exceptions, exc)
	return nil
}

func (f *fakeServicingRepo) ListOpenExceptions(_ context.Context, loanID string) ([]model.ServicingException, error) {
	var open []model.ServicingException
	for _, e := range f.exceptions {
		if e.LoanID == loanID && e.Status == valueobject.ExceptionOpen {
			open = append(open, e)
		}
	}
	return open, nil
}

func (f *fakeServicingRepo) CheckOwnershipPrecision(context.Context) error { return nil }

type fakeLoanModel struct {
	positions     []port.LoanPosition
	pending       map[string][]port.PendingPayment
	fees          map[string][]port.FeeDue
	disbursements map[string][]port.EscrowDisbursement
	investors     map[string][]port.InvestorPosition
	collected     map[string][]port.CollectedPayment
	pendingErr    error
}

func (f *fakeLoanModel) ListLoans(_ context.Context, loanIDs []string) ([]port.LoanPosition, error) {
	if len(loanIDs) == 0 {
		return f.positions, nil
	}
	var out []port.LoanPosition
	for _, p := range f.positions {
		for _, id := range loanIDs {
			if p.LoanID == id {
				out = append(out, p)
			}
		}
	}
	return out, nil
}

func (f *fakeLoanModel) ReceivableState(_ context.Context, loanID string) (port.ReceivableSnapshot, error) {
	return port.ReceivableSnapshot{}, nil
}

func (f *fakeLoanModel) PendingPayments(_ context.Context, loanID string, _ time.Time) ([]port.PendingPayment, error) {
	if f.pendingErr != nil {
		return nil, f.pendingErr
	}
	return f.pending[loanID], nil
}

func (f *fakeLoanModel) FeesDue(_ context.Context, loanID string, _ time.Time) ([]port.FeeDue, error) {
	return f.fees[loanID], nil
}

func (f *fakeLoanModel) DisbursementsDue(_ context.Context, loanID string, _ time.Time) ([]port.EscrowDisbursement, error) {
	return f.disbursements[loanID], nil
}

func (f *fakeLoanModel) InvestorPositions(_ context.Context, loanID string) ([]port.InvestorPosition, error) {
	return f.investors[loanID], nil
}

func (f *fakeLoanModel) CollectedPayments(_ context.Context, loanID string, _ time.Time) ([]port.CollectedPayment, error) {
	return f.collected[loanID], nil
}

type fakePublisher struct {
	published []events.DomainEvent
	err       error
}

func (f *fakePublisher) Publish(_ context.Context, evs ...events.DomainEvent) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, evs...)
	return nil
}

// --- Fixtures ---

var testValuation = time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)

func healthyLoan(tenantID uuid.UUID) port.LoanPosition {
	return port.LoanPosition{
		LoanID:           "LN-42",
		TenantID:         tenantID,
		PrincipalBalance: decimal.NewFromInt(100000),
		InterestRate:     decimal.RequireFromString("0.06"),
		LastAccrualDate:  testValuation.AddDate(0, 0, -14),
		GraceDays:        15,
		LateFeeCents:     2500,
		EscrowBalance:    500000,
		MaturityDate:     testValuation.AddDate(5, 0, 0),
	}
}

func pendingRun(t *testing.T, repo *fakeServicingRepo, dryRun bool) model.ServicingRun {
	t.Helper()
	hash, err := service.RunInputHash(testValuation, nil, dryRun)
	require.NoError(t, err)
	run, err := model.NewServicingRun(uuid.New(), testValuation, nil, dryRun, hash, time.Now().UTC())
	require.NoError(t, err)
	require.NoError(t, repo.SaveRun(context.Background(), run))
	return run
}

func newCycle(repo *fakeServicingRepo, loans *fakeLoanModel, pub *fakePublisher) *usecase.RunServicingCycleUseCase {
	return usecase.NewRunServicingCycleUseCase(repo, loans, service.NewAccrualCalculator(), pub, testLogger())
}

// --- Tests ---

func TestRunServicingCycle_FullCycle(t *testing.T) {
	repo := newFakeServicingRepo()
	run := pendingRun(t, repo, false)
	tenantID := run.TenantID()

	pendingID := uuid.New()
	disbID := uuid.New()
	collectedID := uuid.New()
	invA := uuid.New()
	invB := uuid.New()

	loans := &fakeLoanModel{
		positions: []port.LoanPosition{healthyLoan(tenantID)},
		pending: map[string][]port.PendingPayment{
			"LN-42": {{PaymentID: pendingID, LoanID: "LN-42", Amount: 150000}},
		},
		disbursements: map[string][]port.EscrowDisbursement{
			"LN-42": {{ID: disbID, LoanID: "LN-42", Payee: "County Tax", Category: "tax", AmountCents: 120000}},
		},
		investors: map[string][]port.InvestorPosition{
			"LN-42": {
				{InvestorID: invA, LoanID: "LN-42", Ownership: decimal.RequireFromString("0.650000")},
				{InvestorID: invB, LoanID: "LN-42", Ownership: decimal.RequireFromString("0.350000")},
			},
		},
		collected: map[string][]port.CollectedPayment{
			"LN-42": {{PaymentID: collectedID, Amount: 120001}},
		},
	}
	pub := &fakePublisher{}

	resp, err := newCycle(repo, loans, pub).Execute(context.Background(), run.ID())
	require.NoError(t, err)

	assert.Equal(t, string(valueobject.RunCompleted), resp.Status)
	assert.Equal(t, 1, resp.LoansProcessed)
	// accrual + payment + escrow + two distributions
	assert.Equal(t, 5, resp.EventsCreated)
	assert.Equal(t, 0, resp.ExceptionsCreated)
	assert.Equal(t, money.Cents(120000), resp.DisbursedBeneficiary)
	assert.Equal(t, money.Cents(120001), resp.DisbursedInvestors)
	// One cent apart still grades pending, not imbalanced.
	assert.Equal(t, string(valueobject.ReconPending), resp.ReconStatus)

	// Every step keys its event as <step>_<id>_<date>.
	assert.Contains(t, repo.eventKeys, "interest_accrual_LN-42_2026-03-15")
	assert.Contains(t, repo.eventKeys, fmt.Sprintf("post_payment_%s_2026-03-15", pendingID))
	assert.Contains(t, repo.eventKeys, fmt.Sprintf("escrow_disbursement_%s_2026-03-15", disbID))
	assert.Contains(t, repo.eventKeys, fmt.Sprintf("investor_distribution_%s_%s_2026-03-15", invA, collectedID))
	assert.Contains(t, repo.eventKeys, fmt.Sprintf("investor_distribution_%s_%s_2026-03-15", invB, collectedID))

	require.Len(t, repo.accruals, 1)
	assert.Equal(t, "230.14", repo.accruals[0].AccruedAmount.StringFixed(2))
	assert.Empty(t, repo.exceptions)
	require.Len(t, repo.ledgers, 1)

	require.Len(t, pub.published, 1)
	assert.Equal(t, "servicing.run.finished", pub.published[0].EventType())
}

func TestRunServicingCycle_PaymentStepBooksLedger(t *testing.T) {
	repo := newFakeServicingRepo()
	run := pendingRun(t, repo, false)

	loan := healthyLoan(run.TenantID())
	loan.LastAccrualDate = testValuation // accrual current, isolate the payment step
	paymentID := uuid.New()
	loans := &fakeLoanModel{
		positions: []port.LoanPosition{loan},
		pending: map[string][]port.PendingPayment{
			"LN-42": {{PaymentID: paymentID, LoanID: "LN-42", Amount: 150000}},
		},
	}

	resp, err := newCycle(repo, loans, &fakePublisher{}).Execute(context.Background(), run.ID())
	require.NoError(t, err)
	assert.Equal(t, 1, resp.EventsCreated)

	require.Len(t, repo.ledgers, 1)
	set := repo.ledgers[0]
	require.NoError(t, set.Validate())
	require.Len(t, set.Lines, 2)

	debit, credit := set.Lines[0], set.Lines[1]
	assert.Equal(t, valueobject.AccountSuspense, debit.AccountCode)
	assert.Equal(t, money.Cents(150000), debit.DebitCents)
	assert.Equal(t, valueobject.AccountLoanReceivable, credit.AccountCode)
	assert.Equal(t, money.Cents(150000), credit.CreditCents)
	for _, line := range set.Lines {
		assert.Equal(t, paymentID, line.PaymentID)
		assert.Equal(t, "payment", line.Metadata["entry_type"])
		assert.Equal(t, run.ID().String(), line.CorrelationID)
	}

	// Replaying the run must not book the application twice.
	require.NoError(t, repo.SaveRun(context.Background(), run))
	_, err = newCycle(repo, loans, &fakePublisher{}).Execute(context.Background(), run.ID())
	require.NoError(t, err)
	assert.Len(t, repo.ledgers, 1)
}

func TestRunServicingCycle_ImbalancedReconOpensCriticalException(t *testing.T) {
	repo := newFakeServicingRepo()
	run := pendingRun(t, repo, false)

	loan := healthyLoan(run.TenantID())
	loan.LastAccrualDate = testValuation
	// Beneficiaries get paid, investors get nothing: $1,200 apart.
	loans := &fakeLoanModel{
		positions: []port.LoanPosition{loan},
		disbursements: map[string][]port.EscrowDisbursement{
			"LN-42": {{ID: uuid.New(), LoanID: "LN-42", Payee: "County Tax", Category: "tax", AmountCents: 120000}},
		},
	}
	pub := &fakePublisher{}

	resp, err := newCycle(repo, loans, pub).Execute(context.Background(), run.ID())
	require.NoError(t, err)

	assert.Equal(t, string(valueobject.RunCompleted), resp.Status)
	assert.Equal(t, string(valueobject.ReconImbalanced), resp.ReconStatus)
	assert.Equal(t, 1, resp.ExceptionsCreated)

	require.Len(t, repo.exceptions, 1)
	exc := repo.exceptions[0]
	assert.Equal(t, "disbursement_imbalance", exc.Type)
	assert.Equal(t, valueobject.SeverityCritical, exc.Severity)
	assert.Empty(t, exc.LoanID, "the case belongs to the run, not a loan")

	// exception.opened plus run.finished both leave through the outbox.
	require.Len(t, pub.published, 2)
	assert.Equal(t, "servicing.exception.opened", pub.published[0].EventType())
	assert.Equal(t, "servicing.run.finished", pub.published[1].EventType())
}

func TestRunServicingCycle_ImbalancedDryRunCountsWithoutPersisting(t *testing.T) {
	repo := newFakeServicingRepo()
	run := pendingRun(t, repo, true)

	loan := healthyLoan(run.TenantID())
	loan.LastAccrualDate = testValuation
	loans := &fakeLoanModel{
		positions: []port.LoanPosition{loan},
		disbursements: map[string][]port.EscrowDisbursement{
			"LN-42": {{ID: uuid.New(), LoanID: "LN-42", Payee: "County Tax", Category: "tax", AmountCents: 120000}},
		},
	}

	resp, err := newCycle(repo, loans, &fakePublisher{}).Execute(context.Background(), run.ID())
	require.NoError(t, err)
	assert.Equal(t, string(valueobject.ReconImbalanced), resp.ReconStatus)
	assert.Equal(t, 1, resp.ExceptionsCreated)
	assert.Empty(t, repo.exceptions)
}

func TestRunServicingCycle_ReplaySkipsFinishedSteps(t *testing.T) {
	repo := newFakeServicingRepo()
	run := pendingRun(t, repo, false)
	loans := &fakeLoanModel{positions: []port.LoanPosition{healthyLoan(run.TenantID())}}

	// First pass writes the accrual; mark the run pending again and rerun.
	_, err := newCycle(repo, loans, &fakePublisher{}).Execute(context.Background(), run.ID())
	require.NoError(t, err)
	require.Len(t, repo.accruals, 1)

	require.NoError(t, repo.SaveRun(context.Background(), run))
	resp, err := newCycle(repo, loans, &fakePublisher{}).Execute(context.Background(), run.ID())
	require.NoError(t, err)

	assert.Equal(t, 0, resp.EventsCreated, "replayed steps must not recount")
	assert.Len(t, repo.accruals, 1, "accrual must not be written twice")
}

func TestRunServicingCycle_DryRunPersistsNothing(t *testing.T) {
	repo := newFakeServicingRepo()
	run := pendingRun(t, repo, true)

	loan := healthyLoan(run.TenantID())
	loan.PastDueDays = 45
	loans := &fakeLoanModel{positions: []port.LoanPosition{loan}}

	resp, err := newCycle(repo, loans, &fakePublisher{}).Execute(context.Background(), run.ID())
	require.NoError(t, err)

	assert.Equal(t, string(valueobject.RunCompleted), resp.Status)
	assert.Equal(t, 2, resp.EventsCreated) // accrual + late fee, computed only
	assert.Equal(t, 1, resp.ExceptionsCreated)
	assert.Empty(t, repo.eventKeys)
	assert.Empty(t, repo.accruals)
	assert.Empty(t, repo.exceptions)
	assert.Empty(t, repo.ledgers)
}

func TestRunServicingCycle_ScheduledFeeAssessed(t *testing.T) {
	repo := newFakeServicingRepo()
	run := pendingRun(t, repo, false)

	loan := healthyLoan(run.TenantID())
	loan.LastAccrualDate = testValuation
	feeID := uuid.New()
	loans := &fakeLoanModel{
		positions: []port.LoanPosition{loan},
		fees: map[string][]port.FeeDue{
			"LN-42": {{ID: feeID, LoanID: "LN-42", FeeType: "nsf", AmountCents: 3500,
				DueDate: testValuation.AddDate(0, 0, -2)}},
		},
	}

	resp, err := newCycle(repo, loans, &fakePublisher{}).Execute(context.Background(), run.ID())
	require.NoError(t, err)
	assert.Equal(t, 1, resp.EventsCreated)

	key := fmt.Sprintf("assess_fee_%s_2026-03-15", feeID)
	require.Contains(t, repo.eventKeys, key)
	ev := repo.eventKeys[key]
	assert.Equal(t, "fee_assessed", ev.EventType)
	assert.Equal(t, money.Cents(3500), ev.Fees)
}

func TestRunServicingCycle_LateFeeRespectsGrace(t *testing.T) {
	repo := newFakeServicingRepo()
	run := pendingRun(t, repo, false)

	loan := healthyLoan(run.TenantID())
	loan.LastAccrualDate = testValuation // accrual current, isolate the fee step
	loan.PastDueDays = 15
	loans := &fakeLoanModel{positions: []port.LoanPosition{loan}}

	resp, err := newCycle(repo, loans, &fakePublisher{}).Execute(context.Background(), run.ID())
	require.NoError(t, err)
	assert.Equal(t, 0, resp.EventsCreated, "inside grace, no fee")

	require.NoError(t, repo.SaveRun(context.Background(), run))
	loan.PastDueDays = 16
	loans.positions = []port.LoanPosition{loan}
	resp, err = newCycle(repo, loans, &fakePublisher{}).Execute(context.Background(), run.ID())
	require.NoError(t, err)
	assert.Equal(t, 1, resp.EventsCreated)
	assert.Contains(t, repo.eventKeys, "late_fee_LN-42_2026-03-15")
}

func TestRunServicingCycle_NoLateFeeOnZeroBalance(t *testing.T) {
	repo := newFakeServicingRepo()
	run := pendingRun(t, repo, false)

	loan := healthyLoan(run.TenantID())
	loan.LastAccrualDate = testValuation
	loan.PastDueDays = 40
	loan.GraceDays = 15
	loan.PrincipalBalance = decimal.Zero
	loans := &fakeLoanModel{positions: []port.LoanPosition{loan}}

	_, err := newCycle(repo, loans, &fakePublisher{}).Execute(context.Background(), run.ID())
	require.NoError(t, err)
	assert.NotContains(t, repo.eventKeys, "late_fee_LN-42_2026-03-15",
		"a paid-off loan takes no late charge")
}

func TestRunServicingCycle_EscrowShortfallOpensException(t *testing.T) {
	repo := newFakeServicingRepo()
	run := pendingRun(t, repo, false)

	loan := healthyLoan(run.TenantID())
	loan.LastAccrualDate = testValuation
	loan.EscrowBalance = 50000
	loans := &fakeLoanModel{
		positions: []port.LoanPosition{loan},
		disbursements: map[string][]port.EscrowDisbursement{
			"LN-42": {{ID: uuid.New(), LoanID: "LN-42", Payee: "Hazard Co", Category: "hazard_insurance", AmountCents: 80000}},
		},
	}
	pub := &fakePublisher{}

	resp, err := newCycle(repo, loans, pub).Execute(context.Background(), run.ID())
	require.NoError(t, err)

	assert.Equal(t, 0, resp.EventsCreated)
	assert.Equal(t, 1, resp.ExceptionsCreated)
	require.Len(t, repo.exceptions, 1)
	assert.Equal(t, "escrow_shortfall", repo.exceptions[0].Type)
	assert.Equal(t, valueobject.SeverityHigh, repo.exceptions[0].Severity)
	assert.Equal(t, money.Cents(0), resp.DisbursedBeneficiary)
}

func TestRunServicingCycle_BrokenOwnershipBlocksDistribution(t *testing.T) {
	repo := newFakeServicingRepo()
	run := pendingRun(t, repo, false)

	loan := healthyLoan(run.TenantID())
	loan.LastAccrualDate = testValuation
	loans := &fakeLoanModel{
		positions: []port.LoanPosition{loan},
		investors: map[string][]port.InvestorPosition{
			"LN-42": {
				{InvestorID: uuid.New(), LoanID: "LN-42", Ownership: decimal.RequireFromString("0.600000")},
				{InvestorID: uuid.New(), LoanID: "LN-42", Ownership: decimal.RequireFromString("0.350000")},
			},
		},
		collected: map[string][]port.CollectedPayment{
			"LN-42": {{PaymentID: uuid.New(), Amount: 100000}},
		},
	}

	resp, err := newCycle(repo, loans, &fakePublisher{}).Execute(context.Background(), run.ID())
	require.NoError(t, err)

	assert.Equal(t, money.Cents(0), resp.DisbursedInvestors)
	require.Len(t, repo.exceptions, 1)
	assert.Equal(t, "data_integrity", repo.exceptions[0].Type)
	assert.Equal(t, valueobject.SeverityCritical, repo.exceptions[0].Severity)
}

func TestRunServicingCycle_DistributionPerPaymentIdempotent(t *testing.T) {
	repo := newFakeServicingRepo()
	run := pendingRun(t, repo, false)

	loan := healthyLoan(run.TenantID())
	loan.LastAccrualDate = testValuation
	firstID, secondID := uuid.New(), uuid.New()
	invID := uuid.New()
	loans := &fakeLoanModel{
		positions: []port.LoanPosition{loan},
		investors: map[string][]port.InvestorPosition{
			"LN-42": {{InvestorID: invID, LoanID: "LN-42", Ownership: decimal.RequireFromString("1.000000")}},
		},
		collected: map[string][]port.CollectedPayment{
			"LN-42": {{PaymentID: firstID, Amount: 60000}},
		},
	}

	resp, err := newCycle(repo, loans, &fakePublisher{}).Execute(context.Background(), run.ID())
	require.NoError(t, err)
	assert.Equal(t, money.Cents(60000), resp.DisbursedInvestors)

	// A new payment arrives before the rerun; only it gets distributed.
	loans.collected["LN-42"] = []port.CollectedPayment{
		{PaymentID: firstID, Amount: 60000},
		{PaymentID: secondID, Amount: 40000},
	}
	require.NoError(t, repo.SaveRun(context.Background(), run))
	resp, err = newCycle(repo, loans, &fakePublisher{}).Execute(context.Background(), run.ID())
	require.NoError(t, err)

	assert.Equal(t, money.Cents(40000), resp.DisbursedInvestors)
	assert.Contains(t, repo.eventKeys, fmt.Sprintf("investor_distribution_%s_%s_2026-03-15", invID, firstID))
	assert.Contains(t, repo.eventKeys, fmt.Sprintf("investor_distribution_%s_%s_2026-03-15", invID, secondID))
}

func TestRunServicingCycle_DelinquencyTiers(t *testing.T) {
	cases := []struct {
		days     int
		excType  string
		severity valueobject.Severity
	}{
		{30, "delinquency_30", valueobject.SeverityMedium},
		{60, "delinquency_60", valueobject.SeverityHigh},
		{95, "delinquency_90", valueobject.SeverityCritical},
	}
	for _, tc := range cases {
		t.Run(tc.excType, func(t *testing.T) {
			repo := newFakeServicingRepo()
			run := pendingRun(t, repo, false)

			loan := healthyLoan(run.TenantID())
			loan.LastAccrualDate = testValuation
			loan.GraceDays = 100 // isolate the sweep from the fee step
			loan.PastDueDays = tc.days
			loan.PastDueAmount = 340000
			loans := &fakeLoanModel{positions: []port.LoanPosition{loan}}

			_, err := newCycle(repo, loans, &fakePublisher{}).Execute(context.Background(), run.ID())
			require.NoError(t, err)

			require.Len(t, repo.exceptions, 1)
			assert.Equal(t, tc.excType, repo.exceptions[0].Type)
			assert.Equal(t, tc.severity, repo.exceptions[0].Severity)
		})
	}
}

func TestRunServicingCycle_MaturityTiers(t *testing.T) {
	cases := []struct {
		name     string
		maturity time.Time
		excType  string
		severity valueobject.Severity
	}{
		{"overdue", testValuation.AddDate(0, 0, -10), "maturity_overdue", valueobject.SeverityCritical},
		{"inside_30", testValuation.AddDate(0, 0, 20), "maturity_approaching_30", valueobject.SeverityHigh},
		{"inside_90", testValuation.AddDate(0, 0, 60), "maturity_approaching_90", valueobject.SeverityMedium},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := newFakeServicingRepo()
			run := pendingRun(t, repo, false)

			loan := healthyLoan(run.TenantID())
			loan.LastAccrualDate = testValuation
			loan.MaturityDate = tc.maturity
			loans := &fakeLoanModel{positions: []port.LoanPosition{loan}}

			_, err := newCycle(repo, loans, &fakePublisher{}).Execute(context.Background(), run.ID())
			require.NoError(t, err)

			require.Len(t, repo.exceptions, 1)
			assert.Equal(t, tc.excType, repo.exceptions[0].Type)
			assert.Equal(t, tc.severity, repo.exceptions[0].Severity)
		})
	}
}

func TestRunServicingCycle_NoMaturityCaseWhenFarOutOrPaidOff(t *testing.T) {
	repo := newFakeServicingRepo()
	run := pendingRun(t, repo, false)

	farOut := healthyLoan(run.TenantID())
	farOut.LastAccrualDate = testValuation
	farOut.MaturityDate = testValuation.AddDate(0, 0, 120)

	paidOff := healthyLoan(run.TenantID())
	paidOff.LoanID = "LN-43"
	paidOff.LastAccrualDate = testValuation
	paidOff.MaturityDate = testValuation.AddDate(0, 0, -10)
	paidOff.PrincipalBalance = decimal.Zero
	paidOff.InterestRate = decimal.RequireFromString("0.06")

	loans := &fakeLoanModel{positions: []port.LoanPosition{farOut, paidOff}}

	_, err := newCycle(repo, loans, &fakePublisher{}).Execute(context.Background(), run.ID())
	require.NoError(t, err)
	assert.Empty(t, repo.exceptions)
}

func TestRunServicingCycle_OpenExceptionNotDuplicated(t *testing.T) {
	repo := newFakeServicingRepo()
	run := pendingRun(t, repo, false)

	loan := healthyLoan(run.TenantID())
	loan.LastAccrualDate = testValuation
	loan.GraceDays = 100
	loan.PastDueDays = 45
	loans := &fakeLoanModel{positions: []port.LoanPosition{loan}}

	_, err := newCycle(repo, loans, &fakePublisher{}).Execute(context.Background(), run.ID())
	require.NoError(t, err)
	require.Len(t, repo.exceptions, 1)

	require.NoError(t, repo.SaveRun(context.Background(), run))
	_, err = newCycle(repo, loans, &fakePublisher{}).Execute(context.Background(), run.ID())
	require.NoError(t, err)
	assert.Len(t, repo.exceptions, 1, "second sweep must not duplicate the open case")
}

func TestRunServicingCycle_LoanFailureRecordedRunStillCompletes(t *testing.T) {
	repo := newFakeServicingRepo()
	run := pendingRun(t, repo, false)

	loan := healthyLoan(run.TenantID())
	loan.LastAccrualDate = testValuation
	loans := &fakeLoanModel{
		positions:  []port.LoanPosition{loan},
		pendingErr: fmt.Errorf("projection store offline"),
	}

	resp, err := newCycle(repo, loans, &fakePublisher{}).Execute(context.Background(), run.ID())
	require.NoError(t, err)

	assert.Equal(t, string(valueobject.RunCompleted), resp.Status)
	assert.Equal(t, 0, resp.LoansProcessed)
	require.Len(t, resp.Errors, 1)
	assert.Contains(t, resp.Errors[0], "LN-42")
}

func TestRunServicingCycle_ReprocessSingleLoan(t *testing.T) {
	repo := newFakeServicingRepo()
	run := pendingRun(t, repo, false)

	loan := healthyLoan(run.TenantID())
	loans := &fakeLoanModel{positions: []port.LoanPosition{loan}}
	cycle := newCycle(repo, loans, &fakePublisher{})

	_, err := cycle.Execute(context.Background(), run.ID())
	require.NoError(t, err)
	require.Contains(t, repo.eventKeys, "interest_accrual_LN-42_2026-03-15")
	firstID := repo.eventKeys["interest_accrual_LN-42_2026-03-15"].ID

	// The loan's old events are cleared first, then written fresh.
	resp, err := cycle.ReprocessLoan(context.Background(), run.ID(), "LN-42")
	require.NoError(t, err)
	require.Contains(t, repo.eventKeys, "interest_accrual_LN-42_2026-03-15")
	assert.NotEqual(t, firstID, repo.eventKeys["interest_accrual_LN-42_2026-03-15"].ID)
	assert.Len(t, repo.eventKeys, 1, "reprocess replaces, never accumulates")
	assert.Equal(t, 2, resp.LoansProcessed)

	_, err = cycle.ReprocessLoan(context.Background(), run.ID(), "LN-404")
	assert.ErrorIs(t, err, port.ErrNotFound)
}

func TestRunServicingCycle_ReprocessForcesPersistence(t *testing.T) {
	repo := newFakeServicingRepo()
	run := pendingRun(t, repo, true)

	loan := healthyLoan(run.TenantID())
	loans := &fakeLoanModel{positions: []port.LoanPosition{loan}}
	cycle := newCycle(repo, loans, &fakePublisher{})

	_, err := cycle.Execute(context.Background(), run.ID())
	require.NoError(t, err)
	require.Empty(t, repo.eventKeys, "dry run must not persist")

	// Reprocessing a single loan always runs with dry-run off.
	_, err = cycle.ReprocessLoan(context.Background(), run.ID(), "LN-42")
	require.NoError(t, err)
	assert.Contains(t, repo.eventKeys, "interest_accrual_LN-42_2026-03-15")
	assert.Len(t, repo.accruals, 1)
}
