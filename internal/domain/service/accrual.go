package service

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cschwartz85032/loanserve-sub001/internal/domain/model"
)

var daysPerYear = decimal.NewFromInt(365)

// AccrualCalculator computes daily interest accruals under ACT/365.
type AccrualCalculator struct{}

// NewAccrualCalculator builds the calculator.
func NewAccrualCalculator() *AccrualCalculator {
	return &AccrualCalculator{}
}

// Compute accrues interest from fromDate through toDate inclusive.
// dailyRate = annualRate/365; accrued = principal * dailyRate * dayCount,
// rounded to cents.
func (c *AccrualCalculator) Compute(
	tenantID uuid.UUID,
	loanID string,
	runID *uuid.UUID,
	principal, annualRate decimal.Decimal,
	fromDate, toDate time.Time,
	now time.Time,
) (model.InterestAccrual, error) {
	if toDate.Before(fromDate) {
		return model.InterestAccrual{}, fmt.Errorf("accrual: to date %s before from date %s",
			toDate.Format("2006-01-02"), fromDate.Format("2006-01-02"))
	}
	if principal.IsNegative() {
		return model.InterestAccrual{}, fmt.Errorf("accrual: negative principal %s", principal)
	}

	dayCount := int(toDate.Sub(fromDate).Hours()/24) + 1
	dailyRate := annualRate.Div(daysPerYear)
	accrued := principal.Mul(dailyRate).Mul(decimal.NewFromInt(int64(dayCount))).Round(2)

	return model.InterestAccrual{
		ID:               uuid.New(),
		TenantID:         tenantID,
		LoanID:           loanID,
		RunID:            runID,
		AccrualDate:      toDate,
		FromDate:         fromDate,
		ToDate:           toDate,
		DayCount:         dayCount,
		Convention:       model.ACT365,
		InterestRate:     annualRate,
		PrincipalBalance: principal,
		DailyRate:        dailyRate,
		AccruedAmount:    accrued,
		CreatedAt:        now,
	}, nil
}
