package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DayCountConvention identifies the accrual day-count basis.
type DayCountConvention string

// ACT365 is the only convention the servicing core currently accrues under.
const ACT365 DayCountConvention = "ACT/365"

// InterestAccrual is the dated record of accrued interest for one loan.
type InterestAccrual struct {
	ID               uuid.UUID
	TenantID         uuid.UUID
	LoanID           string
	RunID            *uuid.UUID
	AccrualDate      time.Time
	FromDate         time.Time
	ToDate           time.Time
	DayCount         int
	Convention       DayCountConvention
	InterestRate     decimal.Decimal // annual rate, e.g. 0.06
	PrincipalBalance decimal.Decimal
	DailyRate        decimal.Decimal
	AccruedAmount    decimal.Decimal
	CreatedAt        time.Time
}
