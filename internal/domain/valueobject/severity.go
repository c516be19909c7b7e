package valueobject

import (
	"time"

	"github.com/cschwartz85032/loanserve-sub001/pkg/money"
)

// Severity grades a servicing exception.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// DueDate returns the follow-up deadline for an exception opened at t:
// critical +1d, high +3d, everything else +7d.
func (s Severity) DueDate(t time.Time) time.Time {
	switch s {
	case SeverityCritical:
		return t.AddDate(0, 0, 1)
	case SeverityHigh:
		return t.AddDate(0, 0, 3)
	default:
		return t.AddDate(0, 0, 7)
	}
}

// SeverityForVariance grades a reconciliation variance by absolute dollar
// magnitude: <100 low, <1000 medium, <10000 high, else critical.
func SeverityForVariance(variance money.Cents) Severity {
	abs := variance.Abs()
	switch {
	case abs < 100*100:
		return SeverityLow
	case abs < 1000*100:
		return SeverityMedium
	case abs < 10000*100:
		return SeverityHigh
	default:
		return SeverityCritical
	}
}

func (s Severity) String() string { return string(s) }
