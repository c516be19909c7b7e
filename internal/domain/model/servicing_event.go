package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cschwartz85032/loanserve-sub001/internal/domain/valueobject"
	"github.com/cschwartz85032/loanserve-sub001/pkg/money"
)

// ServicingEvent records one action attempted within a run. The unique event
// key makes replays of a run safe: a duplicate insert is caught and the step
// is skipped.
type ServicingEvent struct {
	ID            uuid.UUID
	RunID         uuid.UUID
	TenantID      uuid.UUID
	EventKey      string
	EventType     string
	LoanID        string
	ValuationDate time.Time
	Amount        money.Cents
	Principal     money.Cents
	Interest      money.Cents
	Escrow        money.Cents
	Fees          money.Cents
	Details       []byte // opaque JSON
	Status        valueobject.ServicingEventStatus
	CreatedAt     time.Time
}

// EventKey builds the idempotent key for a per-loan step:
// <step>_<id>_<valuation_date>[_<sub_id>].
func EventKey(step, id string, valuationDate time.Time, subIDs ...string) string {
	key := fmt.Sprintf("%s_%s_%s", step, id, valuationDate.Format("2006-01-02"))
	for _, sub := range subIDs {
		key += "_" + sub
	}
	return key
}
