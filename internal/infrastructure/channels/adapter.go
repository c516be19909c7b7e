// Package channels normalizes channel-native payment notifications into the
// canonical envelope the pipeline consumes. Adapters validate nothing beyond
// their own wire format; the pipeline's validator owns acceptance rules.
package channels

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cschwartz85032/loanserve-sub001/internal/domain/model"
	"github.com/cschwartz85032/loanserve-sub001/internal/domain/valueobject"
	"github.com/cschwartz85032/loanserve-sub001/pkg/money"
)

func newEnvelope(channel valueobject.Channel, provider, correlationID string, occurredAt time.Time) model.PaymentEnvelope {
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	return model.PaymentEnvelope{
		Schema:        model.EnvelopeSchema,
		MessageID:     uuid.NewString(),
		CorrelationID: correlationID,
		OccurredAt:    occurredAt.UTC(),
		Source: model.EnvelopeSource{
			Channel:  channel,
			Provider: provider,
		},
	}
}

// parseAmount converts a decimal string like "1500.00" to cents.
func parseAmount(s string) (money.Cents, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("channels: bad amount %q: %w", s, err)
	}
	if !d.Equal(d.Round(2)) {
		return 0, fmt.Errorf("channels: amount %q has sub-cent precision", s)
	}
	return money.FromDecimal(d), nil
}
