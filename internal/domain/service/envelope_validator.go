package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/cschwartz85032/loanserve-sub001/internal/domain/model"
	"github.com/cschwartz85032/loanserve-sub001/internal/domain/valueobject"
)

// InvalidEnvelopeError reports every validation failure at once so the
// submitting channel can fix its payload in one round trip.
type InvalidEnvelopeError struct {
	Reasons []string
}

func (e *InvalidEnvelopeError) Error() string {
	return "invalid_envelope: " + strings.Join(e.Reasons, "; ")
}

// Code returns the stable error identifier for API error bodies.
func (e *InvalidEnvelopeError) Code() string { return "invalid_envelope" }

// EnvelopeValidator checks a normalized envelope against the acceptance
// rules. Validation never persists anything.
type EnvelopeValidator struct {
	// MethodBridges allows a payment method that differs from its source
	// channel, keyed channel -> permitted method.
	MethodBridges map[valueobject.Channel]string
}

// NewEnvelopeValidator builds a validator with no method bridges configured.
func NewEnvelopeValidator() *EnvelopeValidator {
	return &EnvelopeValidator{MethodBridges: map[valueobject.Channel]string{}}
}

// Validate returns nil for an acceptable envelope or an
// *InvalidEnvelopeError listing every violated rule.
func (v *EnvelopeValidator) Validate(env model.PaymentEnvelope) error {
	var reasons []string

	if env.Schema != model.EnvelopeSchema {
		reasons = append(reasons, fmt.Sprintf("unsupported schema %q", env.Schema))
	}
	if env.Payment.AmountCents <= 0 {
		reasons = append(reasons, "amount_cents must be positive")
	}
	if env.Payment.Currency != "USD" {
		reasons = append(reasons, fmt.Sprintf("currency must be USD, got %q", env.Payment.Currency))
	}
	if !env.Source.Channel.Valid() {
		reasons = append(reasons, fmt.Sprintf("unknown channel %q", env.Source.Channel))
	}
	if env.Payment.Method != string(env.Source.Channel) {
		if bridge, ok := v.MethodBridges[env.Source.Channel]; !ok || bridge != env.Payment.Method {
			reasons = append(reasons, fmt.Sprintf("method %q does not match channel %q and no bridge is configured", env.Payment.Method, env.Source.Channel))
		}
	}
	if _, err := time.Parse("2006-01-02", env.Payment.ValueDate); err != nil {
		reasons = append(reasons, fmt.Sprintf("value_date %q is not a calendar date", env.Payment.ValueDate))
	}

	switch env.Source.Channel {
	case valueobject.ChannelACH:
		if env.Payment.Details["routing_number"] == "" {
			reasons = append(reasons, "ach requires routing_number")
		}
		if env.Payment.Details["account_mask"] == "" {
			reasons = append(reasons, "ach requires account_mask")
		}
		if env.Payment.Details["return_code"] != "" && env.Payment.Details["is_return"] != "true" {
			reasons = append(reasons, "ach return_code only allowed on return events")
		}
	case valueobject.ChannelCheck:
		if env.Payment.Details["check_number"] == "" {
			reasons = append(reasons, "check requires check_number")
		}
	case valueobject.ChannelWire:
		if env.Payment.Reference == "" {
			reasons = append(reasons, "wire requires reference")
		}
	}

	if len(reasons) > 0 {
		return &InvalidEnvelopeError{Reasons: reasons}
	}
	return nil
}
