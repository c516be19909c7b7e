package service

import (
	"github.com/cschwartz85032/loanserve-sub001/internal/domain/model"
	"github.com/cschwartz85032/loanserve-sub001/internal/domain/valueobject"
)

// Validation flags that feed risk scoring.
const (
	FlagDuplicateSuspected = "duplicate_suspected"
	FlagAmountMismatch     = "amount_mismatch"
)

// RiskScorer assigns an additive risk score (0-100) to an envelope.
type RiskScorer struct{}

// NewRiskScorer builds the scorer.
func NewRiskScorer() *RiskScorer {
	return &RiskScorer{}
}

// Score applies the additive heuristics and caps the result at 100.
func (s *RiskScorer) Score(env model.PaymentEnvelope) int {
	score := 0

	amount := env.Payment.AmountCents
	if amount > 10_000*100 {
		score += 20
	}
	if amount > 100_000*100 {
		score += 30
	}

	switch {
	case env.Payment.Method == "manual" || env.Source.Provider == "manual":
		score += 15
	case env.Source.Channel == valueobject.ChannelCheck:
		score += 10
	}

	if !env.HasLoan() {
		score += 20
	}
	if env.Source.Channel == valueobject.ChannelACH {
		if env.Payment.Details["routing_number"] == "" {
			score += 10
		}
		if env.Payment.Details["account_mask"] == "" {
			score += 10
		}
		if env.Payment.Details["return_code"] != "" {
			score += 40
		}
	}

	if env.HasFlag(FlagDuplicateSuspected) {
		score += 30
	}
	if env.HasFlag(FlagAmountMismatch) {
		score += 25
	}

	if score > 100 {
		score = 100
	}
	return score
}
