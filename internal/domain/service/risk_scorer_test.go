package service_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cschwartz85032/loanserve-sub001/internal/domain/model"
	"github.com/cschwartz85032/loanserve-sub001/internal/domain/service"
	"github.com/cschwartz85032/loanserve-sub001/internal/domain/valueobject"
)

func TestRiskScorer_CleanEnvelope(t *testing.T) {
	scorer := service.NewRiskScorer()
	assert.Equal(t, 0, scorer.Score(validACHEnvelope()))
}

func TestRiskScorer_AmountTiers(t *testing.T) {
	scorer := service.NewRiskScorer()

	env := validACHEnvelope()
	env.Payment.AmountCents = 10_000 * 100
	assert.Equal(t, 0, scorer.Score(env))

	env.Payment.AmountCents = 10_000*100 + 1
	assert.Equal(t, 20, scorer.Score(env))

	// Above 100k both tiers stack.
	env.Payment.AmountCents = 250_000 * 100
	assert.Equal(t, 50, scorer.Score(env))
}

func TestRiskScorer_ManualAndCheckEntry(t *testing.T) {
	scorer := service.NewRiskScorer()

	env := validACHEnvelope()
	env.Source.Provider = "manual"
	assert.Equal(t, 15, scorer.Score(env))

	check := validACHEnvelope()
	check.Source.Channel = valueobject.ChannelCheck
	check.Payment.Method = "check"
	assert.Equal(t, 10, scorer.Score(check))
}

func TestRiskScorer_UnmatchedLoan(t *testing.T) {
	scorer := service.NewRiskScorer()
	env := validACHEnvelope()
	env.Borrower.LoanID = ""
	assert.Equal(t, 20, scorer.Score(env))
}

func TestRiskScorer_ACHGapsAndReturns(t *testing.T) {
	scorer := service.NewRiskScorer()

	env := validACHEnvelope()
	env.Payment.Details["routing_number"] = ""
	env.Payment.Details["account_mask"] = ""
	assert.Equal(t, 20, scorer.Score(env))

	returned := validACHEnvelope()
	returned.Payment.Details["return_code"] = "R01"
	assert.Equal(t, 40, scorer.Score(returned))
}

func TestRiskScorer_FlagsStackAndCap(t *testing.T) {
	scorer := service.NewRiskScorer()

	env := validACHEnvelope()
	env.Risk = &model.EnvelopeRisk{Flags: []string{
		service.FlagDuplicateSuspected,
		service.FlagAmountMismatch,
	}}
	assert.Equal(t, 55, scorer.Score(env))

	// Pile everything on and the cap holds.
	env.Payment.AmountCents = 250_000 * 100
	env.Borrower.LoanID = ""
	env.Payment.Details["return_code"] = "R01"
	assert.Equal(t, 100, scorer.Score(env))
}
