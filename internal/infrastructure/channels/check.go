package channels

import (
	"fmt"
	"time"

	"github.com/cschwartz85032/loanserve-sub001/internal/domain/model"
	"github.com/cschwartz85032/loanserve-sub001/internal/domain/valueobject"
	"github.com/cschwartz85032/loanserve-sub001/pkg/money"
)

// CheckDeposit is one lockbox or branch check deposit.
type CheckDeposit struct {
	CheckNumber string
	PayerName   string
	AmountCents money.Cents
	DepositDate time.Time
	LoanID      string
	// ImageURI points at the scanned check artifact, when available.
	ImageURI      string
	ImageHash     string
	CorrelationID string
}

// CheckAdapter maps check deposits to envelopes.
type CheckAdapter struct {
	Provider string
}

// ToEnvelope normalizes one check deposit.
func (a CheckAdapter) ToEnvelope(dep CheckDeposit, now time.Time) (model.PaymentEnvelope, error) {
	if dep.CheckNumber == "" {
		return model.PaymentEnvelope{}, fmt.Errorf("channels: check deposit missing check number")
	}

	env := newEnvelope(valueobject.ChannelCheck, a.Provider, dep.CorrelationID, now)
	env.Borrower = model.EnvelopeBorrower{
		LoanID: dep.LoanID,
		Name:   dep.PayerName,
	}
	env.Payment = model.EnvelopePayment{
		AmountCents: dep.AmountCents,
		Currency:    "USD",
		Method:      string(valueobject.ChannelCheck),
		ValueDate:   dep.DepositDate.Format("2006-01-02"),
		Reference:   dep.CheckNumber,
		Details: map[string]string{
			"check_number": dep.CheckNumber,
		},
	}
	if dep.ImageURI != "" {
		env.Artifacts = append(env.Artifacts, model.EnvelopeArtifact{
			Type: "check_image",
			URI:  dep.ImageURI,
			Hash: dep.ImageHash,
		})
	}
	return env, nil
}
