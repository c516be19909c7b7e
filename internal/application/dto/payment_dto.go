package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/cschwartz85032/loanserve-sub001/internal/domain/model"
	"github.com/cschwartz85032/loanserve-sub001/internal/domain/valueobject"
	"github.com/cschwartz85032/loanserve-sub001/pkg/money"
)

// PostPaymentResult is the pipeline's answer for one envelope. A replayed
// envelope returns the original payment id with IsNew=false.
type PostPaymentResult struct {
	PaymentID      uuid.UUID               `json:"payment_id"`
	IsNew          bool                    `json:"is_new"`
	Status         string                  `json:"status"`
	RequiresReview bool                    `json:"requires_review"`
	RiskScore      int                     `json:"risk_score"`
	Allocation     valueobject.Allocation  `json:"allocation"`
}

// PaymentResponse is the read view of a stored payment.
type PaymentResponse struct {
	ID             uuid.UUID              `json:"id"`
	LoanID         string                 `json:"loan_id,omitempty"`
	Channel        string                 `json:"channel"`
	Amount         money.Cents            `json:"amount_cents"`
	Currency       string                 `json:"currency"`
	ValueDate      string                 `json:"value_date"`
	Status         string                 `json:"status"`
	Allocation     valueobject.Allocation `json:"allocation"`
	Reference      string                 `json:"reference,omitempty"`
	CorrelationID  string                 `json:"correlation_id"`
	RequiresReview bool                   `json:"requires_review"`
	RiskScore      int                    `json:"risk_score"`
	CreatedAt      time.Time              `json:"created_at"`
	UpdatedAt      time.Time              `json:"updated_at"`
}

// PaymentToResponse maps the aggregate to its read view.
func PaymentToResponse(p model.Payment) PaymentResponse {
	return PaymentResponse{
		ID:             p.ID(),
		LoanID:         p.LoanID(),
		Channel:        string(p.Channel()),
		Amount:         p.Amount(),
		Currency:       p.Currency(),
		ValueDate:      p.ValueDate().Format("2006-01-02"),
		Status:         string(p.Status()),
		Allocation:     p.Allocation(),
		Reference:      p.Reference(),
		CorrelationID:  p.CorrelationID(),
		RequiresReview: p.RequiresReview(),
		RiskScore:      p.RiskScore(),
		CreatedAt:      p.CreatedAt(),
		UpdatedAt:      p.UpdatedAt(),
	}
}
