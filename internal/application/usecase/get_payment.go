package usecase

import (
	"context"

	"github.com/google/uuid"

	"github.com/cschwartz85032/loanserve-sub001/internal/application/dto"
	"github.com/cschwartz85032/loanserve-sub001/internal/domain/port"
)

// GetPaymentUseCase reads a single payment.
type GetPaymentUseCase struct {
	payments port.PaymentRepository
}

// NewGetPaymentUseCase wires the read path.
func NewGetPaymentUseCase(payments port.PaymentRepository) *GetPaymentUseCase {
	return &GetPaymentUseCase{payments: payments}
}

// Execute returns the payment or port.ErrNotFound.
func (uc *GetPaymentUseCase) Execute(ctx context.Context, id uuid.UUID) (dto.PaymentResponse, error) {
	p, err := uc.payments.FindByID(ctx, id)
	if err != nil {
		return dto.PaymentResponse{}, err
	}
	return dto.PaymentToResponse(p), nil
}
