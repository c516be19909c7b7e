package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/cschwartz85032/loanserve-sub001/internal/application/dto"
	"github.com/cschwartz85032/loanserve-sub001/internal/domain/event"
	"github.com/cschwartz85032/loanserve-sub001/internal/domain/model"
	"github.com/cschwartz85032/loanserve-sub001/internal/domain/port"
	"github.com/cschwartz85032/loanserve-sub001/internal/domain/service"
)

// ReversePaymentUseCase unwinds a posted payment: mirror ledger lines, status
// transition, outbox event and chained audit event in one transaction.
type ReversePaymentUseCase struct {
	payments port.PaymentRepository
	store    port.PostingStore
	builder  *service.PostingBuilder
	logger   *slog.Logger
}

// NewReversePaymentUseCase wires the reversal path.
func NewReversePaymentUseCase(
	payments port.PaymentRepository,
	store port.PostingStore,
	builder *service.PostingBuilder,
	logger *slog.Logger,
) *ReversePaymentUseCase {
	return &ReversePaymentUseCase{payments: payments, store: store, builder: builder, logger: logger}
}

// Execute reverses the payment for the given reason.
func (uc *ReversePaymentUseCase) Execute(ctx context.Context, paymentID uuid.UUID, reason string) (dto.PaymentResponse, error) {
	if reason == "" {
		return dto.PaymentResponse{}, fmt.Errorf("reversal reason is required")
	}

	p, err := uc.payments.FindByID(ctx, paymentID)
	if err != nil {
		return dto.PaymentResponse{}, err
	}

	now := time.Now().UTC()
	reversed, err := p.Reverse(reason, now)
	if err != nil {
		return dto.PaymentResponse{}, err
	}

	entries, err := uc.builder.BuildReversal(p.TenantID(), p.ID(), p.Channel(),
		p.Amount(), p.Allocation(), p.CorrelationID(), now)
	if err != nil {
		return dto.PaymentResponse{}, err
	}

	events := reversed.DomainEvents()
	payload := events[len(events)-1].Payload()
	if err := uc.store.Transition(ctx, reversed, entries, event.TypePaymentReversed,
		payload, model.ActorHuman, reason); err != nil {
		return dto.PaymentResponse{}, fmt.Errorf("reverse payment: %w", err)
	}

	uc.logger.Info("payment reversed",
		"payment_id", p.ID(), "reason", reason, "correlation_id", p.CorrelationID())
	return dto.PaymentToResponse(reversed), nil
}
