package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cschwartz85032/loanserve-sub001/internal/application/dto"
	"github.com/cschwartz85032/loanserve-sub001/internal/domain/event"
	"github.com/cschwartz85032/loanserve-sub001/internal/domain/model"
	"github.com/cschwartz85032/loanserve-sub001/internal/domain/port"
	"github.com/cschwartz85032/loanserve-sub001/internal/domain/service"
	"github.com/cschwartz85032/loanserve-sub001/internal/domain/valueobject"
	"github.com/cschwartz85032/loanserve-sub001/pkg/postgres"
)

// PostPaymentUseCase runs the intake pipeline for one envelope: normalize,
// validate, score, allocate, then post everything in one transaction.
type PostPaymentUseCase struct {
	payments  port.PaymentRepository
	store     port.PostingStore
	loans     port.LoanReadModel
	validator *service.EnvelopeValidator
	allocator *service.WaterfallAllocator
	scorer    *service.RiskScorer
	builder   *service.PostingBuilder
	logger    *slog.Logger
}

// NewPostPaymentUseCase wires the pipeline.
func NewPostPaymentUseCase(
	payments port.PaymentRepository,
	store port.PostingStore,
	loans port.LoanReadModel,
	validator *service.EnvelopeValidator,
	allocator *service.WaterfallAllocator,
	scorer *service.RiskScorer,
	builder *service.PostingBuilder,
	logger *slog.Logger,
) *PostPaymentUseCase {
	return &PostPaymentUseCase{
		payments:  payments,
		store:     store,
		loans:     loans,
		validator: validator,
		allocator: allocator,
		scorer:    scorer,
		builder:   builder,
		logger:    logger,
	}
}

// Execute posts one envelope. Replays of an already-accepted envelope return
// the original payment with IsNew=false and write nothing.
func (uc *PostPaymentUseCase) Execute(ctx context.Context, env model.PaymentEnvelope) (dto.PostPaymentResult, error) {
	tenantID, err := postgres.RequireTenant(ctx)
	if err != nil {
		return dto.PostPaymentResult{}, err
	}

	env.IdempotencyKey = service.IdempotencyKey(
		env.Payment.Method, env.Payment.Reference, env.Payment.ValueDate,
		env.Payment.AmountCents, env.Borrower.LoanID)

	if err := uc.validator.Validate(env); err != nil {
		return dto.PostPaymentResult{}, err
	}

	// Cheap pre-check; the unique index inside Post is the real guard.
	if existing, err := uc.payments.FindByIdempotencyKey(ctx, env.IdempotencyKey); err == nil {
		uc.logger.Info("duplicate envelope, returning original payment",
			"payment_id", existing.ID(), "correlation_id", env.CorrelationID)
		return duplicateResult(existing), nil
	} else if !errors.Is(err, port.ErrNotFound) {
		return dto.PostPaymentResult{}, fmt.Errorf("idempotency pre-check: %w", err)
	}

	score := uc.scorer.Score(env)
	if env.Risk == nil {
		env.Risk = &model.EnvelopeRisk{}
	}
	env.Risk.Score = score

	postingReady := env.HasLoan()
	var alloc valueobject.Allocation
	if postingReady {
		snap, err := uc.loans.ReceivableState(ctx, env.Borrower.LoanID)
		if err != nil {
			return dto.PostPaymentResult{}, fmt.Errorf("load receivables for loan %s: %w", env.Borrower.LoanID, err)
		}
		alloc, err = uc.allocator.Allocate(env.Payment.AmountCents, service.ReceivableState{
			OutstandingFees:     snap.OutstandingFees,
			OutstandingInterest: snap.OutstandingInterest,
			ScheduledPrincipal:  snap.ScheduledPrincipal,
			EscrowRequirement:   snap.EscrowRequirement,
		})
		if err != nil {
			return dto.PostPaymentResult{}, err
		}
	} else {
		alloc = valueobject.SuspenseOnly(env.Payment.AmountCents)
	}

	now := time.Now().UTC()
	payment, err := model.NewPayment(tenantID, env, alloc, postingReady, now)
	if err != nil {
		return dto.PostPaymentResult{}, err
	}

	entries, err := uc.builder.Build(tenantID, payment.ID(), payment.Channel(),
		payment.Amount(), alloc, postingReady, payment.CorrelationID(), now)
	if err != nil {
		return dto.PostPaymentResult{}, err
	}

	res, err := uc.store.Post(ctx, port.PostingBundle{
		Payment:   payment,
		Entries:   entries,
		EventType: event.TypePaymentPosted,
		EventData: payment.DomainEvents()[0].Payload(),
		Actor:     model.ActorSystem,
		ActorID:   "payment-pipeline",
	})
	if err != nil {
		return dto.PostPaymentResult{}, fmt.Errorf("post payment: %w", err)
	}

	if !res.IsNew {
		// Lost the race; surface the winner's state.
		winner, err := uc.payments.FindByID(ctx, res.PaymentID)
		if err != nil {
			return dto.PostPaymentResult{}, fmt.Errorf("load winning payment: %w", err)
		}
		return duplicateResult(winner), nil
	}

	uc.logger.Info("payment posted",
		"payment_id", payment.ID(),
		"loan_id", payment.LoanID(),
		"channel", payment.Channel(),
		"amount_cents", int64(payment.Amount()),
		"status", payment.Status(),
		"risk_score", score,
		"correlation_id", payment.CorrelationID())

	return dto.PostPaymentResult{
		PaymentID:      payment.ID(),
		IsNew:          true,
		Status:         string(payment.Status()),
		RequiresReview: payment.RequiresReview(),
		RiskScore:      score,
		Allocation:     alloc,
	}, nil
}

func duplicateResult(p model.Payment) dto.PostPaymentResult {
	return dto.PostPaymentResult{
		PaymentID:      p.ID(),
		IsNew:          false,
		Status:         string(p.Status()),
		RequiresReview: p.RequiresReview(),
		RiskScore:      p.RiskScore(),
		Allocation:     p.Allocation(),
	}
}
