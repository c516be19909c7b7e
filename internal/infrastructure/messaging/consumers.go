package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/cschwartz85032/loanserve-sub001/internal/application/dto"
	"github.com/cschwartz85032/loanserve-sub001/internal/domain/event"
	"github.com/cschwartz85032/loanserve-sub001/internal/domain/model"
	"github.com/cschwartz85032/loanserve-sub001/internal/domain/port"
	"github.com/cschwartz85032/loanserve-sub001/internal/domain/service"
	"github.com/cschwartz85032/loanserve-sub001/pkg/observability"
	"github.com/cschwartz85032/loanserve-sub001/pkg/postgres"
	"github.com/cschwartz85032/loanserve-sub001/pkg/rabbitmq"
)

// EnvelopePoster posts one inbound payment envelope.
type EnvelopePoster interface {
	Execute(ctx context.Context, env model.PaymentEnvelope) (dto.PostPaymentResult, error)
}

// PaymentReverser unwinds one posted payment.
type PaymentReverser interface {
	Execute(ctx context.Context, paymentID uuid.UUID, reason string) (dto.PaymentResponse, error)
}

// RunExecutor drives one pending servicing run to a terminal state.
type RunExecutor interface {
	Execute(ctx context.Context, runID uuid.UUID) (dto.ServicingRunResponse, error)
}

// Consumers builds the queue handlers of the payments pipeline and the
// servicing-run worker. Every handler checks the dedup store before doing
// work and marks the message processed only after its side effects
// committed, so a delivery that fails mid-flight is retried rather than
// swallowed as a duplicate.
type Consumers struct {
	post      EnvelopePoster
	reverse   PaymentReverser
	cycle     RunExecutor
	processed port.ProcessedMessageRepository
	metrics   *observability.PipelineMetrics
	logger    *slog.Logger
}

// NewConsumers wires the handler set.
func NewConsumers(
	post EnvelopePoster,
	reverse PaymentReverser,
	cycle RunExecutor,
	processed port.ProcessedMessageRepository,
	metrics *observability.PipelineMetrics,
	logger *slog.Logger,
) *Consumers {
	return &Consumers{post: post, reverse: reverse, cycle: cycle, processed: processed, metrics: metrics, logger: logger}
}

// IntakeSpec is the subscription for inbound payment envelopes.
func IntakeSpec() rabbitmq.ConsumerSpec {
	return rabbitmq.ConsumerSpec{
		Queue:         "payments.intake",
		DLQExchange:   "dlx.main",
		DLQRoutingKey: "dlq.payments",
		Prefetch:      16,
	}
}

// ReversalSpec is the subscription for reversal requests.
func ReversalSpec() rabbitmq.ConsumerSpec {
	return rabbitmq.ConsumerSpec{
		Queue:         "payments.reversal",
		DLQExchange:   "dlx.main",
		DLQRoutingKey: "dlq.payments",
		Prefetch:      8,
	}
}

// RunsSpec is the subscription for servicing-run pickups. Prefetch of one
// keeps a worker on a single run at a time.
func RunsSpec() rabbitmq.ConsumerSpec {
	return rabbitmq.ConsumerSpec{
		Queue:         "servicing.runs",
		DLQExchange:   "dlx.main",
		DLQRoutingKey: "dlq.servicing",
		Prefetch:      1,
	}
}

// IntakeHandler consumes payment envelopes and runs the posting pipeline.
func (c *Consumers) IntakeHandler() rabbitmq.Handler {
	const consumer = "payments.intake"
	return func(ctx context.Context, msg rabbitmq.Message) (rabbitmq.Outcome, error) {
		proceed, outcome, err := c.begin(ctx, consumer, msg)
		if !proceed {
			return outcome, err
		}

		var env model.PaymentEnvelope
		if err := json.Unmarshal(msg.Body, &env); err != nil {
			return c.outcome(ctx, consumer, rabbitmq.Poison),
				fmt.Errorf("%w: envelope: %v", rabbitmq.ErrMalformed, err)
		}

		tenantCtx, err := c.tenantContext(ctx, msg)
		if err != nil {
			return c.outcome(ctx, consumer, rabbitmq.Poison),
				fmt.Errorf("%w: %v", rabbitmq.ErrMalformed, err)
		}

		res, err := c.post.Execute(tenantCtx, env)
		if err != nil {
			var invalid *service.InvalidEnvelopeError
			if errors.As(err, &invalid) {
				return c.outcome(ctx, consumer, rabbitmq.Poison), err
			}
			return c.outcome(ctx, consumer, rabbitmq.Retry), err
		}

		if res.IsNew {
			c.metrics.PaymentsPosted.Add(ctx, 1,
				metric.WithAttributes(attribute.String("channel", string(env.Source.Channel))))
		} else {
			c.metrics.PaymentsDuplicate.Add(ctx, 1,
				metric.WithAttributes(attribute.String("channel", string(env.Source.Channel))))
		}
		c.finish(ctx, consumer, msg)
		return c.outcome(ctx, consumer, rabbitmq.Success), nil
	}
}

// reversalRequest is the wire body of a reversal command.
type reversalRequest struct {
	PaymentID uuid.UUID `json:"payment_id"`
	Reason    string    `json:"reason"`
}

// ReversalHandler consumes reversal requests.
func (c *Consumers) ReversalHandler() rabbitmq.Handler {
	const consumer = "payments.reversal"
	return func(ctx context.Context, msg rabbitmq.Message) (rabbitmq.Outcome, error) {
		proceed, outcome, err := c.begin(ctx, consumer, msg)
		if !proceed {
			return outcome, err
		}

		var req reversalRequest
		if err := json.Unmarshal(msg.Body, &req); err != nil {
			return c.outcome(ctx, consumer, rabbitmq.Poison),
				fmt.Errorf("%w: reversal request: %v", rabbitmq.ErrMalformed, err)
		}
		if req.PaymentID == uuid.Nil || req.Reason == "" {
			return c.outcome(ctx, consumer, rabbitmq.Poison),
				fmt.Errorf("%w: reversal request missing payment_id or reason", rabbitmq.ErrMalformed)
		}

		tenantCtx, err := c.tenantContext(ctx, msg)
		if err != nil {
			return c.outcome(ctx, consumer, rabbitmq.Poison),
				fmt.Errorf("%w: %v", rabbitmq.ErrMalformed, err)
		}

		if _, err := c.reverse.Execute(tenantCtx, req.PaymentID, req.Reason); err != nil {
			return c.outcome(ctx, consumer, rabbitmq.Retry), err
		}
		c.finish(ctx, consumer, msg)
		return c.outcome(ctx, consumer, rabbitmq.Success), nil
	}
}

// RunHandler picks up servicing.run.started events and executes the run.
func (c *Consumers) RunHandler() rabbitmq.Handler {
	const consumer = "servicing.runs"
	return func(ctx context.Context, msg rabbitmq.Message) (rabbitmq.Outcome, error) {
		proceed, outcome, err := c.begin(ctx, consumer, msg)
		if !proceed {
			return outcome, err
		}

		var payload event.ServicingRunStartedPayload
		if err := json.Unmarshal(msg.Body, &payload); err != nil {
			return c.outcome(ctx, consumer, rabbitmq.Poison),
				fmt.Errorf("%w: run started payload: %v", rabbitmq.ErrMalformed, err)
		}
		if payload.RunID == uuid.Nil {
			return c.outcome(ctx, consumer, rabbitmq.Poison),
				fmt.Errorf("%w: run started payload missing run_id", rabbitmq.ErrMalformed)
		}

		tenantCtx, err := c.tenantContext(ctx, msg)
		if err != nil {
			return c.outcome(ctx, consumer, rabbitmq.Poison),
				fmt.Errorf("%w: %v", rabbitmq.ErrMalformed, err)
		}

		resp, err := c.cycle.Execute(tenantCtx, payload.RunID)
		if err != nil {
			if errors.Is(err, model.ErrRunNotPending) {
				// Another worker already picked this run up, or an operator
				// drove it by hand. Nothing left to do.
				c.logger.Info("run already picked up", "run_id", payload.RunID)
				c.finish(ctx, consumer, msg)
				return c.outcome(ctx, consumer, rabbitmq.Success), nil
			}
			return c.outcome(ctx, consumer, rabbitmq.Retry), err
		}

		c.logger.Info("run executed from queue",
			"run_id", payload.RunID, "status", resp.Status, "recon_status", resp.ReconStatus)
		c.finish(ctx, consumer, msg)
		return c.outcome(ctx, consumer, rabbitmq.Success), nil
	}
}

// begin checks the dedup store. A message already recorded there completed a
// previous delivery including its side effects, so it is acked untouched.
// The processed mark is written by finish, after the work commits; a failure
// in between leaves no mark and the redelivery runs the handler again.
func (c *Consumers) begin(ctx context.Context, consumer string, msg rabbitmq.Message) (bool, rabbitmq.Outcome, error) {
	if msg.MessageID == "" {
		// Without an id there is nothing to deduplicate on; process anyway.
		return true, rabbitmq.Success, nil
	}
	seen, err := c.processed.Seen(ctx, consumer, msg.MessageID)
	if err != nil {
		return false, rabbitmq.Retry, fmt.Errorf("dedup check: %w", err)
	}
	if seen {
		c.logger.Debug("duplicate delivery dropped",
			"consumer", consumer, "message_id", msg.MessageID)
		return false, c.outcome(ctx, consumer, rabbitmq.Success), nil
	}
	return true, rabbitmq.Success, nil
}

// finish marks the message processed. Losing the race to a concurrent
// delivery is harmless: both executed idempotent work, both ack. A store
// error is logged and the ack proceeds; the mark only matters for deliveries
// that have not been acked yet.
func (c *Consumers) finish(ctx context.Context, consumer string, msg rabbitmq.Message) {
	if msg.MessageID == "" {
		return
	}
	first, err := c.processed.Record(ctx, consumer, msg.MessageID, time.Now().UTC())
	if err != nil {
		c.logger.Warn("processed mark not recorded",
			"consumer", consumer, "message_id", msg.MessageID, "error", err)
		return
	}
	if !first {
		c.logger.Debug("concurrent delivery recorded first",
			"consumer", consumer, "message_id", msg.MessageID)
	}
}

func (c *Consumers) tenantContext(ctx context.Context, msg rabbitmq.Message) (context.Context, error) {
	raw, _ := msg.Headers["x-tenant-id"].(string)
	tenantID, err := uuid.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("bad x-tenant-id header %q", raw)
	}
	return postgres.WithTenant(ctx, tenantID), nil
}

func (c *Consumers) outcome(ctx context.Context, consumer string, o rabbitmq.Outcome) rabbitmq.Outcome {
	label := "success"
	switch o {
	case rabbitmq.Retry:
		label = "retry"
	case rabbitmq.Poison:
		label = "poison"
	}
	c.metrics.ConsumerOutcomes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("consumer", consumer),
		attribute.String("outcome", label)))
	return o
}
