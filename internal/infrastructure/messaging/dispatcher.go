package messaging

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/cschwartz85032/loanserve-sub001/pkg/events"
	"github.com/cschwartz85032/loanserve-sub001/pkg/observability"
	"github.com/cschwartz85032/loanserve-sub001/pkg/rabbitmq"
)

// DispatcherConfig tunes the outbox polling loop.
type DispatcherConfig struct {
	BatchSize    int
	PollInterval time.Duration
	// MaxAttempts parks a row after this many failed publishes. Parked rows
	// stay unpublished and visible; they never block the queue head.
	MaxAttempts int
}

// WithDefaults fills unset fields.
func (c DispatcherConfig) WithDefaults() DispatcherConfig {
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 10
	}
	return c
}

// Dispatcher drains the outbox to the broker: poll, publish with confirms,
// mark published. A row that keeps failing is skipped once it exceeds
// MaxAttempts so the rest of the batch flows.
type Dispatcher struct {
	outbox    events.OutboxRepository
	publisher *rabbitmq.Publisher
	cfg       DispatcherConfig
	metrics   *observability.PipelineMetrics
	logger    *slog.Logger
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(
	outbox events.OutboxRepository,
	publisher *rabbitmq.Publisher,
	cfg DispatcherConfig,
	metrics *observability.PipelineMetrics,
	logger *slog.Logger,
) *Dispatcher {
	return &Dispatcher{
		outbox:    outbox,
		publisher: publisher,
		cfg:       cfg.WithDefaults(),
		metrics:   metrics,
		logger:    logger,
	}
}

// Run polls until the context is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	d.logger.Info("outbox dispatcher starting",
		"batch_size", d.cfg.BatchSize, "poll_interval", d.cfg.PollInterval)

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("outbox dispatcher stopping")
			return nil
		case <-ticker.C:
			if err := d.DispatchOnce(ctx); err != nil {
				d.logger.Error("outbox sweep failed", "error", err)
			}
		}
	}
}

// DispatchOnce processes one locked batch. Publish errors are recorded on
// the row and do not stop the batch.
func (d *Dispatcher) DispatchOnce(ctx context.Context) error {
	return d.outbox.WithUnpublished(ctx, d.cfg.BatchSize, func(ctx context.Context, batch events.OutboxBatch) error {
		var published []uuid.UUID
		for _, e := range batch.Entries() {
			if e.Parked(d.cfg.MaxAttempts) {
				d.metrics.OutboxParked.Add(ctx, 1,
					metric.WithAttributes(attribute.String("event_type", e.EventType)))
				d.logger.Warn("outbox row parked, operator attention required",
					"outbox_id", e.ID, "event_type", e.EventType,
					"attempts", e.AttemptCount, "last_error", e.LastError)
				continue
			}

			route, err := RouteFor(e.EventType)
			if err != nil {
				// No route will ever appear for this row; park it via failures.
				d.recordFailure(ctx, batch, e, err)
				continue
			}

			headers := map[string]any{
				"x-message-id":     e.ID.String(),
				"x-correlation-id": e.CorrelationID,
				"x-tenant-id":      e.TenantID.String(),
			}
			if err := d.publisher.Publish(ctx, route.Exchange, route.RoutingKey, e.Payload, headers); err != nil {
				d.recordFailure(ctx, batch, e, err)
				continue
			}

			published = append(published, e.ID)
			d.metrics.OutboxPublished.Add(ctx, 1,
				metric.WithAttributes(attribute.String("event_type", e.EventType)))
		}

		if len(published) > 0 {
			if err := batch.MarkPublished(ctx, published); err != nil {
				return err
			}
			d.logger.Debug("outbox batch dispatched", "published", len(published))
		}
		return nil
	})
}

func (d *Dispatcher) recordFailure(ctx context.Context, batch events.OutboxBatch, e events.OutboxEntry, cause error) {
	d.metrics.OutboxFailed.Add(ctx, 1,
		metric.WithAttributes(attribute.String("event_type", e.EventType)))
	d.logger.Error("outbox publish failed",
		"outbox_id", e.ID, "event_type", e.EventType, "error", cause)
	if err := batch.RecordFailure(ctx, e.ID, cause.Error()); err != nil {
		d.logger.Error("record outbox failure", "outbox_id", e.ID, "error", err)
	}
}
