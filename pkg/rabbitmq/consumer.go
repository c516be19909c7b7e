package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Outcome classifies the result of handling one delivery.
type Outcome int

const (
	// Success acknowledges the message.
	Success Outcome = iota
	// Retry nacks without requeue so the broker's delivery-limit policy and
	// dead-letter binding take over.
	Retry
	// Poison routes the message to the queue's DLQ immediately with a reason
	// header; it is never retried in place.
	Poison
)

// Message is one consumed delivery, decoupled from the wire library.
type Message struct {
	MessageID     string
	CorrelationID string
	RoutingKey    string
	Redelivered   bool
	Headers       map[string]any
	Body          []byte
}

// Handler processes a consumed message. PoisonReason is only read when the
// outcome is Poison.
type Handler func(ctx context.Context, msg Message) (Outcome, error)

// ConsumerSpec describes one queue subscription.
type ConsumerSpec struct {
	Queue string
	// DLQExchange and DLQRoutingKey receive poison messages.
	DLQExchange   string
	DLQRoutingKey string
	// Prefetch bounds unacked deliveries per consumer channel.
	Prefetch int
}

// Consumer subscribes to a single queue with manual acknowledgement.
type Consumer struct {
	conn    *Connection
	spec    ConsumerSpec
	handler Handler
	logger  *slog.Logger
}

// NewConsumer creates a Consumer for the given queue with the provided handler.
func NewConsumer(conn *Connection, spec ConsumerSpec, handler Handler, logger *slog.Logger) *Consumer {
	if spec.Prefetch <= 0 {
		spec.Prefetch = 16
	}
	return &Consumer{conn: conn, spec: spec, handler: handler, logger: logger}
}

// Start begins consuming messages. Blocks until the context is canceled or
// the channel closes.
func (c *Consumer) Start(ctx context.Context) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	if err := ch.Qos(c.spec.Prefetch, 0, false); err != nil {
		return fmt.Errorf("rabbitmq: set qos on %s: %w", c.spec.Queue, err)
	}

	deliveries, err := ch.Consume(c.spec.Queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("rabbitmq: consume %s: %w", c.spec.Queue, err)
	}

	c.logger.Info("consumer starting", "queue", c.spec.Queue)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("consumer stopping", "queue", c.spec.Queue)
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("rabbitmq: delivery channel closed for %s", c.spec.Queue)
			}
			c.dispatch(ctx, ch, d)
		}
	}
}

func (c *Consumer) dispatch(ctx context.Context, ch *amqp.Channel, d amqp.Delivery) {
	msg := Message{
		MessageID:     d.MessageId,
		CorrelationID: d.CorrelationId,
		RoutingKey:    d.RoutingKey,
		Redelivered:   d.Redelivered,
		Headers:       map[string]any(d.Headers),
		Body:          d.Body,
	}
	// Messages from foreign producers may carry the id only as a header.
	// Dedup depends on it, so fall back before handing off.
	if msg.MessageID == "" {
		if id, ok := d.Headers["x-message-id"].(string); ok {
			msg.MessageID = id
		}
	}
	if msg.CorrelationID == "" {
		if id, ok := d.Headers["x-correlation-id"].(string); ok {
			msg.CorrelationID = id
		}
	}

	outcome, err := c.handler(ctx, msg)
	if err != nil && outcome == Success {
		// A handler that errors cannot also succeed; treat as retryable.
		outcome = Retry
	}

	switch outcome {
	case Success:
		if ackErr := d.Ack(false); ackErr != nil {
			c.logger.Error("ack failed", "queue", c.spec.Queue, "message_id", d.MessageId, "error", ackErr)
		}
	case Retry:
		c.logger.Warn("handler failed, returning to broker",
			"queue", c.spec.Queue, "message_id", d.MessageId, "error", err)
		if nackErr := d.Nack(false, false); nackErr != nil {
			c.logger.Error("nack failed", "queue", c.spec.Queue, "message_id", d.MessageId, "error", nackErr)
		}
	case Poison:
		c.quarantine(ctx, ch, d, err)
	}
}

// quarantine republishes a poison message to the DLQ with a reason header,
// then acks the original. Falling back to a plain reject still dead-letters
// via the queue's DLX binding, just without the reason.
func (c *Consumer) quarantine(ctx context.Context, ch *amqp.Channel, d amqp.Delivery, cause error) {
	reason := "unspecified"
	if cause != nil {
		reason = cause.Error()
	}
	c.logger.Error("poison message",
		"queue", c.spec.Queue, "message_id", d.MessageId, "reason", reason)

	if c.spec.DLQExchange == "" {
		if err := d.Reject(false); err != nil {
			c.logger.Error("reject failed", "queue", c.spec.Queue, "error", err)
		}
		return
	}

	headers := amqp.Table{}
	for k, v := range d.Headers {
		headers[k] = v
	}
	headers["x-poison-reason"] = reason
	headers["x-origin-queue"] = c.spec.Queue

	err := ch.PublishWithContext(ctx, c.spec.DLQExchange, c.spec.DLQRoutingKey, false, false, amqp.Publishing{
		ContentType:   d.ContentType,
		DeliveryMode:  amqp.Persistent,
		MessageId:     d.MessageId,
		CorrelationId: d.CorrelationId,
		Headers:       headers,
		Body:          d.Body,
	})
	if err != nil {
		c.logger.Error("dlq publish failed, rejecting in place", "queue", c.spec.Queue, "error", err)
		if rejErr := d.Reject(false); rejErr != nil {
			c.logger.Error("reject failed", "queue", c.spec.Queue, "error", rejErr)
		}
		return
	}

	if ackErr := d.Ack(false); ackErr != nil {
		c.logger.Error("ack after quarantine failed", "queue", c.spec.Queue, "error", ackErr)
	}
}

// ErrMalformed marks a delivery as structurally unprocessable. Handlers wrap
// deserialization failures with it so consumers classify them as poison.
var ErrMalformed = errors.New("rabbitmq: malformed message")
