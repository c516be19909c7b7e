package rabbitmq

import (
	"context"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher publishes persistent messages with publisher confirms on a
// dedicated channel. A Publisher is safe for use by a single goroutine;
// give each worker its own.
type Publisher struct {
	mu      sync.Mutex
	conn    *Connection
	ch      *amqp.Channel
	timeout time.Duration
}

// NewPublisher opens a confirm-mode channel for publishing.
func NewPublisher(conn *Connection) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("rabbitmq: enable confirms: %w", err)
	}

	return &Publisher{
		conn:    conn,
		ch:      ch,
		timeout: conn.Config().ConfirmTimeout,
	}, nil
}

// Publish sends body as a persistent message and waits for the broker
// confirm. A nack or confirm timeout is returned as an error so the caller
// can record the failure and retry.
func (p *Publisher) Publish(ctx context.Context, exchange, routingKey string, body []byte, headers map[string]any) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	confirmCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	confirm, err := p.ch.PublishWithDeferredConfirmWithContext(confirmCtx, exchange, routingKey, false, false, buildPublishing(body, headers))
	if err != nil {
		return fmt.Errorf("rabbitmq: publish to %s/%s: %w", exchange, routingKey, err)
	}

	acked, err := confirm.WaitContext(confirmCtx)
	if err != nil {
		return fmt.Errorf("rabbitmq: confirm for %s/%s: %w", exchange, routingKey, err)
	}
	if !acked {
		return fmt.Errorf("rabbitmq: broker nacked publish to %s/%s", exchange, routingKey)
	}
	return nil
}

// buildPublishing assembles the wire message. The x-message-id and
// x-correlation-id headers also populate the AMQP MessageId and CorrelationId
// properties, which is where consumers read them from.
func buildPublishing(body []byte, headers map[string]any) amqp.Publishing {
	table := amqp.Table{}
	for k, v := range headers {
		table[k] = v
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Headers:      table,
		Body:         body,
	}
	if id, ok := headers["x-message-id"].(string); ok {
		msg.MessageId = id
	}
	if id, ok := headers["x-correlation-id"].(string); ok {
		msg.CorrelationId = id
	}
	return msg
}

// Close closes the publishing channel.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch == nil {
		return nil
	}
	err := p.ch.Close()
	p.ch = nil
	if err != nil {
		return fmt.Errorf("rabbitmq: close publisher channel: %w", err)
	}
	return nil
}
