package topology

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/cschwartz85032/loanserve-sub001/pkg/rabbitmq"
)

// DLQMessage is one browsed dead-letter entry.
type DLQMessage struct {
	MessageID      string
	CorrelationID  string
	OriginQueue    string
	PoisonReason   string
	ReprocessCount int64
	Timestamp      time.Time
	Body           []byte
}

// DLQSummary is the per-queue view of the list command.
type DLQSummary struct {
	Queue     string
	Messages  int
	Consumers int
}

// DLQAnalysis groups a sample of a DLQ by origin queue and reason.
type DLQAnalysis struct {
	Sampled  int
	ByOrigin map[string]int
	ByReason map[string]int
}

// DLQTool operates on dead-letter queues: browse, reprocess, purge, analyze.
type DLQTool struct {
	conn   *rabbitmq.Connection
	mgmt   *rabbitmq.MgmtClient
	logger *slog.Logger
}

// NewDLQTool creates the tool.
func NewDLQTool(conn *rabbitmq.Connection, mgmt *rabbitmq.MgmtClient, logger *slog.Logger) *DLQTool {
	return &DLQTool{conn: conn, mgmt: mgmt, logger: logger}
}

// Inspect browses up to limit messages without consuming them: each is
// fetched unacked and nacked back with requeue, so the queue is unchanged.
func (t *DLQTool) Inspect(queue string, limit int) ([]DLQMessage, error) {
	ch, err := t.conn.Channel()
	if err != nil {
		return nil, err
	}
	defer ch.Close()

	var out []DLQMessage
	var tags []uint64
	for len(out) < limit {
		d, ok, err := ch.Get(queue, false)
		if err != nil {
			return nil, fmt.Errorf("dlq: get from %s: %w", queue, err)
		}
		if !ok {
			break
		}
		out = append(out, toDLQMessage(d))
		tags = append(tags, d.DeliveryTag)
	}

	// Return everything we looked at.
	for _, tag := range tags {
		if err := ch.Nack(tag, false, true); err != nil {
			return out, fmt.Errorf("dlq: requeue after browse: %w", err)
		}
	}
	return out, nil
}

// Reprocess moves up to limit messages back to their origin queues, stamping
// x-reprocessed and bumping x-reprocess-count. Messages without an origin
// header stay in the DLQ. Returns the number reprocessed.
func (t *DLQTool) Reprocess(ctx context.Context, queue string, limit int) (int, error) {
	ch, err := t.conn.Channel()
	if err != nil {
		return 0, err
	}
	defer ch.Close()

	moved := 0
	for moved < limit {
		d, ok, err := ch.Get(queue, false)
		if err != nil {
			return moved, fmt.Errorf("dlq: get from %s: %w", queue, err)
		}
		if !ok {
			break
		}

		origin := headerString(d.Headers, "x-origin-queue")
		if origin == "" {
			origin = deathQueue(d.Headers)
		}
		if origin == "" {
			t.logger.Warn("dlq message has no origin, leaving in place",
				"queue", queue, "message_id", d.MessageId)
			if err := ch.Nack(d.DeliveryTag, false, true); err != nil {
				return moved, fmt.Errorf("dlq: requeue originless message: %w", err)
			}
			continue
		}

		headers := amqp.Table{}
		for k, v := range d.Headers {
			headers[k] = v
		}
		headers["x-reprocessed"] = true
		headers["x-reprocess-count"] = headerInt(d.Headers, "x-reprocess-count") + 1

		err = ch.PublishWithContext(ctx, "", origin, false, false, amqp.Publishing{
			ContentType:   d.ContentType,
			DeliveryMode:  amqp.Persistent,
			MessageId:     d.MessageId,
			CorrelationId: d.CorrelationId,
			Timestamp:     time.Now().UTC(),
			Headers:       headers,
			Body:          d.Body,
		})
		if err != nil {
			if nackErr := ch.Nack(d.DeliveryTag, false, true); nackErr != nil {
				return moved, fmt.Errorf("dlq: requeue after failed republish: %w", nackErr)
			}
			return moved, fmt.Errorf("dlq: republish to %s: %w", origin, err)
		}
		if err := ch.Ack(d.DeliveryTag, false); err != nil {
			return moved, fmt.Errorf("dlq: ack after republish: %w", err)
		}

		t.logger.Info("reprocessed dlq message",
			"dlq", queue, "origin", origin, "message_id", d.MessageId)
		moved++
	}
	return moved, nil
}

// Purge deletes every message in the queue. Callers confirm first.
func (t *DLQTool) Purge(queue string) (int, error) {
	ch, err := t.conn.Channel()
	if err != nil {
		return 0, err
	}
	defer ch.Close()

	n, err := ch.QueuePurge(queue, false)
	if err != nil {
		return 0, fmt.Errorf("dlq: purge %s: %w", queue, err)
	}
	t.logger.Warn("purged dlq", "queue", queue, "messages", n)
	return n, nil
}

// List reports depth and consumer count for every dead-letter queue.
func (t *DLQTool) List(ctx context.Context) ([]DLQSummary, error) {
	live, err := t.mgmt.Queues(ctx)
	if err != nil {
		return nil, fmt.Errorf("dlq: list queues: %w", err)
	}
	byName := make(map[string]rabbitmq.MgmtQueue, len(live))
	for _, q := range live {
		byName[q.Name] = q
	}

	names := DLQNames()
	sort.Strings(names)
	out := make([]DLQSummary, 0, len(names))
	for _, name := range names {
		s := DLQSummary{Queue: name}
		if q, ok := byName[name]; ok {
			s.Messages = q.Messages
			s.Consumers = q.Consumers
		}
		out = append(out, s)
	}
	return out, nil
}

// Analyze samples up to sample messages and groups them by origin queue and
// poison reason. The sample is requeued untouched.
func (t *DLQTool) Analyze(queue string, sample int) (DLQAnalysis, error) {
	msgs, err := t.Inspect(queue, sample)
	if err != nil {
		return DLQAnalysis{}, err
	}

	analysis := DLQAnalysis{
		Sampled:  len(msgs),
		ByOrigin: map[string]int{},
		ByReason: map[string]int{},
	}
	for _, m := range msgs {
		origin := m.OriginQueue
		if origin == "" {
			origin = "(unknown)"
		}
		reason := m.PoisonReason
		if reason == "" {
			reason = "(delivery limit exceeded)"
		}
		analysis.ByOrigin[origin]++
		analysis.ByReason[reason]++
	}
	return analysis, nil
}

func toDLQMessage(d amqp.Delivery) DLQMessage {
	origin := headerString(d.Headers, "x-origin-queue")
	if origin == "" {
		origin = deathQueue(d.Headers)
	}
	return DLQMessage{
		MessageID:      d.MessageId,
		CorrelationID:  d.CorrelationId,
		OriginQueue:    origin,
		PoisonReason:   headerString(d.Headers, "x-poison-reason"),
		ReprocessCount: headerInt(d.Headers, "x-reprocess-count"),
		Timestamp:      d.Timestamp,
		Body:           d.Body,
	}
}

func headerString(h amqp.Table, key string) string {
	if v, ok := h[key].(string); ok {
		return v
	}
	return ""
}

func headerInt(h amqp.Table, key string) int64 {
	switch v := h[key].(type) {
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case int64:
		return v
	}
	return 0
}

// deathQueue extracts the origin queue from the broker's x-death header,
// present on messages dead-lettered by delivery-limit exhaustion.
func deathQueue(h amqp.Table) string {
	deaths, ok := h["x-death"].([]any)
	if !ok || len(deaths) == 0 {
		return ""
	}
	first, ok := deaths[0].(amqp.Table)
	if !ok {
		return ""
	}
	return headerString(first, "queue")
}
