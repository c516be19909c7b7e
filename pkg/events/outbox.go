package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// OutboxEntry represents a domain event stored in the outbox table.
// Entries are written in the same transaction as the business rows they
// announce and are marked published only after a confirmed broker publish.
type OutboxEntry struct {
	ID            uuid.UUID
	TenantID      uuid.UUID
	AggregateID   uuid.UUID
	AggregateType string
	EventType     string
	CorrelationID string
	Payload       []byte
	CreatedAt     time.Time
	PublishedAt   *time.Time
	AttemptCount  int
	LastError     string
}

// NewOutboxEntry creates an OutboxEntry from a DomainEvent.
func NewOutboxEntry(event DomainEvent) OutboxEntry {
	return OutboxEntry{
		ID:            event.EventID(),
		TenantID:      event.TenantID(),
		AggregateID:   event.AggregateID(),
		AggregateType: event.AggregateType(),
		EventType:     event.EventType(),
		CorrelationID: event.CorrelationID(),
		Payload:       event.Payload(),
		CreatedAt:     event.OccurredAt(),
		PublishedAt:   nil,
	}
}

// Parked reports whether the entry has exhausted its publish attempts and is
// waiting for operator attention. Parked rows stay unpublished and visible.
func (e OutboxEntry) Parked(maxAttempts int) bool {
	return e.PublishedAt == nil && maxAttempts > 0 && e.AttemptCount >= maxAttempts
}

// OutboxBatch is one locked sweep of unpublished rows. Mark and failure
// writes join the sweep's transaction and land on commit.
type OutboxBatch interface {
	Entries() []OutboxEntry
	MarkPublished(ctx context.Context, ids []uuid.UUID) error
	// RecordFailure increments the attempt counter and stores the last error.
	RecordFailure(ctx context.Context, id uuid.UUID, publishErr string) error
}

// OutboxRepository is the port for outbox persistence.
type OutboxRepository interface {
	// WithUnpublished locks up to batchSize unpublished entries, oldest
	// first, skipping rows another dispatcher already holds, and hands them
	// to fn inside the locking transaction. The transaction commits when fn
	// returns nil. A crash after a broker confirm but before commit re-sends
	// the row, so delivery is at least once and consumers dedup on message id.
	WithUnpublished(ctx context.Context, batchSize int, fn func(ctx context.Context, batch OutboxBatch) error) error
}

// EventPublisher publishes domain events to a message broker.
type EventPublisher interface {
	Publish(ctx context.Context, events ...DomainEvent) error
}
