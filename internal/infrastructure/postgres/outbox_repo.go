package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cschwartz85032/loanserve-sub001/pkg/events"
)

// OutboxRepo reads and updates outbox rows. Each sweep locks its rows with
// SKIP LOCKED so concurrent dispatchers divide the backlog instead of
// double-publishing it. Delivery is still at-least-once: a crash between a
// broker confirm and the sweep commit re-sends the row, and consumers drop
// the duplicate through their processed-message store.
type OutboxRepo struct {
	pool *pgxpool.Pool
}

// NewOutboxRepo creates the repository.
func NewOutboxRepo(pool *pgxpool.Pool) *OutboxRepo {
	return &OutboxRepo{pool: pool}
}

var _ events.OutboxRepository = (*OutboxRepo)(nil)

// WithUnpublished locks the oldest unpublished rows and runs fn over them
// inside the locking transaction.
func (r *OutboxRepo) WithUnpublished(ctx context.Context, batchSize int, fn func(ctx context.Context, batch events.OutboxBatch) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin outbox sweep: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	rows, err := tx.Query(ctx, `
		SELECT id, tenant_id, aggregate_id, aggregate_type, event_type, correlation_id,
			payload, created_at, published_at, attempt_count, last_error
		FROM outbox
		WHERE published_at IS NULL
		ORDER BY created_at
		LIMIT $1
		FOR UPDATE SKIP LOCKED`, batchSize)
	if err != nil {
		return fmt.Errorf("fetch outbox: %w", err)
	}

	var entries []events.OutboxEntry
	for rows.Next() {
		var e events.OutboxEntry
		if err := rows.Scan(&e.ID, &e.TenantID, &e.AggregateID, &e.AggregateType,
			&e.EventType, &e.CorrelationID, &e.Payload, &e.CreatedAt,
			&e.PublishedAt, &e.AttemptCount, &e.LastError); err != nil {
			rows.Close()
			return fmt.Errorf("scan outbox row: %w", err)
		}
		entries = append(entries, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("read outbox rows: %w", err)
	}

	if err := fn(ctx, &outboxBatch{tx: tx, entries: entries}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit outbox sweep: %w", err)
	}
	return nil
}

type outboxBatch struct {
	tx      pgx.Tx
	entries []events.OutboxEntry
}

func (b *outboxBatch) Entries() []events.OutboxEntry { return b.entries }

// MarkPublished stamps the rows published.
func (b *outboxBatch) MarkPublished(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := b.tx.Exec(ctx, `
		UPDATE outbox SET published_at = $1 WHERE id = ANY($2)`,
		time.Now().UTC(), ids)
	if err != nil {
		return fmt.Errorf("mark outbox published: %w", err)
	}
	return nil
}

// RecordFailure increments the attempt counter and stores the error.
func (b *outboxBatch) RecordFailure(ctx context.Context, id uuid.UUID, publishErr string) error {
	_, err := b.tx.Exec(ctx, `
		UPDATE outbox SET attempt_count = attempt_count + 1, last_error = $1 WHERE id = $2`,
		publishErr, id)
	if err != nil {
		return fmt.Errorf("record outbox failure: %w", err)
	}
	return nil
}

// OutboxWriter enqueues domain events as outbox rows. It serves code paths
// that produce events outside a posting transaction; the dispatcher picks
// the rows up like any other.
type OutboxWriter struct {
	pool *pgxpool.Pool
}

// NewOutboxWriter creates the writer.
func NewOutboxWriter(pool *pgxpool.Pool) *OutboxWriter {
	return &OutboxWriter{pool: pool}
}

var _ events.EventPublisher = (*OutboxWriter)(nil)

// Publish inserts one outbox row per event.
func (w *OutboxWriter) Publish(ctx context.Context, evs ...events.DomainEvent) error {
	for _, ev := range evs {
		_, err := w.pool.Exec(ctx, `
			INSERT INTO outbox (id, tenant_id, aggregate_id, aggregate_type, event_type,
				correlation_id, payload, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			ev.EventID(), ev.TenantID(), ev.AggregateID(), ev.AggregateType(),
			ev.EventType(), ev.CorrelationID(), ev.Payload(), ev.OccurredAt())
		if err != nil {
			return fmt.Errorf("enqueue outbox event %s: %w", ev.EventID(), err)
		}
	}
	return nil
}
