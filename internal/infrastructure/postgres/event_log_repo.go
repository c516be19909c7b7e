package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cschwartz85032/loanserve-sub001/internal/domain/model"
	"github.com/cschwartz85032/loanserve-sub001/internal/domain/port"
	"github.com/cschwartz85032/loanserve-sub001/internal/domain/service"
	pgshared "github.com/cschwartz85032/loanserve-sub001/pkg/postgres"
)

// EventLogRepo reads the tenant's hash-chained audit log.
type EventLogRepo struct {
	pool *pgxpool.Pool
}

// NewEventLogRepo creates the repository.
func NewEventLogRepo(pool *pgxpool.Pool) *EventLogRepo {
	return &EventLogRepo{pool: pool}
}

var _ port.EventLogRepository = (*EventLogRepo)(nil)

// ListByTenant returns one page of the chain, oldest first.
func (r *EventLogRepo) ListByTenant(ctx context.Context, limit, offset int) ([]model.PaymentEvent, error) {
	var out []model.PaymentEvent
	err := pgshared.WithTenantTransaction(ctx, r.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			SELECT id, tenant_id, payment_id, ingestion_id, event_type, event_time,
				actor, actor_id, correlation_id, data, prev_event_hash, event_hash
			FROM payment_events
			ORDER BY event_time, id
			LIMIT $1 OFFSET $2`, limit, offset)
		if err != nil {
			return fmt.Errorf("list payment events: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var ev model.PaymentEvent
			var actor string
			if err := rows.Scan(&ev.ID, &ev.TenantID, &ev.PaymentID, &ev.IngestionID,
				&ev.EventType, &ev.EventTime, &actor, &ev.ActorID, &ev.CorrelationID,
				&ev.Data, &ev.PrevEventHash, &ev.EventHash); err != nil {
				return fmt.Errorf("scan payment event: %w", err)
			}
			ev.Actor = model.ActorType(actor)
			out = append(out, ev)
		}
		return rows.Err()
	})
	return out, err
}

// ListRange returns one page of the chain restricted to from <= event_time < to.
func (r *EventLogRepo) ListRange(ctx context.Context, from, to time.Time, limit, offset int) ([]model.PaymentEvent, error) {
	var out []model.PaymentEvent
	err := pgshared.WithTenantTransaction(ctx, r.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			SELECT id, tenant_id, payment_id, ingestion_id, event_type, event_time,
				actor, actor_id, correlation_id, data, prev_event_hash, event_hash
			FROM payment_events
			WHERE event_time >= $1 AND event_time < $2
			ORDER BY event_time, id
			LIMIT $3 OFFSET $4`, from, to, limit, offset)
		if err != nil {
			return fmt.Errorf("list payment events in range: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var ev model.PaymentEvent
			var actor string
			if err := rows.Scan(&ev.ID, &ev.TenantID, &ev.PaymentID, &ev.IngestionID,
				&ev.EventType, &ev.EventTime, &actor, &ev.ActorID, &ev.CorrelationID,
				&ev.Data, &ev.PrevEventHash, &ev.EventHash); err != nil {
				return fmt.Errorf("scan payment event: %w", err)
			}
			ev.Actor = model.ActorType(actor)
			out = append(out, ev)
		}
		return rows.Err()
	})
	return out, err
}

// CountByTenant returns the chain length.
func (r *EventLogRepo) CountByTenant(ctx context.Context) (int, error) {
	var count int
	err := pgshared.WithTenantTransaction(ctx, r.pool, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, `SELECT count(*) FROM payment_events`).Scan(&count)
	})
	return count, err
}

// LastHash returns the newest hash, or the genesis hash for an empty chain.
func (r *EventLogRepo) LastHash(ctx context.Context) (string, error) {
	hash := service.GenesisHash
	err := pgshared.WithTenantTransaction(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			SELECT event_hash FROM payment_events
			ORDER BY event_time DESC, id DESC LIMIT 1`).Scan(&hash)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return err
	})
	return hash, err
}
