package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cschwartz85032/loanserve-sub001/internal/domain/port"
	pgshared "github.com/cschwartz85032/loanserve-sub001/pkg/postgres"
)

// ProcessedMessageRepo is the consumer dedup store.
type ProcessedMessageRepo struct {
	pool *pgxpool.Pool
}

// NewProcessedMessageRepo creates the repository.
func NewProcessedMessageRepo(pool *pgxpool.Pool) *ProcessedMessageRepo {
	return &ProcessedMessageRepo{pool: pool}
}

var _ port.ProcessedMessageRepository = (*ProcessedMessageRepo)(nil)

// Seen reports whether the (consumer, message) pair was already recorded.
// A redelivered message whose first attempt failed before Record has no row
// here and is processed again.
func (r *ProcessedMessageRepo) Seen(ctx context.Context, consumer, messageID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM processed_messages WHERE consumer = $1 AND message_id = $2
		)`, consumer, messageID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check processed message: %w", err)
	}
	return exists, nil
}

// Record inserts the (consumer, message) pair after the handler's side
// effects committed. firstTime=false means a concurrent delivery won the
// race; the caller acks without treating that as an error.
func (r *ProcessedMessageRepo) Record(ctx context.Context, consumer, messageID string, now time.Time) (bool, error) {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO processed_messages (consumer, message_id, processed_at)
		VALUES ($1, $2, $3)`, consumer, messageID, now)
	if err != nil {
		if pgshared.IsUniqueViolation(err, "") {
			return false, nil
		}
		return false, fmt.Errorf("record processed message: %w", err)
	}
	return true, nil
}
