package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cschwartz85032/loanserve-sub001/internal/domain/model"
	"github.com/cschwartz85032/loanserve-sub001/internal/domain/port"
	"github.com/cschwartz85032/loanserve-sub001/internal/domain/service"
	"github.com/cschwartz85032/loanserve-sub001/internal/domain/valueobject"
	"github.com/cschwartz85032/loanserve-sub001/pkg/money"
	pgshared "github.com/cschwartz85032/loanserve-sub001/pkg/postgres"
)

const paymentColumns = `id, tenant_id, loan_id, channel, idempotency_key, amount_cents, currency,
	value_date, status, alloc_fees, alloc_interest, alloc_principal, alloc_escrow, alloc_suspense,
	reference, bank_transfer_id, check_number, correlation_id, requires_review, risk_score,
	version, created_at, updated_at`

// PaymentStore persists payments with their ledger lines, outbox rows and
// chained audit event in a single transaction.
type PaymentStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPaymentStore creates the store.
func NewPaymentStore(pool *pgxpool.Pool, logger *slog.Logger) *PaymentStore {
	return &PaymentStore{pool: pool, logger: logger}
}

var _ port.PaymentRepository = (*PaymentStore)(nil)
var _ port.PostingStore = (*PaymentStore)(nil)

// FindByID loads one payment.
func (s *PaymentStore) FindByID(ctx context.Context, id uuid.UUID) (model.Payment, error) {
	var p model.Payment
	err := pgshared.WithTenantTransaction(ctx, s.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id)
		var scanErr error
		p, scanErr = scanPayment(row)
		return scanErr
	})
	return p, err
}

// FindByIdempotencyKey loads the payment accepted under the given key.
func (s *PaymentStore) FindByIdempotencyKey(ctx context.Context, key string) (model.Payment, error) {
	var p model.Payment
	err := pgshared.WithTenantTransaction(ctx, s.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE idempotency_key = $1`, key)
		var scanErr error
		p, scanErr = scanPayment(row)
		return scanErr
	})
	return p, err
}

// Post writes the whole bundle atomically. A concurrent insert of the same
// idempotency key aborts this transaction; the winner's row is refetched and
// returned with IsNew=false.
func (s *PaymentStore) Post(ctx context.Context, bundle port.PostingBundle) (port.PostingResult, error) {
	p := bundle.Payment

	err := pgshared.WithTenantTransaction(ctx, s.pool, func(tx pgx.Tx) error {
		if err := lockTenantChain(ctx, tx, p.TenantID()); err != nil {
			return err
		}
		if err := insertPayment(ctx, tx, p); err != nil {
			return err
		}
		if err := insertLedgerEntries(ctx, tx, bundle.Entries); err != nil {
			return err
		}
		if err := insertOutboxRows(ctx, tx, p); err != nil {
			return err
		}
		paymentID := p.ID()
		return appendChainEvent(ctx, tx, chainAppend{
			tenantID:      p.TenantID(),
			paymentID:     &paymentID,
			eventType:     bundle.EventType,
			actor:         bundle.Actor,
			actorID:       bundle.ActorID,
			correlationID: p.CorrelationID(),
			data:          bundle.EventData,
		})
	})
	if err != nil {
		if pgshared.IsUniqueViolation(err, "payments_tenant_idempotency_key") {
			winner, ferr := s.FindByIdempotencyKey(ctx, p.IdempotencyKey())
			if ferr != nil {
				return port.PostingResult{}, fmt.Errorf("refetch after idempotency conflict: %w", ferr)
			}
			s.logger.Info("idempotency conflict resolved to existing payment",
				"payment_id", winner.ID(), "idempotency_key", p.IdempotencyKey())
			return port.PostingResult{PaymentID: winner.ID(), IsNew: false, Status: winner.Status()}, nil
		}
		return port.PostingResult{}, err
	}

	return port.PostingResult{PaymentID: p.ID(), IsNew: true, Status: p.Status()}, nil
}

// Transition persists a status change with its ledger lines, outbox rows and
// chained audit event.
func (s *PaymentStore) Transition(ctx context.Context, p model.Payment, entries model.EntrySet, eventType string, eventData []byte, actor model.ActorType, actorID string) error {
	return pgshared.WithTenantTransaction(ctx, s.pool, func(tx pgx.Tx) error {
		if err := lockTenantChain(ctx, tx, p.TenantID()); err != nil {
			return err
		}

		tag, err := tx.Exec(ctx, `
			UPDATE payments SET status = $1, version = $2, updated_at = $3
			WHERE id = $4 AND version = $5`,
			string(p.Status()), p.Version(), p.UpdatedAt(), p.ID(), p.Version()-1)
		if err != nil {
			return fmt.Errorf("update payment %s: %w", p.ID(), err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("payment %s: concurrent modification", p.ID())
		}

		if err := insertLedgerEntries(ctx, tx, entries); err != nil {
			return err
		}
		if err := insertOutboxRows(ctx, tx, p); err != nil {
			return err
		}
		paymentID := p.ID()
		return appendChainEvent(ctx, tx, chainAppend{
			tenantID:      p.TenantID(),
			paymentID:     &paymentID,
			eventType:     eventType,
			actor:         actor,
			actorID:       actorID,
			correlationID: p.CorrelationID(),
			data:          eventData,
		})
	})
}

// lockTenantChain serializes chain appends per tenant for the duration of the
// transaction. Without it two concurrent posts could both read the same head
// hash and fork the chain.
func lockTenantChain(ctx context.Context, tx pgx.Tx, tenantID uuid.UUID) error {
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, tenantID.String()); err != nil {
		return fmt.Errorf("acquire chain lock: %w", err)
	}
	return nil
}

type chainAppend struct {
	tenantID      uuid.UUID
	paymentID     *uuid.UUID
	eventType     string
	actor         model.ActorType
	actorID       string
	correlationID string
	data          []byte
}

func appendChainEvent(ctx context.Context, tx pgx.Tx, a chainAppend) error {
	prevHash := service.GenesisHash
	err := tx.QueryRow(ctx, `
		SELECT event_hash FROM payment_events
		ORDER BY event_time DESC, id DESC LIMIT 1`).Scan(&prevHash)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("read chain head: %w", err)
	}

	eventTime := time.Now().UTC()
	hash, err := service.ComputeEventHash(prevHash, a.data, a.correlationID, eventTime)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO payment_events (id, tenant_id, payment_id, event_type, event_time,
			actor, actor_id, correlation_id, data, prev_event_hash, event_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		uuid.New(), a.tenantID, a.paymentID, a.eventType, eventTime,
		string(a.actor), a.actorID, a.correlationID, a.data, prevHash, hash)
	if err != nil {
		return fmt.Errorf("append chain event: %w", err)
	}
	return nil
}

func insertPayment(ctx context.Context, tx pgx.Tx, p model.Payment) error {
	alloc := p.Allocation()
	_, err := tx.Exec(ctx, `
		INSERT INTO payments (`+paymentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, $21, $22, $23)`,
		p.ID(), p.TenantID(), p.LoanID(), string(p.Channel()), p.IdempotencyKey(),
		int64(p.Amount()), p.Currency(), p.ValueDate(), string(p.Status()),
		int64(alloc.Fees), int64(alloc.Interest), int64(alloc.Principal),
		int64(alloc.Escrow), int64(alloc.Suspense),
		p.Reference(), p.BankTransferID(), p.CheckNumber(), p.CorrelationID(),
		p.RequiresReview(), p.RiskScore(), p.Version(), p.CreatedAt(), p.UpdatedAt())
	if err != nil {
		return fmt.Errorf("insert payment %s: %w", p.ID(), err)
	}
	return nil
}

func insertLedgerEntries(ctx context.Context, tx pgx.Tx, set model.EntrySet) error {
	if err := set.Validate(); err != nil {
		return err
	}
	for _, line := range set.Lines {
		_, err := tx.Exec(ctx, `
			INSERT INTO ledger_entries (id, tenant_id, payment_id, entry_date, account_type,
				account_code, debit_cents, credit_cents, description, correlation_id, metadata)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			line.ID, line.TenantID, line.PaymentID, line.EntryDate,
			string(line.AccountType), string(line.AccountCode),
			int64(line.DebitCents), int64(line.CreditCents),
			line.Description, line.CorrelationID, line.Metadata)
		if err != nil {
			return fmt.Errorf("insert ledger entry %s: %w", line.ID, err)
		}
	}
	return nil
}

func insertOutboxRows(ctx context.Context, tx pgx.Tx, p model.Payment) error {
	for _, ev := range p.DomainEvents() {
		_, err := tx.Exec(ctx, `
			INSERT INTO outbox (id, tenant_id, aggregate_id, aggregate_type, event_type,
				correlation_id, payload, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			ev.EventID(), ev.TenantID(), ev.AggregateID(), ev.AggregateType(),
			ev.EventType(), ev.CorrelationID(), ev.Payload(), ev.OccurredAt())
		if err != nil {
			return fmt.Errorf("insert outbox row %s: %w", ev.EventID(), err)
		}
	}
	return nil
}

func scanPayment(row pgx.Row) (model.Payment, error) {
	var (
		id, tenantID                                       uuid.UUID
		loanID, channel, idempotencyKey, currency, status  string
		amount, fees, interest, principal, escrow, susp    int64
		valueDate, createdAt, updatedAt                    time.Time
		reference, bankTransferID, checkNumber, corrID     string
		requiresReview                                     bool
		riskScore, version                                 int
	)
	err := row.Scan(&id, &tenantID, &loanID, &channel, &idempotencyKey, &amount, &currency,
		&valueDate, &status, &fees, &interest, &principal, &escrow, &susp,
		&reference, &bankTransferID, &checkNumber, &corrID, &requiresReview, &riskScore,
		&version, &createdAt, &updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Payment{}, port.ErrNotFound
	}
	if err != nil {
		return model.Payment{}, fmt.Errorf("scan payment: %w", err)
	}

	return model.ReconstructPayment(
		id, tenantID, loanID,
		valueobject.Channel(channel), idempotencyKey,
		money.Cents(amount), currency, valueDate,
		valueobject.PaymentStatus(status),
		valueobject.Allocation{
			Fees: money.Cents(fees), Interest: money.Cents(interest), Principal: money.Cents(principal),
			Escrow: money.Cents(escrow), Suspense: money.Cents(susp),
		},
		reference, bankTransferID, checkNumber, corrID,
		requiresReview, riskScore, version, createdAt, updatedAt), nil
}
