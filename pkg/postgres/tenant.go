package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNoTenant is returned when a tenant-scoped operation is attempted without
// a tenant id on the context.
var ErrNoTenant = errors.New("postgres: no tenant id in context")

type tenantKey struct{}

// WithTenant returns a context carrying the tenant id for scoped sessions.
func WithTenant(ctx context.Context, tenantID uuid.UUID) context.Context {
	return context.WithValue(ctx, tenantKey{}, tenantID)
}

// TenantFrom extracts the tenant id from the context.
func TenantFrom(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(tenantKey{}).(uuid.UUID)
	return id, ok
}

// RequireTenant asserts that a well-formed tenant id is present on the
// context. Every tenant-facing service entry point calls this first.
func RequireTenant(ctx context.Context) (uuid.UUID, error) {
	id, ok := TenantFrom(ctx)
	if !ok || id == uuid.Nil {
		return uuid.Nil, ErrNoTenant
	}
	return id, nil
}

// WithTenantTransaction executes fn inside a transaction whose first statement
// sets the row-level-security session variable app.tenant_id. All RLS policies
// key off that variable, so every statement fn issues is invisibly constrained
// to the tenant's rows.
func WithTenantTransaction(ctx context.Context, pool *pgxpool.Pool, fn func(tx pgx.Tx) error) error {
	tenantID, err := RequireTenant(ctx)
	if err != nil {
		return err
	}

	return WithTransaction(ctx, pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT set_config('app.tenant_id', $1, true)`, tenantID.String()); err != nil {
			return fmt.Errorf("postgres: set tenant context: %w", err)
		}
		return fn(tx)
	})
}

// WithAdminTransaction executes fn without tenant scoping. It exists for
// maintenance tasks only and must not be reachable from request handlers.
// The reason is logged so the audit trail records why RLS was bypassed.
func WithAdminTransaction(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger, reason string, fn func(tx pgx.Tx) error) error {
	if reason == "" {
		return errors.New("postgres: admin transaction requires a reason")
	}
	logger.Warn("admin database session", "reason", reason)
	return WithTransaction(ctx, pool, fn)
}
