package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Querier is the query surface repositories run on. Both *pgxpool.Pool
// and pgx.Tx satisfy it, so the same repository code serves plain calls
// and transactional ones.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// NewDB creates a new PostgreSQL connection pool.
func NewDB(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}

// RunMigrations executes the initial schema migration. The partial unique
// indexes on provider ids serialize concurrent webhook writes per user.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	query := `
		CREATE TABLE IF NOT EXISTS users (
			id                       TEXT PRIMARY KEY,
			email                    TEXT NOT NULL UNIQUE,
			external_subject         TEXT,
			display_name             TEXT,
			subscription_tier        TEXT NOT NULL DEFAULT 'trial',
			subscription_status      TEXT NOT NULL DEFAULT 'active',
			subscription_expires_at  TIMESTAMPTZ,
			subscription_auto_renew  BOOLEAN NOT NULL DEFAULT FALSE,
			provider_customer_id     TEXT,
			provider_subscription_id TEXT,
			is_active                BOOLEAN NOT NULL DEFAULT TRUE,
			created_at               TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at               TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			last_login_at            TIMESTAMPTZ
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_users_provider_customer
			ON users(provider_customer_id) WHERE provider_customer_id IS NOT NULL;
		CREATE UNIQUE INDEX IF NOT EXISTS idx_users_provider_subscription
			ON users(provider_subscription_id) WHERE provider_subscription_id IS NOT NULL;

		CREATE TABLE IF NOT EXISTS payments (
			id                   TEXT PRIMARY KEY,
			user_id              TEXT NOT NULL REFERENCES users(id),
			provider_payment_id  TEXT,
			provider_order_id    TEXT,
			amount_minor         BIGINT NOT NULL DEFAULT 0,
			currency             TEXT NOT NULL DEFAULT 'INR',
			status               TEXT NOT NULL DEFAULT 'pending',
			product_type         TEXT NOT NULL DEFAULT 'one_time',
			processing_fee_minor BIGINT NOT NULL DEFAULT 0,
			created_at           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			completed_at         TIMESTAMPTZ
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_payments_provider_payment
			ON payments(provider_payment_id) WHERE provider_payment_id IS NOT NULL;
		CREATE UNIQUE INDEX IF NOT EXISTS idx_payments_provider_order
			ON payments(provider_order_id) WHERE provider_order_id IS NOT NULL;
		CREATE INDEX IF NOT EXISTS idx_payments_user_id ON payments(user_id);

		CREATE TABLE IF NOT EXISTS webhook_events (
			provider_event_id TEXT PRIMARY KEY,
			event_kind        TEXT NOT NULL,
			received_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			processed         BOOLEAN NOT NULL DEFAULT TRUE
		);
	`
	_, err := pool.Exec(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}
