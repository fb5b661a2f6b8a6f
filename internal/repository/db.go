package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

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

// isUniqueViolation reports whether err is a Postgres unique-constraint
// rejection (SQLSTATE 23505). The uniqueness constraints are the only
// concurrency-control mechanism in this service, so every insert path
// checks this and maps it to domain.ErrAlreadyExists.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// RunMigrations executes the initial schema migration.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	query := `
		CREATE TABLE IF NOT EXISTS users (
			id                 TEXT PRIMARY KEY,
			email              TEXT NOT NULL UNIQUE,
			password           TEXT NOT NULL,
			role               TEXT NOT NULL DEFAULT 'user',
			stripe_customer_id TEXT,
			created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);

		CREATE TABLE IF NOT EXISTS subscriptions (
			id                       TEXT PRIMARY KEY,
			user_id                  TEXT NOT NULL REFERENCES users(id),
			plan                     TEXT NOT NULL,
			status                   TEXT NOT NULL,
			provider_subscription_id TEXT,
			current_period_start     TIMESTAMPTZ NOT NULL,
			current_period_end       TIMESTAMPTZ NOT NULL,
			trial_start              TIMESTAMPTZ,
			trial_end                TIMESTAMPTZ,
			cancel_at_period_end     BOOLEAN NOT NULL DEFAULT FALSE,
			cancelled_at             TIMESTAMPTZ,
			created_at               TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at               TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		-- at most one non-cancelled subscription per user
		CREATE UNIQUE INDEX IF NOT EXISTS uq_subscriptions_user_live
			ON subscriptions(user_id) WHERE status <> 'cancelled';
		CREATE INDEX IF NOT EXISTS idx_subscriptions_provider
			ON subscriptions(provider_subscription_id);

		CREATE TABLE IF NOT EXISTS payments (
			id                   TEXT PRIMARY KEY,
			user_id              TEXT NOT NULL REFERENCES users(id),
			amount               BIGINT NOT NULL,
			currency             TEXT NOT NULL,
			status               TEXT NOT NULL,
			type                 TEXT NOT NULL,
			provider_payment_id  TEXT NOT NULL,
			provider_invoice_id  TEXT,
			subscription_id      TEXT,
			paid_at              TIMESTAMPTZ,
			failure_kind         TEXT,
			failure_code         TEXT,
			failure_decline_code TEXT,
			failure_message      TEXT,
			created_at           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at           TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE UNIQUE INDEX IF NOT EXISTS uq_payments_provider_payment
			ON payments(provider_payment_id);
		CREATE UNIQUE INDEX IF NOT EXISTS uq_payments_provider_invoice
			ON payments(provider_invoice_id) WHERE provider_invoice_id IS NOT NULL;
		CREATE INDEX IF NOT EXISTS idx_payments_user_id ON payments(user_id);
	`
	_, err := pool.Exec(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}
