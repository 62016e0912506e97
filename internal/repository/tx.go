package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// InTx runs fn with repositories bound to a single database transaction.
// The transaction commits only when fn returns nil; any error rolls back
// every write inside it, so a failed webhook delivery leaves neither its
// dedup row nor a partial state change behind.
func InTx(ctx context.Context, pool *pgxpool.Pool, fn func(users *UserRepository, payments *PaymentRepository) error) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&UserRepository{db: tx}, &PaymentRepository{db: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
