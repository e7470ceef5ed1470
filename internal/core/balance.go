package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// BalanceTracker maintains each customer's running balance per scope.
// The balance mirrors the most recent sale's running_balance; it advances
// with an atomic upsert-increment inside the sale transaction, so two
// concurrent sales for the same customer cannot compute against the same
// prior balance.
type BalanceTracker struct {
	pool *pgxpool.Pool
}

func NewBalanceTracker(pool *pgxpool.Pool) *BalanceTracker {
	return &BalanceTracker{pool: pool}
}

// PriorBalance returns the customer's balance as of their latest sale in the
// scope, or zero when they have none.
func (t *BalanceTracker) PriorBalance(ctx context.Context, customerKey string, scope Scope) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := t.pool.QueryRow(ctx, `
		SELECT balance FROM customer_balances
		WHERE customer_key = $1 AND scope_kind = $2 AND scope_id = $3
	`, customerKey, scope.Kind, scope.ID).Scan(&balance)
	if err == nil {
		return balance, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, fmt.Errorf("failed to read balance for %s in %s: %w", customerKey, scope, err)
	}
	return latestSaleBalance(ctx, t.pool, customerKey, scope)
}

// Advance moves the customer's balance by delta within the caller's
// transaction and returns the new balance. The first sale for a
// (customer, scope) pair seeds the row from the latest stored sale balance,
// which keeps chains intact across data that predates the balance table.
func (t *BalanceTracker) Advance(ctx context.Context, tx pgx.Tx, customerKey string, scope Scope, delta decimal.Decimal) (decimal.Decimal, error) {
	seed, err := latestSaleBalance(ctx, tx, customerKey, scope)
	if err != nil {
		return decimal.Zero, err
	}

	// The ON CONFLICT branch takes a row lock; concurrent sales for the same
	// customer serialize here and each sees the balance left by the previous.
	var balance decimal.Decimal
	err = tx.QueryRow(ctx, `
		INSERT INTO customer_balances (customer_key, scope_kind, scope_id, balance)
		VALUES ($1, $2, $3, $4 + $5)
		ON CONFLICT (customer_key, scope_kind, scope_id)
		DO UPDATE SET balance = customer_balances.balance + $5, updated_at = NOW()
		RETURNING balance
	`, customerKey, scope.Kind, scope.ID, seed, delta).Scan(&balance)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to advance balance for %s in %s: %w", customerKey, scope, err)
	}
	return balance, nil
}

// rowQuerier is satisfied by both *pgxpool.Pool and pgx.Tx.
type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func latestSaleBalance(ctx context.Context, q rowQuerier, customerKey string, scope Scope) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := q.QueryRow(ctx, `
		SELECT running_balance FROM sales
		WHERE customer_key = $1 AND scope_kind = $2 AND scope_id = $3
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, customerKey, scope.Kind, scope.ID).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, nil
		}
		return decimal.Zero, fmt.Errorf("failed to read latest sale balance for %s in %s: %w", customerKey, scope, err)
	}
	return balance, nil
}
