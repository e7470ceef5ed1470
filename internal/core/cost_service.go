package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// CostProvider supplies per-item unit costs for COGS entries. The financial
// engine never mutates stock; this is its only view into inventory.
type CostProvider interface {
	// UnitCost returns the cost for a product in a scope. ok is false when
	// the product has no stock record there (a service item — no COGS leg).
	UnitCost(ctx context.Context, tx pgx.Tx, scope Scope, productID int) (cost decimal.Decimal, ok bool, err error)
}

// inventoryCost reads unit costs from the inventory_items table maintained by
// the stock system.
type inventoryCost struct{}

func NewInventoryCostProvider() CostProvider {
	return inventoryCost{}
}

func (inventoryCost) UnitCost(ctx context.Context, tx pgx.Tx, scope Scope, productID int) (decimal.Decimal, bool, error) {
	var cost decimal.Decimal
	err := tx.QueryRow(ctx, `
		SELECT unit_cost FROM inventory_items
		WHERE product_id = $1 AND scope_kind = $2 AND scope_id = $3
	`, productID, scope.Kind, scope.ID).Scan(&cost)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, false, nil
		}
		return decimal.Zero, false, fmt.Errorf("failed to read unit cost for product %d in %s: %w", productID, scope, err)
	}
	return cost, true, nil
}
