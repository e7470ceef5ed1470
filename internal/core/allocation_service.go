package core

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// AllocationResult is what the payment-clearing endpoint returns: the sales
// the payment touched and any surplus left over.
type AllocationResult struct {
	CustomerKey string          `json:"customer_key"`
	Scope       Scope           `json:"scope"`
	Payment     decimal.Decimal `json:"payment"`
	Processed   []Allocation    `json:"processed"`
	Remainder   decimal.Decimal `json:"remainder"`
}

// PaymentAllocator distributes an incoming customer payment across that
// customer's outstanding sales, oldest first, in a single all-or-nothing
// transaction. Every applied amount is recognized through
// LedgerService.ApplyPayment, so sale rows and account balances move
// together.
type PaymentAllocator struct {
	pool   *pgxpool.Pool
	ledger *LedgerService
}

func NewPaymentAllocator(pool *pgxpool.Pool, ledger *LedgerService) *PaymentAllocator {
	return &PaymentAllocator{pool: pool, ledger: ledger}
}

// Allocate clears a customer's outstanding sales with the given payment.
// A customer with nothing outstanding gets an empty plan and the full
// remainder back; that is not an error.
func (p *PaymentAllocator) Allocate(ctx context.Context, customerKey string, scope Scope, payment decimal.Decimal, method, createdBy string) (*AllocationResult, error) {
	if payment.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("payment must be positive, got %s", payment.StringFixed(2))
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin allocation: %w", err)
	}
	defer tx.Rollback(ctx)

	// Lock the customer's open sales up front so a concurrent allocation or
	// direct payment for the same customer waits rather than double-applies.
	rows, err := tx.Query(ctx, `
		SELECT id, invoice_number, credit_amount
		FROM sales
		WHERE customer_key = $1
		  AND scope_kind = $2 AND scope_id = $3
		  AND payment_status IN ('PENDING', 'PARTIAL')
		  AND credit_amount > 0
		ORDER BY created_at, id
		FOR UPDATE
	`, customerKey, scope.Kind, scope.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to select open sales: %v", ErrAllocationFailed, err)
	}

	var open []OpenSale
	for rows.Next() {
		var s OpenSale
		if err := rows.Scan(&s.SaleID, &s.InvoiceNumber, &s.Credit); err != nil {
			rows.Close()
			return nil, fmt.Errorf("%w: failed to scan open sale: %v", ErrAllocationFailed, err)
		}
		open = append(open, s)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: error iterating open sales: %v", ErrAllocationFailed, err)
	}

	plan := PlanAllocation(open, payment)

	for _, a := range plan.Allocations {
		if _, err := p.ledger.ApplyPayment(ctx, tx, a.SaleID, a.Applied, method, createdBy); err != nil {
			return nil, fmt.Errorf("%w: sale %s: %v", ErrAllocationFailed, a.InvoiceNumber, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("%w: commit: %v", ErrAllocationFailed, err)
	}

	return &AllocationResult{
		CustomerKey: customerKey,
		Scope:       scope,
		Payment:     payment,
		Processed:   plan.Allocations,
		Remainder:   plan.Remainder,
	}, nil
}

// OpenSales returns the customer's outstanding sales in allocation order,
// for display ahead of a clearing request.
func (p *PaymentAllocator) OpenSales(ctx context.Context, customerKey string, scope Scope) ([]Sale, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, scope_kind, scope_id, invoice_number, customer_key, salesperson_id,
		       total, payment_amount, credit_amount, running_balance, payment_status,
		       created_by, created_at
		FROM sales
		WHERE customer_key = $1
		  AND scope_kind = $2 AND scope_id = $3
		  AND payment_status IN ('PENDING', 'PARTIAL')
		  AND credit_amount > 0
		ORDER BY created_at, id
	`, customerKey, scope.Kind, scope.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to query open sales: %w", err)
	}
	defer rows.Close()

	var sales []Sale
	for rows.Next() {
		var s Sale
		if err := rows.Scan(
			&s.ID, &s.Scope.Kind, &s.Scope.ID, &s.InvoiceNumber, &s.CustomerKey, &s.SalespersonID,
			&s.Total, &s.PaymentAmount, &s.CreditAmount, &s.RunningBalance, &s.PaymentStatus,
			&s.CreatedBy, &s.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan sale: %w", err)
		}
		sales = append(sales, s)
	}
	return sales, nil
}
