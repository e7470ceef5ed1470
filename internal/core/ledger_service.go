package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// LedgerService is the account store and double-entry recorder. Accounts are
// created lazily per scope; every posted entry adjusts the account balance in
// the same transaction. The sign convention is deliberately simple: DEBIT
// increases the balance, CREDIT decreases it. That covers the account kinds
// this system posts to (asset, expense, revenue via the credit side); it is
// not full GAAP sign handling and must become kind-aware before liability or
// equity accounts enter the sale path.
type LedgerService struct {
	pool *pgxpool.Pool
}

func NewLedgerService(pool *pgxpool.Pool) *LedgerService {
	return &LedgerService{pool: pool}
}

// GetOrCreateAccount resolves an account for (scope, name), creating it with
// a zero balance on first use.
func (l *LedgerService) GetOrCreateAccount(ctx context.Context, tx pgx.Tx, scope Scope, name string, kind AccountKind) (*Account, error) {
	a := Account{Scope: scope, Name: name, Kind: kind}
	err := tx.QueryRow(ctx, `
		INSERT INTO accounts (scope_kind, scope_id, name, kind)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (scope_kind, scope_id, name) DO UPDATE SET status = accounts.status
		RETURNING id, kind, balance, status
	`, scope.Kind, scope.ID, name, kind).Scan(&a.ID, &a.Kind, &a.Balance, &a.Status)
	if err != nil {
		return nil, fmt.Errorf("failed to get or create account %q for scope %s: %w", name, scope, err)
	}
	return &a, nil
}

// Post appends a ledger entry and adjusts the account balance atomically.
// The UPDATE is a relative increment, so concurrent posts to the same account
// serialize on the row without a prior SELECT FOR UPDATE.
func (l *LedgerService) Post(ctx context.Context, tx pgx.Tx, accountID int, direction EntryDirection, amount decimal.Decimal, description string, saleID *int, createdBy string) (*LedgerEntry, error) {
	if amount.IsNegative() {
		return nil, fmt.Errorf("entry amount cannot be negative: %s", amount)
	}

	e := LedgerEntry{
		AccountID:       accountID,
		Direction:       direction,
		Amount:          amount,
		Description:     description,
		ReferenceSaleID: saleID,
		CreatedBy:       createdBy,
	}
	err := tx.QueryRow(ctx, `
		INSERT INTO ledger_entries (account_id, direction, amount, description, reference_sale_id, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`, accountID, direction, amount, description, saleID, createdBy).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert ledger entry: %w", err)
	}

	delta := amount
	if direction == Credit {
		delta = amount.Neg()
	}
	if _, err := tx.Exec(ctx,
		"UPDATE accounts SET balance = balance + $1 WHERE id = $2",
		delta, accountID,
	); err != nil {
		return nil, fmt.Errorf("failed to adjust balance of account %d: %w", accountID, err)
	}

	return &e, nil
}

// entryLeg is one pending leg of a balanced posting.
type entryLeg struct {
	accountName string
	accountKind AccountKind
	direction   EntryDirection
	amount      decimal.Decimal
	description string
}

// postBalanced posts a set of legs for one sale and asserts that total debits
// equal total credits before returning. An imbalance aborts the transaction.
func (l *LedgerService) postBalanced(ctx context.Context, tx pgx.Tx, scope Scope, legs []entryLeg, saleID *int, createdBy string) error {
	debits := decimal.Zero
	credits := decimal.Zero

	for _, leg := range legs {
		account, err := l.GetOrCreateAccount(ctx, tx, scope, leg.accountName, leg.accountKind)
		if err != nil {
			return err
		}
		if _, err := l.Post(ctx, tx, account.ID, leg.direction, leg.amount, leg.description, saleID, createdBy); err != nil {
			return err
		}
		if leg.direction == Debit {
			debits = debits.Add(leg.amount)
		} else {
			credits = credits.Add(leg.amount)
		}
	}

	if !debits.Equal(credits) {
		return fmt.Errorf("%w: debits %s != credits %s",
			ErrLedgerImbalance, debits.StringFixed(2), credits.StringFixed(2))
	}
	return nil
}

// RecordSale posts the double entry for a completed sale within the caller's
// transaction:
//
//	DR Cash                payment (when > 0)
//	DR Accounts Receivable credit  (when > 0)
//	CR Sales Revenue       total
//	DR COGS / CR Inventory cost    (when cost data available)
//
// The sale's split must already satisfy payment + credit == total exactly;
// RecordSale verifies the resulting legs balance and aborts otherwise.
func (l *LedgerService) RecordSale(ctx context.Context, tx pgx.Tx, sale *Sale, costTotal decimal.Decimal) error {
	ref := fmt.Sprintf("sale %s", sale.InvoiceNumber)

	var legs []entryLeg
	if sale.PaymentAmount.GreaterThan(decimal.Zero) {
		legs = append(legs, entryLeg{AccountCash, Asset, Debit, sale.PaymentAmount, "Cash received for " + ref})
	}
	if sale.CreditAmount.GreaterThan(decimal.Zero) {
		legs = append(legs, entryLeg{AccountReceivable, Asset, Debit, sale.CreditAmount, "Credit extended for " + ref})
	}
	legs = append(legs, entryLeg{AccountRevenue, Revenue, Credit, sale.Total, "Revenue for " + ref})
	if sale.CreditAmount.IsNegative() {
		// Payment exceeds total: the surplus settles prior receivables.
		legs = append(legs, entryLeg{AccountReceivable, Asset, Credit, sale.CreditAmount.Neg(), "Advance credit applied on " + ref})
	}

	// The cash/credit legs only balance revenue when the split is exact.
	if !sale.PaymentAmount.Add(sale.CreditAmount).Equal(sale.Total) {
		return fmt.Errorf("%w: sale %s split %s + %s != %s",
			ErrLedgerImbalance, sale.InvoiceNumber,
			sale.PaymentAmount.StringFixed(2), sale.CreditAmount.StringFixed(2), sale.Total.StringFixed(2))
	}

	if costTotal.GreaterThan(decimal.Zero) {
		legs = append(legs,
			entryLeg{AccountCOGS, Expense, Debit, costTotal, "Cost of goods for " + ref},
			entryLeg{AccountInventory, Asset, Credit, costTotal, "Inventory issued for " + ref},
		)
	}

	saleID := sale.ID
	return l.postBalanced(ctx, tx, sale.Scope, legs, &saleID, sale.CreatedBy)
}

// ApplyPayment is the single payment-recognition path: it posts
// DR Cash / CR Accounts Receivable and shrinks the sale's credit in one step,
// so account balances and sale running balances cannot diverge. Both the
// payment allocator and the direct partial-payment endpoint route through it.
func (l *LedgerService) ApplyPayment(ctx context.Context, tx pgx.Tx, saleID int, amount decimal.Decimal, method, createdBy string) (*Sale, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("payment amount must be positive, got %s", amount)
	}

	var sale Sale
	err := tx.QueryRow(ctx, `
		SELECT id, scope_kind, scope_id, invoice_number, customer_key,
		       total, payment_amount, credit_amount, payment_status
		FROM sales
		WHERE id = $1
		FOR UPDATE
	`, saleID).Scan(
		&sale.ID, &sale.Scope.Kind, &sale.Scope.ID, &sale.InvoiceNumber, &sale.CustomerKey,
		&sale.Total, &sale.PaymentAmount, &sale.CreditAmount, &sale.PaymentStatus,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: id %d", ErrSaleNotFound, saleID)
		}
		return nil, fmt.Errorf("failed to lock sale %d: %w", saleID, err)
	}

	if amount.Sub(sale.CreditAmount).GreaterThanOrEqual(amountEpsilon) {
		return nil, fmt.Errorf("payment %s exceeds outstanding credit %s on sale %s",
			amount.StringFixed(2), sale.CreditAmount.StringFixed(2), sale.InvoiceNumber)
	}

	sale.PaymentAmount = sale.PaymentAmount.Add(amount)
	sale.CreditAmount = sale.CreditAmount.Sub(amount)
	if isZeroAmount(sale.CreditAmount) || sale.CreditAmount.IsNegative() {
		sale.PaymentStatus = PaymentCompleted
	} else {
		sale.PaymentStatus = PaymentPartial
	}

	if _, err := tx.Exec(ctx, `
		UPDATE sales
		SET payment_amount = $1, credit_amount = $2, payment_status = $3
		WHERE id = $4
	`, sale.PaymentAmount, sale.CreditAmount, sale.PaymentStatus, sale.ID); err != nil {
		return nil, fmt.Errorf("failed to update sale %s: %w", sale.InvoiceNumber, err)
	}

	desc := fmt.Sprintf("Payment on sale %s", sale.InvoiceNumber)
	if method != "" {
		desc = fmt.Sprintf("Payment (%s) on sale %s", method, sale.InvoiceNumber)
	}
	legs := []entryLeg{
		{AccountCash, Asset, Debit, amount, desc},
		{AccountReceivable, Asset, Credit, amount, desc},
	}
	if err := l.postBalanced(ctx, tx, sale.Scope, legs, &sale.ID, createdBy); err != nil {
		return nil, err
	}

	return &sale, nil
}

// RecordPartialPayment settles part of a sale outside the allocation flow,
// in its own transaction.
func (l *LedgerService) RecordPartialPayment(ctx context.Context, saleID int, amount decimal.Decimal, method, createdBy string) (*Sale, error) {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	sale, err := l.ApplyPayment(ctx, tx, saleID, amount, method, createdBy)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit partial payment: %w", err)
	}
	return sale, nil
}

// AccountBalances returns the chart of accounts for a scope.
func (l *LedgerService) AccountBalances(ctx context.Context, scope Scope) ([]Account, error) {
	rows, err := l.pool.Query(ctx, `
		SELECT id, scope_kind, scope_id, name, kind, balance, status
		FROM accounts
		WHERE scope_kind = $1 AND scope_id = $2
		ORDER BY name
	`, scope.Kind, scope.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts for scope %s: %w", scope, err)
	}
	defer rows.Close()

	var accounts []Account
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.ID, &a.Scope.Kind, &a.Scope.ID, &a.Name, &a.Kind, &a.Balance, &a.Status); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, a)
	}
	return accounts, nil
}

// EntriesForSale returns the ledger entries referencing a sale, oldest first.
func (l *LedgerService) EntriesForSale(ctx context.Context, saleID int) ([]LedgerEntry, error) {
	rows, err := l.pool.Query(ctx, `
		SELECT id, account_id, direction, amount, description, reference_sale_id, created_by, created_at
		FROM ledger_entries
		WHERE reference_sale_id = $1
		ORDER BY id
	`, saleID)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries for sale %d: %w", saleID, err)
	}
	defer rows.Close()

	var entries []LedgerEntry
	for rows.Next() {
		var e LedgerEntry
		if err := rows.Scan(&e.ID, &e.AccountID, &e.Direction, &e.Amount, &e.Description,
			&e.ReferenceSaleID, &e.CreatedBy, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}
