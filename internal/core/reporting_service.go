package core

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ── Report types ──────────────────────────────────────────────────────────────

// TrialBalanceLine is one account's position in a scope's trial balance.
// Debits and Credits are the gross entry totals; Balance is the stored
// account balance (debit-positive).
type TrialBalanceLine struct {
	AccountID int             `json:"account_id"`
	Name      string          `json:"name"`
	Kind      AccountKind     `json:"kind"`
	Debits    decimal.Decimal `json:"debits"`
	Credits   decimal.Decimal `json:"credits"`
	Balance   decimal.Decimal `json:"balance"`
}

// TrialBalance aggregates a scope's accounts. InBalance is true when total
// debits equal total credits across all entries — the accounting identity the
// recorder enforces per transaction.
type TrialBalance struct {
	Scope        Scope              `json:"scope"`
	Lines        []TrialBalanceLine `json:"lines"`
	TotalDebits  decimal.Decimal    `json:"total_debits"`
	TotalCredits decimal.Decimal    `json:"total_credits"`
	InBalance    bool               `json:"in_balance"`
}

// StatementLine is one sale on a customer's statement of account.
type StatementLine struct {
	SaleID         int             `json:"sale_id"`
	InvoiceNumber  string          `json:"invoice_number"`
	Total          decimal.Decimal `json:"total"`
	PaymentAmount  decimal.Decimal `json:"payment_amount"`
	CreditAmount   decimal.Decimal `json:"credit_amount"`
	RunningBalance decimal.Decimal `json:"running_balance"`
	PaymentStatus  PaymentStatus   `json:"payment_status"`
	CreatedAt      time.Time       `json:"created_at"`
}

// CustomerStatement is the (customer, scope) balance chain in creation order.
// ChainIntact reports whether every stored running balance equals the prior
// one plus that sale's unpaid portion at creation time.
type CustomerStatement struct {
	CustomerKey string          `json:"customer_key"`
	Scope       Scope           `json:"scope"`
	Lines       []StatementLine `json:"lines"`
	Balance     decimal.Decimal `json:"balance"`
	ChainIntact bool            `json:"chain_intact"`
}

// ── Implementation ────────────────────────────────────────────────────────────

// ReportingService provides read-only reporting over accounts and sales.
type ReportingService struct {
	pool *pgxpool.Pool
}

func NewReportingService(pool *pgxpool.Pool) *ReportingService {
	return &ReportingService{pool: pool}
}

// TrialBalance returns per-account entry totals and balances for a scope.
func (s *ReportingService) TrialBalance(ctx context.Context, scope Scope) (*TrialBalance, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT a.id, a.name, a.kind, a.balance,
		       COALESCE(SUM(e.amount) FILTER (WHERE e.direction = 'DEBIT'), 0)  AS debits,
		       COALESCE(SUM(e.amount) FILTER (WHERE e.direction = 'CREDIT'), 0) AS credits
		FROM accounts a
		LEFT JOIN ledger_entries e ON e.account_id = a.id
		WHERE a.scope_kind = $1 AND a.scope_id = $2
		GROUP BY a.id, a.name, a.kind, a.balance
		ORDER BY a.name
	`, scope.Kind, scope.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to query trial balance for %s: %w", scope, err)
	}
	defer rows.Close()

	tb := TrialBalance{Scope: scope, TotalDebits: decimal.Zero, TotalCredits: decimal.Zero}
	for rows.Next() {
		var l TrialBalanceLine
		if err := rows.Scan(&l.AccountID, &l.Name, &l.Kind, &l.Balance, &l.Debits, &l.Credits); err != nil {
			return nil, fmt.Errorf("failed to scan trial balance line: %w", err)
		}
		tb.Lines = append(tb.Lines, l)
		tb.TotalDebits = tb.TotalDebits.Add(l.Debits)
		tb.TotalCredits = tb.TotalCredits.Add(l.Credits)
	}
	tb.InBalance = tb.TotalDebits.Equal(tb.TotalCredits)
	return &tb, nil
}

// CustomerStatement returns the customer's sales for a scope in creation
// order and verifies the running-balance chain against the recorded splits.
func (s *ReportingService) CustomerStatement(ctx context.Context, customerKey string, scope Scope) (*CustomerStatement, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, invoice_number, total, payment_amount, credit_amount,
		       running_balance, payment_status, created_at
		FROM sales
		WHERE customer_key = $1 AND scope_kind = $2 AND scope_id = $3
		ORDER BY created_at, id
	`, customerKey, scope.Kind, scope.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to query statement for %s in %s: %w", customerKey, scope, err)
	}
	defer rows.Close()

	st := CustomerStatement{CustomerKey: customerKey, Scope: scope, Balance: decimal.Zero, ChainIntact: true}
	prior := decimal.Zero
	for rows.Next() {
		var l StatementLine
		if err := rows.Scan(&l.SaleID, &l.InvoiceNumber, &l.Total, &l.PaymentAmount, &l.CreditAmount,
			&l.RunningBalance, &l.PaymentStatus, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan statement line: %w", err)
		}

		// Allocation mutates the split after creation but never the stored
		// running balance, so the creation-time credit is recoverable as the
		// chain delta. Three things must hold for every row: the split still
		// sums to the total, the delta never exceeds the total (payment is
		// non-negative at creation), and the current credit never exceeds
		// the creation-time credit (allocation only shrinks it).
		delta := l.RunningBalance.Sub(prior)
		if !isZeroAmount(l.PaymentAmount.Add(l.CreditAmount).Sub(l.Total)) ||
			delta.Sub(l.Total).GreaterThanOrEqual(amountEpsilon) ||
			l.CreditAmount.Sub(delta).GreaterThanOrEqual(amountEpsilon) {
			st.ChainIntact = false
		}

		prior = l.RunningBalance
		st.Lines = append(st.Lines, l)
	}
	st.Balance = prior
	return &st, nil
}
