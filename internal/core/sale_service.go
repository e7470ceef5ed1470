package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// SaleLineInput is one item line on a sale-creation request. UnitPrice zero
// means "use the product's list price"; UnitCost zero means "look up the
// scope's inventory cost".
type SaleLineInput struct {
	ProductCode string          `json:"product_code"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	UnitCost    decimal.Decimal `json:"unit_cost"`
}

// CreateSaleRequest carries everything the sale-creation workflow needs.
// SalespersonCode is optional and only honored for warehouse scopes.
type CreateSaleRequest struct {
	Scope           Scope           `json:"scope"`
	CustomerKey     string          `json:"customer_key"`
	SalespersonCode string          `json:"salesperson_code,omitempty"`
	Lines           []SaleLineInput `json:"lines"`
	PaymentAmount   decimal.Decimal `json:"payment_amount"`
	CreditAmount    decimal.Decimal `json:"credit_amount"`
	CreatedBy       string          `json:"created_by"`
}

// SaleService runs the sale-creation workflow: invoice number, payment/credit
// split, running balance, persistence, and the double entry — one transaction,
// all or nothing.
type SaleService struct {
	pool      *pgxpool.Pool
	sequencer *InvoiceSequencer
	ledger    *LedgerService
	balances  *BalanceTracker
	costs     CostProvider
}

func NewSaleService(pool *pgxpool.Pool, sequencer *InvoiceSequencer, ledger *LedgerService, balances *BalanceTracker, costs CostProvider) *SaleService {
	return &SaleService{pool: pool, sequencer: sequencer, ledger: ledger, balances: balances, costs: costs}
}

// CreateSale creates a sale and posts its ledger entries.
//
// The stored credit amount is normalized to total - payment so the ledger
// identity holds exactly; the requested credit only has to agree within the
// cent tolerance, otherwise the sale is rejected with ErrPaymentMismatch.
func (s *SaleService) CreateSale(ctx context.Context, req CreateSaleRequest) (*Sale, error) {
	if len(req.Lines) == 0 {
		return nil, fmt.Errorf("sale must have at least one line")
	}
	if req.PaymentAmount.IsNegative() {
		return nil, fmt.Errorf("payment amount cannot be negative, got %s", req.PaymentAmount.StringFixed(2))
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.resolveCustomer(ctx, tx, req.CustomerKey); err != nil {
		return nil, err
	}

	// Locks the scope row for the remainder of the transaction.
	scopeCode, err := s.sequencer.ResolveScopeCode(ctx, tx, req.Scope)
	if err != nil {
		return nil, err
	}

	lines, total, costTotal, err := s.resolveLines(ctx, tx, req)
	if err != nil {
		return nil, err
	}

	if err := ValidateSplit(total, req.PaymentAmount, req.CreditAmount); err != nil {
		return nil, err
	}
	credit := total.Sub(req.PaymentAmount)

	var salespersonID *int
	prefix := scopeCode
	if req.SalespersonCode != "" && req.Scope.Kind == ScopeWarehouse {
		id, code, err := s.resolveSalesperson(ctx, tx, req.Scope.ID, req.SalespersonCode)
		if err != nil {
			return nil, err
		}
		salespersonID = &id
		prefix = scopeCode + "-" + code
	}

	invoiceNumber, err := s.sequencer.Next(ctx, tx, prefix)
	if err != nil {
		return nil, err
	}

	runningBalance, err := s.balances.Advance(ctx, tx, req.CustomerKey, req.Scope, credit)
	if err != nil {
		return nil, err
	}

	sale := Sale{
		Scope:          req.Scope,
		InvoiceNumber:  invoiceNumber,
		CustomerKey:    req.CustomerKey,
		SalespersonID:  salespersonID,
		Total:          total,
		PaymentAmount:  req.PaymentAmount,
		CreditAmount:   credit,
		RunningBalance: runningBalance,
		PaymentStatus:  SplitStatus(req.PaymentAmount, credit),
		CreatedBy:      req.CreatedBy,
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO sales (scope_kind, scope_id, invoice_number, customer_key, salesperson_id,
		                   total, payment_amount, credit_amount, running_balance, payment_status, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at
	`, sale.Scope.Kind, sale.Scope.ID, sale.InvoiceNumber, sale.CustomerKey, sale.SalespersonID,
		sale.Total, sale.PaymentAmount, sale.CreditAmount, sale.RunningBalance, sale.PaymentStatus, sale.CreatedBy,
	).Scan(&sale.ID, &sale.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert sale %s: %w", invoiceNumber, err)
	}

	for i := range lines {
		lines[i].SaleID = sale.ID
		lines[i].LineNumber = i + 1
		err = tx.QueryRow(ctx, `
			INSERT INTO sale_lines (sale_id, line_number, product_id, quantity, unit_price, unit_cost, line_total)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id
		`, sale.ID, lines[i].LineNumber, lines[i].ProductID, lines[i].Quantity,
			lines[i].UnitPrice, lines[i].UnitCost, lines[i].LineTotal,
		).Scan(&lines[i].ID)
		if err != nil {
			return nil, fmt.Errorf("failed to insert sale line %d: %w", i+1, err)
		}
	}
	sale.Lines = lines

	if err := s.ledger.RecordSale(ctx, tx, &sale, costTotal); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit sale %s: %w", invoiceNumber, err)
	}
	return &sale, nil
}

func (s *SaleService) resolveCustomer(ctx context.Context, tx pgx.Tx, key string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("%w: empty customer key", ErrCustomerNotFound)
	}
	var id int
	err := tx.QueryRow(ctx, "SELECT id FROM customers WHERE customer_key = $1", key).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: %s", ErrCustomerNotFound, key)
		}
		return fmt.Errorf("failed to resolve customer %s: %w", key, err)
	}
	return nil
}

func (s *SaleService) resolveSalesperson(ctx context.Context, tx pgx.Tx, warehouseID int, code string) (int, string, error) {
	var id int
	var normalized string
	err := tx.QueryRow(ctx, `
		SELECT id, code FROM salespersons
		WHERE warehouse_id = $1 AND code = $2 AND is_active = true
	`, warehouseID, code).Scan(&id, &normalized)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, "", fmt.Errorf("salesperson %s not found in warehouse %d", code, warehouseID)
		}
		return 0, "", fmt.Errorf("failed to resolve salesperson %s: %w", code, err)
	}
	return id, normalized, nil
}

// resolveLines prices each line and sums the sale total and the COGS total.
func (s *SaleService) resolveLines(ctx context.Context, tx pgx.Tx, req CreateSaleRequest) ([]SaleLine, decimal.Decimal, decimal.Decimal, error) {
	var lines []SaleLine
	total := decimal.Zero
	costTotal := decimal.Zero

	for i, input := range req.Lines {
		if input.Quantity.LessThanOrEqual(decimal.Zero) {
			return nil, decimal.Zero, decimal.Zero, fmt.Errorf("line %d: quantity must be positive", i+1)
		}

		var productID int
		var productName string
		var listPrice decimal.Decimal
		err := tx.QueryRow(ctx,
			"SELECT id, name, sell_price FROM products WHERE code = $1 AND is_active = true",
			input.ProductCode,
		).Scan(&productID, &productName, &listPrice)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, decimal.Zero, decimal.Zero, fmt.Errorf("line %d: product %s not found", i+1, input.ProductCode)
			}
			return nil, decimal.Zero, decimal.Zero, fmt.Errorf("line %d: failed to resolve product: %w", i+1, err)
		}

		price := listPrice
		if !input.UnitPrice.IsZero() {
			price = input.UnitPrice
		}

		cost := input.UnitCost
		if cost.IsZero() {
			invCost, ok, err := s.costs.UnitCost(ctx, tx, req.Scope, productID)
			if err != nil {
				return nil, decimal.Zero, decimal.Zero, fmt.Errorf("line %d: %w", i+1, err)
			}
			if ok {
				cost = invCost
			}
		}

		lineTotal := input.Quantity.Mul(price)
		total = total.Add(lineTotal)
		costTotal = costTotal.Add(input.Quantity.Mul(cost))

		lines = append(lines, SaleLine{
			ProductID:   productID,
			ProductCode: input.ProductCode,
			ProductName: productName,
			Quantity:    input.Quantity,
			UnitPrice:   price,
			UnitCost:    cost,
			LineTotal:   lineTotal,
		})
	}

	return lines, total, costTotal, nil
}

// GetSale fetches a sale with its lines.
func (s *SaleService) GetSale(ctx context.Context, saleID int) (*Sale, error) {
	var sale Sale
	err := s.pool.QueryRow(ctx, `
		SELECT id, scope_kind, scope_id, invoice_number, customer_key, salesperson_id,
		       total, payment_amount, credit_amount, running_balance, payment_status,
		       created_by, created_at
		FROM sales
		WHERE id = $1
	`, saleID).Scan(
		&sale.ID, &sale.Scope.Kind, &sale.Scope.ID, &sale.InvoiceNumber, &sale.CustomerKey, &sale.SalespersonID,
		&sale.Total, &sale.PaymentAmount, &sale.CreditAmount, &sale.RunningBalance, &sale.PaymentStatus,
		&sale.CreatedBy, &sale.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: id %d", ErrSaleNotFound, saleID)
		}
		return nil, fmt.Errorf("failed to fetch sale %d: %w", saleID, err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT sl.id, sl.sale_id, sl.line_number, sl.product_id, p.code, p.name,
		       sl.quantity, sl.unit_price, sl.unit_cost, sl.line_total
		FROM sale_lines sl
		JOIN products p ON p.id = sl.product_id
		WHERE sl.sale_id = $1
		ORDER BY sl.line_number
	`, saleID)
	if err != nil {
		return nil, fmt.Errorf("failed to query sale lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var l SaleLine
		if err := rows.Scan(&l.ID, &l.SaleID, &l.LineNumber, &l.ProductID, &l.ProductCode, &l.ProductName,
			&l.Quantity, &l.UnitPrice, &l.UnitCost, &l.LineTotal); err != nil {
			return nil, fmt.Errorf("failed to scan sale line: %w", err)
		}
		sale.Lines = append(sale.Lines, l)
	}
	return &sale, nil
}

// GetSaleByInvoice fetches a sale by its invoice number.
func (s *SaleService) GetSaleByInvoice(ctx context.Context, invoiceNumber string) (*Sale, error) {
	var saleID int
	err := s.pool.QueryRow(ctx, "SELECT id FROM sales WHERE invoice_number = $1", invoiceNumber).Scan(&saleID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrSaleNotFound, invoiceNumber)
		}
		return nil, fmt.Errorf("failed to look up sale %s: %w", invoiceNumber, err)
	}
	return s.GetSale(ctx, saleID)
}
