package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ScopeKind distinguishes the two partition types under which accounts,
// sales, and invoice sequences are isolated.
type ScopeKind string

const (
	ScopeBranch    ScopeKind = "BRANCH"
	ScopeWarehouse ScopeKind = "WAREHOUSE"
)

// ParseScopeKind normalizes external input (CLI arguments, URL segments,
// request bodies) to a valid scope kind, case-insensitively.
func ParseScopeKind(s string) (ScopeKind, error) {
	switch k := ScopeKind(strings.ToUpper(strings.TrimSpace(s))); k {
	case ScopeBranch, ScopeWarehouse:
		return k, nil
	}
	return "", fmt.Errorf("unknown scope kind %q", s)
}

// Scope is the partition key for the financial engine. A scope is never
// mutated after a sale references it.
type Scope struct {
	Kind ScopeKind `json:"kind"`
	ID   int       `json:"id"`
}

func (s Scope) String() string {
	return fmt.Sprintf("%s/%d", s.Kind, s.ID)
}

// table returns the backing table for the scope kind.
func (s Scope) table() (string, error) {
	switch s.Kind {
	case ScopeBranch:
		return "branches", nil
	case ScopeWarehouse:
		return "warehouses", nil
	}
	return "", fmt.Errorf("unknown scope kind %q", s.Kind)
}

type AccountKind string

const (
	Asset     AccountKind = "asset"
	Liability AccountKind = "liability"
	Revenue   AccountKind = "revenue"
	Expense   AccountKind = "expense"
)

// Well-known account names, created lazily per scope on first use.
const (
	AccountCash       = "Cash"
	AccountReceivable = "Accounts Receivable"
	AccountRevenue    = "Sales Revenue"
	AccountInventory  = "Inventory"
	AccountCOGS       = "Cost of Goods Sold"
)

type Account struct {
	ID      int             `json:"id"`
	Scope   Scope           `json:"scope"`
	Name    string          `json:"name"`
	Kind    AccountKind     `json:"kind"`
	Balance decimal.Decimal `json:"balance"`
	Status  string          `json:"status"`
}

type EntryDirection string

const (
	Debit  EntryDirection = "DEBIT"
	Credit EntryDirection = "CREDIT"
)

// LedgerEntry is one side of a double entry. Immutable once written.
type LedgerEntry struct {
	ID              int             `json:"id"`
	AccountID       int             `json:"account_id"`
	Direction       EntryDirection  `json:"direction"`
	Amount          decimal.Decimal `json:"amount"`
	Description     string          `json:"description"`
	ReferenceSaleID *int            `json:"reference_sale_id,omitempty"`
	CreatedBy       string          `json:"created_by"`
	CreatedAt       time.Time       `json:"created_at"`
}

type PaymentStatus string

const (
	PaymentCompleted PaymentStatus = "COMPLETED"
	PaymentPartial   PaymentStatus = "PARTIAL"
	PaymentPending   PaymentStatus = "PENDING"
)

// Sale is a point-of-sale transaction with its payment/credit split and the
// customer's running balance as of this sale. After creation a sale is only
// ever shrunk toward COMPLETED by payment allocation.
type Sale struct {
	ID             int             `json:"id"`
	Scope          Scope           `json:"scope"`
	InvoiceNumber  string          `json:"invoice_number"`
	CustomerKey    string          `json:"customer_key"`
	SalespersonID  *int            `json:"salesperson_id,omitempty"`
	Total          decimal.Decimal `json:"total"`
	PaymentAmount  decimal.Decimal `json:"payment_amount"`
	CreditAmount   decimal.Decimal `json:"credit_amount"`
	RunningBalance decimal.Decimal `json:"running_balance"`
	PaymentStatus  PaymentStatus   `json:"payment_status"`
	CreatedBy      string          `json:"created_by"`
	CreatedAt      time.Time       `json:"created_at"`
	Lines          []SaleLine      `json:"lines,omitempty"`
}

type SaleLine struct {
	ID          int             `json:"id"`
	SaleID      int             `json:"sale_id"`
	LineNumber  int             `json:"line_number"`
	ProductID   int             `json:"product_id"`
	ProductCode string          `json:"product_code"`
	ProductName string          `json:"product_name"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	UnitCost    decimal.Decimal `json:"unit_cost"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

type Customer struct {
	ID        int       `json:"id"`
	Key       string    `json:"key"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	CreatedAt time.Time `json:"created_at"`
}
