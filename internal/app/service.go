package app

import (
	"context"
	"strconv"

	"retail-backoffice/internal/core"

	"github.com/shopspring/decimal"
)

// SaleResult pairs a sale with the ledger entries it produced.
type SaleResult struct {
	Sale    *core.Sale         `json:"sale"`
	Entries []core.LedgerEntry `json:"entries,omitempty"`
}

// PartialPaymentRequest settles part of one sale outside the allocation flow.
type PartialPaymentRequest struct {
	SaleID    int             `json:"sale_id"`
	Amount    decimal.Decimal `json:"amount"`
	Method    string          `json:"method"`
	CreatedBy string          `json:"created_by"`
}

// AllocatePaymentRequest clears a customer's outstanding sales FIFO.
type AllocatePaymentRequest struct {
	CustomerKey string          `json:"customer_key"`
	Scope       core.Scope      `json:"scope"`
	Payment     decimal.Decimal `json:"payment"`
	Method      string          `json:"method"`
	CreatedBy   string          `json:"created_by"`
}

// ApplicationService is the single interface UI adapters call. It decouples
// presentation from the core services and contains no display logic.
type ApplicationService interface {
	// CreateSale runs the full sale-creation workflow and returns the sale
	// with its posted ledger entries.
	CreateSale(ctx context.Context, req core.CreateSaleRequest) (*SaleResult, error)

	// GetSale looks a sale up by numeric ID or invoice number.
	GetSale(ctx context.Context, ref string) (*SaleResult, error)

	// RecordPartialPayment applies a payment to one sale through the unified
	// payment path.
	RecordPartialPayment(ctx context.Context, req PartialPaymentRequest) (*SaleResult, error)

	// AllocatePayment distributes a payment across the customer's open sales,
	// oldest first, returning the processed sales and any remainder.
	AllocatePayment(ctx context.Context, req AllocatePaymentRequest) (*core.AllocationResult, error)

	// ListOpenSales returns the customer's outstanding sales in allocation order.
	ListOpenSales(ctx context.Context, customerKey string, scope core.Scope) ([]core.Sale, error)

	// TrialBalance returns the scope's chart of accounts with entry totals.
	TrialBalance(ctx context.Context, scope core.Scope) (*core.TrialBalance, error)

	// CustomerStatement returns the (customer, scope) running-balance chain.
	CustomerStatement(ctx context.Context, customerKey string, scope core.Scope) (*core.CustomerStatement, error)
}

type appService struct {
	sales     *core.SaleService
	ledger    *core.LedgerService
	allocator *core.PaymentAllocator
	reports   *core.ReportingService
}

func NewAppService(sales *core.SaleService, ledger *core.LedgerService, allocator *core.PaymentAllocator, reports *core.ReportingService) ApplicationService {
	return &appService{sales: sales, ledger: ledger, allocator: allocator, reports: reports}
}

func (s *appService) CreateSale(ctx context.Context, req core.CreateSaleRequest) (*SaleResult, error) {
	sale, err := s.sales.CreateSale(ctx, req)
	if err != nil {
		return nil, err
	}
	entries, err := s.ledger.EntriesForSale(ctx, sale.ID)
	if err != nil {
		return nil, err
	}
	return &SaleResult{Sale: sale, Entries: entries}, nil
}

func (s *appService) GetSale(ctx context.Context, ref string) (*SaleResult, error) {
	var sale *core.Sale
	var err error
	if id, convErr := strconv.Atoi(ref); convErr == nil {
		sale, err = s.sales.GetSale(ctx, id)
	} else {
		sale, err = s.sales.GetSaleByInvoice(ctx, ref)
	}
	if err != nil {
		return nil, err
	}
	entries, err := s.ledger.EntriesForSale(ctx, sale.ID)
	if err != nil {
		return nil, err
	}
	return &SaleResult{Sale: sale, Entries: entries}, nil
}

func (s *appService) RecordPartialPayment(ctx context.Context, req PartialPaymentRequest) (*SaleResult, error) {
	sale, err := s.ledger.RecordPartialPayment(ctx, req.SaleID, req.Amount, req.Method, req.CreatedBy)
	if err != nil {
		return nil, err
	}
	return &SaleResult{Sale: sale}, nil
}

func (s *appService) AllocatePayment(ctx context.Context, req AllocatePaymentRequest) (*core.AllocationResult, error) {
	return s.allocator.Allocate(ctx, req.CustomerKey, req.Scope, req.Payment, req.Method, req.CreatedBy)
}

func (s *appService) ListOpenSales(ctx context.Context, customerKey string, scope core.Scope) ([]core.Sale, error) {
	return s.allocator.OpenSales(ctx, customerKey, scope)
}

func (s *appService) TrialBalance(ctx context.Context, scope core.Scope) (*core.TrialBalance, error) {
	return s.reports.TrialBalance(ctx, scope)
}

func (s *appService) CustomerStatement(ctx context.Context, customerKey string, scope core.Scope) (*core.CustomerStatement, error) {
	return s.reports.CustomerStatement(ctx, customerKey, scope)
}
