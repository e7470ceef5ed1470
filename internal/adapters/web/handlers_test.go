package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"retail-backoffice/internal/app"
	"retail-backoffice/internal/core"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubService returns canned values; handler tests only exercise request
// parsing and response shaping.
type stubService struct{}

func (stubService) CreateSale(ctx context.Context, req core.CreateSaleRequest) (*app.SaleResult, error) {
	return &app.SaleResult{Sale: &core.Sale{Scope: req.Scope, InvoiceNumber: "BR1-000001"}}, nil
}

func (stubService) GetSale(ctx context.Context, ref string) (*app.SaleResult, error) {
	return &app.SaleResult{Sale: &core.Sale{InvoiceNumber: ref}}, nil
}

func (stubService) RecordPartialPayment(ctx context.Context, req app.PartialPaymentRequest) (*app.SaleResult, error) {
	return &app.SaleResult{Sale: &core.Sale{ID: req.SaleID}}, nil
}

func (stubService) AllocatePayment(ctx context.Context, req app.AllocatePaymentRequest) (*core.AllocationResult, error) {
	return &core.AllocationResult{
		CustomerKey: req.CustomerKey,
		Scope:       req.Scope,
		Payment:     req.Payment,
		Processed:   []core.Allocation{},
		Remainder:   req.Payment,
	}, nil
}

func (stubService) ListOpenSales(ctx context.Context, customerKey string, scope core.Scope) ([]core.Sale, error) {
	return nil, nil
}

func (stubService) TrialBalance(ctx context.Context, scope core.Scope) (*core.TrialBalance, error) {
	return &core.TrialBalance{Scope: scope, InBalance: true}, nil
}

func (stubService) CustomerStatement(ctx context.Context, customerKey string, scope core.Scope) (*core.CustomerStatement, error) {
	return &core.CustomerStatement{CustomerKey: customerKey, Scope: scope, Balance: decimal.Zero}, nil
}

func serve(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	handler := NewHandler(stubService{}, "")
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestCreateSale_RejectsUnknownScopeKind(t *testing.T) {
	rec := serve(t, http.MethodPost, "/api/sales",
		`{"scope":{"kind":"STORE","id":1},"customer_key":"CUST-001"}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "scope kind")
}

func TestCreateSale_NormalizesScopeKindCase(t *testing.T) {
	rec := serve(t, http.MethodPost, "/api/sales",
		`{"scope":{"kind":"branch","id":1},"customer_key":"CUST-001"}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"kind":"BRANCH"`)
}

func TestAllocatePayment_RejectsUnknownScopeKind(t *testing.T) {
	rec := serve(t, http.MethodPost, "/api/payments/allocate",
		`{"customer_key":"CUST-001","scope":{"kind":"depot","id":1},"payment":"100"}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAllocatePayment_EmptyProcessedSerializesAsArray(t *testing.T) {
	rec := serve(t, http.MethodPost, "/api/payments/allocate",
		`{"customer_key":"CUST-001","scope":{"kind":"BRANCH","id":1},"payment":"100"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"processed":[]`)
}

func TestTrialBalance_RejectsUnknownScopeKind(t *testing.T) {
	rec := serve(t, http.MethodGet, "/api/scopes/store/1/trial-balance", "")

	require.Equal(t, http.StatusBadRequest, rec.Code)
}
