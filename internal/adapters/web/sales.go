package web

import (
	"encoding/json"
	"net/http"
	"strconv"

	"retail-backoffice/internal/app"
	"retail-backoffice/internal/core"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

// createSale handles POST /api/sales.
func (h *Handler) createSale(w http.ResponseWriter, r *http.Request) {
	var req core.CreateSaleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, "invalid request body: "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	kind, err := core.ParseScopeKind(string(req.Scope.Kind))
	if err != nil {
		writeError(w, r, err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	req.Scope.Kind = kind

	result, err := h.svc.CreateSale(r.Context(), req)
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// getSale handles GET /api/sales/{ref}; ref is a numeric ID or an invoice number.
func (h *Handler) getSale(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.GetSale(r.Context(), chi.URLParam(r, "ref"))
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type partialPaymentBody struct {
	Amount    decimal.Decimal `json:"amount"`
	Method    string          `json:"method"`
	CreatedBy string          `json:"created_by"`
}

// recordPartialPayment handles POST /api/sales/{id}/payments.
func (h *Handler) recordPartialPayment(w http.ResponseWriter, r *http.Request) {
	saleID, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, "invalid sale id", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	var body partialPaymentBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, r, "invalid request body: "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	result, err := h.svc.RecordPartialPayment(r.Context(), app.PartialPaymentRequest{
		SaleID:    saleID,
		Amount:    body.Amount,
		Method:    body.Method,
		CreatedBy: body.CreatedBy,
	})
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
