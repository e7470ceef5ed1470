package web

import (
	"encoding/json"
	"net/http"

	"retail-backoffice/internal/app"
	"retail-backoffice/internal/core"

	"github.com/go-chi/chi/v5"
)

// allocatePayment handles POST /api/payments/allocate: the payment-clearing
// endpoint. The remainder in the response is the caller's to act on.
func (h *Handler) allocatePayment(w http.ResponseWriter, r *http.Request) {
	var req app.AllocatePaymentRequest
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

	result, err := h.svc.AllocatePayment(r.Context(), req)
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// openSales handles GET /api/customers/{key}/open-sales.
func (h *Handler) openSales(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFromQuery(r)
	if err != nil {
		writeError(w, r, err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	sales, err := h.svc.ListOpenSales(r.Context(), chi.URLParam(r, "key"), scope)
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"open_sales": sales})
}
