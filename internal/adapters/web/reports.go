package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// trialBalance handles GET /api/scopes/{kind}/{id}/trial-balance.
func (h *Handler) trialBalance(w http.ResponseWriter, r *http.Request) {
	scope, err := parseScope(chi.URLParam(r, "kind"), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	tb, err := h.svc.TrialBalance(r.Context(), scope)
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tb)
}

// customerStatement handles GET /api/customers/{key}/statement.
func (h *Handler) customerStatement(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFromQuery(r)
	if err != nil {
		writeError(w, r, err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	st, err := h.svc.CustomerStatement(r.Context(), chi.URLParam(r, "key"), scope)
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
