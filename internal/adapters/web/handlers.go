package web

import (
	"fmt"
	"net/http"
	"strconv"

	"retail-backoffice/internal/app"
	"retail-backoffice/internal/core"

	"github.com/go-chi/chi/v5"
)

// Handler holds the ApplicationService and the chi router.
type Handler struct {
	svc    app.ApplicationService
	router chi.Router
}

// NewHandler creates and wires the chi router with all routes.
func NewHandler(svc app.ApplicationService, allowedOrigins string) http.Handler {
	h := &Handler{svc: svc}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger)
	r.Use(Recoverer)
	r.Use(CORS(allowedOrigins))

	r.Get("/api/health", h.health)

	r.Route("/api", func(r chi.Router) {
		r.Post("/sales", h.createSale)
		r.Get("/sales/{ref}", h.getSale)
		r.Post("/sales/{id}/payments", h.recordPartialPayment)

		r.Post("/payments/allocate", h.allocatePayment)

		r.Get("/customers/{key}/open-sales", h.openSales)
		r.Get("/customers/{key}/statement", h.customerStatement)

		r.Get("/scopes/{kind}/{id}/trial-balance", h.trialBalance)
	})

	h.router = r
	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// parseScope builds a Scope from kind and id strings.
func parseScope(kind, id string) (core.Scope, error) {
	scopeID, err := strconv.Atoi(id)
	if err != nil {
		return core.Scope{}, fmt.Errorf("invalid scope id %q", id)
	}
	k, err := core.ParseScopeKind(kind)
	if err != nil {
		return core.Scope{}, err
	}
	return core.Scope{Kind: k, ID: scopeID}, nil
}

// scopeFromQuery reads scope_kind and scope_id query parameters.
func scopeFromQuery(r *http.Request) (core.Scope, error) {
	return parseScope(r.URL.Query().Get("scope_kind"), r.URL.Query().Get("scope_id"))
}
