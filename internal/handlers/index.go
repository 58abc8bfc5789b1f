package handlers

import (
	"context"
	"net/http"
	"time"
)

// Index handles GET /api with a short service description.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	data := envelope{
		"name": "library-management-api",
		"endpoints": []string{
			"/api/auth", "/api/books", "/api/transactions", "/api/reports",
		},
	}
	if err := writeJSON(w, http.StatusOK, data); err != nil {
		h.logError(r, err)
	}
}

// Health handles GET /healthz. It fails with 503 when the store does not
// answer within two seconds.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		h.logError(r, err)
		h.errorResponse(w, r, http.StatusServiceUnavailable, "Store unavailable")
		return
	}

	if err := writeJSON(w, http.StatusOK, envelope{"status": "ok"}); err != nil {
		h.logError(r, err)
	}
}
