package handlers

import (
	"errors"
	"net/http"
	"strings"

	"library-management-api/internal/store"
)

// ListBooks handles GET /api/books. The q parameter matches title, author
// or isbn; category filters exactly.
func (h *Handler) ListBooks(w http.ResponseWriter, r *http.Request) {
	qs := r.URL.Query()
	filter := store.BookFilter{
		Query:    strings.TrimSpace(qs.Get("q")),
		Category: strings.TrimSpace(qs.Get("category")),
	}

	books, err := h.store.ListBooks(r.Context(), filter)
	if err != nil {
		h.serverErrorResponse(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, books); err != nil {
		h.logError(r, err)
	}
}

// GetBook handles GET /api/books/{id}.
func (h *Handler) GetBook(w http.ResponseWriter, r *http.Request) {
	id, err := readIDParam(r, "id")
	if err != nil {
		h.badRequestResponse(w, r, err)
		return
	}

	book, err := h.store.GetBook(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.notFoundResponse(w, r, "Book not found")
			return
		}
		h.serverErrorResponse(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, book); err != nil {
		h.logError(r, err)
	}
}
