package handlers

import (
	"errors"
	"net/http"

	"library-management-api/internal/circulation"
	"library-management-api/internal/middleware"
	"library-management-api/internal/models"
	"library-management-api/internal/session"
	"library-management-api/internal/validator"
)

var errForbidden = errors.New("access denied")

// mayActFor reports whether the caller may borrow for or read the history
// of userID. Staff act on behalf of anyone.
func mayActFor(sess *session.Session, userID int64) bool {
	return sess.User.Role.IsStaff() || sess.UserID == userID
}

// Borrow handles POST /api/transactions/borrow. A missing userId borrows for
// the caller.
func (h *Handler) Borrow(w http.ResponseWriter, r *http.Request) {
	var input struct {
		UserID int64 `json:"userId"`
		BookID int64 `json:"bookId"`
	}
	if err := readJSON(w, r, &input); err != nil {
		h.badRequestResponse(w, r, err)
		return
	}

	sess := middleware.SessionFromContext(r.Context())
	if input.UserID == 0 {
		input.UserID = sess.UserID
	}

	v := validator.New()
	v.Check(input.UserID > 0, "userId", "must be a positive integer")
	v.Check(input.BookID > 0, "bookId", "must be a positive integer")
	if !v.Valid() {
		h.failedValidationResponse(w, r, v.Errors)
		return
	}

	if !mayActFor(sess, input.UserID) {
		h.forbiddenResponse(w, r)
		return
	}

	tr, err := h.circulation.Borrow(r.Context(), input.UserID, input.BookID)
	if err != nil {
		switch {
		case errors.Is(err, circulation.ErrNotFound):
			h.notFoundResponse(w, r, "User or book not found")
		case errors.Is(err, circulation.ErrUnavailable):
			h.conflictResponse(w, r, "Book is not available")
		case errors.Is(err, circulation.ErrAlreadyBorrowed):
			h.conflictResponse(w, r, "You have already borrowed this book")
		default:
			h.serverErrorResponse(w, r, err)
		}
		return
	}

	if err := writeJSON(w, http.StatusCreated, tr); err != nil {
		h.logError(r, err)
	}
}

// Return handles POST /api/transactions/return. Only the borrower or staff
// may close a loan.
func (h *Handler) Return(w http.ResponseWriter, r *http.Request) {
	var input struct {
		TransactionID int64 `json:"transactionId"`
	}
	if err := readJSON(w, r, &input); err != nil {
		h.badRequestResponse(w, r, err)
		return
	}

	v := validator.New()
	if v.Check(input.TransactionID > 0, "transactionId", "must be a positive integer"); !v.Valid() {
		h.failedValidationResponse(w, r, v.Errors)
		return
	}

	sess := middleware.SessionFromContext(r.Context())
	tr, err := h.circulation.ReturnChecked(r.Context(), input.TransactionID, func(t *models.Transaction) error {
		if !mayActFor(sess, t.UserID) {
			return errForbidden
		}
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, circulation.ErrNotFound):
			h.notFoundResponse(w, r, "Transaction not found or already returned")
		case errors.Is(err, errForbidden):
			h.forbiddenResponse(w, r)
		default:
			h.serverErrorResponse(w, r, err)
		}
		return
	}

	if err := writeJSON(w, http.StatusOK, envelope{"message": "Book returned successfully", "transaction": tr}); err != nil {
		h.logError(r, err)
	}
}

// UserTransactions handles GET /api/transactions/user/{userId}.
func (h *Handler) UserTransactions(w http.ResponseWriter, r *http.Request) {
	userID, err := readIDParam(r, "userId")
	if err != nil {
		h.badRequestResponse(w, r, err)
		return
	}

	if !mayActFor(middleware.SessionFromContext(r.Context()), userID) {
		h.forbiddenResponse(w, r)
		return
	}

	list, err := h.circulation.ListForUser(r.Context(), userID)
	if err != nil {
		h.serverErrorResponse(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, list); err != nil {
		h.logError(r, err)
	}
}
