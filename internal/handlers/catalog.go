package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"library-management-api/internal/models"
	"library-management-api/internal/store"
	"library-management-api/internal/validator"
)

func validateBook(v *validator.Validator, b *models.Book) {
	v.Check(b.Title != "", "title", "must be provided")
	v.Check(b.Author != "", "author", "must be provided")
	v.Check(b.ISBN != "", "isbn", "must be provided")
	v.Check(b.Category != "", "category", "must be provided")
	v.Check(b.Quantity >= 0, "quantity", "must not be negative")
	v.Check(b.PublicationYear >= 0 && b.PublicationYear <= time.Now().Year()+1,
		"publicationYear", "must be a valid year")
}

// CreateBook handles POST /api/books. All copies start available.
func (h *Handler) CreateBook(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Title           string `json:"title"`
		Author          string `json:"author"`
		ISBN            string `json:"isbn"`
		Category        string `json:"category"`
		Publisher       string `json:"publisher"`
		PublicationYear int    `json:"publicationYear"`
		Description     string `json:"description"`
		Location        string `json:"location"`
		Quantity        *int   `json:"quantity"`
	}
	if err := readJSON(w, r, &input); err != nil {
		h.badRequestResponse(w, r, err)
		return
	}

	book := &models.Book{
		Title:           strings.TrimSpace(input.Title),
		Author:          strings.TrimSpace(input.Author),
		ISBN:            strings.TrimSpace(input.ISBN),
		Category:        strings.TrimSpace(input.Category),
		Publisher:       strings.TrimSpace(input.Publisher),
		PublicationYear: input.PublicationYear,
		Description:     input.Description,
		Location:        strings.TrimSpace(input.Location),
		Quantity:        1,
	}
	if input.Quantity != nil {
		book.Quantity = *input.Quantity
	}
	book.Available = book.Quantity

	v := validator.New()
	if validateBook(v, book); !v.Valid() {
		h.failedValidationResponse(w, r, v.Errors)
		return
	}

	if err := h.store.CreateBook(r.Context(), book); err != nil {
		if errors.Is(err, store.ErrConflict) {
			h.conflictResponse(w, r, "A book with this ISBN already exists")
			return
		}
		h.serverErrorResponse(w, r, err)
		return
	}

	h.logger.Info("book created", "book_id", book.ID, "isbn", book.ISBN)
	w.Header().Set("Location", "/api/books/"+itoa(book.ID))
	if err := writeJSON(w, http.StatusCreated, book); err != nil {
		h.logError(r, err)
	}
}

// UpdateBook handles PATCH /api/books/{id}. Absent fields keep their value;
// a quantity change moves available by the same amount.
func (h *Handler) UpdateBook(w http.ResponseWriter, r *http.Request) {
	id, err := readIDParam(r, "id")
	if err != nil {
		h.badRequestResponse(w, r, err)
		return
	}

	var input struct {
		Title           *string `json:"title"`
		Author          *string `json:"author"`
		ISBN            *string `json:"isbn"`
		Category        *string `json:"category"`
		Publisher       *string `json:"publisher"`
		PublicationYear *int    `json:"publicationYear"`
		Description     *string `json:"description"`
		Location        *string `json:"location"`
		Quantity        *int    `json:"quantity"`
	}
	if err := readJSON(w, r, &input); err != nil {
		h.badRequestResponse(w, r, err)
		return
	}

	v := validator.New()
	book, err := h.store.UpdateBook(r.Context(), id, func(b *models.Book) error {
		setTrimmed(&b.Title, input.Title)
		setTrimmed(&b.Author, input.Author)
		setTrimmed(&b.ISBN, input.ISBN)
		setTrimmed(&b.Category, input.Category)
		setTrimmed(&b.Publisher, input.Publisher)
		setTrimmed(&b.Location, input.Location)
		if input.Description != nil {
			b.Description = *input.Description
		}
		if input.PublicationYear != nil {
			b.PublicationYear = *input.PublicationYear
		}
		if input.Quantity != nil {
			if *input.Quantity < 0 {
				v.AddError("quantity", "must not be negative")
			} else if err := b.Resize(*input.Quantity); err != nil {
				return err
			}
		}

		if validateBook(v, b); !v.Valid() {
			return errValidation
		}
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, errValidation):
			h.failedValidationResponse(w, r, v.Errors)
		case errors.Is(err, store.ErrNotFound):
			h.notFoundResponse(w, r, "Book not found")
		case errors.Is(err, models.ErrCopiesOnLoan):
			h.conflictResponse(w, r, "Quantity is lower than the number of copies on loan")
		case errors.Is(err, store.ErrConflict):
			h.conflictResponse(w, r, "A book with this ISBN already exists")
		default:
			h.serverErrorResponse(w, r, err)
		}
		return
	}

	h.logger.Info("book updated", "book_id", book.ID)
	if err := writeJSON(w, http.StatusOK, book); err != nil {
		h.logError(r, err)
	}
}

// DeleteBook handles DELETE /api/books/{id}. Books with ledger history are
// kept.
func (h *Handler) DeleteBook(w http.ResponseWriter, r *http.Request) {
	id, err := readIDParam(r, "id")
	if err != nil {
		h.badRequestResponse(w, r, err)
		return
	}

	if err := h.store.DeleteBook(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			h.notFoundResponse(w, r, "Book not found")
		case errors.Is(err, store.ErrConflict):
			h.conflictResponse(w, r, "Book has transactions and cannot be deleted")
		default:
			h.serverErrorResponse(w, r, err)
		}
		return
	}

	h.logger.Info("book deleted", "book_id", id)
	if err := writeJSON(w, http.StatusOK, envelope{"message": "Book removed"}); err != nil {
		h.logError(r, err)
	}
}

func setTrimmed(dst *string, src *string) {
	if src != nil {
		*dst = strings.TrimSpace(*src)
	}
}
