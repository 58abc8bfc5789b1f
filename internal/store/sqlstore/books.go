package sqlstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jmoiron/sqlx"

	"library-management-api/internal/models"
	"library-management-api/internal/store"
)

const booksTable = "books"

var bookColumns = []string{
	"id", "title", "author", "isbn", "category", "publisher", "publication_year",
	"description", "location", "quantity", "available", "created_at", "updated_at",
}

func bookRecord(b *models.Book) goqu.Record {
	return goqu.Record{
		"title":            b.Title,
		"author":           b.Author,
		"isbn":             b.ISBN,
		"category":         b.Category,
		"publisher":        b.Publisher,
		"publication_year": b.PublicationYear,
		"description":      b.Description,
		"location":         b.Location,
		"quantity":         b.Quantity,
		"available":        b.Available,
		"updated_at":       b.UpdatedAt,
	}
}

// likeEscaper makes a search term match literally inside LIKE.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// ListBooks returns the catalog ordered by title.
func (s *Store) ListBooks(ctx context.Context, filter store.BookFilter) ([]*models.Book, error) {
	ds := s.from(booksTable).Select(columns("", bookColumns)...)

	if q := strings.TrimSpace(filter.Query); q != "" {
		pattern := "%" + likeEscaper.Replace(strings.ToLower(q)) + "%"
		ds = ds.Where(goqu.Or(
			goqu.L(`LOWER(title) LIKE ? ESCAPE '\'`, pattern),
			goqu.L(`LOWER(author) LIKE ? ESCAPE '\'`, pattern),
			goqu.L(`LOWER(isbn) LIKE ? ESCAPE '\'`, pattern),
		))
	}
	if filter.Category != "" {
		ds = ds.Where(goqu.C("category").Eq(filter.Category))
	}

	books := []*models.Book{}
	if err := selectAll(ctx, s.db, &books, ds.Order(goqu.C("title").Asc(), goqu.C("id").Asc())); err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	return books, nil
}

// GetBook returns a book by id.
func (s *Store) GetBook(ctx context.Context, id int64) (*models.Book, error) {
	return s.getBook(ctx, s.db, id, false)
}

func (s *Store) getBook(ctx context.Context, q sqlx.QueryerContext, id int64, lock bool) (*models.Book, error) {
	ds := s.from(booksTable).Select(columns("", bookColumns)...).Where(goqu.C("id").Eq(id))
	if lock && s.postgres {
		ds = ds.ForUpdate(exp.Wait)
	}

	var book models.Book
	if err := get(ctx, q, &book, ds); err != nil {
		return nil, fmt.Errorf("get book %d: %w", id, err)
	}
	return &book, nil
}

// GetBookByISBN returns the book with the given isbn.
func (s *Store) GetBookByISBN(ctx context.Context, isbn string) (*models.Book, error) {
	ds := s.from(booksTable).Select(columns("", bookColumns)...).Where(goqu.C("isbn").Eq(isbn))

	var book models.Book
	if err := get(ctx, s.db, &book, ds); err != nil {
		return nil, fmt.Errorf("get book by isbn %q: %w", isbn, err)
	}
	return &book, nil
}

// CreateBook inserts book and sets its id and timestamps.
func (s *Store) CreateBook(ctx context.Context, book *models.Book) error {
	now := s.timestamp()
	book.CreatedAt = now
	book.UpdatedAt = now

	rec := bookRecord(book)
	rec["created_at"] = now

	id, err := s.insertID(ctx, s.db, s.insert(booksTable).Rows(rec))
	if err != nil {
		return fmt.Errorf("create book: %w", err)
	}
	book.ID = id
	return nil
}

// UpdateBook loads the book inside a transaction, applies fn and writes the
// result back.
func (s *Store) UpdateBook(ctx context.Context, id int64, fn func(*models.Book) error) (*models.Book, error) {
	var updated *models.Book

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		book, err := s.getBook(ctx, tx, id, true)
		if err != nil {
			return err
		}
		if err := fn(book); err != nil {
			return err
		}
		book.ID = id
		book.UpdatedAt = s.timestamp()

		if _, err := exec(ctx, tx, s.update(booksTable).Set(bookRecord(book)).Where(goqu.C("id").Eq(id))); err != nil {
			return fmt.Errorf("update book %d: %w", id, err)
		}
		updated = book
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteBook removes a book that no transaction refers to.
func (s *Store) DeleteBook(ctx context.Context, id int64) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := s.getBook(ctx, tx, id, true); err != nil {
			return err
		}

		var refs int
		ds := s.from(transactionsTable).Select(goqu.COUNT(goqu.Star())).Where(goqu.C("book_id").Eq(id))
		if err := get(ctx, tx, &refs, ds); err != nil {
			return fmt.Errorf("count book transactions: %w", err)
		}
		if refs > 0 {
			return fmt.Errorf("%w: book %d has %d transactions", store.ErrConflict, id, refs)
		}

		if _, err := exec(ctx, tx, s.delete(booksTable).Where(goqu.C("id").Eq(id))); err != nil {
			return fmt.Errorf("delete book %d: %w", id, err)
		}
		return nil
	})
}
