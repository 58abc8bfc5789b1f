package firebase

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"cloud.google.com/go/firestore"

	"library-management-api/internal/models"
	"library-management-api/internal/store"
)

func decodeBook(snap *firestore.DocumentSnapshot) (*models.Book, error) {
	var book models.Book
	if err := snap.DataTo(&book); err != nil {
		return nil, fmt.Errorf("decode book %s: %w", snap.Ref.ID, err)
	}
	return &book, nil
}

// ListBooks returns the catalog ordered by title. Firestore has no
// substring match, so the filter is applied after loading.
func (s *Store) ListBooks(ctx context.Context, filter store.BookFilter) ([]*models.Book, error) {
	q := s.fs.Collection(BooksCollection).Query
	if filter.Category != "" {
		q = q.Where("category", "==", filter.Category)
	}

	docs, err := q.Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}

	needle := strings.ToLower(strings.TrimSpace(filter.Query))
	books := make([]*models.Book, 0, len(docs))
	for _, doc := range docs {
		book, err := decodeBook(doc)
		if err != nil {
			return nil, err
		}
		if needle != "" &&
			!strings.Contains(strings.ToLower(book.Title), needle) &&
			!strings.Contains(strings.ToLower(book.Author), needle) &&
			!strings.Contains(strings.ToLower(book.ISBN), needle) {
			continue
		}
		books = append(books, book)
	}

	slices.SortFunc(books, func(a, b *models.Book) int {
		return cmp.Or(cmp.Compare(a.Title, b.Title), cmp.Compare(a.ID, b.ID))
	})
	return books, nil
}

// GetBook returns a book by id.
func (s *Store) GetBook(ctx context.Context, id int64) (*models.Book, error) {
	snap, err := s.doc(BooksCollection, id).Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("get book %d: %w", id, mapError(err))
	}
	return decodeBook(snap)
}

// GetBookByISBN returns the book with the given isbn.
func (s *Store) GetBookByISBN(ctx context.Context, isbn string) (*models.Book, error) {
	docs, err := s.fs.Collection(BooksCollection).Where("isbn", "==", isbn).Limit(1).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("get book by isbn: %w", err)
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("book with isbn %q: %w", isbn, store.ErrNotFound)
	}
	return decodeBook(docs[0])
}

// isbnTaken reports whether another book than id uses isbn.
func (s *Store) isbnTaken(tx *firestore.Transaction, isbn string, id int64) (bool, error) {
	q := s.fs.Collection(BooksCollection).Where("isbn", "==", isbn).Limit(2)
	docs, err := tx.Documents(q).GetAll()
	if err != nil {
		return false, fmt.Errorf("check isbn: %w", err)
	}
	for _, doc := range docs {
		if doc.Ref.ID != s.doc(BooksCollection, id).ID {
			return true, nil
		}
	}
	return false, nil
}

// CreateBook inserts book and sets its id and timestamps.
func (s *Store) CreateBook(ctx context.Context, book *models.Book) error {
	now := s.timestamp()

	err := s.fs.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		taken, err := s.isbnTaken(tx, book.ISBN, 0)
		if err != nil {
			return err
		}
		if taken {
			return fmt.Errorf("%w: isbn %q exists", store.ErrConflict, book.ISBN)
		}

		id, counterRef, err := s.nextID(tx, BooksCollection)
		if err != nil {
			return err
		}
		if err := tx.Set(counterRef, counter(id)); err != nil {
			return err
		}

		b := *book
		b.ID = id
		b.CreatedAt = now
		b.UpdatedAt = now
		if err := tx.Create(s.doc(BooksCollection, id), &b); err != nil {
			return err
		}
		*book = b
		return nil
	})
	if err != nil {
		return fmt.Errorf("create book: %w", mapError(err))
	}
	return nil
}

// UpdateBook loads the book inside a transaction, applies fn and writes the
// result back.
func (s *Store) UpdateBook(ctx context.Context, id int64, fn func(*models.Book) error) (*models.Book, error) {
	var updated *models.Book
	ref := s.doc(BooksCollection, id)

	err := s.fs.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			return fmt.Errorf("get book %d: %w", id, mapError(err))
		}
		book, err := decodeBook(snap)
		if err != nil {
			return err
		}
		oldISBN := book.ISBN

		if err := fn(book); err != nil {
			return err
		}
		book.ID = id
		book.UpdatedAt = s.timestamp()

		if book.ISBN != oldISBN {
			taken, err := s.isbnTaken(tx, book.ISBN, id)
			if err != nil {
				return err
			}
			if taken {
				return fmt.Errorf("%w: isbn %q exists", store.ErrConflict, book.ISBN)
			}
		}

		if err := tx.Set(ref, book); err != nil {
			return err
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
	ref := s.doc(BooksCollection, id)

	return s.fs.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if _, err := tx.Get(ref); err != nil {
			return fmt.Errorf("get book %d: %w", id, mapError(err))
		}

		q := s.fs.Collection(TransactionsCollection).Where("book_id", "==", id).Limit(1)
		refs, err := tx.Documents(q).GetAll()
		if err != nil {
			return fmt.Errorf("count book transactions: %w", err)
		}
		if len(refs) > 0 {
			return fmt.Errorf("%w: book %d has transactions", store.ErrConflict, id)
		}

		return tx.Delete(ref)
	})
}
