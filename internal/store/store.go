// Package store defines the persistence interface shared by the SQL and
// Firestore backends.
package store

import (
	"context"
	"errors"
	"time"

	"library-management-api/internal/models"
)

var (
	// ErrNotFound is returned when a lookup matches no record.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a write would violate a uniqueness or
	// reference constraint.
	ErrConflict = errors.New("conflicting record")
	// ErrNoCopies is returned by TakeCopy when every copy is on loan.
	ErrNoCopies = errors.New("no copies available")
	// ErrNotOpen is returned by CloseTransaction for a loan that is
	// already closed.
	ErrNotOpen = errors.New("transaction is not open")
)

// BookFilter narrows ListBooks. Zero values match everything.
type BookFilter struct {
	Query    string // case-insensitive match on title, author or isbn
	Category string
}

// Books is the catalog store.
type Books interface {
	ListBooks(ctx context.Context, filter BookFilter) ([]*models.Book, error)
	GetBook(ctx context.Context, id int64) (*models.Book, error)
	GetBookByISBN(ctx context.Context, isbn string) (*models.Book, error)
	CreateBook(ctx context.Context, book *models.Book) error
	// UpdateBook loads the book, applies fn and saves the result atomically.
	UpdateBook(ctx context.Context, id int64, fn func(*models.Book) error) (*models.Book, error)
	// DeleteBook fails with ErrConflict when the ledger references the book.
	DeleteBook(ctx context.Context, id int64) error
}

// Users is the identity store.
type Users interface {
	GetUser(ctx context.Context, id int64) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) error
}

// Ledger is the read side of the transaction ledger.
type Ledger interface {
	// ListUserTransactions returns a user's transactions with Book filled,
	// newest first.
	ListUserTransactions(ctx context.Context, userID int64) ([]*models.Transaction, error)
}

// Reports exposes the aggregate reads used by the report aggregator.
type Reports interface {
	CountBooks(ctx context.Context) (int, error)
	CountOpenTransactions(ctx context.Context) (int, error)
	CountOverdue(ctx context.Context, now time.Time) (int, error)
	// TransactionsBetween returns transactions borrowed or returned in [from, to].
	TransactionsBetween(ctx context.Context, from, to time.Time) ([]*models.Transaction, error)
	BooksByCategory(ctx context.Context) ([]models.CategoryCount, error)
	TopBorrowers(ctx context.Context, from, to time.Time, limit int) ([]models.BorrowerCount, error)
}

// Tx is the unit of work used by borrow and return. Every method observes
// and mutates state inside one atomic transaction.
type Tx interface {
	GetUser(ctx context.Context, id int64) (*models.User, error)
	GetBook(ctx context.Context, id int64) (*models.Book, error)
	GetTransaction(ctx context.Context, id int64) (*models.Transaction, error)
	// HasOpenTransaction reports whether the user already holds a borrowed
	// copy of the book.
	HasOpenTransaction(ctx context.Context, userID, bookID int64) (bool, error)
	// TakeCopy decrements available if it is positive, otherwise it
	// returns ErrNoCopies.
	TakeCopy(ctx context.Context, bookID int64) error
	// ReleaseCopy increments available if it is below quantity.
	ReleaseCopy(ctx context.Context, bookID int64) error
	// CreateTransaction inserts t and sets its ID.
	CreateTransaction(ctx context.Context, t *models.Transaction) error
	// CloseTransaction writes the terminal state of t. It fails with
	// ErrNotOpen when the stored row is not borrowed any more.
	CloseTransaction(ctx context.Context, t *models.Transaction) error
}

// Store is a complete persistence backend.
type Store interface {
	Books
	Users
	Ledger
	Reports

	// InTx runs fn inside a single atomic transaction. A non-nil error from
	// fn rolls everything back and is returned unchanged.
	InTx(ctx context.Context, fn func(tx Tx) error) error
	Ping(ctx context.Context) error
	Close() error
}
