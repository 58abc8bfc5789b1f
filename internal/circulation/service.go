// Package circulation implements the borrow and return workflow. Each
// operation runs in one store transaction so the ledger and the books'
// available counters never disagree.
package circulation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"time"

	"library-management-api/internal/events"
	"library-management-api/internal/metrics"
	"library-management-api/internal/models"
	"library-management-api/internal/store"
)

var (
	// ErrNotFound is returned when the user, the book or an open
	// transaction does not exist.
	ErrNotFound = errors.New("not found")
	// ErrUnavailable is returned when every copy of the book is on loan.
	ErrUnavailable = errors.New("book is not available")
	// ErrAlreadyBorrowed is returned when the user still holds a copy of
	// the book.
	ErrAlreadyBorrowed = errors.New("book is already borrowed by this user")
)

const (
	DefaultLoanPeriod = 14 * 24 * time.Hour
	DefaultFinePerDay = 1.0
)

// Service runs borrow and return against a store.Store.
type Service struct {
	store      store.Store
	loanPeriod time.Duration
	finePerDay float64
	now        func() time.Time
	logger     *slog.Logger
	metrics    *metrics.Metrics
	publisher  events.Publisher
}

// Option configures a Service.
type Option func(*Service)

// WithLoanPeriod sets how long a loan runs before it is overdue.
func WithLoanPeriod(d time.Duration) Option {
	return func(s *Service) { s.loanPeriod = d }
}

// WithFinePerDay sets the fine charged per whole day late.
func WithFinePerDay(amount float64) Option {
	return func(s *Service) { s.finePerDay = amount }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the logger for committed operations.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithMetrics records operation outcomes in m. A nil m disables it.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithPublisher sets where committed borrows and returns are announced.
func WithPublisher(p events.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// NewService creates a Service with a 14 day loan period and a fine of 1.0
// per whole day late unless overridden.
func NewService(st store.Store, opts ...Option) *Service {
	s := &Service{
		store:      st,
		loanPeriod: DefaultLoanPeriod,
		finePerDay: DefaultFinePerDay,
		now:        time.Now,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		publisher:  events.Nop{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) clock() time.Time {
	return s.now().UTC().Truncate(time.Second)
}

// Borrow lends one copy of bookID to userID.
func (s *Service) Borrow(ctx context.Context, userID, bookID int64) (*models.Transaction, error) {
	now := s.clock()
	tr := &models.Transaction{
		UserID:     userID,
		BookID:     bookID,
		BorrowDate: now,
		DueDate:    now.Add(s.loanPeriod),
		Status:     models.StatusBorrowed,
	}

	err := s.store.InTx(ctx, func(tx store.Tx) error {
		if _, err := tx.GetUser(ctx, userID); err != nil {
			return notFound(err, "user %d", userID)
		}
		book, err := tx.GetBook(ctx, bookID)
		if err != nil {
			return notFound(err, "book %d", bookID)
		}

		open, err := tx.HasOpenTransaction(ctx, userID, bookID)
		if err != nil {
			return err
		}
		if open {
			return fmt.Errorf("%w: %q", ErrAlreadyBorrowed, book.Title)
		}

		if err := tx.TakeCopy(ctx, bookID); err != nil {
			if errors.Is(err, store.ErrNoCopies) {
				return fmt.Errorf("%w: %q", ErrUnavailable, book.Title)
			}
			return err
		}
		if err := tx.CreateTransaction(ctx, tr); err != nil {
			// the open-loan index catches a concurrent borrow by the same user
			if errors.Is(err, store.ErrConflict) {
				return fmt.Errorf("%w: %q", ErrAlreadyBorrowed, book.Title)
			}
			return err
		}

		tr.Book = &models.BookSummary{Title: book.Title, Author: book.Author}
		return nil
	})

	s.metrics.Circulation("borrow", outcome(err))
	if err != nil {
		return nil, err
	}

	s.logger.Info("book borrowed",
		"transaction_id", tr.ID, "user_id", userID, "book_id", bookID, "due_date", tr.DueDate)
	s.publish(ctx, events.SubjectBorrowed, tr)
	return tr, nil
}

// Return closes an open transaction.
func (s *Service) Return(ctx context.Context, transactionID int64) (*models.Transaction, error) {
	return s.ReturnChecked(ctx, transactionID, nil)
}

// ReturnChecked is Return with a check run against the loaded transaction
// before anything is written. An error from check aborts the return and is
// passed through unchanged.
func (s *Service) ReturnChecked(ctx context.Context, transactionID int64, check func(*models.Transaction) error) (*models.Transaction, error) {
	now := s.clock()
	var tr *models.Transaction

	err := s.store.InTx(ctx, func(tx store.Tx) error {
		t, err := tx.GetTransaction(ctx, transactionID)
		if err != nil {
			return notFound(err, "transaction %d", transactionID)
		}
		if !t.Status.IsOpen() {
			return fmt.Errorf("%w: transaction %d is already %s", ErrNotFound, transactionID, t.Status)
		}
		if check != nil {
			if err := check(t); err != nil {
				return err
			}
		}

		t.ReturnDate = &now
		t.Status = models.StatusReturned
		t.Fine = roundFine(t.CalculateFine(now, s.finePerDay))

		if err := tx.CloseTransaction(ctx, t); err != nil {
			if errors.Is(err, store.ErrNotOpen) {
				return fmt.Errorf("%w: transaction %d is not open", ErrNotFound, transactionID)
			}
			return err
		}
		if err := tx.ReleaseCopy(ctx, t.BookID); err != nil {
			return err
		}

		if book, err := tx.GetBook(ctx, t.BookID); err == nil {
			t.Book = &models.BookSummary{Title: book.Title, Author: book.Author}
		}
		tr = t
		return nil
	})

	s.metrics.Circulation("return", outcome(err))
	if err != nil {
		return nil, err
	}

	s.logger.Info("book returned",
		"transaction_id", tr.ID, "user_id", tr.UserID, "book_id", tr.BookID, "fine", tr.Fine)
	s.publish(ctx, events.SubjectReturned, tr)
	return tr, nil
}

// ListForUser returns every transaction of the user with the book's title
// and author, newest first.
func (s *Service) ListForUser(ctx context.Context, userID int64) ([]*models.Transaction, error) {
	list, err := s.store.ListUserTransactions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return list, nil
}

func (s *Service) publish(ctx context.Context, subject string, tr *models.Transaction) {
	if err := s.publisher.Publish(ctx, subject, tr); err != nil {
		s.logger.Warn("publish circulation event", "subject", subject, "transaction_id", tr.ID, "error", err)
	}
}

func notFound(err error, format string, args ...interface{}) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: "+format, append([]interface{}{ErrNotFound}, args...)...)
	}
	return err
}

func outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.Is(err, ErrNotFound):
		return metrics.OutcomeNotFound
	case errors.Is(err, ErrUnavailable):
		return metrics.OutcomeUnavailable
	case errors.Is(err, ErrAlreadyBorrowed):
		return metrics.OutcomeAlreadyBorrowed
	default:
		return metrics.OutcomeError
	}
}

func roundFine(f float64) float64 {
	return math.Round(f*100) / 100
}
