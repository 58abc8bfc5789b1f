package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"

	"library-management-api/internal/models"
)

func (s *Store) count(ctx context.Context, ds *goqu.SelectDataset) (int, error) {
	var n int
	if err := get(ctx, s.db, &n, ds.Select(goqu.COUNT(goqu.Star()))); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *Store) CountBooks(ctx context.Context) (int, error) {
	n, err := s.count(ctx, s.from(booksTable))
	if err != nil {
		return 0, fmt.Errorf("count books: %w", err)
	}
	return n, nil
}

func (s *Store) CountOpenTransactions(ctx context.Context) (int, error) {
	n, err := s.count(ctx, s.from(transactionsTable).
		Where(goqu.C("status").Eq(string(models.StatusBorrowed))))
	if err != nil {
		return 0, fmt.Errorf("count open transactions: %w", err)
	}
	return n, nil
}

// CountOverdue counts open loans whose due date is before now.
func (s *Store) CountOverdue(ctx context.Context, now time.Time) (int, error) {
	n, err := s.count(ctx, s.from(transactionsTable).Where(
		goqu.C("status").Eq(string(models.StatusBorrowed)),
		goqu.C("due_date").Lt(now.UTC()),
	))
	if err != nil {
		return 0, fmt.Errorf("count overdue transactions: %w", err)
	}
	return n, nil
}

// TransactionsBetween returns transactions borrowed or returned inside
// [from, to], ordered by borrow date.
func (s *Store) TransactionsBetween(ctx context.Context, from, to time.Time) ([]*models.Transaction, error) {
	span := goqu.Range(from.UTC(), to.UTC())

	ds := s.from(transactionsTable).
		Select(columns("", transactionColumns)...).
		Where(goqu.Or(
			goqu.C("borrow_date").Between(span),
			goqu.C("return_date").Between(span),
		)).
		Order(goqu.C("borrow_date").Asc(), goqu.C("id").Asc())

	out := []*models.Transaction{}
	if err := selectAll(ctx, s.db, &out, ds); err != nil {
		return nil, fmt.Errorf("list transactions between %s and %s: %w",
			from.Format(time.RFC3339), to.Format(time.RFC3339), err)
	}
	return out, nil
}

// BooksByCategory counts catalog entries per category.
func (s *Store) BooksByCategory(ctx context.Context) ([]models.CategoryCount, error) {
	ds := s.from(booksTable).
		Select(goqu.C("category"), goqu.COUNT(goqu.Star()).As("value")).
		GroupBy(goqu.C("category")).
		Order(goqu.C("category").Asc())

	out := []models.CategoryCount{}
	if err := selectAll(ctx, s.db, &out, ds); err != nil {
		return nil, fmt.Errorf("count books by category: %w", err)
	}
	return out, nil
}

// TopBorrowers ranks users by the number of borrows in [from, to]. Ties are
// broken by user id.
func (s *Store) TopBorrowers(ctx context.Context, from, to time.Time, limit int) ([]models.BorrowerCount, error) {
	borrows := goqu.COUNT(goqu.I("t.id"))

	ds := s.from(goqu.T(transactionsTable).As("t")).
		Join(goqu.T(usersTable).As("u"), goqu.On(goqu.I("t.user_id").Eq(goqu.I("u.id")))).
		Select(
			goqu.I("u.id").As("user_id"),
			goqu.I("u.name").As("name"),
			goqu.I("u.email").As("email"),
			borrows.As("count"),
		).
		Where(goqu.I("t.borrow_date").Between(goqu.Range(from.UTC(), to.UTC()))).
		GroupBy(goqu.I("u.id"), goqu.I("u.name"), goqu.I("u.email")).
		Order(borrows.Desc(), goqu.I("u.id").Asc())

	if limit > 0 {
		ds = ds.Limit(uint(limit))
	}

	out := []models.BorrowerCount{}
	if err := selectAll(ctx, s.db, &out, ds); err != nil {
		return nil, fmt.Errorf("top borrowers: %w", err)
	}
	return out, nil
}
