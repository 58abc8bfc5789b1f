package firebase

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"cloud.google.com/go/firestore"

	"library-management-api/internal/models"
)

func (s *Store) CountBooks(ctx context.Context) (int, error) {
	n, err := s.count(ctx, s.fs.Collection(BooksCollection).Query)
	if err != nil {
		return 0, fmt.Errorf("count books: %w", err)
	}
	return n, nil
}

func (s *Store) openTransactions() firestore.Query {
	return s.fs.Collection(TransactionsCollection).Where("status", "==", string(models.StatusBorrowed))
}

func (s *Store) CountOpenTransactions(ctx context.Context) (int, error) {
	n, err := s.count(ctx, s.openTransactions())
	if err != nil {
		return 0, fmt.Errorf("count open transactions: %w", err)
	}
	return n, nil
}

// CountOverdue counts open loans due before now. An equality filter on
// status combined with a range on due_date would need a composite index, so
// the due date is checked here.
func (s *Store) CountOverdue(ctx context.Context, now time.Time) (int, error) {
	docs, err := s.openTransactions().Documents(ctx).GetAll()
	if err != nil {
		return 0, fmt.Errorf("count overdue: %w", err)
	}

	n := 0
	for _, doc := range docs {
		tr, err := decodeTransaction(doc)
		if err != nil {
			return 0, err
		}
		if tr.DueDate.Before(now) {
			n++
		}
	}
	return n, nil
}

func (s *Store) transactionsIn(ctx context.Context, field string, from, to time.Time) ([]*models.Transaction, error) {
	docs, err := s.fs.Collection(TransactionsCollection).
		Where(field, ">=", from).
		Where(field, "<=", to).
		Documents(ctx).GetAll()
	if err != nil {
		return nil, err
	}

	out := make([]*models.Transaction, 0, len(docs))
	for _, doc := range docs {
		tr, err := decodeTransaction(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, tr)
	}
	return out, nil
}

// TransactionsBetween returns transactions borrowed or returned in [from, to]
// ordered by id.
func (s *Store) TransactionsBetween(ctx context.Context, from, to time.Time) ([]*models.Transaction, error) {
	byID := make(map[int64]*models.Transaction)
	for _, field := range []string{"borrow_date", "return_date"} {
		list, err := s.transactionsIn(ctx, field, from, to)
		if err != nil {
			return nil, fmt.Errorf("transactions by %s: %w", field, err)
		}
		for _, tr := range list {
			byID[tr.ID] = tr
		}
	}

	out := make([]*models.Transaction, 0, len(byID))
	for _, tr := range byID {
		out = append(out, tr)
	}
	slices.SortFunc(out, func(a, b *models.Transaction) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (s *Store) BooksByCategory(ctx context.Context) ([]models.CategoryCount, error) {
	docs, err := s.fs.Collection(BooksCollection).Select("category").Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("books by category: %w", err)
	}

	counts := make(map[string]int)
	for _, doc := range docs {
		c, err := doc.DataAt("category")
		if err != nil {
			return nil, fmt.Errorf("books by category: %w", err)
		}
		category, _ := c.(string)
		counts[category]++
	}

	out := make([]models.CategoryCount, 0, len(counts))
	for category, n := range counts {
		out = append(out, models.CategoryCount{Category: category, Value: n})
	}
	slices.SortFunc(out, func(a, b models.CategoryCount) int { return cmp.Compare(a.Category, b.Category) })
	return out, nil
}

// TopBorrowers ranks users by borrows in [from, to]: count descending, then
// user id ascending.
func (s *Store) TopBorrowers(ctx context.Context, from, to time.Time, limit int) ([]models.BorrowerCount, error) {
	list, err := s.transactionsIn(ctx, "borrow_date", from, to)
	if err != nil {
		return nil, fmt.Errorf("top borrowers: %w", err)
	}

	counts := make(map[int64]int)
	for _, tr := range list {
		counts[tr.UserID]++
	}

	ranked := make([]models.BorrowerCount, 0, len(counts))
	for id, n := range counts {
		ranked = append(ranked, models.BorrowerCount{UserID: id, Count: n})
	}
	slices.SortFunc(ranked, func(a, b models.BorrowerCount) int {
		return cmp.Or(cmp.Compare(b.Count, a.Count), cmp.Compare(a.UserID, b.UserID))
	})
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	if len(ranked) == 0 {
		return ranked, nil
	}

	refs := make([]*firestore.DocumentRef, len(ranked))
	for i, b := range ranked {
		refs[i] = s.doc(UsersCollection, b.UserID)
	}
	snaps, err := s.fs.GetAll(ctx, refs)
	if err != nil {
		return nil, fmt.Errorf("load top borrowers: %w", err)
	}
	for i, snap := range snaps {
		if !snap.Exists() {
			continue
		}
		u, err := decodeUser(snap)
		if err != nil {
			return nil, err
		}
		ranked[i].Name = u.Name
		ranked[i].Email = u.Email
	}
	return ranked, nil
}
