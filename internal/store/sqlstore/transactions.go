package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jmoiron/sqlx"

	"library-management-api/internal/models"
	"library-management-api/internal/store"
)

const transactionsTable = "transactions"

var transactionColumns = []string{
	"id", "user_id", "book_id", "borrow_date", "due_date", "return_date",
	"status", "fine", "created_at", "updated_at",
}

// transactionRow is a ledger row joined with the borrowed book.
type transactionRow struct {
	models.Transaction
	BookTitle  string `db:"book_title"`
	BookAuthor string `db:"book_author"`
}

func (r *transactionRow) model() *models.Transaction {
	t := r.Transaction
	t.Book = &models.BookSummary{Title: r.BookTitle, Author: r.BookAuthor}
	return &t
}

// ListUserTransactions returns the user's ledger, newest first.
func (s *Store) ListUserTransactions(ctx context.Context, userID int64) ([]*models.Transaction, error) {
	ds := s.from(goqu.T(transactionsTable).As("t")).
		Join(goqu.T(booksTable).As("b"), goqu.On(goqu.I("t.book_id").Eq(goqu.I("b.id")))).
		Select(append(columns("t", transactionColumns),
			goqu.I("b.title").As("book_title"),
			goqu.I("b.author").As("book_author"),
		)...).
		Where(goqu.I("t.user_id").Eq(userID)).
		Order(goqu.I("t.borrow_date").Desc(), goqu.I("t.id").Desc())

	var rows []transactionRow
	if err := selectAll(ctx, s.db, &rows, ds); err != nil {
		return nil, fmt.Errorf("list transactions of user %d: %w", userID, err)
	}

	out := make([]*models.Transaction, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].model())
	}
	return out, nil
}

// InTx runs fn in a database transaction. On SQLite the transaction takes the
// write lock up front (_txlock=immediate) so concurrent borrows queue instead
// of failing.
func (s *Store) InTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		return fn(&sqlTx{s: s, tx: tx})
	})
}

type sqlTx struct {
	s  *Store
	tx *sqlx.Tx
}

var _ store.Tx = (*sqlTx)(nil)

func (t *sqlTx) GetUser(ctx context.Context, id int64) (*models.User, error) {
	return t.s.getUser(ctx, t.tx, id)
}

func (t *sqlTx) GetBook(ctx context.Context, id int64) (*models.Book, error) {
	return t.s.getBook(ctx, t.tx, id, false)
}

func (t *sqlTx) GetTransaction(ctx context.Context, id int64) (*models.Transaction, error) {
	ds := t.s.from(transactionsTable).Select(columns("", transactionColumns)...).Where(goqu.C("id").Eq(id))
	if t.s.postgres {
		ds = ds.ForUpdate(exp.Wait)
	}

	var tr models.Transaction
	if err := get(ctx, t.tx, &tr, ds); err != nil {
		return nil, fmt.Errorf("get transaction %d: %w", id, err)
	}
	return &tr, nil
}

func (t *sqlTx) HasOpenTransaction(ctx context.Context, userID, bookID int64) (bool, error) {
	ds := t.s.from(transactionsTable).Select(goqu.COUNT(goqu.Star())).Where(
		goqu.C("user_id").Eq(userID),
		goqu.C("book_id").Eq(bookID),
		goqu.C("status").Eq(string(models.StatusBorrowed)),
	)

	var n int
	if err := get(ctx, t.tx, &n, ds); err != nil {
		return false, fmt.Errorf("check open loans of user %d on book %d: %w", userID, bookID, err)
	}
	return n > 0, nil
}

func (t *sqlTx) TakeCopy(ctx context.Context, bookID int64) error {
	ds := t.s.update(booksTable).
		Set(goqu.Record{
			"available":  goqu.L("available - 1"),
			"updated_at": t.s.timestamp(),
		}).
		Where(goqu.C("id").Eq(bookID), goqu.C("available").Gt(0))

	n, err := exec(ctx, t.tx, ds)
	if err != nil {
		return fmt.Errorf("take copy of book %d: %w", bookID, err)
	}
	if n == 0 {
		return store.ErrNoCopies
	}
	return nil
}

func (t *sqlTx) ReleaseCopy(ctx context.Context, bookID int64) error {
	ds := t.s.update(booksTable).
		Set(goqu.Record{
			"available":  goqu.L("available + 1"),
			"updated_at": t.s.timestamp(),
		}).
		Where(goqu.C("id").Eq(bookID), goqu.C("available").Lt(goqu.C("quantity")))

	if _, err := exec(ctx, t.tx, ds); err != nil {
		return fmt.Errorf("release copy of book %d: %w", bookID, err)
	}
	return nil
}

func (t *sqlTx) CreateTransaction(ctx context.Context, tr *models.Transaction) error {
	now := t.s.timestamp()
	tr.CreatedAt = now
	tr.UpdatedAt = now

	ds := t.s.insert(transactionsTable).Rows(goqu.Record{
		"user_id":     tr.UserID,
		"book_id":     tr.BookID,
		"borrow_date": tr.BorrowDate,
		"due_date":    tr.DueDate,
		"return_date": nullTime(tr.ReturnDate),
		"status":      string(tr.Status),
		"fine":        tr.Fine,
		"created_at":  now,
		"updated_at":  now,
	})

	id, err := t.s.insertID(ctx, t.tx, ds)
	if err != nil {
		return fmt.Errorf("create transaction: %w", err)
	}
	tr.ID = id
	return nil
}

func (t *sqlTx) CloseTransaction(ctx context.Context, tr *models.Transaction) error {
	tr.UpdatedAt = t.s.timestamp()

	ds := t.s.update(transactionsTable).
		Set(goqu.Record{
			"return_date": nullTime(tr.ReturnDate),
			"status":      string(tr.Status),
			"fine":        tr.Fine,
			"updated_at":  tr.UpdatedAt,
		}).
		Where(goqu.C("id").Eq(tr.ID), goqu.C("status").Eq(string(models.StatusBorrowed)))

	n, err := exec(ctx, t.tx, ds)
	if err != nil {
		return fmt.Errorf("close transaction %d: %w", tr.ID, err)
	}
	if n == 0 {
		return store.ErrNotOpen
	}
	return nil
}

func nullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Truncate(time.Microsecond)
}
