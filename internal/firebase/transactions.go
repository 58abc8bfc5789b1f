package firebase

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"cloud.google.com/go/firestore"

	"library-management-api/internal/models"
	"library-management-api/internal/store"
)

func decodeTransaction(snap *firestore.DocumentSnapshot) (*models.Transaction, error) {
	var tr models.Transaction
	if err := snap.DataTo(&tr); err != nil {
		return nil, fmt.Errorf("decode transaction %s: %w", snap.Ref.ID, err)
	}
	return &tr, nil
}

func newestFirst(a, b *models.Transaction) int {
	return cmp.Or(b.BorrowDate.Compare(a.BorrowDate), cmp.Compare(b.ID, a.ID))
}

// ListUserTransactions returns a user's transactions with Book filled,
// newest first.
func (s *Store) ListUserTransactions(ctx context.Context, userID int64) ([]*models.Transaction, error) {
	docs, err := s.fs.Collection(TransactionsCollection).Where("user_id", "==", userID).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("list transactions of user %d: %w", userID, err)
	}

	out := make([]*models.Transaction, 0, len(docs))
	refs := make([]*firestore.DocumentRef, 0, len(docs))
	seen := make(map[int64]bool)
	for _, doc := range docs {
		tr, err := decodeTransaction(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, tr)
		if !seen[tr.BookID] {
			seen[tr.BookID] = true
			refs = append(refs, s.doc(BooksCollection, tr.BookID))
		}
	}

	if len(refs) > 0 {
		snaps, err := s.fs.GetAll(ctx, refs)
		if err != nil {
			return nil, fmt.Errorf("load books: %w", err)
		}
		books := make(map[int64]*models.BookSummary, len(snaps))
		for _, snap := range snaps {
			if !snap.Exists() {
				continue
			}
			b, err := decodeBook(snap)
			if err != nil {
				return nil, err
			}
			books[b.ID] = &models.BookSummary{Title: b.Title, Author: b.Author}
		}
		for _, tr := range out {
			tr.Book = books[tr.BookID]
		}
	}

	slices.SortFunc(out, newestFirst)
	return out, nil
}

// InTx runs fn in a Firestore transaction. Firestore requires every read to
// precede every write, so the unit of work caches what it reads and stages
// its writes until fn returns. Firestore may run fn more than once.
func (s *Store) InTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return s.fs.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		t := &fsTx{
			s:     s,
			tx:    tx,
			books: make(map[int64]*models.Book),
			txs:   make(map[int64]*models.Transaction),
		}
		if err := fn(t); err != nil {
			return err
		}
		return t.flush()
	})
}

type stagedWrite struct {
	ref    *firestore.DocumentRef
	data   interface{}
	create bool
}

type fsTx struct {
	s  *Store
	tx *firestore.Transaction

	books  map[int64]*models.Book
	txs    map[int64]*models.Transaction
	writes []stagedWrite
	staged map[string]int
}

var _ store.Tx = (*fsTx)(nil)

// stage records a write. A later write to the same document replaces the
// earlier one.
func (t *fsTx) stage(ref *firestore.DocumentRef, data interface{}, create bool) {
	if t.staged == nil {
		t.staged = make(map[string]int)
	}
	if i, ok := t.staged[ref.Path]; ok {
		t.writes[i].data = data
		return
	}
	t.staged[ref.Path] = len(t.writes)
	t.writes = append(t.writes, stagedWrite{ref: ref, data: data, create: create})
}

func (t *fsTx) flush() error {
	for _, w := range t.writes {
		var err error
		if w.create {
			err = t.tx.Create(w.ref, w.data)
		} else {
			err = t.tx.Set(w.ref, w.data)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (t *fsTx) GetUser(_ context.Context, id int64) (*models.User, error) {
	snap, err := t.tx.Get(t.s.doc(UsersCollection, id))
	if err != nil {
		return nil, fmt.Errorf("get user %d: %w", id, mapError(err))
	}
	return decodeUser(snap)
}

func (t *fsTx) book(id int64) (*models.Book, error) {
	if b, ok := t.books[id]; ok {
		return b, nil
	}
	snap, err := t.tx.Get(t.s.doc(BooksCollection, id))
	if err != nil {
		return nil, fmt.Errorf("get book %d: %w", id, mapError(err))
	}
	b, err := decodeBook(snap)
	if err != nil {
		return nil, err
	}
	t.books[id] = b
	return b, nil
}

func (t *fsTx) GetBook(_ context.Context, id int64) (*models.Book, error) {
	b, err := t.book(id)
	if err != nil {
		return nil, err
	}
	cp := *b
	return &cp, nil
}

func (t *fsTx) GetTransaction(_ context.Context, id int64) (*models.Transaction, error) {
	tr, ok := t.txs[id]
	if !ok {
		snap, err := t.tx.Get(t.s.doc(TransactionsCollection, id))
		if err != nil {
			return nil, fmt.Errorf("get transaction %d: %w", id, mapError(err))
		}
		if tr, err = decodeTransaction(snap); err != nil {
			return nil, err
		}
		t.txs[id] = tr
	}
	cp := *tr
	return &cp, nil
}

func (t *fsTx) HasOpenTransaction(_ context.Context, userID, bookID int64) (bool, error) {
	q := t.s.fs.Collection(TransactionsCollection).
		Where("user_id", "==", userID).
		Where("book_id", "==", bookID).
		Where("status", "==", string(models.StatusBorrowed)).
		Limit(1)

	docs, err := t.tx.Documents(q).GetAll()
	if err != nil {
		return false, fmt.Errorf("check open loans of user %d on book %d: %w", userID, bookID, mapError(err))
	}
	return len(docs) > 0, nil
}

func (t *fsTx) TakeCopy(_ context.Context, bookID int64) error {
	b, err := t.book(bookID)
	if err != nil {
		return err
	}
	if b.Available <= 0 {
		return store.ErrNoCopies
	}
	b.Available--
	b.UpdatedAt = t.s.timestamp()
	t.stage(t.s.doc(BooksCollection, bookID), b, false)
	return nil
}

func (t *fsTx) ReleaseCopy(_ context.Context, bookID int64) error {
	b, err := t.book(bookID)
	if err != nil {
		return err
	}
	if b.Available >= b.Quantity {
		return nil
	}
	b.Available++
	b.UpdatedAt = t.s.timestamp()
	t.stage(t.s.doc(BooksCollection, bookID), b, false)
	return nil
}

func (t *fsTx) CreateTransaction(_ context.Context, tr *models.Transaction) error {
	id, counterRef, err := t.s.nextID(t.tx, TransactionsCollection)
	if err != nil {
		return err
	}

	now := t.s.timestamp()
	tr.ID = id
	tr.CreatedAt = now
	tr.UpdatedAt = now

	row := *tr
	row.Book = nil
	t.stage(counterRef, counter(id), false)
	t.stage(t.s.doc(TransactionsCollection, id), &row, true)
	t.txs[id] = &row
	return nil
}

func (t *fsTx) CloseTransaction(ctx context.Context, tr *models.Transaction) error {
	stored, err := t.GetTransaction(ctx, tr.ID)
	if err != nil {
		return err
	}
	if !stored.Status.IsOpen() {
		return store.ErrNotOpen
	}

	tr.UpdatedAt = t.s.timestamp()
	row := *tr
	row.Book = nil
	t.stage(t.s.doc(TransactionsCollection, tr.ID), &row, false)
	t.txs[tr.ID] = &row
	return nil
}
