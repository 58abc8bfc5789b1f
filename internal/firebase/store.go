package firebase

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/firestore/apiv1/firestorepb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"library-management-api/internal/store"
)

const (
	BooksCollection        = "books"
	UsersCollection        = "users"
	TransactionsCollection = "transactions"
	countersCollection     = "counters"
)

// Store implements store.Store on Firestore. Documents are keyed by the
// decimal form of their numeric id; ids come from per collection counter
// documents incremented in the same transaction as the insert.
type Store struct {
	fs  *firestore.Client
	now func() time.Time
}

var _ store.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithClock replaces the clock used for createdAt/updatedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore returns a Store on fs. The caller keeps ownership of fs unless
// it calls Close.
func NewStore(fs *firestore.Client, opts ...Option) *Store {
	s := &Store{fs: fs, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ping reads a counter document to check connectivity.
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.fs.Collection(countersCollection).Doc(BooksCollection).Get(ctx)
	if err != nil && status.Code(err) != codes.NotFound {
		return err
	}
	return nil
}

// Close closes the Firestore client.
func (s *Store) Close() error {
	return s.fs.Close()
}

func (s *Store) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

func (s *Store) doc(collection string, id int64) *firestore.DocumentRef {
	return s.fs.Collection(collection).Doc(strconv.FormatInt(id, 10))
}

// nextID reads the next free id of collection inside tx. The caller must
// write counter(id) to the returned ref in the same transaction.
func (s *Store) nextID(tx *firestore.Transaction, collection string) (int64, *firestore.DocumentRef, error) {
	ref := s.fs.Collection(countersCollection).Doc(collection)

	snap, err := tx.Get(ref)
	if status.Code(err) == codes.NotFound {
		return 1, ref, nil
	}
	if err != nil {
		return 0, nil, fmt.Errorf("read %s counter: %w", collection, err)
	}

	n, err := snap.DataAt("next")
	if err != nil {
		return 0, nil, fmt.Errorf("read %s counter: %w", collection, err)
	}
	next, ok := n.(int64)
	if !ok || next < 1 {
		return 0, nil, fmt.Errorf("corrupt %s counter: %v", collection, n)
	}
	return next, ref, nil
}

func counter(id int64) map[string]interface{} {
	return map[string]interface{}{"next": id + 1}
}

func (s *Store) count(ctx context.Context, q firestore.Query) (int, error) {
	res, err := q.NewAggregationQuery().WithCount("n").Get(ctx)
	if err != nil {
		return 0, err
	}
	v, ok := res["n"].(*firestorepb.Value)
	if !ok {
		return 0, fmt.Errorf("unexpected count result %T", res["n"])
	}
	return int(v.GetIntegerValue()), nil
}

// mapError translates Firestore status codes into store errors.
func mapError(err error) error {
	switch status.Code(err) {
	case codes.NotFound:
		return fmt.Errorf("%w: %v", store.ErrNotFound, err)
	case codes.AlreadyExists:
		return fmt.Errorf("%w: %v", store.ErrConflict, err)
	}
	return err
}
