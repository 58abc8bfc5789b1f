package firebase

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"library-management-api/internal/circulation"
	"library-management-api/internal/models"
	"library-management-api/internal/report"
	"library-management-api/internal/store"
)

// newEmulatorStore connects to the Firestore emulator. Every test uses its
// own project so runs do not share data.
func newEmulatorStore(t *testing.T) *Store {
	t.Helper()

	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}

	ctx := context.Background()
	fs, err := firestore.NewClient(ctx, "test-"+uuid.NewString()[:8])
	require.NoError(t, err)

	s := NewStore(fs)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestFirestoreCatalog(t *testing.T) {
	s := newEmulatorStore(t)
	ctx := context.Background()

	a := &models.Book{Title: "Beta", Author: "X", ISBN: "1", Category: "Fiction", Quantity: 2, Available: 2}
	b := &models.Book{Title: "Alpha", Author: "Y", ISBN: "2", Category: "History", Quantity: 1, Available: 1}
	require.NoError(t, s.CreateBook(ctx, a))
	require.NoError(t, s.CreateBook(ctx, b))
	assert.Equal(t, int64(1), a.ID)
	assert.Equal(t, int64(2), b.ID)

	err := s.CreateBook(ctx, &models.Book{Title: "Dup", ISBN: "1"})
	assert.ErrorIs(t, err, store.ErrConflict)

	list, err := s.ListBooks(ctx, store.BookFilter{})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Alpha", list[0].Title)

	list, err = s.ListBooks(ctx, store.BookFilter{Query: "bet"})
	require.NoError(t, err)
	require.Len(t, list, 1)

	got, err := s.GetBookByISBN(ctx, "2")
	require.NoError(t, err)
	assert.Equal(t, b.ID, got.ID)

	updated, err := s.UpdateBook(ctx, a.ID, func(book *models.Book) error {
		return book.Resize(4)
	})
	require.NoError(t, err)
	assert.Equal(t, 4, updated.Available)

	_, err = s.GetBook(ctx, 99)
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.DeleteBook(ctx, b.ID))
	_, err = s.GetBook(ctx, b.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	n, err := s.CountBooks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestFirestoreUsers(t *testing.T) {
	s := newEmulatorStore(t)
	ctx := context.Background()

	u := &models.User{Name: "Ada", Email: " Ada@Example.com", PasswordHash: "h", Role: models.RoleStudent}
	require.NoError(t, s.CreateUser(ctx, u))
	assert.Equal(t, "ada@example.com", u.Email)

	err := s.CreateUser(ctx, &models.User{Name: "Other", Email: "ADA@example.com", Role: models.RoleStudent})
	assert.ErrorIs(t, err, store.ErrConflict)

	got, err := s.GetUserByEmail(ctx, "ada@EXAMPLE.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, "h", got.PasswordHash)
}

func TestFirestoreCirculation(t *testing.T) {
	s := newEmulatorStore(t)
	ctx := context.Background()

	book := &models.Book{Title: "Solo", Author: "Z", ISBN: "9", Category: "Fiction", Quantity: 1, Available: 1}
	require.NoError(t, s.CreateBook(ctx, book))
	var users []*models.User
	for i := 0; i < 2; i++ {
		u := &models.User{Name: "U", Email: fmt.Sprintf("u%d@example.com", i), Role: models.RoleStudent}
		require.NoError(t, s.CreateUser(ctx, u))
		users = append(users, u)
	}

	svc := circulation.NewService(s)

	tr, err := svc.Borrow(ctx, users[0].ID, book.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusBorrowed, tr.Status)

	_, err = svc.Borrow(ctx, users[0].ID, book.ID)
	assert.ErrorIs(t, err, circulation.ErrAlreadyBorrowed)

	_, err = svc.Borrow(ctx, users[1].ID, book.ID)
	assert.ErrorIs(t, err, circulation.ErrUnavailable)

	got, err := s.GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Zero(t, got.Available)

	err = s.DeleteBook(ctx, book.ID)
	assert.ErrorIs(t, err, store.ErrConflict)

	returned, err := svc.Return(ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusReturned, returned.Status)

	_, err = svc.Return(ctx, tr.ID)
	assert.ErrorIs(t, err, circulation.ErrNotFound)

	got, err = s.GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Available)

	list, err := svc.ListForUser(ctx, users[0].ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.NotNil(t, list[0].Book)
	assert.Equal(t, "Solo", list[0].Book.Title)
	assert.NotNil(t, list[0].ReturnDate)
}

func TestFirestoreReport(t *testing.T) {
	s := newEmulatorStore(t)
	ctx := context.Background()

	book := &models.Book{Title: "T", Author: "A", ISBN: "5", Category: "Science", Quantity: 3, Available: 3}
	require.NoError(t, s.CreateBook(ctx, book))
	u := &models.User{Name: "Reader", Email: "r@example.com", Role: models.RoleTeacher}
	require.NoError(t, s.CreateUser(ctx, u))

	svc := circulation.NewService(s, circulation.WithLoanPeriod(-time.Hour))
	_, err := svc.Borrow(ctx, u.ID, book.ID)
	require.NoError(t, err)

	rep, err := report.NewAggregator(s, nil).Generate(ctx, report.RangeWeek)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.TotalBooks)
	assert.Equal(t, 1, rep.ActiveBorrowings)
	assert.Equal(t, 1, rep.OverdueBooks)
	assert.Equal(t, []models.CategoryCount{{Category: "Science", Value: 1}}, rep.BooksByCategory)
	require.Len(t, rep.TopBorrowers, 1)
	assert.Equal(t, "Reader", rep.TopBorrowers[0].Name)
}
