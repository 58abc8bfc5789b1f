package report

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"library-management-api/internal/circulation"
	"library-management-api/internal/models"
	"library-management-api/internal/store/sqlstore"
)

var now = time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

func TestParseRange(t *testing.T) {
	assert.Equal(t, RangeWeek, ParseRange("week"))
	assert.Equal(t, RangeQuarter, ParseRange("quarter"))
	assert.Equal(t, RangeYear, ParseRange("year"))
	assert.Equal(t, RangeMonth, ParseRange("month"))
	assert.Equal(t, RangeMonth, ParseRange(""))
	assert.Equal(t, RangeMonth, ParseRange("decade"))
}

func TestRangeStart(t *testing.T) {
	assert.Equal(t, now.AddDate(0, 0, -7), RangeWeek.Start(now))
	assert.Equal(t, time.Date(2026, 5, 15, 12, 0, 0, 0, time.UTC), RangeMonth.Start(now))
	assert.Equal(t, time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC), RangeQuarter.Start(now))
	assert.Equal(t, time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC), RangeYear.Start(now))
}

func TestTrend(t *testing.T) {
	day := func(d, h int) time.Time { return time.Date(2026, 6, d, h, 0, 0, 0, time.UTC) }
	ret := func(t time.Time) *time.Time { return &t }

	txs := []*models.Transaction{
		{BorrowDate: day(10, 9), Status: models.StatusBorrowed},
		{BorrowDate: day(10, 23), ReturnDate: ret(day(12, 1)), Status: models.StatusReturned},
		{BorrowDate: day(1, 8), ReturnDate: ret(day(10, 10)), Status: models.StatusReturned}, // borrowed before the window
		{BorrowDate: day(12, 5), Status: models.StatusBorrowed},
	}

	got := Trend(txs, day(8, 0), now)
	assert.Equal(t, []TrendPoint{
		{Date: "2026-06-10", Name: "2026-06-10", Borrowed: 2, Returned: 1},
		{Date: "2026-06-12", Name: "2026-06-12", Borrowed: 1, Returned: 1},
	}, got)

	empty := Trend(nil, day(8, 0), now)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestGenerateEmptyWeek(t *testing.T) {
	st, err := sqlstore.Open(context.Background(), sqlstore.DriverSQLite, filepath.Join(t.TempDir(), "r.db"))
	require.NoError(t, err)
	defer st.Close()

	rep, err := NewAggregator(st, func() time.Time { return now }).Generate(context.Background(), RangeWeek)
	require.NoError(t, err)

	assert.Equal(t, RangeWeek, rep.Range)
	assert.Zero(t, rep.ActiveBorrowings)
	assert.Zero(t, rep.OverdueBooks)
	assert.NotNil(t, rep.BorrowingTrend)
	assert.Empty(t, rep.BorrowingTrend)
	assert.NotNil(t, rep.BooksByCategory)
	assert.NotNil(t, rep.TopBorrowers)
}

func TestGenerate(t *testing.T) {
	ctx := context.Background()
	st, err := sqlstore.Open(ctx, sqlstore.DriverSQLite, filepath.Join(t.TempDir(), "r.db"))
	require.NoError(t, err)
	defer st.Close()

	clock := now.AddDate(0, 0, -20)
	svc := circulation.NewService(st, circulation.WithClock(func() time.Time { return clock }))

	alice := &models.User{Name: "Alice", Email: "alice@example.com", PasswordHash: "x", Role: models.RoleStudent}
	bob := &models.User{Name: "Bob", Email: "bob@example.com", PasswordHash: "x", Role: models.RoleTeacher}
	require.NoError(t, st.CreateUser(ctx, alice))
	require.NoError(t, st.CreateUser(ctx, bob))

	fiction := &models.Book{Title: "Dune", Author: "Herbert", ISBN: "1", Category: "Fiction", Quantity: 3, Available: 3}
	science := &models.Book{Title: "Cosmos", Author: "Sagan", ISBN: "2", Category: "Science", Quantity: 2, Available: 2}
	require.NoError(t, st.CreateBook(ctx, fiction))
	require.NoError(t, st.CreateBook(ctx, science))

	// 20 days ago: overdue by now with the 14 day loan period
	_, err = svc.Borrow(ctx, alice.ID, fiction.ID)
	require.NoError(t, err)

	clock = now.AddDate(0, 0, -2)
	t1, err := svc.Borrow(ctx, bob.ID, fiction.ID)
	require.NoError(t, err)
	_, err = svc.Borrow(ctx, bob.ID, science.ID)
	require.NoError(t, err)

	clock = now.AddDate(0, 0, -1)
	_, err = svc.Return(ctx, t1.ID)
	require.NoError(t, err)

	rep, err := NewAggregator(st, func() time.Time { return now }).Generate(ctx, RangeWeek)
	require.NoError(t, err)

	assert.Equal(t, 2, rep.TotalBooks)
	assert.Equal(t, 2, rep.ActiveBorrowings)
	assert.Equal(t, 1, rep.OverdueBooks)
	assert.Equal(t, []TrendPoint{
		{Date: "2026-06-13", Name: "2026-06-13", Borrowed: 2},
		{Date: "2026-06-14", Name: "2026-06-14", Returned: 1},
	}, rep.BorrowingTrend)
	assert.Equal(t, []models.CategoryCount{{Category: "Fiction", Value: 1}, {Category: "Science", Value: 1}}, rep.BooksByCategory)
	require.Len(t, rep.TopBorrowers, 1, "alice borrowed before the window")
	assert.Equal(t, models.BorrowerCount{UserID: bob.ID, Name: "Bob", Email: "bob@example.com", Count: 2}, rep.TopBorrowers[0])

	monthly, err := NewAggregator(st, func() time.Time { return now }).Generate(ctx, RangeMonth)
	require.NoError(t, err)
	require.Len(t, monthly.TopBorrowers, 2)
	assert.Equal(t, bob.ID, monthly.TopBorrowers[0].UserID)
}
