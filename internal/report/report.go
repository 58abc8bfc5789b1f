// Package report aggregates catalog and ledger statistics over a date range.
package report

import (
	"context"
	"fmt"
	"sort"
	"time"

	"library-management-api/internal/models"
	"library-management-api/internal/store"
)

// Range is a reporting window ending now.
type Range string

const (
	RangeWeek    Range = "week"
	RangeMonth   Range = "month"
	RangeQuarter Range = "quarter"
	RangeYear    Range = "year"
)

// TopBorrowersLimit is the number of users in Report.TopBorrowers.
const TopBorrowersLimit = 5

const dayLayout = "2006-01-02"

// ParseRange maps a query token to a Range. Unknown and empty tokens fall
// back to month.
func ParseRange(token string) Range {
	switch r := Range(token); r {
	case RangeWeek, RangeMonth, RangeQuarter, RangeYear:
		return r
	default:
		return RangeMonth
	}
}

// Start returns the beginning of the window that ends at now.
func (r Range) Start(now time.Time) time.Time {
	switch r {
	case RangeWeek:
		return now.AddDate(0, 0, -7)
	case RangeQuarter:
		return now.AddDate(0, -3, 0)
	case RangeYear:
		return now.AddDate(-1, 0, 0)
	default:
		return now.AddDate(0, -1, 0)
	}
}

// TrendPoint counts borrows and returns on one UTC calendar day.
type TrendPoint struct {
	Date     string `json:"date"`
	Name     string `json:"name"` // same as Date, the chart key used by the web client
	Borrowed int    `json:"borrowed"`
	Returned int    `json:"returned"`
}

// Report is a point-in-time snapshot of the library.
type Report struct {
	Range       Range     `json:"range"`
	From        time.Time `json:"from"`
	To          time.Time `json:"to"`
	GeneratedAt time.Time `json:"generatedAt"`

	TotalBooks       int                    `json:"totalBooks"`
	ActiveBorrowings int                    `json:"activeBorrowings"`
	OverdueBooks     int                    `json:"overdueBooks"`
	BorrowingTrend   []TrendPoint           `json:"borrowingTrend"`
	BooksByCategory  []models.CategoryCount `json:"booksByCategory"`
	TopBorrowers     []models.BorrowerCount `json:"topBorrowers"`
}

// Aggregator builds reports from a store.
type Aggregator struct {
	store store.Reports
	now   func() time.Time
}

// NewAggregator returns an Aggregator reading from st. A nil now uses
// time.Now.
func NewAggregator(st store.Reports, now func() time.Time) *Aggregator {
	if now == nil {
		now = time.Now
	}
	return &Aggregator{store: st, now: now}
}

// Generate computes the report for r.
func (a *Aggregator) Generate(ctx context.Context, r Range) (*Report, error) {
	now := a.now().UTC()
	from := r.Start(now)

	rep := &Report{
		Range:       r,
		From:        from,
		To:          now,
		GeneratedAt: now,
	}

	var err error
	if rep.TotalBooks, err = a.store.CountBooks(ctx); err != nil {
		return nil, fmt.Errorf("total books: %w", err)
	}
	if rep.ActiveBorrowings, err = a.store.CountOpenTransactions(ctx); err != nil {
		return nil, fmt.Errorf("active borrowings: %w", err)
	}
	if rep.OverdueBooks, err = a.store.CountOverdue(ctx, now); err != nil {
		return nil, fmt.Errorf("overdue books: %w", err)
	}

	txs, err := a.store.TransactionsBetween(ctx, from, now)
	if err != nil {
		return nil, fmt.Errorf("borrowing trend: %w", err)
	}
	rep.BorrowingTrend = Trend(txs, from, now)

	if rep.BooksByCategory, err = a.store.BooksByCategory(ctx); err != nil {
		return nil, fmt.Errorf("books by category: %w", err)
	}
	if rep.TopBorrowers, err = a.store.TopBorrowers(ctx, from, now, TopBorrowersLimit); err != nil {
		return nil, fmt.Errorf("top borrowers: %w", err)
	}

	if rep.BooksByCategory == nil {
		rep.BooksByCategory = []models.CategoryCount{}
	}
	if rep.TopBorrowers == nil {
		rep.TopBorrowers = []models.BorrowerCount{}
	}
	return rep, nil
}

// Trend buckets borrows and returns inside [from, to] by UTC day. Days
// without activity are left out; the result is never nil.
func Trend(txs []*models.Transaction, from, to time.Time) []TrendPoint {
	days := map[string]*TrendPoint{}
	bucket := func(at time.Time) *TrendPoint {
		key := at.UTC().Format(dayLayout)
		p, ok := days[key]
		if !ok {
			p = &TrendPoint{Date: key, Name: key}
			days[key] = p
		}
		return p
	}
	inRange := func(at time.Time) bool {
		return !at.Before(from) && !at.After(to)
	}

	for _, t := range txs {
		if inRange(t.BorrowDate) {
			bucket(t.BorrowDate).Borrowed++
		}
		if t.ReturnDate != nil && inRange(*t.ReturnDate) {
			bucket(*t.ReturnDate).Returned++
		}
	}

	out := make([]TrendPoint, 0, len(days))
	for _, p := range days {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}
