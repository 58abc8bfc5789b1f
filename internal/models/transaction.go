package models

import "time"

// TransactionStatus is the state of a loan in the ledger.
type TransactionStatus string

const (
	StatusBorrowed TransactionStatus = "borrowed" // open loan
	StatusReturned TransactionStatus = "returned"
	StatusOverdue  TransactionStatus = "overdue" // closed, kept for legacy rows
)

// IsOpen reports whether the status denotes a loan that still holds a copy.
func (s TransactionStatus) IsOpen() bool {
	return s == StatusBorrowed
}

// Transaction is one ledger row: a single copy of BookID lent to UserID.
// ReturnDate is set iff Status is not borrowed.
type Transaction struct {
	ID         int64             `json:"id" db:"id" firestore:"id"`
	UserID     int64             `json:"userId" db:"user_id" firestore:"user_id"`
	BookID     int64             `json:"bookId" db:"book_id" firestore:"book_id"`
	BorrowDate time.Time         `json:"borrowDate" db:"borrow_date" firestore:"borrow_date"`
	DueDate    time.Time         `json:"dueDate" db:"due_date" firestore:"due_date"`
	ReturnDate *time.Time        `json:"returnDate" db:"return_date" firestore:"return_date,omitempty"`
	Status     TransactionStatus `json:"status" db:"status" firestore:"status"`
	Fine       float64           `json:"fine" db:"fine" firestore:"fine"`
	CreatedAt  time.Time         `json:"createdAt" db:"created_at" firestore:"created_at"`
	UpdatedAt  time.Time         `json:"updatedAt" db:"updated_at" firestore:"updated_at"`

	// Book is filled by listings that join the catalog.
	Book *BookSummary `json:"book,omitempty" db:"-" firestore:"-"`
}

// BookSummary is the part of a book embedded into transaction listings.
type BookSummary struct {
	Title  string `json:"title"`
	Author string `json:"author"`
}

// IsOverdue reports whether the loan is still open after its due date.
func (t *Transaction) IsOverdue(now time.Time) bool {
	return t.Status.IsOpen() && now.After(t.DueDate)
}

// DaysLate returns the number of whole days between the due date and at.
func (t *Transaction) DaysLate(at time.Time) int {
	if !at.After(t.DueDate) {
		return 0
	}
	return int(at.Sub(t.DueDate).Hours() / 24)
}

// CalculateFine returns the fine owed for returning at the given time.
func (t *Transaction) CalculateFine(at time.Time, perDay float64) float64 {
	return float64(t.DaysLate(at)) * perDay
}

// DaysUntilDue returns the whole days left until the due date, or 0 for
// closed and late loans.
func (t *Transaction) DaysUntilDue(now time.Time) int {
	if !t.Status.IsOpen() {
		return 0
	}
	days := int(t.DueDate.Sub(now).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}
