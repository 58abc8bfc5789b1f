package models

import (
	"errors"
	"time"
)

// ErrCopiesOnLoan is returned when a catalog change would leave fewer total
// copies than are currently borrowed.
var ErrCopiesOnLoan = errors.New("more copies are on loan than the new quantity allows")

// Book represents a catalog entry. Quantity counts every copy the library
// owns, Available counts the copies that are not currently borrowed.
type Book struct {
	ID              int64     `json:"id" db:"id" firestore:"id"`
	Title           string    `json:"title" db:"title" firestore:"title"`
	Author          string    `json:"author" db:"author" firestore:"author"`
	ISBN            string    `json:"isbn" db:"isbn" firestore:"isbn"`
	Category        string    `json:"category" db:"category" firestore:"category"`
	Publisher       string    `json:"publisher,omitempty" db:"publisher" firestore:"publisher"`
	PublicationYear int       `json:"publicationYear,omitempty" db:"publication_year" firestore:"publication_year"`
	Description     string    `json:"description,omitempty" db:"description" firestore:"description"`
	Location        string    `json:"location,omitempty" db:"location" firestore:"location"`
	Quantity        int       `json:"quantity" db:"quantity" firestore:"quantity"`
	Available       int       `json:"available" db:"available" firestore:"available"`
	CreatedAt       time.Time `json:"createdAt" db:"created_at" firestore:"created_at"`
	UpdatedAt       time.Time `json:"updatedAt" db:"updated_at" firestore:"updated_at"`
}

// IsAvailable reports whether at least one copy can be borrowed.
func (b *Book) IsAvailable() bool {
	return b.Available > 0
}

// OnLoan returns the number of copies currently borrowed.
func (b *Book) OnLoan() int {
	return b.Quantity - b.Available
}

// Resize changes the total number of copies and shifts Available by the same
// delta, keeping the number of borrowed copies unchanged.
func (b *Book) Resize(quantity int) error {
	if quantity < 0 {
		return errors.New("quantity must not be negative")
	}
	available := b.Available + (quantity - b.Quantity)
	if available < 0 {
		return ErrCopiesOnLoan
	}
	b.Quantity = quantity
	b.Available = available
	return nil
}

// CategoryCount is the number of catalog entries in one category.
type CategoryCount struct {
	Category string `json:"category" db:"category"`
	Value    int    `json:"value" db:"value"`
}
