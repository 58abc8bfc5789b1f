// Package seed holds a sample catalog for development databases.
package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"library-management-api/internal/models"
	"library-management-api/internal/store"
)

// Books returns the sample catalog. Every copy starts available.
func Books() []models.Book {
	books := []models.Book{
		{ISBN: "978-83-8032-464-8", Title: "The Last Wish", Author: "Andrzej Sapkowski", Publisher: "SuperNowa", PublicationYear: 1993, Category: "Fantasy", Quantity: 3, Location: "A-12",
			Description: "Short stories about Geralt of Rivia, a monster hunter. The first book of the Witcher saga."},
		{ISBN: "978-83-240-1455-5", Title: "Crime and Punishment", Author: "Fyodor Dostoevsky", Publisher: "Świat Książki", PublicationYear: 1866, Category: "Classics", Quantity: 2, Location: "B-05",
			Description: "A psychological novel about Rodion Raskolnikov and the consequences of his crime."},
		{ISBN: "978-83-7686-320-4", Title: "Sapiens: A Brief History of Humankind", Author: "Yuval Noah Harari", Publisher: "Wydawnictwo Literackie", PublicationYear: 2011, Category: "Popular Science", Quantity: 4, Location: "C-18",
			Description: "The history of humankind from the Stone Age to the present."},
		{ISBN: "978-83-7885-585-8", Title: "Nineteen Eighty-Four", Author: "George Orwell", Publisher: "Muza", PublicationYear: 1949, Category: "Science Fiction", Quantity: 2, Location: "D-07",
			Description: "A dystopia about a totalitarian state of permanent surveillance."},
		{ISBN: "978-83-8100-234-1", Title: "Atomic Habits", Author: "James Clear", Publisher: "Znak Literanova", PublicationYear: 2018, Category: "Self-help", Quantity: 3, Location: "E-22",
			Description: "How small changes in behaviour compound into remarkable results."},
		{ISBN: "978-83-240-4532-0", Title: "Harry Potter and the Philosopher's Stone", Author: "J.K. Rowling", Publisher: "Media Rodzina", PublicationYear: 1997, Category: "Fantasy", Quantity: 5, Location: "A-15",
			Description: "A boy learns on his eleventh birthday that he is a wizard."},
		{ISBN: "978-83-7686-811-7", Title: "The Da Vinci Code", Author: "Dan Brown", Publisher: "Albatros", PublicationYear: 2003, Category: "Thriller", Quantity: 2, Location: "F-09",
			Description: "A symbologist follows a trail of clues hidden in the works of Leonardo."},
		{ISBN: "978-83-7506-651-3", Title: "The Fellowship of the Ring", Author: "J.R.R. Tolkien", Publisher: "Amber", PublicationYear: 1954, Category: "Fantasy", Quantity: 3, Location: "A-20",
			Description: "The first volume of The Lord of the Rings."},
		{ISBN: "978-83-240-5896-2", Title: "The Master and Margarita", Author: "Mikhail Bulgakov", Publisher: "Świat Książki", PublicationYear: 1967, Category: "Classics", Quantity: 2, Location: "B-14",
			Description: "The devil visits Soviet Moscow."},
		{ISBN: "978-83-8100-567-0", Title: "Thinking, Fast and Slow", Author: "Daniel Kahneman", Publisher: "Penguin Books", PublicationYear: 2011, Category: "Psychology", Quantity: 2, Location: "C-25",
			Description: "The two systems that drive the way we think."},
	}
	for i := range books {
		books[i].Available = books[i].Quantity
	}
	return books
}

// Catalog inserts every sample book whose ISBN is not in the catalog yet and
// reports how many were added and skipped.
func Catalog(ctx context.Context, st store.Books, logger *slog.Logger) (added, skipped int, err error) {
	for _, b := range Books() {
		_, err := st.GetBookByISBN(ctx, b.ISBN)
		switch {
		case err == nil:
			skipped++
			continue
		case !errors.Is(err, store.ErrNotFound):
			return added, skipped, fmt.Errorf("look up %s: %w", b.ISBN, err)
		}

		book := b
		if err := st.CreateBook(ctx, &book); err != nil {
			return added, skipped, fmt.Errorf("add %q: %w", b.Title, err)
		}
		logger.Info("book added", "id", book.ID, "title", book.Title)
		added++
	}
	return added, skipped, nil
}
