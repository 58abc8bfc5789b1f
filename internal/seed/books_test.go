package seed

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"library-management-api/internal/store"
	"library-management-api/internal/store/sqlstore"
)

func TestCatalogIsIdempotent(t *testing.T) {
	ctx := context.Background()
	st, err := sqlstore.Open(ctx, sqlstore.DriverSQLite, filepath.Join(t.TempDir(), "seed.db"))
	require.NoError(t, err)
	defer st.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	added, skipped, err := Catalog(ctx, st, logger)
	require.NoError(t, err)
	assert.Equal(t, len(Books()), added)
	assert.Zero(t, skipped)

	added, skipped, err = Catalog(ctx, st, logger)
	require.NoError(t, err)
	assert.Zero(t, added)
	assert.Equal(t, len(Books()), skipped)

	books, err := st.ListBooks(ctx, store.BookFilter{Category: "Fantasy"})
	require.NoError(t, err)
	assert.Len(t, books, 3)
	for _, b := range books {
		assert.Equal(t, b.Quantity, b.Available)
	}
}
