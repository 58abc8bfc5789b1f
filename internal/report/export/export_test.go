package export

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"library-management-api/internal/models"
	"library-management-api/internal/report"
)

func sampleReport() *report.Report {
	to := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	return &report.Report{
		Range:            report.RangeWeek,
		From:             to.AddDate(0, 0, -7),
		To:               to,
		GeneratedAt:      to,
		TotalBooks:       12,
		ActiveBorrowings: 4,
		OverdueBooks:     1,
		BorrowingTrend: []report.TrendPoint{
			{Date: "2026-06-10", Name: "2026-06-10", Borrowed: 2, Returned: 1},
		},
		BooksByCategory: []models.CategoryCount{{Category: "Fiction", Value: 7}, {Category: "Science", Value: 5}},
		TopBorrowers: []models.BorrowerCount{
			{UserID: 3, Name: "Zoë, Jr.", Email: "zoe@example.com", Count: 3},
		},
	}
}

func TestCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, CSV(&buf, sampleReport()))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 1+3+1+2+1)

	assert.Equal(t, CSVHeader, records[0])
	assert.Equal(t, []string{"summary", "Total Books", "12", "", "", "", "", "", "", ""}, records[1])
	assert.Equal(t, []string{"summary", "Overdue Books", "1", "", "", "", "", "", "", ""}, records[3])
	assert.Equal(t, []string{"trend", "", "", "2026-06-10", "2", "1", "", "", "", ""}, records[4])
	assert.Equal(t, []string{"category", "", "", "", "", "", "Fiction", "", "", "7"}, records[5])
	assert.Equal(t, []string{"top_borrower", "", "", "", "", "", "", "Zoë, Jr.", "zoe@example.com", "3"}, records[7])
}

func TestPDF(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PDF(&buf, sampleReport()))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))

	empty := &report.Report{Range: report.RangeMonth}
	buf.Reset()
	require.NoError(t, PDF(&buf, empty))
	assert.NotZero(t, buf.Len())
}

func TestLookup(t *testing.T) {
	f, ok := Lookup("pdf")
	require.True(t, ok)
	assert.Equal(t, "library_report.pdf", f.Filename)

	f, ok = Lookup("csv")
	require.True(t, ok)
	assert.Equal(t, "library_report.csv", f.Filename)

	_, ok = Lookup("xlsx")
	assert.False(t, ok)
}

func TestServeStreamsAndRemovesFile(t *testing.T) {
	dir := t.TempDir()
	rec := httptest.NewRecorder()

	require.NoError(t, Serve(rec, dir, CSVFormat, sampleReport()))

	res := rec.Result()
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, `attachment; filename="library_report.csv"`, res.Header.Get("Content-Disposition"))
	assert.Equal(t, "text/csv; charset=utf-8", res.Header.Get("Content-Type"))

	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "section,metric,value")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "temporary file must be removed")
}

func TestServeRemovesFileOnRenderError(t *testing.T) {
	dir := t.TempDir()
	rec := httptest.NewRecorder()
	boom := errors.New("boom")

	failing := Format{Name: "bin", ContentType: "application/octet-stream", Filename: "x.bin",
		Render: func(w io.Writer, _ *report.Report) error {
			_, _ = w.Write([]byte("partial"))
			return boom
		}}

	err := Serve(rec, dir, failing, sampleReport())
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, rec.Header().Get("Content-Disposition"))
	assert.Zero(t, rec.Body.Len())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
