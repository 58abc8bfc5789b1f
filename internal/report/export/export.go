// Package export renders reports as downloadable PDF and CSV files.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"

	"github.com/go-pdf/fpdf"

	"library-management-api/internal/report"
)

// Format describes one downloadable rendering of a report.
type Format struct {
	Name        string
	ContentType string
	Filename    string
	Render      func(w io.Writer, rep *report.Report) error
}

var (
	PDFFormat = Format{Name: "pdf", ContentType: "application/pdf", Filename: "library_report.pdf", Render: PDF}
	CSVFormat = Format{Name: "csv", ContentType: "text/csv; charset=utf-8", Filename: "library_report.csv", Render: CSV}
)

// Lookup returns the format registered under name.
func Lookup(name string) (Format, bool) {
	switch name {
	case PDFFormat.Name:
		return PDFFormat, true
	case CSVFormat.Name:
		return CSVFormat, true
	}
	return Format{}, false
}

// CSVHeader is the column layout of the flat CSV export.
var CSVHeader = []string{"section", "metric", "value", "date", "borrowed", "returned", "category", "name", "email", "count"}

// CSV writes the report as a single flat table. Each row fills only the
// columns of its section.
func CSV(w io.Writer, rep *report.Report) error {
	cw := csv.NewWriter(w)
	row := func(section string, cells map[int]string) []string {
		out := make([]string, len(CSVHeader))
		out[0] = section
		for i, v := range cells {
			out[i] = v
		}
		return out
	}
	itoa := strconv.Itoa

	rows := [][]string{
		CSVHeader,
		row("summary", map[int]string{1: "Total Books", 2: itoa(rep.TotalBooks)}),
		row("summary", map[int]string{1: "Active Borrowings", 2: itoa(rep.ActiveBorrowings)}),
		row("summary", map[int]string{1: "Overdue Books", 2: itoa(rep.OverdueBooks)}),
	}
	for _, p := range rep.BorrowingTrend {
		rows = append(rows, row("trend", map[int]string{3: p.Date, 4: itoa(p.Borrowed), 5: itoa(p.Returned)}))
	}
	for _, c := range rep.BooksByCategory {
		rows = append(rows, row("category", map[int]string{6: c.Category, 9: itoa(c.Value)}))
	}
	for _, b := range rep.TopBorrowers {
		rows = append(rows, row("top_borrower", map[int]string{7: b.Name, 8: b.Email, 9: itoa(b.Count)}))
	}

	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

// PDF writes the report as an A4 document. fpdf breaks pages automatically.
func PDF(w io.Writer, rep *report.Report) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Library Management System Report", true)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	heading := func(text string) {
		pdf.Ln(4)
		pdf.SetFont("Helvetica", "BU", 16)
		pdf.CellFormat(0, 9, tr(text), "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 12)
	}
	line := func(format string, args ...interface{}) {
		pdf.CellFormat(0, 7, tr(fmt.Sprintf(format, args...)), "", 1, "L", false, 0, "")
	}

	pdf.SetFont("Helvetica", "B", 20)
	pdf.CellFormat(0, 12, tr("Library Management System Report"), "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, fmt.Sprintf("%s to %s (%s)",
		rep.From.Format("2006-01-02"), rep.To.Format("2006-01-02"), rep.Range), "", 1, "C", false, 0, "")

	heading("Summary Statistics")
	line("Total Books: %d", rep.TotalBooks)
	line("Active Borrowings: %d", rep.ActiveBorrowings)
	line("Overdue Books: %d", rep.OverdueBooks)

	heading("Borrowing Trend")
	if len(rep.BorrowingTrend) == 0 {
		line("No activity in this period.")
	}
	for _, p := range rep.BorrowingTrend {
		line("%s: %d borrowed, %d returned", p.Date, p.Borrowed, p.Returned)
	}

	heading("Books by Category")
	for _, c := range rep.BooksByCategory {
		line("%s: %d books", c.Category, c.Value)
	}

	heading("Top Borrowers")
	for i, b := range rep.TopBorrowers {
		line("%d. %s (%s): %d borrowings", i+1, b.Name, b.Email, b.Count)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

// Serve renders rep into a temporary file under dir, streams it to the
// client as an attachment and removes the file. Nothing is written to w when
// rendering fails.
func Serve(w http.ResponseWriter, dir string, f Format, rep *report.Report) error {
	tmp, err := os.CreateTemp(dir, "library_report-*."+f.Name)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	path := tmp.Name()
	defer os.Remove(path)

	if err := f.Render(tmp, rep); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open rendered report: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("stat rendered report: %w", err)
	}

	w.Header().Set("Content-Type", f.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", f.Filename))
	w.Header().Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, file); err != nil {
		return fmt.Errorf("stream report: %w", err)
	}
	return nil
}
