package handlers

import (
	"net/http"

	"library-management-api/internal/report"
	"library-management-api/internal/report/export"
)

// Report handles GET /api/reports?range=week|month|quarter|year. Unknown
// ranges fall back to month.
func (h *Handler) Report(w http.ResponseWriter, r *http.Request) {
	rep, err := h.reports.Generate(r.Context(), report.ParseRange(r.URL.Query().Get("range")))
	if err != nil {
		h.serverErrorResponse(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, rep); err != nil {
		h.logError(r, err)
	}
}

// ExportReport handles GET /api/reports/export/{format}.
func (h *Handler) ExportReport(w http.ResponseWriter, r *http.Request) {
	f, ok := export.Lookup(chiParam(r, "format"))
	if !ok {
		h.notFoundResponse(w, r, "Unknown export format")
		return
	}

	rep, err := h.reports.Generate(r.Context(), report.ParseRange(r.URL.Query().Get("range")))
	if err != nil {
		h.serverErrorResponse(w, r, err)
		return
	}

	if err := export.Serve(w, h.tempDir, f, rep); err != nil {
		// headers are only sent after a successful render
		if w.Header().Get("Content-Disposition") == "" {
			h.serverErrorResponse(w, r, err)
			return
		}
		h.logError(r, err)
		return
	}
	h.logger.Info("report exported", "format", f.Name, "range", rep.Range)
}
