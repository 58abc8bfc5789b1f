package handlers

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const maxBodyBytes = 1 << 20

// envelope is a JSON object response.
type envelope map[string]interface{}

// errValidation aborts a store callback whose input failed validation.
var errValidation = errors.New("validation failed")

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}

func chiParam(r *http.Request, name string) string {
	return chi.URLParam(r, name)
}

func readIDParam(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chiParam(r, name), 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid %s parameter", name)
	}
	return id, nil
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) error {
	js, err := json.Marshal(data)
	if err != nil {
		return err
	}
	js = append(js, '\n')

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err = w.Write(js)
	return err
}

// readJSON decodes exactly one JSON value of at most 1 MB into dst and
// rejects unknown fields.
func readJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var maxBytesErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return errors.New("body must not be empty")
		case errors.As(err, &maxBytesErr), strings.Contains(err.Error(), "request body too large"):
			return fmt.Errorf("body must not be larger than %d bytes", maxBodyBytes)
		case strings.Contains(err.Error(), "unknown field"):
			return fmt.Errorf("body contains an unknown field: %v", err)
		default:
			return fmt.Errorf("body contains badly-formed JSON: %v", err)
		}
	}

	if dec.More() {
		return errors.New("body must only contain a single JSON value")
	}
	return nil
}

// ---------------------------------------------------------------------------
// Error responses. Every error body is {"message": ...}; validation failures
// add an "errors" object keyed by field.
// ---------------------------------------------------------------------------

func (h *Handler) logError(r *http.Request, err error) {
	h.logger.Error(err.Error(),
		slog.String("request_method", r.Method),
		slog.String("request_url", r.URL.String()),
	)
}

func (h *Handler) errorResponse(w http.ResponseWriter, r *http.Request, status int, message string) {
	if err := writeJSON(w, status, envelope{"message": message}); err != nil {
		h.logError(r, err)
	}
}

func (h *Handler) serverErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	h.logError(r, err)
	h.errorResponse(w, r, http.StatusInternalServerError, "Server error")
}

func (h *Handler) badRequestResponse(w http.ResponseWriter, r *http.Request, err error) {
	h.errorResponse(w, r, http.StatusBadRequest, err.Error())
}

func (h *Handler) failedValidationResponse(w http.ResponseWriter, r *http.Request, errs map[string]string) {
	if err := writeJSON(w, http.StatusUnprocessableEntity, envelope{"message": "Validation failed", "errors": errs}); err != nil {
		h.logError(r, err)
	}
}

func (h *Handler) notFoundResponse(w http.ResponseWriter, r *http.Request, message string) {
	h.errorResponse(w, r, http.StatusNotFound, message)
}

func (h *Handler) forbiddenResponse(w http.ResponseWriter, r *http.Request) {
	h.errorResponse(w, r, http.StatusForbidden, "Access denied")
}

func (h *Handler) conflictResponse(w http.ResponseWriter, r *http.Request, message string) {
	h.errorResponse(w, r, http.StatusConflict, message)
}

func (h *Handler) invalidCredentialsResponse(w http.ResponseWriter, r *http.Request) {
	h.errorResponse(w, r, http.StatusUnauthorized, "Invalid credentials")
}
