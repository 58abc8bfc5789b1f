package middleware

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"library-management-api/internal/metrics"
	"library-management-api/internal/models"
	"library-management-api/internal/session"
	"library-management-api/internal/store"
)

type usersStub map[int64]*models.User

func (u usersStub) GetUser(_ context.Context, id int64) (*models.User, error) {
	if user, ok := u[id]; ok {
		return user, nil
	}
	return nil, store.ErrNotFound
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var ok = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
})

func TestAuthenticate(t *testing.T) {
	mgr := session.NewManager("secret", time.Hour)
	defer mgr.Close()

	users := usersStub{
		1: {ID: 1, Email: "lib@example.com", Role: models.RoleLibrarian},
	}
	token, _, err := mgr.Issue(users[1])
	require.NoError(t, err)
	ghost, _, err := mgr.Issue(&models.User{ID: 99, Role: models.RoleAdmin})
	require.NoError(t, err)

	var seen *session.Session
	h := Authenticate(mgr, users, discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = SessionFromContext(r.Context())
	}))

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"bad token", "Bearer nope", http.StatusUnauthorized},
		{"deleted user", "Bearer " + ghost, http.StatusUnauthorized},
		{"valid", "Bearer " + token, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
		})
	}

	require.NotNil(t, seen)
	assert.Equal(t, int64(1), seen.UserID)
	assert.Equal(t, models.RoleLibrarian, seen.Role)
}

func TestRequireRole(t *testing.T) {
	h := RequireRole(models.StaffRoles...)(ok)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	for role, want := range map[models.UserRole]int{
		models.RoleAdmin:     http.StatusNoContent,
		models.RoleLibrarian: http.StatusNoContent,
		models.RoleStudent:   http.StatusForbidden,
		models.RoleTeacher:   http.StatusForbidden,
	} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(WithSession(req.Context(), &session.Session{User: &models.User{Role: role}}))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, want, rec.Code, role)
	}

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithSession(req.Context(), &session.Session{User: &models.User{Role: models.RoleStudent}}))
	h.ServeHTTP(rec, req)
	assert.JSONEq(t, `{"message":"Access denied"}`, rec.Body.String())
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(3, time.Minute)
	defer rl.Close()

	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return clock }
	h := rl.Handler(ok)

	do := func(addr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusNoContent, do("10.0.0.1:1234").Code)
	}
	limited := do("10.0.0.1:5678")
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.Equal(t, "20", limited.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusNoContent, do("10.0.0.2").Code, "other clients have their own bucket")

	clock = clock.Add(20 * time.Second)
	assert.Equal(t, http.StatusNoContent, do("10.0.0.1:1").Code, "one token refills every window/requests")

	clock = clock.Add(2 * time.Minute)
	rl.evict()
	rl.mu.Lock()
	assert.Empty(t, rl.clients)
	rl.mu.Unlock()
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	m := metrics.New()

	r := chi.NewRouter()
	r.Use(RequestLogger(logger, m))
	r.Get("/api/books/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/books/7", nil))

	line := buf.String()
	assert.True(t, strings.Contains(line, `"route":"/api/books/{id}"`), line)
	assert.True(t, strings.Contains(line, `"status":418`), line)
	assert.True(t, strings.Contains(line, `"bytes":15`), line)

	families, err := m.Registry().Gather()
	require.NoError(t, err)
	found := false
	for _, mf := range families {
		if mf.GetName() == "library_http_requests_total" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestSecureHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	SecureHeaders(ok).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "no-referrer", rec.Header().Get("Referrer-Policy"))
}

type failingUsers struct{}

func (failingUsers) GetUser(context.Context, int64) (*models.User, error) {
	return nil, errors.New("db down")
}

func TestAuthenticateStoreFailure(t *testing.T) {
	mgr := session.NewManager("secret", time.Hour)
	defer mgr.Close()
	token, _, err := mgr.Issue(&models.User{ID: 1, Role: models.RoleStudent})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	Authenticate(mgr, failingUsers{}, discard())(ok).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
