package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"library-management-api/internal/middleware"
	"library-management-api/internal/models"
)

// Routes builds the application router.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	if h.trustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(middleware.RequestLogger(h.logger, h.metrics))
	r.Use(chimw.Recoverer)
	r.Use(middleware.SecureHeaders)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		h.notFoundResponse(w, r, "Route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		h.errorResponse(w, r, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.Get("/healthz", h.Health)
	if h.metrics != nil {
		r.Handle("/metrics", h.metrics.Handler())
	}

	authenticated := middleware.Authenticate(h.auth, h.store, h.logger)
	staffOnly := middleware.RequireRole(models.StaffRoles...)

	r.Route("/api", func(r chi.Router) {
		if h.limiter != nil {
			r.Use(h.limiter.Handler)
		}

		r.Get("/", h.Index)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", h.Register)
			r.Post("/login", h.Login)

			r.Group(func(r chi.Router) {
				r.Use(authenticated)
				r.Get("/me", h.Me)
				r.Post("/logout", h.Logout)
			})
		})

		r.Route("/books", func(r chi.Router) {
			r.Get("/", h.ListBooks)
			r.Get("/{id}", h.GetBook)

			r.Group(func(r chi.Router) {
				r.Use(authenticated, staffOnly)
				r.Post("/", h.CreateBook)
				r.Patch("/{id}", h.UpdateBook)
				r.Delete("/{id}", h.DeleteBook)
			})
		})

		r.Route("/transactions", func(r chi.Router) {
			r.Use(authenticated)
			r.Post("/borrow", h.Borrow)
			r.Post("/return", h.Return)
			r.Get("/user/{userId}", h.UserTransactions)
		})

		r.Route("/reports", func(r chi.Router) {
			r.Use(authenticated, staffOnly)
			r.Get("/", h.Report)
			r.Get("/export/{format}", h.ExportReport)
		})
	})

	return r
}
