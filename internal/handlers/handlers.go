// Package handlers implements the JSON HTTP API.
package handlers

import (
	"log/slog"
	"os"

	"library-management-api/internal/circulation"
	"library-management-api/internal/metrics"
	"library-management-api/internal/middleware"
	"library-management-api/internal/report"
	"library-management-api/internal/session"
	"library-management-api/internal/store"
)

// Deps carries everything the handlers need. Store, Circulation, Reports
// and Sessions are required.
type Deps struct {
	Store       store.Store
	Circulation *circulation.Service
	Reports     *report.Aggregator
	Sessions    *session.Manager

	// Auth verifies bearer tokens. Defaults to Sessions; set it to a
	// session.Chain to accept Firebase ID tokens as well.
	Auth    session.Authenticator
	Metrics *metrics.Metrics
	Limiter *middleware.RateLimiter
	Logger  *slog.Logger
	TempDir string
	// TrustProxy rewrites the client address from proxy headers before
	// logging and rate limiting.
	TrustProxy bool
}

// Handler serves every API route.
type Handler struct {
	store       store.Store
	circulation *circulation.Service
	reports     *report.Aggregator
	sessions    *session.Manager
	auth        session.Authenticator
	metrics     *metrics.Metrics
	limiter     *middleware.RateLimiter
	logger      *slog.Logger
	tempDir     string
	trustProxy  bool
}

// New builds a Handler from d.
func New(d Deps) *Handler {
	h := &Handler{
		store:       d.Store,
		circulation: d.Circulation,
		reports:     d.Reports,
		sessions:    d.Sessions,
		auth:        d.Auth,
		metrics:     d.Metrics,
		limiter:     d.Limiter,
		logger:      d.Logger,
		tempDir:     d.TempDir,
		trustProxy:  d.TrustProxy,
	}
	if h.auth == nil {
		h.auth = d.Sessions
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	if h.tempDir == "" {
		h.tempDir = os.TempDir()
	}
	return h
}
