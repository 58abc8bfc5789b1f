// Package app wires configuration into the long lived components shared by
// the server and the admin CLI.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"library-management-api/internal/config"
	"library-management-api/internal/firebase"
	"library-management-api/internal/store"
	"library-management-api/internal/store/sqlstore"
)

// NewLogger returns a text logger in development and a JSON logger
// elsewhere.
func NewLogger(w io.Writer, env string) *slog.Logger {
	if env == "" || env == "development" {
		return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewJSONHandler(w, nil))
}

// Backend is an open store plus the Firebase client when one was needed.
type Backend struct {
	Store    store.Store
	Firebase *firebase.Client
}

// Close releases the store. With the Firestore driver this also closes the
// Firebase client's Firestore connection.
func (b *Backend) Close() error {
	return b.Store.Close()
}

// Open connects the configured store. Firebase is initialized when the
// store is Firestore or when Firebase credentials are configured for token
// verification.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Backend, error) {
	b := &Backend{}

	if cfg.Database.Driver == config.DriverFirestore || cfg.Firebase.Enabled() {
		fb, err := firebase.New(ctx, cfg.Firebase, logger)
		if err != nil {
			return nil, err
		}
		b.Firebase = fb
	}

	switch cfg.Database.Driver {
	case config.DriverFirestore:
		b.Store = firebase.NewStore(b.Firebase.Firestore)
	default:
		st, err := sqlstore.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
		if err != nil {
			if b.Firebase != nil {
				_ = b.Firebase.Close()
			}
			return nil, fmt.Errorf("open store: %w", err)
		}
		if b.Firebase != nil {
			// only token verification uses Firebase here
			_ = b.Firebase.Close()
			b.Firebase.Firestore = nil
		}
		b.Store = st
	}

	logger.Info("store opened", "driver", cfg.Database.Driver)
	return b, nil
}

// Fatal logs err and exits.
func Fatal(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, "error", err)
	os.Exit(1)
}
