package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"library-management-api/internal/app"
	"library-management-api/internal/circulation"
	"library-management-api/internal/config"
	"library-management-api/internal/events"
	"library-management-api/internal/firebase"
	"library-management-api/internal/handlers"
	"library-management-api/internal/metrics"
	"library-management-api/internal/middleware"
	"library-management-api/internal/report"
	"library-management-api/internal/session"
)

func main() {
	logger := app.NewLogger(os.Stdout, os.Getenv("APP_ENV"))

	cfg, err := config.Load(logger)
	if err != nil {
		app.Fatal(logger, "load configuration", err)
	}
	logger = app.NewLogger(os.Stdout, cfg.AppEnv)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		app.Fatal(logger, "server stopped", err)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend, err := app.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer backend.Close()

	var publisher events.Publisher = events.Nop{}
	if cfg.NATS.URL != "" {
		nc, err := events.Connect(cfg.NATS.URL, logger)
		if err != nil {
			// the API works without events
			logger.Warn("nats unavailable, events disabled", "url", cfg.NATS.URL, "error", err)
		} else {
			publisher = nc
		}
	}
	defer publisher.Close()

	m := metrics.New()

	sessions := session.NewManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	defer sessions.Close()

	var auth session.Authenticator = sessions
	if backend.Firebase != nil && backend.Firebase.Auth != nil {
		auth = session.Chain{sessions, firebase.NewAuthenticator(backend.Firebase.Auth, backend.Store)}
		logger.Info("firebase id tokens accepted")
	}

	limiter := middleware.NewRateLimiter(cfg.Limits.Requests, cfg.Limits.Window)
	defer limiter.Close()

	svc := circulation.NewService(backend.Store,
		circulation.WithLoanPeriod(cfg.Loans.Period),
		circulation.WithFinePerDay(cfg.Loans.FinePerDay),
		circulation.WithLogger(logger),
		circulation.WithMetrics(m),
		circulation.WithPublisher(publisher),
	)

	h := handlers.New(handlers.Deps{
		Store:       backend.Store,
		Circulation: svc,
		Reports:     report.NewAggregator(backend.Store, nil),
		Sessions:    sessions,
		Auth:        auth,
		Metrics:     m,
		Limiter:     limiter,
		Logger:      logger,
		TempDir:     cfg.ReportTempDir,
		TrustProxy:  cfg.TrustProxy,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      h.Routes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	shutdownErr := make(chan error, 1)
	go func() {
		<-ctx.Done()
		logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()
		shutdownErr <- srv.Shutdown(shutdownCtx)
	}()

	logger.Info("starting server", "addr", srv.Addr, "env", cfg.AppEnv, "driver", cfg.Database.Driver)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	if err := <-shutdownErr; err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}
