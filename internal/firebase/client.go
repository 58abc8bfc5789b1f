// Package firebase connects to Firebase. It provides a Firestore backed
// store.Store and an authenticator for Firebase ID tokens.
package firebase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"

	"library-management-api/internal/config"
)

// Client holds the Firebase service clients.
type Client struct {
	App       *firebase.App
	Auth      *auth.Client
	Firestore *firestore.Client
}

// New initializes Firebase from cfg. A credentials file takes precedence
// over inline JSON; with neither, application default credentials are used
// for cfg.ProjectID.
func New(ctx context.Context, cfg config.FirebaseConfig, logger *slog.Logger) (*Client, error) {
	var opts []option.ClientOption

	switch {
	case cfg.CredentialsPath != "":
		if _, err := os.Stat(cfg.CredentialsPath); err != nil {
			return nil, fmt.Errorf("firebase credentials: %w", err)
		}
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsPath))
	case cfg.CredentialsJSON != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
	case cfg.ProjectID == "":
		return nil, errors.New("firebase: credentials or project id required")
	}

	var appCfg *firebase.Config
	if cfg.ProjectID != "" {
		appCfg = &firebase.Config{ProjectID: cfg.ProjectID}
	}

	app, err := firebase.NewApp(ctx, appCfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}

	authClient, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("init firebase auth: %w", err)
	}

	fs, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("init firestore: %w", err)
	}

	logger.Info("firebase initialized", "project_id", cfg.ProjectID)
	return &Client{
		App:       app,
		Auth:      authClient,
		Firestore: fs,
	}, nil
}

// Close closes the Firestore connection.
func (c *Client) Close() error {
	if c.Firestore != nil {
		return c.Firestore.Close()
	}
	return nil
}
