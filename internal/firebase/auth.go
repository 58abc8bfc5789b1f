package firebase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"firebase.google.com/go/v4/auth"

	"library-management-api/internal/models"
	"library-management-api/internal/session"
	"library-management-api/internal/store"
)

// TokenVerifier verifies Firebase ID tokens. *auth.Client implements it.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

// UserFinder maps a verified email to a local account.
type UserFinder interface {
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

// Authenticator accepts Firebase ID tokens for users that also have a local
// account with the same email. Roles always come from the local account.
type Authenticator struct {
	verifier TokenVerifier
	users    UserFinder
}

func NewAuthenticator(v TokenVerifier, users UserFinder) *Authenticator {
	return &Authenticator{verifier: v, users: users}
}

func (a *Authenticator) Authenticate(ctx context.Context, token string) (*session.Session, error) {
	t, err := a.verifier.VerifyIDToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", session.ErrInvalidToken, err)
	}

	email, _ := t.Claims["email"].(string)
	if email == "" {
		return nil, fmt.Errorf("%w: token has no email", session.ErrInvalidToken)
	}
	if verified, ok := t.Claims["email_verified"].(bool); ok && !verified {
		return nil, fmt.Errorf("%w: email not verified", session.ErrInvalidToken)
	}

	user, err := a.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: no account for %s", session.ErrInvalidToken, email)
		}
		return nil, err
	}

	return &session.Session{
		ID:        t.UID,
		UserID:    user.ID,
		Email:     user.Email,
		Role:      user.Role,
		Provider:  session.ProviderFirebase,
		User:      user,
		ExpiresAt: time.Unix(t.Expires, 0).UTC(),
	}, nil
}
