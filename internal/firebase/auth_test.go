package firebase

import (
	"context"
	"errors"
	"testing"
	"time"

	"firebase.google.com/go/v4/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"library-management-api/internal/models"
	"library-management-api/internal/session"
	"library-management-api/internal/store"
)

type fakeVerifier map[string]*auth.Token

func (f fakeVerifier) VerifyIDToken(_ context.Context, token string) (*auth.Token, error) {
	if t, ok := f[token]; ok {
		return t, nil
	}
	return nil, errors.New("signature mismatch")
}

type fakeUsers map[string]*models.User

func (f fakeUsers) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	if u, ok := f[email]; ok {
		return u, nil
	}
	return nil, store.ErrNotFound
}

func TestAuthenticator(t *testing.T) {
	verifier := fakeVerifier{
		"good":       {UID: "fb-1", Expires: 1900000000, Claims: map[string]interface{}{"email": "lib@example.com", "email_verified": true}},
		"unverified": {UID: "fb-2", Claims: map[string]interface{}{"email": "lib@example.com", "email_verified": false}},
		"stranger":   {UID: "fb-3", Claims: map[string]interface{}{"email": "who@example.com"}},
		"no-email":   {UID: "fb-4", Claims: map[string]interface{}{}},
	}
	users := fakeUsers{"lib@example.com": {ID: 7, Email: "lib@example.com", Role: models.RoleLibrarian}}
	a := NewAuthenticator(verifier, users)

	sess, err := a.Authenticate(context.Background(), "good")
	require.NoError(t, err)
	assert.Equal(t, int64(7), sess.UserID)
	assert.Equal(t, models.RoleLibrarian, sess.Role)
	assert.Equal(t, session.ProviderFirebase, sess.Provider)
	assert.Equal(t, int64(1900000000), sess.ExpiresAt.Unix())

	for _, token := range []string{"unverified", "stranger", "no-email", "forged"} {
		_, err := a.Authenticate(context.Background(), token)
		assert.ErrorIs(t, err, session.ErrInvalidToken, token)
	}
}

func TestChainFallsBackToFirebase(t *testing.T) {
	mgr := session.NewManager("secret", time.Hour)
	defer mgr.Close()

	users := fakeUsers{"lib@example.com": {ID: 7, Email: "lib@example.com", Role: models.RoleLibrarian}}
	chain := session.Chain{mgr, NewAuthenticator(fakeVerifier{
		"firebase-token": {UID: "fb-1", Claims: map[string]interface{}{"email": "lib@example.com"}},
	}, users)}

	sess, err := chain.Authenticate(context.Background(), "firebase-token")
	require.NoError(t, err)
	assert.Equal(t, session.ProviderFirebase, sess.Provider)

	_, err = chain.Authenticate(context.Background(), "garbage")
	assert.ErrorIs(t, err, session.ErrInvalidToken)
}
