package firebase

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/firestore"

	"library-management-api/internal/models"
	"library-management-api/internal/store"
)

func decodeUser(snap *firestore.DocumentSnapshot) (*models.User, error) {
	var user models.User
	if err := snap.DataTo(&user); err != nil {
		return nil, fmt.Errorf("decode user %s: %w", snap.Ref.ID, err)
	}
	return &user, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// GetUser returns a user by id.
func (s *Store) GetUser(ctx context.Context, id int64) (*models.User, error) {
	snap, err := s.doc(UsersCollection, id).Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("get user %d: %w", id, mapError(err))
	}
	return decodeUser(snap)
}

// GetUserByEmail returns the user with the given email, compared
// case-insensitively.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	email = normalizeEmail(email)

	docs, err := s.fs.Collection(UsersCollection).Where("email", "==", email).Limit(1).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("user %q: %w", email, store.ErrNotFound)
	}
	return decodeUser(docs[0])
}

// CreateUser inserts user and sets its id and timestamps. The email must not
// be in use.
func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	now := s.timestamp()
	email := normalizeEmail(user.Email)

	err := s.fs.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		q := s.fs.Collection(UsersCollection).Where("email", "==", email).Limit(1)
		existing, err := tx.Documents(q).GetAll()
		if err != nil {
			return fmt.Errorf("check email: %w", err)
		}
		if len(existing) > 0 {
			return fmt.Errorf("%w: email %q exists", store.ErrConflict, email)
		}

		id, counterRef, err := s.nextID(tx, UsersCollection)
		if err != nil {
			return err
		}
		if err := tx.Set(counterRef, counter(id)); err != nil {
			return err
		}

		u := *user
		u.ID = id
		u.Email = email
		u.CreatedAt = now
		u.UpdatedAt = now
		if err := tx.Create(s.doc(UsersCollection, id), &u); err != nil {
			return err
		}
		*user = u
		return nil
	})
	if err != nil {
		return fmt.Errorf("create user: %w", mapError(err))
	}
	return nil
}
