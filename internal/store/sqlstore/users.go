package sqlstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/doug-martin/goqu/v9"
	"github.com/jmoiron/sqlx"

	"library-management-api/internal/models"
)

const usersTable = "users"

var userColumns = []string{"id", "name", "email", "password_hash", "role", "created_at", "updated_at"}

func (s *Store) GetUser(ctx context.Context, id int64) (*models.User, error) {
	return s.getUser(ctx, s.db, id)
}

func (s *Store) getUser(ctx context.Context, q sqlx.QueryerContext, id int64) (*models.User, error) {
	ds := s.from(usersTable).Select(columns("", userColumns)...).Where(goqu.C("id").Eq(id))

	var user models.User
	if err := get(ctx, q, &user, ds); err != nil {
		return nil, fmt.Errorf("get user %d: %w", id, err)
	}
	return &user, nil
}

// GetUserByEmail matches the address case-insensitively.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	ds := s.from(usersTable).Select(columns("", userColumns)...).
		Where(goqu.C("email").Eq(normalizeEmail(email)))

	var user models.User
	if err := get(ctx, s.db, &user, ds); err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return &user, nil
}

// CreateUser inserts user and sets its id and timestamps. A duplicate email
// yields store.ErrConflict.
func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	now := s.timestamp()
	user.Email = normalizeEmail(user.Email)
	user.CreatedAt = now
	user.UpdatedAt = now

	ds := s.insert(usersTable).Rows(goqu.Record{
		"name":          user.Name,
		"email":         user.Email,
		"password_hash": user.PasswordHash,
		"role":          string(user.Role),
		"created_at":    now,
		"updated_at":    now,
	})

	id, err := s.insertID(ctx, s.db, ds)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	user.ID = id
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
