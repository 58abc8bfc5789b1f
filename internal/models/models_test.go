package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthorize(t *testing.T) {
	tests := []struct {
		name     string
		role     UserRole
		required []UserRole
		want     bool
	}{
		{"any known role when nothing required", RoleStudent, nil, true},
		{"unknown role is always denied", UserRole("guest"), nil, false},
		{"staff role allowed for staff routes", RoleLibrarian, StaffRoles, true},
		{"student denied on staff routes", RoleStudent, StaffRoles, false},
		{"teacher denied on admin-only routes", RoleTeacher, []UserRole{RoleAdmin}, false},
		{"admin allowed on admin-only routes", RoleAdmin, []UserRole{RoleAdmin}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Authorize(tt.role, tt.required...))
		})
	}
}

func TestParseRole(t *testing.T) {
	role, err := ParseRole("teacher")
	require.NoError(t, err)
	assert.Equal(t, RoleTeacher, role)

	_, err = ParseRole("superuser")
	assert.Error(t, err)
}

func TestBookResize(t *testing.T) {
	b := Book{Quantity: 3, Available: 1}

	require.NoError(t, b.Resize(5))
	assert.Equal(t, 5, b.Quantity)
	assert.Equal(t, 3, b.Available)
	assert.Equal(t, 2, b.OnLoan())

	require.NoError(t, b.Resize(2))
	assert.Equal(t, 0, b.Available)

	assert.ErrorIs(t, b.Resize(1), ErrCopiesOnLoan)
	assert.Equal(t, 2, b.Quantity, "failed resize must not modify the book")
	assert.Error(t, b.Resize(-1))
}

func TestTransactionFine(t *testing.T) {
	due := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tx := Transaction{Status: StatusBorrowed, DueDate: due}

	assert.Zero(t, tx.CalculateFine(due.Add(-time.Hour), 1.5))
	assert.Zero(t, tx.CalculateFine(due.Add(23*time.Hour), 1.5), "partial days are not charged")
	assert.InDelta(t, 4.5, tx.CalculateFine(due.Add(72*time.Hour+time.Minute), 1.5), 1e-9)
}

func TestTransactionOverdue(t *testing.T) {
	due := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tx := Transaction{Status: StatusBorrowed, DueDate: due}

	assert.False(t, tx.IsOverdue(due))
	assert.True(t, tx.IsOverdue(due.Add(time.Second)))
	assert.Equal(t, 2, tx.DaysUntilDue(due.Add(-50*time.Hour)))

	tx.Status = StatusReturned
	assert.False(t, tx.IsOverdue(due.Add(time.Hour)))
	assert.Zero(t, tx.DaysUntilDue(due.Add(-50*time.Hour)))
}
