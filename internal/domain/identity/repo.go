package identity

import (
	"context"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/platform/apperr"
)

var (
	ErrEmailTaken   = apperr.New(apperr.ErrConflict, "email is already registered")
	ErrUserNotFound = apperr.New(apperr.ErrNotFound, "user not found")
)

type UserRepository interface {
	// Create inserts u, assigning its ID and CreatedAt. A duplicate email
	// yields ErrEmailTaken.
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context, limit, offset int) ([]*User, int, error)
	ListDoctors(ctx context.Context) ([]Doctor, error)
	IDsByRole(ctx context.Context, role string) ([]uuid.UUID, error)
}
