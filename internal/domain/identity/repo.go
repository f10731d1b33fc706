package identity

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines the persistence interface for user accounts.
type Repository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Update(ctx context.Context, user *User) error
	TouchLastActive(ctx context.Context, id uuid.UUID, at time.Time) error
}
