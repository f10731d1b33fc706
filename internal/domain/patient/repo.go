package patient

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the persistence interface for patient profiles.
type Repository interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (*Profile, error)
	Upsert(ctx context.Context, profile *Profile) error
}
