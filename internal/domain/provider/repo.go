package provider

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the persistence interface for the provider directory.
type Repository interface {
	Create(ctx context.Context, p *Provider) error
	GetByID(ctx context.Context, id uuid.UUID) (*Provider, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*Provider, error)
	List(ctx context.Context, limit, offset int) ([]*Provider, int, error)
	SearchByName(ctx context.Context, query string, limit, offset int) ([]*Provider, int, error)
}
