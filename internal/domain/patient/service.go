package patient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("profile not found")

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// GetProfile loads the caller's profile.
func (s *Service) GetProfile(ctx context.Context, userID uuid.UUID) (*Profile, error) {
	return s.repo.GetByUserID(ctx, userID)
}

// UpsertProfile creates or replaces the caller's profile.
func (s *Service) UpsertProfile(ctx context.Context, userID uuid.UUID, p *Profile) (*Profile, error) {
	p.UserID = userID
	p.FullName = strings.TrimSpace(p.FullName)
	if p.FullName == "" {
		return nil, fmt.Errorf("full_name is required")
	}
	if p.DateOfBirth != nil && p.DateOfBirth.After(time.Now().UTC()) {
		return nil, fmt.Errorf("date_of_birth cannot be in the future")
	}

	existing, err := s.repo.GetByUserID(ctx, userID)
	if err == nil {
		p.ID = existing.ID
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	if err := s.repo.Upsert(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}
