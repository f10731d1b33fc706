package provider

import (
	"time"

	"github.com/google/uuid"
)

// Provider is a directory entry for a bookable practitioner or service.
// UserID links the entry to the provider's own account; it is nil for
// entries that nobody logs in as.
type Provider struct {
	ID        uuid.UUID  `json:"id"`
	UserID    *uuid.UUID `json:"user_id,omitempty"`
	Name      string     `json:"name"`
	Specialty string     `json:"specialty,omitempty"`
	Location  string     `json:"location,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}
