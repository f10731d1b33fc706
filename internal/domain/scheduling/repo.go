package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines the persistence interface for appointments.
type Repository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	Update(ctx context.Context, a *Appointment) error

	// HasOverlap reports whether any booked appointment for the provider
	// overlaps the half-open range [start, end). excludeID, when non-nil,
	// is left out of the check so an appointment can be rescheduled over
	// its own current slot.
	HasOverlap(ctx context.Context, providerID uuid.UUID, start, end time.Time, excludeID uuid.UUID) (bool, error)

	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error)
	ListUpcomingByProvider(ctx context.Context, providerID uuid.UUID, now time.Time, limit, offset int) ([]*Appointment, int, error)
	ListDashboard(ctx context.Context, providerID uuid.UUID, limit, offset int) ([]*DashboardEntry, int, error)
}
