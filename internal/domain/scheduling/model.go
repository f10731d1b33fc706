package scheduling

import (
	"time"

	"github.com/google/uuid"
)

// Appointment statuses. Cancelled is terminal; cancelled rows are retained
// for history and never physically removed.
const (
	StatusBooked    = "booked"
	StatusCancelled = "cancelled"
	StatusCompleted = "completed"
)

// Appointment is a booked slot against a provider. The half-open range
// [StartTime, EndTime) may not overlap any other booked appointment for the
// same provider.
type Appointment struct {
	ID         uuid.UUID `json:"id"`
	PatientID  uuid.UUID `json:"patient_id"`
	ProviderID uuid.UUID `json:"provider_id"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
	Status     string    `json:"status"`
	Reason     string    `json:"reason,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// DashboardEntry is an appointment joined with the booking patient's display
// name, as shown on the provider dashboard.
type DashboardEntry struct {
	Appointment
	PatientName string `json:"patient_name"`
}
