package scheduling

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/easyapt/easyapt/internal/domain/identity"
	"github.com/easyapt/easyapt/internal/domain/patient"
	"github.com/easyapt/easyapt/internal/domain/provider"
)

var (
	ErrNotFound         = errors.New("appointment not found")
	ErrForbidden        = errors.New("appointment belongs to another patient")
	ErrInvalidRange     = errors.New("start_time must be before end_time")
	ErrSlotConflict     = errors.New("the requested slot overlaps an existing booking")
	ErrProviderNotFound = errors.New("provider not found")
)

// ProviderDirectory resolves providers referenced by bookings and maps a
// provider-role account to its directory entry.
type ProviderDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*provider.Provider, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*provider.Provider, error)
}

// PatientDirectory resolves the booking patient's profile for display names
// and contact phone numbers.
type PatientDirectory interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (*patient.Profile, error)
}

// AccountDirectory resolves the booking patient's account for its email.
type AccountDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*identity.User, error)
}

// Notifier is the booking-lifecycle subset of the notification dispatcher.
// All calls are best-effort; they never fail the triggering operation.
type Notifier interface {
	SendBookingConfirmation(ctx context.Context, phone, email, name, provider string, start time.Time)
	SendCancellation(ctx context.Context, email, name, provider string, start time.Time)
	SendReschedule(ctx context.Context, email, name, provider string, oldStart, newStart time.Time)
	ScheduleReminder(appointmentID uuid.UUID, email, name, provider string, start time.Time)
	CancelReminder(appointmentID uuid.UUID)
}

// TxRunner executes fn inside a database transaction. A nil TxRunner runs fn
// directly, which unit tests rely on.
type TxRunner func(ctx context.Context, fn func(ctx context.Context) error) error

type Service struct {
	repo      Repository
	providers ProviderDirectory
	patients  PatientDirectory
	accounts  AccountDirectory
	notifier  Notifier
	tx        TxRunner
	logger    zerolog.Logger
}

func NewService(repo Repository, providers ProviderDirectory, patients PatientDirectory, accounts AccountDirectory, notifier Notifier, tx TxRunner, logger zerolog.Logger) *Service {
	if tx == nil {
		tx = func(ctx context.Context, fn func(ctx context.Context) error) error { return fn(ctx) }
	}
	return &Service{
		repo:      repo,
		providers: providers,
		patients:  patients,
		accounts:  accounts,
		notifier:  notifier,
		tx:        tx,
		logger:    logger.With().Str("component", "scheduling").Logger(),
	}
}

// Book creates an appointment in the booked state. The overlap check runs
// inside the same transaction as the insert, and the database exclusion
// constraint backstops the race two concurrent bookings would otherwise win
// together.
func (s *Service) Book(ctx context.Context, patientID, providerID uuid.UUID, start, end time.Time, reason string) (*Appointment, error) {
	start, end = start.UTC(), end.UTC()
	if !start.Before(end) {
		return nil, ErrInvalidRange
	}

	prov, err := s.providers.GetByID(ctx, providerID)
	if err != nil {
		if errors.Is(err, provider.ErrNotFound) {
			return nil, ErrProviderNotFound
		}
		return nil, err
	}

	appt := &Appointment{
		PatientID:  patientID,
		ProviderID: providerID,
		StartTime:  start,
		EndTime:    end,
		Status:     StatusBooked,
		Reason:     reason,
	}
	err = s.tx(ctx, func(ctx context.Context) error {
		overlaps, err := s.repo.HasOverlap(ctx, providerID, start, end, uuid.Nil)
		if err != nil {
			return err
		}
		if overlaps {
			return ErrSlotConflict
		}
		return s.repo.Create(ctx, appt)
	})
	if err != nil {
		return nil, err
	}

	name, phone, email := s.contactFor(ctx, patientID)
	s.notifier.SendBookingConfirmation(ctx, phone, email, name, prov.Name, start)
	s.notifier.ScheduleReminder(appt.ID, email, name, prov.Name, start)
	return appt, nil
}

// Reschedule moves an existing appointment to a new range, keeping its
// identity. Only the booking patient may reschedule.
func (s *Service) Reschedule(ctx context.Context, appointmentID, requesterID uuid.UUID, newStart, newEnd time.Time) (*Appointment, error) {
	newStart, newEnd = newStart.UTC(), newEnd.UTC()
	if !newStart.Before(newEnd) {
		return nil, ErrInvalidRange
	}

	appt, err := s.repo.GetByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if appt.PatientID != requesterID {
		return nil, ErrForbidden
	}
	if appt.Status != StatusBooked {
		return nil, ErrNotFound
	}

	oldStart := appt.StartTime
	appt.StartTime = newStart
	appt.EndTime = newEnd

	err = s.tx(ctx, func(ctx context.Context) error {
		overlaps, err := s.repo.HasOverlap(ctx, appt.ProviderID, newStart, newEnd, appt.ID)
		if err != nil {
			return err
		}
		if overlaps {
			return ErrSlotConflict
		}
		return s.repo.Update(ctx, appt)
	})
	if err != nil {
		return nil, err
	}

	name, _, email := s.contactFor(ctx, appt.PatientID)
	provName := s.providerName(ctx, appt.ProviderID)
	s.notifier.SendReschedule(ctx, email, name, provName, oldStart, newStart)
	s.notifier.ScheduleReminder(appt.ID, email, name, provName, newStart)
	return appt, nil
}

// Cancel soft-deletes an appointment. Cancelling an already-cancelled
// appointment succeeds without side effects.
func (s *Service) Cancel(ctx context.Context, appointmentID, requesterID uuid.UUID) error {
	appt, err := s.repo.GetByID(ctx, appointmentID)
	if err != nil {
		return err
	}
	if appt.PatientID != requesterID {
		return ErrForbidden
	}
	if appt.Status == StatusCancelled {
		return nil
	}

	appt.Status = StatusCancelled
	if err := s.repo.Update(ctx, appt); err != nil {
		return err
	}

	s.notifier.CancelReminder(appt.ID)
	name, _, email := s.contactFor(ctx, appt.PatientID)
	s.notifier.SendCancellation(ctx, email, name, s.providerName(ctx, appt.ProviderID), appt.StartTime)
	return nil
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListForPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}

func (s *Service) ListUpcomingForProvider(ctx context.Context, providerID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	return s.repo.ListUpcomingByProvider(ctx, providerID, time.Now().UTC(), limit, offset)
}

// ProviderDashboard lists the booked slots of the provider entry linked to
// the calling account. A caller without a linked entry sees an empty page,
// never another provider's bookings.
func (s *Service) ProviderDashboard(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*DashboardEntry, int, error) {
	p, err := s.providers.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, provider.ErrNotFound) {
			return nil, 0, nil
		}
		return nil, 0, err
	}
	return s.repo.ListDashboard(ctx, p.ID, limit, offset)
}

// contactFor resolves a patient's display name, phone, and email for
// notifications. Lookups degrade gracefully: a missing profile falls back to
// the account email as display name.
func (s *Service) contactFor(ctx context.Context, patientID uuid.UUID) (name, phone, email string) {
	if user, err := s.accounts.GetByID(ctx, patientID); err == nil {
		email = user.Email
		name = user.Email
	} else {
		s.logger.Warn().Err(err).Str("patient_id", patientID.String()).Msg("account lookup failed for notification")
	}
	if profile, err := s.patients.GetByUserID(ctx, patientID); err == nil {
		if profile.FullName != "" {
			name = profile.FullName
		}
		phone = profile.Phone
	}
	return name, phone, email
}

func (s *Service) providerName(ctx context.Context, providerID uuid.UUID) string {
	prov, err := s.providers.GetByID(ctx, providerID)
	if err != nil {
		return ""
	}
	return prov.Name
}
