package notification

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// dateFormat is how appointment times are rendered in outbound messages.
const dateFormat = "January 02, 2006 at 3:04 PM"

// Dispatcher orchestrates sending, in-memory history, and the appointment
// reminder scheduler. It is constructed by the application's composition root
// and has an explicit Start/Stop lifecycle; nothing runs at import time.
type Dispatcher struct {
	email     EmailSender
	sms       SMSSender
	templates *TemplateEngine
	logger    zerolog.Logger
	leadTime  time.Duration

	mu        sync.RWMutex
	history   map[string]*Notification
	reminders map[uuid.UUID]*time.Timer
	running   bool
}

// NewDispatcher constructs a Dispatcher. reminderLead is how long before an
// appointment's start the reminder fires.
func NewDispatcher(email EmailSender, sms SMSSender, tpl *TemplateEngine, reminderLead time.Duration, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		email:     email,
		sms:       sms,
		templates: tpl,
		logger:    logger.With().Str("component", "notification").Logger(),
		leadTime:  reminderLead,
		history:   make(map[string]*Notification),
		reminders: make(map[uuid.UUID]*time.Timer),
	}
}

// Start enables the reminder scheduler. Reminders scheduled before Start are
// rejected.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	d.running = true
	d.mu.Unlock()
	d.logger.Info().Dur("reminder_lead", d.leadTime).Msg("notification dispatcher started")
}

// Stop cancels all pending reminders and stops accepting new ones.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.running = false
	for id, timer := range d.reminders {
		timer.Stop()
		delete(d.reminders, id)
	}
	d.logger.Info().Msg("notification dispatcher stopped")
}

// Send dispatches a notification through the appropriate channel, assigns an
// ID and timestamps, and records the outcome in history.
func (d *Dispatcher) Send(ctx context.Context, n *Notification) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	n.CreatedAt = time.Now().UTC()
	n.Status = "pending"

	sendErr := d.deliver(ctx, n)
	if sendErr != nil {
		n.Status = "failed"
		n.Error = sendErr.Error()
	} else {
		n.Status = "sent"
		sentAt := time.Now().UTC()
		n.SentAt = &sentAt
	}

	d.mu.Lock()
	d.history[n.ID] = n
	d.mu.Unlock()

	return sendErr
}

func (d *Dispatcher) deliver(ctx context.Context, n *Notification) error {
	switch n.Type {
	case TypeEmail:
		return d.email.SendEmail(ctx, n.Recipient, n.Subject, n.Body)
	case TypeSMS:
		return d.sms.SendSMS(ctx, n.Recipient, n.Body)
	default:
		return fmt.Errorf("unsupported notification type: %s", n.Type)
	}
}

// SendFromTemplate renders a template and sends the resulting notification.
func (d *Dispatcher) SendFromTemplate(ctx context.Context, templateID, recipient string, data map[string]string) (*Notification, error) {
	subject, body, err := d.templates.Render(templateID, data)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}
	tpl, _ := d.templates.Lookup(templateID)

	n := &Notification{
		Type:         tpl.Type,
		Recipient:    recipient,
		Subject:      subject,
		Body:         body,
		TemplateID:   templateID,
		TemplateData: data,
	}
	if err := d.Send(ctx, n); err != nil {
		return n, err
	}
	return n, nil
}

// sendBestEffort dispatches a templated notification and swallows any error
// after logging it. Business operations rely on this to never fail on
// notification problems.
func (d *Dispatcher) sendBestEffort(ctx context.Context, templateID, recipient string, data map[string]string) {
	if recipient == "" {
		return
	}
	if _, err := d.SendFromTemplate(ctx, templateID, recipient, data); err != nil {
		d.logger.Warn().Err(err).
			Str("template", templateID).
			Str("recipient", recipient).
			Msg("notification dispatch failed")
	}
}

// SendWelcome fires the account-creation email.
func (d *Dispatcher) SendWelcome(ctx context.Context, email, name string) {
	d.sendBestEffort(ctx, "welcome", email, map[string]string{"patient_name": name})
}

// SendBookingConfirmation fires the confirmation SMS and email for a new
// booking. Either recipient may be empty.
func (d *Dispatcher) SendBookingConfirmation(ctx context.Context, phone, email, name, provider string, start time.Time) {
	date := start.Format(dateFormat)
	d.sendBestEffort(ctx, "booking-confirmation-sms", phone, map[string]string{"date": date})
	d.sendBestEffort(ctx, "booking-confirmation", email, map[string]string{
		"patient_name": name,
		"provider":     provider,
		"date":         date,
	})
}

// SendCancellation fires the cancellation email.
func (d *Dispatcher) SendCancellation(ctx context.Context, email, name, provider string, start time.Time) {
	d.sendBestEffort(ctx, "cancellation", email, map[string]string{
		"patient_name": name,
		"provider":     provider,
		"date":         start.Format(dateFormat),
	})
}

// SendReschedule fires the reschedule email carrying old and new times.
func (d *Dispatcher) SendReschedule(ctx context.Context, email, name, provider string, oldStart, newStart time.Time) {
	d.sendBestEffort(ctx, "reschedule", email, map[string]string{
		"patient_name": name,
		"provider":     provider,
		"old_date":     oldStart.Format(dateFormat),
		"new_date":     newStart.Format(dateFormat),
	})
}

// ScheduleReminder queues an appointment reminder to fire leadTime before
// start. Reminders in the past and duplicate appointment ids replace nothing
// silently; rescheduling an appointment should call ScheduleReminder again,
// which resets the timer.
func (d *Dispatcher) ScheduleReminder(appointmentID uuid.UUID, email, name, provider string, start time.Time) {
	runIn := time.Until(start.Add(-d.leadTime))
	if runIn <= 0 {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running {
		return
	}
	if old, ok := d.reminders[appointmentID]; ok {
		old.Stop()
	}
	d.reminders[appointmentID] = time.AfterFunc(runIn, func() {
		d.mu.Lock()
		delete(d.reminders, appointmentID)
		d.mu.Unlock()
		d.sendBestEffort(context.Background(), "appointment-reminder", email, map[string]string{
			"patient_name": name,
			"provider":     provider,
			"date":         start.Format(dateFormat),
		})
	})
}

// CancelReminder drops any pending reminder for the appointment.
func (d *Dispatcher) CancelReminder(appointmentID uuid.UUID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if timer, ok := d.reminders[appointmentID]; ok {
		timer.Stop()
		delete(d.reminders, appointmentID)
	}
}

// PendingReminders reports how many reminders are queued.
func (d *Dispatcher) PendingReminders() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.reminders)
}

// Get retrieves a notification by ID.
func (d *Dispatcher) Get(id string) (*Notification, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	n, ok := d.history[id]
	if !ok {
		return nil, fmt.Errorf("notification %q not found", id)
	}
	return n, nil
}

// ListByRecipient returns notifications for a recipient, up to limit.
func (d *Dispatcher) ListByRecipient(recipient string, limit int) []*Notification {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var result []*Notification
	for _, n := range d.history {
		if n.Recipient == recipient {
			result = append(result, n)
			if len(result) >= limit {
				break
			}
		}
	}
	return result
}

// Retry re-sends a failed notification. Returns an error if the notification
// is not in "failed" status.
func (d *Dispatcher) Retry(ctx context.Context, id string) error {
	d.mu.RLock()
	n, ok := d.history[id]
	d.mu.RUnlock()
	if !ok {
		return fmt.Errorf("notification %q not found", id)
	}
	if n.Status != "failed" {
		return fmt.Errorf("notification %q is not in failed status (current: %s)", id, n.Status)
	}

	sendErr := d.deliver(ctx, n)

	d.mu.Lock()
	if sendErr != nil {
		n.Status = "failed"
		n.Error = sendErr.Error()
	} else {
		n.Status = "sent"
		sentAt := time.Now().UTC()
		n.SentAt = &sentAt
		n.Error = ""
	}
	d.mu.Unlock()

	return sendErr
}

// Stats returns counts of notifications grouped by status.
func (d *Dispatcher) Stats() map[string]int {
	d.mu.RLock()
	defer d.mu.RUnlock()

	stats := make(map[string]int)
	for _, n := range d.history {
		stats[n.Status]++
	}
	return stats
}
