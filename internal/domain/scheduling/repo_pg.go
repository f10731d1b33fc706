package scheduling

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/easyapt/easyapt/internal/platform/db"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) db.Queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const apptColumns = `id, patient_id, provider_id, start_time, end_time, status, reason, created_at, updated_at`

// mapConflict translates a violation of the appointments exclusion constraint
// (SQLSTATE 23P01) into ErrSlotConflict. The constraint closes the window
// between the overlap check and the write under concurrent bookings.
func mapConflict(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23P01" {
		return ErrSlotConflict
	}
	return err
}

func (r *repoPG) Create(ctx context.Context, a *Appointment) error {
	a.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO appointments (id, patient_id, provider_id, start_time, end_time, status, reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, a.PatientID, a.ProviderID, a.StartTime, a.EndTime, a.Status, a.Reason,
	)
	return mapConflict(err)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return scanAppt(r.conn(ctx).QueryRow(ctx, `SELECT `+apptColumns+` FROM appointments WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, a *Appointment) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE appointments SET
			start_time = $2, end_time = $3, status = $4, reason = $5, updated_at = NOW()
		WHERE id = $1`,
		a.ID, a.StartTime, a.EndTime, a.Status, a.Reason,
	)
	return mapConflict(err)
}

func (r *repoPG) HasOverlap(ctx context.Context, providerID uuid.UUID, start, end time.Time, excludeID uuid.UUID) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE provider_id = $1
			  AND status = $2
			  AND start_time < $4
			  AND end_time > $3
			  AND ($5::uuid IS NULL OR id != $5)
		)`,
		providerID, StatusBooked, start, end, nilIfZero(excludeID),
	).Scan(&exists)
	return exists, err
}

func nilIfZero(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM appointments WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+apptColumns+` FROM appointments
		WHERE patient_id = $1 ORDER BY start_time DESC LIMIT $2 OFFSET $3`,
		patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	return scanAppts(rows, total)
}

func (r *repoPG) ListUpcomingByProvider(ctx context.Context, providerID uuid.UUID, now time.Time, limit, offset int) ([]*Appointment, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*) FROM appointments
		WHERE provider_id = $1 AND status = $2 AND end_time > $3`,
		providerID, StatusBooked, now).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+apptColumns+` FROM appointments
		WHERE provider_id = $1 AND status = $2 AND end_time > $3
		ORDER BY start_time LIMIT $4 OFFSET $5`,
		providerID, StatusBooked, now, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	return scanAppts(rows, total)
}

func (r *repoPG) ListDashboard(ctx context.Context, providerID uuid.UUID, limit, offset int) ([]*DashboardEntry, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM appointments WHERE provider_id = $1 AND status = $2`,
		providerID, StatusBooked).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT a.id, a.patient_id, a.provider_id, a.start_time, a.end_time, a.status, a.reason,
		       a.created_at, a.updated_at, COALESCE(p.full_name, '')
		FROM appointments a
		LEFT JOIN patient_profiles p ON p.user_id = a.patient_id
		WHERE a.provider_id = $1 AND a.status = $2
		ORDER BY a.start_time LIMIT $3 OFFSET $4`,
		providerID, StatusBooked, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var entries []*DashboardEntry
	for rows.Next() {
		var e DashboardEntry
		if err := rows.Scan(
			&e.ID, &e.PatientID, &e.ProviderID, &e.StartTime, &e.EndTime, &e.Status, &e.Reason,
			&e.CreatedAt, &e.UpdatedAt, &e.PatientName,
		); err != nil {
			return nil, 0, err
		}
		entries = append(entries, &e)
	}
	return entries, total, rows.Err()
}

func scanAppt(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(
		&a.ID, &a.PatientID, &a.ProviderID, &a.StartTime, &a.EndTime, &a.Status, &a.Reason,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

func scanAppts(rows pgx.Rows, total int) ([]*Appointment, int, error) {
	var appts []*Appointment
	for rows.Next() {
		var a Appointment
		if err := rows.Scan(
			&a.ID, &a.PatientID, &a.ProviderID, &a.StartTime, &a.EndTime, &a.Status, &a.Reason,
			&a.CreatedAt, &a.UpdatedAt,
		); err != nil {
			return nil, 0, err
		}
		appts = append(appts, &a)
	}
	return appts, total, rows.Err()
}
