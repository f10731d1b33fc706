package patient

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
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

const profileColumns = `id, user_id, full_name, date_of_birth, phone, insurance, created_at, updated_at`

func (r *repoPG) GetByUserID(ctx context.Context, userID uuid.UUID) (*Profile, error) {
	var p Profile
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT `+profileColumns+` FROM patient_profiles WHERE user_id = $1`, userID).Scan(
		&p.ID, &p.UserID, &p.FullName, &p.DateOfBirth, &p.Phone, &p.Insurance, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *repoPG) Upsert(ctx context.Context, profile *Profile) error {
	if profile.ID == uuid.Nil {
		profile.ID = uuid.New()
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patient_profiles (id, user_id, full_name, date_of_birth, phone, insurance)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE SET
			full_name = EXCLUDED.full_name,
			date_of_birth = EXCLUDED.date_of_birth,
			phone = EXCLUDED.phone,
			insurance = EXCLUDED.insurance,
			updated_at = NOW()
		RETURNING id, created_at, updated_at`,
		profile.ID, profile.UserID, profile.FullName, profile.DateOfBirth, profile.Phone, profile.Insurance,
	).Scan(&profile.ID, &profile.CreatedAt, &profile.UpdatedAt)
}
