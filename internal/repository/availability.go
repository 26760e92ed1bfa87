package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/trpi/scheduling-server-go/internal/model"
	"github.com/trpi/scheduling-server-go/internal/scheduling"
)

type AvailabilityRepository interface {
	ListTemplates(ctx context.Context, therapistID string) ([]model.AvailabilityTemplate, error)
	// UpsertTemplate writes the template for one weekday; at most one row
	// exists per therapist and day.
	UpsertTemplate(ctx context.Context, params model.UpsertTemplateParams) (*model.AvailabilityTemplate, error)
	DeleteTemplate(ctx context.Context, therapistID string, dayOfWeek int) (bool, error)
	DeleteAllTemplates(ctx context.Context, therapistID string) error

	ListOverrides(ctx context.Context, therapistID string, from, to scheduling.Date) ([]model.AvailabilityOverride, error)
	UpsertOverride(ctx context.Context, params model.UpsertOverrideParams) (*model.AvailabilityOverride, error)
	DeleteOverride(ctx context.Context, therapistID string, date scheduling.Date) (bool, error)

	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) AvailabilityRepository
}

type availabilityRepo struct {
	db sqlxDB
}

func NewAvailabilityRepository(db *sqlx.DB) AvailabilityRepository {
	return &availabilityRepo{db: db}
}

func (r *availabilityRepo) WithTx(tx *sqlx.Tx) AvailabilityRepository {
	return &availabilityRepo{db: tx}
}

func (r *availabilityRepo) ListTemplates(ctx context.Context, therapistID string) ([]model.AvailabilityTemplate, error) {
	var templates []model.AvailabilityTemplate
	err := r.db.SelectContext(ctx, &templates, `
		SELECT * FROM therapist_availability
		WHERE therapist_id = $1 AND is_active
		ORDER BY day_of_week
	`, therapistID)
	if err != nil {
		return nil, err
	}
	return templates, nil
}

func (r *availabilityRepo) UpsertTemplate(ctx context.Context, params model.UpsertTemplateParams) (*model.AvailabilityTemplate, error) {
	var tmpl model.AvailabilityTemplate
	err := r.db.GetContext(ctx, &tmpl, `
		INSERT INTO therapist_availability
			(therapist_id, day_of_week, start_time, end_time, session_duration, max_sessions)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT ON CONSTRAINT therapist_availability_day_key DO UPDATE SET
			start_time = EXCLUDED.start_time,
			end_time = EXCLUDED.end_time,
			session_duration = EXCLUDED.session_duration,
			max_sessions = EXCLUDED.max_sessions,
			is_active = TRUE,
			updated_at = $7
		RETURNING *
	`, params.TherapistID, params.DayOfWeek, params.StartTime, params.EndTime,
		params.SessionDuration, params.MaxSessions, time.Now())
	if err != nil {
		return nil, err
	}
	return &tmpl, nil
}

func (r *availabilityRepo) DeleteTemplate(ctx context.Context, therapistID string, dayOfWeek int) (bool, error) {
	n, err := rowsAffected(r.db.ExecContext(ctx, `
		DELETE FROM therapist_availability
		WHERE therapist_id = $1 AND day_of_week = $2
	`, therapistID, dayOfWeek))
	return n > 0, err
}

func (r *availabilityRepo) DeleteAllTemplates(ctx context.Context, therapistID string) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM therapist_availability WHERE therapist_id = $1
	`, therapistID)
	return err
}

func (r *availabilityRepo) ListOverrides(ctx context.Context, therapistID string, from, to scheduling.Date) ([]model.AvailabilityOverride, error) {
	var overrides []model.AvailabilityOverride
	err := r.db.SelectContext(ctx, &overrides, `
		SELECT * FROM availability_overrides
		WHERE therapist_id = $1 AND override_date BETWEEN $2 AND $3
		ORDER BY override_date
	`, therapistID, from, to)
	if err != nil {
		return nil, err
	}
	return overrides, nil
}

func (r *availabilityRepo) UpsertOverride(ctx context.Context, params model.UpsertOverrideParams) (*model.AvailabilityOverride, error) {
	var override model.AvailabilityOverride
	err := r.db.GetContext(ctx, &override, `
		INSERT INTO availability_overrides
			(therapist_id, override_date, override_type, start_time, end_time, reason)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT ON CONSTRAINT availability_overrides_date_key DO UPDATE SET
			override_type = EXCLUDED.override_type,
			start_time = EXCLUDED.start_time,
			end_time = EXCLUDED.end_time,
			reason = EXCLUDED.reason,
			updated_at = $7
		RETURNING *
	`, params.TherapistID, params.OverrideDate, params.OverrideType,
		params.StartTime, params.EndTime, params.Reason, time.Now())
	if err != nil {
		return nil, err
	}
	return &override, nil
}

func (r *availabilityRepo) DeleteOverride(ctx context.Context, therapistID string, date scheduling.Date) (bool, error) {
	n, err := rowsAffected(r.db.ExecContext(ctx, `
		DELETE FROM availability_overrides
		WHERE therapist_id = $1 AND override_date = $2
	`, therapistID, date))
	return n > 0, err
}
