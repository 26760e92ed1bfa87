package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/trpi/scheduling-server-go/internal/model"
	"github.com/trpi/scheduling-server-go/internal/scheduling"
)

// ActiveSlotConstraint is the partial unique index that allows a single
// non-cancelled session per therapist slot.
const ActiveSlotConstraint = "sessions_active_slot_key"

type SessionRepository interface {
	FindByID(ctx context.Context, id string) (*model.Session, error)
	FindByRoomName(ctx context.Context, roomName string) (*model.Session, error)
	Create(ctx context.Context, params model.CreateSessionParams) (*model.Session, error)
	List(ctx context.Context, filter model.SessionFilter) ([]model.Session, error)
	Count(ctx context.Context, filter model.SessionFilter) (int, error)
	// ListActiveByTherapist returns non-cancelled sessions in [from, to].
	ListActiveByTherapist(ctx context.Context, therapistID string, from, to scheduling.Date) ([]model.Session, error)
	// Transition moves a session from one status to another. It returns nil
	// when the session is no longer in the expected status.
	Transition(ctx context.Context, id string, from, to model.SessionStatus, reason *string) (*model.Session, error)
	// Reschedule moves a session to a new slot while it is still in status.
	Reschedule(ctx context.Context, id string, status model.SessionStatus, date scheduling.Date, start scheduling.Clock) (*model.Session, error)
	// SetRoom stores the video room unless one was already assigned.
	SetRoom(ctx context.Context, id, roomName, roomURL string) (*model.Session, error)
	CancelStalePending(ctx context.Context, now time.Time, timezone string, reason string) ([]model.Session, error)
	CountByStatus(ctx context.Context) (map[model.SessionStatus]int, error)
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) SessionRepository
}

type sessionRepo struct {
	db sqlxDB
}

func NewSessionRepository(db *sqlx.DB) SessionRepository {
	return &sessionRepo{db: db}
}

func (r *sessionRepo) WithTx(tx *sqlx.Tx) SessionRepository {
	return &sessionRepo{db: tx}
}

func (r *sessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	return getOne[model.Session](ctx, r.db, `
		SELECT * FROM sessions WHERE id = $1
	`, id)
}

func (r *sessionRepo) FindByRoomName(ctx context.Context, roomName string) (*model.Session, error) {
	return getOne[model.Session](ctx, r.db, `
		SELECT * FROM sessions WHERE room_name = $1
	`, roomName)
}

func (r *sessionRepo) Create(ctx context.Context, params model.CreateSessionParams) (*model.Session, error) {
	return getOne[model.Session](ctx, r.db, `
		INSERT INTO sessions
			(user_id, therapist_id, scheduled_date, scheduled_time, duration_minutes, status, title, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING *
	`, params.UserID, params.TherapistID, params.ScheduledDate, params.ScheduledTime,
		params.DurationMinutes, params.Status, params.Title, params.Notes)
}

func buildSessionFilter(filter model.SessionFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if filter.UserID != "" {
		add("user_id = $%d", filter.UserID)
	}
	if filter.TherapistID != "" {
		add("therapist_id = $%d", filter.TherapistID)
	}
	if filter.Status != "" {
		add("status = $%d", filter.Status)
	}
	if filter.From != nil {
		add("scheduled_date >= $%d", *filter.From)
	}
	if filter.To != nil {
		add("scheduled_date <= $%d", *filter.To)
	}

	if len(conds) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}

func (r *sessionRepo) List(ctx context.Context, filter model.SessionFilter) ([]model.Session, error) {
	where, args := buildSessionFilter(filter)
	args = append(args, filter.Limit, filter.Offset)

	query := fmt.Sprintf(`
		SELECT * FROM sessions
		%s
		ORDER BY scheduled_date DESC, scheduled_time DESC
		LIMIT $%d OFFSET $%d
	`, where, len(args)-1, len(args))

	var sessions []model.Session
	if err := r.db.SelectContext(ctx, &sessions, query, args...); err != nil {
		return nil, err
	}
	return sessions, nil
}

func (r *sessionRepo) Count(ctx context.Context, filter model.SessionFilter) (int, error) {
	where, args := buildSessionFilter(filter)

	var count int
	err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM sessions "+where, args...)
	return count, err
}

func (r *sessionRepo) ListActiveByTherapist(ctx context.Context, therapistID string, from, to scheduling.Date) ([]model.Session, error) {
	var sessions []model.Session
	err := r.db.SelectContext(ctx, &sessions, `
		SELECT * FROM sessions
		WHERE therapist_id = $1
		AND scheduled_date BETWEEN $2 AND $3
		AND status <> 'cancelled'
		ORDER BY scheduled_date, scheduled_time
	`, therapistID, from, to)
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

func (r *sessionRepo) Transition(ctx context.Context, id string, from, to model.SessionStatus, reason *string) (*model.Session, error) {
	return getOne[model.Session](ctx, r.db, `
		UPDATE sessions SET
			status = $3::text,
			started_at = CASE WHEN $3::text = 'in_progress' THEN COALESCE(started_at, $4) ELSE started_at END,
			completed_at = CASE WHEN $3::text = 'completed' THEN $4 ELSE completed_at END,
			cancelled_at = CASE WHEN $3::text = 'cancelled' THEN $4 ELSE cancelled_at END,
			cancellation_reason = CASE WHEN $3::text = 'cancelled' THEN $5 ELSE cancellation_reason END,
			updated_at = $4
		WHERE id = $1 AND status = $2
		RETURNING *
	`, id, from, to, time.Now(), reason)
}

func (r *sessionRepo) Reschedule(ctx context.Context, id string, status model.SessionStatus, date scheduling.Date, start scheduling.Clock) (*model.Session, error) {
	return getOne[model.Session](ctx, r.db, `
		UPDATE sessions SET
			scheduled_date = $3,
			scheduled_time = $4,
			updated_at = $5
		WHERE id = $1 AND status = $2
		RETURNING *
	`, id, status, date, start, time.Now())
}

func (r *sessionRepo) SetRoom(ctx context.Context, id, roomName, roomURL string) (*model.Session, error) {
	return getOne[model.Session](ctx, r.db, `
		UPDATE sessions SET
			room_name = $2,
			room_url = $3,
			updated_at = $4
		WHERE id = $1 AND room_name IS NULL
		RETURNING *
	`, id, roomName, roomURL, time.Now())
}

func (r *sessionRepo) CancelStalePending(ctx context.Context, now time.Time, timezone string, reason string) ([]model.Session, error) {
	var sessions []model.Session
	err := r.db.SelectContext(ctx, &sessions, `
		UPDATE sessions SET
			status = 'cancelled',
			cancelled_at = $1,
			cancellation_reason = $3,
			updated_at = $1
		WHERE status = 'pending_approval'
		AND ((scheduled_date + scheduled_time::time) AT TIME ZONE $2) <= $1
		RETURNING *
	`, now, timezone, reason)
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

func (r *sessionRepo) CountByStatus(ctx context.Context) (map[model.SessionStatus]int, error) {
	var rows []struct {
		Status model.SessionStatus `db:"status"`
		Count  int                 `db:"count"`
	}
	err := r.db.SelectContext(ctx, &rows, `
		SELECT status, COUNT(*) AS count FROM sessions GROUP BY status
	`)
	if err != nil {
		return nil, err
	}

	counts := make(map[model.SessionStatus]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}
