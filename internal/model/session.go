package model

import (
	"time"

	"github.com/trpi/scheduling-server-go/internal/scheduling"
)

// Session is a booked therapy session between a user and a therapist.
type Session struct {
	ID                 string           `db:"id" json:"id"`
	UserID             string           `db:"user_id" json:"userId"`
	TherapistID        string           `db:"therapist_id" json:"therapistId"`
	ScheduledDate      scheduling.Date  `db:"scheduled_date" json:"scheduledDate"`
	ScheduledTime      scheduling.Clock `db:"scheduled_time" json:"scheduledTime"`
	DurationMinutes    int              `db:"duration_minutes" json:"durationMinutes"`
	Status             SessionStatus    `db:"status" json:"status"`
	Title              string           `db:"title" json:"title"`
	Notes              *string          `db:"notes" json:"notes,omitempty"`
	RoomName           *string          `db:"room_name" json:"roomName,omitempty"`
	RoomURL            *string          `db:"room_url" json:"roomUrl,omitempty"`
	StartedAt          *time.Time       `db:"started_at" json:"startedAt,omitempty"`
	CompletedAt        *time.Time       `db:"completed_at" json:"completedAt,omitempty"`
	CancelledAt        *time.Time       `db:"cancelled_at" json:"cancelledAt,omitempty"`
	CancellationReason *string          `db:"cancellation_reason" json:"cancellationReason,omitempty"`
	CreatedAt          time.Time        `db:"created_at" json:"createdAt"`
	UpdatedAt          time.Time        `db:"updated_at" json:"updatedAt"`
}

// IsParticipant reports whether userID is the client or the therapist.
func (s *Session) IsParticipant(userID string) bool {
	return userID != "" && (s.UserID == userID || s.TherapistID == userID)
}

func (s *Session) ToBooking() scheduling.Booking {
	return scheduling.Booking{
		Date:     s.ScheduledDate,
		Start:    s.ScheduledTime,
		Duration: s.DurationMinutes,
	}
}

type CreateSessionParams struct {
	UserID          string
	TherapistID     string
	ScheduledDate   scheduling.Date
	ScheduledTime   scheduling.Clock
	DurationMinutes int
	Status          SessionStatus
	Title           string
	Notes           *string
}

type SessionFilter struct {
	UserID      string
	TherapistID string
	Status      SessionStatus
	From        *scheduling.Date
	To          *scheduling.Date
	Limit       int
	Offset      int
}
