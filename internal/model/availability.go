package model

import (
	"time"

	"github.com/trpi/scheduling-server-go/internal/scheduling"
)

type AvailabilityTemplate struct {
	ID              string           `db:"id" json:"id"`
	TherapistID     string           `db:"therapist_id" json:"therapistId"`
	DayOfWeek       int              `db:"day_of_week" json:"dayOfWeek"`
	StartTime       scheduling.Clock `db:"start_time" json:"startTime"`
	EndTime         scheduling.Clock `db:"end_time" json:"endTime"`
	SessionDuration int              `db:"session_duration" json:"sessionDuration"`
	MaxSessions     int              `db:"max_sessions" json:"maxSessions"`
	IsActive        bool             `db:"is_active" json:"isActive"`
	CreatedAt       time.Time        `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time        `db:"updated_at" json:"updatedAt"`
}

func (t AvailabilityTemplate) ToScheduling() scheduling.Template {
	return scheduling.Template{
		Weekday:     time.Weekday(t.DayOfWeek),
		Start:       t.StartTime,
		End:         t.EndTime,
		Duration:    t.SessionDuration,
		MaxSessions: t.MaxSessions,
	}
}

type UpsertTemplateParams struct {
	TherapistID     string
	DayOfWeek       int
	StartTime       scheduling.Clock
	EndTime         scheduling.Clock
	SessionDuration int
	MaxSessions     int
}

type AvailabilityOverride struct {
	ID           string                  `db:"id" json:"id"`
	TherapistID  string                  `db:"therapist_id" json:"therapistId"`
	OverrideDate scheduling.Date         `db:"override_date" json:"date"`
	OverrideType scheduling.OverrideType `db:"override_type" json:"type"`
	StartTime    *scheduling.Clock       `db:"start_time" json:"startTime,omitempty"`
	EndTime      *scheduling.Clock       `db:"end_time" json:"endTime,omitempty"`
	Reason       *string                 `db:"reason" json:"reason,omitempty"`
	CreatedAt    time.Time               `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time               `db:"updated_at" json:"updatedAt"`
}

func (o AvailabilityOverride) ToScheduling() scheduling.Override {
	return scheduling.Override{
		Date:  o.OverrideDate,
		Type:  o.OverrideType,
		Start: o.StartTime,
		End:   o.EndTime,
	}
}

type UpsertOverrideParams struct {
	TherapistID  string
	OverrideDate scheduling.Date
	OverrideType scheduling.OverrideType
	StartTime    *scheduling.Clock
	EndTime      *scheduling.Clock
	Reason       *string
}
