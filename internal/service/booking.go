package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/trpi/scheduling-server-go/internal/audit"
	"github.com/trpi/scheduling-server-go/internal/config"
	"github.com/trpi/scheduling-server-go/internal/database"
	apperrors "github.com/trpi/scheduling-server-go/internal/errors"
	"github.com/trpi/scheduling-server-go/internal/model"
	redisclient "github.com/trpi/scheduling-server-go/internal/redis"
	"github.com/trpi/scheduling-server-go/internal/repository"
	"github.com/trpi/scheduling-server-go/internal/scheduling"
	"github.com/trpi/scheduling-server-go/internal/sse"
	"github.com/trpi/scheduling-server-go/internal/util"
)

// Live event types published to both participants of a session.
const (
	EventSessionBooked  = "session.booked"
	EventSessionUpdated = "session.updated"
)

const (
	defaultSessionTitle = "Therapy session"
	staleCancelReason   = "Not approved before the scheduled start"
	roomGracePeriod     = time.Hour
)

type BookParams struct {
	TherapistID string
	Date        scheduling.Date
	StartTime   scheduling.Clock
	Title       string
	Notes       *string
}

// BookingService writes bookings and drives the session state machine:
// pending_approval -> scheduled -> in_progress -> completed, with any
// non-terminal state allowed to move to cancelled.
type BookingService struct {
	sessionRepo      repository.SessionRepository
	availability     *AvailabilityService
	locker           SlotLocker
	events           EventPublisher
	video            VideoProvider
	requiresApproval bool
	now              func() time.Time
}

func NewBookingService(
	sessionRepo repository.SessionRepository,
	availability *AvailabilityService,
	locker SlotLocker,
	events EventPublisher,
	video VideoProvider,
	requiresApproval bool,
) *BookingService {
	return &BookingService{
		sessionRepo:      sessionRepo,
		availability:     availability,
		locker:           locker,
		events:           events,
		video:            video,
		requiresApproval: requiresApproval,
		now:              time.Now,
	}
}

// Book reserves a generated slot for the calling client.
func (s *BookingService) Book(ctx context.Context, p *model.Principal, params BookParams) (*model.Session, error) {
	if !p.Is(model.UserTypeIndividual) || p.UserID == "" {
		return nil, apperrors.Forbidden("Only clients can book sessions")
	}
	if params.Date.IsZero() {
		return nil, apperrors.MissingRequired("date")
	}
	if _, err := s.availability.Therapist(ctx, params.TherapistID); err != nil {
		return nil, err
	}

	release, err := s.lockSlot(ctx, params.TherapistID, params.Date, params.StartTime)
	if err != nil {
		return nil, err
	}
	defer release()

	slot, err := s.availability.findSlot(ctx, params.TherapistID, params.Date, params.StartTime, "")
	if err != nil {
		return nil, err
	}
	if slot == nil {
		return nil, apperrors.SlotUnavailable()
	}

	status := model.SessionStatusScheduled
	if s.requiresApproval {
		status = model.SessionStatusPendingApproval
	}
	title := params.Title
	if title == "" {
		title = defaultSessionTitle
	}

	session, err := s.sessionRepo.Create(ctx, model.CreateSessionParams{
		UserID:          p.UserID,
		TherapistID:     params.TherapistID,
		ScheduledDate:   slot.Date,
		ScheduledTime:   slot.Start,
		DurationMinutes: slot.Duration,
		Status:          status,
		Title:           title,
		Notes:           params.Notes,
	})
	if database.IsUniqueViolation(err, repository.ActiveSlotConstraint) {
		return nil, apperrors.SlotUnavailable()
	}
	if database.IsForeignKeyViolation(err) {
		// Therapist removed between the slot check and the insert.
		return nil, apperrors.NotFound("Therapist")
	}
	if err != nil {
		return nil, apperrors.Database(err)
	}

	audit.Log(ctx, audit.Event{
		Type:   audit.EventSessionBooked,
		UserID: p.UserID,
		Details: map[string]interface{}{
			"session_id":   session.ID,
			"therapist_id": session.TherapistID,
			"date":         session.ScheduledDate.String(),
			"time":         session.ScheduledTime.String(),
			"status":       string(session.Status),
		},
	})
	s.notify(ctx, EventSessionBooked, session)
	return session, nil
}

// Get returns a session visible to the caller. Sessions of other users are
// reported as not found.
func (s *BookingService) Get(ctx context.Context, p *model.Principal, id string) (*model.Session, error) {
	session, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.IsAdmin() && !session.IsParticipant(p.UserID) {
		return nil, apperrors.NotFound("Session")
	}
	return session, nil
}

// List scopes the filter to the caller: clients see their bookings,
// therapists their schedule, admins everything.
func (s *BookingService) List(ctx context.Context, p *model.Principal, filter model.SessionFilter) ([]model.Session, int, error) {
	switch {
	case p.IsAdmin():
	case p.Is(model.UserTypeIndividual):
		filter.UserID = p.UserID
	case p.Is(model.UserTypeTherapist):
		filter.TherapistID = p.UserID
	default:
		return nil, 0, apperrors.Forbidden("Sessions are not available for this account")
	}

	sessions, err := s.sessionRepo.List(ctx, filter)
	if err != nil {
		return nil, 0, apperrors.Database(err)
	}
	total, err := s.sessionRepo.Count(ctx, filter)
	if err != nil {
		return nil, 0, apperrors.Database(err)
	}
	return sessions, total, nil
}

// Approve confirms a pending booking. Only the session's therapist or an
// admin may approve.
func (s *BookingService) Approve(ctx context.Context, p *model.Principal, id string) (*model.Session, error) {
	session, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.IsAdmin() && !(p.Is(model.UserTypeTherapist) && session.TherapistID == p.UserID) {
		return nil, apperrors.Forbidden("Only the therapist or an admin can approve this session")
	}
	return s.transition(ctx, p, session, model.SessionStatusScheduled, nil)
}

func (s *BookingService) Cancel(ctx context.Context, p *model.Principal, id string, reason string) (*model.Session, error) {
	session, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.IsAdmin() && !session.IsParticipant(p.UserID) {
		return nil, apperrors.NotFound("Session")
	}
	var r *string
	if reason != "" {
		r = &reason
	}
	return s.transition(ctx, p, session, model.SessionStatusCancelled, r)
}

// Complete ends a session that is in progress.
func (s *BookingService) Complete(ctx context.Context, p *model.Principal, id string) (*model.Session, error) {
	session, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.IsAdmin() && !(p.Is(model.UserTypeTherapist) && session.TherapistID == p.UserID) {
		return nil, apperrors.Forbidden("Only the therapist or an admin can complete this session")
	}
	return s.transition(ctx, p, session, model.SessionStatusCompleted, nil)
}

// Join returns the session with its video room, creating the room on first
// use. The first join moves a scheduled session to in_progress.
func (s *BookingService) Join(ctx context.Context, p *model.Principal, id string) (*model.Session, error) {
	session, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !session.IsParticipant(p.UserID) {
		return nil, apperrors.NotFound("Session")
	}
	if session.Status != model.SessionStatusScheduled && session.Status != model.SessionStatusInProgress {
		return nil, apperrors.InvalidTransition(string(session.Status), string(model.SessionStatusInProgress))
	}

	if session.RoomURL == nil {
		session, err = s.ensureRoom(ctx, session)
		if err != nil {
			return nil, err
		}
	}

	if session.Status == model.SessionStatusScheduled {
		started, err := s.transition(ctx, p, session, model.SessionStatusInProgress, nil)
		if err == nil {
			return started, nil
		}
		// The other participant may have started it concurrently.
		if current, loadErr := s.load(ctx, id); loadErr == nil && current.Status == model.SessionStatusInProgress {
			return current, nil
		}
		return nil, err
	}
	return session, nil
}

func (s *BookingService) ensureRoom(ctx context.Context, session *model.Session) (*model.Session, error) {
	name := "trpi-" + uuid.NewString()
	end := session.ScheduledTime.On(session.ScheduledDate, s.availability.Location()).
		Add(time.Duration(session.DurationMinutes) * time.Minute)
	expiresAt := end.Add(roomGracePeriod)
	if earliest := s.now().Add(roomGracePeriod); expiresAt.Before(earliest) {
		expiresAt = earliest
	}

	room, err := s.video.CreateRoom(ctx, name, expiresAt)
	if err != nil {
		return nil, apperrors.External("video provider", err)
	}

	updated, err := s.sessionRepo.SetRoom(ctx, session.ID, room.Name, room.URL)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if updated != nil {
		return updated, nil
	}
	// Another participant created the room first.
	return s.load(ctx, session.ID)
}

// Reschedule moves a pending or scheduled session to another free slot.
func (s *BookingService) Reschedule(ctx context.Context, p *model.Principal, id string, date scheduling.Date, start scheduling.Clock) (*model.Session, error) {
	if date.IsZero() {
		return nil, apperrors.MissingRequired("date")
	}
	session, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.IsAdmin() && !session.IsParticipant(p.UserID) {
		return nil, apperrors.NotFound("Session")
	}
	if !session.Status.Reschedulable() {
		return nil, apperrors.InvalidTransition(string(session.Status), "rescheduled")
	}

	release, err := s.lockSlot(ctx, session.TherapistID, date, start)
	if err != nil {
		return nil, err
	}
	defer release()

	slot, err := s.availability.findSlot(ctx, session.TherapistID, date, start, session.ID)
	if err != nil {
		return nil, err
	}
	if slot == nil || slot.Duration != session.DurationMinutes {
		return nil, apperrors.SlotUnavailable()
	}

	updated, err := s.sessionRepo.Reschedule(ctx, session.ID, session.Status, slot.Date, slot.Start)
	if database.IsUniqueViolation(err, repository.ActiveSlotConstraint) {
		return nil, apperrors.SlotUnavailable()
	}
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if updated == nil {
		current, err := s.load(ctx, session.ID)
		if err != nil {
			return nil, err
		}
		return nil, apperrors.InvalidTransition(string(current.Status), "rescheduled")
	}

	audit.Log(ctx, audit.Event{
		Type:   audit.EventSessionReschedule,
		UserID: p.UserID,
		Role:   string(p.Role),
		Details: map[string]interface{}{
			"session_id": session.ID,
			"from":       session.ScheduledDate.String() + " " + session.ScheduledTime.String(),
			"to":         updated.ScheduledDate.String() + " " + updated.ScheduledTime.String(),
		},
	})
	s.notify(ctx, EventSessionUpdated, updated)
	return updated, nil
}

// HandleMeetingStarted marks the session behind a video room as started.
func (s *BookingService) HandleMeetingStarted(ctx context.Context, roomName string) (*model.Session, error) {
	return s.handleRoomEvent(ctx, roomName, model.SessionStatusScheduled, model.SessionStatusInProgress)
}

// HandleMeetingEnded completes the session behind a video room.
func (s *BookingService) HandleMeetingEnded(ctx context.Context, roomName string) (*model.Session, error) {
	return s.handleRoomEvent(ctx, roomName, model.SessionStatusInProgress, model.SessionStatusCompleted)
}

func (s *BookingService) handleRoomEvent(ctx context.Context, roomName string, from, to model.SessionStatus) (*model.Session, error) {
	session, err := s.sessionRepo.FindByRoomName(ctx, roomName)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if session == nil {
		return nil, apperrors.NotFound("Session")
	}
	if session.Status != from {
		log.Debug().
			Str("sessionId", session.ID).
			Str("status", string(session.Status)).
			Str("target", string(to)).
			Msg("ignoring video event for session in unexpected status")
		return session, nil
	}
	return s.transition(ctx, nil, session, to, nil)
}

// CancelStalePending cancels bookings still awaiting approval once their
// start time has passed.
func (s *BookingService) CancelStalePending(ctx context.Context) (int64, error) {
	sessions, err := s.sessionRepo.CancelStalePending(ctx, s.now(), s.availability.Location().String(), staleCancelReason)
	if err != nil {
		return 0, err
	}
	for i := range sessions {
		s.notify(ctx, EventSessionUpdated, &sessions[i])
	}
	return int64(len(sessions)), nil
}

func (s *BookingService) load(ctx context.Context, id string) (*model.Session, error) {
	if !util.IsValidUUID(id) {
		return nil, apperrors.NotFound("Session")
	}
	session, err := s.sessionRepo.FindByID(ctx, id)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if session == nil {
		return nil, apperrors.NotFound("Session")
	}
	return session, nil
}

// transition applies one state machine step with a conditional update so
// that concurrent callers cannot both move the same session.
func (s *BookingService) transition(ctx context.Context, p *model.Principal, session *model.Session, to model.SessionStatus, reason *string) (*model.Session, error) {
	if !session.Status.CanTransitionTo(to) {
		return nil, apperrors.InvalidTransition(string(session.Status), string(to))
	}

	updated, err := s.sessionRepo.Transition(ctx, session.ID, session.Status, to, reason)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if updated == nil {
		current, err := s.load(ctx, session.ID)
		if err != nil {
			return nil, err
		}
		return nil, apperrors.InvalidTransition(string(current.Status), string(to))
	}

	event := audit.Event{
		Type: audit.EventSessionStatus,
		Details: map[string]interface{}{
			"session_id": session.ID,
			"from":       string(session.Status),
			"to":         string(to),
		},
	}
	if p != nil {
		event.UserID = p.UserID
		event.Role = string(p.Role)
	}
	audit.Log(ctx, event)

	s.notify(ctx, EventSessionUpdated, updated)
	return updated, nil
}

// lockSlot takes the short-lived Redis lock for a slot. When Redis is
// unavailable the booking proceeds and the unique index decides.
func (s *BookingService) lockSlot(ctx context.Context, therapistID string, date scheduling.Date, start scheduling.Clock) (func(), error) {
	noop := func() {}
	if s.locker == nil {
		return noop, nil
	}

	key := redisclient.SlotLockKey(therapistID, date.String(), start.String())
	token := uuid.NewString()

	ok, err := s.locker.AcquireLock(ctx, key, token, config.SlotLockTTL)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("slot lock unavailable, relying on database constraint")
		return noop, nil
	}
	if !ok {
		return nil, apperrors.SlotUnavailable()
	}

	return func() {
		if err := s.locker.ReleaseLock(context.WithoutCancel(ctx), key, token); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("failed to release slot lock")
		}
	}, nil
}

func (s *BookingService) notify(ctx context.Context, eventType string, session *model.Session) {
	if s.events == nil {
		return
	}
	event, err := sse.NewEvent(eventType, session)
	if err != nil {
		log.Error().Err(err).Str("sessionId", session.ID).Msg("failed to encode session event")
		return
	}
	for _, userID := range []string{session.UserID, session.TherapistID} {
		if err := s.events.Publish(ctx, userID, event); err != nil {
			log.Warn().Err(err).
				Str("sessionId", session.ID).
				Str("userId", userID).
				Msg("failed to publish session event")
		}
	}
}
