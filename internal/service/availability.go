package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/trpi/scheduling-server-go/internal/config"
	apperrors "github.com/trpi/scheduling-server-go/internal/errors"
	"github.com/trpi/scheduling-server-go/internal/model"
	"github.com/trpi/scheduling-server-go/internal/repository"
	"github.com/trpi/scheduling-server-go/internal/scheduling"
	"github.com/trpi/scheduling-server-go/internal/util"
)

const (
	minSessionDuration = 15
	maxSessionDuration = 240
)

// AvailabilityService owns therapist working hours and turns them into
// bookable slots. Nothing is cached; every call reads the store.
type AvailabilityService struct {
	db               TxRunner
	userRepo         repository.UserRepository
	availabilityRepo repository.AvailabilityRepository
	sessionRepo      repository.SessionRepository
	location         *time.Location
	now              func() time.Time
}

func NewAvailabilityService(
	db TxRunner,
	userRepo repository.UserRepository,
	availabilityRepo repository.AvailabilityRepository,
	sessionRepo repository.SessionRepository,
	location *time.Location,
) *AvailabilityService {
	if location == nil {
		location = time.UTC
	}
	return &AvailabilityService{
		db:               db,
		userRepo:         userRepo,
		availabilityRepo: availabilityRepo,
		sessionRepo:      sessionRepo,
		location:         location,
		now:              time.Now,
	}
}

func (s *AvailabilityService) Location() *time.Location {
	return s.location
}

// Today is the current civil date in the practice timezone.
func (s *AvailabilityService) Today() scheduling.Date {
	return scheduling.DateOf(s.now().In(s.location))
}

// ListTherapists returns one page of active therapists and the total count.
func (s *AvailabilityService) ListTherapists(ctx context.Context, limit, offset int) ([]model.User, int, error) {
	therapists, err := s.userRepo.ListByType(ctx, model.UserTypeTherapist, limit, offset)
	if err != nil {
		return nil, 0, apperrors.Database(err)
	}
	total, err := s.userRepo.CountActiveByType(ctx, model.UserTypeTherapist)
	if err != nil {
		return nil, 0, apperrors.Database(err)
	}
	return therapists, total, nil
}

// Therapist loads an active therapist. Any other user is reported as not found.
func (s *AvailabilityService) Therapist(ctx context.Context, therapistID string) (*model.User, error) {
	if !util.IsValidUUID(therapistID) {
		return nil, apperrors.NotFound("Therapist")
	}
	user, err := s.userRepo.FindByID(ctx, therapistID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if user == nil || user.UserType != model.UserTypeTherapist || !user.IsActive {
		return nil, apperrors.NotFound("Therapist")
	}
	return user, nil
}

func (s *AvailabilityService) ListTemplates(ctx context.Context, therapistID string) ([]model.AvailabilityTemplate, error) {
	if _, err := s.Therapist(ctx, therapistID); err != nil {
		return nil, err
	}
	templates, err := s.availabilityRepo.ListTemplates(ctx, therapistID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	return templates, nil
}

func validateTemplate(params *model.UpsertTemplateParams) error {
	if params.DayOfWeek < 0 || params.DayOfWeek > 6 {
		return apperrors.InvalidInput("dayOfWeek", "must be between 0 (Sunday) and 6 (Saturday)")
	}
	if params.StartTime >= params.EndTime {
		return apperrors.InvalidInput("startTime", "must be before endTime")
	}
	if params.EndTime > scheduling.EndOfDay {
		return apperrors.InvalidInput("endTime", "must not pass midnight")
	}
	if params.SessionDuration == 0 {
		params.SessionDuration = config.DefaultSessionDuration
	}
	if params.SessionDuration < minSessionDuration || params.SessionDuration > maxSessionDuration {
		return apperrors.InvalidInput("sessionDuration", fmt.Sprintf("must be between %d and %d minutes", minSessionDuration, maxSessionDuration))
	}
	if params.MaxSessions < 0 {
		return apperrors.InvalidInput("maxSessions", "must not be negative")
	}
	return nil
}

// UpsertTemplate sets the hours for one weekday.
func (s *AvailabilityService) UpsertTemplate(ctx context.Context, params model.UpsertTemplateParams) (*model.AvailabilityTemplate, error) {
	if err := validateTemplate(&params); err != nil {
		return nil, err
	}
	if _, err := s.Therapist(ctx, params.TherapistID); err != nil {
		return nil, err
	}
	tmpl, err := s.availabilityRepo.UpsertTemplate(ctx, params)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	return tmpl, nil
}

// ReplaceWeek swaps the whole weekly template in one transaction. Days not
// listed become unavailable.
func (s *AvailabilityService) ReplaceWeek(ctx context.Context, therapistID string, days []model.UpsertTemplateParams) ([]model.AvailabilityTemplate, error) {
	seen := make(map[int]bool, len(days))
	for i := range days {
		days[i].TherapistID = therapistID
		if err := validateTemplate(&days[i]); err != nil {
			return nil, err
		}
		if seen[days[i].DayOfWeek] {
			return nil, apperrors.InvalidInput("dayOfWeek", fmt.Sprintf("day %d listed more than once", days[i].DayOfWeek))
		}
		seen[days[i].DayOfWeek] = true
	}

	if _, err := s.Therapist(ctx, therapistID); err != nil {
		return nil, err
	}

	templates := make([]model.AvailabilityTemplate, 0, len(days))
	err := s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		repo := s.availabilityRepo.WithTx(tx)
		if err := repo.DeleteAllTemplates(ctx, therapistID); err != nil {
			return err
		}
		for _, day := range days {
			tmpl, err := repo.UpsertTemplate(ctx, day)
			if err != nil {
				return err
			}
			templates = append(templates, *tmpl)
		}
		return nil
	})
	if err != nil {
		return nil, apperrors.Database(err)
	}
	return templates, nil
}

func (s *AvailabilityService) DeleteTemplate(ctx context.Context, therapistID string, dayOfWeek int) error {
	if dayOfWeek < 0 || dayOfWeek > 6 {
		return apperrors.InvalidInput("dayOfWeek", "must be between 0 (Sunday) and 6 (Saturday)")
	}
	deleted, err := s.availabilityRepo.DeleteTemplate(ctx, therapistID, dayOfWeek)
	if err != nil {
		return apperrors.Database(err)
	}
	if !deleted {
		return apperrors.NotFound("Availability template")
	}
	return nil
}

func (s *AvailabilityService) ListOverrides(ctx context.Context, therapistID string, from, to scheduling.Date) ([]model.AvailabilityOverride, error) {
	if to.Before(from) {
		return nil, apperrors.ValidationError("end date is before start date")
	}
	if _, err := s.Therapist(ctx, therapistID); err != nil {
		return nil, err
	}
	overrides, err := s.availabilityRepo.ListOverrides(ctx, therapistID, from, to)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	return overrides, nil
}

func validateOverride(params *model.UpsertOverrideParams) error {
	if params.OverrideDate.IsZero() {
		return apperrors.MissingRequired("date")
	}
	switch params.OverrideType {
	case scheduling.OverrideUnavailable:
		params.StartTime = nil
		params.EndTime = nil
	case scheduling.OverrideCustomHours:
		if params.StartTime == nil || params.EndTime == nil {
			return apperrors.ValidationError("custom_hours overrides require startTime and endTime")
		}
		if *params.StartTime >= *params.EndTime {
			return apperrors.InvalidInput("startTime", "must be before endTime")
		}
	default:
		return apperrors.InvalidInput("type", "must be unavailable or custom_hours")
	}
	return nil
}

// UpsertOverride replaces the availability for a single date.
func (s *AvailabilityService) UpsertOverride(ctx context.Context, params model.UpsertOverrideParams) (*model.AvailabilityOverride, error) {
	if err := validateOverride(&params); err != nil {
		return nil, err
	}
	if _, err := s.Therapist(ctx, params.TherapistID); err != nil {
		return nil, err
	}
	override, err := s.availabilityRepo.UpsertOverride(ctx, params)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	return override, nil
}

func (s *AvailabilityService) DeleteOverride(ctx context.Context, therapistID string, date scheduling.Date) error {
	deleted, err := s.availabilityRepo.DeleteOverride(ctx, therapistID, date)
	if err != nil {
		return apperrors.Database(err)
	}
	if !deleted {
		return apperrors.NotFound("Availability override")
	}
	return nil
}

// GetSlots returns the free slots for a therapist in [from, to].
func (s *AvailabilityService) GetSlots(ctx context.Context, therapistID string, from, to scheduling.Date) ([]scheduling.Slot, error) {
	if _, err := s.Therapist(ctx, therapistID); err != nil {
		return nil, err
	}
	return s.generate(ctx, therapistID, from, to, "")
}

// NextSlot returns the first free slot in the rolling window starting today,
// or nil when the therapist has nothing open.
func (s *AvailabilityService) NextSlot(ctx context.Context, therapistID string) (*scheduling.Slot, error) {
	if _, err := s.Therapist(ctx, therapistID); err != nil {
		return nil, err
	}
	today := s.Today()
	slots, err := s.generate(ctx, therapistID, today, today.AddDays(config.NextSlotWindowDays-1), "")
	if err != nil {
		return nil, err
	}
	slot, ok := scheduling.First(slots)
	if !ok {
		return nil, nil
	}
	return &slot, nil
}

// findSlot reports the free slot starting at date/start. excludeSessionID
// ignores that session's own booking, which lets a session move within a day.
func (s *AvailabilityService) findSlot(ctx context.Context, therapistID string, date scheduling.Date, start scheduling.Clock, excludeSessionID string) (*scheduling.Slot, error) {
	slots, err := s.generate(ctx, therapistID, date, date, excludeSessionID)
	if err != nil {
		return nil, err
	}
	slot, ok := scheduling.Contains(slots, date, start)
	if !ok {
		return nil, nil
	}
	return &slot, nil
}

func (s *AvailabilityService) generate(ctx context.Context, therapistID string, from, to scheduling.Date, excludeSessionID string) ([]scheduling.Slot, error) {
	req := scheduling.Request{
		From:     from,
		To:       to,
		Now:      s.now(),
		Location: s.location,
	}
	if err := req.Validate(config.MaxSlotRangeDays); err != nil {
		return nil, apperrors.ValidationError(err.Error())
	}

	templates, err := s.availabilityRepo.ListTemplates(ctx, therapistID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	overrides, err := s.availabilityRepo.ListOverrides(ctx, therapistID, from, to)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	sessions, err := s.sessionRepo.ListActiveByTherapist(ctx, therapistID, from, to)
	if err != nil {
		return nil, apperrors.Database(err)
	}

	for _, t := range templates {
		req.Templates = append(req.Templates, t.ToScheduling())
	}
	for _, o := range overrides {
		req.Overrides = append(req.Overrides, o.ToScheduling())
	}
	for i := range sessions {
		if sessions[i].ID == excludeSessionID {
			continue
		}
		req.Bookings = append(req.Bookings, sessions[i].ToBooking())
	}

	return scheduling.Generate(req), nil
}
