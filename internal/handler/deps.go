package handler

import (
	"context"
	"time"

	"github.com/trpi/scheduling-server-go/internal/model"
	"github.com/trpi/scheduling-server-go/internal/scheduling"
	"github.com/trpi/scheduling-server-go/internal/service"
)

// The handlers depend on these views of the services so they can be tested
// without a database.

type AuthService interface {
	RequestLink(ctx context.Context, params service.RequestLinkParams) (time.Time, error)
	Verify(ctx context.Context, token string) (*service.LoginResult, error)
	AdminLogin(ctx context.Context, password string) (*service.LoginResult, error)
	Logout(ctx context.Context, token string) error
	CurrentUser(ctx context.Context, p *model.Principal) (*model.User, error)
}

type AvailabilityService interface {
	ListTherapists(ctx context.Context, limit, offset int) ([]model.User, int, error)
	Therapist(ctx context.Context, therapistID string) (*model.User, error)
	Today() scheduling.Date
	ListTemplates(ctx context.Context, therapistID string) ([]model.AvailabilityTemplate, error)
	ReplaceWeek(ctx context.Context, therapistID string, days []model.UpsertTemplateParams) ([]model.AvailabilityTemplate, error)
	DeleteTemplate(ctx context.Context, therapistID string, dayOfWeek int) error
	ListOverrides(ctx context.Context, therapistID string, from, to scheduling.Date) ([]model.AvailabilityOverride, error)
	UpsertOverride(ctx context.Context, params model.UpsertOverrideParams) (*model.AvailabilityOverride, error)
	DeleteOverride(ctx context.Context, therapistID string, date scheduling.Date) error
	GetSlots(ctx context.Context, therapistID string, from, to scheduling.Date) ([]scheduling.Slot, error)
	NextSlot(ctx context.Context, therapistID string) (*scheduling.Slot, error)
}

type BookingService interface {
	Book(ctx context.Context, p *model.Principal, params service.BookParams) (*model.Session, error)
	Get(ctx context.Context, p *model.Principal, id string) (*model.Session, error)
	List(ctx context.Context, p *model.Principal, filter model.SessionFilter) ([]model.Session, int, error)
	Approve(ctx context.Context, p *model.Principal, id string) (*model.Session, error)
	Cancel(ctx context.Context, p *model.Principal, id string, reason string) (*model.Session, error)
	Complete(ctx context.Context, p *model.Principal, id string) (*model.Session, error)
	Join(ctx context.Context, p *model.Principal, id string) (*model.Session, error)
	Reschedule(ctx context.Context, p *model.Principal, id string, date scheduling.Date, start scheduling.Clock) (*model.Session, error)
	HandleMeetingStarted(ctx context.Context, roomName string) (*model.Session, error)
	HandleMeetingEnded(ctx context.Context, roomName string) (*model.Session, error)
}

type AdminService interface {
	GetStats(ctx context.Context) (*service.Stats, error)
	PartnerMembers(ctx context.Context, p *model.Principal, limit, offset int) ([]model.User, error)
}
