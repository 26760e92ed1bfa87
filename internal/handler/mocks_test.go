package handler

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/trpi/scheduling-server-go/internal/model"
	"github.com/trpi/scheduling-server-go/internal/scheduling"
	"github.com/trpi/scheduling-server-go/internal/service"
)

type mockAuthService struct {
	mock.Mock
}

func (m *mockAuthService) RequestLink(ctx context.Context, params service.RequestLinkParams) (time.Time, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(time.Time), args.Error(1)
}

func (m *mockAuthService) Verify(ctx context.Context, token string) (*service.LoginResult, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.LoginResult), args.Error(1)
}

func (m *mockAuthService) AdminLogin(ctx context.Context, password string) (*service.LoginResult, error) {
	args := m.Called(ctx, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.LoginResult), args.Error(1)
}

func (m *mockAuthService) Logout(ctx context.Context, token string) error {
	return m.Called(ctx, token).Error(0)
}

func (m *mockAuthService) CurrentUser(ctx context.Context, p *model.Principal) (*model.User, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

type mockAvailabilityService struct {
	mock.Mock
}

func (m *mockAvailabilityService) ListTherapists(ctx context.Context, limit, offset int) ([]model.User, int, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]model.User), args.Int(1), args.Error(2)
}

func (m *mockAvailabilityService) Therapist(ctx context.Context, therapistID string) (*model.User, error) {
	args := m.Called(ctx, therapistID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *mockAvailabilityService) Today() scheduling.Date {
	return m.Called().Get(0).(scheduling.Date)
}

func (m *mockAvailabilityService) ListTemplates(ctx context.Context, therapistID string) ([]model.AvailabilityTemplate, error) {
	args := m.Called(ctx, therapistID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.AvailabilityTemplate), args.Error(1)
}

func (m *mockAvailabilityService) ReplaceWeek(ctx context.Context, therapistID string, days []model.UpsertTemplateParams) ([]model.AvailabilityTemplate, error) {
	args := m.Called(ctx, therapistID, days)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.AvailabilityTemplate), args.Error(1)
}

func (m *mockAvailabilityService) DeleteTemplate(ctx context.Context, therapistID string, dayOfWeek int) error {
	return m.Called(ctx, therapistID, dayOfWeek).Error(0)
}

func (m *mockAvailabilityService) ListOverrides(ctx context.Context, therapistID string, from, to scheduling.Date) ([]model.AvailabilityOverride, error) {
	args := m.Called(ctx, therapistID, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.AvailabilityOverride), args.Error(1)
}

func (m *mockAvailabilityService) UpsertOverride(ctx context.Context, params model.UpsertOverrideParams) (*model.AvailabilityOverride, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AvailabilityOverride), args.Error(1)
}

func (m *mockAvailabilityService) DeleteOverride(ctx context.Context, therapistID string, date scheduling.Date) error {
	return m.Called(ctx, therapistID, date).Error(0)
}

func (m *mockAvailabilityService) GetSlots(ctx context.Context, therapistID string, from, to scheduling.Date) ([]scheduling.Slot, error) {
	args := m.Called(ctx, therapistID, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]scheduling.Slot), args.Error(1)
}

func (m *mockAvailabilityService) NextSlot(ctx context.Context, therapistID string) (*scheduling.Slot, error) {
	args := m.Called(ctx, therapistID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*scheduling.Slot), args.Error(1)
}

type mockBookingService struct {
	mock.Mock
}

func (m *mockBookingService) session(args mock.Arguments) (*model.Session, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Session), args.Error(1)
}

func (m *mockBookingService) Book(ctx context.Context, p *model.Principal, params service.BookParams) (*model.Session, error) {
	return m.session(m.Called(ctx, p, params))
}

func (m *mockBookingService) Get(ctx context.Context, p *model.Principal, id string) (*model.Session, error) {
	return m.session(m.Called(ctx, p, id))
}

func (m *mockBookingService) List(ctx context.Context, p *model.Principal, filter model.SessionFilter) ([]model.Session, int, error) {
	args := m.Called(ctx, p, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]model.Session), args.Int(1), args.Error(2)
}

func (m *mockBookingService) Approve(ctx context.Context, p *model.Principal, id string) (*model.Session, error) {
	return m.session(m.Called(ctx, p, id))
}

func (m *mockBookingService) Cancel(ctx context.Context, p *model.Principal, id string, reason string) (*model.Session, error) {
	return m.session(m.Called(ctx, p, id, reason))
}

func (m *mockBookingService) Complete(ctx context.Context, p *model.Principal, id string) (*model.Session, error) {
	return m.session(m.Called(ctx, p, id))
}

func (m *mockBookingService) Join(ctx context.Context, p *model.Principal, id string) (*model.Session, error) {
	return m.session(m.Called(ctx, p, id))
}

func (m *mockBookingService) Reschedule(ctx context.Context, p *model.Principal, id string, date scheduling.Date, start scheduling.Clock) (*model.Session, error) {
	return m.session(m.Called(ctx, p, id, date, start))
}

func (m *mockBookingService) HandleMeetingStarted(ctx context.Context, roomName string) (*model.Session, error) {
	return m.session(m.Called(ctx, roomName))
}

func (m *mockBookingService) HandleMeetingEnded(ctx context.Context, roomName string) (*model.Session, error) {
	return m.session(m.Called(ctx, roomName))
}

type mockAdminService struct {
	mock.Mock
}

func (m *mockAdminService) GetStats(ctx context.Context) (*service.Stats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.Stats), args.Error(1)
}

func (m *mockAdminService) PartnerMembers(ctx context.Context, p *model.Principal, limit, offset int) ([]model.User, error) {
	args := m.Called(ctx, p, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.User), args.Error(1)
}
