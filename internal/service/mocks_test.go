package service

import (
	"context"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/mock"

	"github.com/trpi/scheduling-server-go/internal/database"
	"github.com/trpi/scheduling-server-go/internal/model"
	"github.com/trpi/scheduling-server-go/internal/repository"
	"github.com/trpi/scheduling-server-go/internal/scheduling"
	"github.com/trpi/scheduling-server-go/internal/sse"
	"github.com/trpi/scheduling-server-go/internal/video"
)

// fakeTx runs the callback without a real transaction. Repository mocks
// return themselves from WithTx.
type fakeTx struct{}

func (fakeTx) WithTx(ctx context.Context, fn database.TxFunc) error {
	return fn(nil)
}

type mockUserRepo struct {
	mock.Mock
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *mockUserRepo) Create(ctx context.Context, params model.CreateUserParams) (*model.User, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *mockUserRepo) MarkLogin(ctx context.Context, id string, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

func (m *mockUserRepo) ListByType(ctx context.Context, userType model.UserType, limit, offset int) ([]model.User, error) {
	args := m.Called(ctx, userType, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.User), args.Error(1)
}

func (m *mockUserRepo) CountActiveByType(ctx context.Context, userType model.UserType) (int, error) {
	args := m.Called(ctx, userType)
	return args.Int(0), args.Error(1)
}

func (m *mockUserRepo) ListByPartner(ctx context.Context, partnerID string, limit, offset int) ([]model.User, error) {
	args := m.Called(ctx, partnerID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.User), args.Error(1)
}

func (m *mockUserRepo) CountByType(ctx context.Context) (map[model.UserType]int, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[model.UserType]int), args.Error(1)
}

func (m *mockUserRepo) WithTx(tx *sqlx.Tx) repository.UserRepository {
	return m
}

type mockAvailabilityRepo struct {
	mock.Mock
}

func (m *mockAvailabilityRepo) ListTemplates(ctx context.Context, therapistID string) ([]model.AvailabilityTemplate, error) {
	args := m.Called(ctx, therapistID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.AvailabilityTemplate), args.Error(1)
}

func (m *mockAvailabilityRepo) UpsertTemplate(ctx context.Context, params model.UpsertTemplateParams) (*model.AvailabilityTemplate, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AvailabilityTemplate), args.Error(1)
}

func (m *mockAvailabilityRepo) DeleteTemplate(ctx context.Context, therapistID string, dayOfWeek int) (bool, error) {
	args := m.Called(ctx, therapistID, dayOfWeek)
	return args.Bool(0), args.Error(1)
}

func (m *mockAvailabilityRepo) DeleteAllTemplates(ctx context.Context, therapistID string) error {
	args := m.Called(ctx, therapistID)
	return args.Error(0)
}

func (m *mockAvailabilityRepo) ListOverrides(ctx context.Context, therapistID string, from, to scheduling.Date) ([]model.AvailabilityOverride, error) {
	args := m.Called(ctx, therapistID, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.AvailabilityOverride), args.Error(1)
}

func (m *mockAvailabilityRepo) UpsertOverride(ctx context.Context, params model.UpsertOverrideParams) (*model.AvailabilityOverride, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AvailabilityOverride), args.Error(1)
}

func (m *mockAvailabilityRepo) DeleteOverride(ctx context.Context, therapistID string, date scheduling.Date) (bool, error) {
	args := m.Called(ctx, therapistID, date)
	return args.Bool(0), args.Error(1)
}

func (m *mockAvailabilityRepo) WithTx(tx *sqlx.Tx) repository.AvailabilityRepository {
	return m
}

type mockSessionRepo struct {
	mock.Mock
}

func (m *mockSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Session), args.Error(1)
}

func (m *mockSessionRepo) FindByRoomName(ctx context.Context, roomName string) (*model.Session, error) {
	args := m.Called(ctx, roomName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Session), args.Error(1)
}

func (m *mockSessionRepo) Create(ctx context.Context, params model.CreateSessionParams) (*model.Session, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Session), args.Error(1)
}

func (m *mockSessionRepo) List(ctx context.Context, filter model.SessionFilter) ([]model.Session, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Session), args.Error(1)
}

func (m *mockSessionRepo) Count(ctx context.Context, filter model.SessionFilter) (int, error) {
	args := m.Called(ctx, filter)
	return args.Int(0), args.Error(1)
}

func (m *mockSessionRepo) ListActiveByTherapist(ctx context.Context, therapistID string, from, to scheduling.Date) ([]model.Session, error) {
	args := m.Called(ctx, therapistID, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Session), args.Error(1)
}

func (m *mockSessionRepo) Transition(ctx context.Context, id string, from, to model.SessionStatus, reason *string) (*model.Session, error) {
	args := m.Called(ctx, id, from, to, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Session), args.Error(1)
}

func (m *mockSessionRepo) Reschedule(ctx context.Context, id string, status model.SessionStatus, date scheduling.Date, start scheduling.Clock) (*model.Session, error) {
	args := m.Called(ctx, id, status, date, start)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Session), args.Error(1)
}

func (m *mockSessionRepo) SetRoom(ctx context.Context, id, roomName, roomURL string) (*model.Session, error) {
	args := m.Called(ctx, id, roomName, roomURL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Session), args.Error(1)
}

func (m *mockSessionRepo) CancelStalePending(ctx context.Context, now time.Time, timezone string, reason string) ([]model.Session, error) {
	args := m.Called(ctx, now, timezone, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Session), args.Error(1)
}

func (m *mockSessionRepo) CountByStatus(ctx context.Context) (map[model.SessionStatus]int, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[model.SessionStatus]int), args.Error(1)
}

func (m *mockSessionRepo) WithTx(tx *sqlx.Tx) repository.SessionRepository {
	return m
}

type mockMagicLinkRepo struct {
	mock.Mock
}

func (m *mockMagicLinkRepo) Create(ctx context.Context, params model.CreateMagicLinkParams) (*model.MagicLink, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.MagicLink), args.Error(1)
}

func (m *mockMagicLinkRepo) InvalidatePending(ctx context.Context, email string, authType model.UserType) (int64, error) {
	args := m.Called(ctx, email, authType)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockMagicLinkRepo) FindByTokenHash(ctx context.Context, tokenHash string) (*model.MagicLink, error) {
	args := m.Called(ctx, tokenHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.MagicLink), args.Error(1)
}

func (m *mockMagicLinkRepo) MarkUsed(ctx context.Context, id string, at time.Time) (bool, error) {
	args := m.Called(ctx, id, at)
	return args.Bool(0), args.Error(1)
}

func (m *mockMagicLinkRepo) DeleteStale(ctx context.Context, olderThan time.Time) (int64, error) {
	args := m.Called(ctx, olderThan)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockMagicLinkRepo) WithTx(tx *sqlx.Tx) repository.MagicLinkRepository {
	return m
}

type mockAuthSessionRepo struct {
	mock.Mock
}

func (m *mockAuthSessionRepo) Create(ctx context.Context, params model.CreateAuthSessionParams) (*model.AuthSession, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AuthSession), args.Error(1)
}

func (m *mockAuthSessionRepo) FindByTokenHash(ctx context.Context, tokenHash string) (*model.AuthSession, error) {
	args := m.Called(ctx, tokenHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AuthSession), args.Error(1)
}

func (m *mockAuthSessionRepo) DeleteByTokenHash(ctx context.Context, tokenHash string) error {
	args := m.Called(ctx, tokenHash)
	return args.Error(0)
}

func (m *mockAuthSessionRepo) DeleteExpired(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockAuthSessionRepo) WithTx(tx *sqlx.Tx) repository.AuthSessionRepository {
	return m
}

type fakeLimiter struct {
	allow bool
	keys  []string
}

func (f *fakeLimiter) CheckLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, time.Time) {
	f.keys = append(f.keys, key)
	return f.allow, time.Now().Add(window)
}

type sentLink struct {
	to, name, link string
	expiresIn      time.Duration
}

type fakeMailer struct {
	sent []sentLink
	err  error
}

func (f *fakeMailer) SendMagicLink(ctx context.Context, to, name, link string, expiresIn time.Duration) error {
	f.sent = append(f.sent, sentLink{to: to, name: name, link: link, expiresIn: expiresIn})
	return f.err
}

type fakeLocker struct {
	mu       sync.Mutex
	held     map[string]string
	err      error
	released []string
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{held: make(map[string]string)}
}

func (f *fakeLocker) AcquireLock(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	if _, ok := f.held[key]; ok {
		return false, nil
	}
	f.held[key] = token
	return true, nil
}

func (f *fakeLocker) ReleaseLock(ctx context.Context, key, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.held[key] == token {
		delete(f.held, key)
	}
	f.released = append(f.released, key)
	return nil
}

type publishedEvent struct {
	userID string
	event  sse.Event
}

type fakePublisher struct {
	events []publishedEvent
}

func (f *fakePublisher) Publish(ctx context.Context, userID string, event sse.Event) error {
	f.events = append(f.events, publishedEvent{userID: userID, event: event})
	return nil
}

type fakeVideo struct {
	rooms []string
	err   error
}

func (f *fakeVideo) CreateRoom(ctx context.Context, name string, expiresAt time.Time) (*video.Room, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.rooms = append(f.rooms, name)
	return &video.Room{Name: name, URL: "https://video.test/" + name}, nil
}
