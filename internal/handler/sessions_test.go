package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/trpi/scheduling-server-go/internal/errors"
	"github.com/trpi/scheduling-server-go/internal/httputil"
	"github.com/trpi/scheduling-server-go/internal/middleware"
	"github.com/trpi/scheduling-server-go/internal/model"
	"github.com/trpi/scheduling-server-go/internal/scheduling"
	"github.com/trpi/scheduling-server-go/internal/service"
)

var (
	clientPrincipal    = &model.Principal{UserID: "client-1", Role: model.UserTypeIndividual}
	therapistPrincipal = &model.Principal{UserID: "therapist-1", Role: model.UserTypeTherapist}
	adminPrincipal     = &model.Principal{Role: model.UserTypeAdmin}
)

// newRequest builds a request carrying p as the authenticated caller.
func newRequest(method, target, body string, p *model.Principal) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if p != nil {
		req = req.WithContext(middleware.WithPrincipal(req.Context(), p))
	}
	return req
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) httputil.ErrorResponse {
	t.Helper()
	var resp httputil.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	return resp
}

func mustDate(t *testing.T, s string) scheduling.Date {
	t.Helper()
	d, err := scheduling.ParseDate(s)
	require.NoError(t, err)
	return d
}

func mustClock(t *testing.T, s string) scheduling.Clock {
	t.Helper()
	c, err := scheduling.ParseClock(s)
	require.NoError(t, err)
	return c
}

func testSession(t *testing.T, status model.SessionStatus) *model.Session {
	return &model.Session{
		ID:              "session-1",
		UserID:          clientPrincipal.UserID,
		TherapistID:     therapistPrincipal.UserID,
		ScheduledDate:   mustDate(t, "2025-01-06"),
		ScheduledTime:   mustClock(t, "09:00"),
		DurationMinutes: 60,
		Status:          status,
		Title:           "Intro",
	}
}

func TestSessionHandler_Book(t *testing.T) {
	t.Run("creates a session", func(t *testing.T) {
		booking := new(mockBookingService)
		h := NewSessionHandler(booking, nil)

		booking.On("Book", mock.Anything, clientPrincipal, service.BookParams{
			TherapistID: "therapist-1",
			Date:        mustDate(t, "2025-01-06"),
			StartTime:   mustClock(t, "09:00"),
			Title:       "Intro",
		}).Return(testSession(t, model.SessionStatusScheduled), nil)

		rec := serve(h.Routes(), newRequest(http.MethodPost, "/",
			`{"therapistId":"therapist-1","date":"2025-01-06","startTime":"09:00","title":"Intro"}`, clientPrincipal))

		assert.Equal(t, http.StatusCreated, rec.Code)
		var got model.Session
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, "session-1", got.ID)
		assert.Equal(t, model.SessionStatusScheduled, got.Status)
		booking.AssertExpectations(t)
	})

	t.Run("requires therapistId", func(t *testing.T) {
		booking := new(mockBookingService)
		h := NewSessionHandler(booking, nil)

		rec := serve(h.Routes(), newRequest(http.MethodPost, "/",
			`{"date":"2025-01-06","startTime":"09:00"}`, clientPrincipal))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, apperrors.ErrCodeMissingRequired, errorBody(t, rec).Code)
		booking.AssertNotCalled(t, "Book", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("rejects a malformed start time", func(t *testing.T) {
		h := NewSessionHandler(new(mockBookingService), nil)

		rec := serve(h.Routes(), newRequest(http.MethodPost, "/",
			`{"therapistId":"therapist-1","date":"2025-01-06","startTime":"9am"}`, clientPrincipal))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, apperrors.ErrCodeValidation, errorBody(t, rec).Code)
	})

	t.Run("rejects an empty body", func(t *testing.T) {
		h := NewSessionHandler(new(mockBookingService), nil)

		rec := serve(h.Routes(), newRequest(http.MethodPost, "/", "", clientPrincipal))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("maps a taken slot to 409", func(t *testing.T) {
		booking := new(mockBookingService)
		h := NewSessionHandler(booking, nil)
		booking.On("Book", mock.Anything, clientPrincipal, mock.Anything).
			Return(nil, apperrors.SlotUnavailable())

		rec := serve(h.Routes(), newRequest(http.MethodPost, "/",
			`{"therapistId":"therapist-1","date":"2025-01-06","startTime":"09:00"}`, clientPrincipal))

		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, apperrors.ErrCodeSlotUnavailable, errorBody(t, rec).Code)
	})

	t.Run("applies the booking limiter", func(t *testing.T) {
		booking := new(mockBookingService)
		deny := func(http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				httputil.WriteError(w, apperrors.RateLimitExceeded())
			})
		}
		h := NewSessionHandler(booking, deny)

		rec := serve(h.Routes(), newRequest(http.MethodPost, "/",
			`{"therapistId":"therapist-1","date":"2025-01-06","startTime":"09:00"}`, clientPrincipal))

		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		booking.AssertNotCalled(t, "Book", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestSessionHandler_List(t *testing.T) {
	t.Run("passes filters and pagination", func(t *testing.T) {
		booking := new(mockBookingService)
		h := NewSessionHandler(booking, nil)

		from := mustDate(t, "2025-01-01")
		booking.On("List", mock.Anything, therapistPrincipal, model.SessionFilter{
			Status: model.SessionStatusScheduled,
			From:   &from,
			Limit:  10,
			Offset: 20,
		}).Return([]model.Session{*testSession(t, model.SessionStatusScheduled)}, 21, nil)

		rec := serve(h.Routes(), newRequest(http.MethodGet,
			"/?status=scheduled&start=2025-01-01&limit=10&offset=20", "", therapistPrincipal))

		require.Equal(t, http.StatusOK, rec.Code)
		var resp struct {
			Items  []model.Session `json:"items"`
			Total  int             `json:"total"`
			Limit  int             `json:"limit"`
			Offset int             `json:"offset"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Len(t, resp.Items, 1)
		assert.Equal(t, 21, resp.Total)
		assert.Equal(t, 10, resp.Limit)
		assert.Equal(t, 20, resp.Offset)
		booking.AssertExpectations(t)
	})

	t.Run("rejects an unknown status", func(t *testing.T) {
		h := NewSessionHandler(new(mockBookingService), nil)

		rec := serve(h.Routes(), newRequest(http.MethodGet, "/?status=archived", "", clientPrincipal))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, apperrors.ErrCodeInvalidInput, errorBody(t, rec).Code)
	})

	t.Run("renders an empty list as an array", func(t *testing.T) {
		booking := new(mockBookingService)
		h := NewSessionHandler(booking, nil)
		booking.On("List", mock.Anything, clientPrincipal, mock.Anything).Return([]model.Session(nil), 0, nil)

		rec := serve(h.Routes(), newRequest(http.MethodGet, "/", "", clientPrincipal))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"items":[]`)
	})
}

func TestSessionHandler_Transitions(t *testing.T) {
	t.Run("cancel forwards the reason", func(t *testing.T) {
		booking := new(mockBookingService)
		h := NewSessionHandler(booking, nil)
		booking.On("Cancel", mock.Anything, clientPrincipal, "session-1", "sick").
			Return(testSession(t, model.SessionStatusCancelled), nil)

		rec := serve(h.Routes(), newRequest(http.MethodPost, "/session-1/cancel", `{"reason":"sick"}`, clientPrincipal))

		assert.Equal(t, http.StatusOK, rec.Code)
		booking.AssertExpectations(t)
	})

	t.Run("cancel accepts an empty body", func(t *testing.T) {
		booking := new(mockBookingService)
		h := NewSessionHandler(booking, nil)
		booking.On("Cancel", mock.Anything, clientPrincipal, "session-1", "").
			Return(testSession(t, model.SessionStatusCancelled), nil)

		rec := serve(h.Routes(), newRequest(http.MethodPost, "/session-1/cancel", "", clientPrincipal))

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("invalid transition is a conflict with details", func(t *testing.T) {
		booking := new(mockBookingService)
		h := NewSessionHandler(booking, nil)
		booking.On("Complete", mock.Anything, therapistPrincipal, "session-1").
			Return(nil, apperrors.InvalidTransition("scheduled", "completed"))

		rec := serve(h.Routes(), newRequest(http.MethodPost, "/session-1/complete", "", therapistPrincipal))

		assert.Equal(t, http.StatusConflict, rec.Code)
		resp := errorBody(t, rec)
		assert.Equal(t, apperrors.ErrCodeInvalidTransition, resp.Code)
		assert.Equal(t, map[string]any{"from": "scheduled", "to": "completed"}, resp.Details)
	})

	t.Run("approve is forbidden for clients", func(t *testing.T) {
		booking := new(mockBookingService)
		h := NewSessionHandler(booking, nil)
		booking.On("Approve", mock.Anything, clientPrincipal, "session-1").
			Return(nil, apperrors.Forbidden("Only the therapist or an admin can approve this session"))

		rec := serve(h.Routes(), newRequest(http.MethodPost, "/session-1/approve", "", clientPrincipal))

		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("reschedule parses the new slot", func(t *testing.T) {
		booking := new(mockBookingService)
		h := NewSessionHandler(booking, nil)
		booking.On("Reschedule", mock.Anything, clientPrincipal, "session-1",
			mustDate(t, "2025-01-13"), mustClock(t, "10:00")).
			Return(testSession(t, model.SessionStatusScheduled), nil)

		rec := serve(h.Routes(), newRequest(http.MethodPost, "/session-1/reschedule",
			`{"date":"2025-01-13","startTime":"10:00"}`, clientPrincipal))

		assert.Equal(t, http.StatusOK, rec.Code)
		booking.AssertExpectations(t)
	})
}

func TestSessionHandler_Join(t *testing.T) {
	t.Run("returns the room url", func(t *testing.T) {
		booking := new(mockBookingService)
		h := NewSessionHandler(booking, nil)

		session := testSession(t, model.SessionStatusScheduled)
		url := "https://video.example.com/trpi-session-1"
		session.RoomURL = &url
		booking.On("Join", mock.Anything, clientPrincipal, "session-1").Return(session, nil)

		rec := serve(h.Routes(), newRequest(http.MethodPost, "/session-1/join", "", clientPrincipal))

		require.Equal(t, http.StatusOK, rec.Code)
		var resp struct {
			RoomURL string `json:"roomUrl"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, url, resp.RoomURL)
	})

	t.Run("video provider failure is a bad gateway", func(t *testing.T) {
		booking := new(mockBookingService)
		h := NewSessionHandler(booking, nil)
		booking.On("Join", mock.Anything, clientPrincipal, "session-1").
			Return(nil, apperrors.External("video", assert.AnError))

		rec := serve(h.Routes(), newRequest(http.MethodPost, "/session-1/join", "", clientPrincipal))

		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.Equal(t, apperrors.ErrCodeExternal, errorBody(t, rec).Code)
	})
}

func TestSessionHandler_Get(t *testing.T) {
	booking := new(mockBookingService)
	h := NewSessionHandler(booking, nil)
	booking.On("Get", mock.Anything, clientPrincipal, "missing").Return(nil, apperrors.NotFound("Session"))

	rec := serve(h.Routes(), newRequest(http.MethodGet, "/missing", "", clientPrincipal))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, apperrors.ErrCodeNotFound, errorBody(t, rec).Code)
}
