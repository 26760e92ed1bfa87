package handler

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/trpi/scheduling-server-go/internal/errors"
	"github.com/trpi/scheduling-server-go/internal/middleware"
	"github.com/trpi/scheduling-server-go/internal/model"
	"github.com/trpi/scheduling-server-go/internal/service"
)

func passThrough(next http.Handler) http.Handler { return next }

func findCookie(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestAuthHandler_RequestMagicLink(t *testing.T) {
	t.Run("defaults to an individual login", func(t *testing.T) {
		auth := new(mockAuthService)
		h := NewAuthHandler(auth, passThrough, false)

		expiresAt := time.Date(2025, 1, 5, 12, 15, 0, 0, time.UTC)
		auth.On("RequestLink", mock.Anything, service.RequestLinkParams{
			Email:    "client@example.com",
			LinkType: model.MagicLinkLogin,
			AuthType: model.UserTypeIndividual,
		}).Return(expiresAt, nil)

		rec := serve(h.Routes(), newRequest(http.MethodPost, "/magic-link", `{"email":"client@example.com"}`, nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"success":true,"expiresAt":"2025-01-05T12:15:00Z"}`, rec.Body.String())
		auth.AssertExpectations(t)
	})

	t.Run("rate limit maps to 429", func(t *testing.T) {
		auth := new(mockAuthService)
		h := NewAuthHandler(auth, passThrough, false)
		auth.On("RequestLink", mock.Anything, mock.Anything).Return(time.Time{}, apperrors.RateLimitExceeded())

		rec := serve(h.Routes(), newRequest(http.MethodPost, "/magic-link", `{"email":"client@example.com"}`, nil))

		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	})
}

func TestAuthHandler_Verify(t *testing.T) {
	t.Run("sets the role cookie", func(t *testing.T) {
		auth := new(mockAuthService)
		h := NewAuthHandler(auth, passThrough, true)

		expiresAt := time.Now().Add(7 * 24 * time.Hour)
		auth.On("Verify", mock.Anything, "link-token").Return(&service.LoginResult{
			Token:     "session-token",
			Role:      model.UserTypeTherapist,
			User:      &model.User{ID: "therapist-1", UserType: model.UserTypeTherapist},
			ExpiresAt: expiresAt,
		}, nil)

		rec := serve(h.Routes(), newRequest(http.MethodGet, "/verify?token=link-token", "", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		cookie := findCookie(rec.Result(), middleware.TherapistSessionCookie)
		require.NotNil(t, cookie)
		assert.Equal(t, "session-token", cookie.Value)
		assert.True(t, cookie.HttpOnly)
		assert.True(t, cookie.Secure)

		var resp struct {
			Role model.UserType `json:"role"`
			User model.User     `json:"user"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, model.UserTypeTherapist, resp.Role)
		assert.Equal(t, "therapist-1", resp.User.ID)
	})

	t.Run("used link is a conflict", func(t *testing.T) {
		auth := new(mockAuthService)
		h := NewAuthHandler(auth, passThrough, false)
		auth.On("Verify", mock.Anything, "used").Return(nil, apperrors.MagicLinkUsed())

		rec := serve(h.Routes(), newRequest(http.MethodGet, "/verify?token=used", "", nil))

		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, apperrors.ErrCodeMagicLinkUsed, errorBody(t, rec).Code)
		assert.Empty(t, rec.Result().Cookies())
	})

	t.Run("expired link is unauthorized", func(t *testing.T) {
		auth := new(mockAuthService)
		h := NewAuthHandler(auth, passThrough, false)
		auth.On("Verify", mock.Anything, "old").Return(nil, apperrors.MagicLinkExpired())

		rec := serve(h.Routes(), newRequest(http.MethodGet, "/verify?token=old", "", nil))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestAuthHandler_Logout(t *testing.T) {
	auth := new(mockAuthService)
	h := NewAuthHandler(auth, passThrough, false)
	auth.On("Logout", mock.Anything, "client-token").Return(nil)

	req := newRequest(http.MethodPost, "/logout", "", nil)
	req.AddCookie(&http.Cookie{Name: middleware.IndividualSessionCookie, Value: "client-token"})
	rec := serve(h.Routes(), req)

	require.Equal(t, http.StatusOK, rec.Code)
	cookie := findCookie(rec.Result(), middleware.IndividualSessionCookie)
	require.NotNil(t, cookie)
	assert.Equal(t, -1, cookie.MaxAge)
	assert.Nil(t, findCookie(rec.Result(), middleware.TherapistSessionCookie))
	auth.AssertExpectations(t)
}

func TestAuthHandler_Me(t *testing.T) {
	auth := new(mockAuthService)
	h := NewAuthHandler(auth, passThrough, false)
	auth.On("CurrentUser", mock.Anything, clientPrincipal).
		Return(&model.User{ID: "client-1", Email: "client@example.com"}, nil)

	rec := serve(h.Routes(), newRequest(http.MethodGet, "/me", "", clientPrincipal))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"role":"individual"`)
	assert.Contains(t, rec.Body.String(), `"email":"client@example.com"`)
}
