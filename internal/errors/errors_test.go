package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError(t *testing.T) {
	t.Run("formats code and message", func(t *testing.T) {
		assert.Equal(t, "NOT_FOUND: Session not found", NotFound("Session").Error())
	})

	t.Run("includes the cause", func(t *testing.T) {
		err := Database(errors.New("connection refused"))
		assert.Contains(t, err.Error(), "DATABASE_ERROR")
		assert.Contains(t, err.Error(), "connection refused")
	})

	t.Run("unwraps to the cause", func(t *testing.T) {
		cause := errors.New("timeout")
		err := External("video provider", cause)
		assert.ErrorIs(t, err, cause)
		assert.Contains(t, err.Message, "video provider")
	})

	t.Run("field errors carry the field name", func(t *testing.T) {
		assert.Equal(t, map[string]string{"field": "date"}, InvalidInput("date", "bad").Details)
		assert.Equal(t, map[string]string{"field": "email"}, MissingRequired("email").Details)
		assert.Equal(t, "email is required", MissingRequired("email").Message)
	})

	t.Run("invalid transition names both states", func(t *testing.T) {
		err := InvalidTransition("completed", "scheduled")
		assert.Equal(t, "Cannot move session from completed to scheduled", err.Message)
		assert.Equal(t, map[string]string{"from": "completed", "to": "scheduled"}, err.Details)
	})
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err    *AppError
		status int
	}{
		{ValidationError("bad"), http.StatusBadRequest},
		{InvalidInput("date", "bad"), http.StatusBadRequest},
		{MissingRequired("email"), http.StatusBadRequest},
		{Unauthorized("no"), http.StatusUnauthorized},
		{MagicLinkExpired(), http.StatusUnauthorized},
		{Forbidden("no"), http.StatusForbidden},
		{NotFound("Session"), http.StatusNotFound},
		{MagicLinkNotFound(), http.StatusNotFound},
		{AlreadyExists("User"), http.StatusConflict},
		{MagicLinkUsed(), http.StatusConflict},
		{SlotUnavailable(), http.StatusConflict},
		{InvalidTransition("completed", "scheduled"), http.StatusConflict},
		{RateLimitExceeded(), http.StatusTooManyRequests},
		{External("email", errors.New("down")), http.StatusBadGateway},
		{Database(errors.New("down")), http.StatusInternalServerError},
		{Internal("boom"), http.StatusInternalServerError},
		{New("SOMETHING_NEW", "?"), http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(string(tc.err.Code), func(t *testing.T) {
			assert.Equal(t, tc.status, tc.err.Code.HTTPStatus())
		})
	}
}

func TestLookup(t *testing.T) {
	wrapped := fmt.Errorf("load session: %w", NotFound("Session"))

	t.Run("finds wrapped AppErrors", func(t *testing.T) {
		assert.True(t, IsAppError(wrapped))
		appErr, ok := AsAppError(wrapped)
		assert.True(t, ok)
		assert.Equal(t, ErrCodeNotFound, appErr.Code)
		assert.Equal(t, ErrCodeNotFound, GetCode(wrapped))
	})

	t.Run("plain errors are internal", func(t *testing.T) {
		err := errors.New("standard error")
		assert.False(t, IsAppError(err))
		assert.Equal(t, ErrCodeInternal, GetCode(err))
		_, ok := AsAppError(err)
		assert.False(t, ok)
	})

	t.Run("stringified AppErrors are not AppErrors", func(t *testing.T) {
		assert.False(t, IsAppError(errors.New("wrapped: "+NotFound("Session").Error())))
	})

	t.Run("HasCode matches any listed code", func(t *testing.T) {
		assert.True(t, HasCode(wrapped, ErrCodeDatabase, ErrCodeNotFound))
		assert.False(t, HasCode(wrapped, ErrCodeDatabase))
		assert.False(t, HasCode(errors.New("x"), ErrCodeInternal))
	})
}
