package handler

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"

	apperrors "github.com/trpi/scheduling-server-go/internal/errors"
	"github.com/trpi/scheduling-server-go/internal/middleware"
	"github.com/trpi/scheduling-server-go/internal/model"
	"github.com/trpi/scheduling-server-go/internal/video"
)

// WebhookHandler receives video provider events. The signature middleware
// has already verified the body.
type WebhookHandler struct {
	booking BookingService
}

func NewWebhookHandler(booking BookingService) *WebhookHandler {
	return &WebhookHandler{booking: booking}
}

// POST /webhooks/video
func (h *WebhookHandler) Video(w http.ResponseWriter, r *http.Request) {
	event, err := video.ParseWebhookEvent(middleware.GetWebhookBody(r.Context()))
	if err != nil {
		writeError(w, r, apperrors.ValidationError(err.Error()))
		return
	}

	var handle func(context.Context, string) (*model.Session, error)
	switch event.Type {
	case video.EventMeetingStarted:
		handle = h.booking.HandleMeetingStarted
	case video.EventMeetingEnded:
		handle = h.booking.HandleMeetingEnded
	default:
		log.Debug().Str("type", event.Type).Msg("ignoring video webhook event")
		writeJSON(w, http.StatusOK, map[string]bool{"received": true})
		return
	}

	if event.Payload.Room == "" {
		writeError(w, r, apperrors.MissingRequired("payload.room"))
		return
	}

	session, err := handle(r.Context(), event.Payload.Room)
	if err != nil {
		if apperrors.HasCode(err, apperrors.ErrCodeNotFound) {
			log.Warn().Str("room", event.Payload.Room).Str("type", event.Type).Msg("video event for unknown room")
			writeJSON(w, http.StatusOK, map[string]bool{"received": true})
			return
		}
		writeError(w, r, err)
		return
	}

	log.Info().
		Str("type", event.Type).
		Str("sessionId", session.ID).
		Str("status", string(session.Status)).
		Msg("video webhook processed")
	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}
