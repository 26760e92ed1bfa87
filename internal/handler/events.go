package handler

import (
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/trpi/scheduling-server-go/internal/errors"
	"github.com/trpi/scheduling-server-go/internal/sse"
)

// Subscriber is the subscribe side of sse.Broker.
type Subscriber interface {
	Subscribe(userID string) *sse.Client
	Unsubscribe(client *sse.Client)
}

// EventsHandler streams session updates to the signed-in user.
type EventsHandler struct {
	broker    Subscriber
	heartbeat time.Duration
}

func NewEventsHandler(broker Subscriber) *EventsHandler {
	return &EventsHandler{broker: broker, heartbeat: sse.HeartbeatInterval}
}

// GET /api/events
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	switch {
	case p == nil:
		writeError(w, r, apperrors.Unauthorized("Not signed in"))
		return
	case p.UserID == "":
		writeError(w, r, apperrors.Forbidden("Live events require a user account"))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, r, apperrors.Internal("Streaming not supported"))
		return
	}

	header := w.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")

	client := h.broker.Subscribe(p.UserID)
	defer h.broker.Unsubscribe(client)

	logger := log.With().Str("userId", p.UserID).Str("role", string(p.Role)).Logger()
	logger.Info().Msg("sse stream opened")

	hello, err := sse.NewEvent("connected", map[string]any{"userId": p.UserID, "role": p.Role})
	if err != nil {
		logger.Error().Err(err).Msg("failed to encode connected event")
		return
	}
	if err := writeFrame(w, flusher, hello); err != nil {
		return
	}

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			logger.Info().Msg("sse stream closed by client")
			return
		case <-client.Done:
			logger.Info().Msg("sse stream closed by broker")
			return
		case event := <-client.Events:
			if err := writeFrame(w, flusher, event); err != nil {
				logger.Warn().Err(err).Str("event", event.Type).Msg("sse write failed")
				return
			}
		case <-ticker.C:
			if err := sse.WriteComment(w, "ping"); err != nil {
				logger.Debug().Err(err).Msg("sse heartbeat failed")
				return
			}
			flusher.Flush()
		}
	}
}

func writeFrame(w http.ResponseWriter, flusher http.Flusher, event sse.Event) error {
	if _, err := event.WriteTo(w); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
