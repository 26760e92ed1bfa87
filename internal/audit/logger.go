// Package audit writes security-relevant events to the structured log under
// the "audit" marker so they can be filtered downstream.
package audit

import (
	"context"
	"net"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

type EventType string

const (
	EventLoginSuccess      EventType = "login_success"
	EventLoginFailure      EventType = "login_failure"
	EventLogout            EventType = "logout"
	EventMagicLinkRequest  EventType = "magic_link_request"
	EventMagicLinkVerify   EventType = "magic_link_verify"
	EventMagicLinkRejected EventType = "magic_link_rejected"
	EventUserCreate        EventType = "user_create"
	EventRateLimitExceed   EventType = "rate_limit_exceeded"
	EventCSRFFailure       EventType = "csrf_failure"
	EventAuthFailure       EventType = "auth_failure"
	EventWebhookRejected   EventType = "webhook_rejected"
	EventSessionBooked     EventType = "session_booked"
	EventSessionStatus     EventType = "session_status_change"
	EventSessionReschedule EventType = "session_reschedule"
)

type Event struct {
	Type      EventType
	UserID    string
	Role      string
	IP        string
	UserAgent string
	Details   map[string]interface{}
}

func Log(ctx context.Context, event Event) {
	e := log.Info().
		Str("audit", "security").
		Str("event_type", string(event.Type))

	if reqID := chimw.GetReqID(ctx); reqID != "" {
		e = e.Str("request_id", reqID)
	}
	if event.UserID != "" {
		e = e.Str("user_id", event.UserID)
	}
	if event.Role != "" {
		e = e.Str("role", event.Role)
	}
	if event.IP != "" {
		e = e.Str("ip", event.IP)
	}
	if event.UserAgent != "" {
		e = e.Str("user_agent", event.UserAgent)
	}
	if len(event.Details) > 0 {
		e = e.Fields(event.Details)
	}

	e.Msg("security audit event")
}

// LogFromRequest fills in the client address and user agent. RemoteAddr is
// used as-is since the RealIP middleware has already applied proxy headers.
func LogFromRequest(r *http.Request, event Event) {
	event.IP = remoteIP(r.RemoteAddr)
	event.UserAgent = r.UserAgent()
	Log(r.Context(), event)
}

func remoteIP(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
