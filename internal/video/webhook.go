package video

import (
	"encoding/json"
	"fmt"
)

// Webhook event types handled by the server.
const (
	EventMeetingStarted = "meeting.started"
	EventMeetingEnded   = "meeting.ended"
)

type WebhookEvent struct {
	Version string         `json:"version"`
	Type    string         `json:"type"`
	ID      string         `json:"id"`
	EventTS float64        `json:"event_ts"`
	Payload WebhookPayload `json:"payload"`
}

type WebhookPayload struct {
	Room      string  `json:"room"`
	MeetingID string  `json:"meeting_id"`
	StartTS   float64 `json:"start_ts"`
	EndTS     float64 `json:"end_ts,omitempty"`
}

func ParseWebhookEvent(body []byte) (*WebhookEvent, error) {
	var event WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("decode webhook: %w", err)
	}
	if event.Type == "" {
		return nil, fmt.Errorf("webhook event type is required")
	}
	return &event, nil
}

// SignaturePayload is the message signed by the provider.
func SignaturePayload(timestamp string, body []byte) string {
	return timestamp + "." + string(body)
}
