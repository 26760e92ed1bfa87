package middleware

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/trpi/scheduling-server-go/internal/audit"
	apperrors "github.com/trpi/scheduling-server-go/internal/errors"
	"github.com/trpi/scheduling-server-go/internal/util"
	"github.com/trpi/scheduling-server-go/internal/video"
)

const (
	WebhookSignatureHeader = "X-Webhook-Signature"
	WebhookTimestampHeader = "X-Webhook-Timestamp"

	// webhookMaxSkew bounds how old a signed delivery may be.
	webhookMaxSkew = 5 * time.Minute
)

const WebhookBodyContextKey contextKey = "webhookBody"

// GetWebhookBody returns the verified raw body.
func GetWebhookBody(ctx context.Context) []byte {
	body, _ := ctx.Value(WebhookBodyContextKey).([]byte)
	return body
}

// WebhookSignatureMiddleware verifies the video provider's HMAC signature
// over "<timestamp>.<body>" with the base64-encoded shared secret.
type WebhookSignatureMiddleware struct {
	secret string
	now    func() time.Time
}

func NewWebhookSignatureMiddleware(secret string) *WebhookSignatureMiddleware {
	return &WebhookSignatureMiddleware{secret: secret, now: time.Now}
}

func (m *WebhookSignatureMiddleware) reject(w http.ResponseWriter, r *http.Request, reason string) {
	log.Warn().Str("reason", reason).Msg("webhook signature middleware: rejected delivery")
	audit.LogFromRequest(r, audit.Event{
		Type:    audit.EventWebhookRejected,
		Details: map[string]interface{}{"reason": reason},
	})
	writeError(w, apperrors.Unauthorized("Invalid webhook signature"))
}

func (m *WebhookSignatureMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			log.Error().Err(err).Msg("webhook signature middleware: failed to read body")
			writeError(w, apperrors.ValidationError("Failed to read request body"))
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		if m.secret == "" {
			log.Warn().Msg("webhook signature verification bypassed: DAILY_WEBHOOK_SECRET is not configured")
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), WebhookBodyContextKey, body)))
			return
		}

		signature := r.Header.Get(WebhookSignatureHeader)
		timestamp := r.Header.Get(WebhookTimestampHeader)
		if signature == "" || timestamp == "" {
			m.reject(w, r, "missing signature headers")
			return
		}

		ts, err := strconv.ParseInt(timestamp, 10, 64)
		if err != nil {
			m.reject(w, r, "malformed timestamp")
			return
		}
		if skew := m.now().Sub(time.Unix(ts, 0)); skew > webhookMaxSkew || skew < -webhookMaxSkew {
			m.reject(w, r, "stale timestamp")
			return
		}

		computed, err := util.HmacSHA256Base64(m.secret, video.SignaturePayload(timestamp, body))
		if err != nil {
			log.Error().Err(err).Msg("webhook signature middleware: secret is not valid base64")
			writeError(w, apperrors.Internal("Webhook verification misconfigured"))
			return
		}
		if !util.ConstantTimeEqual(computed, signature) {
			m.reject(w, r, "signature mismatch")
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), WebhookBodyContextKey, body)))
	})
}
