package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/trpi/scheduling-server-go/internal/audit"
	apperrors "github.com/trpi/scheduling-server-go/internal/errors"
	"github.com/trpi/scheduling-server-go/internal/service"
)

// Checker is satisfied by service.RateLimiter.
type Checker interface {
	Check(ctx context.Context, key string, limit int, window time.Duration) service.Decision
}

// RateLimitMiddleware throttles a route group per signed-in user, falling
// back to the client IP for anonymous requests.
type RateLimitMiddleware struct {
	limiter Checker
	limit   int
	window  time.Duration
	scope   string
}

func NewRateLimitMiddleware(limiter Checker, scope string, limit int, window time.Duration) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		limiter: limiter,
		limit:   limit,
		window:  window,
		scope:   scope,
	}
}

func (m *RateLimitMiddleware) key(r *http.Request) string {
	if p := GetPrincipal(r.Context()); p != nil && p.UserID != "" {
		return fmt.Sprintf("%s:user:%s", m.scope, p.UserID)
	}
	return fmt.Sprintf("%s:ip:%s", m.scope, clientIP(r))
}

func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := m.key(r)
		d := m.limiter.Check(r.Context(), key, m.limit, m.window)

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))

		if !d.Allowed {
			retryAfter := int(time.Until(d.ResetAt).Seconds()) + 1
			if retryAfter < 1 {
				retryAfter = 1
			}
			log.Warn().Str("key", key).Msg("rate limit exceeded")
			audit.LogFromRequest(r, audit.Event{
				Type:    audit.EventRateLimitExceed,
				Details: map[string]interface{}{"scope": m.scope},
			})
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			writeError(w, apperrors.RateLimitExceeded().WithDetails(map[string]any{
				"retryAfter": retryAfter,
			}))
			return
		}

		next.ServeHTTP(w, r)
	})
}
