package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/trpi/scheduling-server-go/internal/audit"
	apperrors "github.com/trpi/scheduling-server-go/internal/errors"
)

const (
	loginMaxAttempts = 5
	loginWindow      = time.Minute
	loginSweepEvery  = 5 * time.Minute
)

// window is one IP's fixed counting window.
type window struct {
	start time.Time
	hits  int
}

// LoginRateLimiter is a fixed-window, per-IP limiter for the admin password
// login. It is process-local so it keeps working when Redis is down.
type LoginRateLimiter struct {
	mu        sync.Mutex
	windows   map[string]*window
	lastSweep time.Time

	limit  int
	period time.Duration
	now    func() time.Time
}

func NewLoginRateLimiter() *LoginRateLimiter {
	return &LoginRateLimiter{
		windows:   make(map[string]*window),
		lastSweep: time.Now(),
		limit:     loginMaxAttempts,
		period:    loginWindow,
		now:       time.Now,
	}
}

// take records one attempt for key. When the limit is already reached it
// returns how long until the window resets.
func (l *LoginRateLimiter) take(key string) (retryAfter time.Duration, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) >= loginSweepEvery {
		l.sweep(now)
	}

	w := l.windows[key]
	if w == nil || now.Sub(w.start) > l.period {
		l.windows[key] = &window{start: now, hits: 1}
		return 0, true
	}
	if w.hits >= l.limit {
		return w.start.Add(l.period).Sub(now), false
	}
	w.hits++
	return 0, true
}

func (l *LoginRateLimiter) sweep(now time.Time) {
	l.lastSweep = now
	for key, w := range l.windows {
		if now.Sub(w.start) > l.period {
			delete(l.windows, key)
		}
	}
}

func (l *LoginRateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		retryAfter, ok := l.take(clientIP(r))
		if ok {
			next.ServeHTTP(w, r)
			return
		}

		audit.LogFromRequest(r, audit.Event{
			Type:    audit.EventRateLimitExceed,
			Details: map[string]interface{}{"scope": "admin_login"},
		})
		seconds := int(math.Ceil(retryAfter.Seconds()))
		if seconds < 1 {
			seconds = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(seconds))
		writeError(w, apperrors.RateLimitExceeded())
	})
}
