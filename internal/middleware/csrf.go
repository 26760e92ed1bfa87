package middleware

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/trpi/scheduling-server-go/internal/audit"
	apperrors "github.com/trpi/scheduling-server-go/internal/errors"
	"github.com/trpi/scheduling-server-go/internal/util"
)

const (
	CSRFCookieName = "trpi_csrf"
	CSRFHeaderName = "X-CSRF-Token"
)

// CSRFMiddleware implements the double-submit cookie check for cookie
// authenticated requests. The token cookie is readable by the frontend,
// which echoes it in X-CSRF-Token on every state-changing request.
// Bearer-authenticated requests carry no ambient credentials and skip it.
type CSRFMiddleware struct {
	secure bool
}

func NewCSRFMiddleware(isProduction bool) *CSRFMiddleware {
	return &CSRFMiddleware{secure: isProduction}
}

func (m *CSRFMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		expected, err := m.ensureToken(w, r)
		if err != nil {
			log.Error().Err(err).Msg("csrf middleware: failed to generate token")
			writeError(w, apperrors.Internal("Failed to generate security token"))
			return
		}

		if !needsCSRFCheck(r) {
			next.ServeHTTP(w, r)
			return
		}

		if reason := csrfFailure(expected, r.Header.Get(CSRFHeaderName)); reason != "" {
			audit.LogFromRequest(r, audit.Event{
				Type:    audit.EventCSRFFailure,
				Details: map[string]interface{}{"reason": reason, "path": r.URL.Path},
			})
			writeError(w, apperrors.Forbidden("Invalid CSRF token"))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// ensureToken returns the request's CSRF cookie value, issuing a fresh
// cookie when the client has none yet.
func (m *CSRFMiddleware) ensureToken(w http.ResponseWriter, r *http.Request) (string, error) {
	if c, err := r.Cookie(CSRFCookieName); err == nil && c.Value != "" {
		return c.Value, nil
	}

	token, err := util.GenerateToken()
	if err != nil {
		return "", err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CSRFCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(SessionMaxAge.Seconds()),
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return token, nil
}

func needsCSRFCheck(r *http.Request) bool {
	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	}
	return extractBearer(r) == ""
}

func csrfFailure(expected, got string) string {
	switch {
	case got == "":
		return "missing"
	case !util.ConstantTimeEqual(expected, got):
		return "mismatch"
	default:
		return ""
	}
}
