package middleware

import (
	"net/http"
	"time"

	"github.com/trpi/scheduling-server-go/internal/model"
)

// Per-role session cookies. A browser may hold several at once, one per
// portal.
const (
	IndividualSessionCookie = "trpi_individual_user"
	TherapistSessionCookie  = "trpi_therapist_user"
	PartnerSessionCookie    = "trpi_partner_user"
	AdminSessionCookie      = "trpi_admin_session"
)

// SessionMaxAge is the cookie lifetime used when no expiry is known.
const SessionMaxAge = 7 * 24 * time.Hour

// allRoles is the cookie lookup order when a route accepts any role.
var allRoles = []model.UserType{
	model.UserTypeAdmin,
	model.UserTypeTherapist,
	model.UserTypePartner,
	model.UserTypeIndividual,
}

func CookieName(role model.UserType) string {
	switch role {
	case model.UserTypeIndividual:
		return IndividualSessionCookie
	case model.UserTypeTherapist:
		return TherapistSessionCookie
	case model.UserTypePartner:
		return PartnerSessionCookie
	case model.UserTypeAdmin:
		return AdminSessionCookie
	}
	return ""
}

// SetSessionCookie stores the raw session token in the role's cookie until
// expiresAt.
func SetSessionCookie(w http.ResponseWriter, role model.UserType, token string, expiresAt time.Time, secure bool) {
	maxAge := int(time.Until(expiresAt).Seconds())
	if expiresAt.IsZero() {
		maxAge = int(SessionMaxAge.Seconds())
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName(role),
		Value:    token,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func ClearSessionCookie(w http.ResponseWriter, role model.UserType, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName(role),
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// SessionToken returns the cookie value for role, or "".
func SessionToken(r *http.Request, role model.UserType) string {
	cookie, err := r.Cookie(CookieName(role))
	if err != nil {
		return ""
	}
	return cookie.Value
}
