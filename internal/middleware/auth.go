package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/trpi/scheduling-server-go/internal/audit"
	apperrors "github.com/trpi/scheduling-server-go/internal/errors"
	"github.com/trpi/scheduling-server-go/internal/model"
)

type contextKey string

const PrincipalContextKey contextKey = "principal"

func WithPrincipal(ctx context.Context, p *model.Principal) context.Context {
	return context.WithValue(ctx, PrincipalContextKey, p)
}

func GetPrincipal(ctx context.Context) *model.Principal {
	if p, ok := ctx.Value(PrincipalContextKey).(*model.Principal); ok {
		return p
	}
	return nil
}

// Authenticator resolves a raw session token issued for one of roles.
type Authenticator interface {
	Authenticate(ctx context.Context, token string, roles ...model.UserType) (*model.Principal, error)
}

type AuthMiddleware struct {
	auth Authenticator
}

func NewAuthMiddleware(auth Authenticator) *AuthMiddleware {
	return &AuthMiddleware{auth: auth}
}

// Require admits requests carrying a valid session for one of roles, or for
// any role when none are given. The principal is stored in the context.
func (m *AuthMiddleware) Require(roles ...model.UserType) func(http.Handler) http.Handler {
	if len(roles) == 0 {
		roles = allRoles
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, err := m.resolve(r, roles)
			if err != nil {
				log.Error().Err(err).Msg("auth middleware: session lookup failed")
				writeError(w, apperrors.Internal("Authentication failed"))
				return
			}
			if p == nil {
				audit.LogFromRequest(r, audit.Event{
					Type:    audit.EventAuthFailure,
					Details: map[string]interface{}{"path": r.URL.Path},
				})
				writeError(w, apperrors.Unauthorized("Not signed in"))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

// Optional attaches a principal when one of the cookies is valid and lets
// every request through.
func (m *AuthMiddleware) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := m.resolve(r, allRoles)
		if err != nil {
			log.Warn().Err(err).Msg("auth middleware: optional session lookup failed")
		}
		if p != nil {
			r = r.WithContext(WithPrincipal(r.Context(), p))
		}
		next.ServeHTTP(w, r)
	})
}

// resolve checks each role cookie against its own role, then the bearer
// token once against all of roles.
func (m *AuthMiddleware) resolve(r *http.Request, roles []model.UserType) (*model.Principal, error) {
	for _, role := range roles {
		token := SessionToken(r, role)
		if token == "" {
			continue
		}
		p, err := m.auth.Authenticate(r.Context(), token, role)
		if err != nil {
			return nil, err
		}
		if p != nil {
			return p, nil
		}
	}

	bearer := extractBearer(r)
	if bearer == "" {
		return nil, nil
	}
	return m.auth.Authenticate(r.Context(), bearer, roles...)
}

func extractBearer(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return ""
}
