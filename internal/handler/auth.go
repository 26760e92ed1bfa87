package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/trpi/scheduling-server-go/internal/audit"
	"github.com/trpi/scheduling-server-go/internal/middleware"
	"github.com/trpi/scheduling-server-go/internal/model"
	"github.com/trpi/scheduling-server-go/internal/service"
)

type AuthHandler struct {
	authService  AuthService
	requireAuth  func(http.Handler) http.Handler
	isProduction bool
}

func NewAuthHandler(authService AuthService, requireAuth func(http.Handler) http.Handler, isProduction bool) *AuthHandler {
	return &AuthHandler{
		authService:  authService,
		requireAuth:  requireAuth,
		isProduction: isProduction,
	}
}

func (h *AuthHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/magic-link", h.RequestMagicLink)
	r.Get("/verify", h.Verify)
	r.Post("/logout", h.Logout)
	r.With(h.requireAuth).Get("/me", h.Me)

	return r
}

type magicLinkRequest struct {
	Email    string              `json:"email"`
	Type     model.MagicLinkType `json:"type"`
	AuthType model.UserType      `json:"authType"`
	FullName string              `json:"fullName"`
}

// POST /api/auth/magic-link
func (h *AuthHandler) RequestMagicLink(w http.ResponseWriter, r *http.Request) {
	var req magicLinkRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Type == "" {
		req.Type = model.MagicLinkLogin
	}
	if req.AuthType == "" {
		req.AuthType = model.UserTypeIndividual
	}

	expiresAt, err := h.authService.RequestLink(r.Context(), service.RequestLinkParams{
		Email:    req.Email,
		LinkType: req.Type,
		AuthType: req.AuthType,
		FullName: req.FullName,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"expiresAt": expiresAt,
	})
}

// GET /api/auth/verify?token=
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	result, err := h.authService.Verify(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		audit.LogFromRequest(r, audit.Event{Type: audit.EventLoginFailure})
		writeError(w, r, err)
		return
	}

	middleware.SetSessionCookie(w, result.Role, result.Token, result.ExpiresAt, h.isProduction)
	audit.LogFromRequest(r, audit.Event{
		Type:   audit.EventLoginSuccess,
		UserID: result.User.ID,
		Role:   string(result.Role),
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"role":      result.Role,
		"user":      result.User,
		"expiresAt": result.ExpiresAt,
	})
}

// POST /api/auth/logout
// Ends every role session carried by the browser.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	for _, role := range []model.UserType{
		model.UserTypeIndividual,
		model.UserTypeTherapist,
		model.UserTypePartner,
		model.UserTypeAdmin,
	} {
		token := middleware.SessionToken(r, role)
		if token == "" {
			continue
		}
		if err := h.authService.Logout(r.Context(), token); err != nil {
			log.Warn().Err(err).Str("role", string(role)).Msg("failed to delete auth session")
		}
		middleware.ClearSessionCookie(w, role, h.isProduction)
		audit.LogFromRequest(r, audit.Event{Type: audit.EventLogout, Role: string(role)})
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// GET /api/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	user, err := h.authService.CurrentUser(r.Context(), p)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"role": p.Role,
		"user": user,
	})
}
