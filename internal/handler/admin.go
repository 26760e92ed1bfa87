package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/trpi/scheduling-server-go/internal/audit"
	apperrors "github.com/trpi/scheduling-server-go/internal/errors"
	"github.com/trpi/scheduling-server-go/internal/middleware"
	"github.com/trpi/scheduling-server-go/internal/model"
)

// AdminHandler serves the operator console under /admin.
type AdminHandler struct {
	authService      AuthService
	adminService     AdminService
	availability     AvailabilityService
	booking          BookingService
	requireAdmin     func(http.Handler) http.Handler
	loginRateLimiter *middleware.LoginRateLimiter
	isProduction     bool
}

func NewAdminHandler(
	authService AuthService,
	adminService AdminService,
	availability AvailabilityService,
	booking BookingService,
	requireAdmin func(http.Handler) http.Handler,
	isProduction bool,
) *AdminHandler {
	return &AdminHandler{
		authService:      authService,
		adminService:     adminService,
		availability:     availability,
		booking:          booking,
		requireAdmin:     requireAdmin,
		loginRateLimiter: middleware.NewLoginRateLimiter(),
		isProduction:     isProduction,
	}
}

func (h *AdminHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.With(h.loginRateLimiter.Handler).Post("/api/login", h.Login)
	r.Post("/api/logout", h.Logout)

	r.Group(func(r chi.Router) {
		r.Use(h.requireAdmin)
		r.Get("/api/stats", h.Stats)

		// Sessions
		r.Get("/api/sessions", h.ListSessions)
		r.Post("/api/sessions/{id}/approve", h.ApproveSession)
		r.Post("/api/sessions/{id}/cancel", h.CancelSession)

		// Therapist hours
		r.Put("/api/therapists/{id}/overrides", h.UpsertOverride)
	})

	return r
}

// POST /admin/api/login
func (h *AdminHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Password == "" {
		writeError(w, r, apperrors.MissingRequired("password"))
		return
	}

	result, err := h.authService.AdminLogin(r.Context(), req.Password)
	if err != nil {
		audit.LogFromRequest(r, audit.Event{Type: audit.EventLoginFailure, Role: string(model.UserTypeAdmin)})
		writeError(w, r, err)
		return
	}

	middleware.SetSessionCookie(w, model.UserTypeAdmin, result.Token, result.ExpiresAt, h.isProduction)
	audit.LogFromRequest(r, audit.Event{Type: audit.EventLoginSuccess, Role: string(model.UserTypeAdmin)})
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"expiresAt": result.ExpiresAt,
	})
}

// POST /admin/api/logout
func (h *AdminHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if token := middleware.SessionToken(r, model.UserTypeAdmin); token != "" {
		if err := h.authService.Logout(r.Context(), token); err != nil {
			log.Warn().Err(err).Msg("failed to delete admin session")
		}
	}

	middleware.ClearSessionCookie(w, model.UserTypeAdmin, h.isProduction)
	audit.LogFromRequest(r, audit.Event{Type: audit.EventLogout, Role: string(model.UserTypeAdmin)})
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// GET /admin/api/stats
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.adminService.GetStats(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// GET /admin/api/sessions
func (h *AdminHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	filter, p, err := parseSessionFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	filter.TherapistID = q.Get("therapistId")
	filter.UserID = q.Get("clientId")

	sessions, total, err := h.booking.List(r.Context(), principal(r), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newList(sessions, total, p))
}

// POST /admin/api/sessions/{id}/approve
func (h *AdminHandler) ApproveSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.booking.Approve(r.Context(), principal(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// POST /admin/api/sessions/{id}/cancel
func (h *AdminHandler) CancelSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
	}
	if err := decodeOptionalJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	session, err := h.booking.Cancel(r.Context(), principal(r), chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// PUT /admin/api/therapists/{id}/overrides
func (h *AdminHandler) UpsertOverride(w http.ResponseWriter, r *http.Request) {
	therapistID := chi.URLParam(r, "id")
	if _, err := h.availability.Therapist(r.Context(), therapistID); err != nil {
		writeError(w, r, err)
		return
	}

	var req overrideRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	override, err := h.availability.UpsertOverride(r.Context(), req.params(therapistID))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, override)
}
