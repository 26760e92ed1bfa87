package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/trpi/scheduling-server-go/internal/errors"
	"github.com/trpi/scheduling-server-go/internal/model"
	"github.com/trpi/scheduling-server-go/internal/scheduling"
)

// overrideListDays bounds the default override listing window.
const overrideListDays = 90

// AvailabilityHandler lets a signed-in therapist manage their own hours.
type AvailabilityHandler struct {
	availability AvailabilityService
}

func NewAvailabilityHandler(availability AvailabilityService) *AvailabilityHandler {
	return &AvailabilityHandler{availability: availability}
}

func (h *AvailabilityHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/templates", h.ListTemplates)
	r.Put("/templates", h.ReplaceTemplates)
	r.Delete("/templates/{day}", h.DeleteTemplate)

	r.Get("/overrides", h.ListOverrides)
	r.Post("/overrides", h.UpsertOverride)
	r.Delete("/overrides/{date}", h.DeleteOverride)

	return r
}

type templateRequest struct {
	DayOfWeek       int              `json:"dayOfWeek"`
	StartTime       scheduling.Clock `json:"startTime"`
	EndTime         scheduling.Clock `json:"endTime"`
	SessionDuration int              `json:"sessionDuration"`
	MaxSessions     int              `json:"maxSessions"`
}

type overrideRequest struct {
	Date      scheduling.Date         `json:"date"`
	Type      scheduling.OverrideType `json:"type"`
	StartTime *scheduling.Clock       `json:"startTime"`
	EndTime   *scheduling.Clock       `json:"endTime"`
	Reason    *string                 `json:"reason"`
}

func (req overrideRequest) params(therapistID string) model.UpsertOverrideParams {
	return model.UpsertOverrideParams{
		TherapistID:  therapistID,
		OverrideDate: req.Date,
		OverrideType: req.Type,
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
		Reason:       req.Reason,
	}
}

// GET /api/availability/templates
func (h *AvailabilityHandler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := h.availability.ListTemplates(r.Context(), principal(r).UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if templates == nil {
		templates = []model.AvailabilityTemplate{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"templates": templates})
}

// PUT /api/availability/templates
// Replaces the whole week. Days left out become unavailable.
func (h *AvailabilityHandler) ReplaceTemplates(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Templates []templateRequest `json:"templates"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	therapistID := principal(r).UserID
	days := make([]model.UpsertTemplateParams, 0, len(req.Templates))
	for _, t := range req.Templates {
		days = append(days, model.UpsertTemplateParams{
			TherapistID:     therapistID,
			DayOfWeek:       t.DayOfWeek,
			StartTime:       t.StartTime,
			EndTime:         t.EndTime,
			SessionDuration: t.SessionDuration,
			MaxSessions:     t.MaxSessions,
		})
	}

	templates, err := h.availability.ReplaceWeek(r.Context(), therapistID, days)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"templates": templates})
}

// DELETE /api/availability/templates/{day}
func (h *AvailabilityHandler) DeleteTemplate(w http.ResponseWriter, r *http.Request) {
	day, err := strconv.Atoi(chi.URLParam(r, "day"))
	if err != nil {
		writeError(w, r, apperrors.InvalidInput("day", "must be a number between 0 and 6"))
		return
	}

	if err := h.availability.DeleteTemplate(r.Context(), principal(r).UserID, day); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// GET /api/availability/overrides?start=&end=
func (h *AvailabilityHandler) ListOverrides(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseDateRange(r, h.availability.Today(), overrideListDays)
	if err != nil {
		writeError(w, r, err)
		return
	}

	overrides, err := h.availability.ListOverrides(r.Context(), principal(r).UserID, from, to)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if overrides == nil {
		overrides = []model.AvailabilityOverride{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"overrides": overrides})
}

// POST /api/availability/overrides
func (h *AvailabilityHandler) UpsertOverride(w http.ResponseWriter, r *http.Request) {
	var req overrideRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	override, err := h.availability.UpsertOverride(r.Context(), req.params(principal(r).UserID))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, override)
}

// DELETE /api/availability/overrides/{date}
func (h *AvailabilityHandler) DeleteOverride(w http.ResponseWriter, r *http.Request) {
	date, err := scheduling.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		writeError(w, r, apperrors.InvalidInput("date", err.Error()))
		return
	}

	if err := h.availability.DeleteOverride(r.Context(), principal(r).UserID, date); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
