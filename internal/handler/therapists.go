package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/trpi/scheduling-server-go/internal/errors"
	"github.com/trpi/scheduling-server-go/internal/scheduling"
)

// defaultSlotRangeDays is used when the slots query omits an end date.
const defaultSlotRangeDays = 7

type TherapistHandler struct {
	availability AvailabilityService
}

func NewTherapistHandler(availability AvailabilityService) *TherapistHandler {
	return &TherapistHandler{availability: availability}
}

func (h *TherapistHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Get("/{id}/slots", h.Slots)
	r.Get("/{id}/next-slot", h.NextSlot)

	return r
}

// GET /api/therapists
func (h *TherapistHandler) List(w http.ResponseWriter, r *http.Request) {
	p := ParsePagination(r)
	therapists, total, err := h.availability.ListTherapists(r.Context(), p.Limit, p.Offset)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newList(therapists, total, p))
}

// GET /api/therapists/{id}
func (h *TherapistHandler) Get(w http.ResponseWriter, r *http.Request) {
	therapist, err := h.availability.Therapist(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, therapist)
}

// GET /api/therapists/{id}/slots?start=YYYY-MM-DD&end=YYYY-MM-DD
func (h *TherapistHandler) Slots(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseDateRange(r, h.availability.Today(), defaultSlotRangeDays)
	if err != nil {
		writeError(w, r, err)
		return
	}

	slots, err := h.availability.GetSlots(r.Context(), chi.URLParam(r, "id"), from, to)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if slots == nil {
		slots = []scheduling.Slot{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"start": from,
		"end":   to,
		"slots": slots,
	})
}

// GET /api/therapists/{id}/next-slot
func (h *TherapistHandler) NextSlot(w http.ResponseWriter, r *http.Request) {
	slot, err := h.availability.NextSlot(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"slot": slot})
}

// parseDateRange reads start and end query parameters. start defaults to
// today and end to start plus defaultDays-1.
func parseDateRange(r *http.Request, today scheduling.Date, defaultDays int) (scheduling.Date, scheduling.Date, error) {
	q := r.URL.Query()

	from := today
	if s := q.Get("start"); s != "" {
		d, err := scheduling.ParseDate(s)
		if err != nil {
			return scheduling.Date{}, scheduling.Date{}, apperrors.InvalidInput("start", err.Error())
		}
		from = d
	}

	to := from.AddDays(defaultDays - 1)
	if s := q.Get("end"); s != "" {
		d, err := scheduling.ParseDate(s)
		if err != nil {
			return scheduling.Date{}, scheduling.Date{}, apperrors.InvalidInput("end", err.Error())
		}
		to = d
	}

	return from, to, nil
}
