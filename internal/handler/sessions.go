package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/trpi/scheduling-server-go/internal/errors"
	"github.com/trpi/scheduling-server-go/internal/model"
	"github.com/trpi/scheduling-server-go/internal/scheduling"
	"github.com/trpi/scheduling-server-go/internal/service"
)

type SessionHandler struct {
	booking     BookingService
	bookLimiter func(http.Handler) http.Handler
}

// NewSessionHandler wires the booking endpoints. bookLimiter throttles
// session creation and may be nil.
func NewSessionHandler(booking BookingService, bookLimiter func(http.Handler) http.Handler) *SessionHandler {
	if bookLimiter == nil {
		bookLimiter = func(next http.Handler) http.Handler { return next }
	}
	return &SessionHandler{booking: booking, bookLimiter: bookLimiter}
}

func (h *SessionHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.List)
	r.With(h.bookLimiter).Post("/", h.Book)
	r.Get("/{id}", h.Get)
	r.Post("/{id}/join", h.Join)
	r.With(h.bookLimiter).Post("/{id}/reschedule", h.Reschedule)
	r.Post("/{id}/cancel", h.Cancel)
	r.Post("/{id}/complete", h.Complete)
	r.Post("/{id}/approve", h.Approve)

	return r
}

// parseSessionFilter reads status, start, end and pagination from the query.
func parseSessionFilter(r *http.Request) (model.SessionFilter, PaginationParams, error) {
	p := ParsePagination(r)
	filter := model.SessionFilter{Limit: p.Limit, Offset: p.Offset}
	q := r.URL.Query()

	if s := q.Get("status"); s != "" {
		status := model.SessionStatus(s)
		if !status.Valid() {
			return filter, p, apperrors.InvalidInput("status", "unknown session status")
		}
		filter.Status = status
	}
	if s := q.Get("start"); s != "" {
		d, err := scheduling.ParseDate(s)
		if err != nil {
			return filter, p, apperrors.InvalidInput("start", err.Error())
		}
		filter.From = &d
	}
	if s := q.Get("end"); s != "" {
		d, err := scheduling.ParseDate(s)
		if err != nil {
			return filter, p, apperrors.InvalidInput("end", err.Error())
		}
		filter.To = &d
	}
	return filter, p, nil
}

// GET /api/sessions
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, p, err := parseSessionFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	sessions, total, err := h.booking.List(r.Context(), principal(r), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newList(sessions, total, p))
}

type bookRequest struct {
	TherapistID string           `json:"therapistId"`
	Date        scheduling.Date  `json:"date"`
	StartTime   scheduling.Clock `json:"startTime"`
	Title       string           `json:"title"`
	Notes       *string          `json:"notes"`
}

// POST /api/sessions
func (h *SessionHandler) Book(w http.ResponseWriter, r *http.Request) {
	var req bookRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.TherapistID == "" {
		writeError(w, r, apperrors.MissingRequired("therapistId"))
		return
	}

	session, err := h.booking.Book(r.Context(), principal(r), service.BookParams{
		TherapistID: req.TherapistID,
		Date:        req.Date,
		StartTime:   req.StartTime,
		Title:       req.Title,
		Notes:       req.Notes,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

// GET /api/sessions/{id}
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	session, err := h.booking.Get(r.Context(), principal(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// POST /api/sessions/{id}/join
func (h *SessionHandler) Join(w http.ResponseWriter, r *http.Request) {
	session, err := h.booking.Join(r.Context(), principal(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session": session,
		"roomUrl": session.RoomURL,
	})
}

// POST /api/sessions/{id}/reschedule
func (h *SessionHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Date      scheduling.Date  `json:"date"`
		StartTime scheduling.Clock `json:"startTime"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	session, err := h.booking.Reschedule(r.Context(), principal(r), chi.URLParam(r, "id"), req.Date, req.StartTime)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// POST /api/sessions/{id}/cancel
func (h *SessionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
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

// POST /api/sessions/{id}/complete
func (h *SessionHandler) Complete(w http.ResponseWriter, r *http.Request) {
	session, err := h.booking.Complete(r.Context(), principal(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// POST /api/sessions/{id}/approve
func (h *SessionHandler) Approve(w http.ResponseWriter, r *http.Request) {
	session, err := h.booking.Approve(r.Context(), principal(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}
