package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type PartnerHandler struct {
	adminService AdminService
}

func NewPartnerHandler(adminService AdminService) *PartnerHandler {
	return &PartnerHandler{adminService: adminService}
}

func (h *PartnerHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/members", h.Members)
	return r
}

// GET /api/partner/members
func (h *PartnerHandler) Members(w http.ResponseWriter, r *http.Request) {
	p := ParsePagination(r)
	members, err := h.adminService.PartnerMembers(r.Context(), principal(r), p.Limit, p.Offset)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newList(members, len(members), p))
}
