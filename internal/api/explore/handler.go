// Package explore serves the public feed of posted projects.
package explore

import (
	"encoding/json"
	"net/http"

	"github.com/good-yellow-bee/projectdesk/internal/api/middleware"
	"github.com/good-yellow-bee/projectdesk/internal/api/respond"
	"github.com/good-yellow-bee/projectdesk/internal/collab"
)

// Handler handles explore endpoints.
type Handler struct {
	explore *collab.ExploreService
}

// NewHandler creates an explore handler.
func NewHandler(explore *collab.ExploreService) *Handler {
	return &Handler{explore: explore}
}

// NeedMembersRequest is the body of PUT /api/explore/{id}.
type NeedMembersRequest struct {
	NeedMembers *bool `json:"need_members"`
}

// List returns every posted project with its owner's contact details.
// No authentication is required.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	entries, err := h.explore.List(r.Context())
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, entries)
}

// SetNeedMembers toggles the recruitment flag of a project the caller
// has access to.
func (h *Handler) SetNeedMembers(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.RequestPrincipal(w, r)
	if !ok {
		return
	}
	var req NeedMembersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.BadRequest(w, "invalid request body")
		return
	}
	if req.NeedMembers == nil {
		respond.Error(w, r, collab.NewValidationError("need_members", "need_members is required"))
		return
	}

	id := middleware.GetProjectID(r.Context())
	if err := h.explore.ToggleNeedMembers(r.Context(), id, *req.NeedMembers, p); err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, map[string]any{"id": id, "need_members": *req.NeedMembers})
}
