// Package projects serves project CRUD, the admin variants and the posted flag.
package projects

import (
	"encoding/json"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/good-yellow-bee/projectdesk/internal/api/middleware"
	"github.com/good-yellow-bee/projectdesk/internal/api/respond"
	"github.com/good-yellow-bee/projectdesk/internal/collab"
	"github.com/good-yellow-bee/projectdesk/internal/models"
)

// Handler handles project endpoints.
type Handler struct {
	projects      *collab.ProjectService
	publicListing bool
}

// NewHandler creates a project handler. With publicListing set, anonymous
// callers of List receive every project.
func NewHandler(projects *collab.ProjectService, publicListing bool) *Handler {
	return &Handler{projects: projects, publicListing: publicListing}
}

// PostedRequest is the body of the admin visibility toggle.
type PostedRequest struct {
	ID     json.RawMessage `json:"id"`
	Posted bool            `json:"posted"`
}

func decodeInput(w http.ResponseWriter, r *http.Request) (*collab.ProjectInput, bool) {
	var in collab.ProjectInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respond.BadRequest(w, "invalid request body")
		return nil, false
	}
	return &in, true
}

// Create creates a project owned by the caller.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.RequestPrincipal(w, r)
	if !ok {
		return
	}
	in, ok := decodeInput(w, r)
	if !ok {
		return
	}

	project, err := h.projects.Create(r.Context(), in, p)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	log.WithFields(log.Fields{"project_id": project.ID, "user_id": p.ID}).Info("project created")
	respond.Created(w, project)
}

// List returns the projects the caller can access.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	var requester *models.Principal
	if p, ok := middleware.GetPrincipal(r.Context()); ok {
		requester = &p
	} else if !h.publicListing {
		respond.Unauthorized(w, "authentication required")
		return
	}

	projects, err := h.projects.List(r.Context(), requester)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, projects)
}

// ListAll returns every project (admin only).
func (h *Handler) ListAll(w http.ResponseWriter, r *http.Request) {
	projects, err := h.projects.List(r.Context(), nil)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, projects)
}

// Get returns one project.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.RequestPrincipal(w, r)
	if !ok {
		return
	}
	project, err := h.projects.Get(r.Context(), middleware.GetProjectID(r.Context()), p)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, project)
}

// Update replaces a project's fields. The owner and the caller stay on the team.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.RequestPrincipal(w, r)
	if !ok {
		return
	}
	in, ok := decodeInput(w, r)
	if !ok {
		return
	}

	project, err := h.projects.Update(r.Context(), middleware.GetProjectID(r.Context()), in, p)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, project)
}

// AdminUpdate updates any project without the membership check.
func (h *Handler) AdminUpdate(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeInput(w, r)
	if !ok {
		return
	}
	project, err := h.projects.AdminUpdate(r.Context(), middleware.GetProjectID(r.Context()), in)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, project)
}

// Delete removes a project and its upload directory.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.RequestPrincipal(w, r)
	if !ok {
		return
	}
	if err := h.projects.Delete(r.Context(), middleware.GetProjectID(r.Context()), p); err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.NoContent(w)
}

// SetPosted toggles whether a project appears in the explore feed (admin only).
func (h *Handler) SetPosted(w http.ResponseWriter, r *http.Request) {
	var req PostedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.BadRequest(w, "invalid request body")
		return
	}
	id, err := models.ParseID(strings.Trim(string(req.ID), `"`))
	if err != nil || id <= 0 {
		respond.Error(w, r, collab.NewValidationError("id", "id must be a project id"))
		return
	}

	if err := h.projects.SetPosted(r.Context(), id, req.Posted); err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, map[string]any{"id": id, "posted": req.Posted})
}
