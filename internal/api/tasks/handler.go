// Package tasks serves the task routes of a project.
package tasks

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/good-yellow-bee/projectdesk/internal/api/middleware"
	"github.com/good-yellow-bee/projectdesk/internal/api/respond"
	"github.com/good-yellow-bee/projectdesk/internal/collab"
	"github.com/good-yellow-bee/projectdesk/internal/models"
)

// Handler handles task endpoints.
type Handler struct {
	tasks *collab.TaskService
}

// NewHandler creates a task handler.
func NewHandler(tasks *collab.TaskService) *Handler {
	return &Handler{tasks: tasks}
}

func decodeTask(w http.ResponseWriter, r *http.Request) (*collab.TaskInput, bool) {
	var in collab.TaskInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respond.BadRequest(w, "invalid request body")
		return nil, false
	}
	return &in, true
}

func taskID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := models.ParseID(chi.URLParam(r, "taskId"))
	if err != nil || id <= 0 {
		respond.BadRequest(w, "invalid task id")
		return 0, false
	}
	return id, true
}

// Create adds a task to the project in the URL.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.RequestPrincipal(w, r)
	if !ok {
		return
	}
	in, ok := decodeTask(w, r)
	if !ok {
		return
	}
	task, err := h.tasks.Create(r.Context(), middleware.GetProjectID(r.Context()), in, p)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.Created(w, task)
}

// List returns the project's tasks.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.RequestPrincipal(w, r)
	if !ok {
		return
	}
	tasks, err := h.tasks.ListByProject(r.Context(), middleware.GetProjectID(r.Context()), p)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	if tasks == nil {
		tasks = []*models.Task{}
	}
	respond.OK(w, tasks)
}

// Update replaces a task.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.RequestPrincipal(w, r)
	if !ok {
		return
	}
	id, ok := taskID(w, r)
	if !ok {
		return
	}
	in, ok := decodeTask(w, r)
	if !ok {
		return
	}
	task, err := h.tasks.Update(r.Context(), id, in, p)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, task)
}

// Delete removes a task.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.RequestPrincipal(w, r)
	if !ok {
		return
	}
	id, ok := taskID(w, r)
	if !ok {
		return
	}
	if err := h.tasks.Delete(r.Context(), id, p); err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.NoContent(w)
}
